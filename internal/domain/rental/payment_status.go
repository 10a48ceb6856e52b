package rental

import (
	"time"

	"github.com/shopspring/decimal"
)

// DerivePaymentStatus computes the payment status of a rental.
//
// PAID when totalPaid covers totalAmount, PARTIAL for a positive shortfall and
// PENDING when nothing was paid. A non-PAID rental whose end date has passed is
// OVERDUE. Every caller must go through this function.
func DerivePaymentStatus(totalPaid, totalAmount decimal.Decimal, endDate, now time.Time) PaymentStatus {
	var status PaymentStatus
	switch {
	case totalPaid.GreaterThanOrEqual(totalAmount):
		status = PaymentPaid
	case totalPaid.IsPositive():
		status = PaymentPartial
	default:
		status = PaymentPending
	}

	if status != PaymentPaid && IsPastDue(endDate, now) {
		return PaymentOverdue
	}
	return status
}

// IsPastDue reports whether the end date lies strictly before now
func IsPastDue(endDate, now time.Time) bool {
	if endDate.IsZero() {
		return false
	}
	return endDate.Before(now)
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// SumPayments totals payment amounts
func SumPayments(payments []Payment) decimal.Decimal {
	total := decimal.Zero
	for i := range payments {
		total = total.Add(payments[i].Amount)
	}
	return total
}
