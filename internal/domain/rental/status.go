package rental

// RentalStatus is the logistics lifecycle state of a rental
type RentalStatus string

const (
	StatusDraft     RentalStatus = "DRAFT"
	StatusScheduled RentalStatus = "SCHEDULED"
	StatusActive    RentalStatus = "ACTIVE"
	StatusLate      RentalStatus = "LATE"
	StatusCompleted RentalStatus = "COMPLETED"
	StatusCancelled RentalStatus = "CANCELLED"
)

// IsValid checks if the status is a known RentalStatus
func (s RentalStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusLate, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether cancellation is no longer possible.
// COMPLETED can still be reopened, CANCELLED cannot leave at all.
func (s RentalStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s RentalStatus) String() string {
	return string(s)
}

// PaymentStatus is the financial state derived from payments and dates
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPartial PaymentStatus = "PARTIAL"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentOverdue PaymentStatus = "OVERDUE"
)

// IsValid checks if the status is a known PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid, PaymentOverdue:
		return true
	}
	return false
}

func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod is how the customer settled a payment
type PaymentMethod string

const (
	MethodCash                   PaymentMethod = "CASH"
	MethodPix                    PaymentMethod = "PIX"
	MethodBoleto                 PaymentMethod = "BOLETO"
	MethodDebitCard              PaymentMethod = "DEBIT_CARD"
	MethodCreditCardInstallments PaymentMethod = "CREDIT_CARD_INSTALLMENTS"
	MethodPromissoryNote         PaymentMethod = "PROMISSORY_NOTE"
)

// PaymentMethods lists every accepted method in display order
var PaymentMethods = []PaymentMethod{
	MethodCash,
	MethodPix,
	MethodBoleto,
	MethodDebitCard,
	MethodCreditCardInstallments,
	MethodPromissoryNote,
}

// IsValid checks if the method is accepted
func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if pm == m {
			return true
		}
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}
