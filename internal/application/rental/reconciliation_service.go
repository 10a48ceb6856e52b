package rental

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reasons reported when a payment is stored without touching the ledger
const (
	LedgerSkipDisabled       = "ledger_disabled"
	LedgerSkipTitleMissing   = "title_missing"
	LedgerSkipAccountMissing = "bank_account_missing"
	LedgerSkipMovementAbsent = "movement_missing"
)

// Metrics receives counters the services emit directly
type Metrics interface {
	LedgerLinkMissing(ctx context.Context, tenantID uuid.UUID, operation, reason string)
	OverdueRefreshed(ctx context.Context, count int)
}

type noopMetrics struct{}

func (noopMetrics) LedgerLinkMissing(context.Context, uuid.UUID, string, string) {}
func (noopMetrics) OverdueRefreshed(context.Context, int)                        {}

// Option configures the rental services
type Option func(*options)

type options struct {
	now           func() time.Time
	logger        *zap.Logger
	metrics       Metrics
	ledgerEnabled bool
	currency      currency.Unit
	printer       *message.Printer
}

func defaultOptions() options {
	return options{
		now:           time.Now,
		logger:        zap.NewNop(),
		metrics:       noopMetrics{},
		ledgerEnabled: true,
		currency:      currency.BRL,
		printer:       message.NewPrinter(language.BrazilianPortuguese),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock overrides the time source used for derivations
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithLedger turns ledger posting on or off. Off behaves like a missing link.
func WithLedger(enabled bool) Option {
	return func(o *options) {
		o.ledgerEnabled = enabled
	}
}

// WithCurrency sets the ISO 4217 code and BCP 47 locale used for ledger
// line text. Unparseable values keep the defaults.
func WithCurrency(code, locale string) Option {
	return func(o *options) {
		if unit, err := currency.ParseISO(code); err == nil {
			o.currency = unit
		}
		if tag, err := language.Parse(locale); err == nil {
			o.printer = message.NewPrinter(tag)
		}
	}
}

// ReconciliationService records and deletes payments keeping the rental's
// derived financial fields and the ledger consistent.
type ReconciliationService struct {
	scope    TransactionScope
	rentals  rental.RentalRepository
	payments rental.PaymentRepository
	opts     options
}

// NewReconciliationService creates a ReconciliationService. rentals and
// payments serve reads outside a transaction.
func NewReconciliationService(scope TransactionScope, rentals rental.RentalRepository, payments rental.PaymentRepository, opts ...Option) *ReconciliationService {
	return &ReconciliationService{
		scope:    scope,
		rentals:  rentals,
		payments: payments,
		opts:     buildOptions(opts),
	}
}

// AddPayment records a payment against a rental.
//
// The rental row is locked first. Then, in one transaction, the payment is
// posted to the ledger when the rental has a title and the tenant a default
// bank account, the payment row is inserted, amountPaid is recomputed from all
// payments and the derived fields are persisted.
func (s *ReconciliationService) AddPayment(ctx context.Context, tenantID uuid.UUID, req AddPaymentRequest) (*AddPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_reconciliation", "add_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrRentalID, req.RentalID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentMethod, string(req.Method),
	)

	now := s.opts.now()
	date := req.PaymentDate
	if date.IsZero() {
		date = now
	}
	payment, err := rental.NewPayment(tenantID, req.RentalID, req.Amount, req.Method, date, req.Notes, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		result  AddPaymentResult
		skipped string
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationAddPayment), func(c context.Context) {
		err = s.scope.Execute(c, func(repos TransactionalRepositories) error {
			r, err := lockRental(c, repos, tenantID, req.RentalID)
			if err != nil {
				return err
			}

			movementID, reason, err := s.registerInLedger(c, repos, r, payment)
			if err != nil {
				return err
			}
			if reason == "" {
				payment.LinkMovement(movementID)
			}
			skipped = reason

			if err := repos.Payments().Create(c, payment); err != nil {
				return err
			}
			if err := recomputeDerived(c, repos, r, now); err != nil {
				return err
			}
			if err := repos.Events().Record(c, rental.NewPaymentRecordedEvent(r, payment, now)); err != nil {
				return err
			}

			result = AddPaymentResult{
				Payment:       toPaymentResponse(payment),
				Financials:    toFinancials(r, now),
				LedgerLinked:  reason == "",
				LedgerWarning: reason,
			}
			return nil
		})
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("add payment", tenantID, req.RentalID, err)
		return nil, err
	}

	if skipped != "" {
		s.reportLinkMissing(ctx, tenantID, "add_payment", req.RentalID, skipped)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPaymentStatus, result.Financials.PaymentStatus)
	s.opts.logger.Info("Payment recorded",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", req.RentalID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("amount_paid", result.Financials.AmountPaid.String()),
		zap.String("payment_status", result.Financials.PaymentStatus),
	)
	return &result, nil
}

// DeletePayment removes a payment, reverts its ledger movement when one can be
// found and recomputes the rental's derived fields, all in one transaction.
func (s *ReconciliationService) DeletePayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*DeletePaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_reconciliation", "delete_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	now := s.opts.now()
	var (
		result   DeletePaymentResult
		rentalID uuid.UUID
		skipped  string
		err      error
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationDeletePayment), func(c context.Context) {
		err = s.scope.Execute(c, func(repos TransactionalRepositories) error {
			p, err := repos.Payments().FindByIDForTenant(c, tenantID, paymentID)
			if err != nil {
				if shared.IsNotFound(err) {
					return shared.NewNotFoundError("payment", paymentID.String())
				}
				return err
			}
			rentalID = p.RentalID

			r, err := lockRental(c, repos, tenantID, p.RentalID)
			if err != nil {
				return err
			}

			reason, err := s.revertInLedger(c, repos, r, p)
			if err != nil {
				return err
			}
			skipped = reason

			if err := repos.Payments().DeleteByID(c, tenantID, p.ID); err != nil {
				if shared.IsNotFound(err) {
					return shared.NewNotFoundError("payment", paymentID.String())
				}
				return err
			}
			if err := recomputeDerived(c, repos, r, now); err != nil {
				return err
			}
			if err := repos.Events().Record(c, rental.NewPaymentRevertedEvent(r, p, reason == "", now)); err != nil {
				return err
			}

			result = DeletePaymentResult{
				Financials:     toFinancials(r, now),
				LedgerReverted: reason == "",
				LedgerWarning:  reason,
			}
			return nil
		})
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		s.logFailure("delete payment", tenantID, rentalID, err)
		return nil, err
	}

	if skipped != "" {
		s.reportLinkMissing(ctx, tenantID, "delete_payment", rentalID, skipped)
	}
	s.opts.logger.Info("Payment deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", rentalID.String()),
		zap.String("payment_id", paymentID.String()),
		zap.String("amount_paid", result.Financials.AmountPaid.String()),
		zap.String("payment_status", result.Financials.PaymentStatus),
	)
	return &result, nil
}

// GetRentalFinancials returns the money view of a rental with the payment
// status derived at the current time
func (s *ReconciliationService) GetRentalFinancials(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalFinancials, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_reconciliation", "get_financials")
	defer span.End()

	r, err := findRental(ctx, s.rentals, tenantID, rentalID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	f := toFinancials(r, s.opts.now())
	return &f, nil
}

// ListPayments returns a rental's payments ordered by payment date
func (s *ReconciliationService) ListPayments(ctx context.Context, tenantID, rentalID uuid.UUID) ([]PaymentResponse, error) {
	if _, err := findRental(ctx, s.rentals, tenantID, rentalID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByRental(ctx, tenantID, rentalID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = toPaymentResponse(&payments[i])
	}
	return out, nil
}

// RecalculateRental recomputes amountPaid and paymentStatus from the stored
// payments under the row lock. It repairs drift left by out-of-band writes.
func (s *ReconciliationService) RecalculateRental(ctx context.Context, tenantID, rentalID uuid.UUID) (*RentalFinancials, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "rental_reconciliation", "recalculate")
	defer span.End()

	now := s.opts.now()
	var (
		result RentalFinancials
		before decimal.Decimal
	)
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		r, err := lockRental(ctx, repos, tenantID, rentalID)
		if err != nil {
			return err
		}
		before = r.AmountPaid
		if err := recomputeDerived(ctx, repos, r, now); err != nil {
			return err
		}
		result = toFinancials(r, now)
		return nil
	})
	if err = finishTx(err); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !before.Equal(result.AmountPaid) {
		s.opts.logger.Warn("Rental amount paid drifted from its payments",
			zap.String("tenant_id", tenantID.String()),
			zap.String("rental_id", rentalID.String()),
			zap.String("stored", before.String()),
			zap.String("recomputed", result.AmountPaid.String()),
		)
	}
	return &result, nil
}

func (s *ReconciliationService) registerInLedger(ctx context.Context, repos TransactionalRepositories, r *rental.Rental, p *rental.Payment) (uuid.UUID, string, error) {
	if !s.opts.ledgerEnabled {
		return uuid.Nil, LedgerSkipDisabled, nil
	}

	title, err := repos.Titles().FindByRental(ctx, r.TenantID, r.ID)
	if err != nil {
		if shared.IsNotFound(err) {
			return uuid.Nil, LedgerSkipTitleMissing, nil
		}
		return uuid.Nil, "", err
	}
	account, err := repos.BankAccounts().FindDefault(ctx, r.TenantID)
	if err != nil {
		if shared.IsNotFound(err) {
			return uuid.Nil, LedgerSkipAccountMissing, nil
		}
		return uuid.Nil, "", err
	}

	id, err := repos.Ledger().RegisterPayment(ctx, ledger.RegisterPaymentInput{
		TenantID:      r.TenantID,
		BankAccountID: account.ID,
		TitleID:       title.ID,
		Amount:        p.Amount,
		Date:          p.PaymentDate,
		Type:          ledger.MovementIncome,
		Description:   s.opts.paymentDescription(r.ID, p.Amount),
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, "", nil
}

// revertInLedger reverts the movement linked to the payment. Payments without
// a stored link fall back to matching title, amount, date and INCOME type.
func (s *ReconciliationService) revertInLedger(ctx context.Context, repos TransactionalRepositories, r *rental.Rental, p *rental.Payment) (string, error) {
	if !s.opts.ledgerEnabled {
		return LedgerSkipDisabled, nil
	}

	movementID := uuid.Nil
	if p.MovementID != nil {
		movementID = *p.MovementID
	} else {
		title, err := repos.Titles().FindByRental(ctx, r.TenantID, r.ID)
		if err != nil {
			if shared.IsNotFound(err) {
				return LedgerSkipTitleMissing, nil
			}
			return "", err
		}
		mv, err := repos.Movements().FindMatching(ctx, r.TenantID, title.ID, p.Amount, p.PaymentDate, ledger.MovementIncome)
		if err != nil {
			if shared.IsNotFound(err) {
				return LedgerSkipMovementAbsent, nil
			}
			return "", err
		}
		movementID = mv.ID
	}

	if err := repos.Ledger().RevertPayment(ctx, r.TenantID, movementID); err != nil {
		if shared.IsNotFound(err) {
			return LedgerSkipMovementAbsent, nil
		}
		return "", err
	}
	return "", nil
}

func (s *ReconciliationService) reportLinkMissing(ctx context.Context, tenantID uuid.UUID, operation string, rentalID uuid.UUID, reason string) {
	s.opts.metrics.LedgerLinkMissing(ctx, tenantID, operation, reason)
	if reason == LedgerSkipDisabled {
		return
	}
	s.opts.logger.Warn("Ledger link missing",
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", rentalID.String()),
		zap.String("operation", operation),
		zap.String("reason", reason),
	)
}

func (s *ReconciliationService) logFailure(op string, tenantID, rentalID uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("tenant_id", tenantID.String()),
		zap.String("rental_id", rentalID.String()),
		zap.Error(err),
	}
	if shared.IsTransactionFailure(err) {
		s.opts.logger.Error("Failed to "+op, fields...)
		return
	}
	s.opts.logger.Debug("Rejected "+op, fields...)
}

// lockRental loads the rental under a row lock, mapping absence to NotFound
func lockRental(ctx context.Context, repos TransactionalRepositories, tenantID, rentalID uuid.UUID) (*rental.Rental, error) {
	r, err := repos.Rentals().FindByIDForUpdate(ctx, tenantID, rentalID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewNotFoundError("rental", rentalID.String())
		}
		return nil, err
	}
	return r, nil
}

func findRental(ctx context.Context, repo rental.RentalRepository, tenantID, rentalID uuid.UUID) (*rental.Rental, error) {
	r, err := repo.FindByIDForTenant(ctx, tenantID, rentalID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewNotFoundError("rental", rentalID.String())
		}
		return nil, err
	}
	return r, nil
}

// recomputeDerived re-reads every payment of the rental, sums them and
// persists amountPaid and paymentStatus
func recomputeDerived(ctx context.Context, repos TransactionalRepositories, r *rental.Rental, now time.Time) error {
	payments, err := repos.Payments().ListByRental(ctx, r.TenantID, r.ID)
	if err != nil {
		return err
	}
	r.ApplyPayments(rental.SumPayments(payments), now)
	return repos.Rentals().UpdateDerivedFields(ctx, r.TenantID, r.ID, r.AmountPaid, r.PaymentStatus)
}

// paymentDescription is the ledger line text: short rental ID and the amount
func (o options) paymentDescription(rentalID uuid.UUID, amount decimal.Decimal) string {
	value, _ := amount.Round(2).Float64()
	return o.printer.Sprintf("Rental payment %s %v",
		rentalID.String()[:8], currency.Symbol(o.currency.Amount(value)))
}
