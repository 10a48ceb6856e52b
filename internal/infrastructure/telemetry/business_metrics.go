package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BusinessMetrics records rental and payment activity. It satisfies the
// metrics sinks of the rental services and of the rental event handler.
type BusinessMetrics struct {
	logger *zap.Logger

	paymentsTotal       *Counter
	paymentAmountCents  *Counter
	paymentsReverted    *Counter
	ledgerLinkMissing   *Counter
	statusChanges       *Counter
	rentalsCreated      *Counter
	overdueRefreshed    *Counter
	outboxDelivered     *Counter
	outboxFailed        *Counter
	outstandingReceived *FloatGauge
	overdueRentals      *Gauge

	receivables ReceivablesProvider
	stop        chan struct{}
	stopOnce    sync.Once
	startOnce   sync.Once
}

// ReceivableSnapshot is one tenant's open balance
type ReceivableSnapshot struct {
	Outstanding  decimal.Decimal
	OverdueCount int64
}

// ReceivablesProvider supplies per-tenant balances for the periodic gauges
type ReceivablesProvider interface {
	Receivables(ctx context.Context) (map[uuid.UUID]ReceivableSnapshot, error)
}

// BusinessMetricsConfig configures NewBusinessMetrics
type BusinessMetricsConfig struct {
	Meter       metric.Meter
	Logger      *zap.Logger
	Receivables ReceivablesProvider
}

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = &MetricsError{Op: "NewBusinessMetrics", Err: "meter cannot be nil"}

// MetricsError describes a metrics setup failure
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}

// NewBusinessMetrics creates the rental instruments
func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BusinessMetrics{logger: logger, receivables: cfg.Receivables, stop: make(chan struct{})}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&bm.paymentsTotal, "rental_payments_total", "Payments recorded", "{payment}"},
		{&bm.paymentAmountCents, "rental_payment_amount_cents_total", "Sum of recorded payments in cents", "{cent}"},
		{&bm.paymentsReverted, "rental_payments_reverted_total", "Payments deleted", "{payment}"},
		{&bm.ledgerLinkMissing, "rental_ledger_link_missing_total", "Payment writes that skipped the ledger", "{payment}"},
		{&bm.statusChanges, "rental_status_changes_total", "Rental lifecycle transitions", "{transition}"},
		{&bm.rentalsCreated, "rental_created_total", "Rentals created", "{rental}"},
		{&bm.overdueRefreshed, "rental_overdue_refreshed_total", "Rentals marked overdue by the sweep", "{rental}"},
		{&bm.outboxDelivered, "rental_outbox_delivered_total", "Outbox events delivered to the bus", "{event}"},
		{&bm.outboxFailed, "rental_outbox_failed_total", "Outbox delivery attempts that failed", "{event}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	var err error
	if bm.outstandingReceived, err = NewFloatGauge(cfg.Meter, "rental_receivables_outstanding", "Open rental balance per tenant", "{BRL}"); err != nil {
		return nil, err
	}
	if bm.overdueRentals, err = NewGauge(cfg.Meter, "rental_overdue_rentals", "Rentals with an overdue balance per tenant", "{rental}"); err != nil {
		return nil, err
	}
	return bm, nil
}

func cents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// PaymentRecorded counts a recorded payment and its amount
func (bm *BusinessMetrics) PaymentRecorded(ctx context.Context, tenantID uuid.UUID, method string, amount decimal.Decimal, ledgerLinked bool) {
	attrs := []attribute.KeyValue{
		AttrTenantID.String(tenantID.String()),
		AttrPaymentMethod.String(method),
		AttrLedgerLinked.Bool(ledgerLinked),
	}
	bm.paymentsTotal.Inc(ctx, attrs...)
	bm.paymentAmountCents.Add(ctx, cents(amount), attrs[:2]...)
}

// PaymentReverted counts a deleted payment
func (bm *BusinessMetrics) PaymentReverted(ctx context.Context, tenantID uuid.UUID, _ decimal.Decimal, ledgerReverted bool) {
	bm.paymentsReverted.Inc(ctx, AttrTenantID.String(tenantID.String()), AttrLedgerLinked.Bool(ledgerReverted))
}

// LedgerLinkMissing counts a payment write that did not touch the ledger
func (bm *BusinessMetrics) LedgerLinkMissing(ctx context.Context, tenantID uuid.UUID, operation, reason string) {
	bm.ledgerLinkMissing.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOperation.String(operation),
		AttrReason.String(reason),
	)
}

// StatusChanged counts a lifecycle transition
func (bm *BusinessMetrics) StatusChanged(ctx context.Context, tenantID uuid.UUID, from, to string) {
	bm.statusChanges.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrFromStatus.String(from),
		AttrToStatus.String(to),
	)
}

// RentalCreated counts a new rental
func (bm *BusinessMetrics) RentalCreated(ctx context.Context, tenantID uuid.UUID, _ decimal.Decimal) {
	bm.rentalsCreated.Inc(ctx, AttrTenantID.String(tenantID.String()))
}

// OverdueRefreshed counts rentals the overdue sweep changed
func (bm *BusinessMetrics) OverdueRefreshed(ctx context.Context, count int) {
	if count > 0 {
		bm.overdueRefreshed.Add(ctx, int64(count))
	}
}

// OutboxDelivered counts an event handed to the bus
func (bm *BusinessMetrics) OutboxDelivered(ctx context.Context, eventType string) {
	bm.outboxDelivered.Inc(ctx, AttrEventType.String(eventType))
}

// OutboxFailed counts a failed delivery attempt; dead marks the last one
func (bm *BusinessMetrics) OutboxFailed(ctx context.Context, eventType string, dead bool) {
	bm.outboxFailed.Inc(ctx, AttrEventType.String(eventType), AttrDeadLetter.Bool(dead))
}

// StartPeriodicCollection samples receivables every interval until Stop
func (bm *BusinessMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if bm.receivables == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	bm.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				bm.CollectReceivables(ctx)
				select {
				case <-ticker.C:
				case <-bm.stop:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	})
}

// CollectReceivables records one sample of the receivables gauges
func (bm *BusinessMetrics) CollectReceivables(ctx context.Context) {
	if bm.receivables == nil {
		return
	}
	snapshots, err := bm.receivables.Receivables(ctx)
	if err != nil {
		bm.logger.Warn("Failed to collect receivables metrics", zap.Error(err))
		return
	}
	for tenantID, s := range snapshots {
		outstanding, _ := s.Outstanding.Float64()
		bm.outstandingReceived.Record(ctx, outstanding, AttrTenantID.String(tenantID.String()))
		bm.overdueRentals.Record(ctx, s.OverdueCount, AttrTenantID.String(tenantID.String()))
	}
}

// Stop ends periodic collection
func (bm *BusinessMetrics) Stop() {
	bm.stopOnce.Do(func() { close(bm.stop) })
}
