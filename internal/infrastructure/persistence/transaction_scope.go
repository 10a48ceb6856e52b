package persistence

import (
	"context"

	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements apprental.TransactionScope using GORM
// transactions. Every repository handed to fn shares the transaction, and
// domain events go to the outbox through the same handle.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope. A nil outbox
// discards recorded events.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute runs fn within a database transaction. The transaction is
// rolled back if fn returns an error or panics, committed otherwise.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos apprental.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, outbox: s.outbox})
	})
}

type gormTransactionalRepositories struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (r *gormTransactionalRepositories) Rentals() rental.RentalRepository {
	return NewGormRentalRepository(r.tx)
}

func (r *gormTransactionalRepositories) Payments() rental.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Titles() ledger.TitleRepository {
	return NewGormTitleRepository(r.tx)
}

func (r *gormTransactionalRepositories) BankAccounts() ledger.BankAccountRepository {
	return NewGormBankAccountRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() ledger.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) Ledger() ledger.Ledger {
	return NewGormLedger(r.tx)
}

func (r *gormTransactionalRepositories) Events() apprental.EventRecorder {
	return outboxRecorder{tx: r.tx, outbox: r.outbox}
}

type outboxRecorder struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (o outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if o.outbox == nil || len(events) == 0 {
		return nil
	}
	return o.outbox.SaveEvents(ctx, o.tx, events...)
}

var (
	_ apprental.TransactionScope          = (*GormTransactionScope)(nil)
	_ apprental.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
