package rental

import (
	"context"

	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
)

// TransactionScope runs a unit of work atomically. If fn returns an error
// every write made through the repositories it received is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// EventRecorder stores domain events as part of the current unit of work
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}

// TransactionalRepositories exposes every store a rental mutation touches.
// All of them share one underlying transaction.
//
// The rental row is the contention point: mutations lock it with
// Rentals().FindByIDForUpdate before any other write.
type TransactionalRepositories interface {
	Rentals() rental.RentalRepository
	Payments() rental.PaymentRepository
	Titles() ledger.TitleRepository
	BankAccounts() ledger.BankAccountRepository
	Movements() ledger.MovementRepository
	// Ledger posts movements through the same transaction
	Ledger() ledger.Ledger
	Events() EventRecorder
}

// NoOpTransactionScope hands fixed repositories to fn without a transaction.
// It is meant for tests that mock every store.
type NoOpTransactionScope struct {
	repos TransactionalRepositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over repos
func NewNoOpTransactionScope(repos TransactionalRepositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute calls fn directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s.repos)
}

// StaticRepositories is a plain TransactionalRepositories value
type StaticRepositories struct {
	RentalRepo      rental.RentalRepository
	PaymentRepo     rental.PaymentRepository
	TitleRepo       ledger.TitleRepository
	BankAccountRepo ledger.BankAccountRepository
	MovementRepo    ledger.MovementRepository
	LedgerAdapter   ledger.Ledger
	Recorder        EventRecorder
}

func (r StaticRepositories) Rentals() rental.RentalRepository           { return r.RentalRepo }
func (r StaticRepositories) Payments() rental.PaymentRepository         { return r.PaymentRepo }
func (r StaticRepositories) Titles() ledger.TitleRepository             { return r.TitleRepo }
func (r StaticRepositories) BankAccounts() ledger.BankAccountRepository { return r.BankAccountRepo }
func (r StaticRepositories) Movements() ledger.MovementRepository       { return r.MovementRepo }
func (r StaticRepositories) Ledger() ledger.Ledger                      { return r.LedgerAdapter }
func (r StaticRepositories) Events() EventRecorder                      { return r.Recorder }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = StaticRepositories{}
)

// finishTx maps a unit-of-work error to what callers see: domain errors pass
// through, anything else becomes a TransactionFailure holding the cause.
func finishTx(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := shared.AsDomainError(err); ok {
		return err
	}
	return shared.NewTransactionFailure(err)
}
