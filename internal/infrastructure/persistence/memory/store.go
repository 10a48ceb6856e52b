// Package memory is an in-process implementation of the rental unit of work.
// Every Execute holds one store-wide lock, standing in for the row lock, and
// restores a snapshot when fn fails so rollback semantics match the SQL store.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
)

// Fault names an operation that can be made to fail
type Fault string

const (
	FaultRegisterPayment Fault = "ledger.register_payment"
	FaultRevertPayment   Fault = "ledger.revert_payment"
	FaultCreatePayment   Fault = "payments.create"
	FaultDeletePayment   Fault = "payments.delete"
	FaultUpdateDerived   Fault = "rentals.update_derived"
	FaultRecordEvents    Fault = "events.record"
	FaultLockAccount     Fault = "accounts.lock"
	FaultLockTitle       Fault = "titles.lock"
)

// ErrInjected is the default error returned by an injected fault
var ErrInjected = errors.New("memory: injected fault")

type state struct {
	rentals   map[uuid.UUID]rental.Rental
	payments  map[uuid.UUID]rental.Payment
	titles    map[uuid.UUID]ledger.FinancialTitle
	accounts  map[uuid.UUID]ledger.BankAccount
	movements map[uuid.UUID]ledger.FinancialMovement
	events    []shared.DomainEvent
}

func newState() state {
	return state{
		rentals:   make(map[uuid.UUID]rental.Rental),
		payments:  make(map[uuid.UUID]rental.Payment),
		titles:    make(map[uuid.UUID]ledger.FinancialTitle),
		accounts:  make(map[uuid.UUID]ledger.BankAccount),
		movements: make(map[uuid.UUID]ledger.FinancialMovement),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.rentals {
		c.rentals[k] = copyRental(v)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.titles {
		c.titles[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.movements {
		c.movements[k] = v
	}
	c.events = append([]shared.DomainEvent(nil), s.events...)
	return c
}

// Store holds all rental and ledger data in memory
type Store struct {
	mu     sync.Mutex
	data   state
	faults map[Fault]error
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{data: newState(), faults: make(map[Fault]error)}
}

// Execute runs fn under the store lock. Changes are discarded if fn fails.
func (s *Store) Execute(ctx context.Context, fn func(repos apprental.TransactionalRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&txRepos{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// FailNext makes the next call of op return err (ErrInjected when nil)
func (s *Store) FailNext(op Fault, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault consumes a pending fault; callers hold s.mu
func (s *Store) fault(op Fault) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)
	return err
}

// Rentals returns a repository for reads outside a unit of work
func (s *Store) Rentals() rental.RentalRepository {
	return &rentalRepo{s: s, locked: true}
}

// Payments returns a repository for reads outside a unit of work
func (s *Store) Payments() rental.PaymentRepository {
	return &paymentRepo{s: s, locked: true}
}

// Seed helpers used by tests and local demos.

// PutRental stores r as-is
func (s *Store) PutRental(r *rental.Rental) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.rentals[r.ID] = copyRental(*r)
}

// PutTitle stores a receivable title
func (s *Store) PutTitle(t *ledger.FinancialTitle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.titles[t.ID] = *t
}

// PutBankAccount stores a bank account
func (s *Store) PutBankAccount(a *ledger.BankAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.accounts[a.ID] = *a
}

// BankAccount returns a copy of the account
func (s *Store) BankAccount(id uuid.UUID) (ledger.BankAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data.accounts[id]
	return a, ok
}

// Title returns a copy of the title
func (s *Store) Title(id uuid.UUID) (ledger.FinancialTitle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.titles[id]
	return t, ok
}

// Movements returns every movement of the tenant
func (s *Store) Movements(tenantID uuid.UUID) []ledger.FinancialMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.FinancialMovement, 0)
	for _, m := range s.data.movements {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	return out
}

// RecordedEvents returns the events committed so far
func (s *Store) RecordedEvents() []shared.DomainEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shared.DomainEvent(nil), s.data.events...)
}

// withLock runs fn holding s.mu unless the caller already holds it
func (s *Store) withLock(locked bool, fn func()) {
	if locked {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	fn()
}

type txRepos struct {
	s *Store
}

func (t *txRepos) Rentals() rental.RentalRepository           { return &rentalRepo{s: t.s} }
func (t *txRepos) Payments() rental.PaymentRepository         { return &paymentRepo{s: t.s} }
func (t *txRepos) Titles() ledger.TitleRepository             { return &titleRepo{s: t.s} }
func (t *txRepos) BankAccounts() ledger.BankAccountRepository { return &accountRepo{s: t.s} }
func (t *txRepos) Movements() ledger.MovementRepository       { return &movementRepo{s: t.s} }
func (t *txRepos) Ledger() ledger.Ledger                      { return &memLedger{s: t.s} }
func (t *txRepos) Events() apprental.EventRecorder            { return &eventRecorder{s: t.s} }

type eventRecorder struct {
	s *Store
}

func (e *eventRecorder) Record(_ context.Context, events ...shared.DomainEvent) error {
	if err := e.s.fault(FaultRecordEvents); err != nil {
		return err
	}
	e.s.data.events = append(e.s.data.events, events...)
	return nil
}

var (
	_ apprental.TransactionScope          = (*Store)(nil)
	_ apprental.TransactionalRepositories = (*txRepos)(nil)
)
