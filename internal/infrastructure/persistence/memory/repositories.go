package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

func copyRental(r rental.Rental) rental.Rental {
	c := r
	c.Items = append([]rental.LineItem(nil), r.Items...)
	c.DeliveredAt = copyTime(r.DeliveredAt)
	c.ReturnedAt = copyTime(r.ReturnedAt)
	c.CancelledAt = copyTime(r.CancelledAt)
	c.ClearDomainEvents()
	return c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type rentalRepo struct {
	s      *Store
	locked bool
}

func (r *rentalRepo) get(tenantID, id uuid.UUID) (*rental.Rental, error) {
	v, ok := r.s.data.rentals[id]
	if !ok || v.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	c := copyRental(v)
	return &c, nil
}

func (r *rentalRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (out *rental.Rental, err error) {
	r.s.withLock(r.locked, func() { out, err = r.get(tenantID, id) })
	return out, err
}

// FindByIDForUpdate relies on the store lock Execute already holds
func (r *rentalRepo) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*rental.Rental, error) {
	return r.FindByIDForTenant(ctx, tenantID, id)
}

func (r *rentalRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, filter rental.RentalFilter) (out []rental.Rental, total int64, err error) {
	filter.Filter = filter.Filter.Normalize()
	r.s.withLock(r.locked, func() {
		matched := make([]rental.Rental, 0)
		for _, v := range r.s.data.rentals {
			if v.TenantID != tenantID {
				continue
			}
			if filter.Status != "" && v.Status != filter.Status {
				continue
			}
			if filter.PaymentStatus != "" && v.PaymentStatus != filter.PaymentStatus {
				continue
			}
			if filter.CustomerID != nil && v.CustomerID != *filter.CustomerID {
				continue
			}
			if filter.EndingBefore != nil && !v.EndDate.Before(*filter.EndingBefore) {
				continue
			}
			matched = append(matched, copyRental(v))
		}
		sort.Slice(matched, func(i, j int) bool {
			less := lessBy(filter.OrderBy, matched[i], matched[j])
			if filter.OrderDir == "asc" {
				return less
			}
			return !less
		})
		total = int64(len(matched))
		start := filter.Offset()
		if start > len(matched) {
			start = len(matched)
		}
		end := start + filter.PageSize
		if end > len(matched) {
			end = len(matched)
		}
		out = matched[start:end]
	})
	return out, total, nil
}

func lessBy(field string, a, b rental.Rental) bool {
	switch field {
	case "start_date":
		return a.StartDate.Before(b.StartDate)
	case "end_date":
		return a.EndDate.Before(b.EndDate)
	case "total_amount":
		return a.TotalAmount.LessThan(b.TotalAmount)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func (r *rentalRepo) Create(_ context.Context, v *rental.Rental) error {
	r.s.withLock(r.locked, func() { r.s.data.rentals[v.ID] = copyRental(*v) })
	return nil
}

func (r *rentalRepo) Update(_ context.Context, v *rental.Rental) (err error) {
	r.s.withLock(r.locked, func() {
		cur, ok := r.s.data.rentals[v.ID]
		if !ok || cur.TenantID != v.TenantID {
			err = shared.ErrNotFound
			return
		}
		if cur.Version != v.Version-1 {
			err = shared.ErrConcurrencyConflict
			return
		}
		r.s.data.rentals[v.ID] = copyRental(*v)
	})
	return err
}

func (r *rentalRepo) UpdateDerivedFields(_ context.Context, tenantID, id uuid.UUID, amountPaid decimal.Decimal, status rental.PaymentStatus) (err error) {
	r.s.withLock(r.locked, func() {
		if err = r.s.fault(FaultUpdateDerived); err != nil {
			return
		}
		cur, ok := r.s.data.rentals[id]
		if !ok || cur.TenantID != tenantID {
			err = shared.ErrNotFound
			return
		}
		cur.AmountPaid = amountPaid
		cur.PaymentStatus = status
		r.s.data.rentals[id] = cur
	})
	return err
}

func (r *rentalRepo) FindOverdueCandidates(_ context.Context, now time.Time, limit int) (out []rental.OverdueCandidate, err error) {
	r.s.withLock(r.locked, func() {
		for _, v := range r.s.data.rentals {
			if !v.EndDate.Before(now) {
				continue
			}
			if v.PaymentStatus != rental.PaymentPending && v.PaymentStatus != rental.PaymentPartial {
				continue
			}
			out = append(out, rental.OverdueCandidate{TenantID: v.TenantID, RentalID: v.ID})
			if limit > 0 && len(out) >= limit {
				return
			}
		}
	})
	return out, nil
}

type paymentRepo struct {
	s      *Store
	locked bool
}

func (p *paymentRepo) Create(_ context.Context, v *rental.Payment) (err error) {
	p.s.withLock(p.locked, func() {
		if err = p.s.fault(FaultCreatePayment); err != nil {
			return
		}
		p.s.data.payments[v.ID] = *v
	})
	return err
}

func (p *paymentRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (out *rental.Payment, err error) {
	p.s.withLock(p.locked, func() {
		v, ok := p.s.data.payments[id]
		if !ok || v.TenantID != tenantID {
			err = shared.ErrNotFound
			return
		}
		out = &v
	})
	return out, err
}

func (p *paymentRepo) ListByRental(_ context.Context, tenantID, rentalID uuid.UUID) (out []rental.Payment, err error) {
	p.s.withLock(p.locked, func() {
		out = make([]rental.Payment, 0)
		for _, v := range p.s.data.payments {
			if v.TenantID == tenantID && v.RentalID == rentalID {
				out = append(out, v)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].PaymentDate.Equal(out[j].PaymentDate) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].PaymentDate.Before(out[j].PaymentDate)
		})
	})
	return out, nil
}

func (p *paymentRepo) DeleteByID(_ context.Context, tenantID, id uuid.UUID) (err error) {
	p.s.withLock(p.locked, func() {
		if err = p.s.fault(FaultDeletePayment); err != nil {
			return
		}
		v, ok := p.s.data.payments[id]
		if !ok || v.TenantID != tenantID {
			err = shared.ErrNotFound
			return
		}
		delete(p.s.data.payments, id)
	})
	return err
}

// The ledger repositories are only reachable inside Execute, so they never lock.

type titleRepo struct{ s *Store }

func (t *titleRepo) FindByRental(_ context.Context, tenantID, rentalID uuid.UUID) (*ledger.FinancialTitle, error) {
	var found *ledger.FinancialTitle
	for _, v := range t.s.data.titles {
		if v.TenantID != tenantID || v.RentalID != rentalID {
			continue
		}
		if found == nil || v.CreatedAt.Before(found.CreatedAt) {
			c := v
			found = &c
		}
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	return found, nil
}

func (t *titleRepo) FindByIDForUpdate(_ context.Context, tenantID, id uuid.UUID) (*ledger.FinancialTitle, error) {
	if err := t.s.fault(FaultLockTitle); err != nil {
		return nil, err
	}
	v, ok := t.s.data.titles[id]
	if !ok || v.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (t *titleRepo) Create(_ context.Context, v *ledger.FinancialTitle) error {
	t.s.data.titles[v.ID] = *v
	return nil
}

func (t *titleRepo) Update(_ context.Context, v *ledger.FinancialTitle) error {
	if _, ok := t.s.data.titles[v.ID]; !ok {
		return shared.ErrNotFound
	}
	t.s.data.titles[v.ID] = *v
	return nil
}

type accountRepo struct{ s *Store }

func (a *accountRepo) FindDefault(_ context.Context, tenantID uuid.UUID) (*ledger.BankAccount, error) {
	for _, v := range a.s.data.accounts {
		if v.TenantID == tenantID && v.IsDefault {
			c := v
			return &c, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (a *accountRepo) FindByIDForUpdate(_ context.Context, tenantID, id uuid.UUID) (*ledger.BankAccount, error) {
	if err := a.s.fault(FaultLockAccount); err != nil {
		return nil, err
	}
	v, ok := a.s.data.accounts[id]
	if !ok || v.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (a *accountRepo) Create(_ context.Context, v *ledger.BankAccount) error {
	a.s.data.accounts[v.ID] = *v
	return nil
}

func (a *accountRepo) UpdateBalance(_ context.Context, tenantID, id uuid.UUID, balance decimal.Decimal) error {
	v, ok := a.s.data.accounts[id]
	if !ok || v.TenantID != tenantID {
		return shared.ErrNotFound
	}
	v.Balance = balance
	v.UpdatedAt = time.Now().UTC()
	a.s.data.accounts[id] = v
	return nil
}

type movementRepo struct{ s *Store }

func (m *movementRepo) Create(_ context.Context, v *ledger.FinancialMovement) error {
	m.s.data.movements[v.ID] = *v
	return nil
}

func (m *movementRepo) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*ledger.FinancialMovement, error) {
	v, ok := m.s.data.movements[id]
	if !ok || v.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &v, nil
}

func (m *movementRepo) FindMatching(_ context.Context, tenantID, titleID uuid.UUID, amount decimal.Decimal, date time.Time, movementType ledger.MovementType) (*ledger.FinancialMovement, error) {
	linked := make(map[uuid.UUID]bool)
	for _, p := range m.s.data.payments {
		if p.MovementID != nil {
			linked[*p.MovementID] = true
		}
	}
	var found *ledger.FinancialMovement
	day := rental.DateOnly(date)
	for _, v := range m.s.data.movements {
		if v.TenantID != tenantID || v.TitleID != titleID || v.Type != movementType || linked[v.ID] {
			continue
		}
		if !v.Amount.Equal(amount) || !rental.DateOnly(v.Date).Equal(day) {
			continue
		}
		if found == nil || v.CreatedAt.Before(found.CreatedAt) {
			c := v
			found = &c
		}
	}
	if found == nil {
		return nil, shared.ErrNotFound
	}
	return found, nil
}

func (m *movementRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	v, ok := m.s.data.movements[id]
	if !ok || v.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(m.s.data.movements, id)
	return nil
}
