package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/ledger"
	"github.com/rental/backend/internal/domain/shared"
)

// memLedger posts movements against the in-memory accounts and titles
type memLedger struct {
	s *Store
}

func (l *memLedger) RegisterPayment(ctx context.Context, in ledger.RegisterPaymentInput) (uuid.UUID, error) {
	if err := l.s.fault(FaultRegisterPayment); err != nil {
		return uuid.Nil, err
	}
	if !in.Type.IsValid() || !in.Amount.IsPositive() {
		return uuid.Nil, shared.ErrInvalidInput
	}

	accounts := &accountRepo{s: l.s}
	titles := &titleRepo{s: l.s}
	account, err := accounts.FindByIDForUpdate(ctx, in.TenantID, in.BankAccountID)
	if err != nil {
		return uuid.Nil, err
	}
	title, err := titles.FindByIDForUpdate(ctx, in.TenantID, in.TitleID)
	if err != nil {
		return uuid.Nil, err
	}

	mv := ledger.FinancialMovement{
		ID:            uuid.New(),
		TenantID:      in.TenantID,
		BankAccountID: account.ID,
		TitleID:       title.ID,
		Amount:        in.Amount,
		Date:          in.Date,
		Type:          in.Type,
		Description:   in.Description,
		CreatedAt:     time.Now().UTC(),
	}
	l.s.data.movements[mv.ID] = mv

	if err := accounts.UpdateBalance(ctx, in.TenantID, account.ID, account.Balance.Add(mv.SignedAmount())); err != nil {
		return uuid.Nil, err
	}
	title.ApplyMovement(mv.SignedAmount())
	if err := titles.Update(ctx, title); err != nil {
		return uuid.Nil, err
	}
	return mv.ID, nil
}

func (l *memLedger) RevertPayment(ctx context.Context, tenantID, movementID uuid.UUID) error {
	if err := l.s.fault(FaultRevertPayment); err != nil {
		return err
	}
	movements := &movementRepo{s: l.s}
	mv, err := movements.FindByIDForTenant(ctx, tenantID, movementID)
	if err != nil {
		return err
	}

	accounts := &accountRepo{s: l.s}
	account, err := accounts.FindByIDForUpdate(ctx, tenantID, mv.BankAccountID)
	switch {
	case err == nil:
		if err := accounts.UpdateBalance(ctx, tenantID, account.ID, account.Balance.Sub(mv.SignedAmount())); err != nil {
			return err
		}
	case !shared.IsNotFound(err):
		return err
	}

	titles := &titleRepo{s: l.s}
	title, err := titles.FindByIDForUpdate(ctx, tenantID, mv.TitleID)
	switch {
	case err == nil:
		title.ApplyMovement(mv.SignedAmount().Neg())
		if err := titles.Update(ctx, title); err != nil {
			return err
		}
	case !shared.IsNotFound(err):
		return err
	}

	return movements.Delete(ctx, tenantID, movementID)
}

var _ ledger.Ledger = (*memLedger)(nil)
