package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// OutboxService exposes dead-letter inspection and requeue for operators
type OutboxService struct {
	repo   shared.OutboxRepository
	logger *zap.Logger
}

// NewOutboxService creates a new outbox service
func NewOutboxService(repo shared.OutboxRepository, logger *zap.Logger) *OutboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OutboxService{repo: repo, logger: logger}
}

// OutboxEntryDTO is the operator view of an outbox entry
type OutboxEntryDTO struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// OutboxFilter pages dead-letter listings
type OutboxFilter struct {
	Page     int `form:"page,omitempty" binding:"omitempty,min=1"`
	PageSize int `form:"page_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// OutboxStatsDTO counts entries per status
type OutboxStatsDTO struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// GetDeadLetterEntries pages dead-lettered entries
func (s *OutboxService) GetDeadLetterEntries(ctx context.Context, filter OutboxFilter) (*shared.Paginated[OutboxEntryDTO], error) {
	f := shared.Filter{Page: filter.Page, PageSize: filter.PageSize}.Normalize()

	entries, total, err := s.repo.FindDead(ctx, f.Page, f.PageSize)
	if err != nil {
		s.logger.Error("Failed to find dead letter entries", zap.Error(err))
		return nil, shared.NewTransactionFailure(err)
	}

	dtos := make([]OutboxEntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = toOutboxEntryDTO(entry)
	}
	result := shared.NewPaginated(dtos, total, f.Page, f.PageSize)
	return &result, nil
}

// GetEntry loads one entry
func (s *OutboxService) GetEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryDeadEntry requeues a dead entry with a fresh retry budget
func (s *OutboxService) RetryDeadEntry(ctx context.Context, id uuid.UUID) (*OutboxEntryDTO, error) {
	entry, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Requeue(); err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidState, err.Error()).
			WithDetail("status", string(entry.Status))
	}
	if err := s.repo.Update(ctx, entry); err != nil {
		s.logger.Error("Failed to requeue outbox entry", zap.String("id", id.String()), zap.Error(err))
		return nil, shared.NewTransactionFailure(err)
	}

	s.logger.Info("Dead letter entry requeued",
		zap.String("id", id.String()),
		zap.String("event_type", entry.EventType),
		zap.String("tenant_id", entry.TenantID.String()),
	)
	dto := toOutboxEntryDTO(entry)
	return &dto, nil
}

// RetryAllDeadEntries requeues every dead entry and returns how many moved
func (s *OutboxService) RetryAllDeadEntries(ctx context.Context) (int64, error) {
	const batch = 100
	var count int64

	// requeued entries leave the dead set, so the first page is re-read until
	// it is empty or a pass makes no progress
	for {
		entries, _, err := s.repo.FindDead(ctx, 1, batch)
		if err != nil {
			s.logger.Error("Failed to find dead letter entries", zap.Error(err))
			return count, shared.NewTransactionFailure(err)
		}
		if len(entries) == 0 {
			break
		}

		moved := 0
		for _, entry := range entries {
			if err := entry.Requeue(); err != nil {
				continue
			}
			if err := s.repo.Update(ctx, entry); err != nil {
				s.logger.Error("Failed to requeue outbox entry", zap.String("id", entry.ID.String()), zap.Error(err))
				continue
			}
			moved++
		}
		count += int64(moved)
		if moved == 0 || len(entries) < batch {
			break
		}
	}

	s.logger.Info("Requeued dead letter entries", zap.Int64("count", count))
	return count, nil
}

// GetStats counts entries per status
func (s *OutboxService) GetStats(ctx context.Context) (*OutboxStatsDTO, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		s.logger.Error("Failed to get outbox stats", zap.Error(err))
		return nil, shared.NewTransactionFailure(err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	return &OutboxStatsDTO{
		Pending:    counts[shared.OutboxStatusPending],
		Processing: counts[shared.OutboxStatusProcessing],
		Sent:       counts[shared.OutboxStatusSent],
		Failed:     counts[shared.OutboxStatusFailed],
		Dead:       counts[shared.OutboxStatusDead],
		Total:      total,
	}, nil
}

func (s *OutboxService) find(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	entry, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewNotFoundError("outbox entry", id.String())
		}
		s.logger.Error("Failed to find outbox entry", zap.String("id", id.String()), zap.Error(err))
		return nil, shared.NewTransactionFailure(err)
	}
	return entry, nil
}

func toOutboxEntryDTO(entry *shared.OutboxEntry) OutboxEntryDTO {
	return OutboxEntryDTO{
		ID:            entry.ID,
		TenantID:      entry.TenantID,
		EventID:       entry.EventID,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		AggregateType: entry.AggregateType,
		Status:        string(entry.Status),
		RetryCount:    entry.RetryCount,
		MaxRetries:    entry.MaxRetries,
		LastError:     entry.LastError,
		NextRetryAt:   entry.NextRetryAt,
		ProcessedAt:   entry.ProcessedAt,
		CreatedAt:     entry.CreatedAt,
		UpdatedAt:     entry.UpdatedAt,
	}
}
