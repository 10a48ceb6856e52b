package event

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOutboxRepository implements shared.OutboxRepository using GORM
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a new GormOutboxRepository
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

// Save inserts entries
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending returns the oldest pending entries
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return toEntries(rows), err
}

// FindRetryable returns failed entries whose next attempt is due
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error
	return toEntries(rows), err
}

// MarkProcessing claims the given entries for this worker. Rows locked by
// another worker are skipped, as are rows no longer pending or failed.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OutboxEntryModel
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, []shared.OutboxStatus{
				shared.OutboxStatusPending,
				shared.OutboxStatusFailed,
			}).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		entries := toEntries(rows)
		claimedIDs := make([]uuid.UUID, 0, len(entries))
		for _, e := range entries {
			if err := e.MarkProcessing(); err != nil {
				return err
			}
			claimedIDs = append(claimedIDs, e.ID)
		}
		if err := tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ?", claimedIDs).
			Updates(map[string]any{
				"status":     shared.OutboxStatusProcessing,
				"updated_at": time.Now().UTC(),
			}).Error; err != nil {
			return err
		}
		claimed = entries
		return nil
	})
	return claimed, err
}

// Update writes every column of the entry
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("id = ?", entry.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(models.OutboxEntryModelFromDomain(entry))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteSentBefore removes delivered entries processed before the cutoff
func (r *GormOutboxRepository) DeleteSentBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return result.RowsAffected, result.Error
}

// FindDead pages dead-lettered entries, most recently failed first
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	f := shared.Filter{Page: page, PageSize: pageSize}.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Where("status = ?", shared.OutboxStatusDead).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.OutboxEntryModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset(f.Offset()).
		Limit(f.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toEntries(rows), total, nil
}

// FindByID loads one entry
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var m models.OutboxEntryModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

// CountByStatus returns the number of entries per status
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.OutboxEntryModel{}).
		Select("status, count(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func toEntries(rows []models.OutboxEntryModel) []*shared.OutboxEntry {
	out := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
