package medication

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanRepository persists plan definitions together with their time-of-day
// list and weekly-day set. Create and the Replace methods manage the child
// rows; GetByID and list methods return plans with children loaded.
type PlanRepository interface {
	Create(ctx context.Context, p *Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, keyword string) ([]*Plan, error)
	ListActiveRange(ctx context.Context, userID uuid.UUID, date time.Time) ([]*Plan, error)
	UpdateScalars(ctx context.Context, p *Plan) error
	ReplaceTimes(ctx context.Context, planID uuid.UUID, times []string) error
	ReplaceRepeatDays(ctx context.Context, planID uuid.UUID, days []int) error
	SetRemindEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// RecordRepository persists dose records. BatchInsert must tolerate
// concurrent duplicate inserts of the same (plan, date, time) key: the table
// carries a uniqueness constraint and conflicting rows are skipped rather
// than failing the batch.
type RecordRepository interface {
	Exists(ctx context.Context, planID uuid.UUID, date time.Time, timeOfDay string) (bool, error)
	BatchInsert(ctx context.Context, records []*Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	ListByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*Record, error)
	ListFiltered(ctx context.Context, userID uuid.UUID, f RecordFilter, limit, offset int) ([]*Record, int, error)
	Update(ctx context.Context, r *Record) error
	DeleteFutureTodo(ctx context.Context, planID uuid.UUID, cutoff time.Time) error
	ListActedDates(ctx context.Context, planID uuid.UUID, from, to time.Time) ([]time.Time, error)
}
