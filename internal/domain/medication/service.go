package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/health-assistant/health-assistant/internal/platform/db"
)

// ErrNotFound covers both "does not exist" and "exists but belongs to
// another user". Callers must not be able to tell the two apart.
var ErrNotFound = errors.New("plan or record not found")

// ErrValidation marks caller mistakes. Handlers map it to 400; anything
// else that is not ErrNotFound is a storage failure and becomes a 500.
var ErrValidation = errors.New("invalid input")

// TxRunner executes fn inside a storage transaction. Production wiring binds
// this to the connection pool; tests pass a plain passthrough.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	plans   PlanRepository
	records RecordRepository
	gen     *Generator
	inTx    TxRunner
	now     func() time.Time
}

func NewService(plans PlanRepository, records RecordRepository, inTx TxRunner) *Service {
	return &Service{
		plans:   plans,
		records: records,
		gen:     NewGenerator(records),
		inTx:    inTx,
		now:     time.Now,
	}
}

var validRepeatTypes = map[string]bool{
	RepeatDaily: true, RepeatWeekly: true,
}

var validMarkStatuses = map[string]bool{
	StatusTaken: true, StatusMissed: true,
}

func validatePlan(p *Plan) error {
	if p.Name == "" || len([]rune(p.Name)) > 50 {
		return fmt.Errorf("%w: name must be 1-50 characters", ErrValidation)
	}
	if p.Dosage == "" {
		return fmt.Errorf("%w: dosage is required", ErrValidation)
	}
	if len(p.Times) == 0 {
		return fmt.Errorf("%w: at least one dose time is required", ErrValidation)
	}
	seen := make(map[string]bool, len(p.Times))
	for _, t := range p.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("%w: invalid dose time: %s", ErrValidation, t)
		}
		// The time list maps onto a unique index; a duplicate would only
		// fail later, inside the transaction.
		if seen[t] {
			return fmt.Errorf("%w: duplicate dose time: %s", ErrValidation, t)
		}
		seen[t] = true
	}
	if DateOnly(p.StartDate).After(DateOnly(p.EndDate)) {
		return fmt.Errorf("%w: start date must not be after end date", ErrValidation)
	}
	if !validRepeatTypes[p.RepeatType] {
		return fmt.Errorf("%w: invalid repeat type: %s", ErrValidation, p.RepeatType)
	}
	if p.RepeatType == RepeatWeekly {
		if len(p.RepeatDays) == 0 {
			return fmt.Errorf("%w: weekly plans need at least one weekday", ErrValidation)
		}
		for _, d := range p.RepeatDays {
			if d < 0 || d > 6 {
				return fmt.Errorf("%w: invalid weekday: %d", ErrValidation, d)
			}
		}
	}
	return nil
}

// -- Plans --

func (s *Service) CreatePlan(ctx context.Context, userID uuid.UUID, p *Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	p.UserID = userID
	if p.RepeatType == RepeatDaily {
		p.RepeatDays = nil
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		return s.plans.Create(ctx, p)
	})
}

// GetPlanList returns the caller's plans, optionally filtered by keyword
// (name substring) and status ("active" or "expired", judged against the
// plan's end date).
func (s *Service) GetPlanList(ctx context.Context, userID uuid.UUID, status, keyword string) ([]*Plan, error) {
	if status != "" && status != PlanStatusActive && status != PlanStatusExpired {
		return nil, fmt.Errorf("%w: invalid status: %s", ErrValidation, status)
	}
	plans, err := s.plans.ListByUser(ctx, userID, keyword)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return plans, nil
	}
	today := DateOnly(s.now())
	var filtered []*Plan
	for _, p := range plans {
		expired := DateOnly(p.EndDate).Before(today)
		if (status == PlanStatusExpired) == expired {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *Service) GetPlanDetail(ctx context.Context, userID, id uuid.UUID) (*Plan, error) {
	return s.ownedPlan(ctx, userID, id)
}

// UpdatePlan replaces the plan definition and reconciles future records.
// Scalar fields are overwritten, the time list and weekday set are replaced
// wholesale, future todo records from tomorrow on are deleted and regenerated
// under the new rule. Records dated today or earlier, and future records the
// user already acted on, are left untouched. The whole update is one
// transaction.
func (s *Service) UpdatePlan(ctx context.Context, userID, id uuid.UUID, def *Plan) error {
	if err := validatePlan(def); err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		existing, err := s.ownedPlan(ctx, userID, id)
		if err != nil {
			return err
		}

		existing.Name = def.Name
		existing.Dosage = def.Dosage
		existing.StartDate = DateOnly(def.StartDate)
		existing.EndDate = DateOnly(def.EndDate)
		existing.RepeatType = def.RepeatType
		existing.RemindEnabled = def.RemindEnabled
		existing.Times = def.Times
		existing.RepeatDays = def.RepeatDays
		if existing.RepeatType == RepeatDaily {
			existing.RepeatDays = nil
		}

		if err := s.plans.UpdateScalars(ctx, existing); err != nil {
			return err
		}
		if err := s.plans.ReplaceTimes(ctx, id, existing.Times); err != nil {
			return err
		}
		if err := s.plans.ReplaceRepeatDays(ctx, id, existing.RepeatDays); err != nil {
			return err
		}

		// Today's records stay as they are; reconciliation starts tomorrow.
		cutoff := DateOnly(s.now()).AddDate(0, 0, 1)
		if err := s.records.DeleteFutureTodo(ctx, id, cutoff); err != nil {
			return err
		}
		return s.gen.EnsureRange(ctx, existing, cutoff, existing.EndDate)
	})
}

func (s *Service) DeletePlan(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.ownedPlan(ctx, userID, id); err != nil {
		return err
	}
	return s.plans.SoftDelete(ctx, id)
}

func (s *Service) SetRemindEnabled(ctx context.Context, userID, id uuid.UUID, enabled bool) error {
	if _, err := s.ownedPlan(ctx, userID, id); err != nil {
		return err
	}
	return s.plans.SetRemindEnabled(ctx, id, enabled)
}

// -- Records --

// GetTodayRecords lazily generates the date's records for every active plan
// of the caller, then reads them back. There is no background scheduler;
// this read is what materializes the day's doses.
func (s *Service) GetTodayRecords(ctx context.Context, userID uuid.UUID, date time.Time) ([]*Record, error) {
	if err := s.EnsureRecords(ctx, userID, date); err != nil {
		return nil, err
	}
	return s.records.ListByUserAndDate(ctx, userID, date)
}

// EnsureRecords generates the date's records for the caller's active plans
// without reading them back.
func (s *Service) EnsureRecords(ctx context.Context, userID uuid.UUID, date time.Time) error {
	plans, err := s.plans.ListActiveRange(ctx, userID, date)
	if err != nil {
		return err
	}
	return s.gen.EnsureForDate(ctx, plans, date)
}

func (s *Service) ListRecords(ctx context.Context, userID uuid.UUID, f RecordFilter, limit, offset int) ([]*Record, int, error) {
	return s.records.ListFiltered(ctx, userID, f, limit, offset)
}

// MarkRecord sets a record to taken or missed, stamping the action time.
func (s *Service) MarkRecord(ctx context.Context, userID, id uuid.UUID, status string) error {
	if !validMarkStatuses[status] {
		return fmt.Errorf("%w: invalid status: %s", ErrValidation, status)
	}
	rec, err := s.ownedRecord(ctx, userID, id)
	if err != nil {
		return err
	}
	now := s.now()
	rec.Status = status
	rec.ActionAt = &now
	return s.records.Update(ctx, rec)
}

// AdjustRecord corrects a record after the fact: status, optional action
// time and note.
func (s *Service) AdjustRecord(ctx context.Context, userID, id uuid.UUID, status string, actionAt *time.Time, note *string) error {
	if status != StatusTodo && !validMarkStatuses[status] {
		return fmt.Errorf("%w: invalid status: %s", ErrValidation, status)
	}
	rec, err := s.ownedRecord(ctx, userID, id)
	if err != nil {
		return err
	}
	rec.Status = status
	if actionAt != nil {
		rec.ActionAt = actionAt
	}
	if note != nil {
		rec.Note = note
	}
	return s.records.Update(ctx, rec)
}

// -- ownership --

func (s *Service) ownedPlan(ctx context.Context, userID, id uuid.UUID) (*Plan, error) {
	p, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if p.UserID != userID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ownedRecord(ctx context.Context, userID, id uuid.UUID) (*Record, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load record: %w", err)
	}
	if _, err := s.ownedPlan(ctx, userID, rec.PlanID); err != nil {
		return nil, err
	}
	return rec, nil
}
