package medication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generator expands plans into the dose records that should exist. It never
// mutates existing records: for each candidate (plan, date, time) key it
// checks the store, stages a new todo record only when the key is absent, and
// persists all staged records in one batch insert. The store's uniqueness
// constraint on (plan, date, time) is the authoritative guard against
// concurrent generation races.
type Generator struct {
	records RecordRepository
}

func NewGenerator(records RecordRepository) *Generator {
	return &Generator{records: records}
}

// EnsureForDate generates today-style records: every plan active on the date
// contributes one record per time of day.
func (g *Generator) EnsureForDate(ctx context.Context, plans []*Plan, date time.Time) error {
	return g.ensure(ctx, plans, DateOnly(date), DateOnly(date), nil)
}

// EnsureRange generates records for one plan across [from, to]. Used by the
// plan reconciler after an edit. Days the user already acted on under the old
// schedule are left alone: no new times are added to a date carrying a taken
// or missed record.
func (g *Generator) EnsureRange(ctx context.Context, p *Plan, from, to time.Time) error {
	from, to = DateOnly(from), DateOnly(to)
	if to.Before(from) {
		return nil
	}
	acted, err := g.records.ListActedDates(ctx, p.ID, from, to)
	if err != nil {
		return fmt.Errorf("list acted dates: %w", err)
	}
	skip := make(map[string]bool, len(acted))
	for _, d := range acted {
		skip[DateOnly(d).Format("2006-01-02")] = true
	}
	return g.ensure(ctx, []*Plan{p}, from, to, skip)
}

func (g *Generator) ensure(ctx context.Context, plans []*Plan, from, to time.Time, skipDates map[string]bool) error {
	if to.Before(from) {
		return nil
	}

	seen := make(map[string]bool)
	var staged []*Record

	for _, p := range plans {
		if p.DeletedAt != nil {
			continue
		}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			if !IsActiveOn(p, d) {
				continue
			}
			if skipDates[d.Format("2006-01-02")] {
				continue
			}
			for _, t := range p.Times {
				key := recordKey(p.ID, d, t)
				if seen[key] {
					continue
				}
				seen[key] = true

				exists, err := g.records.Exists(ctx, p.ID, d, t)
				if err != nil {
					return fmt.Errorf("check record %s: %w", key, err)
				}
				if exists {
					continue
				}

				staged = append(staged, &Record{
					PlanID:   p.ID,
					Date:     d,
					Time:     t,
					Status:   StatusTodo,
					PlanName: p.Name,
					Dosage:   p.Dosage,
				})
			}
		}
	}

	if len(staged) == 0 {
		return nil
	}
	if err := g.records.BatchInsert(ctx, staged); err != nil {
		return fmt.Errorf("insert dose records: %w", err)
	}
	return nil
}

func recordKey(planID uuid.UUID, date time.Time, timeOfDay string) string {
	return planID.String() + "|" + date.Format("2006-01-02") + "|" + timeOfDay
}
