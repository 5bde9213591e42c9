package medication

import (
	"time"

	"github.com/google/uuid"
)

// Repeat kinds for a plan's recurrence rule.
const (
	RepeatDaily  = "daily"
	RepeatWeekly = "weekly"
)

// Record statuses. Records are created as "todo" and move to "taken" or
// "missed" through explicit user actions.
const (
	StatusTodo   = "todo"
	StatusTaken  = "taken"
	StatusMissed = "missed"
)

// Plan list filter values, judged against the plan's end date.
const (
	PlanStatusActive  = "active"
	PlanStatusExpired = "expired"
)

// Plan maps to the med_plan table plus its child tables. Times holds the
// wall-clock dose times ("08:00") in display order; RepeatDays holds weekdays
// (0=Sunday..6=Saturday) and is only meaningful for weekly plans.
type Plan struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"-"`
	Name          string     `db:"name" json:"name"`
	Dosage        string     `db:"dosage" json:"dosage"`
	StartDate     time.Time  `db:"start_date" json:"startDate"`
	EndDate       time.Time  `db:"end_date" json:"endDate"`
	RepeatType    string     `db:"repeat_type" json:"repeatType"`
	RemindEnabled bool       `db:"remind_enabled" json:"remindEnabled"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`

	Times      []string `json:"times"`
	RepeatDays []int    `json:"repeatDays,omitempty"`
}

// Record maps to the med_record table. One row per scheduled dose: a plan,
// a calendar date and a time of day. PlanName and Dosage are denormalized at
// generation time so record lists render without a join.
type Record struct {
	ID       uuid.UUID  `db:"id" json:"id"`
	PlanID   uuid.UUID  `db:"plan_id" json:"planId"`
	Date     time.Time  `db:"date" json:"date"`
	Time     string     `db:"time" json:"time"`
	Status   string     `db:"status" json:"status"`
	ActionAt *time.Time `db:"action_at" json:"actionAt,omitempty"`
	Note     *string    `db:"note" json:"note,omitempty"`
	PlanName string     `db:"plan_name" json:"planName"`
	Dosage   string     `db:"dosage" json:"dosage"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// RecordFilter narrows record list queries.
type RecordFilter struct {
	PlanID   *uuid.UUID
	Status   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// DateOnly truncates t to midnight UTC. Plan ranges and record dates are
// calendar dates; all comparisons go through this normalization.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
