package medication

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/health-assistant/health-assistant/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Plan Repository ===========

type planRepoPG struct{ pool *pgxpool.Pool }

func NewPlanRepoPG(pool *pgxpool.Pool) PlanRepository {
	return &planRepoPG{pool: pool}
}

func (r *planRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const planCols = `id, user_id, name, dosage, start_date, end_date, repeat_type,
	remind_enabled, deleted_at, created_at, updated_at`

func scanPlan(row pgx.Row) (*Plan, error) {
	var p Plan
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Dosage, &p.StartDate, &p.EndDate,
		&p.RepeatType, &p.RemindEnabled, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *planRepoPG) Create(ctx context.Context, p *Plan) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO med_plan (id, user_id, name, dosage, start_date, end_date, repeat_type, remind_enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.UserID, p.Name, p.Dosage, DateOnly(p.StartDate), DateOnly(p.EndDate),
		p.RepeatType, p.RemindEnabled)
	if err != nil {
		return err
	}
	if err := r.ReplaceTimes(ctx, p.ID, p.Times); err != nil {
		return err
	}
	return r.ReplaceRepeatDays(ctx, p.ID, p.RepeatDays)
}

func (r *planRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Plan, error) {
	p, err := scanPlan(r.conn(ctx).QueryRow(ctx,
		`SELECT `+planCols+` FROM med_plan WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *planRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, keyword string) ([]*Plan, error) {
	q := `SELECT ` + planCols + ` FROM med_plan WHERE user_id = $1 AND deleted_at IS NULL`
	args := []interface{}{userID}
	if keyword != "" {
		q += ` AND name ILIKE $2`
		args = append(args, "%"+keyword+"%")
	}
	q += ` ORDER BY created_at DESC`
	return r.queryPlans(ctx, q, args...)
}

func (r *planRepoPG) ListActiveRange(ctx context.Context, userID uuid.UUID, date time.Time) ([]*Plan, error) {
	d := DateOnly(date)
	return r.queryPlans(ctx, `
		SELECT `+planCols+` FROM med_plan
		WHERE user_id = $1 AND deleted_at IS NULL AND start_date <= $2 AND end_date >= $2
		ORDER BY created_at`, userID, d)
}

func (r *planRepoPG) queryPlans(ctx context.Context, q string, args ...interface{}) ([]*Plan, error) {
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range items {
		if err := r.loadChildren(ctx, p); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (r *planRepoPG) loadChildren(ctx context.Context, p *Plan) error {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT time_of_day FROM med_plan_time WHERE plan_id = $1 ORDER BY sort_order`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	p.Times = nil
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return err
		}
		p.Times = append(p.Times, t)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	dayRows, err := r.conn(ctx).Query(ctx,
		`SELECT weekday FROM med_plan_repeat_day WHERE plan_id = $1 ORDER BY weekday`, p.ID)
	if err != nil {
		return err
	}
	defer dayRows.Close()
	p.RepeatDays = nil
	for dayRows.Next() {
		var d int
		if err := dayRows.Scan(&d); err != nil {
			return err
		}
		p.RepeatDays = append(p.RepeatDays, d)
	}
	return dayRows.Err()
}

func (r *planRepoPG) UpdateScalars(ctx context.Context, p *Plan) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE med_plan SET name=$2, dosage=$3, start_date=$4, end_date=$5,
			repeat_type=$6, remind_enabled=$7, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.Name, p.Dosage, DateOnly(p.StartDate), DateOnly(p.EndDate),
		p.RepeatType, p.RemindEnabled)
	return err
}

// ReplaceTimes swaps the full time list. Wholesale delete-then-insert, not a
// diff: positions are reassigned from the incoming order.
func (r *planRepoPG) ReplaceTimes(ctx context.Context, planID uuid.UUID, times []string) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM med_plan_time WHERE plan_id = $1`, planID); err != nil {
		return err
	}
	for i, t := range times {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO med_plan_time (id, plan_id, time_of_day, sort_order)
			VALUES ($1,$2,$3,$4)`, uuid.New(), planID, t, i); err != nil {
			return err
		}
	}
	return nil
}

func (r *planRepoPG) ReplaceRepeatDays(ctx context.Context, planID uuid.UUID, days []int) error {
	if _, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM med_plan_repeat_day WHERE plan_id = $1`, planID); err != nil {
		return err
	}
	for _, d := range days {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO med_plan_repeat_day (id, plan_id, weekday)
			VALUES ($1,$2,$3)`, uuid.New(), planID, d); err != nil {
			return err
		}
	}
	return nil
}

func (r *planRepoPG) SetRemindEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE med_plan SET remind_enabled=$2, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, enabled)
	return err
}

func (r *planRepoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE med_plan SET deleted_at=NOW(), updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	return err
}

// =========== Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `id, plan_id, date, time_of_day, status, action_at, note,
	plan_name, dosage, created_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.PlanID, &rec.Date, &rec.Time, &rec.Status,
		&rec.ActionAt, &rec.Note, &rec.PlanName, &rec.Dosage, &rec.CreatedAt)
	return &rec, err
}

func (r *recordRepoPG) Exists(ctx context.Context, planID uuid.UUID, date time.Time, timeOfDay string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM med_record WHERE plan_id = $1 AND date = $2 AND time_of_day = $3)`,
		planID, DateOnly(date), timeOfDay).Scan(&exists)
	return exists, err
}

// BatchInsert persists staged records in one round trip. ON CONFLICT DO
// NOTHING makes a concurrent duplicate a no-op instead of a failed batch.
func (r *recordRepoPG) BatchInsert(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO med_record (id, plan_id, date, time_of_day, status, plan_name, dosage)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (plan_id, date, time_of_day) DO NOTHING`,
			rec.ID, rec.PlanID, DateOnly(rec.Date), rec.Time, rec.Status, rec.PlanName, rec.Dosage)
	}

	var br pgx.BatchResults
	switch c := r.conn(ctx).(type) {
	case pgx.Tx:
		br = c.SendBatch(ctx, batch)
	default:
		br = r.pool.SendBatch(ctx, batch)
	}
	defer br.Close()
	for range records {
		if _, err := br.Exec(); err != nil {
			if db.IsUniqueViolation(err) {
				continue
			}
			return err
		}
	}
	return nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordCols+` FROM med_record WHERE id = $1`, id))
}

func (r *recordRepoPG) ListByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT r.id, r.plan_id, r.date, r.time_of_day, r.status, r.action_at, r.note,
			r.plan_name, r.dosage, r.created_at
		FROM med_record r
		JOIN med_plan p ON p.id = r.plan_id
		WHERE p.user_id = $1 AND r.date = $2 AND p.deleted_at IS NULL
		ORDER BY r.time_of_day, r.plan_name`, userID, DateOnly(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (r *recordRepoPG) ListFiltered(ctx context.Context, userID uuid.UUID, f RecordFilter, limit, offset int) ([]*Record, int, error) {
	where := ` FROM med_record r JOIN med_plan p ON p.id = r.plan_id WHERE p.user_id = $1`
	args := []interface{}{userID}
	n := 1
	if f.PlanID != nil {
		n++
		where += ` AND r.plan_id = $` + itoa(n)
		args = append(args, *f.PlanID)
	}
	if f.Status != "" {
		n++
		where += ` AND r.status = $` + itoa(n)
		args = append(args, f.Status)
	}
	if f.DateFrom != nil {
		n++
		where += ` AND r.date >= $` + itoa(n)
		args = append(args, DateOnly(*f.DateFrom))
	}
	if f.DateTo != nil {
		n++
		where += ` AND r.date <= $` + itoa(n)
		args = append(args, DateOnly(*f.DateTo))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT r.id, r.plan_id, r.date, r.time_of_day, r.status, r.action_at, r.note,
		r.plan_name, r.dosage, r.created_at` + where +
		` ORDER BY r.date DESC, r.time_of_day LIMIT $` + itoa(n+1) + ` OFFSET $` + itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *recordRepoPG) Update(ctx context.Context, rec *Record) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE med_record SET status=$2, action_at=$3, note=$4 WHERE id = $1`,
		rec.ID, rec.Status, rec.ActionAt, rec.Note)
	return err
}

func (r *recordRepoPG) ListActedDates(ctx context.Context, planID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT date FROM med_record
		WHERE plan_id = $1 AND date >= $2 AND date <= $3 AND status <> $4`,
		planID, DateOnly(from), DateOnly(to), StatusTodo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

func (r *recordRepoPG) DeleteFutureTodo(ctx context.Context, planID uuid.UUID, cutoff time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM med_record WHERE plan_id = $1 AND date >= $2 AND status = $3`,
		planID, DateOnly(cutoff), StatusTodo)
	return err
}

func collectRecords(rows pgx.Rows) ([]*Record, error) {
	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
