package medication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// -- in-memory repos --

type mockPlanRepo struct {
	store map[uuid.UUID]*Plan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{store: make(map[uuid.UUID]*Plan)}
}

func (m *mockPlanRepo) Create(_ context.Context, p *Plan) error {
	p.ID = uuid.New()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id uuid.UUID) (*Plan, error) {
	p, ok := m.store[id]
	if !ok || p.DeletedAt != nil {
		return nil, pgx.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockPlanRepo) ListByUser(_ context.Context, userID uuid.UUID, keyword string) ([]*Plan, error) {
	var r []*Plan
	for _, p := range m.store {
		if p.UserID != userID || p.DeletedAt != nil {
			continue
		}
		r = append(r, p)
	}
	return r, nil
}

func (m *mockPlanRepo) ListActiveRange(_ context.Context, userID uuid.UUID, d time.Time) ([]*Plan, error) {
	day := DateOnly(d)
	var r []*Plan
	for _, p := range m.store {
		if p.UserID != userID || p.DeletedAt != nil {
			continue
		}
		if day.Before(DateOnly(p.StartDate)) || day.After(DateOnly(p.EndDate)) {
			continue
		}
		r = append(r, p)
	}
	return r, nil
}

func (m *mockPlanRepo) UpdateScalars(_ context.Context, p *Plan) error {
	existing, ok := m.store[p.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	existing.Name = p.Name
	existing.Dosage = p.Dosage
	existing.StartDate = p.StartDate
	existing.EndDate = p.EndDate
	existing.RepeatType = p.RepeatType
	existing.RemindEnabled = p.RemindEnabled
	return nil
}

func (m *mockPlanRepo) ReplaceTimes(_ context.Context, planID uuid.UUID, times []string) error {
	p, ok := m.store[planID]
	if !ok {
		return pgx.ErrNoRows
	}
	p.Times = append([]string(nil), times...)
	return nil
}

func (m *mockPlanRepo) ReplaceRepeatDays(_ context.Context, planID uuid.UUID, days []int) error {
	p, ok := m.store[planID]
	if !ok {
		return pgx.ErrNoRows
	}
	p.RepeatDays = append([]int(nil), days...)
	return nil
}

func (m *mockPlanRepo) SetRemindEnabled(_ context.Context, id uuid.UUID, enabled bool) error {
	p, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	p.RemindEnabled = enabled
	return nil
}

func (m *mockPlanRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := m.store[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

type mockRecordRepo struct {
	byKey map[string]*Record
	byID  map[uuid.UUID]*Record
	plans *mockPlanRepo
}

func newMockRecordRepo(plans *mockPlanRepo) *mockRecordRepo {
	return &mockRecordRepo{
		byKey: make(map[string]*Record),
		byID:  make(map[uuid.UUID]*Record),
		plans: plans,
	}
}

func (m *mockRecordRepo) Exists(_ context.Context, planID uuid.UUID, d time.Time, tod string) (bool, error) {
	_, ok := m.byKey[recordKey(planID, DateOnly(d), tod)]
	return ok, nil
}

func (m *mockRecordRepo) BatchInsert(_ context.Context, records []*Record) error {
	for _, r := range records {
		key := recordKey(r.PlanID, DateOnly(r.Date), r.Time)
		if _, ok := m.byKey[key]; ok {
			continue // uniqueness constraint: duplicate insert is a no-op
		}
		cp := *r
		cp.ID = uuid.New()
		cp.Date = DateOnly(cp.Date)
		m.byKey[key] = &cp
		m.byID[cp.ID] = &cp
	}
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) ListByUserAndDate(_ context.Context, userID uuid.UUID, d time.Time) ([]*Record, error) {
	day := DateOnly(d)
	var out []*Record
	for _, r := range m.byID {
		p, ok := m.plans.store[r.PlanID]
		if !ok || p.UserID != userID || p.DeletedAt != nil {
			continue
		}
		if r.Date.Equal(day) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRecordRepo) ListFiltered(_ context.Context, userID uuid.UUID, f RecordFilter, limit, offset int) ([]*Record, int, error) {
	var out []*Record
	for _, r := range m.byID {
		p, ok := m.plans.store[r.PlanID]
		if !ok || p.UserID != userID {
			continue
		}
		if f.PlanID != nil && r.PlanID != *f.PlanID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.DateFrom != nil && r.Date.Before(DateOnly(*f.DateFrom)) {
			continue
		}
		if f.DateTo != nil && r.Date.After(DateOnly(*f.DateTo)) {
			continue
		}
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockRecordRepo) Update(_ context.Context, rec *Record) error {
	r, ok := m.byID[rec.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	r.Status = rec.Status
	r.ActionAt = rec.ActionAt
	r.Note = rec.Note
	return nil
}

func (m *mockRecordRepo) ListActedDates(_ context.Context, planID uuid.UUID, from, to time.Time) ([]time.Time, error) {
	seen := make(map[string]bool)
	var dates []time.Time
	for _, r := range m.byID {
		if r.PlanID != planID || r.Status == StatusTodo {
			continue
		}
		if r.Date.Before(DateOnly(from)) || r.Date.After(DateOnly(to)) {
			continue
		}
		key := r.Date.Format("2006-01-02")
		if !seen[key] {
			seen[key] = true
			dates = append(dates, r.Date)
		}
	}
	return dates, nil
}

func (m *mockRecordRepo) DeleteFutureTodo(_ context.Context, planID uuid.UUID, cutoff time.Time) error {
	c := DateOnly(cutoff)
	for key, r := range m.byKey {
		if r.PlanID == planID && !r.Date.Before(c) && r.Status == StatusTodo {
			delete(m.byKey, key)
			delete(m.byID, r.ID)
		}
	}
	return nil
}

func (m *mockRecordRepo) recordsFor(planID uuid.UUID) []*Record {
	var out []*Record
	for _, r := range m.byID {
		if r.PlanID == planID {
			out = append(out, r)
		}
	}
	return out
}

func passthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestService() (*Service, *mockPlanRepo, *mockRecordRepo) {
	plans := newMockPlanRepo()
	records := newMockRecordRepo(plans)
	svc := NewService(plans, records, passthroughTx)
	return svc, plans, records
}

func validPlan() *Plan {
	return &Plan{
		Name:       "Amoxicillin",
		Dosage:     "500mg twice daily",
		StartDate:  date(2025, 2, 1),
		EndDate:    date(2025, 2, 28),
		RepeatType: RepeatDaily,
		Times:      []string{"08:00", "20:00"},
	}
}

// -- plan CRUD --

func TestCreatePlan_Success(t *testing.T) {
	svc, plans, _ := newTestService()
	userID := uuid.New()

	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == uuid.Nil {
		t.Error("expected id to be assigned")
	}
	if plans.store[p.ID].UserID != userID {
		t.Error("expected plan owned by caller")
	}
}

func TestCreatePlan_ValidationRejectsBeforeWrite(t *testing.T) {
	svc, plans, _ := newTestService()
	userID := uuid.New()

	cases := map[string]func(*Plan){
		"empty name":           func(p *Plan) { p.Name = "" },
		"name too long":        func(p *Plan) { p.Name = string(make([]rune, 51)) },
		"missing dosage":       func(p *Plan) { p.Dosage = "" },
		"no times":             func(p *Plan) { p.Times = nil },
		"bad time format":      func(p *Plan) { p.Times = []string{"8am"} },
		"start after end":      func(p *Plan) { p.StartDate = date(2025, 3, 1) },
		"bad repeat type":      func(p *Plan) { p.RepeatType = "monthly" },
		"weekly without days":  func(p *Plan) { p.RepeatType = RepeatWeekly; p.RepeatDays = nil },
		"weekday out of range": func(p *Plan) { p.RepeatType = RepeatWeekly; p.RepeatDays = []int{7} },
		"negative weekday":     func(p *Plan) { p.RepeatType = RepeatWeekly; p.RepeatDays = []int{-1} },
	}
	for name, mutate := range cases {
		p := validPlan()
		mutate(p)
		if err := svc.CreatePlan(context.Background(), userID, p); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
	if len(plans.store) != 0 {
		t.Errorf("expected no plans persisted after rejected creates, got %d", len(plans.store))
	}
}

func TestCreatePlan_DailyDropsWeekdays(t *testing.T) {
	svc, plans, _ := newTestService()
	p := validPlan()
	p.RepeatDays = []int{1, 2}
	if err := svc.CreatePlan(context.Background(), uuid.New(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plans.store[p.ID].RepeatDays) != 0 {
		t.Error("expected weekday set dropped for daily plans")
	}
}

func TestGetPlanDetail_OtherUsersPlanIsNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	owner := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), owner, p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.GetPlanDetail(context.Background(), uuid.New(), p.ID); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign plan, got %v", err)
	}
	if _, err := svc.GetPlanDetail(context.Background(), owner, uuid.New()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestGetPlanList_StatusFilter(t *testing.T) {
	svc, _, _ := newTestService()
	svc.now = func() time.Time { return date(2025, 6, 15) }
	userID := uuid.New()

	active := validPlan()
	active.StartDate = date(2025, 6, 1)
	active.EndDate = date(2025, 6, 30)
	if err := svc.CreatePlan(context.Background(), userID, active); err != nil {
		t.Fatal(err)
	}

	expired := validPlan()
	expired.StartDate = date(2025, 5, 1)
	expired.EndDate = date(2025, 5, 31)
	if err := svc.CreatePlan(context.Background(), userID, expired); err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetPlanList(context.Background(), userID, PlanStatusActive, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("expected only the active plan, got %d plans", len(got))
	}

	got, err = svc.GetPlanList(context.Background(), userID, PlanStatusExpired, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != expired.ID {
		t.Errorf("expected only the expired plan, got %d plans", len(got))
	}

	if _, err := svc.GetPlanList(context.Background(), userID, "finished", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown status value accepted: %v", err)
	}
}

func TestDeletePlan_SoftDeleteStopsGeneration(t *testing.T) {
	svc, plans, records := newTestService()
	svc.now = func() time.Time { return date(2025, 2, 10) }
	userID := uuid.New()

	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeletePlan(context.Background(), userID, p.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plans.store[p.ID].DeletedAt == nil {
		t.Fatal("expected soft-delete timestamp")
	}

	if err := svc.EnsureRecords(context.Background(), userID, date(2025, 2, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := len(records.recordsFor(p.ID)); n != 0 {
		t.Errorf("expected no records generated for deleted plan, got %d", n)
	}
}

func TestSetRemindEnabled(t *testing.T) {
	svc, plans, _ := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	if err := svc.SetRemindEnabled(context.Background(), userID, p.ID, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plans.store[p.ID].RemindEnabled {
		t.Error("expected remind flag enabled")
	}

	if err := svc.SetRemindEnabled(context.Background(), uuid.New(), p.ID, false); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign caller, got %v", err)
	}
}

// -- record generation through the service --

func TestGetTodayRecords_GeneratesLazily(t *testing.T) {
	svc, _, _ := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	recs, err := svc.GetTodayRecords(context.Background(), userID, date(2025, 2, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records for 2 dose times, got %d", len(recs))
	}
	for _, r := range recs {
		if r.Status != StatusTodo {
			t.Errorf("expected status todo, got %s", r.Status)
		}
		if r.PlanName != p.Name || r.Dosage != p.Dosage {
			t.Error("expected denormalized plan name and dosage")
		}
	}
}

func TestGetTodayRecords_SecondCallIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		recs, err := svc.GetTodayRecords(context.Background(), userID, date(2025, 2, 10))
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i+1, err)
		}
		if len(recs) != 2 {
			t.Fatalf("call %d: expected 2 records, got %d", i+1, len(recs))
		}
	}
}

// -- mark / adjust --

func TestMarkRecord(t *testing.T) {
	svc, _, records := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}
	recs, err := svc.GetTodayRecords(context.Background(), userID, date(2025, 2, 10))
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.MarkRecord(context.Background(), userID, recs[0].ID, StatusTaken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := records.byID[recs[0].ID]
	if stored.Status != StatusTaken {
		t.Errorf("expected taken, got %s", stored.Status)
	}
	if stored.ActionAt == nil {
		t.Error("expected action timestamp to be set")
	}

	if err := svc.MarkRecord(context.Background(), userID, recs[1].ID, "todo"); err == nil {
		t.Error("expected error marking back to todo via mark")
	}
	if err := svc.MarkRecord(context.Background(), uuid.New(), recs[1].ID, StatusTaken); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for foreign caller, got %v", err)
	}
}

func TestAdjustRecord(t *testing.T) {
	svc, _, records := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}
	recs, err := svc.GetTodayRecords(context.Background(), userID, date(2025, 2, 10))
	if err != nil {
		t.Fatal(err)
	}

	when := date(2025, 2, 10).Add(9 * time.Hour)
	note := "took it late"
	if err := svc.AdjustRecord(context.Background(), userID, recs[0].ID, StatusMissed, &when, &note); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := records.byID[recs[0].ID]
	if stored.Status != StatusMissed {
		t.Errorf("expected missed, got %s", stored.Status)
	}
	if stored.ActionAt == nil || !stored.ActionAt.Equal(when) {
		t.Error("expected action time applied")
	}
	if stored.Note == nil || *stored.Note != note {
		t.Error("expected note applied")
	}

	if err := svc.AdjustRecord(context.Background(), userID, recs[0].ID, "bogus", nil, nil); err == nil {
		t.Error("expected error for invalid status")
	}
}

// -- update / reconciliation scenarios --

func TestUpdatePlan_RegeneratesFutureTodos(t *testing.T) {
	// today=2025-03-09; taken record on 03-10, todo records 03-11..03-20.
	// The edit adds a second dose time: the 03-10 record must survive
	// unchanged and every day from 03-11 on must carry two todo records.
	svc, _, records := newTestService()
	svc.now = func() time.Time { return date(2025, 3, 9) }
	userID := uuid.New()

	p := validPlan()
	p.StartDate = date(2025, 3, 1)
	p.EndDate = date(2025, 3, 20)
	p.Times = []string{"08:00"}
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	// Seed history the way the generator would have over previous days.
	seed := []*Record{{
		PlanID: p.ID, Date: date(2025, 3, 10), Time: "08:00",
		Status: StatusTodo, PlanName: p.Name, Dosage: p.Dosage,
	}}
	for d := date(2025, 3, 11); !d.After(date(2025, 3, 20)); d = d.AddDate(0, 0, 1) {
		seed = append(seed, &Record{
			PlanID: p.ID, Date: d, Time: "08:00",
			Status: StatusTodo, PlanName: p.Name, Dosage: p.Dosage,
		})
	}
	if err := records.BatchInsert(context.Background(), seed); err != nil {
		t.Fatal(err)
	}
	takenID := records.byKey[recordKey(p.ID, date(2025, 3, 10), "08:00")].ID
	if err := svc.MarkRecord(context.Background(), userID, takenID, StatusTaken); err != nil {
		t.Fatal(err)
	}

	def := validPlan()
	def.StartDate = date(2025, 3, 1)
	def.EndDate = date(2025, 3, 20)
	def.Times = []string{"08:00", "18:00"}
	if err := svc.UpdatePlan(context.Background(), userID, p.ID, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 03-10 is past cutoff handling: it was taken, so it survives even
	// though it is >= cutoff.
	taken := records.byID[takenID]
	if taken == nil || taken.Status != StatusTaken {
		t.Fatal("expected taken record to survive the edit unchanged")
	}
	perDay := make(map[string]int)
	for _, r := range records.recordsFor(p.ID) {
		perDay[r.Date.Format("2006-01-02")]++
	}
	if perDay["2025-03-10"] != 1 {
		t.Errorf("expected 1 record on 03-10, got %d", perDay["2025-03-10"])
	}
	for d := date(2025, 3, 11); !d.After(date(2025, 3, 20)); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if perDay[key] != 2 {
			t.Errorf("%s: expected 2 records after edit, got %d", key, perDay[key])
		}
	}
}

func TestUpdatePlan_PreservesTodayAndHistory(t *testing.T) {
	svc, _, records := newTestService()
	svc.now = func() time.Time { return date(2025, 3, 9) }
	userID := uuid.New()

	p := validPlan()
	p.StartDate = date(2025, 3, 1)
	p.EndDate = date(2025, 3, 20)
	p.Times = []string{"08:00"}
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	// History plus today's still-todo record.
	seed := []*Record{
		{PlanID: p.ID, Date: date(2025, 3, 8), Time: "08:00", Status: StatusTodo, PlanName: p.Name, Dosage: p.Dosage},
		{PlanID: p.ID, Date: date(2025, 3, 9), Time: "08:00", Status: StatusTodo, PlanName: p.Name, Dosage: p.Dosage},
	}
	if err := records.BatchInsert(context.Background(), seed); err != nil {
		t.Fatal(err)
	}

	def := validPlan()
	def.StartDate = date(2025, 3, 1)
	def.EndDate = date(2025, 3, 20)
	def.Times = []string{"12:00"}
	if err := svc.UpdatePlan(context.Background(), userID, p.ID, def); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Yesterday's and today's records keep the old time.
	if records.byKey[recordKey(p.ID, date(2025, 3, 8), "08:00")] == nil {
		t.Error("expected historical record preserved")
	}
	if records.byKey[recordKey(p.ID, date(2025, 3, 9), "08:00")] == nil {
		t.Error("expected today's todo record preserved as-is")
	}
	// Tomorrow onward reflects the new time only.
	if records.byKey[recordKey(p.ID, date(2025, 3, 10), "08:00")] != nil {
		t.Error("expected old future todo deleted")
	}
	if records.byKey[recordKey(p.ID, date(2025, 3, 10), "12:00")] == nil {
		t.Error("expected regenerated record at the new time")
	}
}

func TestUpdatePlan_NotFoundForForeignPlan(t *testing.T) {
	svc, _, _ := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}
	if err := svc.UpdatePlan(context.Background(), uuid.New(), p.ID, validPlan()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePlan_RejectsInvalidDefinitionBeforeMutation(t *testing.T) {
	svc, plans, _ := newTestService()
	userID := uuid.New()
	p := validPlan()
	if err := svc.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}

	def := validPlan()
	def.Times = nil
	if err := svc.UpdatePlan(context.Background(), userID, p.ID, def); err == nil {
		t.Fatal("expected validation error")
	}
	if got := plans.store[p.ID].Times; len(got) != 2 {
		t.Errorf("expected original times untouched, got %v", got)
	}
}

// failingPlanRepo simulates a storage outage on reads.
type failingPlanRepo struct {
	*mockPlanRepo
	getErr error
}

func (f *failingPlanRepo) GetByID(context.Context, uuid.UUID) (*Plan, error) {
	return nil, f.getErr
}

func TestGetPlanDetail_StorageFailureIsNotNotFound(t *testing.T) {
	plans := &failingPlanRepo{
		mockPlanRepo: newMockPlanRepo(),
		getErr:       errors.New("connection refused"),
	}
	svc := NewService(plans, newMockRecordRepo(plans.mockPlanRepo), passthroughTx)

	_, err := svc.GetPlanDetail(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("storage failure reported as ErrNotFound: %v", err)
	}
	if errors.Is(err, ErrValidation) {
		t.Errorf("storage failure reported as ErrValidation: %v", err)
	}
}

func TestMarkRecord_StorageFailureIsNotNotFound(t *testing.T) {
	base := newMockPlanRepo()
	records := newMockRecordRepo(base)
	userID := uuid.New()

	p := validPlan()
	setup := NewService(base, records, passthroughTx)
	setup.now = func() time.Time { return date(2025, 2, 10) }
	if err := setup.CreatePlan(context.Background(), userID, p); err != nil {
		t.Fatal(err)
	}
	if err := setup.EnsureRecords(context.Background(), userID, date(2025, 2, 10)); err != nil {
		t.Fatal(err)
	}
	rec := records.recordsFor(p.ID)[0]

	svc := NewService(&failingPlanRepo{
		mockPlanRepo: base,
		getErr:       errors.New("connection refused"),
	}, records, passthroughTx)

	err := svc.MarkRecord(context.Background(), userID, rec.ID, StatusTaken)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Errorf("storage failure reported as ErrNotFound: %v", err)
	}
}

func TestCreatePlan_RejectsDuplicateTimes(t *testing.T) {
	svc, plans, _ := newTestService()

	p := validPlan()
	p.Times = []string{"08:00", "08:00"}
	err := svc.CreatePlan(context.Background(), uuid.New(), p)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate dose times accepted: %v", err)
	}
	if len(plans.store) != 0 {
		t.Error("rejected plan was stored")
	}
}

func TestValidationErrorsCarrySentinel(t *testing.T) {
	svc, _, _ := newTestService()

	bad := validPlan()
	bad.Name = ""
	if err := svc.CreatePlan(context.Background(), uuid.New(), bad); !errors.Is(err, ErrValidation) {
		t.Errorf("CreatePlan: %v", err)
	}
	if err := svc.MarkRecord(context.Background(), uuid.New(), uuid.New(), "skipped"); !errors.Is(err, ErrValidation) {
		t.Errorf("MarkRecord: %v", err)
	}
	if err := svc.AdjustRecord(context.Background(), uuid.New(), uuid.New(), "skipped", nil, nil); !errors.Is(err, ErrValidation) {
		t.Errorf("AdjustRecord: %v", err)
	}
}
