package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"reportflow/internal/artifact"
	"reportflow/internal/delivery"
	"reportflow/internal/lock"
	"reportflow/internal/mail"
	"reportflow/internal/models"
	"reportflow/internal/pkg/utils"
	"reportflow/internal/report"
	"reportflow/internal/repository"
)

// fakeProvider returns canned data or a canned error, optionally blocking
// until released so tests can hold a run in flight.
type fakeProvider struct {
	err     error
	started chan string
	release chan struct{}
}

func (p *fakeProvider) Fetch(ctx context.Context, tenantID string, typ report.Type, rng report.DateRange, _ report.Filters) (*report.Data, error) {
	if p.started != nil {
		p.started <- tenantID
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return &report.Data{
		Type:        typ,
		TenantID:    tenantID,
		Range:       rng,
		GeneratedAt: time.Now(),
		Summary:     []report.Metric{{Label: "Total Orders", Value: "42"}},
	}, nil
}

// fakeTransport records sends and never fails.
type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (t *fakeTransport) Send(_ context.Context, msg *mail.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent = append(t.sent, msg.To)
	return nil
}

type testEnv struct {
	db          *gorm.DB
	schedules   *repository.ScheduleRepository
	executions  *repository.ExecutionRepository
	store       *artifact.Store
	transport   *fakeTransport
	coordinator *Coordinator
}

func newTestEnv(t *testing.T, provider report.DataProvider) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", utils.RandomHex(8))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Schedule{}, &models.ExecutionRecord{},
		&models.DeliveryResult{}, &models.Artifact{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := zap.NewNop()
	scheduleRepo := repository.NewScheduleRepository(db)
	executionRepo := repository.NewExecutionRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)

	store, err := artifact.NewStore(t.TempDir(), time.Hour, "http://localhost:8080", artifactRepo, logger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	transport := &fakeTransport{}
	dispatcher := delivery.NewDispatcher(transport, 2, time.Millisecond, logger)

	renderers := report.NewRegistry()
	renderers.Register(report.FormatCSV, report.CSVRenderer{})

	locker, _ := lock.NewRunLocker("", "", 0, time.Minute)

	return &testEnv{
		db:         db,
		schedules:  scheduleRepo,
		executions: executionRepo,
		store:      store,
		transport:  transport,
		coordinator: NewCoordinator(
			scheduleRepo, executionRepo, provider, renderers, store, dispatcher, locker,
			5, 5*time.Second, logger),
	}
}

func (e *testEnv) createSchedule(t *testing.T, tenantID string) *models.Schedule {
	t.Helper()
	s := &models.Schedule{
		ID:           utils.GenerateUUID(),
		TenantID:     tenantID,
		Name:         "nightly sales",
		ReportType:   string(report.TypeSales),
		Frequency:    "daily",
		TimeOfDay:    "08:00",
		Timezone:     "UTC",
		Format:       string(report.FormatCSV),
		EmailEnabled: true,
		Recipients:   models.EncodeStringList([]string{"ops@example.com"}),
		IsActive:     true,
		Status:       models.ScheduleStatusIdle,
		MaxFailures:  3,
	}
	if err := e.schedules.Create(s); err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return s
}

func TestRunNowSuccess(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	s := env.createSchedule(t, "tenant-1")

	rec, err := env.coordinator.RunNow("tenant-1", s.ID)
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if rec.Outcome != models.ExecutionOutcomeSuccess {
		t.Errorf("outcome = %q, want success", rec.Outcome)
	}
	if rec.Trigger != models.ExecutionTriggerManual {
		t.Errorf("trigger = %q, want manual", rec.Trigger)
	}
	if rec.ArtifactFile == "" {
		t.Error("expected an artifact file reference")
	}

	after, err := env.schedules.FindByID("tenant-1", s.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if after.Status != models.ScheduleStatusIdle {
		t.Errorf("status = %q, want idle", after.Status)
	}
	if after.TotalRuns != 1 || after.SuccessfulRuns != 1 {
		t.Errorf("runs = %d/%d, want 1/1", after.SuccessfulRuns, after.TotalRuns)
	}
	if after.LastRunAt == nil {
		t.Error("last_run_at not set")
	}

	env.transport.mu.Lock()
	defer env.transport.mu.Unlock()
	if len(env.transport.sent) != 1 || env.transport.sent[0] != "ops@example.com" {
		t.Errorf("sent = %v, want one mail to ops@example.com", env.transport.sent)
	}
}

func TestRunNowReturnsOwnRecord(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	s := env.createSchedule(t, "tenant-1")

	// Back-to-back runs can seal within the same timestamp precision; each
	// call still gets the record of its own run, not its neighbor's.
	first, err := env.coordinator.RunNow("tenant-1", s.ID)
	if err != nil {
		t.Fatalf("RunNow #1: %v", err)
	}
	second, err := env.coordinator.RunNow("tenant-1", s.ID)
	if err != nil {
		t.Fatalf("RunNow #2: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("both calls returned record %s", first.ID)
	}
	if first.FinishedAt == nil || second.FinishedAt == nil {
		t.Error("returned records not sealed")
	}
	if len(second.DeliveryResults) != 1 {
		t.Errorf("delivery results = %d, want 1", len(second.DeliveryResults))
	}

	records, total, err := env.executions.ListBySchedule("tenant-1", s.ID, 0, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 2 || len(records) != 2 {
		t.Fatalf("history rows = %d, want 2", total)
	}
}

func TestRunFailureCountsAndAutoPause(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{err: errors.New("warehouse offline")})
	s := env.createSchedule(t, "tenant-1")

	for i := 1; i <= 3; i++ {
		rec, err := env.coordinator.RunNow("tenant-1", s.ID)
		if err != nil {
			t.Fatalf("RunNow #%d: %v", i, err)
		}
		if rec.Outcome != models.ExecutionOutcomeFailed {
			t.Fatalf("run #%d outcome = %q, want failed", i, rec.Outcome)
		}
		if rec.ErrorMsg == "" {
			t.Errorf("run #%d missing error message", i)
		}

		after, _ := env.schedules.FindAny(s.ID)
		if after.FailureCount != i {
			t.Errorf("after run #%d failure_count = %d, want %d", i, after.FailureCount, i)
		}
	}

	after, _ := env.schedules.FindAny(s.ID)
	if after.IsActive {
		t.Error("schedule still active after reaching max failures")
	}
	if after.Status != models.ScheduleStatusPaused {
		t.Errorf("status = %q, want paused", after.Status)
	}

	// A paused schedule rejects manual runs.
	if _, err := env.coordinator.RunNow("tenant-1", s.ID); !errors.Is(err, report.ErrSchedulePaused) {
		t.Errorf("err = %v, want ErrSchedulePaused", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	provider := &fakeProvider{err: errors.New("transient")}
	env := newTestEnv(t, provider)
	s := env.createSchedule(t, "tenant-1")

	if _, err := env.coordinator.RunNow("tenant-1", s.ID); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	provider.err = nil
	if _, err := env.coordinator.RunNow("tenant-1", s.ID); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	after, _ := env.schedules.FindAny(s.ID)
	if after.FailureCount != 0 {
		t.Errorf("failure_count = %d, want 0 after success", after.FailureCount)
	}
	if after.TotalRuns != 2 || after.SuccessfulRuns != 1 {
		t.Errorf("runs = %d/%d, want 1/2", after.SuccessfulRuns, after.TotalRuns)
	}
}

func TestConcurrentTriggersSameSchedule(t *testing.T) {
	provider := &fakeProvider{
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, provider)
	s := env.createSchedule(t, "tenant-1")

	// Hold one run in flight.
	firstErr := make(chan error, 1)
	go func() {
		_, err := env.coordinator.RunNow("tenant-1", s.ID)
		firstErr <- err
	}()
	<-provider.started

	// Every trigger while the run is in flight loses the lock.
	var wg sync.WaitGroup
	busy := make(chan error, 9)
	for i := 0; i < 9; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.coordinator.RunNow("tenant-1", s.ID)
			busy <- err
		}()
	}
	wg.Wait()
	close(busy)
	for err := range busy {
		if !errors.Is(err, report.ErrAlreadyRunning) {
			t.Errorf("concurrent trigger err = %v, want ErrAlreadyRunning", err)
		}
	}

	close(provider.release)
	if err := <-firstErr; err != nil {
		t.Fatalf("held run: %v", err)
	}

	// Exactly one execution record exists.
	records, total, err := env.executions.ListBySchedule("tenant-1", s.ID, 0, 50)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("history rows = %d, want 1", total)
	}
	if records[0].Outcome != models.ExecutionOutcomeSuccess {
		t.Errorf("outcome = %q, want success", records[0].Outcome)
	}
}

func TestDifferentSchedulesRunConcurrently(t *testing.T) {
	provider := &fakeProvider{
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	env := newTestEnv(t, provider)
	a := env.createSchedule(t, "tenant-1")
	b := env.createSchedule(t, "tenant-2")

	errs := make(chan error, 2)
	go func() {
		_, err := env.coordinator.RunNow("tenant-1", a.ID)
		errs <- err
	}()
	go func() {
		_, err := env.coordinator.RunNow("tenant-2", b.ID)
		errs <- err
	}()

	// Both runs reach the provider before either is released: no
	// cross-schedule serialization.
	for i := 0; i < 2; i++ {
		select {
		case <-provider.started:
		case <-time.After(2 * time.Second):
			t.Fatal("second schedule blocked behind the first")
		}
	}
	close(provider.release)

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("run: %v", err)
		}
	}
}

// recordingSubmitter captures what the scan hands off.
type recordingSubmitter struct {
	mu        sync.Mutex
	submitted []string
}

func (r *recordingSubmitter) Submit(s *models.Schedule, trigger string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, s.ID)
}

type noopSweeper struct{}

func (noopSweeper) Sweep() {}

func TestDueScanPicksOnlyEligibleSchedules(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	due := env.createSchedule(t, "tenant-1")
	env.db.Model(due).Updates(map[string]interface{}{"next_run_at": past})

	notYet := env.createSchedule(t, "tenant-1")
	env.db.Model(notYet).Updates(map[string]interface{}{"next_run_at": future})

	paused := env.createSchedule(t, "tenant-1")
	env.db.Model(paused).Updates(map[string]interface{}{
		"next_run_at": past, "is_active": false, "status": models.ScheduleStatusPaused,
	})

	running := env.createSchedule(t, "tenant-1")
	env.db.Model(running).Updates(map[string]interface{}{
		"next_run_at": past, "status": models.ScheduleStatusRunning,
	})

	submitter := &recordingSubmitter{}
	clock := NewClock(env.schedules, submitter, noopSweeper{}, zap.NewNop())
	clock.scanDue()

	submitter.mu.Lock()
	defer submitter.mu.Unlock()
	if len(submitter.submitted) != 1 || submitter.submitted[0] != due.ID {
		t.Fatalf("submitted = %v, want only %s", submitter.submitted, due.ID)
	}

	// The due schedule's next run moved forward, so the next scan skips it.
	after, _ := env.schedules.FindAny(due.ID)
	if after.NextRunAt == nil || !after.NextRunAt.After(time.Now()) {
		t.Error("next_run_at not advanced by the scan")
	}
}

func TestRunNowUnknownSchedule(t *testing.T) {
	env := newTestEnv(t, &fakeProvider{})
	if _, err := env.coordinator.RunNow("tenant-1", "no-such-id"); !errors.Is(err, report.ErrScheduleNotFound) {
		t.Errorf("err = %v, want ErrScheduleNotFound", err)
	}

	// Cross-tenant lookups behave like unknown ids.
	s := env.createSchedule(t, "tenant-1")
	if _, err := env.coordinator.RunNow("tenant-2", s.ID); !errors.Is(err, report.ErrScheduleNotFound) {
		t.Errorf("cross-tenant err = %v, want ErrScheduleNotFound", err)
	}
}
