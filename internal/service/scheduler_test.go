package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"mailsweep/internal/model"
)

type fakeSchedules struct {
	due      []model.ScheduleConfig
	advanced []struct {
		id        string
		lastRunAt time.Time
		nextRunAt time.Time
	}
	listErr error
}

func (f *fakeSchedules) ListDue(_ context.Context, _ time.Time) ([]model.ScheduleConfig, error) {
	return f.due, f.listErr
}

func (f *fakeSchedules) Advance(_ context.Context, id string, lastRunAt, nextRunAt time.Time) error {
	f.advanced = append(f.advanced, struct {
		id        string
		lastRunAt time.Time
		nextRunAt time.Time
	}{id, lastRunAt, nextRunAt})
	return nil
}

type fakeLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(_ context.Context) bool {
	f.acquired++
	return !f.held
}

func (f *fakeLock) Release(_ context.Context) {
	f.released++
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(routingKey string, _ any) error {
	f.published = append(f.published, routingKey)
	return nil
}

func newTestScheduler(t *testing.T, schedules *fakeSchedules, lock *fakeLock, events *fakePublisher) (*Scheduler, *fakeRuns) {
	t.Helper()
	logger := zap.NewNop()
	v := testVault(t)
	creds := NewCredentialService(&fakeAccounts{}, v, &fakeExchanger{}, logger)
	provider := &fakeProvider{}
	runs := &fakeRuns{}
	cleanup := NewCleanupService(creds, provider, &fakeClassifier{}, &fakeFeedback{}, &fakeHistory{}, runs, NewExecutor(provider, logger), logger)
	var pub EventPublisher
	if events != nil {
		pub = events
	}
	return NewScheduler(schedules, cleanup, lock, pub, logger), runs
}

func TestRunDueProcessesAndAdvances(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	schedules := &fakeSchedules{due: []model.ScheduleConfig{
		{ID: "s1", UserID: "u1", Frequency: model.FrequencyDaily, IsActive: true, NextRunAt: &past},
		{ID: "s2", UserID: "u2", Frequency: model.FrequencyWeekly, IsActive: true, NextRunAt: &past},
	}}
	lock := &fakeLock{}
	events := &fakePublisher{}
	scheduler, runs := newTestScheduler(t, schedules, lock, events)

	before := time.Now()
	resp, err := scheduler.RunDue(context.Background())
	if err != nil {
		t.Fatalf("RunDue() error: %v", err)
	}

	if resp.Processed != 2 || len(resp.Results) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	// No accounts are connected, so runs succeed but find nothing.
	for _, r := range resp.Results {
		if !r.Success {
			t.Errorf("result = %+v", r)
		}
	}

	if len(schedules.advanced) != 2 {
		t.Fatalf("advanced = %d, want 2", len(schedules.advanced))
	}
	daily := schedules.advanced[0]
	if daily.id != "s1" {
		t.Errorf("advanced[0].id = %s", daily.id)
	}
	wantNext := daily.lastRunAt.AddDate(0, 0, 1)
	if !daily.nextRunAt.Equal(wantNext) {
		t.Errorf("nextRunAt = %v, want last + 1 day", daily.nextRunAt)
	}
	if daily.lastRunAt.Before(before) {
		t.Errorf("lastRunAt = %v, want run time, not the stale schedule time", daily.lastRunAt)
	}

	weekly := schedules.advanced[1]
	if !weekly.nextRunAt.Equal(weekly.lastRunAt.AddDate(0, 0, 7)) {
		t.Errorf("weekly nextRunAt = %v", weekly.nextRunAt)
	}

	if len(runs.runs) != 2 {
		t.Errorf("run summaries = %d, want one per user", len(runs.runs))
	}
	if len(events.published) != 2 || events.published[0] != RunCompletedKey {
		t.Errorf("published = %v", events.published)
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired=%d released=%d", lock.acquired, lock.released)
	}
}

func TestRunDueEmptyCycle(t *testing.T) {
	scheduler, runs := newTestScheduler(t, &fakeSchedules{}, &fakeLock{}, nil)

	resp, err := scheduler.RunDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if resp.Processed != 0 || len(resp.Results) != 0 {
		t.Errorf("resp = %+v", resp)
	}
	if len(runs.runs) != 0 {
		t.Errorf("no users were due, no summaries expected, got %d", len(runs.runs))
	}
}

func TestRunDueLockHeld(t *testing.T) {
	scheduler, _ := newTestScheduler(t, &fakeSchedules{}, &fakeLock{held: true}, nil)

	_, err := scheduler.RunDue(context.Background())
	if !errors.Is(err, ErrRunInProgress) {
		t.Errorf("err = %v, want ErrRunInProgress", err)
	}
}

func TestRunDueListError(t *testing.T) {
	lock := &fakeLock{}
	scheduler, _ := newTestScheduler(t, &fakeSchedules{listErr: errors.New("db down")}, lock, nil)

	if _, err := scheduler.RunDue(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if lock.released != 1 {
		t.Error("lock must be released on failure")
	}
}

func TestRunDueNilPublisher(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	schedules := &fakeSchedules{due: []model.ScheduleConfig{
		{ID: "s1", UserID: "u1", Frequency: model.FrequencyDaily, IsActive: true, NextRunAt: &past},
	}}
	scheduler, _ := newTestScheduler(t, schedules, &fakeLock{}, nil)

	if _, err := scheduler.RunDue(context.Background()); err != nil {
		t.Fatalf("a nil publisher must not break the run: %v", err)
	}
}

func TestTopSenders(t *testing.T) {
	counts := map[string]int{
		"a@x.example": 3,
		"b@x.example": 7,
		"c@x.example": 7,
		"d@x.example": 1,
		"e@x.example": 5,
		"f@x.example": 2,
	}

	top := topSenders(counts, 5)
	if len(top) != 5 {
		t.Fatalf("len = %d, want 5", len(top))
	}
	if top[0].Email != "b@x.example" || top[1].Email != "c@x.example" {
		t.Errorf("ties should break alphabetically: %+v", top[:2])
	}
	if top[4].Email != "f@x.example" {
		t.Errorf("top = %+v", top)
	}

	if got := topSenders(nil, 5); len(got) != 0 {
		t.Errorf("topSenders(nil) = %+v", got)
	}
}
