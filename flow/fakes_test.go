package flow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"timesync/cache"
	"timesync/reconcile"
	"timesync/timereg"
)

type fakeProvider struct {
	name      string
	idents    map[string]string
	canCreate bool

	// fetchBatches is consumed one batch per FetchEntries call; the last
	// batch repeats once exhausted.
	fetchBatches [][]timereg.Entry
	fetchCalls   int

	created   []timereg.Entry
	createErr error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) IsAuthenticated(context.Context) bool { return true }

func (f *fakeProvider) LoggedInIdentity(context.Context) (map[string]string, error) {
	return f.idents, nil
}

func (f *fakeProvider) FetchEntries(_ context.Context, _ *timereg.Registrant, _, _ time.Time) ([]timereg.Entry, error) {
	batch := f.fetchCalls
	if batch >= len(f.fetchBatches) {
		batch = len(f.fetchBatches) - 1
	}
	f.fetchCalls++
	if batch < 0 {
		return nil, nil
	}
	return f.fetchBatches[batch], nil
}

func (f *fakeProvider) CanCreate() bool { return f.canCreate }

func (f *fakeProvider) CreateEntry(_ context.Context, entry timereg.Entry) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, entry)
	return nil
}

// invalidatingProvider memoizes nothing itself but records invalidations the
// way a connector with an in-memory resolution memo would, clearing the
// durable keys alongside.
type invalidatingProvider struct {
	fakeProvider
	store         *cache.Store
	invalidations int
}

func (p *invalidatingProvider) InvalidateAccountCaches() error {
	p.invalidations++
	for _, key := range []string{cache.KeyIssueAccountCache, cache.KeyAccountNumbers} {
		if err := p.store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

type fakePrompter struct {
	confirmAnswer     bool
	confirmQuestions  []string
	diffAnswer        bool
	diffWeeksShown    []reconcile.WeekDifferences
	selectAll         bool
	planProceed       bool
	planOverrides     map[string]float64
	reviewedPlanTotal float64
}

func (f *fakePrompter) Confirm(question string, _ bool) (bool, error) {
	f.confirmQuestions = append(f.confirmQuestions, question)
	return f.confirmAnswer, nil
}

func (f *fakePrompter) ConfirmDifferences(weeks []reconcile.WeekDifferences, _ map[string]string) (bool, error) {
	f.diffWeeksShown = weeks
	return f.diffAnswer, nil
}

func (f *fakePrompter) SelectMissing(weeks []reconcile.WeekMissing, _ map[string]string) ([]reconcile.Missing, error) {
	if !f.selectAll {
		return nil, nil
	}
	var selected []reconcile.Missing
	for _, week := range weeks {
		for _, day := range week.Days {
			selected = append(selected, day.Entries...)
		}
	}
	return selected, nil
}

func (f *fakePrompter) ReviewPlan(plan *reconcile.Plan) (bool, error) {
	for key, hours := range f.planOverrides {
		plan.Override(key, hours)
	}
	f.reviewedPlanTotal = plan.Total()
	return f.planProceed, nil
}

func testCache(t *testing.T) *cache.Store {
	t.Helper()

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDay(t *testing.T, value string) time.Time {
	t.Helper()

	parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		t.Fatalf("parse day %q: %v", value, err)
	}
	return parsed
}
