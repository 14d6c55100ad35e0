package scheduler

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/providers"
	"call-tracker/agent/internal/resolver"
	"call-tracker/agent/internal/tracker"
	"call-tracker/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.Config{Level: "error", Environment: "test"})
	os.Exit(m.Run())
}

type fakeStore struct {
	records map[string]*models.TokenRecord
	retired map[string]string
	saves   int
	listErr error
}

func newFakeStore(records ...*models.TokenRecord) *fakeStore {
	s := &fakeStore{
		records: make(map[string]*models.TokenRecord),
		retired: make(map[string]string),
	}
	for _, r := range records {
		s.records[r.Contract] = r
	}
	return s
}

func (s *fakeStore) ListLive() ([]models.TokenRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.TokenRecord
	for _, r := range s.records {
		if r.Status == models.StatusLive {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) Save(record *models.TokenRecord) error {
	s.saves++
	copied := *record
	s.records[record.Contract] = &copied
	return nil
}

func (s *fakeStore) Retire(contract, reason string, marketCap float64) error {
	s.retired[contract] = reason
	if r, ok := s.records[contract]; ok {
		r.Status = models.StatusRetired
	}
	return nil
}

type fakeResolver struct {
	caps  map[string]float64
	errs  map[string]error
	calls int
}

func (f *fakeResolver) ResolveFresh(ctx context.Context, contract string) (*providers.TokenMetadata, error) {
	f.calls++
	if err, ok := f.errs[contract]; ok {
		return nil, err
	}
	return &providers.TokenMetadata{
		Contract:  contract,
		Symbol:    "TKN",
		MarketCap: f.caps[contract],
	}, nil
}

type fakeNotifier struct {
	tracking []string
	system   []string
}

func (f *fakeNotifier) SendTrackingUpdate(message string) { f.tracking = append(f.tracking, message) }
func (f *fakeNotifier) SendSystemLog(message string)      { f.system = append(f.system, message) }

func testGuard() *resolver.ConcurrencyGuard {
	return resolver.NewConcurrencyGuard(3, resolver.RetryPolicy{
		MaxAttempts: 1,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
		Multiplier:  2,
	})
}

func liveRecord(contract string, initial, current float64) *models.TokenRecord {
	ath := initial
	if current > ath {
		ath = current
	}
	return &models.TokenRecord{
		Contract:         contract,
		Symbol:           "TKN",
		MarketCap:        current,
		InitialMarketCap: initial,
		ATHMarketCap:     ath,
		Status:           models.StatusLive,
	}
}

func newTestScheduler(store *fakeStore, res *fakeResolver, notifier *fakeNotifier, monitor *tracker.Monitor) *Scheduler {
	return New(store, res, testGuard(), monitor, notifier, Options{
		MinChangePct:    0.3,
		ItemPause:       time.Millisecond,
		AlertMultiplier: 2,
	})
}

func TestRunCycleUpdatesRecords(t *testing.T) {
	store := newFakeStore(liveRecord("aaa", 80000, 80000))
	res := &fakeResolver{caps: map[string]float64{"aaa": 150000}}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())

	saved := store.records["aaa"]
	assert.Equal(t, 150000.0, saved.MarketCap)
	assert.Equal(t, 150000.0, saved.ATHMarketCap)
	assert.Equal(t, 80000.0, saved.InitialMarketCap)
	require.NotNil(t, saved.PercentChange)
	assert.InDelta(t, 87.5, *saved.PercentChange, 0.001)
}

func TestRunCycleItemFailureDoesNotAbortCycle(t *testing.T) {
	store := newFakeStore(
		liveRecord("bad", 80000, 80000),
		liveRecord("good", 50000, 50000),
	)
	res := &fakeResolver{
		caps: map[string]float64{"good": 60000},
		errs: map[string]error{"bad": errors.New("provider meltdown")},
	}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())

	assert.Equal(t, 80000.0, store.records["bad"].MarketCap, "failed token keeps last known state")
	assert.Equal(t, 60000.0, store.records["good"].MarketCap, "other tokens still refresh")
}

func TestRunCycleSkipsTinyChanges(t *testing.T) {
	rec := liveRecord("aaa", 100000, 100000)
	rec.ATHMarketCap = 120000
	store := newFakeStore(rec)
	res := &fakeResolver{caps: map[string]float64{"aaa": 100100}}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())

	assert.Equal(t, 0, store.saves, "a 0.1%% move is below the persistence floor")
	assert.Equal(t, 100000.0, store.records["aaa"].MarketCap)
}

func TestRunCyclePersistsTinyChangeOnNewATH(t *testing.T) {
	// The record sits exactly at its all-time high, and the next reading is a
	// 0.15% move. The delta is below the persistence floor, but the new high
	// has to reach the store or it is lost when the next cycle reloads.
	store := newFakeStore(liveRecord("aaa", 100000, 100000))
	res := &fakeResolver{caps: map[string]float64{"aaa": 100150}}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, 100150.0, store.records["aaa"].MarketCap)
	assert.Equal(t, 100150.0, store.records["aaa"].ATHMarketCap)
}

func TestRunCycleMultiplierAlertFiresOnce(t *testing.T) {
	store := newFakeStore(liveRecord("aaa", 10000, 10000))
	res := &fakeResolver{caps: map[string]float64{"aaa": 25000}}
	notifier := &fakeNotifier{}
	sched := newTestScheduler(store, res, notifier, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())
	require.Len(t, notifier.tracking, 1)
	assert.Contains(t, notifier.tracking[0], "2x")
	assert.Equal(t, 2, store.records["aaa"].NotifiedMultiplier)

	// Same cap next cycle: below the change floor, and the multiplier was
	// already announced.
	sched.RunCycle(context.Background())
	assert.Len(t, notifier.tracking, 1)
}

func TestRunCycleMultiplierAdvances(t *testing.T) {
	store := newFakeStore(liveRecord("aaa", 10000, 10000))
	res := &fakeResolver{caps: map[string]float64{"aaa": 25000}}
	notifier := &fakeNotifier{}
	sched := newTestScheduler(store, res, notifier, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())
	require.Len(t, notifier.tracking, 1)

	res.caps["aaa"] = 52000
	sched.RunCycle(context.Background())
	require.Len(t, notifier.tracking, 2)
	assert.Contains(t, notifier.tracking[1], "5x")
}

func TestRunCycleRetiresAfterSustainedLowCap(t *testing.T) {
	store := newFakeStore(liveRecord("aaa", 80000, 80000))
	res := &fakeResolver{caps: map[string]float64{"aaa": 3000}}
	notifier := &fakeNotifier{}
	// Zero window: the second consecutive low observation retires.
	sched := newTestScheduler(store, res, notifier, tracker.NewMonitor(4000, 0))

	sched.RunCycle(context.Background())
	assert.Empty(t, store.retired, "first low observation only starts the clock")
	assert.Equal(t, models.StatusLive, store.records["aaa"].Status)

	sched.RunCycle(context.Background())
	assert.Contains(t, store.retired, "aaa")
	assert.Equal(t, models.StatusRetired, store.records["aaa"].Status)
	require.NotEmpty(t, notifier.system)
}

func TestRunCycleRetiredTokensAreNotRefreshed(t *testing.T) {
	record := liveRecord("aaa", 80000, 80000)
	record.Status = models.StatusRetired
	store := newFakeStore(record)
	res := &fakeResolver{caps: map[string]float64{"aaa": 90000}}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())
	assert.Equal(t, 0, res.calls)
}

func TestRunCycleListFailureAborts(t *testing.T) {
	store := newFakeStore(liveRecord("aaa", 80000, 80000))
	store.listErr = errors.New("db offline")
	res := &fakeResolver{caps: map[string]float64{"aaa": 90000}}
	sched := newTestScheduler(store, res, &fakeNotifier{}, tracker.NewMonitor(4000, 20*time.Minute))

	sched.RunCycle(context.Background())
	assert.Equal(t, 0, res.calls)
}
