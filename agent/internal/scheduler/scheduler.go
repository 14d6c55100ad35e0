package scheduler

import (
	"context"
	"fmt"
	"math"
	"time"

	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/providers"
	"call-tracker/agent/internal/resolver"
	"call-tracker/agent/internal/tracker"
	"call-tracker/shared/logger"
	"call-tracker/shared/notifications"
	"call-tracker/shared/utils"

	"github.com/robfig/cron/v3"
)

// RecordStore is the persistence surface the scheduler needs.
type RecordStore interface {
	ListLive() ([]models.TokenRecord, error)
	Save(record *models.TokenRecord) error
	Retire(contract, reason string, marketCap float64) error
}

// TokenResolver fetches current metadata, bypassing the read cache.
type TokenResolver interface {
	ResolveFresh(ctx context.Context, contract string) (*providers.TokenMetadata, error)
}

// Notifier posts refresh outcomes to chat.
type Notifier interface {
	SendTrackingUpdate(message string)
	SendSystemLog(message string)
}

// TelegramNotifier routes through the shared notifications package.
type TelegramNotifier struct{}

func (TelegramNotifier) SendTrackingUpdate(message string) {
	notifications.SendTrackingUpdateMessage(message)
}

func (TelegramNotifier) SendSystemLog(message string) {
	notifications.SendSystemLogMessage(message)
}

// Options tune a refresh cycle.
type Options struct {
	// MinChangePct suppresses persistence and notification when the cap
	// moved less than this percentage since the last refresh.
	MinChangePct float64
	// ItemPause spaces provider traffic between consecutive tokens.
	ItemPause time.Duration
	// AlertMultiplier is the first whole multiple of the initial cap worth
	// announcing. Zero disables multiplier alerts.
	AlertMultiplier int
}

// Scheduler drives periodic refresh of all live token records.
type Scheduler struct {
	store    RecordStore
	resolver TokenResolver
	guard    *resolver.ConcurrencyGuard
	monitor  *tracker.Monitor
	notifier Notifier
	opts     Options
}

func New(store RecordStore, res TokenResolver, guard *resolver.ConcurrencyGuard, monitor *tracker.Monitor, notifier Notifier, opts Options) *Scheduler {
	if opts.ItemPause <= 0 {
		opts.ItemPause = 200 * time.Millisecond
	}
	return &Scheduler{
		store:    store,
		resolver: res,
		guard:    guard,
		monitor:  monitor,
		notifier: notifier,
		opts:     opts,
	}
}

// Register wires the refresh cycle into a cron instance.
func (s *Scheduler) Register(c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.RunCycle(ctx)
	})
}

// RunCycle refreshes every live record once. A failure on one token logs
// and moves on; the cycle always visits the full list.
func (s *Scheduler) RunCycle(ctx context.Context) {
	records, err := s.store.ListLive()
	if err != nil {
		logger.Log.Errorf("Refresh cycle aborted, could not list live tokens: %v", err)
		return
	}
	if len(records) == 0 {
		logger.Log.Debug("Refresh cycle: no live tokens to refresh.")
		return
	}

	logger.Log.Infof("Refresh cycle starting for %d live tokens.", len(records))
	refreshed, skipped, failed, retired := 0, 0, 0, 0

	for i := range records {
		if ctx.Err() != nil {
			logger.Log.Warnf("Refresh cycle cancelled after %d/%d tokens.", i, len(records))
			return
		}
		record := &records[i]

		switch s.refreshOne(ctx, record) {
		case outcomeRefreshed:
			refreshed++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		case outcomeRetired:
			retired++
		}

		if i < len(records)-1 {
			_ = resolver.Sleep(ctx, s.opts.ItemPause)
		}
	}

	logger.Log.Infof("Refresh cycle done: %d refreshed, %d unchanged, %d failed, %d retired.",
		refreshed, skipped, failed, retired)
}

type outcome int

const (
	outcomeRefreshed outcome = iota
	outcomeSkipped
	outcomeFailed
	outcomeRetired
)

func (s *Scheduler) refreshOne(ctx context.Context, record *models.TokenRecord) outcome {
	if record.Contract == "" {
		logger.Log.Warnf("Skipping record %d with no contract address.", record.ID)
		return outcomeSkipped
	}

	meta, err := s.resolver.ResolveFresh(ctx, record.Contract)
	if err != nil {
		// An unreachable token keeps its last known cap; the retirement
		// countdown still runs on that figure.
		logger.Log.Warnf("Refresh failed for %s (%s): %v", record.Symbol, record.Contract, err)
		if s.observeRetirement(ctx, record) {
			return outcomeRetired
		}
		return outcomeFailed
	}

	previousCap := record.MarketCap
	previousATH := record.ATHMarketCap
	if err := tracker.Apply(record, meta); err != nil {
		logger.Log.Errorf("Rejected update for %s: %v", record.Contract, err)
		return outcomeFailed
	}

	if s.observeRetirement(ctx, record) {
		return outcomeRetired
	}

	// A new ATH must always hit the store, no matter how small the move.
	if previousCap > 0 && record.ATHMarketCap == previousATH {
		deltaPct := math.Abs((record.MarketCap - previousCap) / previousCap * 100)
		if deltaPct < s.opts.MinChangePct {
			return outcomeSkipped
		}
	}

	if err := s.saveRecord(ctx, record); err != nil {
		return outcomeFailed
	}

	s.maybeAlertMultiplier(ctx, record)
	return outcomeRefreshed
}

func (s *Scheduler) saveRecord(ctx context.Context, record *models.TokenRecord) error {
	err := s.guard.Write(ctx, "token:"+record.Contract, func() error {
		return s.store.Save(record)
	})
	if err != nil {
		logger.Log.Errorf("Persisting refresh for %s failed: %v", record.Contract, err)
	}
	return err
}

// observeRetirement feeds the monitor and performs the status flip when the
// token has stayed under the floor for the whole window.
func (s *Scheduler) observeRetirement(ctx context.Context, record *models.TokenRecord) bool {
	if s.monitor == nil || !s.monitor.Observe(record.Contract, record.MarketCap) {
		return false
	}

	reason := fmt.Sprintf("market cap below $%s for the full retirement window",
		utils.FormatUSD(s.monitor.Threshold()))
	err := s.guard.Write(ctx, "retire:"+record.Contract, func() error {
		return s.store.Retire(record.Contract, reason, record.MarketCap)
	})
	if err != nil {
		logger.Log.Errorf("Retiring %s failed: %v", record.Contract, err)
		return false
	}
	s.monitor.Forget(record.Contract)
	record.Status = models.StatusRetired

	logger.Log.Infof("Retired %s (%s) at $%s market cap.", record.Symbol, record.Contract, utils.FormatUSD(record.MarketCap))
	if s.notifier != nil {
		s.notifier.SendSystemLog(fmt.Sprintf("🪦 Retired *%s* \\(cap $%s, under floor too long\\)",
			notifications.EscapeMarkdownV2(record.Symbol),
			notifications.EscapeMarkdownV2(utils.FormatUSD(record.MarketCap))))
	}
	return true
}

// maybeAlertMultiplier announces each new whole multiple of the initial cap
// exactly once per threshold.
func (s *Scheduler) maybeAlertMultiplier(ctx context.Context, record *models.TokenRecord) {
	if s.opts.AlertMultiplier <= 0 || s.notifier == nil {
		return
	}
	mult := tracker.Multiplier(record)
	if mult < s.opts.AlertMultiplier || mult <= record.NotifiedMultiplier {
		return
	}

	record.NotifiedMultiplier = mult
	if err := s.saveRecord(ctx, record); err != nil {
		return
	}

	msg := fmt.Sprintf("🚀 *%s* hit *%dx* from call\\!\n💰 Called at: $%s\n📈 Now: $%s",
		notifications.EscapeMarkdownV2(record.Symbol),
		mult,
		notifications.EscapeMarkdownV2(utils.FormatUSD(record.InitialMarketCap)),
		notifications.EscapeMarkdownV2(utils.FormatUSD(record.MarketCap)))
	s.notifier.SendTrackingUpdate(msg)
}
