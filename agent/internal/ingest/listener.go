package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"call-tracker/agent/database"
	"call-tracker/agent/internal/models"
	"call-tracker/agent/internal/providers"
	"call-tracker/agent/internal/resolver"
	"call-tracker/agent/internal/tracker"
	"call-tracker/shared/logger"
	"call-tracker/shared/notifications"
	"call-tracker/shared/utils"

	"github.com/mymmrac/telego"
)

// pendingTTL bounds how long an unresolved call waits for a companion-bot
// reply before it is dropped.
const pendingTTL = 10 * time.Minute

// CommandHandler processes admin commands. Returns true when the message
// was a command and has been handled.
type CommandHandler interface {
	HandleCommand(msg *telego.Message) bool
}

type pendingCall struct {
	contract   string
	chain      string
	callerID   int64
	callerName string
	role       string
	createdAt  time.Time
}

// Listener consumes Telegram updates from the configured source groups and
// turns authorized calls into tracked token records.
type Listener struct {
	bot          *telego.Bot
	tokens       *database.TokenStore
	users        *database.UserStore
	guard        *resolver.ConcurrencyGuard
	resolver     *resolver.Resolver
	auth         *Authorizer
	commands     CommandHandler
	sourceGroups map[int64]bool

	mu      sync.Mutex
	pending map[string]pendingCall
}

func NewListener(bot *telego.Bot, tokens *database.TokenStore, users *database.UserStore, guard *resolver.ConcurrencyGuard, res *resolver.Resolver, auth *Authorizer, commands CommandHandler, sourceGroupIDs []int64) *Listener {
	groups := make(map[int64]bool, len(sourceGroupIDs))
	for _, id := range sourceGroupIDs {
		groups[id] = true
	}
	return &Listener{
		bot:          bot,
		tokens:       tokens,
		users:        users,
		guard:        guard,
		resolver:     res,
		auth:         auth,
		commands:     commands,
		sourceGroups: groups,
		pending:      make(map[string]pendingCall),
	}
}

// Run long-polls updates until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	updates, err := l.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{Timeout: 60})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}
	logger.Log.Info("Telegram listener started, waiting for updates.")

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Telegram listener stopping.")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram update channel closed")
			}
			if update.Message != nil {
				l.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (l *Listener) handleMessage(ctx context.Context, msg *telego.Message) {
	if msg.Text == "" || msg.From == nil {
		return
	}

	if l.commands != nil && strings.HasPrefix(msg.Text, "/") {
		if l.commands.HandleCommand(msg) {
			return
		}
	}

	if len(l.sourceGroups) > 0 && !l.sourceGroups[msg.Chat.ID] {
		return
	}

	if msg.From.IsBot {
		if IsCompanionBot(msg.From.Username) {
			l.handleCompanionMessage(ctx, msg.Text)
		}
		return
	}

	contract, chain, found := ExtractContractAddress(msg.Text)
	if !found {
		return
	}

	role := l.auth.RoleFor(msg.From.ID, msg.From.Username)
	if role == "" {
		logger.Log.Debugf("Ignoring contract %s from unauthorized user %d (@%s).",
			contract, msg.From.ID, msg.From.Username)
		return
	}
	if l.users != nil {
		l.users.RecordUserID(msg.From.Username, msg.From.ID)
	}

	l.handleCall(ctx, contract, chain, msg.From.ID, msg.From.Username, role)
}

func (l *Listener) handleCall(ctx context.Context, contract, chain string, callerID int64, callerName, role string) {
	if existing, err := l.tokens.GetByContract(contract); err == nil {
		logger.Log.Infof("Contract %s already tracked as %s (status %s), skipping duplicate call.",
			contract, existing.Symbol, existing.Status)
		return
	} else if !errors.Is(err, database.ErrTokenNotFound) {
		logger.Log.Errorf("Lookup of existing record for %s failed: %v", contract, err)
		return
	}

	meta, err := l.resolver.Resolve(ctx, contract)
	if err != nil {
		if errors.Is(err, resolver.ErrNotFound) {
			// Too new for the providers. Park the call; a companion stat
			// bot in the group may supply numbers shortly.
			l.addPending(contract, chain, callerID, callerName, role)
			logger.Log.Infof("No provider data for %s yet, awaiting companion bot stats.", contract)
			return
		}
		logger.Log.Errorf("Resolve failed for %s: %v", contract, err)
		return
	}

	l.createRecord(ctx, meta, chain, callerName, role, 0)
}

func (l *Listener) createRecord(ctx context.Context, meta *providers.TokenMetadata, chain, callerName, role string, seedATH float64) {
	record := tracker.NewRecord(meta, seedATH)
	record.Chain = chain
	record.CallerUsername = callerName
	record.ShotCaller = role == models.RoleShotCaller

	if err := tracker.CheckInvariants(record); err != nil {
		logger.Log.Errorf("Refusing to create record for %s: %v", meta.Contract, err)
		return
	}

	err := l.guard.Write(ctx, "token:"+meta.Contract, func() error {
		return l.tokens.Save(record)
	})
	if err != nil {
		logger.Log.Errorf("Persisting new call for %s failed: %v", meta.Contract, err)
		return
	}

	logger.Log.Infof("New call: %s (%s) by @%s [%s] at $%s cap.",
		record.Symbol, record.Contract, callerName, role, utils.FormatUSD(record.MarketCap))
	l.announceCall(record)
}

func (l *Listener) announceCall(record *models.TokenRecord) {
	header := "🔔 *ALERT*"
	if record.ShotCaller {
		header = "🧠 *BIG BRAIN CALL*"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", header)
	fmt.Fprintf(&b, "*%s*", notifications.EscapeMarkdownV2(record.Symbol))
	if record.Name != "" {
		fmt.Fprintf(&b, " \\- %s", notifications.EscapeMarkdownV2(record.Name))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "💰 Market Cap: $%s\n", notifications.EscapeMarkdownV2(utils.FormatUSD(record.MarketCap)))
	if record.Volume24h > 0 {
		fmt.Fprintf(&b, "📊 24h Volume: $%s\n", notifications.EscapeMarkdownV2(utils.FormatUSD(record.Volume24h)))
	}
	fmt.Fprintf(&b, "🧾 `%s`\n", record.Contract)
	if record.CallerUsername != "" {
		fmt.Fprintf(&b, "👤 Called by @%s\n", notifications.EscapeMarkdownV2(record.CallerUsername))
	}
	if record.DexURL != "" {
		fmt.Fprintf(&b, "\n[DexScreener](%s)", record.DexURL)
	}
	if record.TwitterURL != "" {
		fmt.Fprintf(&b, " \\| [Twitter](%s)", record.TwitterURL)
	}
	if record.WebsiteURL != "" {
		fmt.Fprintf(&b, " \\| [Website](%s)", record.WebsiteURL)
	}

	message := b.String()
	notifications.SendCallAlertMessage(message)
	if record.ShotCaller {
		notifications.SendShotCallerAlertMessage(message)
	}
}

func (l *Listener) addPending(contract, chain string, callerID int64, callerName, role string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[contract] = pendingCall{
		contract:   contract,
		chain:      chain,
		callerID:   callerID,
		callerName: callerName,
		role:       role,
		createdAt:  time.Now(),
	}
}

// handleCompanionMessage completes pending calls when a stat bot mentions
// one of the waiting contracts. Expired entries are swept on every visit.
func (l *Listener) handleCompanionMessage(ctx context.Context, text string) {
	l.mu.Lock()
	var matched []pendingCall
	now := time.Now()
	for contract, call := range l.pending {
		if now.Sub(call.createdAt) > pendingTTL {
			delete(l.pending, contract)
			continue
		}
		if ContainsContract(text, contract) {
			matched = append(matched, call)
			delete(l.pending, contract)
		}
	}
	l.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	stats, ok := ParseCompanionMessage(text)
	if !ok {
		logger.Log.Debug("Companion bot message mentioned a pending contract but carried no usable stats.")
		return
	}

	for _, call := range matched {
		symbol := stats.Symbol
		if symbol == "" {
			symbol = providers.UnknownSymbol
		}
		meta := &providers.TokenMetadata{
			Contract:   call.contract,
			Symbol:     symbol,
			MarketCap:  stats.MarketCap,
			Volume24h:  stats.Volume24h,
			Source:     "companion-bot",
			ResolvedAt: now.UTC(),
		}
		logger.Log.Infof("Companion bot supplied stats for pending contract %s (cap $%s).",
			call.contract, utils.FormatUSD(stats.MarketCap))
		l.createRecord(ctx, meta, call.chain, call.callerName, call.role, stats.ATH)
	}
}

// PendingCount reports how many calls are waiting on companion-bot data.
func (l *Listener) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}
