// Package telegram provides the bot surface of stickerwatch: command
// dispatch for managing watched sticker packs and delivery of price alerts.
//
// Commands are routed through a handler map behind a whitelist middleware;
// non-whitelisted users are ignored entirely. The multi-step /add flow is
// driven by a per-user session state machine. Alert messages use MarkdownV2
// with a plain-text fallback when the formatted send is rejected.
package telegram

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/nvoronin/stickerwatch/internal/config"
	"github.com/nvoronin/stickerwatch/internal/logger"
	"github.com/nvoronin/stickerwatch/internal/models"
	"github.com/nvoronin/stickerwatch/internal/monitor"
	"github.com/nvoronin/stickerwatch/internal/storage"
)

const helpText = `Commands:
/add — watch a new sticker pack
/list — show your watched packs
/remove <n> — stop watching pack n from /list
/toggle <n> — pause or resume alerts for pack n
/setbuy <n> <multiplier> — set the buy alert multiplier
/setsell <n> <multiplier> — set the sell alert multiplier
/check — check current prices now
/report — toggle the daily report (e.g. /report morning Europe/Moscow)
/cancel — abort the current operation`

// Bot handles Telegram interaction: inbound commands and outbound alerts.
type Bot struct {
	api      *tgbotapi.BotAPI
	cfg      *config.Config
	watch    *storage.WatchStore
	deduper  *monitor.Deduper
	loop     *monitor.Loop
	sessions *sessionManager
	handlers map[string]func(ctx context.Context, userID int64, args string)
	now      func() time.Time
}

// NewBot creates the bot and registers its command handlers. Call
// AttachMonitor before Listen so /check can run manual checks.
func NewBot(cfg *config.Config, watch *storage.WatchStore, deduper *monitor.Deduper) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	b := &Bot{
		api:      api,
		cfg:      cfg,
		watch:    watch,
		deduper:  deduper,
		sessions: newSessionManager(),
		now:      time.Now,
	}
	b.registerHandlers()
	return b, nil
}

// AttachMonitor wires the price monitor loop used by /check.
func (b *Bot) AttachMonitor(loop *monitor.Loop) {
	b.loop = loop
}

func (b *Bot) registerHandlers() {
	b.handlers = map[string]func(ctx context.Context, userID int64, args string){
		"start":   func(_ context.Context, userID int64, _ string) { b.handleStart(userID) },
		"help":    func(_ context.Context, userID int64, _ string) { b.reply(userID, helpText) },
		"add":     func(_ context.Context, userID int64, _ string) { b.handleAdd(userID) },
		"cancel":  func(_ context.Context, userID int64, _ string) { b.handleCancel(userID) },
		"list":    func(_ context.Context, userID int64, _ string) { b.handleList(userID) },
		"remove":  func(_ context.Context, userID int64, args string) { b.handleRemove(userID, args) },
		"toggle":  func(_ context.Context, userID int64, args string) { b.handleToggle(userID, args) },
		"setbuy":  func(_ context.Context, userID int64, args string) { b.handleSetMultiplier(userID, args, models.DirectionBuy) },
		"setsell": func(_ context.Context, userID int64, args string) { b.handleSetMultiplier(userID, args, models.DirectionSell) },
		"check":   b.handleCheck,
		"report":  func(_ context.Context, userID int64, args string) { b.handleReport(userID, args) },
	}
}

// Listen starts consuming updates until ctx is cancelled.
func (b *Bot) Listen(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	logger.Info("Telegram bot listening as @%s", b.api.Self.UserName)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	go func() {
		for update := range updates {
			b.handleUpdate(ctx, update)
		}
		logger.Info("Telegram update stream closed")
	}()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID

	// Whitelist middleware: unknown users get no response at all.
	if !b.cfg.IsWhitelisted(userID) {
		logger.Debug("Ignoring message from non-whitelisted user %d", userID)
		return
	}

	if update.Message.IsCommand() {
		command := update.Message.Command()
		handler, known := b.handlers[command]
		if !known {
			b.reply(userID, "Unknown command. Use /help to see what I can do.")
			return
		}
		// Any command aborts an in-progress flow, except /cancel which is
		// the abort itself.
		if command != "cancel" && b.sessions.inFlow(userID) {
			b.sessions.reset(userID)
		}
		handler(ctx, userID, strings.TrimSpace(update.Message.CommandArguments()))
		return
	}

	b.handleText(userID, strings.TrimSpace(update.Message.Text))
}

func (b *Bot) handleStart(userID int64) {
	b.reply(userID, "👋 I watch sticker pack prices across TON marketplaces and alert you on buy/sell opportunities.\n\n"+helpText)
}

func (b *Bot) handleAdd(userID int64) {
	s := b.sessions.get(userID)
	s.state = stateAddingCollectionName
	b.reply(userID, "Which collection is the sticker pack from? Send the collection name.")
}

func (b *Bot) handleCancel(userID int64) {
	if b.sessions.inFlow(userID) {
		b.sessions.reset(userID)
		b.reply(userID, "Cancelled.")
		return
	}
	b.reply(userID, "Nothing to cancel.")
}

// handleText advances the /add flow based on the user's session state.
func (b *Bot) handleText(userID int64, text string) {
	s := b.sessions.get(userID)

	switch s.state {
	case stateAddingCollectionName:
		if text == "" {
			b.reply(userID, "Collection name must not be empty. Try again or /cancel.")
			return
		}
		s.collectionName = text
		s.state = stateAddingStickerpackName
		b.reply(userID, "Got it. Now send the sticker pack name.")

	case stateAddingStickerpackName:
		if text == "" {
			b.reply(userID, "Sticker pack name must not be empty. Try again or /cancel.")
			return
		}
		s.stickerpackName = text
		s.state = stateAddingLaunchPrice
		b.reply(userID, "What was the launch price in TON?")

	case stateAddingLaunchPrice:
		price, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
		if err != nil || price <= 0 {
			b.reply(userID, "Launch price must be a positive number. Try again or /cancel.")
			return
		}
		s.launchPrice = price
		s.state = stateConfirmingItem
		b.reply(userID, fmt.Sprintf(
			"Watch %s / %s with launch price %s TON?\nBuy alert at ≤ %s TON, sell alert at ≥ %s TON.\n\nReply \"yes\" to confirm or /cancel.",
			s.collectionName, s.stickerpackName, formatPrice(price),
			formatPrice(price*b.cfg.Defaults.BuyMultiplier),
			formatPrice(price*b.cfg.Defaults.SellMultiplier)))

	case stateConfirmingItem:
		if !strings.EqualFold(text, "yes") && !strings.EqualFold(text, "y") {
			b.reply(userID, "Reply \"yes\" to confirm or /cancel to abort.")
			return
		}
		b.finishAdd(userID, s)

	default:
		b.reply(userID, "Use /help to see what I can do.")
	}
}

func (b *Bot) finishAdd(userID int64, s *session) {
	item := models.WatchedItem{
		ID:              uuid.New().String(),
		CollectionName:  s.collectionName,
		StickerpackName: s.stickerpackName,
		LaunchPrice:     s.launchPrice,
		BuyMultiplier:   b.cfg.Defaults.BuyMultiplier,
		SellMultiplier:  b.cfg.Defaults.SellMultiplier,
		Enabled:         true,
		CreatedAt:       b.now(),
	}

	if err := b.watch.AddItem(userID, item); err != nil {
		logger.Error("Failed to add item for user %d: %v", userID, err)
		b.reply(userID, "Could not save that pack. Please try again.")
		return
	}
	b.sessions.reset(userID)
	b.reply(userID, fmt.Sprintf("✅ Watching %s / %s. You will get alerts when thresholds are crossed.",
		item.CollectionName, item.StickerpackName))
}

// sortedItems returns a user's items in the stable order used by the
// numbered /list, /remove, /toggle and /set* commands.
func (b *Bot) sortedItems(userID int64) []models.WatchedItem {
	itemMap := b.watch.Items(userID)
	items := make([]models.WatchedItem, 0, len(itemMap))
	for _, item := range itemMap {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CollectionName != items[j].CollectionName {
			return items[i].CollectionName < items[j].CollectionName
		}
		if items[i].StickerpackName != items[j].StickerpackName {
			return items[i].StickerpackName < items[j].StickerpackName
		}
		return items[i].ID < items[j].ID
	})
	return items
}

// itemByIndex resolves a 1-based /list index argument.
func (b *Bot) itemByIndex(userID int64, arg string) (models.WatchedItem, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return models.WatchedItem{}, false
	}
	items := b.sortedItems(userID)
	if n > len(items) {
		return models.WatchedItem{}, false
	}
	return items[n-1], true
}

func (b *Bot) handleList(userID int64) {
	b.reply(userID, formatItemList(b.sortedItems(userID)))
}

func (b *Bot) handleRemove(userID int64, args string) {
	item, ok := b.itemByIndex(userID, args)
	if !ok {
		b.reply(userID, "Usage: /remove <n> — n is the number from /list.")
		return
	}

	removed, found, err := b.watch.DeleteItem(userID, item.ID)
	if err != nil {
		logger.Error("Failed to delete item %s for user %d: %v", item.ID, userID, err)
	}
	if !found {
		b.reply(userID, "That pack is already gone.")
		return
	}

	// Orphaned notification records would leak suppression into a future
	// pack re-created with the same names.
	b.deduper.PurgeItem(userID, removed.ID)
	b.reply(userID, fmt.Sprintf("🗑 Stopped watching %s / %s.", removed.CollectionName, removed.StickerpackName))
}

func (b *Bot) handleToggle(userID int64, args string) {
	item, ok := b.itemByIndex(userID, args)
	if !ok {
		b.reply(userID, "Usage: /toggle <n> — n is the number from /list.")
		return
	}

	item.Enabled = !item.Enabled
	if err := b.watch.UpdateItem(userID, item); err != nil {
		logger.Error("Failed to toggle item %s for user %d: %v", item.ID, userID, err)
		b.reply(userID, "Could not update that pack. Please try again.")
		return
	}

	if item.Enabled {
		b.reply(userID, fmt.Sprintf("🔔 Alerts resumed for %s / %s.", item.CollectionName, item.StickerpackName))
	} else {
		b.reply(userID, fmt.Sprintf("🔕 Alerts paused for %s / %s.", item.CollectionName, item.StickerpackName))
	}
}

func (b *Bot) handleSetMultiplier(userID int64, args string, direction models.Direction) {
	fields := strings.Fields(args)
	usage := fmt.Sprintf("Usage: /set%s <n> <multiplier> — e.g. /set%s 1 2.5", direction, direction)
	if len(fields) != 2 {
		b.reply(userID, usage)
		return
	}

	item, ok := b.itemByIndex(userID, fields[0])
	if !ok {
		b.reply(userID, usage)
		return
	}

	mult, err := strconv.ParseFloat(strings.ReplaceAll(fields[1], ",", "."), 64)
	if err != nil || mult <= 0 {
		b.reply(userID, "Multiplier must be a positive number.")
		return
	}

	if direction == models.DirectionBuy {
		item.BuyMultiplier = mult
	} else {
		item.SellMultiplier = mult
	}
	if err := b.watch.UpdateItem(userID, item); err != nil {
		logger.Error("Failed to update multiplier for user %d: %v", userID, err)
		b.reply(userID, "Could not update that pack. Please try again.")
		return
	}

	reply := fmt.Sprintf("✅ %s / %s: buy ≤ %s TON, sell ≥ %s TON.",
		item.CollectionName, item.StickerpackName,
		formatPrice(item.BuyThreshold()), formatPrice(item.SellThreshold()))
	if item.BuyMultiplier >= item.SellMultiplier {
		reply += "\n⚠️ Buy multiplier is at or above the sell multiplier: both alerts can fire for the same listing."
	}
	b.reply(userID, reply)
}

func (b *Bot) handleCheck(ctx context.Context, userID int64, _ string) {
	if b.loop == nil {
		b.reply(userID, "Price monitoring is not running.")
		return
	}

	statuses, err := b.loop.ManualCheck(ctx, userID)
	if err != nil {
		b.reply(userID, "❌ Failed to fetch price data. Please try again later.")
		return
	}
	b.reply(userID, formatStatuses(statuses))
}

func (b *Bot) handleReport(userID int64, args string) {
	prefs, _ := b.watch.ReportPrefs(userID)

	if args == "" {
		prefs.Enabled = !prefs.Enabled
		if prefs.Enabled && prefs.TimePreference == "" {
			prefs.TimePreference = "morning"
		}
		if prefs.Enabled && prefs.Timezone == "" {
			prefs.Timezone = b.cfg.Reports.DefaultTimezone
		}
	} else {
		fields := strings.Fields(args)
		pref := strings.ToLower(fields[0])
		if pref != "morning" && pref != "afternoon" && pref != "evening" {
			b.reply(userID, "Usage: /report [morning|afternoon|evening] [timezone]")
			return
		}
		prefs.Enabled = true
		prefs.TimePreference = pref
		if len(fields) > 1 {
			if _, err := time.LoadLocation(fields[1]); err != nil {
				b.reply(userID, fmt.Sprintf("Unknown timezone %q. Use an IANA name like Europe/Moscow.", fields[1]))
				return
			}
			prefs.Timezone = fields[1]
		} else if prefs.Timezone == "" {
			prefs.Timezone = b.cfg.Reports.DefaultTimezone
		}
	}

	if err := b.watch.SetReportPrefs(userID, prefs); err != nil {
		logger.Error("Failed to save report prefs for user %d: %v", userID, err)
		b.reply(userID, "Could not save report settings. Please try again.")
		return
	}

	if prefs.Enabled {
		b.reply(userID, fmt.Sprintf("📬 Daily report enabled: %s, %s.", prefs.TimePreference, prefs.Timezone))
	} else {
		b.reply(userID, "📭 Daily report disabled.")
	}
}

// SendOpportunity delivers a price alert. It implements monitor.Notifier.
// The MarkdownV2 message is retried as plain text when Telegram rejects the
// formatting.
func (b *Bot) SendOpportunity(userID int64, item models.WatchedItem, opp models.Opportunity) error {
	msg := tgbotapi.NewMessage(userID, formatOpportunity(item, opp, b.now()))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := b.api.Send(msg); err != nil {
		logger.Warn("Markdown alert to user %d failed, sending plain text: %v", userID, err)
		fallback := tgbotapi.NewMessage(userID, formatOpportunityPlain(item, opp, b.now()))
		if _, err := b.api.Send(fallback); err != nil {
			return fmt.Errorf("failed to send alert: %w", err)
		}
	}
	return nil
}

// SendReport delivers a plain-text daily report. It implements report.Sender.
func (b *Bot) SendReport(userID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	return nil
}

func (b *Bot) reply(userID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		logger.Error("Failed to send message to user %d: %v", userID, err)
	}
}
