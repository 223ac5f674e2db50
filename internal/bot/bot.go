package bot

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/planner/config"
	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/service"
	"github.com/tazhate/planner/internal/storage"
)

// HolidayService is the part of the holiday cache the bot needs
type HolidayService interface {
	Get(ctx context.Context, year int) (domain.HolidayMap, error)
	Refresh(ctx context.Context, year int) (domain.HolidayMap, error)
	Month(ctx context.Context, year, month int) (domain.HolidayMap, error)
}

// messenger sends messages and answers callbacks; *tgbotapi.BotAPI satisfies it
type messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Bot struct {
	tg        *tgbotapi.BotAPI
	api       messenger
	cfg       *config.Config
	storage   *storage.Storage
	calendar  *service.CalendarService
	schedules *service.ScheduleService
	holidays  HolidayService
	logger    *zap.Logger
}

func New(cfg *config.Config, storage *storage.Storage, calendarSvc *service.CalendarService, scheduleSvc *service.ScheduleService, holidaySvc HolidayService, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	logger.Info("authorized", zap.String("username", api.Self.UserName))

	bot := newBot(cfg, storage, calendarSvc, scheduleSvc, holidaySvc, api, logger)
	bot.tg = api

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func newBot(cfg *config.Config, storage *storage.Storage, calendarSvc *service.CalendarService, scheduleSvc *service.ScheduleService, holidaySvc HolidayService, api messenger, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		api:       api,
		cfg:       cfg,
		storage:   storage,
		calendar:  calendarSvc,
		schedules: scheduleSvc,
		holidays:  holidaySvc,
		logger:    logger,
	}
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "month", Description: "🗓 이번 달 달력"},
		{Command: "day", Description: "📅 오늘 일정"},
		{Command: "add", Description: "➕ 일정 추가"},
		{Command: "holidays", Description: "🎌 공휴일 목록"},
		{Command: "help", Description: "❓ 도움말"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		b.logger.Warn("failed to set commands", zap.Error(err))
	}
}

func (b *Bot) SetupWebhook() error {
	webhookURL := b.cfg.WebhookURL + "/bot"

	wh, err := tgbotapi.NewWebhook(webhookURL)
	if err != nil {
		return fmt.Errorf("create webhook: %w", err)
	}

	_, err = b.api.Request(wh)
	if err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	info, err := b.tg.GetWebhookInfo()
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}

	if info.LastErrorDate != 0 {
		b.logger.Warn("webhook last error", zap.String("message", info.LastErrorMessage))
	}

	b.logger.Info("webhook set", zap.String("url", webhookURL))
	return nil
}

// WebhookHandler decodes Telegram updates posted to the webhook URL
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := b.tg.HandleUpdate(r)
		if err != nil {
			b.logger.Warn("bad webhook update", zap.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		go b.handleUpdate(*update)
		w.WriteHeader(http.StatusOK)
	})
}

// Start registers the webhook, or long-polls for updates when no webhook URL
// is configured, and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.cfg.UseWebhook() {
		if err := b.SetupWebhook(); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info("polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// editMessage replaces the text and keyboard of a message sent earlier
func (b *Bot) editMessage(chatID int64, msgID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, text, keyboard)
	edit.ParseMode = "HTML"
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Debug("edit message failed", zap.Error(err))
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		b.logger.Warn("send message failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}
