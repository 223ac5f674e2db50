package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/service"
)

const updateTimeout = 30 * time.Second

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !b.cfg.IsAllowedUser(userID) {
		b.reply(chatID, "⛔ 접근 권한이 없습니다")
		return
	}

	user, err := b.storage.GetUserByTelegramID(userID)
	if err != nil {
		b.logger.Error("get user", zap.Int64("telegramID", userID), zap.Error(err))
		return
	}
	if user == nil {
		user = b.autoRegisterUser(msg.From)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	// "2025-03-04 치과" without the /add prefix
	if _, _, _, err := b.schedules.ParseAddArgs(text); err == nil {
		b.cmdAdd(ctx, chatID, text)
		return
	}
	b.reply(chatID, "일정을 추가하려면 <code>YYYY-MM-DD 제목</code> 형식으로 보내주세요. /help")
}

// autoRegisterUser registers an allowed user on first contact
func (b *Bot) autoRegisterUser(from *tgbotapi.User) *domain.User {
	name := from.FirstName
	if from.LastName != "" {
		name += " " + from.LastName
	}

	role := domain.RoleOwner
	if from.ID == b.cfg.PartnerTelegramID {
		role = domain.RolePartner
	}

	newUser := &domain.User{
		TelegramID: from.ID,
		Name:       name,
		Role:       role,
	}

	if err := b.storage.CreateUser(newUser); err != nil {
		b.logger.Error("auto-register user", zap.Int64("telegramID", from.ID), zap.Error(err))
		return nil
	}

	b.logger.Info("auto-registered user", zap.String("name", name), zap.Int64("telegramID", from.ID))
	return newUser
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil {
		return
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	msgID := callback.Message.MessageID

	if !b.cfg.IsAllowedUser(userID) {
		b.api.Request(tgbotapi.NewCallback(callback.ID, "⛔ 접근 권한이 없습니다"))
		return
	}

	action, arg, _ := strings.Cut(callback.Data, ":")
	answer := ""

	switch action {
	case "today":
		year, month := b.calendar.CurrentMonth()
		b.showMonth(ctx, chatID, msgID, year, month)

	case "month":
		year, month, err := parseMonthKey(arg)
		if err != nil {
			answer = "잘못된 요청입니다"
			break
		}
		b.showMonth(ctx, chatID, msgID, year, month)

	case "day":
		day, err := domain.ParseDateKey(arg)
		if err != nil {
			answer = "잘못된 요청입니다"
			break
		}
		b.showDay(ctx, chatID, msgID, day)

	case "del":
		sc, err := b.schedules.Get(ctx, arg)
		if err != nil {
			answer = scheduleErrorText(err)
			break
		}
		text := "🗑 이 일정을 삭제할까요?\n\n<b>" + escape(sc.Title) + "</b>\n" + sc.FormatRange()
		b.editMessage(chatID, msgID, text, confirmDeleteKeyboard(sc))

	case "delok":
		sc, err := b.schedules.Get(ctx, arg)
		if err == nil {
			err = b.schedules.Delete(ctx, arg)
		}
		if err != nil {
			answer = scheduleErrorText(err)
			break
		}
		answer = "삭제했습니다"
		b.showDay(ctx, chatID, msgID, sc.StartDate)

	default:
		answer = "알 수 없는 요청입니다"
	}

	b.api.Request(tgbotapi.NewCallback(callback.ID, answer))
}

func (b *Bot) showMonth(ctx context.Context, chatID int64, msgID int, year, month int) {
	view, err := b.calendar.Month(ctx, year, month)
	if err != nil {
		b.logger.Error("month view", zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		b.reply(chatID, "❌ 달력을 불러오지 못했습니다")
		return
	}
	b.editMessage(chatID, msgID, b.calendar.FormatMonth(view), monthKeyboard(view.Year, view.Month))
}

func (b *Bot) showDay(ctx context.Context, chatID int64, msgID int, day time.Time) {
	view, err := b.calendar.Day(ctx, day)
	if err != nil {
		b.logger.Error("day view", zap.String("day", domain.DateKey(day)), zap.Error(err))
		b.reply(chatID, "❌ 일정을 불러오지 못했습니다")
		return
	}
	text := b.schedules.FormatDaySchedule(view.Date, view.Schedules, view.HolidayName)
	b.editMessage(chatID, msgID, text, dayKeyboard(view.Date, view.Schedules))
}

func scheduleErrorText(err error) string {
	switch {
	case errors.Is(err, service.ErrScheduleNotFound):
		return "일정을 찾을 수 없습니다"
	case errors.Is(err, service.ErrInvalidSchedule):
		return "일정 정보가 올바르지 않습니다"
	default:
		return "오류가 발생했습니다"
	}
}
