package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/tazhate/planner/internal/clients/holidayapi"
	"github.com/tazhate/planner/internal/domain"
	"github.com/tazhate/planner/internal/service"
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start":
		b.cmdStart(chatID, user)
	case "help":
		b.cmdHelp(chatID)
	case "month", "calendar":
		b.cmdMonth(ctx, chatID, args)
	case "day", "today":
		b.cmdDay(ctx, chatID, args)
	case "add":
		b.cmdAdd(ctx, chatID, args)
	case "holidays":
		b.cmdHolidays(ctx, chatID, args, false)
	case "refresh":
		if msg.From.ID != b.cfg.OwnerTelegramID {
			b.reply(chatID, "⛔ 소유자만 사용할 수 있습니다")
			return
		}
		b.cmdHolidays(ctx, chatID, args, true)
	default:
		b.reply(chatID, "알 수 없는 명령입니다. /help 를 입력하세요")
	}
}

func (b *Bot) cmdStart(chatID int64, user *domain.User) {
	name := "👋"
	if user != nil {
		name = fmt.Sprintf("👋 %s님,", escape(user.Name))
	}
	b.reply(chatID, name+" 가족 일정 플래너입니다.\n\n/month 로 달력을, /day 로 오늘 일정을 볼 수 있어요. /help")
}

func (b *Bot) cmdHelp(chatID int64) {
	help := `<b>📖 도움말</b>

<b>달력</b>
/month — 이번 달
/month 2025-08 — 지정한 달

<b>일정</b>
/day — 오늘 일정
/day 2025-08-15 — 지정한 날짜
/add 2025-08-15 병원 — 하루 일정
/add 2025-08-14..2025-08-16 여행 — 여러 날 일정

<b>공휴일</b>
/holidays — 올해 공휴일
/holidays 2026 — 지정한 해
/holidays 2025-10 — 지정한 달
/refresh 2026 — 공휴일 다시 불러오기

달력에서 › 는 오늘, * 는 공휴일, · 는 일정이 있는 날입니다.`

	b.reply(chatID, help)
}

// /month [YYYY-MM]
func (b *Bot) cmdMonth(ctx context.Context, chatID int64, args string) {
	year, month := b.calendar.CurrentMonth()
	if args != "" {
		var err error
		if year, month, err = parseMonthKey(args); err != nil {
			b.reply(chatID, "형식: /month YYYY-MM")
			return
		}
	}

	view, err := b.calendar.Month(ctx, year, month)
	if err != nil {
		b.logger.Error("month view", zap.Int("year", year), zap.Int("month", month), zap.Error(err))
		b.reply(chatID, "❌ 달력을 불러오지 못했습니다")
		return
	}
	if err := b.SendMessageWithKeyboard(chatID, b.calendar.FormatMonth(view), monthKeyboard(view.Year, view.Month)); err != nil {
		b.logger.Warn("send month", zap.Error(err))
	}
}

// /day [YYYY-MM-DD]
func (b *Bot) cmdDay(ctx context.Context, chatID int64, args string) {
	day := b.calendar.Today()
	if args != "" {
		var err error
		if day, err = domain.ParseDateKey(args); err != nil {
			b.reply(chatID, "형식: /day YYYY-MM-DD")
			return
		}
	}

	view, err := b.calendar.Day(ctx, day)
	if err != nil {
		b.logger.Error("day view", zap.String("day", domain.DateKey(day)), zap.Error(err))
		b.reply(chatID, "❌ 일정을 불러오지 못했습니다")
		return
	}
	text := b.schedules.FormatDaySchedule(view.Date, view.Schedules, view.HolidayName)
	if err := b.SendMessageWithKeyboard(chatID, text, dayKeyboard(view.Date, view.Schedules)); err != nil {
		b.logger.Warn("send day", zap.Error(err))
	}
}

// /add YYYY-MM-DD[..YYYY-MM-DD] title
func (b *Bot) cmdAdd(ctx context.Context, chatID int64, args string) {
	start, end, title, err := b.schedules.ParseAddArgs(args)
	if err != nil {
		b.reply(chatID, "❌ "+err.Error())
		return
	}

	sc, err := b.schedules.Create(ctx, &domain.Schedule{Title: title, StartDate: start, EndDate: end})
	if err != nil {
		if errors.Is(err, service.ErrInvalidSchedule) {
			b.reply(chatID, "❌ "+escape(err.Error()))
			return
		}
		b.logger.Error("create schedule", zap.Error(err))
		b.reply(chatID, "❌ 일정을 저장하지 못했습니다")
		return
	}

	text := fmt.Sprintf("✅ 일정을 추가했습니다\n\n<b>%s</b>\n%s", escape(sc.Title), sc.FormatRange())
	if err := b.SendMessageWithKeyboard(chatID, text, dayKeyboard(sc.StartDate, nil)); err != nil {
		b.logger.Warn("send add", zap.Error(err))
	}
}

// /holidays [YYYY|YYYY-MM] and /refresh [YYYY]
func (b *Bot) cmdHolidays(ctx context.Context, chatID int64, args string, refresh bool) {
	if !refresh && strings.Contains(args, "-") {
		b.cmdMonthHolidays(ctx, chatID, args)
		return
	}

	year := b.calendar.Today().Year()
	if args != "" {
		y, err := strconv.Atoi(args)
		if err != nil || y < 1900 || y > 2999 {
			b.reply(chatID, "형식: /holidays YYYY 또는 /holidays YYYY-MM")
			return
		}
		year = y
	}

	var (
		holidays domain.HolidayMap
		err      error
	)
	if refresh {
		holidays, err = b.holidays.Refresh(ctx, year)
	} else {
		holidays, err = b.holidays.Get(ctx, year)
	}
	if err != nil {
		b.logger.Warn("holiday lookup", zap.Int("year", year), zap.Error(err))
		b.reply(chatID, holidayErrorText(err))
		return
	}

	b.reply(chatID, b.calendar.FormatHolidays(year, holidays))
}

func (b *Bot) cmdMonthHolidays(ctx context.Context, chatID int64, args string) {
	year, month, err := parseMonthKey(args)
	if err != nil {
		b.reply(chatID, "형식: /holidays YYYY-MM")
		return
	}

	holidays, err := b.holidays.Month(ctx, year, month+1)
	if err != nil {
		b.logger.Warn("holiday lookup", zap.Int("year", year), zap.Int("month", month+1), zap.Error(err))
		b.reply(chatID, holidayErrorText(err))
		return
	}
	if len(holidays) == 0 {
		b.reply(chatID, fmt.Sprintf("%d년 %d월에는 공휴일이 없습니다", year, month+1))
		return
	}
	b.reply(chatID, b.calendar.FormatHolidays(year, holidays))
}

func holidayErrorText(err error) string {
	if errors.Is(err, holidayapi.ErrNotConfigured) {
		return "❌ 공휴일 API 키가 설정되지 않았습니다"
	}
	return "❌ 공휴일 정보를 불러오지 못했습니다"
}

func escape(s string) string {
	return html.EscapeString(s)
}
