package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/planner/internal/calendar"
	"github.com/tazhate/planner/internal/domain"
)

const monthKeyLayout = "2006-01"

// monthKey formats a zero-based month as YYYY-MM
func monthKey(year, month int) string {
	year, month = calendar.Normalize(year, month)
	return fmt.Sprintf("%04d-%02d", year, month+1)
}

// parseMonthKey is the inverse of monthKey
func parseMonthKey(s string) (int, int, error) {
	t, err := time.Parse(monthKeyLayout, s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q", s)
	}
	return t.Year(), int(t.Month()) - 1, nil
}

// Month navigation keyboard
func monthKeyboard(year, month int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️", "month:"+monthKey(year, month-1)),
			tgbotapi.NewInlineKeyboardButtonData("오늘", "today"),
			tgbotapi.NewInlineKeyboardButtonData("▶️", "month:"+monthKey(year, month+1)),
		),
	)
}

// Day keyboard: one delete button per schedule, then day navigation
func dayKeyboard(day time.Time, schedules []*domain.Schedule) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for _, sc := range schedules {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+truncate(sc.Title, 30), "del:"+sc.ID),
		))
		if len(rows) >= 10 {
			break
		}
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️", "day:"+domain.DateKey(day.AddDate(0, 0, -1))),
		tgbotapi.NewInlineKeyboardButtonData("🗓 달력", "month:"+monthKey(day.Year(), int(day.Month())-1)),
		tgbotapi.NewInlineKeyboardButtonData("▶️", "day:"+domain.DateKey(day.AddDate(0, 0, 1))),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Confirm delete keyboard
func confirmDeleteKeyboard(sc *domain.Schedule) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ 삭제", "delok:"+sc.ID),
			tgbotapi.NewInlineKeyboardButtonData("◀️ 취소", "day:"+domain.DateKey(sc.StartDate)),
		),
	)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
