// Package telegram pushes snapshot and diff summaries via the Telegram Bot
// API. It formats per-period deltas into a MarkdownV2 message and handles
// delivery with bounded retry for rate limiting and network hiccups.
package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/scheduler"
)

// maxEntryLines caps how many per-period lines a diff message carries before
// collapsing the remainder into a count.
const maxEntryLines = 12

// Client handles Telegram notifications. It implements scheduler.Sink.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
	loc            *time.Location
}

// NewClient creates a new Telegram client. Display times are rendered in
// Europe/Berlin, matching the CE(S)T framing of the published charts; UTC is
// used when the timezone database is unavailable.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		loc = time.UTC
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		loc:            loc,
	}, nil
}

// HandleSnapshot announces the initial accepted snapshot.
func (c *Client) HandleSnapshot(snap models.Snapshot, tc scheduler.TitleContext) error {
	return c.send(formatSnapshot(snap, tc, c.loc))
}

// HandleDiff sends a formatted diff summary.
func (c *Client) HandleDiff(d models.Diff, tc scheduler.TitleContext) error {
	return c.send(formatDiff(d, tc, c.loc))
}

// send delivers a MarkdownV2 message with retry.
func (c *Client) send(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatSnapshot builds the bootstrap announcement.
func formatSnapshot(snap models.Snapshot, tc scheduler.TitleContext, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("⚡ *Indicated Imbalance — watching*\n\n")
	b.WriteString(fmt.Sprintf("📅 Settlement day: %s\n", escapeMarkdownV2(formatDate(tc.SettlementDate))))
	b.WriteString(fmt.Sprintf("🕐 Latest publish: %s\n", escapeMarkdownV2(formatClock(tc.PublishedAt, loc))))
	b.WriteString(fmt.Sprintf("📊 Periods with a forecast: %s\n", escapeMarkdownV2(strconv.Itoa(len(snap.Records)))))
	return b.String()
}

// formatDiff builds the per-update message: title line, headline statistics,
// then one line per non-unchanged period, capped at maxEntryLines.
func formatDiff(d models.Diff, tc scheduler.TitleContext, loc *time.Location) string {
	var b strings.Builder

	update := fmt.Sprintf("Update %d", tc.Cycle)
	if tc.Retry {
		update += " (Retry)"
	}

	b.WriteString("⚡ *Indicated Imbalance update*\n\n")
	b.WriteString(fmt.Sprintf("📅 %s — %s vs %s \\(%s\\)\n",
		escapeMarkdownV2(formatDate(tc.SettlementDate)),
		escapeMarkdownV2(formatClock(d.PreviousPublishedAt, loc)),
		escapeMarkdownV2(formatClock(d.NewPublishedAt, loc)),
		escapeMarkdownV2(update),
	))

	sum := d.Summary()
	b.WriteString(fmt.Sprintf("📊 %s changed, %s appeared, %s disappeared\n",
		escapeMarkdownV2(strconv.Itoa(sum.Changed)),
		escapeMarkdownV2(strconv.Itoa(sum.Appeared)),
		escapeMarkdownV2(strconv.Itoa(sum.Disappeared)),
	))
	b.WriteString(fmt.Sprintf("📈 Mean delta %s MW, mean abs %s MW, swing %s / %s MW\n\n",
		escapeMarkdownV2(fmt.Sprintf("%+.1f", sum.MeanDelta)),
		escapeMarkdownV2(fmt.Sprintf("%.1f", sum.MeanAbsDelta)),
		escapeMarkdownV2(fmt.Sprintf("%+.1f", sum.MaxIncrease)),
		escapeMarkdownV2(fmt.Sprintf("%+.1f", sum.MaxDecrease)),
	))

	lines := 0
	skipped := 0
	for _, e := range d.Entries {
		if e.Status == models.StatusUnchanged {
			continue
		}
		if lines >= maxEntryLines {
			skipped++
			continue
		}
		b.WriteString(formatEntry(e))
		lines++
	}
	if skipped > 0 {
		b.WriteString(fmt.Sprintf("… and %s more\n", escapeMarkdownV2(strconv.Itoa(skipped))))
	}
	if lines == 0 && skipped == 0 {
		b.WriteString("No per\\-period changes\\.\n")
	}

	return b.String()
}

func formatEntry(e models.DiffEntry) string {
	sp := escapeMarkdownV2(fmt.Sprintf("SP %d", e.SettlementPeriod))
	switch e.Status {
	case models.StatusAppeared:
		return fmt.Sprintf("🆕 %s: %s MW\n", sp, escapeMarkdownV2(fmt.Sprintf("%.1f", *e.NewValue)))
	case models.StatusDisappeared:
		return fmt.Sprintf("❌ %s: was %s MW\n", sp, escapeMarkdownV2(fmt.Sprintf("%.1f", *e.PreviousValue)))
	default:
		arrow := "📈"
		if *e.Delta < 0 {
			arrow = "📉"
		}
		return fmt.Sprintf("%s %s: %s → %s MW \\(%s\\)\n",
			arrow, sp,
			escapeMarkdownV2(fmt.Sprintf("%.1f", *e.PreviousValue)),
			escapeMarkdownV2(fmt.Sprintf("%.1f", *e.NewValue)),
			escapeMarkdownV2(fmt.Sprintf("%+.1f", *e.Delta)),
		)
	}
}

// formatDate renders "2025-12-07" as "07 Dec 2025"; unparseable input is
// passed through.
func formatDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("02 Jan 2006")
}

func formatClock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04 MST")
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
