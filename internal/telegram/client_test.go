package telegram

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Maciej1407/Energy-Data-Visualisation/internal/models"
	"github.com/Maciej1407/Energy-Data-Visualisation/internal/scheduler"
)

func fptr(v float64) *float64 { return &v }

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text",
			input:    "hello world",
			expected: "hello world",
		},
		{
			name:     "negative value",
			input:    "-120.5",
			expected: "\\-120\\.5",
		},
		{
			name:     "date",
			input:    "07 Dec 2025",
			expected: "07 Dec 2025",
		},
		{
			name:     "parentheses and dots",
			input:    "Update 3 (Retry).",
			expected: "Update 3 \\(Retry\\)\\.",
		},
		{
			name:     "all specials",
			input:    "_*[]()~`>#+-=|{}.!",
			expected: "\\_\\*\\[\\]\\(\\)\\~\\`\\>\\#\\+\\-\\=\\|\\{\\}\\.\\!",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdownV2(tt.input); got != tt.expected {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate("2025-12-07"); got != "07 Dec 2025" {
		t.Errorf("formatDate = %q, want %q", got, "07 Dec 2025")
	}
	if got := formatDate("not-a-date"); got != "not-a-date" {
		t.Errorf("Unparseable dates should pass through, got %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	utc := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)

	if got := formatClock(utc, time.UTC); got != "10:00 UTC" {
		t.Errorf("formatClock = %q, want %q", got, "10:00 UTC")
	}

	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("Timezone database unavailable: %v", err)
	}
	// December is CET: one hour ahead of UTC.
	if got := formatClock(utc, berlin); got != "11:00 CET" {
		t.Errorf("formatClock = %q, want %q", got, "11:00 CET")
	}
}

func TestFormatSnapshot(t *testing.T) {
	snap := models.Snapshot{
		Records: []models.Record{
			{SettlementDate: "2025-12-07", SettlementPeriod: 47, IndicatedImbalance: fptr(100)},
			{SettlementDate: "2025-12-07", SettlementPeriod: 48, IndicatedImbalance: fptr(-50)},
		},
	}
	tc := scheduler.TitleContext{
		SettlementDate: "2025-12-07",
		PublishedAt:    time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC),
	}

	msg := formatSnapshot(snap, tc, time.UTC)

	for _, want := range []string{"07 Dec 2025", "10:00 UTC", "2"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Snapshot message missing %q:\n%s", want, msg)
		}
	}
}

func TestFormatDiff(t *testing.T) {
	prevPub := time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC)
	newPub := prevPub.Add(30 * time.Minute)
	d := models.Diff{
		SameDate:            true,
		PreviousPublishedAt: prevPub,
		NewPublishedAt:      newPub,
		Entries: []models.DiffEntry{
			{
				SettlementDate:   "2025-12-07",
				SettlementPeriod: 1,
				Status:           models.StatusChanged,
				PreviousValue:    fptr(100),
				NewValue:         fptr(150),
				Delta:            fptr(50),
				Sign:             models.SignPositive,
			},
			{
				SettlementDate:   "2025-12-07",
				SettlementPeriod: 2,
				Status:           models.StatusUnchanged,
				PreviousValue:    fptr(200),
				NewValue:         fptr(200),
				Delta:            fptr(0),
				Sign:             models.SignPositive,
			},
			{
				SettlementDate:   "2025-12-07",
				SettlementPeriod: 3,
				Status:           models.StatusAppeared,
				NewValue:         fptr(-30),
				Sign:             models.SignNegative,
			},
			{
				SettlementDate:   "2025-12-07",
				SettlementPeriod: 4,
				Status:           models.StatusDisappeared,
				PreviousValue:    fptr(75),
				Sign:             models.SignNone,
			},
		},
	}
	tc := scheduler.TitleContext{
		SettlementDate: "2025-12-07",
		PublishedAt:    newPub,
		Cycle:          3,
		Retry:          true,
	}

	msg := formatDiff(d, tc, time.UTC)

	for _, want := range []string{
		"Update 3 \\(Retry\\)",
		"10:00 UTC",
		"10:30 UTC",
		"1 changed, 1 appeared, 1 disappeared",
		"150\\.0",
		"\\-30\\.0",
		"was 75\\.0",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("Diff message missing %q:\n%s", want, msg)
		}
	}

	if strings.Contains(msg, "SP 2:") {
		t.Errorf("Unchanged periods should not get their own line:\n%s", msg)
	}
}

func TestFormatDiffFirstAttemptTitle(t *testing.T) {
	d := models.Diff{
		PreviousPublishedAt: time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC),
		NewPublishedAt:      time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC),
	}
	tc := scheduler.TitleContext{SettlementDate: "2025-12-07", Cycle: 1}

	msg := formatDiff(d, tc, time.UTC)
	if !strings.Contains(msg, "Update 1") || strings.Contains(msg, "Retry") {
		t.Errorf("First-attempt title wrong:\n%s", msg)
	}
	if !strings.Contains(msg, "No per\\-period changes") {
		t.Errorf("Empty diff should say so:\n%s", msg)
	}
}

func TestFormatDiffCapsEntryLines(t *testing.T) {
	d := models.Diff{
		SameDate:            true,
		PreviousPublishedAt: time.Date(2025, 12, 7, 10, 0, 0, 0, time.UTC),
		NewPublishedAt:      time.Date(2025, 12, 7, 10, 30, 0, 0, time.UTC),
	}
	for sp := 1; sp <= maxEntryLines+5; sp++ {
		d.Entries = append(d.Entries, models.DiffEntry{
			SettlementDate:   "2025-12-07",
			SettlementPeriod: sp,
			Status:           models.StatusChanged,
			PreviousValue:    fptr(100),
			NewValue:         fptr(110),
			Delta:            fptr(10),
			Sign:             models.SignPositive,
		})
	}
	tc := scheduler.TitleContext{SettlementDate: "2025-12-07", Cycle: 2}

	msg := formatDiff(d, tc, time.UTC)

	if got := strings.Count(msg, "📈 SP"); got != maxEntryLines {
		t.Errorf("Got %d entry lines, want %d", got, maxEntryLines)
	}
	if !strings.Contains(msg, fmt.Sprintf("and %d more", 5)) {
		t.Errorf("Overflow count missing:\n%s", msg)
	}
}
