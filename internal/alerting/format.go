package alerting

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"witswatch/internal/market"
)

// DefaultMaxChars fits a single text message.
const DefaultMaxChars = 160

const fieldWidth = 10

// Subject returns the alert subject line.
func Subject(s Snapshot) string {
	return "Price alert @ " + s.Key.Time.Format("2006-01-02 15:04")
}

// FormatAlert renders the compact alert line, truncated to maxChars runes.
func FormatAlert(s Snapshot, maxChars int) string {
	ni, _ := s.Islands.Get(market.NorthIsland)
	si, _ := s.Islands.Get(market.SouthIsland)

	line := fmt.Sprintf("%s=%s, NI/SI=%s/%s, TP %d (ending %s)",
		s.Stats.MaxNode,
		dollars(s.Stats.Max),
		dollars(ni),
		dollars(si),
		s.Key.TradingPeriod,
		periodEnd(s.Key.TradingPeriod),
	)
	return Fit(line, maxChars)
}

// FormatSummary renders the verbose operational line. It has no length bound.
func FormatSummary(s Snapshot) string {
	st := s.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "%s@%s<%s>%s@%s|σ=%6.1f|S=%6.2f|K=%6.2f|n=%d|dropped=%d|",
		padLeft(dollars(st.Max), fieldWidth),
		orUnknown(st.MaxNode),
		center(dollars(st.Mean), fieldWidth),
		orUnknown(st.MinNode),
		padRight(dollars(st.Min), fieldWidth),
		st.Std, st.Skew, st.Kurt,
		st.Count, st.Dropped,
	)
	for _, p := range s.Islands {
		fmt.Fprintf(&b, "%s=%s|", p.Label, dollars(p.Value))
	}
	for _, p := range s.Regions {
		fmt.Fprintf(&b, "%s=%s|", p.Label, dollars(p.Value))
	}
	return b.String()
}

// Fit truncates text to at most max runes. A non-positive max disables the bound.
func Fit(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

// periodEnd returns the wall clock time a half-hour trading period ends at.
func periodEnd(tp int) string {
	end := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(tp) * 30 * time.Minute)
	return end.Format("15:04")
}

func dollars(v float64) string {
	if math.IsNaN(v) {
		return "$?"
	}
	return fmt.Sprintf("$%.2f", v)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

func padLeft(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return strings.Repeat(" ", width-n) + s
	}
	return s
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}
