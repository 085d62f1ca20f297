package notify

import (
	"fmt"
	"strings"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// headingLayout renders dates the way they appear in alerts, e.g.
// "Friday, 15 August 2025".
const headingLayout = "Monday, 02 January 2006"

// Summarize formats a search result as a Telegram-Markdown alert.
func Summarize(result shuttle.SearchResult) Message {
	date := result.Criteria.DepartDate.Format(headingLayout)

	var subject string
	switch {
	case !result.Success:
		subject = "❌ KTMB Search Failed - " + date
	case len(result.MatchingRecords) > 0:
		subject = "🚂 KTMB Trains Available - " + date
	default:
		subject = "⚠️ KTMB Search Complete - " + date
	}

	lines := []string{
		"*KTMB Shuttle Search Results*",
		"*Date:* " + date,
		"*Direction:* " + result.Criteria.Direction.DisplayName(),
		"*Searched at:* " + result.SearchedAt.Format("2006-01-02 15:04:05"),
		"",
	}

	if result.Success {
		lines = append(lines, formatLeg(result, result.Criteria.Direction))
		if result.Criteria.RoundTrip() {
			lines = append(lines, "", "*Return:* "+result.Criteria.ReturnDate.Format(headingLayout))
			lines = append(lines, formatLeg(result, result.Criteria.Direction.Opposite()))
		}
	} else {
		lines = append(lines, "❌ Search failed: "+result.ErrorMessage)
	}

	return Message{Subject: subject, Body: strings.Join(lines, "\n")}
}

// formatLeg renders one direction's trains. Round-trip results carry
// both legs in the same record lists, distinguished by direction.
func formatLeg(result shuttle.SearchResult, dir shuttle.Direction) string {
	var seen, matched []shuttle.TrainRecord
	for _, r := range result.Records {
		if r.Direction == dir {
			seen = append(seen, r)
		}
	}
	for _, r := range result.MatchingRecords {
		if r.Direction == dir {
			matched = append(matched, r)
		}
	}

	if len(seen) == 0 {
		return "❌ No trains available for " + dir.DisplayName()
	}
	if len(matched) == 0 {
		return fmt.Sprintf("⚠️ No trains with %d+ seats for %s", result.Criteria.MinSeats, dir.DisplayName())
	}

	lines := []string{fmt.Sprintf("✅ %d trains available for %s:", len(matched), dir.DisplayName())}
	for _, t := range matched {
		lines = append(lines, fmt.Sprintf("   %s %s: %s → %s (%d seats)",
			seatStatus(t.Seats), t.Number, t.DepartureTime, t.ArrivalTime, t.Seats))
	}
	return strings.Join(lines, "\n")
}

func seatStatus(seats int) string {
	switch {
	case seats >= 5:
		return "🟢"
	case seats >= 2:
		return "🟡"
	default:
		return "🔴"
	}
}
