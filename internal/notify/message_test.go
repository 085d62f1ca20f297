package notify_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shuttlewatch/shuttlewatch/internal/notify"
	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

func successResult() shuttle.SearchResult {
	criteria := shuttle.SearchCriteria{
		Direction:  shuttle.SGToJB,
		DepartDate: time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		Adults:     2,
		MinSeats:   2,
	}
	records := []shuttle.TrainRecord{
		{Number: "EP21", DepartureTime: "08:30", ArrivalTime: "09:05", Seats: 14, Direction: shuttle.SGToJB},
		{Number: "EP25", DepartureTime: "17:45", ArrivalTime: "18:20", Seats: 3, Direction: shuttle.SGToJB},
		{Number: "EP27", DepartureTime: "21:00", ArrivalTime: "21:35", Seats: 0, Direction: shuttle.SGToJB},
	}
	return shuttle.SearchResult{
		Success:         true,
		Records:         records,
		MatchingRecords: records[:2],
		Criteria:        criteria,
		SearchedAt:      time.Date(2025, 8, 14, 9, 30, 0, 0, time.UTC),
	}
}

func TestSummarizeAvailableTrains(t *testing.T) {
	msg := notify.Summarize(successResult())

	assert.Equal(t, "🚂 KTMB Trains Available - Friday, 15 August 2025", msg.Subject)
	assert.Contains(t, msg.Body, "*Date:* Friday, 15 August 2025")
	assert.Contains(t, msg.Body, "*Direction:* Woodlands CIQ - JB Sentral")
	assert.Contains(t, msg.Body, "*Searched at:* 2025-08-14 09:30:00")
	assert.Contains(t, msg.Body, "✅ 2 trains available")
	assert.Contains(t, msg.Body, "🟢 EP21: 08:30 → 09:05 (14 seats)")
	assert.Contains(t, msg.Body, "🟡 EP25: 17:45 → 18:20 (3 seats)")
	assert.NotContains(t, msg.Body, "EP27")
}

func TestSummarizeNoMatches(t *testing.T) {
	result := successResult()
	result.MatchingRecords = nil

	msg := notify.Summarize(result)

	assert.Equal(t, "⚠️ KTMB Search Complete - Friday, 15 August 2025", msg.Subject)
	assert.Contains(t, msg.Body, "⚠️ No trains with 2+ seats")
}

func TestSummarizeEmptyBoard(t *testing.T) {
	result := successResult()
	result.Records = nil
	result.MatchingRecords = nil

	msg := notify.Summarize(result)

	assert.Contains(t, msg.Body, "❌ No trains available")
}

func TestSummarizeFailure(t *testing.T) {
	result := successResult()
	result.Success = false
	result.Records = nil
	result.MatchingRecords = nil
	result.ErrorKind = shuttle.ErrorKindTimeout
	result.ErrorMessage = "submit: no outcome after 15s"

	msg := notify.Summarize(result)

	assert.Equal(t, "❌ KTMB Search Failed - Friday, 15 August 2025", msg.Subject)
	assert.Contains(t, msg.Body, "❌ Search failed: submit: no outcome after 15s")
}

func TestSummarizeRoundTrip(t *testing.T) {
	result := successResult()
	result.Criteria.ReturnDate = time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC)
	returnTrain := shuttle.TrainRecord{
		Number: "EP30", DepartureTime: "10:00", ArrivalTime: "10:35", Seats: 6, Direction: shuttle.JBToSG,
	}
	result.Records = append(result.Records, returnTrain)
	result.MatchingRecords = append(result.MatchingRecords, returnTrain)

	msg := notify.Summarize(result)

	assert.Contains(t, msg.Body, "*Return:* Sunday, 17 August 2025")
	assert.Contains(t, msg.Body, "🟢 EP30: 10:00 → 10:35 (6 seats)")

	// The outbound section comes before the return section.
	outbound := strings.Index(msg.Body, "EP21")
	ret := strings.Index(msg.Body, "EP30")
	assert.Less(t, outbound, ret)
}

func TestShouldNotify(t *testing.T) {
	withMatches := successResult()
	withoutMatches := successResult()
	withoutMatches.MatchingRecords = nil
	failed := successResult()
	failed.Success = false

	cases := []struct {
		name   string
		result shuttle.SearchResult
		always bool
		want   bool
	}{
		{"matches", withMatches, false, true},
		{"no matches", withoutMatches, false, false},
		{"no matches but always", withoutMatches, true, true},
		{"failed", failed, false, false},
		{"failed even when always", failed, true, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, notify.ShouldNotify(tc.result, tc.always))
		})
	}
}
