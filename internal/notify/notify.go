// Package notify decides when a search result warrants an alert and
// formats it for delivery.
package notify

import (
	"context"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// Message is a formatted alert ready for any channel.
type Message struct {
	Subject string
	Body    string
}

// Notifier delivers a message through one channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// ShouldNotify reports whether a result warrants an alert. Failed
// searches never notify; successful ones notify only when something
// matched, unless always is set.
func ShouldNotify(result shuttle.SearchResult, always bool) bool {
	if !result.Success {
		return false
	}
	if always {
		return true
	}
	return len(result.MatchingRecords) > 0
}
