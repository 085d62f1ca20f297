package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// PubSubHandler triggers out-of-schedule searches from Pub/Sub
// messages, so an operator can force a check without waiting for the
// next tick.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	monitor          *Monitor
	criteria         shuttle.SearchCriteria
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Monitor          *Monitor
	Criteria         shuttle.SearchCriteria
	Logger           zerolog.Logger
}

// TriggerMessage is the payload of a trigger message.
type TriggerMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		monitor:          cfg.Monitor,
		criteria:         cfg.Criteria,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub trigger handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	var trigger TriggerMessage
	if err := json.Unmarshal(msg.Data, &trigger); err != nil {
		logger.Error().Err(err).Msg("failed to parse trigger message")
		msg.Nack()
		return
	}

	switch trigger.JobType {
	case "search_now":
		started := time.Now()
		result := h.monitor.RunOnce(ctx, h.criteria)
		logger.Info().
			Bool("success", result.Success).
			Int("matches", len(result.MatchingRecords)).
			Dur("duration", time.Since(started)).
			Msg("triggered search completed")
	default:
		logger.Warn().Str("job_type", trigger.JobType).Msg("unknown job type")
	}

	// Ack in every case: redelivering a search trigger has no value
	// once the moment has passed.
	msg.Ack()
}
