package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes processed notices to NATS for downstream
// consumers. Notices go out only after persistence of the command that
// produced them is confirmed. Subjects follow eud.ledger.events.{notice_type}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableNotice
	logger    zerolog.Logger
}

// PublishableNotice is a processed notice ready for outbound publishing.
type PublishableNotice struct {
	Sequence       int64       `json:"sequence"`
	NoticeType     string      `json:"notice_type"`
	IdempotencyKey string      `json:"idempotency_key"`
	NoticeIndex    int         `json:"notice_index"`
	Payload        interface{} `json:"payload"`
	StateHash      []byte      `json:"state_hash"`
	Timestamp      time.Time   `json:"timestamp"`
}

// MsgID is the JetStream deduplication ID for this notice. A command can
// emit several notices (blocklist batches emit one per address), so the
// index within the command disambiguates; the idempotency key pins identity
// across restarts and replay.
func (n PublishableNotice) MsgID() string {
	return fmt.Sprintf("%s:%s:%d", n.IdempotencyKey, n.NoticeType, n.NoticeIndex)
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableNotice, logger zerolog.Logger) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
		logger:    logger.With().Str("component", "outbound_publisher").Logger(),
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notice, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, notice); err != nil {
				op.logger.Warn().
					Int64("sequence", notice.Sequence).
					Str("notice_type", notice.NoticeType).
					Err(err).
					Msg("outbound publish failed")
				// Non-fatal: downstream consumers can query the command log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, notice PublishableNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}

	subject := fmt.Sprintf("eud.ledger.events.%s", notice.NoticeType)
	_, err = op.js.Publish(ctx, subject, data, jetstream.WithMsgID(notice.MsgID()))
	return err
}

// EnsureOutboundStream creates the outbound events stream. The duplicate
// window backs the per-notice msg ID: a crash-restart that republishes a
// recent tail is absorbed by the broker. Replay older than the window is
// suppressed at the source in the orchestrator's bridge.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:       "EUD_LEDGER_EVENTS",
		Subjects:   []string{"eud.ledger.events.>"},
		Storage:    jetstream.FileStorage,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     72 * time.Hour,
		Duplicates: 10 * time.Minute,
		Replicas:   1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
