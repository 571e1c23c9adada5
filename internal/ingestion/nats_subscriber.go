package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// NATSSubscriber subscribes to the inbound command subjects and feeds raw
// commands into the shell via commandChan. NATS JetStream is the
// high-throughput ingestion surface; the subject's last token names the
// command type.
type NATSSubscriber struct {
	js          jetstream.JetStream
	commandChan chan<- RawCommand
	logger      zerolog.Logger
	consumers   []jetstream.ConsumeContext
}

// RawCommand is a received-but-untyped command, ready for the shell to
// validate and convert into a typed command.Command before handing it to the
// core.
type RawCommand struct {
	Subject     string
	CommandType string
	Data        []byte
	Received    time.Time
	AckFunc     func() // ACK after the core has accepted or rejected the command
	NakFunc     func() // NAK on transient failure (will be redelivered)
}

const (
	commandStreamName  = "EUD_COMMANDS"
	commandSubjectRoot = "eud.commands"
)

// CommandTypeFromSubject extracts the command type token from an inbound
// subject, e.g. "eud.commands.Mint" yields "Mint".
func CommandTypeFromSubject(subject string) (string, error) {
	rest, ok := strings.CutPrefix(subject, commandSubjectRoot+".")
	if !ok || rest == "" {
		return "", fmt.Errorf("subject %q is not under %s", subject, commandSubjectRoot)
	}
	// Tolerate producer-specific suffixes after the type token.
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		rest = rest[:i]
	}
	return rest, nil
}

func NewNATSSubscriber(js jetstream.JetStream, commandChan chan<- RawCommand, logger zerolog.Logger) *NATSSubscriber {
	return &NATSSubscriber{
		js:          js,
		commandChan: commandChan,
		logger:      logger.With().Str("component", "nats_subscriber").Logger(),
	}
}

// Subscribe creates the durable JetStream consumer for the command stream.
// Explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context) error {
	consumer, err := ns.js.CreateOrUpdateConsumer(ctx, commandStreamName, jetstream.ConsumerConfig{
		Durable:       "ledger-commands",
		FilterSubject: commandSubjectRoot + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer ledger-commands: %w", err)
	}

	consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
		commandType, err := CommandTypeFromSubject(msg.Subject())
		if err != nil {
			ns.logger.Warn().Str("subject", msg.Subject()).Err(err).Msg("dropping unroutable message")
			msg.Term()
			return
		}

		raw := RawCommand{
			Subject:     msg.Subject(),
			CommandType: commandType,
			Data:        msg.Data(),
			Received:    time.Now(),
			AckFunc:     func() { msg.Ack() },
			NakFunc:     func() { msg.Nak() },
		}

		select {
		case ns.commandChan <- raw:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("consume ledger-commands: %w", err)
	}

	ns.consumers = append(ns.consumers, consumerContext)
	ns.logger.Info().Str("subject", commandSubjectRoot+".>").Msg("subscribed")
	return nil
}

// EnsureCommandStream creates the inbound command stream if it doesn't
// exist. FileStorage, retention=Limits, max_age=72h.
func EnsureCommandStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      commandStreamName,
		Subjects:  []string{commandSubjectRoot + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", commandStreamName, err)
	}
	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string, logger zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
