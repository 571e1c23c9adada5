package ingestion

import (
	"context"
	"time"

	"github.com/edwardmadi/eurodollar-protocol/internal/command"
)

// SubmittedCommand pairs a typed command with a channel carrying the core's
// verdict. HTTP submissions wait on Result; NATS submissions pass a nil
// channel and rely on ACK/NAK instead.
type SubmittedCommand struct {
	Cmd    command.Command
	Result chan error
	Ack    func()
	Nak    func()
}

// Submitter is the synchronous admin submission path into the core loop. It
// exists for the HTTP surface and manual operations; bulk traffic arrives
// over NATS.
type Submitter struct {
	submitChan chan<- SubmittedCommand
	timeout    time.Duration
}

func NewSubmitter(submitChan chan<- SubmittedCommand, timeout time.Duration) *Submitter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Submitter{submitChan: submitChan, timeout: timeout}
}

// Submit hands cmd to the core loop and blocks until the core accepts or
// rejects it. The returned error is the core's verdict, nil on apply.
func (s *Submitter) Submit(ctx context.Context, cmd command.Command) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := make(chan error, 1)
	select {
	case s.submitChan <- SubmittedCommand{Cmd: cmd, Result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
