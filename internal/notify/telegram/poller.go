package telegram

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notexe/reminderd/internal/notify"
)

const retryDelay = 5 * time.Second

// Handlers receive decoded button presses.
type Handlers struct {
	Complete func(ctx context.Context, reminderID int64) error
	Open     func(ctx context.Context, reminderID int64) error
}

// Poller long-polls for inline button presses and dispatches them.
type Poller struct {
	client   *Client
	handlers Handlers
	timeout  int
	logger   *slog.Logger

	mu     sync.Mutex
	offset int64
}

// NewPoller creates a Poller. timeout is the long-poll timeout in seconds (1-50).
func NewPoller(client *Client, handlers Handlers, timeout int) *Poller {
	if timeout < 1 {
		timeout = 1
	}
	if timeout > 50 {
		timeout = 50 // Telegram max is 50 seconds
	}
	return &Poller{
		client:   client,
		handlers: handlers,
		timeout:  timeout,
		logger:   slog.Default().WithGroup("poller"),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "callback poller started", slog.Int("timeout", p.timeout))

	for {
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.WarnContext(ctx, "poll failed", slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
			case <-time.After(retryDelay):
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	p.logger.Info("callback poller stopped")
	return nil
}

// PollOnce fetches one batch of updates and handles each of them.
func (p *Poller) PollOnce(ctx context.Context) error {
	p.mu.Lock()
	offset := p.offset
	p.mu.Unlock()

	updates, err := p.client.GetUpdates(ctx, offset, p.timeout)
	if err != nil {
		return err
	}

	for _, u := range updates {
		p.mu.Lock()
		if u.UpdateID >= p.offset {
			p.offset = u.UpdateID + 1
		}
		p.mu.Unlock()

		if u.CallbackQuery != nil {
			p.handle(ctx, u.CallbackQuery)
		}
	}
	return nil
}

func (p *Poller) handle(ctx context.Context, q *CallbackQuery) {
	kind, id := notify.ParseAction(q.Data)

	// Answering consumes the press, so it is never redelivered.
	if err := p.client.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		p.logger.WarnContext(ctx, "failed to answer callback query", slog.String("error", err.Error()))
	}

	var handler func(context.Context, int64) error
	switch kind {
	case notify.ActionComplete:
		handler = p.handlers.Complete
	case notify.ActionOpen:
		handler = p.handlers.Open
	default:
		p.logger.DebugContext(ctx, "ignoring unknown callback", slog.String("data", q.Data))
		return
	}

	if handler == nil || id == 0 {
		return
	}

	if err := handler(ctx, id); err != nil {
		p.logger.ErrorContext(ctx, "callback handler failed",
			slog.String("action", string(kind)),
			slog.Int64("reminder_id", id),
			slog.String("error", err.Error()),
		)
	}
}
