package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Channel is the pg_notify channel the change triggers publish on.
const Channel = "carebridge_changes"

// Listener holds one dedicated connection in LISTEN mode and forwards every
// notification to a Publisher. It reconnects with capped backoff until its
// context is cancelled.
type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	publisher  Publisher
	logger     zerolog.Logger
	maxBackoff time.Duration
	now        func() time.Time
}

func NewListener(pool *pgxpool.Pool, publisher Publisher, logger zerolog.Logger) *Listener {
	return &Listener{
		pool:       pool,
		channel:    Channel,
		publisher:  publisher,
		logger:     logger.With().Str("component", "realtime-listener").Logger(),
		maxBackoff: 30 * time.Second,
		now:        time.Now,
	}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("change feed interrupted")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info().Str("channel", l.channel).Msg("change feed listening")

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		change, err := decodeNotification(n.Payload, l.now())
		if err != nil {
			l.logger.Error().Err(err).Msg("discarding malformed change notification")
			continue
		}
		if err := l.publisher.Publish(ctx, change); err != nil {
			l.logger.Error().Err(err).Str("table", change.Table).Msg("publish change")
		}
	}
}

var errEmptyChange = errors.New("change notification without table or op")

func decodeNotification(payload string, at time.Time) (Change, error) {
	var change Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return Change{}, fmt.Errorf("decode change notification: %w", err)
	}
	if change.Table == "" || change.Op == "" {
		return Change{}, errEmptyChange
	}
	change.At = at
	return change, nil
}
