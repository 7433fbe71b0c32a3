package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/joestump/bmrk/internal/logger"
	"github.com/joestump/bmrk/internal/metrics"
)

const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultRetention    = 10 * time.Minute
)

// SQL is a Bus over the bus_events table of the shared state database. Every
// process appends to the table and polls it for rows past its cursor, so an
// agent and popups running as separate processes see each other's messages
// with no broker beyond the state store they already share.
type SQL struct {
	db        *sqlx.DB
	fan       *Local
	log       logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	done   chan struct{}
	cursor int64 // owned by the poll goroutine once it runs
}

// SQLOption configures a SQL bus.
type SQLOption func(*SQL)

// WithPollInterval sets how often the table is read.
func WithPollInterval(d time.Duration) SQLOption {
	return func(b *SQL) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithRetention sets how long published rows are kept.
func WithRetention(d time.Duration) SQLOption {
	return func(b *SQL) {
		if d > 0 {
			b.retention = d
		}
	}
}

func NewSQL(db *sqlx.DB, log logger.Logger, opts ...SQLOption) *SQL {
	if log == nil {
		log = logger.Nop()
	}
	b := &SQL{
		db:        db,
		fan:       NewLocal(log),
		log:       log,
		interval:  DefaultPollInterval,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *SQL) q(query string) string { return b.db.Rebind(query) }

// Publish appends msg and prunes rows older than the retention window.
func (b *SQL) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	now := b.now().UTC()
	if _, err := b.db.ExecContext(ctx, b.q(`INSERT INTO bus_events (body, created_at) VALUES (?, ?)`), string(data), now); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}
	metrics.BusEventsTotal.WithLabelValues(string(msg.Type), "published").Inc()

	if _, err := b.db.ExecContext(ctx, b.q(`DELETE FROM bus_events WHERE created_at < ?`), now.Add(-b.retention)); err != nil {
		b.log.Warn("prune bus events", logger.Error(err))
	}
	return nil
}

// Subscribe starts the poller on first use. A message published after
// Subscribe returns is delivered.
func (b *SQL) Subscribe(ctx context.Context) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub, err := b.fan.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	if b.done != nil {
		return sub, nil
	}

	var last int64
	if err := b.db.GetContext(ctx, &last, `SELECT COALESCE(MAX(id), 0) FROM bus_events`); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to read bus cursor: %w", err)
	}
	b.cursor = last

	pctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.poll(pctx)
	return sub, nil
}

func (b *SQL) poll(ctx context.Context) {
	defer close(b.done)
	t := time.NewTicker(b.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if err := b.drain(ctx); err != nil && ctx.Err() == nil {
			b.log.Warn("poll bus events", logger.Error(err))
		}
	}
}

type eventRow struct {
	ID   int64  `db:"id"`
	Body string `db:"body"`
}

// drain forwards every row past the cursor to local subscribers in id order.
func (b *SQL) drain(ctx context.Context) error {
	var rows []eventRow
	err := b.db.SelectContext(ctx, &rows, b.q(`SELECT id, body FROM bus_events WHERE id > ? ORDER BY id`), b.cursor)
	if err != nil {
		return err
	}
	for _, r := range rows {
		b.cursor = r.ID
		var msg Message
		if err := json.Unmarshal([]byte(r.Body), &msg); err != nil {
			b.log.Warn("discarding undecodable bus message", logger.Int64("id", r.ID), logger.Error(err))
			continue
		}
		if err := msg.Validate(); err != nil {
			b.log.Warn("discarding invalid bus message", logger.Int64("id", r.ID), logger.Error(err))
			continue
		}
		if err := b.fan.fanOut(msg); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the poller and ends every subscription. The caller owns the
// database handle.
func (b *SQL) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	cancel, done := b.cancel, b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return b.fan.Close()
}
