package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/classdesk/internal/feed"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ChangeChannel is the NOTIFY channel the schema triggers publish topics on.
const ChangeChannel = "classdesk_changes"

const listenerRetryDelay = 2 * time.Second

// ChangeListener forwards PostgreSQL change notifications into a feed.Broker, so live
// feeds see writes made by any process sharing the database.
type ChangeListener struct {
	pool   *pgxpool.Pool
	broker *feed.Broker
	logger *zap.Logger
}

func NewChangeListener(pool *pgxpool.Pool, broker *feed.Broker, logger *zap.Logger) *ChangeListener {
	return &ChangeListener{pool: pool, broker: broker, logger: logger}
}

// Run listens until ctx is done, reconnecting after connection failures.
func (l *ChangeListener) Run(ctx context.Context) error {
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}

		l.logger.Warn("Change listener disconnected, retrying",
			zap.Error(err),
			zap.Duration("delay", listenerRetryDelay),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(listenerRetryDelay):
		}
	}
}

func (l *ChangeListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}

	l.logger.Info("Listening for store changes", zap.String("channel", ChangeChannel))

	// Anything written while we were disconnected is unknown; make every feed reload.
	l.broker.PublishAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		l.broker.Publish(feed.Topic(n.Payload))
	}
}
