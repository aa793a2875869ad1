package connection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/portfel/internal/domain"
	"github.com/vadiminshakov/portfel/internal/exchange"
	"github.com/vadiminshakov/portfel/pkg/retrier"
)

const DefaultPollInterval = 5 * time.Second

// balanceNormalizer is the normalization step run on every snapshot.
type balanceNormalizer interface {
	Normalize(ctx context.Context, raw domain.RawSnapshot, full bool)
}

// Monitor drives one exchange connection for the process lifetime.
// Connections that push balance updates start subscribed and demote
// permanently to polling on the first subscription error; the rest poll
// on a fixed interval. There is no terminal stop state: only context
// cancellation ends the loop.
type Monitor struct {
	client     exchange.Client
	normalizer balanceNormalizer
	interval   time.Duration
	restart    *retrier.Retrier
	logger     *zap.Logger

	demoted bool
}

func NewMonitor(client exchange.Client, n balanceNormalizer, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		client:     client,
		normalizer: n,
		interval:   interval,
		// fixed-interval restarts, no backoff growth
		restart: retrier.New(
			retrier.WithUnlimitedRetries(),
			retrier.WithInitialInterval(interval),
			retrier.WithMaxInterval(interval),
			retrier.WithMultiplier(1),
		),
		logger: logger,
	}
}

// Run supervises the connection loop until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	err := m.restart.Do(ctx, func(ctx context.Context) error {
		if err := m.run(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("connection loop exited, restarting", zap.Error(err))
			return err
		}
		return ctx.Err()
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (m *Monitor) run(ctx context.Context) error {
	if m.client.SupportsWatchBalance() && !m.demoted {
		// pushed updates only cover assets that change after the
		// subscription starts, so fetch a full baseline first
		m.poll(ctx)
		if err := m.watchLoop(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// no resubscribe attempts for this connection's lifetime
			m.demoted = true
			m.logger.Warn("balance subscription failed, falling back to polling",
				zap.String("exchange", m.client.Name()), zap.Error(err))
		}
	}
	return m.pollLoop(ctx)
}

// watchLoop consumes pushed balance updates until the first error.
// Pushed snapshots are partial, so the cache merge must not evict
// currencies the update does not mention.
func (m *Monitor) watchLoop(ctx context.Context) error {
	m.logger.Info("watching pushed balance updates", zap.String("exchange", m.client.Name()))
	for {
		raw, err := m.client.WatchBalance(ctx)
		if err != nil {
			return err
		}
		m.normalizer.Normalize(ctx, raw, false)
	}
}

// pollLoop fetches a full snapshot on a fixed interval. Fetch errors
// degrade to an empty partial snapshot so the cached holdings survive
// until the next successful poll.
func (m *Monitor) pollLoop(ctx context.Context) error {
	m.logger.Info("polling balance snapshots",
		zap.String("exchange", m.client.Name()), zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	raw, err := m.client.FetchBalanceSnapshot(ctx)
	if err != nil {
		m.logger.Warn("balance fetch failed, retrying next tick",
			zap.String("exchange", m.client.Name()), zap.Error(err))
		m.normalizer.Normalize(ctx, domain.EmptySnapshot(), false)
		return
	}
	m.normalizer.Normalize(ctx, raw, true)
}
