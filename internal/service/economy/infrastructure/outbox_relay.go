package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vault/internal/pkg/logger"
	"vault/internal/service/economy/domain"
	"vault/internal/service/economy/domain/port"
)

var relayDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "economy_outbox_relay_total",
	Help: "Chat records handed to the messenger, by result.",
}, []string{"result"})

// OutboxRelay 把已提交的会话记录投递给消息服务。
// 同一批次内遇到第一次失败即停止，保证同一会话内的记录按顺序到达。
type OutboxRelay struct {
	store     domain.OutboxStore
	messenger port.Messenger
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(store domain.OutboxStore, messenger port.Messenger, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{store: store, messenger: messenger, interval: interval, batchSize: batchSize}
}

// Run 周期性地执行 Flush，直到 ctx 结束。
func (r *OutboxRelay) Run(ctx context.Context) error {
	logger.Ctx(ctx).Info().Dur("interval", r.interval).Msg("outbox relay started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Ctx(ctx).Info().Msg("outbox relay stopped")
			return nil
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("outbox flush incomplete")
			}
		}
	}
}

// Flush 投递一批待发送记录，返回成功投递的条数。
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	records, err := r.store.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, errors.Wrap(err, "load pending records")
	}
	delivered := 0
	for _, rec := range records {
		if err := r.messenger.AppendRecord(ctx, rec.Participants, rec.SenderID, rec.Text, rec.GiftID); err != nil {
			relayDelivered.WithLabelValues("error").Inc()
			if markErr := r.store.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
				logger.Ctx(ctx).Error().Err(markErr).Str("record_id", rec.ID).Msg("failed to record delivery failure")
			}
			return delivered, errors.Wrapf(err, "deliver record %s", rec.ID)
		}
		relayDelivered.WithLabelValues("ok").Inc()
		if err := r.store.MarkDelivered(ctx, rec.ID); err != nil {
			return delivered, errors.Wrapf(err, "mark record %s delivered", rec.ID)
		}
		delivered++
	}
	return delivered, nil
}
