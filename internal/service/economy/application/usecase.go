package application

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vault/internal/pkg/logger"
	"vault/internal/service/economy/domain"
)

// run 包装一次用例调用：开启 span，记录指标和日志。
func run(ctx context.Context, tracer trace.Tracer, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "economy."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	observe(op, start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("economy operation rejected")
		return err
	}
	logger.Ctx(ctx).Debug().Str("operation", op).Dur("elapsed", time.Since(start)).Msg("economy operation done")
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.Wrapf(domain.ErrValidation, "%s is required", field)
	}
	return nil
}

func hexUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func newTokenID() string { return "nft_" + hexUUID() }

func newGiftID() string { return "gift_" + hexUUID()[:16] }

func newRecordID() string { return uuid.NewString() }
