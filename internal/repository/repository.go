package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqcontracts "skillfund/contracts/mq"
	"skillfund/pkg/trace"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 违反唯一约束
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidState the row exists but is not in a state that allows the write
	// (closed job, inactive campaign, sold out tier).
	ErrInvalidState = errors.New("invalid state")
	// ErrTierUnavailable 奖励档位不属于该众筹、金额不足或已满
	ErrTierUnavailable = errors.New("reward tier unavailable")
	// ErrNotOwner 当前用户不是记录的所有者
	ErrNotOwner = errors.New("not owner")
)

const pgUniqueViolation = "23505"

// mapError 把 pgx 错误映射为仓储层错误
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func newEnvelope(ctx context.Context) mqcontracts.Envelope {
	return mqcontracts.Envelope{
		EventID:    uuid.NewString(),
		TraceID:    trace.FromContext(ctx),
		OccurredAt: time.Now().UTC(),
	}
}

// nullableSlice 空切片写成 NULL
func nullableSlice(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
