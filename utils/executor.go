package utils

import (
	"log/slog"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// Executor runs child cursor advances on a bounded goroutine pool.
// Submit never blocks: when the pool is saturated it returns an error and the
// caller runs the task itself, so nested merges can not starve each other.
type Executor struct {
	pool   *ants.Pool
	logger *slog.Logger
}

func NewExecutor(size int, logger *slog.Logger) (*Executor, error) {
	if size <= 0 {
		size = common.DefaultExecutorSize
	}
	logger = common.OrDefault(logger)
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			logger.Error("executor task panic", slog.Any(common.KeyRecoveredFrom, v))
		}))
	if err != nil {
		return nil, errors.Wrap(err, "create executor pool")
	}
	logger.Debug("executor started", slog.Int(common.KeyExecutorSize, size))
	return &Executor{pool: pool, logger: logger}, nil
}

func (e *Executor) Submit(task func()) error {
	if e == nil || e.pool == nil {
		return ants.ErrPoolClosed
	}
	return e.pool.Submit(task)
}

// Running returns the number of busy workers.
func (e *Executor) Running() int {
	return e.pool.Running()
}

func (e *Executor) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.Release()
}
