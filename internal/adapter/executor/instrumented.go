package executor

import (
	"context"
	"time"

	"galera-cd/internal/pkg/metrics"
)

type instrumented struct {
	next Executor
}

// WithMetrics 为执行器调用记录次数和延迟
func WithMetrics(next Executor) Executor {
	return &instrumented{next: next}
}

func observe(op string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordExecutorCall(op, result, time.Since(start).Seconds())
}

func (i *instrumented) Trigger(ctx context.Context, job string, params map[string]string) (token string, err error) {
	defer func(start time.Time) { observe("trigger", start, err) }(time.Now())
	return i.next.Trigger(ctx, job, params)
}

func (i *instrumented) QueryQueued(ctx context.Context, token string) (state QueueState, err error) {
	defer func(start time.Time) { observe("query_queued", start, err) }(time.Now())
	return i.next.QueryQueued(ctx, token)
}

func (i *instrumented) Dequeue(ctx context.Context, token string) (err error) {
	defer func(start time.Time) { observe("dequeue", start, err) }(time.Now())
	return i.next.Dequeue(ctx, token)
}

func (i *instrumented) QueryExecution(ctx context.Context, job string, id int64) (state ExecutionState, err error) {
	defer func(start time.Time) { observe("query_execution", start, err) }(time.Now())
	return i.next.QueryExecution(ctx, job, id)
}

func (i *instrumented) Stop(ctx context.Context, job string, id int64) (err error) {
	defer func(start time.Time) { observe("stop", start, err) }(time.Now())
	return i.next.Stop(ctx, job, id)
}

func (i *instrumented) FetchLog(ctx context.Context, job string, id int64) (log string, err error) {
	defer func(start time.Time) { observe("fetch_log", start, err) }(time.Now())
	return i.next.FetchLog(ctx, job, id)
}
