package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSchedulerDefaultsInterval(t *testing.T) {
	s := New(Options{}, zerolog.Nop())
	if s.opts.Interval != DefaultInterval {
		t.Fatalf("缺省间隔应为 %s, 实际 %s", DefaultInterval, s.opts.Interval)
	}
}

func TestSchedulerRunsAndKeepsGoingAfterError(t *testing.T) {
	s := New(Options{Interval: 10 * time.Millisecond}, zerolog.Nop())

	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx, func(ctx context.Context, bucket time.Time) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("tick failed")
		})
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("取消后应返回 context.Canceled, 实际 %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("调度器未在预期时间内退出")
	}

	if calls.Load() < 3 {
		t.Fatalf("失败的 tick 不应中断循环, 执行次数 %d", calls.Load())
	}
}

func TestSchedulerAlignedBucket(t *testing.T) {
	s := New(Options{Interval: time.Minute, AlignToStart: true}, zerolog.Nop())

	now := time.Date(2025, 6, 1, 10, 30, 42, 0, time.UTC)
	next := s.nextTick(now)
	if next != time.Date(2025, 6, 1, 10, 31, 0, 0, time.UTC) {
		t.Fatalf("下一个对齐时刻不正确: %s", next)
	}
	if got := s.bucketStart(next); got != next {
		t.Fatalf("对齐桶起点不正确: %s", got)
	}
}
