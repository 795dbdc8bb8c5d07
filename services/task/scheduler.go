package task

import (
	"context"
	"time"

	"fanfan-translator/pkg/taskname"
	"fanfan-translator/services/reaper"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Reaper interface {
	Run(ctx context.Context, now time.Time) (reaper.Report, error)
	Enqueue(ctx context.Context, now time.Time) (reaper.Report, error)
}

type Expirer interface {
	ExpireMembers(ctx context.Context, now time.Time) (int64, error)
}

type SchedulerOptions struct {
	Reaper   Reaper
	Expirer  Expirer
	Recorder *Recorder
	// FanOut queues one task per group instead of reaping inline.
	FanOut     bool
	Hour       int
	Minute     int
	Interval   time.Duration
	RunOnStart bool
	Clock      func() time.Time
}

type Scheduler struct {
	opts SchedulerOptions
	now  func() time.Time
	stop context.CancelFunc
	done chan struct{}
}

func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Recorder == nil {
		opts.Recorder = NewRecorder(nil, nil, opts.Clock)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{opts: opts, now: clock}
}

// StartScheduler ties the loop to the fx lifecycle.
func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())
			s.stop = cancel
			s.done = make(chan struct{})
			go func() {
				defer close(s.done)
				s.run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if s.stop == nil {
				return nil
			}
			s.stop()
			select {
			case <-s.done:
			case <-ctx.Done():
			}
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started reaper scheduler",
		zap.Int("hour", s.opts.Hour),
		zap.Int("minute", s.opts.Minute),
		zap.Duration("interval", s.opts.Interval),
	)

	if s.opts.RunOnStart {
		s.RunOnce(ctx)
	}

	if s.opts.Interval > 0 {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunOnce(ctx)
			case <-ctx.Done():
				zap.L().Warn("[Scheduler] stopped")
				return
			}
		}
	}

	for {
		now := s.now()
		next := nextRunTime(now, s.opts.Hour, s.opts.Minute)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.RunOnce(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

// RunOnce performs one reaper sweep and one member expiry sweep. Neither
// failure stops the loop.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	zap.L().Info("[Scheduler] running daily sweep")

	if s.opts.Reaper != nil {
		err := s.opts.Recorder.Record(ctx, taskname.GroupReap, func(ctx context.Context) (any, error) {
			if s.opts.FanOut {
				return s.opts.Reaper.Enqueue(ctx, s.now())
			}
			return s.opts.Reaper.Run(ctx, s.now())
		})
		if err != nil {
			zap.L().Error("[Scheduler] reaper sweep failed", zap.Error(err))
		}
	}

	if s.opts.Expirer != nil {
		err := s.opts.Recorder.Record(ctx, taskname.MemberExpiryRun, func(ctx context.Context) (any, error) {
			n, err := s.opts.Expirer.ExpireMembers(ctx, s.now())
			return map[string]int64{"expired_count": n}, err
		})
		if err != nil {
			zap.L().Error("[Scheduler] member expiry failed", zap.Error(err))
		}
	}

	zap.L().Info("[Scheduler] finished daily sweep", zap.Duration("duration", time.Since(start)))
}

// nextRunTime returns the next wall-clock occurrence of hour:minute.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
