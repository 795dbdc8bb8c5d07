package reaper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fanfan-translator/pkg/metrics"
	"fanfan-translator/pkg/task"
	"fanfan-translator/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const DefaultInactiveDays = 20

type Groups interface {
	ListInactive(ctx context.Context, before time.Time) ([]string, error)
	Purge(ctx context.Context, groupID string) error
}

type Leaver interface {
	LeaveGroup(ctx context.Context, groupID string) error
}

// Cleaner drops state kept outside the group store once a group is purged.
type Cleaner interface {
	ForgetGroup(ctx context.Context, groupID string) error
}

// Report summarises one sweep.
type Report struct {
	Scanned       int `json:"scanned"`
	Reaped        int `json:"reaped"`
	Enqueued        int `json:"enqueued"`
	LeaveFailures   int `json:"leave_failures"`
	PurgeFailures   int `json:"purge_failures"`
	CleanupFailures int `json:"cleanup_failures"`
}

type Reaper struct {
	groups    Groups
	leaver    Leaver
	cleaners  []Cleaner
	enqueuer  task.Enqueuer
	threshold time.Duration
}

type Options struct {
	Groups       Groups
	Leaver       Leaver
	Cleaners     []Cleaner
	Enqueuer     task.Enqueuer
	InactiveDays int
}

func New(opts Options) *Reaper {
	days := opts.InactiveDays
	if days <= 0 {
		days = DefaultInactiveDays
	}
	return &Reaper{
		groups:    opts.Groups,
		leaver:    opts.Leaver,
		cleaners:  opts.Cleaners,
		enqueuer:  opts.Enqueuer,
		threshold: time.Duration(days) * 24 * time.Hour,
	}
}

func (r *Reaper) Threshold() time.Duration { return r.threshold }

// Run reaps every group idle longer than the threshold. Per-group failures
// are counted and skipped.
func (r *Reaper) Run(ctx context.Context, now time.Time) (Report, error) {
	ids, err := r.groups.ListInactive(ctx, now.Add(-r.threshold))
	if err != nil {
		return Report{}, fmt.Errorf("failed to list inactive groups: %w", err)
	}

	report := Report{Scanned: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		res := r.reap(ctx, id)
		if res.leaveErr != nil {
			report.LeaveFailures++
		}
		if res.purgeErr != nil {
			report.PurgeFailures++
			continue
		}
		report.CleanupFailures += res.cleanupFailures
		report.Reaped++
	}

	metrics.GroupsReaped.Add(float64(report.Reaped))
	zap.L().Info("[Reaper] sweep finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("reaped", report.Reaped),
		zap.Int("leave_failures", report.LeaveFailures),
		zap.Int("purge_failures", report.PurgeFailures),
		zap.Int("cleanup_failures", report.CleanupFailures),
	)
	return report, ctx.Err()
}

// Enqueue queues one group:reap task per inactive group instead of reaping
// inline. Without an enqueuer it falls back to Run.
func (r *Reaper) Enqueue(ctx context.Context, now time.Time) (Report, error) {
	if r.enqueuer == nil {
		return r.Run(ctx, now)
	}

	ids, err := r.groups.ListInactive(ctx, now.Add(-r.threshold))
	if err != nil {
		return Report{}, fmt.Errorf("failed to list inactive groups: %w", err)
	}

	report := Report{Scanned: len(ids)}
	for _, id := range ids {
		t, err := task.NewJSONTask(taskname.GroupReap, ReapPayload{GroupID: id})
		if err != nil {
			return report, err
		}
		if _, err := r.enqueuer.Enqueue(ctx, t, asynq.Queue("low"), asynq.MaxRetry(3)); err != nil {
			zap.L().Warn("[Reaper] enqueue failed", zap.String("group_id", id), zap.Error(err))
			continue
		}
		report.Enqueued++
	}
	return report, nil
}

// ReapGroup leaves and purges a single group. Leaving and cleanup are best
// effort; only a purge failure is returned.
func (r *Reaper) ReapGroup(ctx context.Context, groupID string) error {
	res := r.reap(ctx, groupID)
	if res.purgeErr != nil {
		return errors.Join(res.purgeErr, res.leaveErr)
	}
	metrics.GroupsReaped.Inc()
	return nil
}

type reapResult struct {
	leaveErr        error
	purgeErr        error
	cleanupFailures int
}

func (r *Reaper) reap(ctx context.Context, groupID string) reapResult {
	log := zap.L().With(zap.String("group_id", groupID))

	var res reapResult
	if r.leaver != nil {
		if res.leaveErr = r.leaver.LeaveGroup(ctx, groupID); res.leaveErr != nil {
			metrics.ReaperErrors.WithLabelValues("leave").Inc()
			log.Warn("[Reaper] leave group failed", zap.Error(res.leaveErr))
		}
	}

	if err := r.groups.Purge(ctx, groupID); err != nil {
		metrics.ReaperErrors.WithLabelValues("purge").Inc()
		log.Error("[Reaper] purge failed", zap.Error(err))
		res.purgeErr = fmt.Errorf("failed to purge group %s: %w", groupID, err)
		return res
	}

	for _, c := range r.cleaners {
		if err := c.ForgetGroup(ctx, groupID); err != nil {
			res.cleanupFailures++
			metrics.ReaperErrors.WithLabelValues("cleanup").Inc()
			log.Warn("[Reaper] cleanup failed", zap.Error(err))
		}
	}

	log.Info("[Reaper] group reaped")
	return res
}
