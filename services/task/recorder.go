package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder persists one Job row per run. A nil db turns it into a pass-through.
type Recorder struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time
}

func NewRecorder(db *gorm.DB, node *snowflake.Node, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{db: db, node: node, now: clock}
}

// Record runs fn and stores its outcome. The value fn returns is kept as the
// job metadata. Failing to write the job row never fails the run.
func (r *Recorder) Record(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) error {
	job := r.start(ctx, name)
	result, err := fn(ctx)
	r.finish(ctx, job, result, err)
	return err
}

func (r *Recorder) start(ctx context.Context, name string) *Job {
	if r.db == nil {
		return nil
	}

	started := r.now().UTC()
	job := &Job{
		ID:        r.node.Generate().Int64(),
		TaskName:  name,
		Status:    JobRunning,
		StartedAt: &started,
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		zap.L().Warn("[Scheduler] failed to record job start", zap.String("task_name", name), zap.Error(err))
		return nil
	}
	return job
}

func (r *Recorder) finish(ctx context.Context, job *Job, result any, runErr error) {
	if job == nil {
		return
	}

	completed := r.now().UTC()
	updates := map[string]any{
		"status":       JobSuccess,
		"completed_at": completed,
	}
	if runErr != nil {
		updates["status"] = JobFailed
		updates["error_msg"] = runErr.Error()
	}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			updates["metadata"] = datatypes.JSON(b)
		}
	}

	if err := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		zap.L().Warn("[Scheduler] failed to record job result", zap.Int64("job_id", job.ID), zap.Error(err))
	}
}

// Latest returns the most recent runs of name, newest first.
func (r *Recorder) Latest(ctx context.Context, name string, limit int) ([]Job, error) {
	if r.db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var jobs []Job
	err := r.db.WithContext(ctx).
		Where("task_name = ?", name).
		Order("id DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
