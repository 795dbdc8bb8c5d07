package license

import (
	"context"

	"fanfan-translator/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// HandleExpiryTask runs the member expiry sweep for a queued
// member:expiry:run task.
func (s *Service) HandleExpiryTask(ctx context.Context, t *asynq.Task) error {
	n, err := s.ExpireMembers(ctx, s.now())
	if err != nil {
		zap.L().Error("[License] expiry task failed", zap.String("task_type", taskname.MemberExpiryRun), zap.Error(err))
		return err
	}
	zap.L().Debug("[License] expiry task done", zap.Int64("expired", n))
	return nil
}
