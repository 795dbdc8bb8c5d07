package reaper

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

type ReapPayload struct {
	GroupID string `json:"group_id"`
}

func (r *Reaper) HandleReapTask(ctx context.Context, t *asynq.Task) error {
	var p ReapPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid group:reap payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.GroupID == "" {
		return fmt.Errorf("group:reap payload without group_id: %w", asynq.SkipRetry)
	}
	return r.ReapGroup(ctx, p.GroupID)
}
