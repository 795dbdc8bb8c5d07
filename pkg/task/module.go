package task

import (
	"context"

	"fanfan-translator/pkg/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the asynq client, enqueuer and worker server. Everything is
// nil/inert when Redis is not configured.
var Module = fx.Module("asynq",
	fx.Provide(registerClient, NewEnqueuer, registerServerMux),
	fx.Invoke(registerAsynqServer),
)

type ClientParams struct {
	fx.In
	Redis *redis.Client `optional:"true"`
}

func registerClient(lc fx.Lifecycle, p ClientParams) *asynq.Client {
	if p.Redis == nil {
		return nil
	}

	client := asynq.NewClientFromRedisClient(p.Redis)
	zap.L().Info("[Asynq] Client ready")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client
}

func registerServerMux() *asynq.ServeMux {
	return asynq.NewServeMux()
}

func registerAsynqServer(lc fx.Lifecycle, cfg *config.Config, mux *asynq.ServeMux) {
	if cfg.Redis.Addr == "" {
		zap.L().Info("[Asynq] Redis not configured, worker server disabled")
		return
	}

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency:    4,
			RetryDelayFunc: asynq.DefaultRetryDelayFunc,
			Queues: map[string]int{
				"default": 5,
				"low":     1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				zap.L().Error("asynq task permanently failed", zap.String("task_type", task.Type()), zap.Error(err))
			}),
		},
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := server.Start(mux); err != nil {
				return err
			}
			zap.L().Info("[Asynq] Asynq server started", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			server.Shutdown()
			return nil
		},
	})
}
