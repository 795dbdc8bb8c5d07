package main

import (
	"log"

	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/db"
	"fanfan-translator/pkg/featureflags"
	"fanfan-translator/pkg/filestore"
	"fanfan-translator/pkg/gen"
	"fanfan-translator/pkg/health"
	"fanfan-translator/pkg/language"
	"fanfan-translator/pkg/logger"
	"fanfan-translator/pkg/otelcol"
	"fanfan-translator/pkg/redis"
	"fanfan-translator/pkg/sequence"
	"fanfan-translator/pkg/server"
	pkgtask "fanfan-translator/pkg/task"
	"fanfan-translator/services/admin"
	"fanfan-translator/services/bot"
	"fanfan-translator/services/feature"
	"fanfan-translator/services/group"
	"fanfan-translator/services/license"
	"fanfan-translator/services/provider"
	"fanfan-translator/services/reaper"
	"fanfan-translator/services/task"
	"fanfan-translator/services/tenant"
	"fanfan-translator/services/translation"

	"go.uber.org/fx"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		filestore.Module,
		pkgtask.Module,
		featureflags.Module,
		language.Module,
		sequence.Module,
		gen.Module,
		health.Module,
		server.Module,

		provider.Module,
		group.Module,
		tenant.Module,
		translation.Module,
		license.Module,
		feature.Module,
		reaper.Module,
		task.Module,
		bot.Module,
		admin.Module,

		logger.FxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
