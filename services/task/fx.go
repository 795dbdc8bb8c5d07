package task

import (
	"time"

	"fanfan-translator/pkg/config"
	pkgdb "fanfan-translator/pkg/db"
	pkgtask "fanfan-translator/pkg/task"
	"fanfan-translator/services/license"
	"fanfan-translator/services/reaper"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("task.service",
	fx.Provide(
		provideRecorder,
		provideScheduler,
	),
	fx.Invoke(migrate, StartScheduler),
)

type RecorderParams struct {
	fx.In
	DB    *gorm.DB `optional:"true"`
	Node  *snowflake.Node
	Clock func() time.Time `optional:"true"`
}

func provideRecorder(p RecorderParams) *Recorder {
	return NewRecorder(p.DB, p.Node, p.Clock)
}

type SchedulerParams struct {
	fx.In
	Config   *config.Config
	Recorder *Recorder
	Reaper   *reaper.Reaper
	License  *license.Service
	Enqueuer pkgtask.Enqueuer `optional:"true"`
	Clock    func() time.Time `optional:"true"`
}

func provideScheduler(p SchedulerParams) *Scheduler {
	cfg := p.Config.Reaper

	var expirer Expirer
	if p.License.Available() {
		expirer = p.License
	}
	return NewScheduler(SchedulerOptions{
		Reaper:     p.Reaper,
		Expirer:    expirer,
		Recorder:   p.Recorder,
		FanOut:     p.Enqueuer != nil,
		Hour:       cfg.Hour,
		Minute:     cfg.Minute,
		Interval:   cfg.Interval,
		RunOnStart: cfg.RunOnStart,
		Clock:      p.Clock,
	})
}

type migrateParams struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func migrate(p migrateParams) error {
	return pkgdb.AutoMigrate(p.DB, Models()...)
}
