package reaper

import (
	"fanfan-translator/pkg/config"
	"fanfan-translator/pkg/task"
	"fanfan-translator/pkg/taskname"
	"fanfan-translator/services/group"
	"fanfan-translator/services/tenant"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("reaper",
	fx.Provide(provideReaper),
	fx.Invoke(registerTasks),
)

type Params struct {
	fx.In
	Config   *config.Config
	Groups   *group.Service
	Tenant   *tenant.Service `optional:"true"`
	Leaver   Leaver          `optional:"true"`
	Cleaner  Cleaner         `optional:"true"`
	Enqueuer task.Enqueuer   `optional:"true"`
}

func provideReaper(p Params) *Reaper {
	var cleaners []Cleaner
	if p.Tenant != nil {
		cleaners = append(cleaners, p.Tenant)
	}
	if p.Cleaner != nil {
		cleaners = append(cleaners, p.Cleaner)
	}
	return New(Options{
		Groups:       p.Groups,
		Leaver:       p.Leaver,
		Cleaners:     cleaners,
		Enqueuer:     p.Enqueuer,
		InactiveDays: p.Config.Reaper.InactiveDays,
	})
}

func registerTasks(mux *asynq.ServeMux, r *Reaper) {
	mux.HandleFunc(taskname.GroupReap, r.HandleReapTask)
}
