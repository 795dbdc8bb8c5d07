package license

import (
	"time"

	pkgdb "fanfan-translator/pkg/db"
	"fanfan-translator/pkg/sequence"
	"fanfan-translator/pkg/taskname"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("license",
	fx.Provide(provideService),
	fx.Invoke(migrate, registerTasks),
)

type ServiceParams struct {
	fx.In
	DB    *gorm.DB         `optional:"true"`
	Node  *snowflake.Node
	Seq   sequence.Generator
	Clock func() time.Time `optional:"true"`
}

func provideService(p ServiceParams) *Service {
	return NewService(NewRepository(p.DB, p.Node), p.Seq, p.Clock)
}

type migrateParams struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func migrate(p migrateParams) error {
	return pkgdb.AutoMigrate(p.DB, Models()...)
}

func registerTasks(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.MemberExpiryRun, svc.HandleExpiryTask)
}
