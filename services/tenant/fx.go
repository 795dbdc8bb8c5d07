package tenant

import (
	"time"

	"fanfan-translator/pkg/config"
	pkgdb "fanfan-translator/pkg/db"
	"fanfan-translator/pkg/filestore"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("tenant",
	fx.Provide(provideService),
	fx.Invoke(migrate),
)

type ServiceParams struct {
	fx.In
	Config *config.Config
	DB     *gorm.DB         `optional:"true"`
	File   *filestore.Store `optional:"true"`
	Clock  func() time.Time `optional:"true"`
}

// provideService uses the database when there is one and the data file
// otherwise.
func provideService(p ServiceParams) (*Service, error) {
	opts := Options{
		Store:     NewRepository(p.DB),
		Clock:     p.Clock,
		CacheSize: p.Config.Tenant.Size,
		CacheTTL:  p.Config.Tenant.TTL,
	}
	if opts.Store == nil {
		opts.Store = NewFileStore(p.File)
	} else {
		opts.Mirror = NewFileStore(p.File)
	}
	return NewService(opts)
}

type migrateParams struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func migrate(p migrateParams) error {
	return pkgdb.AutoMigrate(p.DB, Models()...)
}
