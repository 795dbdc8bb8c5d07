package group

import (
	"fanfan-translator/pkg/config"
	pkgdb "fanfan-translator/pkg/db"
	"fanfan-translator/pkg/filestore"
	"fanfan-translator/pkg/language"
	"fanfan-translator/services/provider"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("group",
	fx.Provide(provideService),
	fx.Invoke(migrate),
)

type ServiceParams struct {
	fx.In
	Config    *config.Config
	Languages *language.Table
	DB        *gorm.DB         `optional:"true"`
	Store     *filestore.Store `optional:"true"`
}

func provideService(p ServiceParams) (*Service, error) {
	return NewService(Options{
		Repository:       NewRepository(p.DB),
		Mirror:           NewFileMirror(p.Store),
		Languages:        p.Languages,
		DefaultLanguages: p.Config.Translation.DefaultLanguages,
		DefaultEngine:    provider.Engine(p.Config.Translation.DefaultEngine),
		CacheSize:        p.Config.Group.Size,
		CacheTTL:         p.Config.Group.TTL,
	})
}

type migrateParams struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func migrate(p migrateParams) error {
	return pkgdb.AutoMigrate(p.DB, Models()...)
}
