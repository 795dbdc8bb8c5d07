package feature

import (
	"time"

	"fanfan-translator/pkg/featureflags"
	"fanfan-translator/pkg/filestore"

	"go.uber.org/fx"
)

var Module = fx.Module("feature",
	fx.Provide(provideService),
)

type ServiceParams struct {
	fx.In
	Flags featureflags.FeatureFlag `optional:"true"`
	Store *filestore.Store         `optional:"true"`
	Clock func() time.Time         `optional:"true"`
}

func provideService(p ServiceParams) *Service {
	return NewService(p.Flags, p.Store, p.Clock)
}
