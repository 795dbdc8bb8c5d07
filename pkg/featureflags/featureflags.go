package featureflags

import (
	"context"
	"errors"

	"fanfan-translator/pkg/config"

	"github.com/Flagsmith/flagsmith-go-client/v2"
	"go.uber.org/fx"
)

var Module = fx.Module("featureflags", fx.Provide(ProvideFeatureFlag))

var ErrNotConfigured = errors.New("feature flag provider not configured")

type FeatureFlag interface {
	// IsEnabled reports the identity-scoped state of a flag.
	IsEnabled(ctx context.Context, identifier, feature string) (bool, error)
}

type featureflag struct {
	client *flagsmith.Client
}

type FeatureParams struct {
	fx.In
	Config *config.Config
}

func ProvideFeatureFlag(p FeatureParams) FeatureFlag {
	if p.Config.Flagsmith.ApiKey == "" {
		return &featureflag{}
	}

	var opts []flagsmith.Option
	if p.Config.Flagsmith.Addr != "" {
		opts = append(opts, flagsmith.WithBaseURL(p.Config.Flagsmith.Addr))
	}

	return &featureflag{
		client: flagsmith.NewClient(p.Config.Flagsmith.ApiKey, opts...),
	}
}

func (s *featureflag) IsEnabled(ctx context.Context, identifier, feature string) (bool, error) {
	if s.client == nil {
		return false, ErrNotConfigured
	}

	flags, err := s.client.GetIdentityFlags(identifier, nil)
	if err != nil {
		return false, err
	}

	return flags.IsFeatureEnabled(feature)
}
