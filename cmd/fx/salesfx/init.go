package salesfx

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/jacentio/salestrack/authz"
	"github.com/jacentio/salestrack/internal/config"
	"github.com/jacentio/salestrack/lookup"
	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/quota"
	"github.com/jacentio/salestrack/sales"
	"github.com/jacentio/salestrack/share"
	"github.com/jacentio/salestrack/store"
)

var Module = fx.Provide(
	authz.NewResolver,
	provideLookup,
	provideQuota,
	providePrefill,
	provideShare,
	sales.NewService,
)

func provideLookup(k store.Keyed, logger *slog.Logger) *lookup.Resolver {
	return lookup.NewResolver(k, logger)
}

func provideQuota(k store.Keyed, cfg config.Config, logger *slog.Logger) *quota.Enforcer {
	return quota.NewEnforcer(k, map[quota.Kind]int{quota.KindPrefill: cfg.PrefillQuota}, logger)
}

func providePrefill(k store.Keyed, q *quota.Enforcer, logger *slog.Logger) *prefill.Engine {
	return prefill.NewEngine(k, q, nil, logger)
}

func provideShare(k store.Keyed, resolver *authz.Resolver, cfg config.Config, logger *slog.Logger) *share.Manager {
	return share.NewManager(k, resolver, nil, cfg.InviteTTL, logger)
}
