package fx

import (
	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/database"
	"royale-tracker/internal/logger"
	"royale-tracker/internal/repository"
	"royale-tracker/internal/server"
	"royale-tracker/internal/service"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
)

func ProvideBattleFetcher(client *api.Client) service.BattleFetcher {
	return client
}

func ProvideCatalogSource(client *api.Client) service.CardCatalogSource {
	return client
}

// Module wires everything a crawl needs.
var Module = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.Provide),
	// repos
	fx.Provide(repository.NewCardRepository),
	fx.Provide(repository.NewDeckRepository),
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewGameModeRepository),
	fx.Provide(repository.NewBattleRepository),
	// api client
	fx.Provide(api.NewClient),
	fx.Provide(ProvideBattleFetcher),
	fx.Provide(ProvideCatalogSource),
	// svc
	fx.Provide(clockwork.NewRealClock),
	fx.Provide(service.NewCardResolver),
	fx.Provide(service.NewTeamMapper),
	fx.Provide(service.NewBattleRecorder),
	fx.Provide(service.NewCatalogService),
	fx.Provide(service.NewCrawlConfig),
	fx.Provide(service.NewCrawler),
)

// StatusModule adds the status endpoint, served only when STATUS_PORT is set.
var StatusModule = fx.Options(
	fx.Provide(server.NewStatusServer),
	fx.Invoke(server.Register),
)
