package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"royale-tracker/internal/api"
	"royale-tracker/internal/config"
	"royale-tracker/internal/constants"
	"royale-tracker/internal/middleware"
	"royale-tracker/internal/repository"
	"royale-tracker/internal/service"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const GetStatusProcedure = "/royaletracker.v1.CrawlStatus/GetStatus"

type crawlStats interface {
	Stats() service.CrawlStats
}

type cacheSize interface {
	Len() int
}

type requestStats interface {
	Stats() api.RequestStats
}

type rowCounter interface {
	Count(ctx context.Context) (int, error)
}

// StatusServer reports crawl progress over a connect unary RPC.
type StatusServer struct {
	crawler  crawlStats
	resolver cacheSize
	client   requestStats
	totals   map[string]rowCounter
	logger   zerolog.Logger
}

func NewStatusServer(
	crawler *service.Crawler,
	resolver *service.CardResolver,
	client *api.Client,
	playerRepo *repository.PlayerRepository,
	deckRepo *repository.DeckRepository,
	battleRepo *repository.BattleRepository,
	modeRepo *repository.GameModeRepository,
	logger zerolog.Logger,
) *StatusServer {
	return &StatusServer{
		crawler:  crawler,
		resolver: resolver,
		client:   client,
		totals: map[string]rowCounter{
			"players":    playerRepo,
			"decks":      deckRepo,
			"battles":    battleRepo,
			"game_modes": modeRepo,
		},
		logger: logger,
	}
}

func (s *StatusServer) GetStatus(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	crawl := s.crawler.Stats()
	upstream := s.client.Stats()

	totals, err := s.countRows(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to count stored rows")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	status, err := structpb.NewStruct(map[string]any{
		"crawl": map[string]any{
			"run_id":            crawl.RunID,
			"running":           crawl.Running,
			"pass":              crawl.Pass,
			"players_fetched":   crawl.PlayersFetched,
			"battles_processed": crawl.BattlesProcessed,
			"battles_created":   crawl.BattlesCreated,
			"battles_existing":  crawl.BattlesExisting,
			"battles_skipped":   crawl.BattlesSkipped,
			"battles_filtered":  crawl.BattlesFiltered,
			"stop_reason":       crawl.StopReason,
			"started_at":        formatTime(crawl.StartedAt),
			"finished_at":       formatTime(crawl.FinishedAt),
		},
		"card_cache_size": s.resolver.Len(),
		"totals":          totals,
		"api": map[string]any{
			"requests":        upstream.Requests,
			"failures":        upstream.Failures,
			"last_status":     upstream.LastStatus,
			"last_request_at": formatTime(upstream.LastRequestAt),
		},
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to build status")
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	return connect.NewResponse(status), nil
}

func (s *StatusServer) countRows(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	totals := make(map[string]any, len(s.totals))
	for name, counter := range s.totals {
		n, err := counter.Count(ctx)
		if err != nil {
			return nil, err
		}
		totals[name] = n
	}
	return totals, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Handler mounts GetStatus behind the request id and CORS middleware.
func (s *StatusServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(GetStatusProcedure, connect.NewUnaryHandler(
		GetStatusProcedure,
		s.GetStatus,
		connect.WithIdempotency(connect.IdempotencyNoSideEffects),
	))
	return middleware.RequestID(s.logger)(middleware.CORS()(mux))
}

// Register starts the status server with the fx app when STATUS_PORT is set.
func Register(lc fx.Lifecycle, cfg *config.Config, status *StatusServer, logger zerolog.Logger) {
	if cfg.StatusPort == "" {
		logger.Debug().Msg("STATUS_PORT not set, status server disabled")
		return
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.StatusPort),
		Handler:           status.Handler(),
		ReadHeaderTimeout: constants.ExternalAPITimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("status server starting")
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("status server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("status server shutdown failed")
				return err
			}
			logger.Info().Msg("status server stopped")
			return nil
		},
	})
}
