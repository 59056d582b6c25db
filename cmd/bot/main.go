package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/5Dev24/EqualBot/internal/adapters/bot"
	"github.com/5Dev24/EqualBot/internal/adapters/discord"
	"github.com/5Dev24/EqualBot/internal/adapters/repo"
	"github.com/5Dev24/EqualBot/internal/domain"
	"github.com/5Dev24/EqualBot/internal/infra/config"
	"github.com/5Dev24/EqualBot/internal/infra/db"
	httpinfra "github.com/5Dev24/EqualBot/internal/infra/http"
	"github.com/5Dev24/EqualBot/internal/infra/log"
	"github.com/5Dev24/EqualBot/internal/infra/metrics"
	"github.com/5Dev24/EqualBot/internal/usecase/calendar"
	"github.com/5Dev24/EqualBot/internal/usecase/classify"
	"github.com/5Dev24/EqualBot/internal/usecase/escrow"
	"github.com/5Dev24/EqualBot/internal/usecase/leaderboard"
	"github.com/5Dev24/EqualBot/internal/usecase/ledger"
	"github.com/5Dev24/EqualBot/internal/usecase/reconcile"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not connect to the database")
	}
	defer pool.Close()

	store := repo.NewPostgres(pool)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("could not ensure the schema")
	}

	cal, err := calendar.Load(ctx, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not load the birthday calendar")
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not create the session")
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent
	if err := session.Open(); err != nil {
		logger.Fatal().Err(err).Msg("could not open the gateway connection")
	}
	defer session.Close()
	logger.Info().Str("user", session.State.User.String()).Msg("connected")

	gateway := discord.NewGateway(session, logger)
	classifier := classify.New(gateway.BotUserID(), cfg.Channels.Equal, cal)
	boardUC := leaderboard.NewService(store, gateway, cfg.Channels.Leaderboard, logger)
	ledgerUC := ledger.NewService(store, boardUC, logger)
	escrowUC := escrow.NewService(ledgerUC, gateway, cfg.Channels.Chaos, logger)
	reconcileUC := reconcile.NewService(
		gateway, store, store, classifier, boardUC,
		cfg.Channels.Equal,
		time.Duration(cfg.Historical.ThresholdSeconds)*time.Second,
		cfg.Historical.Purge,
		logger,
	)

	h := bot.NewHandler(session, gateway, logger, cal, classifier, ledgerUC, escrowUC, boardUC, reconcileUC, store, cfg.EqualRoleID)
	h.Register()
	h.Startup(ctx)

	ops := httpinfra.NewServer(logger)
	go func() {
		if err := ops.Start(cfg.OpsAddr); err != nil {
			logger.Error().Err(err).Msg("ops server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ops.Shutdown(shutdownCtx)
}

var _ domain.LedgerRepo = (*repo.Postgres)(nil)
var _ domain.BirthdayRepo = (*repo.Postgres)(nil)
var _ domain.StateRepo = (*repo.Postgres)(nil)
var _ domain.ChannelGateway = (*discord.Gateway)(nil)
