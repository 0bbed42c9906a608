package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/dianabotdeep/dianabot/dianabot"
	"github.com/dianabotdeep/dianabot/dianabot/commands"
	"github.com/dianabotdeep/dianabot/dianabot/database"
	"github.com/dianabotdeep/dianabot/dianabot/database/repositories"
	"github.com/dianabotdeep/dianabot/dianabot/handlers"
	"github.com/dianabotdeep/dianabot/dianabot/logger"
	"github.com/dianabotdeep/dianabot/dianabot/scheduler"
	"github.com/dianabotdeep/dianabot/dianabot/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := dianabot.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	customHandler := logger.NewHandler(cfg.Log.Level)
	slog.SetDefault(slog.New(customHandler))
	log := slog.Default()

	slog.Info("Starting Diana",
		slog.String("version", version),
		slog.String("commit", commit))

	slog.Info("Initializing database connection...")
	dbStartTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}
	defer db.Close()

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema", slog.String("error", err.Error()))
		os.Exit(-1)
	}

	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	b := dianabot.New(*cfg, version, commit)
	b.DB = db

	spacesService, err := services.NewSpacesService(
		cfg.Spaces.Key,
		cfg.Spaces.Secret,
		cfg.Spaces.Region,
		cfg.Spaces.Bucket,
		cfg.Spaces.MediaRoot,
	)
	if err != nil {
		slog.Error("Failed to initialize Spaces service", slog.Any("error", err))
		os.Exit(-1)
	}
	b.SpacesService = spacesService

	// Repositories
	b.UserRepository = repositories.NewUserRepository(db.BunDB())
	b.MissionRepository = repositories.NewMissionRepository(db.BunDB())
	b.LoreRepository = repositories.NewLoreRepository(db.BunDB())
	b.CombinationRepository = repositories.NewCombinationRepository(db.BunDB())
	b.SceneRepository = repositories.NewSceneRepository(db.BunDB())
	b.TrustRepository = repositories.NewTrustRepository(db.BunDB())

	// Core services
	b.PointsService = services.NewPointsService(b.UserRepository, log)
	b.TrustEngine = services.NewTrustEngine(b.TrustRepository, log)
	b.LoreSearch = services.NewLoreSearch(b.LoreRepository)

	if err = b.SetupBot(); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
		os.Exit(-1)
	}

	notifier := services.NewDiscordNotifier(b.Client, log)
	presenter := services.NewDiscordScenePresenter(b.Client, spacesService, log)

	b.MissionTracker = services.NewMissionTracker(b.MissionRepository, b.LoreRepository, b.PointsService, notifier, log)
	b.CombinationResolver = services.NewCombinationResolver(b.CombinationRepository, b.LoreRepository, notifier, log)
	b.Dispatcher = services.NewDispatcher(b.SceneRepository, b.TrustEngine, presenter, cfg.Narrative.Deltas(), log)
	b.DailyService = services.NewDailyService(b.UserRepository, b.PointsService, b.MissionTracker, log)

	// Mission completions flow back through the dispatcher so they can
	// trigger scenes of their own.
	b.MissionTracker.SetEventSink(func(ctx context.Context, event services.GameEvent) {
		if err := b.Dispatcher.Process(ctx, event); err != nil {
			slog.Error("Failed to process mission event",
				slog.String("user_id", event.UserID),
				slog.String("kind", string(event.Kind)),
				slog.Any("error", err))
		}
	})

	if err := b.CombinationResolver.ValidateRules(ctx); err != nil {
		slog.Error("Combination rule validation failed", slog.Any("error", err))
		os.Exit(-1)
	}

	h := handler.New()
	h.Command("/version", commands.VersionHandler(b))
	h.Command("/daily", handlers.WrapWithLogging("daily", commands.DailyHandler(b)))
	h.Command("/balance", handlers.WrapWithLogging("balance", commands.BalanceHandler(b)))
	h.Command("/missions", handlers.WrapWithLogging("missions", commands.MissionsHandler(b)))
	h.Command("/backpack", handlers.WrapWithLogging("backpack", commands.BackpackHandler(b)))
	h.Command("/hints", handlers.WrapWithLogging("hints", commands.HintsHandler(b)))
	h.Command("/combine", handlers.WrapWithLogging("combine", commands.CombineHandler(b)))
	h.Autocomplete("/combine", commands.CombineAutocompleteHandler(b))
	h.Command("/bond", handlers.WrapWithLogging("bond", commands.BondHandler(b)))
	h.Component("/poll/", handlers.WrapComponentWithLogging("poll", handlers.PollComponentHandler(b)))

	b.Client.AddEventListeners(
		h,
		bot.NewListenerFunc(b.OnReady),
		handlers.MessageHandler(b),
		handlers.ReactionHandler(b),
	)

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Client.Close(ctx)
	}()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds),
		)
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err),
				slog.String("error_details", fmt.Sprintf("%+v", err)),
			)
		}
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	progression := scheduler.NewProgressionScheduler(b.UserRepository, b.Dispatcher, cfg.Narrative.SweepInterval, log)
	go progression.Start(sweepCtx)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = b.Client.OpenGateway(ctx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err),
		)
		os.Exit(-1)
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")
}
