package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bataille/internal/app"
	"bataille/internal/bot"
	"bataille/internal/config"
	"bataille/internal/hub"
	"bataille/internal/ports"
	"bataille/internal/ports/httpapi"
	"bataille/internal/ports/memory"
	"bataille/internal/ports/sqlite"

	"github.com/spf13/cobra"
)

var serveOpts struct {
	addr          string
	dbPath        string
	configPath    string
	identityPath  string
	sweepInterval time.Duration
}

// serveCmd runs the HTTP API until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the game server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := config.LoadGameConfig(serveOpts.configPath); err != nil {
			log.WithError(err).Warn("using default game rules")
		}
		rules, err := config.CurrentRules()
		if err != nil {
			return err
		}
		rules = config.ApplyEnv(rules, config.OSLookup)
		if err := rules.Validate(); err != nil {
			return err
		}
		if err := bot.LoadIdentities(serveOpts.identityPath); err != nil {
			log.WithError(err).Warn("bot opponents will use generated identities")
		} else {
			log.WithField("bots", bot.AssignLocalIDs()).Info("bot identities ready")
		}

		repo, closeRepo, err := openRepository(serveOpts.dbPath)
		if err != nil {
			return err
		}
		defer closeRepo()

		auth, err := httpapi.NewAuthenticator(os.Getenv("BATAILLE_JWT_SECRET"), tokenTTL)
		if err != nil {
			return err
		}

		broker := hub.NewMemoryBroker()
		defer broker.Close()
		games := hub.New(app.NewService(rules, nil), repo, broker, hub.WithLogger(log))
		resumed, err := games.Resume(ctx)
		if err != nil {
			return err
		}
		if resumed > 0 {
			log.WithField("matches", resumed).Info("resumed live matches")
		}
		go games.Run(ctx, serveOpts.sweepInterval)

		srv := &http.Server{
			Addr:              serveOpts.addr,
			Handler:           httpapi.NewServer(games, auth, log).Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("shutdown failed")
			}
		}()

		log.WithField("addr", serveOpts.addr).Info("warserver listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info("warserver stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveOpts.addr, "addr", envOr("BATAILLE_ADDR", ":8080"), "listen address")
	serveCmd.Flags().StringVar(&serveOpts.dbPath, "db", envOr("BATAILLE_DB", ""), "SQLite database path; empty keeps matches in memory")
	serveCmd.Flags().StringVar(&serveOpts.configPath, "config", "data/game_config.json", "game rules file")
	serveCmd.Flags().StringVar(&serveOpts.identityPath, "bots", "data/bot_identities.json", "bot identities file")
	serveCmd.Flags().DurationVar(&serveOpts.sweepInterval, "sweep", time.Second, "watchdog interval")
	rootCmd.AddCommand(serveCmd)
}

func openRepository(path string) (ports.MatchRepository, func(), error) {
	if path == "" {
		log.Warn("no database configured, matches are kept in memory")
		return memory.NewStore(), func() {}, nil
	}
	repo, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return repo, func() {
		if err := repo.Close(); err != nil {
			log.WithError(err).Error("failed to close database")
		}
	}, nil
}
