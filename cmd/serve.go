package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/profilehub/internal/account"
	"github.com/jon4hz/profilehub/internal/api"
	"github.com/jon4hz/profilehub/internal/cache"
	"github.com/jon4hz/profilehub/internal/config"
	"github.com/jon4hz/profilehub/internal/database"
	"github.com/jon4hz/profilehub/internal/password"
	"github.com/jon4hz/profilehub/internal/storage"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the profilehub server",
	Long:  `Start the profilehub HTTP server. This is also what runs when no subcommand is given.`,
	Example: `profilehub serve --config config.yml
profilehub serve -c /path/to/config.yml --log-level debug
`,
	Run: startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func startServer(cmd *cobra.Command, _ []string) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close() //nolint:errcheck

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to initialize file storage: %v", err)
	}
	log.Info("file storage ready", "backend", files)

	service := account.NewService(db, password.New(cfg.Password.Cost), files, serviceOptions(cfg)...)

	server, err := api.New(cfg, service, files, log.GetLevel() == log.DebugLevel)
	if err != nil {
		log.Fatalf("failed to create API server: %v", err)
	}

	log.Info("profilehub started successfully")
	if err := server.Run(ctx); err != nil {
		log.Error("API server error", "error", err)
		return
	}
	log.Info("profilehub stopped")
}

func serviceOptions(cfg *config.Config) []account.Option {
	if !cfg.Cache.Enabled {
		return nil
	}
	profiles := cache.NewPrefixedCache[account.Profile](cache.NewInstance(cfg.Cache), "profile-", cfg.Cache.TTL)
	log.Info("profile cache enabled", "type", profiles.GetType(), "ttl", cfg.Cache.TTL)
	return []account.Option{account.WithProfileCache(profiles)}
}
