package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/choreonotes/internal/auth"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/config"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/database"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/logging"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/moves"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/routines"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/server"
	"github.com/MarcoPoloResearchLab/choreonotes/internal/users"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownGracePeriod = 10 * time.Second

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "choreo-api",
		Short: "Choreo Notes backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a dotenv file loaded before configuration")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Session token lifetime")
	cmd.PersistentFlags().Int("password-cost", defaults.GetInt("auth.password_cost"), "bcrypt cost for password hashing")
	cmd.PersistentFlags().StringSlice("cors-origins", defaults.GetStringSlice("cors.origins"), "Allowed CORS origins")
	cmd.PersistentFlags().Int("rate-limit-requests", defaults.GetInt("ratelimit.requests"), "Requests allowed per client per window (0 disables)")
	cmd.PersistentFlags().Duration("rate-limit-window", defaults.GetDuration("ratelimit.window"), "Rate limit window")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "auth.password_cost", "password-cost")
	bindFlag(cmd, "cors.origins", "cors-origins")
	bindFlag(cmd, "ratelimit.requests", "rate-limit-requests")
	bindFlag(cmd, "ratelimit.window", "rate-limit-window")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if envFile != "" {
		// Variables already present in the environment win over the file.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "choreo-auth",
		Audience:      "choreo-api",
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	accounts, err := users.NewService(users.ServiceConfig{
		Database: db,
		Hasher:   auth.NewBcryptHasher(appConfig.PasswordCost),
		Tokens:   tokenIssuer,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	composition, err := routines.NewComposition(routines.CompositionConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	moveCatalog, err := moves.NewService(moves.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		Logger:     logger,
		References: composition,
	})
	if err != nil {
		return err
	}

	routineCatalog, err := routines.NewService(routines.ServiceConfig{
		Database:    db,
		Clock:       time.Now,
		Logger:      logger,
		Composition: composition,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:    accounts,
		Moves:       moveCatalog,
		Routines:    routineCatalog,
		Logger:      logger,
		CORSOrigins: appConfig.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			Requests: appConfig.RateLimitRequests,
			Window:   appConfig.RateLimitWindow,
		},
		Metrics: server.NewMetrics(),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              appConfig.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.DatabaseDriver),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
