// Command helppaw runs the Help Paw API and its maintenance tasks.
//
//	@title						Help Paw API
//	@version					1.0
//	@description				Animal shelter directory, chats and donations.
//	@contact.name				Lapki pomoshi
//	@contact.url				https://lapkipomoshi.ru
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token as "Bearer <JWT>"
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	_ "github.com/Lapkipomoshi/help-paw-backend/docs"
	"github.com/Lapkipomoshi/help-paw-backend/internal/alert"
	"github.com/Lapkipomoshi/help-paw-backend/internal/config"
	"github.com/Lapkipomoshi/help-paw-backend/internal/geocode"
	httpapi "github.com/Lapkipomoshi/help-paw-backend/internal/http"
	"github.com/Lapkipomoshi/help-paw-backend/internal/mail"
	"github.com/Lapkipomoshi/help-paw-backend/internal/observability"
	"github.com/Lapkipomoshi/help-paw-backend/internal/realtime"
	"github.com/Lapkipomoshi/help-paw-backend/internal/repo"
	"github.com/Lapkipomoshi/help-paw-backend/internal/services"
	"github.com/Lapkipomoshi/help-paw-backend/internal/storage"
	"github.com/Lapkipomoshi/help-paw-backend/internal/sysutil"
	"github.com/Lapkipomoshi/help-paw-backend/internal/yookassa"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// idempotencySweep is how often expired donation keys are purged.
const idempotencySweep = 10 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:           "helppaw",
		Short:         "Help Paw animal shelter backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, sets up logging and opens the database.
func bootstrap() (config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stderr, cfg.OTEL.ServiceName)

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN, cfg.DB.Debug)
	if err != nil {
		return cfg, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if migrate {
				if err := repo.AutoMigrate(db); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}
			return serve(cmd.Context(), cfg, db)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func serve(parent context.Context, cfg config.Config, db *gorm.DB) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	deps, err := buildDeps(ctx, cfg, db)
	if err != nil {
		return err
	}
	go deps.Hub.Run(ctx)
	go sysutil.Every(ctx, "purge_idempotency", idempotencySweep, func(ctx context.Context) error {
		n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC())
		if n > 0 {
			log.Debug().Int64("purged", n).Msg("expired idempotency keys removed")
		}
		return err
	})

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, deps, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", Version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	c, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(c)
}

// buildDeps picks the production integrations that are configured and
// leaves the rest to the router's local fallbacks.
func buildDeps(ctx context.Context, cfg config.Config, db *gorm.DB) (httpapi.Deps, error) {
	d := httpapi.Deps{
		DB: db,
		Provider: yookassa.New(yookassa.Options{
			APIBase:      cfg.Yookassa.APIBase,
			OAuthBase:    cfg.Yookassa.OAuthBase,
			ClientID:     cfg.Yookassa.ClientID,
			ClientSecret: cfg.Yookassa.ClientSecret,
			Timeout:      cfg.Yookassa.Timeout,
		}),
		Mailer: mail.LogMailer{},
		Hub:    realtime.NewHub(),
		Alert:  alert.LogReporter{},
	}

	if cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3(ctx, storage.S3Options{
			Bucket:     cfg.Storage.Bucket,
			Region:     cfg.Storage.Region,
			Endpoint:   cfg.Storage.Endpoint,
			AccessKey:  cfg.Storage.AccessKey,
			SecretKey:  cfg.Storage.SecretKey,
			PublicBase: cfg.Storage.PublicBase,
			PathStyle:  cfg.Storage.PathStyle,
		})
		if err != nil {
			return d, fmt.Errorf("object storage: %w", err)
		}
		d.Store = s3
	} else {
		log.Warn().Msg("S3_BUCKET not set, images are kept in memory")
	}

	if cfg.Geocoder.Endpoint != "" {
		d.Geocoder = geocode.NewHTTP(cfg.Geocoder.Endpoint, cfg.Geocoder.APIKey, cfg.Geocoder.Timeout)
	}

	if cfg.Alert.TelegramToken != "" && cfg.Alert.TelegramChatID != "" {
		d.Alert = alert.Async{
			Next:    alert.NewTelegram(cfg.Alert.TelegramAPI, cfg.Alert.TelegramToken, cfg.Alert.TelegramChatID, cfg.Alert.Timeout),
			Timeout: cfg.Alert.Timeout,
		}
	}
	return d, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(*cobra.Command, []string) error {
			_, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := repo.AutoMigrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info().Int("models", len(repo.Models())).Msg("schema is up to date")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var in services.RegisterInput
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if in.Password == "" {
				in.Password = os.Getenv("ADMIN_PASSWORD")
			}
			users := &services.UserService{DB: db, Mailer: mail.LogMailer{}, FrontendURL: cfg.Auth.FrontendURL}
			u, err := users.CreateAdmin(cmd.Context(), in)
			if err != nil {
				return err
			}
			log.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("administrator created")
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "administrator email")
	cmd.Flags().StringVar(&in.Username, "username", "", "display name")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (defaults to $ADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}
