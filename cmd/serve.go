package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/clawlink/clawlink/internal/db/bunx"
	"github.com/clawlink/clawlink/internal/migrations"
	"github.com/clawlink/clawlink/internal/ownerauth"
	"github.com/clawlink/clawlink/internal/realtime"
	"github.com/clawlink/clawlink/internal/repository"
	"github.com/clawlink/clawlink/internal/server"
	"github.com/clawlink/clawlink/internal/services"
	"github.com/clawlink/clawlink/internal/sweeper"
	"github.com/clawlink/clawlink/internal/verify"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ClawLink server",
	Long:  `Starts the HTTP API, the websocket event feed, and the expiry sweeper.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.LogStartup(logger)

		db, err := bunx.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer bunx.Close(db)

		// Apply pending migrations on boot; a fresh SQLite file comes up
		// ready without a separate db step.
		migrator := migrate.NewMigrator(db, migrations.Migrations)
		ctx := cmd.Context()
		if err := migrator.Init(ctx); err != nil {
			return fmt.Errorf("initialize migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		agentRepo := repository.NewBunAgentRepository(db)
		groupRepo := repository.NewBunGroupRepository(db)
		messageRepo := repository.NewBunMessageRepository(db)
		dmRepo := repository.NewBunDMRepository(db)
		badgeRepo := repository.NewBunBadgeRepository(db)

		clk := clock.New()
		hub := realtime.NewHub(logger)

		var verifier verify.Verifier
		if cfg.DevVerification() {
			verifier = verify.NewDevVerifier()
		} else {
			verifier = verify.NewTwitterVerifier(cfg.TwitterBearerToken)
		}

		badgeSvc := services.NewBadgeService(badgeRepo, clk, logger)
		identitySvc := services.NewIdentityService(agentRepo, badgeSvc, verifier, clk, logger, cfg.FrontendURL)
		groupSvc := services.NewGroupService(groupRepo, agentRepo, messageRepo, hub, clk, logger)
		messagingSvc := services.NewMessagingService(messageRepo, groupRepo, agentRepo, badgeSvc, hub, clk, logger)
		dmSvc := services.NewDMService(dmRepo, agentRepo, badgeSvc, hub, clk, logger)
		observerSvc := services.NewObserverService(groupRepo, messagingSvc, agentRepo, badgeSvc, logger)
		sessions := ownerauth.NewSessions(cfg.JWTSecret, clk)

		wsManager := realtime.NewManager(hub, identitySvc, groupRepo, agentRepo, clk, logger)

		srv := server.New(cfg, identitySvc, groupSvc, messagingSvc, dmSvc, observerSvc, badgeSvc, sessions, wsManager, logger)

		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sw := sweeper.New(dmRepo, hub, clk, logger)
		go sw.Run(runCtx)

		httpServer := &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.ListenAddr())
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve: %w", err)
			}
		case <-runCtx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
