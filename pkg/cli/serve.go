package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	httpctrl "github.com/veille-ai/veille/pkg/controller/http"
	"github.com/veille-ai/veille/pkg/service/worker"
	"github.com/veille-ai/veille/pkg/utils/logging"
)

func cmdServe() *cli.Command {
	var addr string
	var defaultOwner string
	var maxBodySize int
	var sessionIdle time.Duration
	var sweepInterval time.Duration
	var cfg assistantConfig

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("VEILLE_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "default-owner",
			Usage:       "Owner of requests without the " + httpctrl.OwnerHeader + " header",
			Value:       httpctrl.DefaultOwner,
			Sources:     cli.EnvVars("VEILLE_DEFAULT_OWNER"),
			Destination: &defaultOwner,
		},
		&cli.IntFlag{
			Name:        "max-body-size",
			Usage:       "Maximum request body size in bytes",
			Value:       16 << 20,
			Sources:     cli.EnvVars("VEILLE_MAX_BODY_SIZE"),
			Destination: &maxBodySize,
		},
		&cli.DurationFlag{
			Name:        "session-idle-timeout",
			Usage:       "End API sessions not used for this long",
			Value:       30 * time.Minute,
			Sources:     cli.EnvVars("VEILLE_SESSION_IDLE_TIMEOUT"),
			Destination: &sessionIdle,
		},
		&cli.DurationFlag{
			Name:        "session-sweep-interval",
			Usage:       "How often idle sessions are looked for",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("VEILLE_SESSION_SWEEP_INTERVAL"),
			Destination: &sweepInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, cfg.flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			uc, repo, err := cfg.build(ctx)
			if err != nil {
				return err
			}
			defer closeRepository(repo)

			if sessionIdle <= 0 || sweepInterval <= 0 {
				return goerr.New("session-idle-timeout and session-sweep-interval must be positive")
			}
			sweeper := worker.NewSessionSweeper(uc.Chat, sweepInterval, sessionIdle)
			if err := sweeper.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start session sweeper")
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(uc,
					httpctrl.WithDefaultOwner(defaultOwner),
					httpctrl.WithMaxBodySize(int64(maxBodySize)),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				sweeper.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop the session sweeper first
				sweeper.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
