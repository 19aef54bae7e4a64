package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ericfisherdev/credvault/internal/adapter/driving/console"
	httphandler "github.com/ericfisherdev/credvault/internal/adapter/driving/http"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/logging"
)

// session carries what PersistentPreRunE prepared for a subcommand.
type session struct {
	envFile   string
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

// newRootCmd builds the command tree. Running without a subcommand starts the
// interactive console.
func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:           "credvault",
		Short:         "credvault is a local credential vault.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return s.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.runConsole(cmd.Context(), stdin, stdout)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.PersistentFlags().StringVar(&s.envFile, "env-file", ".env", "dotenv file loaded before reading CREDVAULT_* variables")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the vault over the REST API",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return s.runServer(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "console",
			Short: "Run the interactive menu",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return s.runConsole(cmd.Context(), stdin, stdout)
			},
		},
		&cobra.Command{
			Use:   "generate",
			Short: "Print a random password and its strength",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				password, err := application.NewPasswordGenerator(nil).Generate()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", password, application.ClassifyStrength(password))
				return nil
			},
		},
		&cobra.Command{
			Use:   "strength <password>",
			Short: "Classify a password as Weak, Medium or Strong",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), application.ClassifyStrength(args[0]))
				return nil
			},
		},
	)

	return root
}

func (s *session) setup() error {
	if err := config.LoadEnvFile(s.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	s.cfg, s.logger, s.logCloser = cfg, logger, closer
	slog.SetDefault(logger)
	return nil
}

func (s *session) teardown() error {
	if s.logCloser == nil {
		return nil
	}
	return s.logCloser.Close()
}

func (s *session) runConsole(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	vault, closeStore, err := openVault(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var opts []console.Option
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		opts = append(opts, console.WithPasswordReader(terminalPasswordReader(f, stdout)))
	}

	return console.New(vault, stdin, stdout, s.logger, opts...).Run(ctx)
}

// terminalPasswordReader reads a password from the terminal without echo.
func terminalPasswordReader(f *os.File, w io.Writer) console.PasswordReader {
	return func(prompt string) (string, error) {
		_, _ = io.WriteString(w, prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		_, _ = io.WriteString(w, "\n")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}

func (s *session) runServer(ctx context.Context) error {
	logger := s.logger
	logger.Info("config loaded",
		"listen_addr", s.cfg.ListenAddr,
		"store_backend", s.cfg.StoreBackend,
		"store_path", s.cfg.StorePath,
		"encoder", s.cfg.Encoder,
	)

	// Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	vault, closeStore, err := openVault(ctx, s.cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	handler := httphandler.NewServeMux(httphandler.NewHandler(vault, logger), logger)

	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", s.cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	// Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
