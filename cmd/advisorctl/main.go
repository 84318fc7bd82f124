// advisorctl drives the advisory service from a terminal.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/advisor-chat/internal/advisor"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	apiURL   string
	grpcAddr string
	timeout  time.Duration
	verbose  bool

	logger *slog.Logger
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "advisorctl",
		Short: "Talk to the course advisory service from the command line",
		Long: `advisorctl runs the onboarding conversation in a terminal and exposes
single advisory calls for debugging a deployment.

The advisory service is reached over HTTP by default. Pass --grpc-addr to use
the gRPC transport instead.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&apiURL, "api-url", envOr("ADVISOR_API_URL", "http://localhost:5001"), "advisory service base URL")
	root.PersistentFlags().StringVar(&grpcAddr, "grpc-addr", os.Getenv("ADVISOR_GRPC_ADDR"), "advisory service gRPC address (overrides --api-url)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "per-request timeout")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newChatCmd(), newValidateCmd(), newAskCmd())
	return root
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// dialAdvisor builds the client selected by the global flags.
func dialAdvisor() (advisor.Client, io.Closer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if grpcAddr != "" {
		cfg := advisor.DefaultGrpcClientConfig()
		cfg.Address = grpcAddr
		cfg.RequestTimeout = timeout
		client, err := advisor.NewGrpcClientWithConfig(cfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to %s: %w", grpcAddr, err)
		}
		return client, closerFunc(client.Close), nil
	}
	client := advisor.NewHTTPClient(advisor.HTTPClientConfig{BaseURL: apiURL, Timeout: timeout}, logger)
	return client, closerFunc(func() {}), nil
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
