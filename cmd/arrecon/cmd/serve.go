package cmd

import (
	"fmt"

	"ar-reconciliation-engine/cmd/arrecon/config"
	"ar-reconciliation-engine/internal/engine"
	"ar-reconciliation-engine/internal/server"
	"ar-reconciliation-engine/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the serve command
var (
	serveAddr    string
	apiKey       string
	maxBatchSize int
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reconciliation HTTP API",
	Long: `Serve exposes the matching pipeline over HTTP.

Endpoints:
  GET  /health     liveness probe, no authentication
  POST /reconcile  reconcile a batch, authenticated via the X-API-Key header

The API key is read from the --api-key flag or the ARRECON_API_KEY
environment variable. Requests are rejected with HTTP 500 when no key is
configured.

Examples:
  ARRECON_API_KEY=secret arrecon serve
  arrecon serve --addr :9000 --api-key secret --max-batch-size 500`,

	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8000", "listen address")
	serveCmd.Flags().StringVar(&apiKey, "api-key", "", "shared API key (env: ARRECON_API_KEY)")
	serveCmd.Flags().IntVar(&maxBatchSize, "max-batch-size", 1000, "maximum payments and open items per request")

	viper.BindPFlag("addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("api-key", serveCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("max-batch-size", serveCmd.Flags().Lookup("max-batch-size"))
}

func runServe(cmd *cobra.Command, args []string) error {
	serveAddr = viper.GetString("addr")
	apiKey = viper.GetString("api-key")
	maxBatchSize = viper.GetInt("max-batch-size")

	log, err := logger.NewLogger(config.CreateLoggerConfig(viper.GetBool("verbose")))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	eng := engine.New(config.CreateEngineConfig(false), log)

	srv, err := server.New(config.CreateServerConfig(serveAddr, apiKey, maxBatchSize), eng, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run()
}
