package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/lacquerai/co2/internal/inference"
	"github.com/lacquerai/co2/internal/pipeline"
	"github.com/lacquerai/co2/internal/server"
	"github.com/lacquerai/co2/internal/style"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP prediction server",
	Long: `Start an HTTP server that predicts weekly CO2 emissions.

The server provides:
- POST /predict for predictions from a JSON payload
- GET /health for liveness checks
- GET / describing the API with an example payload
- Prometheus metrics endpoint`,
	Example: `
  co2 serve                                   # Serve model.json on localhost:5000
  co2 serve --host 0.0.0.0 --port 8080        # Custom host and port
  co2 serve --model-path models/forest.yaml   # Serve another artifact
  co2 serve --model-backend onnx --model-path model.onnx
  co2 serve --model-backend remote --remote-url http://models:8501/v1/models/co2:predict`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startServer(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := server.DefaultConfig()

	// Server configuration
	serveCmd.Flags().IntP("port", "p", defaults.Port, "server port")
	serveCmd.Flags().String("host", defaults.Host, "server host")

	// Features
	serveCmd.Flags().Bool("metrics", defaults.EnableMetrics, "enable Prometheus metrics endpoint")
	serveCmd.Flags().Bool("cors", defaults.EnableCORS, "enable CORS headers")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.metrics", serveCmd.Flags().Lookup("metrics"))
	_ = viper.BindPFlag("server.cors", serveCmd.Flags().Lookup("cors"))
}

func startServer(cmd *cobra.Command) error {
	predictor, err := loadModel(cmd.Context(), cmd.ErrOrStderr(), modelConfig())
	if err != nil {
		return err
	}

	config := serverConfig()
	srv, err := server.New(config, pipeline.New(predictor))
	if err != nil {
		_ = predictor.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	if !viper.GetBool("quiet") {
		printServerInfo(cmd.OutOrStdout(), srv.GetAddr(), config.EnableMetrics)
	}

	if err := srv.StartWithGracefulShutdown(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// loadModel loads the configured backend behind a spinner on stderr
func loadModel(ctx context.Context, w io.Writer, cfg inference.Config) (inference.Predictor, error) {
	spinner := style.NewSpinner(w)
	spinner.SetSuffix(fmt.Sprintf(" Loading %s model", backendName(cfg)))
	spinner.Start()

	predictor, err := inference.Load(ctx, cfg)
	if err != nil {
		spinner.SetFinalMSG(style.ErrorIcon() + " Failed to load model\n")
		spinner.Stop()
		return nil, err
	}

	spinner.SetFinalMSG(style.SuccessIcon() + " Model loaded\n")
	spinner.Stop()
	return predictor, nil
}

func backendName(cfg inference.Config) string {
	if cfg.Backend == "" {
		return inference.BackendArtifact
	}
	return cfg.Backend
}

// printServerInfo lists the routes the server is about to serve
func printServerInfo(w io.Writer, addr string, metrics bool) {
	style.Success(w, fmt.Sprintf("CO2 prediction server starting at http://%s", addr))

	routes := []string{
		style.KeyValue("Predict", fmt.Sprintf("POST http://%s/predict", addr)),
		style.KeyValue("Health", fmt.Sprintf("GET  http://%s/health", addr)),
	}
	if metrics {
		routes = append(routes, style.KeyValue("Metrics", fmt.Sprintf("GET  http://%s/metrics", addr)))
	}
	fmt.Fprint(w, style.Section("Routes", routes))
	style.Info(w, "Press Ctrl+C to stop")
}
