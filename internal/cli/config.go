package cli

import (
	"github.com/lacquerai/co2/internal/inference"
	"github.com/lacquerai/co2/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// setDefaults registers the default of every configuration key that is not
// bound to a flag default.
func setDefaults() {
	srv := server.DefaultConfig()
	viper.SetDefault("server.read-timeout", srv.ReadTimeout)
	viper.SetDefault("server.write-timeout", srv.WriteTimeout)
	viper.SetDefault("server.idle-timeout", srv.IdleTimeout)
	viper.SetDefault("server.shutdown-timeout", srv.ShutdownTimeout)

	model := inference.DefaultConfig()
	viper.SetDefault("model.onnx.input", model.ONNX.Input)
	viper.SetDefault("model.onnx.output", model.ONNX.Output)
	viper.SetDefault("model.remote.timeout", model.Remote.Timeout)
}

// addModelFlags registers the model selection flags shared by serve and
// predict.
func addModelFlags(cmd *cobra.Command) {
	model := inference.DefaultConfig()
	flags := cmd.PersistentFlags()

	flags.String("model-backend", model.Backend, "model backend (artifact, onnx, remote)")
	flags.String("model-path", model.Path, "model file for the artifact and onnx backends")
	flags.String("onnx-library", model.ONNX.Library, "path to the onnxruntime shared library")
	flags.String("remote-url", model.Remote.URL, "prediction endpoint for the remote backend")

	_ = viper.BindPFlag("model.backend", flags.Lookup("model-backend"))
	_ = viper.BindPFlag("model.path", flags.Lookup("model-path"))
	_ = viper.BindPFlag("model.onnx.library", flags.Lookup("onnx-library"))
	_ = viper.BindPFlag("model.remote.url", flags.Lookup("remote-url"))
}

// modelConfig builds the inference configuration from viper
func modelConfig() inference.Config {
	return inference.Config{
		Backend: viper.GetString("model.backend"),
		Path:    viper.GetString("model.path"),
		ONNX: inference.ONNXConfig{
			Library: viper.GetString("model.onnx.library"),
			Input:   viper.GetString("model.onnx.input"),
			Output:  viper.GetString("model.onnx.output"),
		},
		Remote: inference.RemoteConfig{
			URL:     viper.GetString("model.remote.url"),
			Timeout: viper.GetDuration("model.remote.timeout"),
		},
	}
}

// serverConfig builds the HTTP server configuration from viper
func serverConfig() *server.Config {
	return &server.Config{
		Host:            viper.GetString("server.host"),
		Port:            viper.GetInt("server.port"),
		EnableMetrics:   viper.GetBool("server.metrics"),
		EnableCORS:      viper.GetBool("server.cors"),
		ReadTimeout:     viper.GetDuration("server.read-timeout"),
		WriteTimeout:    viper.GetDuration("server.write-timeout"),
		IdleTimeout:     viper.GetDuration("server.idle-timeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdown-timeout"),
	}
}
