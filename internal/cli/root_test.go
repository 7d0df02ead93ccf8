package cli

import (
	"bytes"
	"testing"

	_ "github.com/lacquerai/co2/internal/testhelper"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand runs the root command with args and returns stdout and
// stderr. Flags are reset to their defaults afterwards since the command tree
// is shared between tests.
func executeCommand(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("CO2_TEST", "true")

	level := zerolog.GlobalLevel()
	t.Cleanup(func() {
		resetFlags(rootCmd)
		zerolog.SetGlobalLevel(level)
	})

	out := new(bytes.Buffer)
	errOut := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(append([]string{"--log-level", "disabled"}, args...))

	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestGetVersion(t *testing.T) {
	version := getVersion()
	assert.Contains(t, version, "dev")
	assert.Contains(t, version, "unknown")
}

func TestInitLogging(t *testing.T) {
	level := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(level)

	viper.Set("log-level", "warn")
	defer viper.Set("log-level", nil)

	require.NotPanics(t, initLogging)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("INFO"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, parseLogLevel("error"))
	assert.Equal(t, zerolog.Disabled, parseLogLevel("disabled"))
	assert.Equal(t, zerolog.Disabled, parseLogLevel("chatty"))
}

func TestInitConfig(t *testing.T) {
	require.NotPanics(t, initConfig)
}

func TestRootCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "--help")
	assert.NoError(t, err)
	assert.Contains(t, stdout, "weekly CO2 emissions")
	assert.Contains(t, stdout, "Available Commands:")
}

func TestGlobalFlags(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "string", flag.Value.Type())

	flag = rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "info", flag.DefValue)

	flag = rootCmd.PersistentFlags().Lookup("output")
	require.NotNil(t, flag)
	assert.Equal(t, "text", flag.DefValue)

	flag = rootCmd.PersistentFlags().Lookup("model-path")
	require.NotNil(t, flag)
	assert.Equal(t, "model.json", flag.DefValue)

	flag = rootCmd.PersistentFlags().Lookup("model-backend")
	require.NotNil(t, flag)
	assert.Equal(t, "artifact", flag.DefValue)
}

func TestCommandAvailability(t *testing.T) {
	commands := []string{"serve", "predict", "schema", "version"}

	for _, cmdName := range commands {
		cmd, _, err := rootCmd.Find([]string{cmdName})
		assert.NoError(t, err, "Command %s should be available", cmdName)
		assert.Equal(t, cmdName, cmd.Name(), "Command name should match")
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	initConfig()

	t.Setenv("CO2_MODEL_PATH", "/models/forest.yaml")
	t.Setenv("CO2_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("CO2_MODEL_REMOTE_TIMEOUT", "250ms")

	model := modelConfig()
	assert.Equal(t, "/models/forest.yaml", model.Path)
	assert.Equal(t, "artifact", model.Backend)
	assert.Equal(t, "float_input", model.ONNX.Input)
	assert.Equal(t, "250ms", model.Remote.Timeout.String())

	srv := serverConfig()
	assert.Equal(t, "3s", srv.ReadTimeout.String())
	assert.Equal(t, 5000, srv.Port)
	assert.Equal(t, "localhost", srv.Host)
	assert.True(t, srv.EnableCORS)
	assert.True(t, srv.EnableMetrics)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "co2 dev")
}

func TestVersionCommandJSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "version", "--output", "json")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"version": "dev"`)
	assert.Contains(t, stdout, `"go_version": "go`)
}

func TestVersionCommandYAML(t *testing.T) {
	stdout, _, err := executeCommand(t, "version", "--output", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "version: dev")
}

func TestBuildVariables(t *testing.T) {
	assert.NotEmpty(t, Version)
	assert.NotEmpty(t, Commit)
	assert.NotEmpty(t, Date)
	assert.Contains(t, GoVersion, "go")
}
