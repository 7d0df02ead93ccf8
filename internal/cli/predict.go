package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/pipeline"
	"github.com/lacquerai/co2/internal/style"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict [file|-]",
	Short: "Predict weekly CO2 emissions from a JSON or YAML file",
	Long: `Predict the weekly CO2 emissions described by a JSON or YAML file, or by stdin.

The input uses the same fields as the HTTP API. Run 'co2 schema' for the full list
of fields and accepted values.`,
	Example: `
  co2 predict person.json                  # Predict from a JSON file
  co2 predict person.yaml --output json    # Predict from YAML, print JSON
  cat person.json | co2 predict            # Predict from stdin
  co2 predict person.json --verbose        # Also print the feature vectors`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "-"
		if len(args) == 1 {
			source = args[0]
		}
		return runPredict(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), source)
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
}

// PredictOutput is the structured output of the predict command
type PredictOutput struct {
	Prediction float64          `json:"prediction" yaml:"prediction"`
	Features   *features.Vector `json:"features,omitempty" yaml:"features,omitempty"`
	Normalized *features.Vector `json:"normalized,omitempty" yaml:"normalized,omitempty"`
	Score      *float64         `json:"score,omitempty" yaml:"score,omitempty"`
}

func runPredict(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, source string) error {
	in, err := readInput(source, stdin)
	if err != nil {
		return err
	}

	predictor, err := loadModel(ctx, stderr, modelConfig())
	if err != nil {
		return err
	}

	pl := pipeline.New(predictor)
	defer pl.Close()

	res, err := pl.Predict(ctx, in)
	if err != nil {
		return err
	}

	showDetails := viper.GetBool("verbose")
	out := PredictOutput{Prediction: res.Prediction}
	if showDetails {
		out.Features = &res.Features
		out.Normalized = &res.Normalized
		out.Score = &res.Score
	}

	writeOutput(stdout, viper.GetString("output"), out, func(w io.Writer) {
		printPrediction(w, res, showDetails)
	})
	return nil
}

// readInput reads a prediction payload from a file, or from stdin when
// source is "-". Files ending in .yaml or .yml are decoded as YAML, anything
// else as JSON unless it does not look like a JSON object.
func readInput(source string, stdin io.Reader) (features.RawInput, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var in features.RawInput
	switch ext := strings.ToLower(filepath.Ext(source)); {
	case ext == ".yaml" || ext == ".yml":
		err = yaml.Unmarshal(data, &in)
	case ext == ".json" || bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.UseNumber()
		err = decoder.Decode(&in)
	default:
		err = yaml.Unmarshal(data, &in)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid input %s: %w", inputName(source), err)
	}
	if in == nil {
		return nil, errors.New("invalid input " + inputName(source) + ": expected an object")
	}
	return in, nil
}

func inputName(source string) string {
	if source == "-" {
		return "from stdin"
	}
	return strconv.Quote(source)
}

// printPrediction prints a prediction for humans
func printPrediction(w io.Writer, res *pipeline.Result, details bool) {
	fmt.Fprintf(w, "%s Predicted emissions: %s\n", style.SuccessIcon(), style.Emission(res.Prediction))
	if !details {
		return
	}

	fmt.Fprintln(w)
	rows := make([][]string, 0, features.Width)
	for i, field := range features.RequiredFields {
		rows = append(rows, []string{
			field,
			strconv.FormatFloat(res.Features[i], 'g', -1, 64),
			strconv.FormatFloat(res.Normalized[i], 'f', 6, 64),
		})
	}
	printTable(w, []string{"FEATURE", "VALUE", "NORMALIZED"}, rows)
	fmt.Fprintln(w)
	fmt.Fprintln(w, style.KeyValue("Model score", strconv.FormatFloat(res.Score, 'f', 6, 64)))
}
