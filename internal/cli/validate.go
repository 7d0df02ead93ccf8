package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lacquerai/co2/internal/features"
	"github.com/lacquerai/co2/internal/inference"
	"github.com/lacquerai/co2/internal/style"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate prediction inputs or model artifacts",
	Long: `Validate prediction input files without loading a model, or model artifacts with --artifact.

For inputs this command checks:
- JSON or YAML syntax validity
- Presence of every required field
- Categorical values against the accepted lists
- Numeric values are finite numbers

For artifacts it checks the feature schema version, the feature count and the
structure of linear coefficients or decision trees.`,
	Example: `
  co2 validate person.json                  # Validate single input
  co2 validate --recursive ./inputs         # Validate a directory recursively
  co2 validate --artifact model.json        # Validate a model artifact
  co2 validate --output json person.yaml    # JSON output for CI/CD`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles(cmd.OutOrStdout(), args)
	},
}

var (
	recursive bool
	showAll   bool
	artifacts bool
)

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "recursively validate files in directories")
	validateCmd.Flags().BoolVar(&showAll, "show-all", false, "show all validation results, including successful ones")
	validateCmd.Flags().BoolVar(&artifacts, "artifact", false, "validate model artifacts instead of prediction inputs")
}

// ValidationResult represents the result of validating one file
type ValidationResult struct {
	File     string        `json:"file" yaml:"file"`
	Valid    bool          `json:"valid" yaml:"valid"`
	Duration time.Duration `json:"duration_ms" yaml:"duration_ms"`
	Errors   []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// ValidationSummary represents the summary of all validation results
type ValidationSummary struct {
	Total    int                `json:"total" yaml:"total"`
	Valid    int                `json:"valid" yaml:"valid"`
	Invalid  int                `json:"invalid" yaml:"invalid"`
	Duration time.Duration      `json:"total_duration_ms" yaml:"total_duration_ms"`
	Results  []ValidationResult `json:"results" yaml:"results"`
}

func validateFiles(w io.Writer, args []string) error {
	start := time.Now()

	files, err := collectFiles(args, recursive)
	if err != nil {
		return fmt.Errorf("failed to collect files: %w", err)
	}

	if len(files) == 0 {
		style.Warning(w, "No files found to validate")
		return nil
	}

	outputFormat := viper.GetString("output")
	showProgress := !viper.GetBool("quiet") && outputFormat == outputText

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		var result ValidationResult
		if artifacts {
			result = validateArtifactFile(file)
		} else {
			result = validateInputFile(file)
		}
		results = append(results, result)

		if !showProgress {
			continue
		}
		if !result.Valid {
			style.Error(w, fmt.Sprintf("%s (%v)", file, result.Duration))
			for _, errMsg := range result.Errors {
				fmt.Fprintf(w, "  %s\n", errMsg)
			}
		} else if showAll {
			style.Success(w, fmt.Sprintf("%s (%v)", file, result.Duration))
		}
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "  %s %s\n", style.WarningIcon(), warning)
		}
	}

	summary := ValidationSummary{
		Total:    len(results),
		Duration: time.Since(start),
		Results:  results,
	}
	for _, result := range results {
		if result.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
	}

	writeOutput(w, outputFormat, summary, func(w io.Writer) {
		printValidationSummary(w, summary)
	})

	if summary.Invalid > 0 {
		return fmt.Errorf("%d of %d file(s) failed validation", summary.Invalid, summary.Total)
	}
	return nil
}

// validateInputFile checks that a file holds a complete, well formed
// prediction input. Unknown keys are reported as warnings.
func validateInputFile(filename string) ValidationResult {
	start := time.Now()
	result := ValidationResult{File: filename, Valid: true}

	in, err := readInput(filename, nil)
	if err == nil {
		if err = in.CheckRequired(); err == nil {
			_, err = features.Vectorize(in)
		}
		result.Warnings = unknownFields(in)
	}
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())

		var categoryErr *features.UnknownCategoryError
		if errors.As(err, &categoryErr) {
			result.Errors = append(result.Errors, fmt.Sprintf("accepted values for %s: %s",
				categoryErr.Field, strings.Join(features.Categories(categoryErr.Field), ", ")))
		}
	}
	result.Duration = time.Since(start)

	log.Debug().
		Str("file", filename).
		Bool("valid", result.Valid).
		Dur("duration", result.Duration).
		Msg("Validated input file")

	return result
}

// validateArtifactFile checks that a model artifact loads and matches the
// served feature schema.
func validateArtifactFile(filename string) ValidationResult {
	start := time.Now()
	result := ValidationResult{File: filename, Valid: true}

	if _, err := inference.LoadArtifact(filename); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
	}
	result.Duration = time.Since(start)

	log.Debug().
		Str("file", filename).
		Bool("valid", result.Valid).
		Dur("duration", result.Duration).
		Msg("Validated model artifact")

	return result
}

// unknownFields lists the keys of in that are not model inputs
func unknownFields(in features.RawInput) []string {
	known := make(map[string]bool, features.Width)
	for _, field := range features.RequiredFields {
		known[field] = true
	}

	var warnings []string
	for key := range in {
		if !known[key] {
			warnings = append(warnings, fmt.Sprintf("field %s is not a model input and will be ignored", strconv.Quote(key)))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func collectFiles(args []string, recursive bool) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		switch {
		case info.IsDir() && recursive:
			err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && isDataFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("error walking directory %s: %w", arg, err)
			}
		case info.IsDir():
			return nil, fmt.Errorf("%s is a directory, use --recursive to validate directories", arg)
		case isDataFile(arg):
			files = append(files, arg)
		default:
			return nil, fmt.Errorf("%s is not a JSON or YAML file", arg)
		}
	}

	return files, nil
}

func isDataFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func printValidationSummary(w io.Writer, summary ValidationSummary) {
	if viper.GetBool("quiet") {
		return
	}

	fmt.Fprintln(w)
	if summary.Invalid == 0 {
		style.Success(w, fmt.Sprintf("All %d file(s) are valid (%v)", summary.Total, summary.Duration))
	} else {
		style.Error(w, fmt.Sprintf("%d of %d file(s) failed validation (%v)", summary.Invalid, summary.Total, summary.Duration))
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(w, "\nDetailed results:\n")
		rows := make([][]string, len(summary.Results))
		for i, result := range summary.Results {
			status := "valid"
			if !result.Valid {
				status = "invalid"
			}
			rows[i] = []string{result.File, status, result.Duration.String()}
		}
		printTable(w, []string{"FILE", "STATUS", "DURATION"}, rows)
	}
}
