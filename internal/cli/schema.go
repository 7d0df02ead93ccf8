package cli

import (
	"fmt"

	"github.com/lacquerai/co2/internal/features"
	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Output the JSON schema of prediction inputs",
	Long: `Output the JSON schema of a prediction request, listing every required field
and the accepted values of the categorical ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaBytes, err := features.NewSchema()
		if err != nil {
			return fmt.Errorf("error generating schema: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(schemaBytes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
