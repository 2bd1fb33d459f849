package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/relief-intake/internal/schemas"
)

// defaultResourcesSchema is resolved relative to the working directory and its parents.
const defaultResourcesSchema = "schemas/resources.schema.json"

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON artifact against a JSON Schema",
	Long:  "Validate a JSON file, such as the output of extract --out, against a JSON Schema. Defaults to the resources schema.",
	RunE:  runValidate,
}

var (
	validateSchema string
	validateJSON   string
)

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Path to JSON Schema file (defaults to "+defaultResourcesSchema+")")
	validateCmd.Flags().StringVar(&validateJSON, "json", "", "Path to JSON file to validate (required)")
	_ = validateCmd.MarkFlagRequired("json")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	schemaPath := validateSchema
	if schemaPath == "" {
		schemaPath = schemas.ResolveSchemaPath(defaultResourcesSchema)
		if schemaPath == "" {
			return fmt.Errorf("schema file not found: %s (use --schema)", defaultResourcesSchema)
		}
	}

	out := cmd.OutOrStdout()
	err := schemas.ValidateJSON(schemaPath, validateJSON)
	if err == nil {
		_, _ = fmt.Fprintln(out, "Validation passed")
		return nil
	}

	var ve *schemas.ValidationError
	if errors.As(err, &ve) {
		_, _ = fmt.Fprintln(out, "Validation failed")
		for i, fe := range ve.Errors {
			_, _ = fmt.Fprintf(out, "  %d. %s: %s\n", i+1, fe.Field, fe.Message)
		}
		return fmt.Errorf("%d validation error(s)", len(ve.Errors))
	}
	return err
}
