package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/samgate/core/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [template]",
	Short: "Validate a template before serving it",
	Long: `Validate a SAM or CloudFormation template.

Checks:
  - YAML syntax is valid
  - The template matches the SAM template schema
  - Parameters, mappings and intrinsics resolve
  - The extracted routes compile into an unambiguous table

Without an argument, validates the template the configuration points at.

Examples:
  samgate validate
  samgate validate template.yaml
  samgate validate --config /etc/samgate/config.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var validateSkipSchema bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateSkipSchema, "skip-schema", false, "skip the template schema check")
}

func runValidate(cmd *cobra.Command, args []string) error {
	templateArg := ""
	if len(args) == 1 {
		templateArg = args[0]
	}

	raw, templatePath, err := readTemplate(templateArg)
	if err != nil {
		fmt.Printf("  %s Template file readable\n", crossMark)
		return err
	}
	fmt.Printf("Validating %s...\n\n", templatePath)
	fmt.Printf("  %s Template file readable\n", checkMark)

	if !validateSkipSchema {
		if err := schema.Validate(raw); err != nil {
			fmt.Printf("  %s Template matches schema\n", crossMark)
			return err
		}
		fmt.Printf("  %s Template matches schema\n", checkMark)
	}

	out, _, err := resolveTemplate(templateArg)
	if err != nil {
		fmt.Printf("  %s Template resolves to a route table\n", crossMark)
		return err
	}
	fmt.Printf("  %s Template resolves to a route table\n", checkMark)

	fmt.Println()
	fmt.Printf("  Stage:     %s\n", out.Table.Stage())
	fmt.Printf("  Routes:    %d\n", out.Table.Len())
	fmt.Printf("  Functions: %d\n", len(out.Functions))
	if types := out.Table.BinaryMediaTypes(); len(types) > 0 {
		fmt.Printf("  Binary media types: %d\n", len(types))
	}

	fmt.Println()
	fmt.Println("Template is valid.")
	return nil
}
