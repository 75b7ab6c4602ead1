package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:   "routes [template]",
	Short: "Print the route table a template produces",
	Long: `Resolve a template and print its route table in matching order.

Without an argument, uses the template the configuration points at.

Examples:
  samgate routes
  samgate routes template.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	templateArg := ""
	if len(args) == 1 {
		templateArg = args[0]
	}

	out, templatePath, err := resolveTemplate(templateArg)
	if err != nil {
		return err
	}

	routes := out.Table.Routes()
	if len(routes) == 0 {
		fmt.Printf("%s declares no API routes.\n", templatePath)
		return nil
	}

	fmt.Printf("Routes from %s (stage %s):\n\n", templatePath, out.Table.Stage())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tHANDLER\tSOURCE")
	fmt.Fprintln(w, "------\t----\t-------\t------")
	for _, r := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Pattern, r.HandlerRef, r.SourceAPIID)
	}
	w.Flush()

	return nil
}
