package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"medic/internal/builtin"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Describe the builtin probes a ruleset can reference",
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	registry := builtin.Default()
	for _, name := range registry.Names() {
		decl, _ := registry.Lookup(name)
		fmt.Fprintf(out, "builtin/%s  (reads %s)\n", decl.Name, decl.Capability)
		if decl.Doc != "" {
			fmt.Fprintf(out, "  %s\n", decl.Doc)
		}
		for _, field := range decl.Fields {
			req := "optional"
			if field.Required {
				req = "required"
			}
			fmt.Fprintf(out, "  - %s: %s (%s)\n", field.Name, field.Type, req)
		}
		fmt.Fprintln(out)
	}
	return nil
}
