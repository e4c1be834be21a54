package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sutto/api-smith/smash"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [NAME...]",
	Short: "List schemas and their properties",
	Long: `List the schemas loaded from --schema or --openapi. With names, only
those schemas are shown.`,
	RunE: runSchema,
}

var coercionsCmd = &cobra.Command{
	Use:   "coercions",
	Short: "List the registered coercion names",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range smash.CoercionNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	schemaCmd.AddCommand(coercionsCmd)
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		printError("loading schemas", err)
		return err
	}

	names := args
	if len(names) == 0 {
		names = reg.Names()
	}
	for _, name := range names {
		schema, ok := reg.Lookup(name)
		if !ok {
			return fmt.Errorf("unknown schema %q", name)
		}
		describeSchema(cmd.OutOrStdout(), schema)
	}
	return nil
}

func describeSchema(w io.Writer, s *smash.Schema) {
	header := s.Name()
	if p := s.Parent(); p != nil {
		header += " < " + p.Name()
	}
	if s.Strict() {
		header += " (strict)"
	}
	fmt.Fprintln(w, header)

	for _, prop := range s.Properties() {
		var flags []string
		if s.IsRequired(prop) {
			flags = append(flags, "required")
		}
		if s.HasTransformer(prop) {
			flags = append(flags, "transformed")
		}
		if aliases := s.Aliases(prop); len(aliases) > 0 {
			flags = append(flags, "from "+strings.Join(aliases, ","))
		}
		if len(flags) > 0 {
			fmt.Fprintf(w, "  %-20s %s\n", prop, strings.Join(flags, "; "))
		} else {
			fmt.Fprintf(w, "  %s\n", prop)
		}
	}
}
