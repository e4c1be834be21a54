package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apismith "github.com/Sutto/api-smith"
	"github.com/Sutto/api-smith/smash"
	"github.com/Sutto/api-smith/smash/openapi"
	"github.com/Sutto/api-smith/smash/schemafile"
)

var (
	cfgFile     string
	schemaFile  string
	openapiFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "apismith",
	Short: "Call JSON APIs and map responses through schemas",
	Long: `apismith issues requests against a JSON API and maps the unpacked
response through schemas declared in a YAML schema file or taken from the
component schemas of an OpenAPI document.

Client settings (base URL, headers, retries, cache) come from a TOML file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "TOML client config file")
	rootCmd.PersistentFlags().StringVar(&schemaFile, "schema", "", "YAML schema file")
	rootCmd.PersistentFlags().StringVar(&openapiFile, "openapi", "", "OpenAPI document to take schemas from")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}

// loadRegistry reads schemas from --schema or --openapi. Neither flag yields
// an empty registry.
func loadRegistry() (*smash.Registry, error) {
	switch {
	case schemaFile != "" && openapiFile != "":
		return nil, fmt.Errorf("--schema and --openapi are mutually exclusive")
	case schemaFile != "":
		return schemafile.Load(schemaFile)
	case openapiFile != "":
		return openapi.Load(openapiFile)
	default:
		return smash.NewRegistry(), nil
	}
}

// clientOptions turns --config and --verbose into client options.
func clientOptions() ([]apismith.Option, error) {
	var opts []apismith.Option
	if cfgFile != "" {
		cfg, err := apismith.LoadConfig(cfgFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, apismith.WithConfig(cfg))
	}
	if verbose {
		opts = append(opts, apismith.WithSimpleLogger())
	}
	return opts, nil
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}
