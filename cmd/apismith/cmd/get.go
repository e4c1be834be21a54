package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	apismith "github.com/Sutto/api-smith"
	"github.com/Sutto/api-smith/smash"
)

var (
	getBaseURL   string
	getType      string
	getContainer string
	getQuery     map[string]string
	getHeaders   map[string]string
	getTimeout   time.Duration
	getDump      bool
	getMetrics   bool
)

var getCmd = &cobra.Command{
	Use:   "get PATH",
	Short: "Fetch PATH and print the mapped response",
	Long: `Fetch PATH relative to the configured base URL, unpack the response
container and, with --type, build instances of that schema.

Examples:
  apismith get users --config api.toml --schema schemas.yaml --type User
  apismith get https://api.example.com/v1/pets/1 --openapi petstore.yaml --type Pet --dump`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVar(&getBaseURL, "base-url", "", "override the configured base URL")
	getCmd.Flags().StringVarP(&getType, "type", "t", "", "schema to map the response through")
	getCmd.Flags().StringVarP(&getContainer, "container", "c", "", "dotted container path, e.g. data.items.0")
	getCmd.Flags().StringToStringVarP(&getQuery, "query", "q", nil, "extra query parameters (k=v)")
	getCmd.Flags().StringToStringVarP(&getHeaders, "header", "H", nil, "extra headers (k=v)")
	getCmd.Flags().DurationVar(&getTimeout, "timeout", 30*time.Second, "overall deadline")
	getCmd.Flags().BoolVar(&getDump, "dump", false, "print a Go dump instead of JSON")
	getCmd.Flags().BoolVar(&getMetrics, "metrics", false, "print collected metrics after the call")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		printError("loading schemas", err)
		return err
	}

	var transform smash.Transformer
	if getType != "" {
		schema, ok := reg.Lookup(getType)
		if !ok {
			err := fmt.Errorf("unknown schema %q (known: %s)", getType, strings.Join(reg.Names(), ", "))
			printError("resolving --type", err)
			return err
		}
		transform = schema
	}

	opts, err := clientOptions()
	if err != nil {
		printError("loading config", err)
		return err
	}
	if getBaseURL != "" {
		opts = append(opts, apismith.WithBaseURL(getBaseURL))
	}

	var metrics *prometheus.Registry
	if getMetrics {
		metrics = prometheus.NewRegistry()
		opts = append(opts, apismith.WithMetricsRegistry(metrics))
	}

	client := apismith.New(opts...)
	if err := client.ValidationError(); err != nil {
		printError("invalid client configuration", err)
		return err
	}

	reqOpts := []apismith.RequestOption{
		apismith.WithExtraQuery(getQuery),
		apismith.WithExtraHeaders(getHeaders),
		apismith.WithTransform(transform),
	}
	if cmd.Flags().Changed("container") {
		reqOpts = append(reqOpts, apismith.WithContainer(apismith.ParseContainer(getContainer)...))
	}

	ctx, cancel := context.WithTimeout(context.Background(), getTimeout)
	defer cancel()

	value, err := client.Get(ctx, args[0], reqOpts...)
	if err != nil {
		printError("request failed", err)
		return err
	}

	out := cmd.OutOrStdout()
	if err := writeValue(out, value, getDump); err != nil {
		return err
	}
	if metrics != nil {
		return writeMetrics(out, metrics)
	}
	return nil
}

// writeValue prints value as indented JSON, or as a spew dump.
func writeValue(w io.Writer, value any, dump bool) error {
	if dump {
		switch v := value.(type) {
		case *smash.Instance:
			_, err := fmt.Fprintln(w, v.Dump())
			return err
		case []*smash.Instance:
			for _, inst := range v {
				if _, err := fmt.Fprintln(w, inst.Dump()); err != nil {
					return err
				}
			}
			return nil
		default:
			spew.Fdump(w, value)
			return nil
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// writeMetrics prints every gathered sample as "name{labels} value".
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "# metrics")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)

			var value float64
			switch {
			case m.GetCounter() != nil:
				value = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				value = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				value = float64(m.GetHistogram().GetSampleCount())
			}
			fmt.Fprintf(w, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), value)
		}
	}
	return nil
}
