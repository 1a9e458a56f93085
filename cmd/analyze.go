package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/market-intel/internal/analysis"
	"github.com/sells-group/market-intel/internal/api"
	"github.com/sells-group/market-intel/internal/model"
)

// Output formats accepted by --output.
const (
	outputJSON    = "json"
	outputYAML    = "yaml"
	outputGeoJSON = "geojson"
)

var (
	analyzeLat          string
	analyzeLon          string
	analyzeBusinessType string
	analyzeRadiusKm     string
	analyzeOutput       string
	analyzeShowStderr   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one market analysis and print the result",
	Long: "Runs the analysis engine once for the given location and prints its report. " +
		"Omitted parameters take the same defaults as the HTTP endpoint. On failure the " +
		"error envelope is written to stderr and the command exits non-zero.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts := analyzeOptions{
			Params:     rawParamsFromFlags(cmd),
			Output:     analyzeOutput,
			ShowStderr: analyzeShowStderr,
		}
		return runAnalyze(ctx, newOrchestrator(cfg), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

type analyzeOptions struct {
	Params     analysis.RawParams
	Output     string
	ShowStderr bool
}

// rawParamsFromFlags reports only the flags the user actually set, so
// defaulting follows the same rules as absent query parameters.
func rawParamsFromFlags(cmd *cobra.Command) analysis.RawParams {
	var raw analysis.RawParams
	flags := cmd.Flags()
	if flags.Changed("lat") {
		raw.Lat = &analyzeLat
	}
	if flags.Changed("lon") {
		raw.Lon = &analyzeLon
	}
	if flags.Changed("business-type") {
		raw.BusinessType = &analyzeBusinessType
	}
	if flags.Changed("radius-km") {
		raw.RadiusKm = &analyzeRadiusKm
	}
	return raw
}

func runAnalyze(ctx context.Context, analyzer api.Analyzer, opts analyzeOptions, stdout, stderr io.Writer) error {
	switch opts.Output {
	case outputJSON, outputYAML, outputGeoJSON:
	default:
		return eris.Errorf("unknown output format %q (want json, yaml or geojson)", opts.Output)
	}

	req, err := analysis.ParseParams(opts.Params)
	if err != nil {
		return reportFailure(stderr, err)
	}

	report, err := analyzer.Analyze(ctx, req)
	if err != nil {
		return reportFailure(stderr, err)
	}

	if opts.ShowStderr && report.Stderr != "" {
		if _, err := io.WriteString(stderr, report.Stderr); err != nil {
			return eris.Wrap(err, "analyze: write engine stderr")
		}
	}

	out, err := renderReport(report, opts.Output)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return eris.Wrap(err, "analyze: write report")
	}
	return nil
}

func renderReport(report *analysis.Report, format string) ([]byte, error) {
	switch format {
	case outputYAML:
		var doc any
		if err := json.Unmarshal(report.Payload, &doc); err != nil {
			return nil, eris.Wrap(err, "analyze: decode payload")
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, eris.Wrap(err, "analyze: encode yaml")
		}
		return out, nil
	case outputGeoJSON:
		fc, err := model.CompetitorFeatures(report.Result)
		if err != nil {
			return nil, err
		}
		out, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			return nil, eris.Wrap(err, "analyze: encode geojson")
		}
		return append(out, '\n'), nil
	default:
		out := make([]byte, 0, len(report.Payload)+1)
		return append(append(out, report.Payload...), '\n'), nil
	}
}

// reportFailure writes the error envelope to w and returns an error that
// makes the command exit non-zero.
func reportFailure(w io.Writer, err error) error {
	aerr := analysis.AsError(err)
	body, encErr := json.MarshalIndent(aerr.Envelope(), "", "  ")
	if encErr != nil {
		return eris.Wrap(encErr, "analyze: encode error envelope")
	}
	if _, werr := fmt.Fprintf(w, "%s\n", body); werr != nil {
		return eris.Wrap(werr, "analyze: write error envelope")
	}
	return aerr
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeLat, "lat", "", fmt.Sprintf("latitude (default %v)", model.DefaultLatitude))
	f.StringVar(&analyzeLon, "lon", "", fmt.Sprintf("longitude (default %v)", model.DefaultLongitude))
	f.StringVar(&analyzeBusinessType, "business-type", "", fmt.Sprintf("business type (default %q)", model.DefaultBusinessType))
	f.StringVar(&analyzeRadiusKm, "radius-km", "", fmt.Sprintf("search radius in km (default %v)", model.DefaultRadiusKm))
	f.StringVarP(&analyzeOutput, "output", "o", outputJSON, "output format: json, yaml or geojson")
	f.BoolVar(&analyzeShowStderr, "show-stderr", false, "copy the engine's diagnostic output to stderr")
	rootCmd.AddCommand(analyzeCmd)
}
