// Package cli implements retailctl, a terminal front end to the same
// analysis services the HTTP server exposes.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	appchat "github.com/bryanwahyu/retailsight/internal/application/chat"
	"github.com/bryanwahyu/retailsight/internal/application/controller"
	appcreative "github.com/bryanwahyu/retailsight/internal/application/creative"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
	"github.com/bryanwahyu/retailsight/internal/infra/media"
)

// Forecaster runs the structured kinds.
type Forecaster interface {
	Forecast(ctx context.Context, snap catalog.ProductSnapshot) (analysis.Forecast, error)
	Insights(ctx context.Context, sales []catalog.SalesData) (analysis.Insights, error)
}

// Services is what the commands need. Close may be nil.
type Services struct {
	Model      string
	Views      *controller.Registry
	Chat       *appchat.Controller
	Creative   *appcreative.Service
	Forecaster Forecaster
	Catalog    catalog.Repository
	Encoder    *media.Encoder
	Close      func() error
}

// Builder turns the --config path into services.
type Builder func(ctx context.Context, configPath string) (*Services, error)

type Options struct {
	Version string
	Build   Builder
}

type root struct {
	opts       Options
	configPath string
	output     string
	services   *Services
}

// NewRootCmd builds the retailctl command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.Build == nil {
		opts.Build = DefaultBuilder
	}
	r := &root{opts: opts}

	cmd := &cobra.Command{
		Use:   "retailctl",
		Short: "Retail vision analysis from the terminal",
		Long: `retailctl sends shelf, CCTV and product images to the configured
multimodal model and prints the store manager report.

Examples:
  # Audit a shelf photo
  retailctl analyze shelf-monitoring aisle4.jpg

  # Compare a planogram with the actual shelf
  retailctl analyze planogram-compliance reference.png actual.jpg

  # Forecast demand for a product with a promotion coming up
  retailctl forecast 2 --promotions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if r.services != nil && r.services.Close != nil {
				return r.services.Close()
			}
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	defaultConfig := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	cmd.PersistentFlags().StringVarP(&r.configPath, "config", "c", defaultConfig, "Path to config file")
	cmd.PersistentFlags().StringVarP(&r.output, "output", "o", "human", "Output format (human, json, yaml)")

	cmd.AddCommand(
		r.newFeaturesCmd(),
		r.newAnalyzeCmd(),
		r.newChatCmd(),
		r.newForecastCmd(),
		r.newInsightsCmd(),
		r.newCreativeCmd(),
		newVersionCmd(opts.Version),
	)
	return cmd
}

// load builds the services once per invocation.
func (r *root) load(cmd *cobra.Command) (*Services, error) {
	if r.services != nil {
		return r.services, nil
	}
	switch r.output {
	case "human", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown output format %q", r.output)
	}
	s, err := r.opts.Build(cmd.Context(), r.configPath)
	if err != nil {
		return nil, err
	}
	r.services = s
	return s, nil
}

// spin shows progress on stderr while fn runs.
func spin[T any](cmd *cobra.Command, suffix string, fn func() (T, error)) (T, error) {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

func newVersionCmd(version string) *cobra.Command {
	if version == "" {
		version = "dev"
	}
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "retailctl version %s\n", version)
		},
	}
}
