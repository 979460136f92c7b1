package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/retailsight/internal/application/controller"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

func (r *root) newFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "List the analysis features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := analysis.Specs()
			w := cmd.OutOrStdout()
			if ok, err := emit(w, r.output, specs); ok {
				return err
			}
			for _, s := range specs {
				media := "-"
				switch {
				case s.MaxMedia == 0:
				case s.MinMedia == s.MaxMedia:
					media = strconv.Itoa(s.MinMedia)
				default:
					media = fmt.Sprintf("%d-%d", s.MinMedia, s.MaxMedia)
				}
				headerColor.Fprintf(w, "%-22s", s.Kind)
				fmt.Fprintf(w, " %-26s media %-4s %s\n", s.Title, media, s.Output)
			}
			return nil
		},
	}
}

func (r *root) newAnalyzeCmd() *cobra.Command {
	var extra string
	cmd := &cobra.Command{
		Use:   "analyze KIND FILE [FILE]",
		Short: "Analyze one image or video, or a reference/actual pair",
		Long: `Encode the given files, send them to the model for the feature KIND and
print the report, the derived summary and any findings.

KIND accepts dashes or underscores (shelf-monitoring, theft_detection).
planogram-compliance takes the reference image first, then the actual shelf.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := analysis.ParseKind(args[0])
			if err != nil {
				return err
			}
			s, err := r.load(cmd)
			if err != nil {
				return err
			}
			view, err := s.Views.View(kind)
			if err != nil {
				return err
			}
			enc, err := s.Encoder.For(kind)
			if err != nil {
				return err
			}

			var payloads []analysis.MediaPayload
			for _, path := range args[1:] {
				p, err := enc.EncodeFile(cmd.Context(), path)
				if err != nil {
					return err
				}
				payloads = append(payloads, p)
			}
			if r.output == "human" {
				printSuccess(cmd.ErrOrStderr(), fmt.Sprintf("Encoded %d file(s)", len(payloads)))
			}

			snap, err := spin(cmd, "Analyzing with "+s.Model+"...", func() (controller.Snapshot, error) {
				return view.Submit(cmd.Context(), extra, payloads...)
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if ok, err := emit(w, r.output, snap); ok {
				return err
			}
			renderSnapshot(w, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&extra, "context", "", "Extra context for the prompt (historical data, notes)")
	return cmd
}
