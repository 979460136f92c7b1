package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
)

func (r *root) newForecastCmd() *cobra.Command {
	var (
		seasonal   float64
		promotions bool
	)
	cmd := &cobra.Command{
		Use:   "forecast PRODUCT_ID",
		Short: "Predict next week's demand for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seasonal < 0 {
				return fmt.Errorf("--seasonal-factor must not be negative")
			}
			s, err := r.load(cmd)
			if err != nil {
				return err
			}
			p, err := s.Catalog.Product(cmd.Context(), catalog.ProductID(args[0]))
			if err != nil {
				return err
			}
			snap := p.Snapshot(seasonal, promotions)

			f, err := spin(cmd, "Forecasting "+p.Name+"...", func() (analysis.Forecast, error) {
				return s.Forecaster.Forecast(cmd.Context(), snap)
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if ok, err := emit(w, r.output, map[string]any{"input": snap, "forecast": f, "urgent": f.Urgent()}); ok {
				return err
			}

			fmt.Fprintln(w)
			headerColor.Fprintf(w, "%s (%s)\n", p.Name, p.Status())
			fmt.Fprintf(w, "Stock %d, avg daily sales %.0f, seasonal factor %.2f\n", snap.CurrentStock, snap.AvgDailySales, snap.SeasonalFactor)
			fmt.Fprintf(w, "Predicted demand next week: %.0f units\n", f.PredictedDemand)
			if f.Urgent() {
				errorColor.Fprintf(w, "URGENT: reorder %d units\n", f.SuggestedOrderQuantity)
			} else {
				successColor.Fprintln(w, "Stock is sufficient")
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, f.Analysis)
			return nil
		},
	}
	cmd.Flags().Float64Var(&seasonal, "seasonal-factor", 0, fmt.Sprintf("Seasonal multiplier (default %.1f)", catalog.DefaultSeasonalFactor))
	cmd.Flags().BoolVar(&promotions, "promotions", false, "A promotion is planned for next week")
	return cmd
}

func (r *root) newInsightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Summarize the weekly sales table into three insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.load(cmd)
			if err != nil {
				return err
			}
			sales, err := s.Catalog.WeeklySales(cmd.Context())
			if err != nil {
				return err
			}
			ins, err := spin(cmd, "Reading the week...", func() (analysis.Insights, error) {
				return s.Forecaster.Insights(cmd.Context(), sales)
			})
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if ok, err := emit(w, r.output, map[string]any{"sales": sales, "insights": ins.Insights}); ok {
				return err
			}
			fmt.Fprintln(w)
			headerColor.Fprintln(w, "Business insights")
			for i, line := range ins.Insights {
				fmt.Fprintf(w, "  %d. %s\n", i+1, line)
			}
			return nil
		},
	}
}
