package prompt

import "github.com/bryanwahyu/retailsight/internal/domain/analysis"

// ForecastSchema is the declared shape of the inventory forecast answer.
func ForecastSchema() *analysis.Schema {
	return &analysis.Schema{
		Name: "inventory_forecast",
		Fields: []analysis.Field{
			{Name: "analysis", Type: analysis.TypeString, Required: true},
			{Name: "predictedDemand", Type: analysis.TypeNumber, Required: true},
			{Name: "reorderRecommendation", Type: analysis.TypeBoolean, Required: true},
			{Name: "suggestedOrderQuantity", Type: analysis.TypeInteger, Required: true},
		},
	}
}

// InsightsSchema is the declared shape of the business insights answer.
func InsightsSchema() *analysis.Schema {
	return &analysis.Schema{
		Name: "business_insights",
		Fields: []analysis.Field{
			{Name: "insights", Type: analysis.TypeArray, Items: analysis.TypeString, Required: true},
		},
	}
}

// SchemaFor returns the declared shape of a structured kind, nil otherwise.
func SchemaFor(kind analysis.Kind) *analysis.Schema {
	switch kind {
	case analysis.KindInventoryForecast:
		return ForecastSchema()
	case analysis.KindBusinessInsights:
		return InsightsSchema()
	}
	return nil
}
