package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

func TestTemplateFor_EveryKindIsDeterministic(t *testing.T) {
	for _, kind := range analysis.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			tmpl, err := TemplateFor(kind)
			require.NoError(t, err)

			first := tmpl("Dairy aisle velocity: High.")
			second := tmpl("Dairy aisle velocity: High.")
			assert.NotEmpty(t, strings.TrimSpace(first))
			assert.Equal(t, first, second)
			assert.NotEmpty(t, strings.TrimSpace(tmpl("")))
		})
	}
}

func TestTemplateFor_UnknownKind(t *testing.T) {
	_, err := TemplateFor(analysis.Kind("crystal_ball"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, analysis.ErrConfiguration))

	assert.Panics(t, func() { MustTemplate("crystal_ball") })
}

func TestTemplateFor_ContextIsEmbedded(t *testing.T) {
	out, err := Render(analysis.KindOOSPrediction, "Bread velocity: Low.")
	require.NoError(t, err)
	assert.Contains(t, out, "HISTORICAL DATA: Bread velocity: Low.")

	out, err = Render(analysis.KindOOSPrediction, "  ")
	require.NoError(t, err)
	assert.Contains(t, out, defaultOOSHistory)

	out, err = Render(analysis.KindInventoryForecast, `{"product":"Whole Milk"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, `Data: {"product":"Whole Milk"}`))
}

func TestScoreBearingTemplatesAskForExplicitScore(t *testing.T) {
	for _, kind := range []analysis.Kind{
		analysis.KindShelfMonitoring,
		analysis.KindPlanogramCompliance,
		analysis.KindPricingAudit,
		analysis.KindInventoryTracking,
		analysis.KindCreativeAudit,
		analysis.KindPromoMonitoring,
	} {
		out, err := Render(kind, "")
		require.NoError(t, err)
		assert.Contains(t, out, `"SCORE: <0-100>"`, kind)
	}
}

func TestFramingOnlyForComparison(t *testing.T) {
	assert.Contains(t, Framing(analysis.KindPlanogramCompliance), "Image 1 is the Master Planogram")
	assert.Empty(t, Framing(analysis.KindShelfMonitoring))
}

func TestCreativePrompts(t *testing.T) {
	assert.Equal(t, "Product: Oat Milk. Target Audience: students.", CopyBrief("Oat Milk", "students", false))
	assert.Contains(t, CopyBrief("Oat Milk", "students", true), "shown in this image")
	assert.True(t, strings.HasPrefix(ImagePrompt("Oat Milk", "students", true), "Create a professional advertisement image"))
	assert.True(t, strings.HasPrefix(ImagePrompt("Oat Milk", "students", false), "Professional advertising photography of Oat Milk"))
}

func TestDeclaredSchemasAreUsable(t *testing.T) {
	require.NoError(t, ForecastSchema().Check())
	require.NoError(t, InsightsSchema().Check())
	assert.Nil(t, SchemaFor(analysis.KindShelfMonitoring))
	assert.Equal(t, "inventory_forecast", SchemaFor(analysis.KindInventoryForecast).Name)
}
