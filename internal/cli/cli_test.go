package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/application"
	appchat "github.com/bryanwahyu/retailsight/internal/application/chat"
	"github.com/bryanwahyu/retailsight/internal/application/controller"
	appcreative "github.com/bryanwahyu/retailsight/internal/application/creative"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
	"github.com/bryanwahyu/retailsight/internal/infra/db/memory"
	"github.com/bryanwahyu/retailsight/internal/infra/media"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func init() { color.NoColor = true }

type fakeModel struct {
	text      string
	reply     string
	replyErr  error
	imageErr  error
	requests  []analysis.Request
	forecasts []catalog.ProductSnapshot
}

func (f *fakeModel) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	f.requests = append(f.requests, req)
	return analysis.Response{Kind: req.Kind, Text: f.text, Model: "fake"}, nil
}

func (f *fakeModel) GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	if f.imageErr != nil {
		return analysis.MediaPayload{}, f.imageErr
	}
	return analysis.MediaPayload{Data: []byte("img"), MIMEType: "image/png"}, nil
}

func (f *fakeModel) Converse(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	if f.replyErr != nil {
		return analysis.Reply{}, f.replyErr
	}
	return analysis.Reply{Text: f.reply}, nil
}

func (f *fakeModel) Forecast(ctx context.Context, snap catalog.ProductSnapshot) (analysis.Forecast, error) {
	f.forecasts = append(f.forecasts, snap)
	return analysis.Forecast{Analysis: "Milk sells out by Thursday.", PredictedDemand: 290, ReorderRecommendation: true, SuggestedOrderQuantity: 275}, nil
}

func (f *fakeModel) Insights(ctx context.Context, sales []catalog.SalesData) (analysis.Insights, error) {
	return analysis.Insights{Insights: []string{"Wednesday revenue peaks", "Weekend traffic is steady", "Tuesday needs a promotion"}}, nil
}

func builderFor(m *fakeModel) Builder {
	return func(ctx context.Context, configPath string) (*Services, error) {
		log := zap.NewNop()
		clock := application.FixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
		return &Services{
			Model:      "fake",
			Views:      controller.NewRegistry(m, log, controller.Options{Clock: clock}),
			Chat:       appchat.NewController(m, clock, log),
			Creative:   appcreative.NewService(m, clock, log, 5),
			Forecaster: m,
			Catalog:    memory.NewCatalogRepo(),
			Encoder:    media.NewEncoder(1 << 20),
		}, nil
	}
}

func run(t *testing.T, m *fakeModel, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd(Options{Version: "1.2.3", Build: builderFor(m)})
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writePNG(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, pngHeader, 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, &fakeModel{}, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "retailctl version 1.2.3\n", out)
}

func TestFeatures_JSON(t *testing.T) {
	out, err := run(t, &fakeModel{}, "", "features", "-o", "json")
	require.NoError(t, err)
	var specs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	assert.Len(t, specs, len(analysis.Kinds()))
}

func TestFeatures_Human(t *testing.T) {
	out, err := run(t, &fakeModel{}, "", "features")
	require.NoError(t, err)
	assert.Contains(t, out, "planogram_compliance")
	assert.Contains(t, out, "media 2")
}

func TestAnalyze_Human(t *testing.T) {
	m := &fakeModel{text: "There is an EMPTY SHELF on the middle row and a planogram mismatch at the top.\nSCORE: 72"}
	out, err := run(t, m, "", "analyze", "shelf-monitoring", writePNG(t, "aisle.png"), "--context", "aisle 4")
	require.NoError(t, err)

	assert.Contains(t, out, "Score: 72/100 (explicit)")
	assert.Contains(t, out, "EMPTY SHELF")
	assert.Contains(t, out, "Findings (2 active)")
	require.Len(t, m.requests, 1)
	assert.Equal(t, "aisle 4", m.requests[0].Context)
	assert.Equal(t, "image/png", m.requests[0].Media[0].MIMEType)
}

func TestAnalyze_Errors(t *testing.T) {
	_, err := run(t, &fakeModel{}, "", "analyze", "fortune-telling", writePNG(t, "a.png"))
	assert.ErrorIs(t, err, analysis.ErrConfiguration)

	_, err = run(t, &fakeModel{}, "", "analyze", "shelf-monitoring", filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, analysis.ErrIO)

	// planogram compliance needs the pair
	_, err = run(t, &fakeModel{}, "", "analyze", "planogram-compliance", writePNG(t, "ref.png"))
	assert.ErrorIs(t, err, analysis.ErrConfiguration)

	_, err = run(t, &fakeModel{}, "", "features", "-o", "xml")
	assert.NoError(t, err, "features does not need services")

	_, err = run(t, &fakeModel{}, "", "insights", "-o", "xml")
	assert.ErrorContains(t, err, `unknown output format "xml"`)
}

func TestChat(t *testing.T) {
	m := &fakeModel{reply: "Milk is in aisle 3."}
	out, err := run(t, m, "\nwhere is the milk?\nquit\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome to Supermarket AI Support")
	assert.Contains(t, out, "assistant: Milk is in aisle 3.")
}

func TestChat_FallbackKeepsSession(t *testing.T) {
	m := &fakeModel{replyErr: analysis.Errorf(analysis.ErrNetwork, "converse", "offline")}
	out, err := run(t, m, "hello\n", "chat")
	require.NoError(t, err)
	assert.Contains(t, out, appchat.FallbackReply)
}

func TestForecast(t *testing.T) {
	m := &fakeModel{}
	out, err := run(t, m, "", "forecast", "2", "--promotions", "--seasonal-factor", "1.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Whole Milk (Low Stock)")
	assert.Contains(t, out, "URGENT: reorder 275 units")
	require.Len(t, m.forecasts, 1)
	assert.True(t, m.forecasts[0].UpcomingPromotions)
	assert.Equal(t, 1.5, m.forecasts[0].SeasonalFactor)

	_, err = run(t, m, "", "forecast", "99")
	var nf *catalog.NotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestInsights_YAML(t *testing.T) {
	out, err := run(t, &fakeModel{}, "", "insights", "-o", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "- Wednesday revenue peaks")
	assert.Contains(t, out, "name: Mon")
}

func TestCreative(t *testing.T) {
	m := &fakeModel{text: "Fresh from the farm."}
	dst := filepath.Join(t.TempDir(), "ad.png")
	out, err := run(t, m, "", "creative", "--product", "Avocados", "--audience", "students",
		"--image", writePNG(t, "avocado.png"), "--out", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Fresh from the farm.")
	assert.Contains(t, out, "image saved to "+dst)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))
}

func TestCreative_ImageFailureStillPrintsCopy(t *testing.T) {
	m := &fakeModel{text: "Crunchy and golden.", imageErr: analysis.Errorf(analysis.ErrModelRefusal, "image", "blocked")}
	out, err := run(t, m, "", "creative", "--product", "Sourdough Bread", "--audience", "families")
	require.NoError(t, err)
	assert.Contains(t, out, "Crunchy and golden.")
	assert.Contains(t, out, "image failed:")

	_, err = run(t, m, "", "creative", "--product", "Bread")
	assert.Error(t, err)
}
