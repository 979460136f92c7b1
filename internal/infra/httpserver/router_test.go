package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

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
	"github.com/bryanwahyu/retailsight/internal/middleware"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// fakeModel stands in for the analysis service on every surface.
type fakeModel struct {
	mu       sync.Mutex
	text     string
	err      error
	reply    string
	forecast analysis.Forecast
	snaps    []catalog.ProductSnapshot
	requests []analysis.Request
}

func (f *fakeModel) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return analysis.Response{}, f.err
	}
	return analysis.Response{Kind: req.Kind, Text: f.text, Model: "fake"}, nil
}

func (f *fakeModel) GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	return analysis.MediaPayload{Data: []byte{1, 2, 3}, MIMEType: "image/png"}, nil
}

func (f *fakeModel) Converse(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	if f.err != nil {
		return analysis.Reply{}, f.err
	}
	return analysis.Reply{Text: f.reply, Model: "fake"}, nil
}

func (f *fakeModel) Forecast(ctx context.Context, snap catalog.ProductSnapshot) (analysis.Forecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps = append(f.snaps, snap)
	return f.forecast, f.err
}

func (f *fakeModel) Insights(ctx context.Context, sales []catalog.SalesData) (analysis.Insights, error) {
	if f.err != nil {
		return analysis.Insights{}, f.err
	}
	return analysis.Insights{Insights: []string{"Wednesday revenue spikes", "Restock bakery", "Bundle produce"}}, nil
}

type fakeFrames map[string]analysis.MediaPayload

func (f fakeFrames) Fetch(ctx context.Context, key string) (analysis.MediaPayload, error) {
	p, ok := f[key]
	if !ok {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrIO, "fetch frame", "no such key %s", key)
	}
	return p, nil
}

func newTestServer(t *testing.T, m *fakeModel) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	clock := application.FixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	reg := controller.NewRegistry(m, log, controller.Options{Clock: clock})
	srv := httptest.NewServer(NewRouter(Deps{
		Views:      reg,
		Navigator:  controller.NewNavigator(reg, log),
		Chat:       appchat.NewController(m, clock, log),
		Creative:   appcreative.NewService(m, clock, log, 10),
		Forecaster: m,
		Catalog:    memory.NewCatalogRepo(),
		Encoder:    media.NewEncoder(1 << 20),
		Objects:    fakeFrames{"store-1/aisle4.png": {Data: pngHeader, MIMEType: "image/png", Name: "aisle4.png"}},
		ModelName:  "fake",
		Log:        log,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestRouter_Features(t *testing.T) {
	srv := newTestServer(t, &fakeModel{})
	resp, err := http.Get(srv.URL + "/v1/features")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var specs []map[string]any
	decode(t, resp, &specs)
	assert.Len(t, specs, len(analysis.Kinds()))
}

func TestRouter_AnalyzeUpload(t *testing.T) {
	m := &fakeModel{text: "There is an EMPTY SHELF on the middle row and a planogram mismatch at the top. Shelf health 72/100."}
	srv := newTestServer(t, m)

	body, ct := multipartBody(t, map[string][]byte{"media": pngHeader}, map[string]string{"context": "aisle 4"})
	resp, err := http.Post(srv.URL+"/v1/views/shelf-monitoring/analyze", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap controller.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, controller.StateDone, snap.State)
	require.NotNil(t, snap.Report)
	require.NotNil(t, snap.Report.Summary.Score)
	assert.Equal(t, 72, snap.Report.Summary.Score.Value)
	assert.Len(t, snap.Findings, 2)

	require.Len(t, m.requests, 1)
	assert.Equal(t, "aisle 4", m.requests[0].Context)

	// resolve the first finding
	url := fmt.Sprintf("%s/v1/views/shelf_monitoring/findings/%s/resolve", srv.URL, snap.Findings[0].ID)
	resp, err = http.Post(url, "", nil)
	require.NoError(t, err)
	var f map[string]any
	decode(t, resp, &f)
	assert.Equal(t, "resolved", f["status"])

	resp, err = http.Post(srv.URL+"/v1/views/shelf_monitoring/findings/nope/resolve", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ReportsOfEarlierFindings(t *testing.T) {
	m := &fakeModel{text: "empty shelf"}
	srv := newTestServer(t, m)

	analyze := func() controller.Snapshot {
		body, ct := multipartBody(t, map[string][]byte{"media": pngHeader}, nil)
		resp, err := http.Post(srv.URL+"/v1/views/shelf_monitoring/analyze", ct, body)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var snap controller.Snapshot
		decode(t, resp, &snap)
		return snap
	}
	analyze()
	m.text = "planogram mismatch"
	snap := analyze()
	require.Len(t, snap.Findings, 2)
	older := snap.Findings[1]
	require.NotEqual(t, snap.Report.ID, older.ReportID)

	resp, err := http.Get(srv.URL + "/v1/views/shelf_monitoring/reports/" + older.ReportID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report controller.Report
	decode(t, resp, &report)
	assert.Equal(t, "empty shelf", report.Text)

	resp, err = http.Get(srv.URL + "/v1/views/shelf_monitoring/reports/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_AnalyzeFromObjectStore(t *testing.T) {
	m := &fakeModel{text: "All clear."}
	srv := newTestServer(t, m)

	body, ct := multipartBody(t, nil, map[string]string{"key": "store-1/aisle4.png"})
	resp, err := http.Post(srv.URL+"/v1/views/shelf_monitoring/analyze", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, ct = multipartBody(t, nil, map[string]string{"key": "../etc/passwd"})
	resp, err = http.Post(srv.URL+"/v1/views/shelf_monitoring/analyze", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_PlanogramNeedsBothImages(t *testing.T) {
	srv := newTestServer(t, &fakeModel{text: "94% compliant"})

	body, ct := multipartBody(t, map[string][]byte{"reference": pngHeader}, nil)
	resp, err := http.Post(srv.URL+"/v1/views/planogram_compliance/analyze", ct, body)
	require.NoError(t, err)
	var e map[string]string
	decode(t, resp, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", e["kind"])

	body, ct = multipartBody(t, map[string][]byte{"reference": pngHeader, "actual": pngHeader}, nil)
	resp, err = http.Post(srv.URL+"/v1/views/planogram_compliance/analyze", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
		kind string
	}{
		{analysis.Wrap(analysis.ErrRateLimit, "generate", errors.New("quota")), http.StatusTooManyRequests, "rate_limit"},
		{analysis.Wrap(analysis.ErrNetwork, "generate", errors.New("dial")), http.StatusBadGateway, "network"},
		{analysis.Wrap(analysis.ErrModelRefusal, "generate", errors.New("blocked")), http.StatusUnprocessableEntity, "model_refusal"},
		{analysis.Wrap(analysis.ErrTimeout, "generate", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			srv := newTestServer(t, &fakeModel{err: tt.err})
			body, ct := multipartBody(t, map[string][]byte{"media": pngHeader}, nil)
			resp, err := http.Post(srv.URL+"/v1/views/theft_detection/analyze", ct, body)
			require.NoError(t, err)
			var e map[string]string
			decode(t, resp, &e)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, tt.kind, e["kind"])
		})
	}
}

func TestRouter_UnknownKind(t *testing.T) {
	srv := newTestServer(t, &fakeModel{})
	resp, err := http.Get(srv.URL + "/v1/views/fortune_telling")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// structured kinds have no view
	resp, err = http.Get(srv.URL + "/v1/views/inventory_forecast")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Navigate(t *testing.T) {
	srv := newTestServer(t, &fakeModel{})
	resp, err := http.Post(srv.URL+"/v1/navigate/theft-detection", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/navigate")
	require.NoError(t, err)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "theft_detection", body["active"])
}

func TestRouter_Chat(t *testing.T) {
	srv := newTestServer(t, &fakeModel{reply: "Aisle 7."})

	resp, err := http.Post(srv.URL+"/v1/chat/sessions", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID       string           `json:"id"`
		Messages []map[string]any `json:"messages"`
	}
	decode(t, resp, &created)
	require.Len(t, created.Messages, 1)

	resp, err = http.Post(srv.URL+"/v1/chat/sessions/"+created.ID+"/messages", "application/json",
		strings.NewReader(`{"text":"Where is the milk?"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after struct {
		Messages []map[string]any `json:"messages"`
	}
	decode(t, resp, &after)
	require.Len(t, after.Messages, 3)
	assert.Equal(t, "Aisle 7.", after.Messages[2]["text"])

	resp, err = http.Post(srv.URL+"/v1/chat/sessions/"+created.ID+"/messages", "application/json",
		strings.NewReader(`{"text":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/chat/sessions/unknown")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_ChatFailureReturnsSession(t *testing.T) {
	srv := newTestServer(t, &fakeModel{err: analysis.Errorf(analysis.ErrNetwork, "converse", "connection reset")})

	resp, err := http.Post(srv.URL+"/v1/chat/sessions", "", nil)
	require.NoError(t, err)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, resp, &created)

	resp, err = http.Post(srv.URL+"/v1/chat/sessions/"+created.ID+"/messages", "application/json",
		strings.NewReader(`{"text":"Do you sell oat milk?"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body struct {
		ID       string           `json:"id"`
		Kind     string           `json:"kind"`
		Messages []map[string]any `json:"messages"`
	}
	decode(t, resp, &body)
	assert.Equal(t, created.ID, body.ID)
	assert.Equal(t, "network", body.Kind)
	require.Len(t, body.Messages, 3)
	assert.Equal(t, appchat.FallbackReply, body.Messages[2]["text"])
	assert.Equal(t, true, body.Messages[2]["failed"])
}

func TestRouter_InventoryForecast(t *testing.T) {
	m := &fakeModel{forecast: analysis.Forecast{Analysis: "Stock runs out Friday", PredictedDemand: 260, ReorderRecommendation: true, SuggestedOrderQuantity: 250}}
	srv := newTestServer(t, m)

	resp, err := http.Get(srv.URL + "/v1/inventory/products")
	require.NoError(t, err)
	var products []map[string]any
	decode(t, resp, &products)
	require.Len(t, products, 5)
	assert.Equal(t, "Out of Stock", products[2]["status"])

	resp, err = http.Post(srv.URL+"/v1/inventory/products/2/forecast", "application/json",
		strings.NewReader(`{"seasonal_factor":1.5,"upcoming_promotions":true}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, true, out["urgent"])
	require.Len(t, m.snaps, 1)
	assert.Equal(t, 15, m.snaps[0].CurrentStock)
	assert.Equal(t, 1.5, m.snaps[0].SeasonalFactor)
	assert.True(t, m.snaps[0].UpcomingPromotions)

	resp, err = http.Post(srv.URL+"/v1/inventory/products/42/forecast", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/inventory/products/2/forecast", "application/json",
		strings.NewReader(`{"seasonal_factor":-1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_Insights(t *testing.T) {
	srv := newTestServer(t, &fakeModel{})
	resp, err := http.Get(srv.URL + "/v1/dashboard/insights")
	require.NoError(t, err)
	var out struct {
		Sales    []catalog.SalesData `json:"sales"`
		Insights []string            `json:"insights"`
	}
	decode(t, resp, &out)
	assert.Len(t, out.Sales, 7)
	assert.Len(t, out.Insights, 3)
}

func TestRouter_Campaigns(t *testing.T) {
	m := &fakeModel{text: "Fresh milk, fresh mornings."}
	srv := newTestServer(t, m)

	body, ct := multipartBody(t, nil, map[string]string{"product_name": "Whole Milk", "audience": "families"})
	resp, err := http.Post(srv.URL+"/v1/marketing/campaigns", ct, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c map[string]any
	decode(t, resp, &c)
	assert.Equal(t, "Fresh milk, fresh mornings.", c["generated_copy"])
	assert.Equal(t, "data:image/png;base64,AQID", c["generated_image_url"])

	body, ct = multipartBody(t, nil, map[string]string{"audience": "families"})
	resp, err = http.Post(srv.URL+"/v1/marketing/campaigns", ct, body)
	require.NoError(t, err)
	var e map[string]string
	decode(t, resp, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation", e["kind"])

	resp, err = http.Get(srv.URL + "/v1/marketing/campaigns")
	require.NoError(t, err)
	var history []map[string]any
	decode(t, resp, &history)
	assert.Len(t, history, 1)
}

func TestRouter_RateLimited(t *testing.T) {
	log := zap.NewNop()
	m := &fakeModel{}
	limiter := middleware.NewRateLimiter(1, 1)
	defer limiter.Close()
	srv := httptest.NewServer(NewRouter(Deps{
		Chat:    appchat.NewController(m, application.SystemClock{}, log),
		Limiter: limiter,
		Log:     log,
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat/sessions", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/chat/sessions", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestStatusOf_Fallback(t *testing.T) {
	status, kind := statusOf(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", kind)

	status, _ = statusOf(&catalog.NotFoundError{ID: "9"})
	assert.Equal(t, http.StatusNotFound, status)
}
