package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appchat "github.com/bryanwahyu/retailsight/internal/application/chat"
	"github.com/bryanwahyu/retailsight/internal/application/controller"
	appcreative "github.com/bryanwahyu/retailsight/internal/application/creative"
	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
	"github.com/bryanwahyu/retailsight/internal/domain/creative"
	"github.com/bryanwahyu/retailsight/internal/domain/findings"
	"github.com/bryanwahyu/retailsight/internal/infra/media"
	"github.com/bryanwahyu/retailsight/internal/middleware"
)

const jsonBodyLimit = 64 << 10

// Forecaster runs the two structured kinds.
type Forecaster interface {
	Forecast(ctx context.Context, snap catalog.ProductSnapshot) (analysis.Forecast, error)
	Insights(ctx context.Context, sales []catalog.SalesData) (analysis.Insights, error)
}

// FrameSource fetches a stored camera frame by key.
type FrameSource interface {
	Fetch(ctx context.Context, key string) (analysis.MediaPayload, error)
}

// Deps wires the router. Objects, Metrics and Limiter are optional.
type Deps struct {
	Views      *controller.Registry
	Navigator  *controller.Navigator
	Chat       *appchat.Controller
	Creative   *appcreative.Service
	Forecaster Forecaster
	Catalog    catalog.Repository
	Encoder    *media.Encoder
	Objects    FrameSource

	Metrics        *middleware.Metrics
	Limiter        *middleware.RateLimiter
	Health         map[string]middleware.HealthChecker
	ModelName      string
	AllowedOrigins []string
	Log            *zap.Logger
}

type Router struct {
	Deps
	log *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Encoder == nil {
		d.Encoder = media.NewEncoder(0)
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}
	r := &Router{Deps: d, log: d.Log.Named("router")}
	mux := chi.NewRouter()

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(d.Log))
	mux.Use(d.Metrics.Middleware)

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.ModelName))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", d.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Get("/features", r.wrap(r.handleFeatures))

		rt.Get("/navigate", r.wrap(r.handleActive))
		rt.Post("/navigate/{kind}", r.wrap(r.handleNavigate))

		rt.Get("/views/{kind}", r.wrap(r.handleSnapshot))
		rt.Get("/views/{kind}/reports/{id}", r.wrap(r.handleReport))
		rt.Post("/views/{kind}/cancel", r.wrap(r.handleCancel))
		rt.Post("/views/{kind}/findings/{id}/{action}", r.wrap(r.handleFindingAction))

		rt.Get("/chat/sessions/{id}", r.wrap(r.handleGetSession))
		rt.Get("/inventory/products", r.wrap(r.handleProducts))
		rt.Get("/marketing/campaigns", r.wrap(r.handleCampaigns))

		// everything below spends model quota
		rt.Group(func(q chi.Router) {
			if d.Limiter != nil {
				q.Use(d.Limiter.Middleware)
			}
			q.Post("/views/{kind}/analyze", r.wrap(r.handleAnalyze))
			q.Post("/views/{kind}/retry", r.wrap(r.handleRetry))
			q.Post("/chat/sessions", r.wrap(r.handleNewSession))
			q.Post("/chat/sessions/{id}/messages", r.wrap(r.handleSendMessage))
			q.Post("/inventory/products/{id}/forecast", r.wrap(r.handleForecast))
			q.Get("/dashboard/insights", r.wrap(r.handleInsights))
			q.Post("/marketing/campaigns", r.wrap(r.handleCreateCampaign))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

var errNotFound = errors.New("not found")

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			_ = r.writeError(w, req, err, nil)
		}
	}
}

// writeError renders err with its mapped status. extra fields ride along in
// the body.
func (r *Router) writeError(w http.ResponseWriter, req *http.Request, err error, extra map[string]any) error {
	status, kind := statusOf(err)
	if status >= http.StatusInternalServerError {
		r.log.Warn("request failed", zap.String("path", req.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	body := map[string]any{"error": err.Error(), "kind": kind}
	for k, v := range extra {
		body[k] = v
	}
	return writeJSON(w, status, body)
}

// statusOf maps the error taxonomy onto HTTP.
func statusOf(err error) (int, string) {
	var nf *catalog.NotFoundError
	switch {
	case errors.Is(err, middleware.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.As(err, &nf), errors.Is(err, findings.ErrNotFound),
		errors.Is(err, controller.ErrReportNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, analysis.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, analysis.ErrCanceled):
		return http.StatusConflict, "canceled"
	case errors.Is(err, analysis.ErrIO):
		return http.StatusBadRequest, "io"
	case errors.Is(err, analysis.ErrConfiguration):
		return http.StatusBadRequest, "configuration"
	case errors.Is(err, analysis.ErrRateLimit):
		return http.StatusTooManyRequests, "rate_limit"
	case errors.Is(err, analysis.ErrNetwork):
		return http.StatusBadGateway, "network"
	case errors.Is(err, analysis.ErrModelRefusal):
		return http.StatusUnprocessableEntity, "model_refusal"
	case errors.Is(err, analysis.ErrSchemaViolation):
		return http.StatusBadGateway, "schema_violation"
	case errors.Is(err, analysis.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// GET /v1/features
func (r *Router) handleFeatures(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, analysis.Specs())
}

// GET /v1/navigate
func (r *Router) handleActive(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, map[string]any{"active": r.Navigator.Active()})
}

// POST /v1/navigate/{kind}
func (r *Router) handleNavigate(w http.ResponseWriter, req *http.Request) error {
	kind, err := analysis.ParseKind(chi.URLParam(req, "kind"))
	if err != nil {
		return err
	}
	if err := r.Navigator.Switch(kind); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"active": kind})
}

func (r *Router) view(req *http.Request) (*controller.View, error) {
	kind, err := analysis.ParseKind(chi.URLParam(req, "kind"))
	if err != nil {
		return nil, err
	}
	return r.Views.View(kind)
}

// GET /v1/views/{kind}
func (r *Router) handleSnapshot(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, v.Snapshot())
}

// GET /v1/views/{kind}/reports/{id}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID(id); err != nil {
		return err
	}
	report, err := v.Report(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, report)
}

// POST /v1/views/{kind}/analyze
// multipart: media (1-2 files) or reference + actual, or key (object store
// keys) when an object store is configured; optional context.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	enc, err := r.Encoder.For(v.Kind())
	if err != nil {
		return err
	}
	if err := req.ParseMultipartForm(2*enc.MaxBytes() + 1<<20); err != nil {
		return &middleware.ValidationError{Err: err}
	}
	defer req.MultipartForm.RemoveAll()

	payloads, err := r.collectMedia(req, enc)
	if err != nil {
		return err
	}
	extra := middleware.SanitizeString(req.FormValue("context"))

	snap, err := v.Submit(req.Context(), extra, payloads...)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

func (r *Router) collectMedia(req *http.Request, enc *media.Encoder) ([]analysis.MediaPayload, error) {
	form := req.MultipartForm
	var headers []*multipart.FileHeader
	if ref, act := form.File["reference"], form.File["actual"]; len(ref) > 0 || len(act) > 0 {
		if len(ref) != 1 || len(act) != 1 {
			return nil, &middleware.ValidationError{Fields: map[string]string{"reference": "required", "actual": "required"}}
		}
		headers = []*multipart.FileHeader{ref[0], act[0]}
	} else {
		headers = form.File["media"]
	}

	var out []analysis.MediaPayload
	for _, fh := range headers {
		p, err := enc.EncodeMultipart(req.Context(), fh)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	keys := form.Value["key"]
	if len(keys) > 0 && r.Objects == nil {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "fetch frame", "no object store is configured")
	}
	for _, key := range keys {
		if err := middleware.ValidateObjectKey(key); err != nil {
			return nil, err
		}
		p, err := r.Objects.Fetch(req.Context(), key)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, &middleware.ValidationError{Fields: map[string]string{"media": "required"}}
	}
	return out, nil
}

// POST /v1/views/{kind}/retry
func (r *Router) handleRetry(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	snap, err := v.Retry(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, snap)
}

// POST /v1/views/{kind}/cancel
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	canceled := v.Cancel()
	return writeJSON(w, http.StatusOK, map[string]any{"canceled": canceled, "view": v.Snapshot()})
}

// POST /v1/views/{kind}/findings/{id}/{action}
func (r *Router) handleFindingAction(w http.ResponseWriter, req *http.Request) error {
	v, err := r.view(req)
	if err != nil {
		return err
	}
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID(id); err != nil {
		return err
	}
	action, err := controller.ParseAction(chi.URLParam(req, "action"))
	if err != nil {
		return err
	}
	f, err := v.Act(id, action)
	if err != nil {
		return err
	}
	if action == controller.ActionDismiss {
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	return writeJSON(w, http.StatusOK, f)
}

// POST /v1/chat/sessions
func (r *Router) handleNewSession(w http.ResponseWriter, req *http.Request) error {
	s := r.Chat.NewSession()
	return writeJSON(w, http.StatusCreated, map[string]any{"id": s.ID, "messages": s.Messages()})
}

// GET /v1/chat/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	s, ok := r.Chat.Session(chi.URLParam(req, "id"))
	if !ok {
		return errNotFound
	}
	return writeJSON(w, http.StatusOK, map[string]any{"id": s.ID, "messages": s.Messages()})
}

type sendMessageBody struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// POST /v1/chat/sessions/{id}/messages
// A failed turn still carries the session, fallback reply included.
func (r *Router) handleSendMessage(w http.ResponseWriter, req *http.Request) error {
	s, ok := r.Chat.Session(chi.URLParam(req, "id"))
	if !ok {
		return errNotFound
	}
	var body sendMessageBody
	if err := middleware.DecodeJSON(req, &body, jsonBodyLimit); err != nil {
		return err
	}
	session := map[string]any{"id": s.ID}
	if _, err := r.Chat.SendTurn(req.Context(), s, middleware.SanitizeString(body.Text)); err != nil {
		session["messages"] = s.Messages()
		return r.writeError(w, req, err, session)
	}
	session["messages"] = s.Messages()
	return writeJSON(w, http.StatusOK, session)
}

type productView struct {
	catalog.Product
	Status catalog.StockStatus `json:"status"`
}

// GET /v1/inventory/products
func (r *Router) handleProducts(w http.ResponseWriter, req *http.Request) error {
	products, err := r.Catalog.Products(req.Context())
	if err != nil {
		return err
	}
	out := make([]productView, len(products))
	for i, p := range products {
		out[i] = productView{Product: p, Status: p.Status()}
	}
	return writeJSON(w, http.StatusOK, out)
}

type forecastBody struct {
	SeasonalFactor     float64 `json:"seasonal_factor" validate:"omitempty,gt=0,lte=10"`
	UpcomingPromotions bool    `json:"upcoming_promotions"`
}

// POST /v1/inventory/products/{id}/forecast
// Body is optional.
func (r *Router) handleForecast(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateID(id); err != nil {
		return err
	}
	var body forecastBody
	if req.ContentLength != 0 {
		if err := middleware.DecodeJSON(req, &body, jsonBodyLimit); err != nil {
			return err
		}
	}
	p, err := r.Catalog.Product(req.Context(), catalog.ProductID(id))
	if err != nil {
		return err
	}
	snap := p.Snapshot(body.SeasonalFactor, body.UpcomingPromotions)
	f, err := r.Forecaster.Forecast(req.Context(), snap)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"product":  productView{Product: *p, Status: p.Status()},
		"input":    snap,
		"forecast": f,
		"urgent":   f.Urgent(),
	})
}

// GET /v1/dashboard/insights
func (r *Router) handleInsights(w http.ResponseWriter, req *http.Request) error {
	sales, err := r.Catalog.WeeklySales(req.Context())
	if err != nil {
		return err
	}
	ins, err := r.Forecaster.Insights(req.Context(), sales)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{"sales": sales, "insights": ins.Insights})
}

// POST /v1/marketing/campaigns
// multipart: product_name, audience, include_image (default true), image.
func (r *Router) handleCreateCampaign(w http.ResponseWriter, req *http.Request) error {
	if err := req.ParseMultipartForm(r.Encoder.MaxBytes() + 1<<20); err != nil {
		return &middleware.ValidationError{Err: err}
	}
	defer req.MultipartForm.RemoveAll()

	brief := creative.Brief{
		ProductName:  middleware.SanitizeString(req.FormValue("product_name")),
		Audience:     middleware.SanitizeString(req.FormValue("audience")),
		IncludeImage: true,
	}
	if v := req.FormValue("include_image"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &middleware.ValidationError{Fields: map[string]string{"include_image": "boolean"}, Err: err}
		}
		brief.IncludeImage = b
	}
	if err := middleware.ValidateStruct(brief); err != nil {
		return err
	}
	if files := req.MultipartForm.File["image"]; len(files) > 0 {
		enc, err := r.Encoder.For(analysis.KindCreativeGenerate)
		if err != nil {
			return err
		}
		p, err := enc.EncodeMultipart(req.Context(), files[0])
		if err != nil {
			return err
		}
		brief.ProductImage = &p
	}

	c, err := r.Creative.Generate(req.Context(), brief)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, c)
}

// GET /v1/marketing/campaigns
func (r *Router) handleCampaigns(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.Creative.History())
}
