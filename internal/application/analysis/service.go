// Package analysis orchestrates one call to the hosted model: it renders the
// prompt, orders the parts, retries transient failures and validates
// structured answers.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/catalog"
	"github.com/bryanwahyu/retailsight/internal/infra/ai/prompt"
)

// DefaultTimeout bounds a single model call.
const DefaultTimeout = 45 * time.Second

// Observer is notified around every analysis. The metrics middleware
// implements it.
type Observer interface {
	AnalysisStarted(kind analysis.Kind)
	AnalysisFinished(kind analysis.Kind, err error, elapsed time.Duration)
}

// Options tune a Service. Zero values fall back to defaults.
type Options struct {
	Timeout  time.Duration
	Retry    RetryPolicy
	Observer Observer
	// Schemas overrides the declared response shape of structured kinds.
	Schemas map[analysis.Kind]*analysis.Schema
}

type Service struct {
	model       analysis.Model
	log         *zap.Logger
	timeout     time.Duration
	retryPolicy RetryPolicy
	observer    Observer
	schemas     map[analysis.Kind]*analysis.Schema
}

func NewService(model analysis.Model, log *zap.Logger, opts Options) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Service{
		model:       model,
		log:         log.Named("analysis"),
		timeout:     opts.Timeout,
		retryPolicy: opts.Retry.normalized(),
		observer:    opts.Observer,
		schemas:     opts.Schemas,
	}
}

// observe reports one model operation to the observer and returns its
// duration.
func (s *Service) observe(kind analysis.Kind, op func() error) (time.Duration, error) {
	start := time.Now()
	if s.observer != nil {
		s.observer.AnalysisStarted(kind)
	}
	err := op()
	elapsed := time.Since(start)
	if s.observer != nil {
		s.observer.AnalysisFinished(kind, err, elapsed)
	}
	return elapsed, err
}

// Analyze runs req against the model. Every failure is classified, see
// analysis.ClassOf.
func (s *Service) Analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	var resp analysis.Response
	elapsed, err := s.observe(req.Kind, func() error {
		var err error
		resp, err = s.analyze(ctx, req)
		return err
	})
	if err != nil {
		s.log.Warn("analysis failed",
			zap.String("kind", req.Kind.String()),
			zap.Int("media", len(req.Media)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return analysis.Response{}, err
	}
	s.log.Info("analysis done",
		zap.String("kind", req.Kind.String()),
		zap.String("model", resp.Model),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", elapsed))
	return resp, nil
}

func (s *Service) analyze(ctx context.Context, req analysis.Request) (analysis.Response, error) {
	// Re-validate: a zero Request never went through NewRequest.
	if _, err := analysis.NewRequest(req.Kind, req.Context, req.Media...); err != nil {
		return analysis.Response{}, err
	}
	call, err := s.buildCall(req)
	if err != nil {
		return analysis.Response{}, err
	}

	var reply analysis.Reply
	err = s.retry(ctx, req.Kind, func(ctx context.Context) error {
		var cerr error
		reply, cerr = s.generate(ctx, call)
		return cerr
	})
	if err != nil {
		return analysis.Response{}, err
	}

	resp := analysis.Response{Kind: req.Kind, Model: reply.Model, Usage: reply.Usage}
	if call.Schema == nil {
		resp.Text = reply.Text
		return resp, nil
	}
	obj, err := decodeStructured(call.Schema, reply.Text)
	if err != nil {
		return analysis.Response{}, err
	}
	resp.Structured = obj
	return resp, nil
}

// generate is one bounded attempt.
func (s *Service) generate(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.model.Generate(attemptCtx, call)
	if err != nil {
		if ctx.Err() != nil || attemptCtx.Err() != nil {
			return analysis.Reply{}, classifyContext(attemptCtx, err)
		}
		if analysis.ClassOf(err) == nil {
			return analysis.Reply{}, analysis.Wrap(analysis.ErrNetwork, "generate", err)
		}
		return analysis.Reply{}, err
	}
	if strings.TrimSpace(reply.Text) == "" {
		return analysis.Reply{}, analysis.Errorf(analysis.ErrModelRefusal, "generate", "%s returned an empty answer for %s", s.model.Name(), call.Kind)
	}
	return reply, nil
}

// GenerateImage asks the image model for one artifact under the same
// timeout and retry rules as Analyze.
func (s *Service) GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	var out analysis.MediaPayload
	_, err := s.observe(call.Kind, func() error {
		return s.retry(ctx, call.Kind, func(ctx context.Context) error {
			var ierr error
			out, ierr = s.generateImage(ctx, call)
			return ierr
		})
	})
	if err != nil {
		return analysis.MediaPayload{}, err
	}
	return out, nil
}

func (s *Service) generateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	img, err := s.model.GenerateImage(attemptCtx, call)
	switch {
	case err != nil && (ctx.Err() != nil || attemptCtx.Err() != nil):
		return analysis.MediaPayload{}, classifyContext(attemptCtx, err)
	case err != nil && analysis.ClassOf(err) == nil:
		return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrNetwork, "generate image", err)
	case err != nil:
		return analysis.MediaPayload{}, err
	case len(img.Data) == 0:
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrModelRefusal, "generate image", "%s returned no image", s.model.Name())
	}
	return img, nil
}

// Converse runs one chat completion with history under the same rules.
func (s *Service) Converse(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	var reply analysis.Reply
	_, err := s.observe(call.Kind, func() error {
		return s.retry(ctx, call.Kind, func(ctx context.Context) error {
			var cerr error
			reply, cerr = s.generate(ctx, call)
			return cerr
		})
	})
	return reply, err
}

// buildCall orders the parts. Single media kinds send the media first and
// the instruction last; the comparison kind frames the reference before the
// actual capture.
func (s *Service) buildCall(req analysis.Request) (analysis.Call, error) {
	instruction, err := prompt.Render(req.Kind, req.Context)
	if err != nil {
		return analysis.Call{}, err
	}
	call := analysis.Call{Kind: req.Kind}

	switch {
	case req.Kind.Comparison():
		call.Parts = []analysis.Part{
			analysis.TextPart(prompt.Framing(req.Kind)),
			analysis.MediaPart(req.Media[0]),
			analysis.MediaPart(req.Media[1]),
			analysis.TextPart(instruction),
		}
	default:
		call.Parts = make([]analysis.Part, 0, len(req.Media)+1)
		for _, m := range req.Media {
			call.Parts = append(call.Parts, analysis.MediaPart(m))
		}
		call.Parts = append(call.Parts, analysis.TextPart(instruction))
	}

	if req.Kind.Structured() {
		schema := s.schemaFor(req.Kind)
		if err := schema.Check(); err != nil {
			return analysis.Call{}, err
		}
		call.Schema = schema
	}
	return call, nil
}

func (s *Service) schemaFor(kind analysis.Kind) *analysis.Schema {
	if sc, ok := s.schemas[kind]; ok {
		return sc
	}
	return prompt.SchemaFor(kind)
}

// Forecast asks for next week's demand of one product.
func (s *Service) Forecast(ctx context.Context, snap catalog.ProductSnapshot) (analysis.Forecast, error) {
	var out analysis.Forecast
	err := s.structured(ctx, analysis.KindInventoryForecast, snap, &out)
	return out, err
}

// Insights asks for three recommendations over the weekly sales table.
func (s *Service) Insights(ctx context.Context, sales []catalog.SalesData) (analysis.Insights, error) {
	var out analysis.Insights
	err := s.structured(ctx, analysis.KindBusinessInsights, sales, &out)
	return out, err
}

func (s *Service) structured(ctx context.Context, kind analysis.Kind, input any, out any) error {
	data, err := json.Marshal(input)
	if err != nil {
		return analysis.Wrap(analysis.ErrConfiguration, "marshal "+kind.String()+" input", err)
	}
	req, err := analysis.NewRequest(kind, string(data))
	if err != nil {
		return err
	}
	resp, err := s.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// decodeStructured strips markdown fences, decodes the object and checks it
// against the declared shape.
func decodeStructured(schema *analysis.Schema, text string) (map[string]any, error) {
	body := stripFences(text)
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, analysis.Wrap(analysis.ErrSchemaViolation, "decode "+schema.Name, err)
	}
	if err := schema.Validate(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = strings.TrimPrefix(t, "```")
	}
	t = strings.TrimSpace(t)
	return strings.TrimSpace(strings.TrimSuffix(t, "```"))
}

// classifyContext maps a context ending to the matching class. Caller
// cancellation is distinct from the deadline expiring.
func classifyContext(ctx context.Context, cause error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return analysis.Wrap(analysis.ErrCanceled, "analyze", context.Canceled)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return analysis.Wrap(analysis.ErrTimeout, "analyze", cause)
	}
	return cause
}
