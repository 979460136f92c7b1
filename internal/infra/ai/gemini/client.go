// Package gemini adapts the Google Gen AI SDK to the analysis.Model port.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

const (
	DefaultModel      = "gemini-3-flash-preview"
	DefaultImageModel = "gemini-2.5-flash-image"
)

// generator is the slice of *genai.Models the adapter needs.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey      string
	Model       string
	ImageModel  string
	Temperature float32
}

type Client struct {
	models     generator
	model      string
	imageModel string
	temp       *float32
	log        *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "gemini", "api key is not set")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, analysis.Wrap(analysis.ErrConfiguration, "gemini client", err)
	}
	return newClient(gc.Models, cfg, log), nil
}

func newClient(models generator, cfg Config, log *zap.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{models: models, model: cfg.Model, imageModel: cfg.ImageModel, log: log.Named("gemini")}
	if cfg.Temperature > 0 {
		c.temp = genai.Ptr(cfg.Temperature)
	}
	return c
}

func (c *Client) Name() string { return "gemini/" + c.model }

func (c *Client) Generate(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	contents := contentsFor(call)
	config := &genai.GenerateContentConfig{Temperature: c.temp}
	if call.System != "" {
		config.SystemInstruction = genai.NewContentFromText(call.System, genai.RoleUser)
	}
	if call.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toGenaiSchema(call.Schema)
	}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return analysis.Reply{}, classify("generate", err)
	}
	if reason := blocked(resp); reason != "" {
		return analysis.Reply{}, analysis.Errorf(analysis.ErrModelRefusal, "generate", "blocked: %s", reason)
	}

	reply := analysis.Reply{Text: resp.Text(), Model: c.model}
	if resp.ModelVersion != "" {
		reply.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		reply.Usage = analysis.Usage{
			PromptTokens:     int64(u.PromptTokenCount),
			CompletionTokens: int64(u.CandidatesTokenCount),
			TotalTokens:      int64(u.TotalTokenCount),
		}
	}
	c.log.Debug("generate",
		zap.String("kind", call.Kind.String()),
		zap.Int("parts", len(call.Parts)),
		zap.Int("history", len(call.History)),
		zap.Int64("total_tokens", reply.Usage.TotalTokens))
	return reply, nil
}

// GenerateImage returns the first inline image of the image model answer.
func (c *Client) GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	resp, err := c.models.GenerateContent(ctx, c.imageModel, contentsFor(call), nil)
	if err != nil {
		return analysis.MediaPayload{}, classify("generate image", err)
	}
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, p := range cand.Content.Parts {
				if p != nil && p.InlineData != nil && len(p.InlineData.Data) > 0 {
					mime := p.InlineData.MIMEType
					if mime == "" {
						mime = "image/png"
					}
					return analysis.MediaPayload{Data: p.InlineData.Data, MIMEType: mime}, nil
				}
			}
		}
	}
	return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrModelRefusal, "generate image", "%s returned no image part", c.imageModel)
}

// contentsFor replays the history and appends the current user turn.
func contentsFor(call analysis.Call) []*genai.Content {
	contents := make([]*genai.Content, 0, len(call.History)+1)
	for _, t := range call.History {
		role := genai.RoleUser
		if t.Role == analysis.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(t.Text)},
		})
	}
	if len(call.Parts) == 0 {
		return contents
	}
	parts := make([]*genai.Part, 0, len(call.Parts))
	for _, p := range call.Parts {
		if p.IsMedia() {
			parts = append(parts, genai.NewPartFromBytes(p.Media.Data, p.Media.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}
	return append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
}

func toGenaiSchema(s *analysis.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Fields)),
	}
	for _, f := range s.Fields {
		fs := &genai.Schema{Type: genaiType(f.Type)}
		if f.Type == analysis.TypeArray {
			fs.Items = &genai.Schema{Type: genaiType(f.Items)}
		}
		out.Properties[f.Name] = fs
		if f.Required {
			out.Required = append(out.Required, f.Name)
		}
	}
	return out
}

func genaiType(t analysis.FieldType) genai.Type {
	switch t {
	case analysis.TypeNumber:
		return genai.TypeNumber
	case analysis.TypeInteger:
		return genai.TypeInteger
	case analysis.TypeBoolean:
		return genai.TypeBoolean
	case analysis.TypeArray:
		return genai.TypeArray
	}
	return genai.TypeString
}

func blocked(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return "empty response"
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return string(pf.BlockReason)
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		switch fr := string(resp.Candidates[0].FinishReason); fr {
		case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
			if strings.TrimSpace(resp.Text()) == "" {
				return fr
			}
		}
	}
	return ""
}

// classify maps SDK failures into the domain taxonomy. Context endings are
// left untouched for the caller to classify.
func classify(op string, err error) error {
	if err == nil || analysis.ClassOf(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	apiErr, ok := asAPIError(err)
	if !ok {
		if rateLimited(err.Error()) {
			return &analysis.Error{Class: analysis.ErrRateLimit, Op: op, Err: err}
		}
		return analysis.Wrap(analysis.ErrNetwork, op, err)
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return &analysis.Error{Class: analysis.ErrRateLimit, Op: op, Err: err, RetryAfter: retryDelay(apiErr)}
	case apiErr.Code >= 500, apiErr.Code == http.StatusRequestTimeout:
		return analysis.Wrap(analysis.ErrNetwork, op, err)
	case apiErr.Code == http.StatusUnauthorized, apiErr.Code == http.StatusForbidden:
		return analysis.Wrap(analysis.ErrConfiguration, op, err)
	case apiErr.Code == http.StatusBadRequest && refusal(apiErr.Message):
		return analysis.Wrap(analysis.ErrModelRefusal, op, err)
	case apiErr.Code == http.StatusBadRequest, apiErr.Code == http.StatusNotFound:
		return analysis.Wrap(analysis.ErrConfiguration, op, err)
	}
	return analysis.Wrap(analysis.ErrNetwork, op, err)
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func rateLimited(msg string) bool {
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(msg), "quota")
}

func refusal(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "safety") || strings.Contains(msg, "blocked")
}

// retryDelay reads google.rpc.RetryInfo out of the error details.
func retryDelay(e genai.APIError) time.Duration {
	for _, d := range e.Details {
		t, _ := d["@type"].(string)
		if !strings.HasSuffix(t, "google.rpc.RetryInfo") {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if dur, err := time.ParseDuration(raw); err == nil {
			return dur
		}
	}
	return 0
}

var _ analysis.Model = (*Client)(nil)

func (c *Client) String() string {
	return fmt.Sprintf("gemini(model=%s, image=%s)", c.model, c.imageModel)
}
