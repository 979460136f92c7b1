// Package openai adapts go-openai to the analysis.Model port.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

const maxTokens = 2048

const (
	DefaultModel      = "gpt-4o"
	DefaultImageModel = openai.CreateImageModelDallE3
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	ImageModel string
}

type Client struct {
	*openai.Client
	Model      string
	ImageModel string
	log        *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "openai", "api key is not set")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		Client:     openai.NewClientWithConfig(oc),
		Model:      cfg.Model,
		ImageModel: cfg.ImageModel,
		log:        log.Named("openai"),
	}, nil
}

func (c *Client) Name() string { return "openai/" + c.Model }

func (c *Client) Generate(ctx context.Context, call analysis.Call) (analysis.Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.Model,
		Messages: messagesFor(call),
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if reasoningModel(c.Model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}
	if call.Schema != nil {
		def := toDefinition(call.Schema)
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   call.Schema.Name,
				Schema: &def,
				Strict: true,
			},
		}
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		return analysis.Reply{}, classify("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return analysis.Reply{}, analysis.Errorf(analysis.ErrModelRefusal, "chat completion", "no choices returned")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return analysis.Reply{}, analysis.Errorf(analysis.ErrModelRefusal, "chat completion", "%s", choice.Message.Refusal)
	}
	if choice.FinishReason == openai.FinishReasonContentFilter && strings.TrimSpace(choice.Message.Content) == "" {
		return analysis.Reply{}, analysis.Errorf(analysis.ErrModelRefusal, "chat completion", "content filtered")
	}

	c.log.Debug("chat completion",
		zap.String("kind", call.Kind.String()),
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return analysis.Reply{
		Text:  choice.Message.Content,
		Model: resp.Model,
		Usage: analysis.Usage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
	}, nil
}

// GenerateImage uses the images endpoint. It takes text only, so media
// parts of the call are ignored.
func (c *Client) GenerateImage(ctx context.Context, call analysis.Call) (analysis.MediaPayload, error) {
	var prompt []string
	for _, p := range call.Parts {
		if !p.IsMedia() && p.Text != "" {
			prompt = append(prompt, p.Text)
		}
	}
	resp, err := c.CreateImage(ctx, openai.ImageRequest{
		Prompt:         strings.Join(prompt, "\n"),
		Model:          c.ImageModel,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return analysis.MediaPayload{}, classify("create image", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return analysis.MediaPayload{}, analysis.Errorf(analysis.ErrModelRefusal, "create image", "no image returned")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return analysis.MediaPayload{}, analysis.Wrap(analysis.ErrModelRefusal, "create image", err)
	}
	return analysis.MediaPayload{Data: data, MIMEType: "image/png"}, nil
}

func reasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func messagesFor(call analysis.Call) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(call.History)+2)
	if call.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: call.System})
	}
	for _, t := range call.History {
		role := openai.ChatMessageRoleUser
		if t.Role == analysis.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: t.Text})
	}
	if len(call.Parts) == 0 {
		return msgs
	}

	hasMedia := false
	for _, p := range call.Parts {
		hasMedia = hasMedia || p.IsMedia()
	}
	if !hasMedia {
		texts := make([]string, len(call.Parts))
		for i, p := range call.Parts {
			texts[i] = p.Text
		}
		return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: strings.Join(texts, "\n\n")})
	}

	parts := make([]openai.ChatMessagePart, 0, len(call.Parts))
	for _, p := range call.Parts {
		if p.IsMedia() {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: p.Media.DataURL(), Detail: openai.ImageURLDetailAuto},
			})
			continue
		}
		parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
	}
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts})
}

// toDefinition builds a strict JSON schema: strict mode wants every
// property listed as required and no extra properties.
func toDefinition(s *analysis.Schema) jsonschema.Definition {
	def := jsonschema.Definition{
		Type:                 jsonschema.Object,
		Properties:           make(map[string]jsonschema.Definition, len(s.Fields)),
		AdditionalProperties: false,
	}
	for _, f := range s.Fields {
		fd := jsonschema.Definition{Type: dataType(f.Type)}
		if f.Type == analysis.TypeArray {
			fd.Items = &jsonschema.Definition{Type: dataType(f.Items)}
		}
		def.Properties[f.Name] = fd
		def.Required = append(def.Required, f.Name)
	}
	return def
}

func dataType(t analysis.FieldType) jsonschema.DataType {
	switch t {
	case analysis.TypeNumber:
		return jsonschema.Number
	case analysis.TypeInteger:
		return jsonschema.Integer
	case analysis.TypeBoolean:
		return jsonschema.Boolean
	case analysis.TypeArray:
		return jsonschema.Array
	}
	return jsonschema.String
}

func classify(op string, err error) error {
	if err == nil || analysis.ClassOf(err) != nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	msg := ""
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return analysis.Wrap(analysis.ErrNetwork, op, err)
	}

	switch {
	case status == http.StatusTooManyRequests:
		return analysis.Wrap(analysis.ErrRateLimit, op, err)
	case status >= 500, status == http.StatusRequestTimeout, status == 0:
		return analysis.Wrap(analysis.ErrNetwork, op, err)
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusNotFound:
		return analysis.Wrap(analysis.ErrConfiguration, op, err)
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "safety"):
		return analysis.Wrap(analysis.ErrModelRefusal, op, err)
	}
	return analysis.Wrap(analysis.ErrConfiguration, op, err)
}

var _ analysis.Model = (*Client)(nil)
