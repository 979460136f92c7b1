package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

type fakeModels struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{genai.NewPartFromText(text)}},
		}},
	}
}

func TestGenerate_BuildsContents(t *testing.T) {
	fake := &fakeModels{resp: textResponse("Hello")}
	c := newClient(fake, Config{}, zap.NewNop())

	media := analysis.MediaPayload{Data: []byte{1, 2, 3}, MIMEType: "image/png"}
	reply, err := c.Generate(context.Background(), analysis.Call{
		Kind:   analysis.KindCustomerSupport,
		System: "be nice",
		History: []analysis.Turn{
			{Role: analysis.RoleAssistant, Text: "hi"},
			{Role: analysis.RoleUser, Text: "where is the milk?"},
		},
		Parts: []analysis.Part{analysis.MediaPart(media), analysis.TextPart("look")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", reply.Text)
	assert.Equal(t, DefaultModel, fake.model)

	require.Len(t, fake.contents, 3)
	assert.Equal(t, genai.RoleModel, fake.contents[0].Role)
	assert.Equal(t, genai.RoleUser, fake.contents[1].Role)
	last := fake.contents[2]
	require.Len(t, last.Parts, 2)
	require.NotNil(t, last.Parts[0].InlineData)
	assert.Equal(t, media.Data, last.Parts[0].InlineData.Data)
	assert.Equal(t, "look", last.Parts[1].Text)

	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "be nice", fake.config.SystemInstruction.Parts[0].Text)
	assert.Nil(t, fake.config.ResponseSchema)
}

func TestGenerate_SendsSchema(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"insights":[]}`)}
	c := newClient(fake, Config{Model: "m"}, nil)

	_, err := c.Generate(context.Background(), analysis.Call{
		Kind:  analysis.KindBusinessInsights,
		Parts: []analysis.Part{analysis.TextPart("data")},
		Schema: &analysis.Schema{Name: "s", Fields: []analysis.Field{
			{Name: "insights", Type: analysis.TypeArray, Items: analysis.TypeString, Required: true},
			{Name: "note", Type: analysis.TypeString},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", fake.config.ResponseMIMEType)
	s := fake.config.ResponseSchema
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"insights"}, s.Required)
	assert.Equal(t, genai.TypeArray, s.Properties["insights"].Type)
	assert.Equal(t, genai.TypeString, s.Properties["insights"].Items.Type)
}

func TestGenerate_BlockedPromptIsRefusal(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: "SAFETY"},
	}}
	_, err := newClient(fake, Config{}, nil).Generate(context.Background(), analysis.Call{Parts: []analysis.Part{analysis.TextPart("x")}})
	assert.ErrorIs(t, err, analysis.ErrModelRefusal)
}

func TestGenerateImage(t *testing.T) {
	fake := &fakeModels{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{
			genai.NewPartFromText("here you go"),
			genai.NewPartFromBytes([]byte{9, 9}, "image/png"),
		}}}},
	}}
	c := newClient(fake, Config{}, nil)

	img, err := c.GenerateImage(context.Background(), analysis.Call{Parts: []analysis.Part{analysis.TextPart("ad")}})
	require.NoError(t, err)
	assert.Equal(t, DefaultImageModel, fake.model)
	assert.Equal(t, []byte{9, 9}, img.Data)
	assert.Equal(t, "image/png", img.MIMEType)

	fake.resp = textResponse("no image today")
	_, err = c.GenerateImage(context.Background(), analysis.Call{})
	assert.ErrorIs(t, err, analysis.ErrModelRefusal)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit code", genai.APIError{Code: 429, Message: "quota"}, analysis.ErrRateLimit},
		{"rate limit status", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, analysis.ErrRateLimit},
		{"pointer form", &genai.APIError{Code: 503}, analysis.ErrNetwork},
		{"wrapped", fmt.Errorf("call: %w", genai.APIError{Code: 500}), analysis.ErrNetwork},
		{"auth", genai.APIError{Code: 403}, analysis.ErrConfiguration},
		{"safety", genai.APIError{Code: 400, Message: "Request blocked by safety filters"}, analysis.ErrModelRefusal},
		{"bad request", genai.APIError{Code: 400, Message: "invalid argument"}, analysis.ErrConfiguration},
		{"quota text", errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED"), analysis.ErrRateLimit},
		{"transport", errors.New("dial tcp: connection refused"), analysis.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}

	assert.NoError(t, classify("op", nil))
	assert.ErrorIs(t, classify("op", context.Canceled), context.Canceled)
	assert.Nil(t, analysis.ClassOf(classify("op", context.DeadlineExceeded)))
}

func TestClassify_ReadsRetryInfo(t *testing.T) {
	err := classify("op", genai.APIError{Code: 429, Details: []map[string]any{
		{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
	}})
	assert.Equal(t, 17*time.Second, analysis.RetryAfter(err))
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, analysis.ErrConfiguration)
}
