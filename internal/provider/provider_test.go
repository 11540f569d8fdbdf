package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var testModels = TierModels{Fast: "m-fast", Mid: "m-mid", Slow: "m-slow"}

var testSchema = map[string]any{
	"type":       "object",
	"properties": map[string]any{"tier": map[string]any{"type": "string", "enum": []any{"FAST", "MID"}}},
}

// #region tier-tests
func TestTierStronger(t *testing.T) {
	tests := []struct {
		in, want Tier
	}{
		{TierFast, TierMid},
		{TierMid, TierSlow},
		{TierSlow, TierSlow},
	}
	for _, tt := range tests {
		if got := tt.in.Stronger(); got != tt.want {
			t.Errorf("%s.Stronger() = %s, want %s", tt.in, got, tt.want)
		}
	}
	assert.False(t, Tier("TURBO").Valid())
	assert.Equal(t, "m-mid", testModels.For(Tier("TURBO")))
	assert.Equal(t, "m-slow", testModels.For(TierSlow))
}

func TestUsageAdd(t *testing.T) {
	got := Usage{PromptTokens: 1, CompletionTokens: 2}.Add(Usage{PromptTokens: 10, CompletionTokens: 20})
	assert.Equal(t, Usage{PromptTokens: 11, CompletionTokens: 22}, got)
}

// #endregion tier-tests

// #region openai-tests
func TestOpenAIGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
  "id": "c1", "object": "chat.completion", "model": "m-slow",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"tier\":\"MID\"}"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 12, "completion_tokens": 5, "total_tokens": 17}
}`)
	}))
	defer srv.Close()

	p, err := NewOpenAI(OpenAIOptions{APIKey: "k", Models: testModels, BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		SystemPrompt:    "classify",
		Messages:        []Message{{Role: RoleUser, Content: "hoi"}, {Role: RoleAssistant, Content: "hallo"}},
		Schema:          testSchema,
		Tier:            TierSlow,
		ReasoningBudget: 8192,
		Purpose:         "router",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"tier":"MID"}`, resp.Text)
	assert.Equal(t, "m-slow", resp.Model)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 5}, resp.Usage)

	assert.Equal(t, "m-slow", body["model"])
	assert.Equal(t, "high", body["reasoning_effort"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", msgs[2].(map[string]any)["role"])
	format := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema := format["json_schema"].(map[string]any)
	assert.Equal(t, "router", jsonSchema["name"])
	assert.NotEqual(t, true, jsonSchema["strict"], "optional schema fields rule out strict mode")
}

func TestOpenAIUnavailable(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		unavailable bool
	}{
		{"server error", http.StatusServiceUnavailable, true},
		{"auth", http.StatusUnauthorized, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.code)
				io.WriteString(w, `{"error": {"message": "nope", "type": "server_error"}}`)
			}))
			defer srv.Close()

			p, err := NewOpenAI(OpenAIOptions{APIKey: "k", Models: testModels, BaseURL: srv.URL + "/v1"})
			require.NoError(t, err)
			_, err = p.Generate(context.Background(), Request{Tier: TierFast})
			require.Error(t, err)
			assert.Equal(t, tt.unavailable, errors.Is(err, ErrUnavailable))
		})
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIOptions{})
	assert.Error(t, err)
}

func TestReasoningEffort(t *testing.T) {
	assert.Equal(t, "", reasoningEffort(0))
	assert.Equal(t, "low", reasoningEffort(1024))
	assert.Equal(t, "medium", reasoningEffort(4096))
	assert.Equal(t, "high", reasoningEffort(8192))
}

// #endregion openai-tests

// #region genai-tests
func TestGenAIGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "m-fast:generateContent"), r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
  "candidates": [{"content": {"role": "model", "parts": [{"text": "{\"tier\":\"FAST\"}"}]}}],
  "usageMetadata": {"promptTokenCount": 9, "candidatesTokenCount": 4}
}`)
	}))
	defer srv.Close()

	p, err := NewGenAI(context.Background(), GenAIOptions{APIKey: "k", Models: testModels, BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), Request{
		SystemPrompt: "classify",
		Messages:     []Message{{Role: RoleUser, Content: "hoi"}},
		Schema:       testSchema,
		Tier:         TierFast,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"tier":"FAST"}`, resp.Text)
	assert.Equal(t, Usage{PromptTokens: 9, CompletionTokens: 4}, resp.Usage)

	gen := body["generationConfig"].(map[string]any)
	assert.Equal(t, "application/json", gen["responseMimeType"])
	assert.NotNil(t, gen["responseJsonSchema"])
}

func TestGenAIUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`)
	}))
	defer srv.Close()

	p, err := NewGenAI(context.Background(), GenAIOptions{APIKey: "k", Models: testModels, BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), Request{Tier: TierMid})
	assert.ErrorIs(t, err, ErrUnavailable)
}

// #endregion genai-tests

// #region codec-tests
type fakeConn struct {
	method string
	req    *structpb.Struct
	reply  *structpb.Struct
	err    error
}

func (f *fakeConn) Invoke(_ context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	f.method = method
	f.req = args.(*structpb.Struct)
	if f.err != nil {
		return f.err
	}
	proto.Merge(reply.(*structpb.Struct), f.reply)
	return nil
}

func (f *fakeConn) NewStream(context.Context, *grpc.StreamDesc, string, ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, errors.New("streams not supported")
}

func TestCodecGenerate(t *testing.T) {
	reply, err := structpb.NewStruct(map[string]any{
		"text":              `{"conversational_response":"ok"}`,
		"prompt_tokens":     30,
		"completion_tokens": 8,
	})
	require.NoError(t, err)
	conn := &fakeConn{reply: reply}
	c := NewCodecWithConn(conn, testModels)

	resp, err := c.Generate(context.Background(), Request{
		SystemPrompt:    "sys",
		Messages:        []Message{{Role: RoleUser, Content: "vraag"}},
		Schema:          testSchema,
		Tier:            TierMid,
		ReasoningBudget: 1024,
	})
	require.NoError(t, err)
	assert.Equal(t, codecMethod, conn.method)
	assert.Equal(t, `{"conversational_response":"ok"}`, resp.Text)
	assert.Equal(t, "m-mid", resp.Model)
	assert.Equal(t, Usage{PromptTokens: 30, CompletionTokens: 8}, resp.Usage)

	fields := conn.req.GetFields()
	assert.Equal(t, "m-mid", fields["model"].GetStringValue())
	assert.Equal(t, 1024.0, fields["reasoning_budget"].GetNumberValue())
	assert.NotNil(t, fields["schema"].GetStructValue())
	assert.Len(t, fields["messages"].GetListValue().GetValues(), 1)
	assert.NoError(t, c.Close())
}

func TestCodecErrors(t *testing.T) {
	c := NewCodecWithConn(&fakeConn{err: status.Error(codes.Unavailable, "connection refused")}, testModels)
	_, err := c.Generate(context.Background(), Request{Tier: TierFast})
	assert.ErrorIs(t, err, ErrUnavailable)

	c = NewCodecWithConn(&fakeConn{err: status.Error(codes.InvalidArgument, "bad schema")}, testModels)
	_, err = c.Generate(context.Background(), Request{Tier: TierFast})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
}

func TestNewCodecLazyDial(t *testing.T) {
	c, err := NewCodec("localhost:0", testModels)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

// #endregion codec-tests

// #region pacing-tests
type countingProvider struct{ calls int }

func (c *countingProvider) Generate(context.Context, Request) (Response, error) {
	c.calls++
	return Response{Text: "ok"}, nil
}

func TestPacedDelegates(t *testing.T) {
	inner := &countingProvider{}
	p := NewPaced(inner, 0, 0)
	for i := 0; i < 3; i++ {
		_, err := p.Generate(context.Background(), Request{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestPacedHonorsContext(t *testing.T) {
	inner := &countingProvider{}
	p := NewPaced(inner, 0.001, 1)
	_, err := p.Generate(context.Background(), Request{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Generate(ctx, Request{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

// #endregion pacing-tests
