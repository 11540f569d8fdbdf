package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// codecMethod is the unary RPC served by the inference sidecar. Request and
// reply are both google.protobuf.Struct so no generated stubs are needed.
const codecMethod = "/adaptive.CodecService/GenerateStructured"

// #region codec-struct
// Codec routes generation to a local inference service over gRPC.
type Codec struct {
	conn   *grpc.ClientConn
	cc     grpc.ClientConnInterface
	models TierModels
}

// #endregion codec-struct

// #region codec-constructor
// NewCodec connects to the inference gRPC server.
func NewCodec(addr string, models TierModels) (*Codec, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Codec{conn: conn, cc: conn, models: models}, nil
}

// NewCodecWithConn creates a Codec over an injected connection.
// Used for testing without a real gRPC server.
func NewCodecWithConn(cc grpc.ClientConnInterface, models TierModels) *Codec {
	return &Codec{cc: cc, models: models}
}

// Close shuts down the gRPC connection.
func (c *Codec) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion codec-constructor

// #region codec-generate
// Generate sends one structured-generation request to the sidecar.
func (c *Codec) Generate(ctx context.Context, req Request) (Response, error) {
	model := c.models.For(req.Tier)
	in, err := codecRequest(req, model)
	if err != nil {
		return Response{}, fmt.Errorf("codec request: %w", err)
	}

	start := time.Now()
	out := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, codecMethod, in, out); err != nil {
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("generate rpc: %w", ctx.Err())
		}
		if status.Code(err) == codes.InvalidArgument {
			return Response{}, fmt.Errorf("generate rpc: %w", err)
		}
		return Response{}, fmt.Errorf("%w: generate rpc: %v", ErrUnavailable, err)
	}

	fields := out.GetFields()
	resp := Response{
		Text:    fields["text"].GetStringValue(),
		Model:   model,
		Latency: time.Since(start),
		Usage: Usage{
			PromptTokens:     int(fields["prompt_tokens"].GetNumberValue()),
			CompletionTokens: int(fields["completion_tokens"].GetNumberValue()),
		},
	}
	if m := fields["model"].GetStringValue(); m != "" {
		resp.Model = m
	}
	return resp, nil
}

func codecRequest(req Request, model string) (*structpb.Struct, error) {
	msgs := make([]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, map[string]any{"role": string(m.Role), "content": m.Content})
	}
	fields := map[string]any{
		"model":            model,
		"tier":             string(req.Tier),
		"system_prompt":    req.SystemPrompt,
		"messages":         msgs,
		"temperature":      float64(req.Temperature),
		"reasoning_budget": float64(req.ReasoningBudget),
		"purpose":          req.Purpose,
	}
	if req.Schema != nil {
		// Round-trip through JSON so nested Go types become plain maps and lists.
		raw, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, err
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, err
		}
		fields["schema"] = schema
	}
	return structpb.NewStruct(fields)
}

// #endregion codec-generate
