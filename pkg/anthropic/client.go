// Package anthropic adapts the Anthropic Messages API to the single-turn,
// optionally multimodal requests the analyzer issues.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

// Client sends one message and returns the model's reply.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single user turn with an optional system prompt.
type MessageRequest struct {
	Model       string
	MaxTokens   int64
	System      string
	Temperature *float64
	Blocks      []Block
}

// Block is one piece of user content: text, or an image when Data is set.
type Block struct {
	Text      string
	Data      []byte
	MediaType string // image/jpeg, image/png, image/gif, image/webp
}

// TextBlock builds a text Block.
func TextBlock(s string) Block { return Block{Text: s} }

// ImageBlock builds an image Block.
func ImageBlock(data []byte, mediaType string) Block {
	return Block{Data: data, MediaType: mediaType}
}

// MessageResponse carries the reply text and accounting.
type MessageResponse struct {
	ID         string
	Model      string
	Text       string
	StopReason string
	Usage      TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// APIError is a failed Messages call with its HTTP status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string { return "anthropic: " + e.Body }

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// Option configures the client.
type Option func(*settings)

type settings struct {
	opts []option.RequestOption
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(s *settings) { s.opts = append(s.opts, option.WithBaseURL(url)) }
}

// WithMaxRetries sets the SDK's own retry count. The default is 0 because
// callers wrap the client in their own retry policy.
func WithMaxRetries(n int) Option {
	return func(s *settings) { s.opts = append(s.opts, option.WithMaxRetries(n)) }
}

type sdkClient struct {
	client sdk.Client
}

// NewClient creates a Client backed by anthropic-sdk-go.
func NewClient(apiKey string, opts ...Option) Client {
	s := &settings{opts: []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}}
	for _, o := range opts {
		o(s)
	}
	return &sdkClient{client: sdk.NewClient(s.opts...)}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: req.MaxTokens,
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(toSDKBlocks(req.Blocks)...)},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{Status: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return nil, eris.Wrap(err, "anthropic: create message")
	}
	return fromSDKMessage(msg), nil
}

func toSDKBlocks(blocks []Block) []sdk.ContentBlockParamUnion {
	out := make([]sdk.ContentBlockParamUnion, 0, len(blocks))
	for _, b := range blocks {
		if len(b.Data) > 0 {
			out = append(out, sdk.NewImageBlockBase64(b.MediaType, base64.StdEncoding.EncodeToString(b.Data)))
			continue
		}
		out = append(out, sdk.NewTextBlock(b.Text))
	}
	return out
}

func fromSDKMessage(msg *sdk.Message) *MessageResponse {
	var sb strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Text:       sb.String(),
		StopReason: string(msg.StopReason),
		Usage: TokenUsage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
