package analysis

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-monitor/pkg/anthropic"
	"github.com/sells-group/competitor-monitor/pkg/openrouter"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicChat serves chat-completions requests from the Anthropic
// Messages API. System turns become the system prompt, user turns are
// flattened into one message, and data-URI images become image blocks.
type AnthropicChat struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicChat wraps an anthropic client as a ChatClient.
func NewAnthropicChat(client anthropic.Client) *AnthropicChat {
	return &AnthropicChat{client: client, maxTokens: anthropicDefaultMaxTokens}
}

// WithMaxTokens sets the completion budget used when a request sets none.
func (c *AnthropicChat) WithMaxTokens(n int64) *AnthropicChat {
	if n > 0 {
		c.maxTokens = n
	}
	return c
}

// ChatCompletion implements ChatClient.
func (c *AnthropicChat) ChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error) {
	msg := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   c.maxTokens,
		Temperature: req.Temperature,
	}
	if req.MaxTokens != nil {
		msg.MaxTokens = int64(*req.MaxTokens)
	}

	var system []string
	for _, m := range req.Messages {
		switch content := m.Content.(type) {
		case string:
			if m.Role == "system" {
				system = append(system, content)
				continue
			}
			msg.Blocks = append(msg.Blocks, anthropic.TextBlock(content))
		case []openrouter.ContentPart:
			for _, p := range content {
				b, err := toAnthropicBlock(p)
				if err != nil {
					return nil, err
				}
				msg.Blocks = append(msg.Blocks, b)
			}
		default:
			return nil, eris.Errorf("analysis: unsupported message content %T", m.Content)
		}
	}
	msg.System = strings.Join(system, "\n\n")
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		msg.Blocks = append(msg.Blocks, anthropic.TextBlock("Reply with a single JSON object and nothing else."))
	}

	resp, err := c.client.CreateMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	return &openrouter.ChatCompletionResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Choices: []openrouter.Choice{{
			Message:      openrouter.ReplyMessage{Role: "assistant", Content: resp.Text},
			FinishReason: resp.StopReason,
		}},
		Usage: openrouter.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func toAnthropicBlock(p openrouter.ContentPart) (anthropic.Block, error) {
	if p.Type != "image_url" || p.ImageURL == nil {
		return anthropic.TextBlock(p.Text), nil
	}
	mime, data, err := decodeDataURI(p.ImageURL.URL)
	if err != nil {
		return anthropic.Block{}, err
	}
	return anthropic.ImageBlock(data, mime), nil
}

// decodeDataURI splits "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, eris.New("analysis: anthropic backend only accepts inline images")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, eris.New("analysis: malformed image data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, eris.Wrap(err, "analysis: decode image data URI")
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}
