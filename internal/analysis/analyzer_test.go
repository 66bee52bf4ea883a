package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-monitor/internal/cost"
	"github.com/sells-group/competitor-monitor/internal/resilience"
	"github.com/sells-group/competitor-monitor/pkg/openrouter"
)

type mockChat struct {
	mock.Mock
}

func (m *mockChat) ChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (*openrouter.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openrouter.ChatCompletionResponse), args.Error(1)
}

func reply(content string) *openrouter.ChatCompletionResponse {
	return &openrouter.ChatCompletionResponse{
		Choices: []openrouter.Choice{{Message: openrouter.ReplyMessage{Role: "assistant", Content: content}}},
		Usage:   openrouter.Usage{PromptTokens: 10, CompletionTokens: 20},
	}
}

func testConfig() Config {
	return Config{
		TextModel:   "text-model",
		VisionModel: "vision-model",
		Temperature: 0.7,
		Retry:       resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Breaker:     resilience.BreakerConfig{FailureThreshold: 10, Cooldown: time.Minute},
	}
}

var jpeg = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func userParts(t *testing.T, req openrouter.ChatCompletionRequest) []openrouter.ContentPart {
	t.Helper()
	last := req.Messages[len(req.Messages)-1]
	require.Equal(t, "user", last.Role)
	parts, ok := last.Content.([]openrouter.ContentPart)
	require.True(t, ok, "user content is %T", last.Content)
	return parts
}

func TestAnalyzeText(t *testing.T) {
	chat := new(mockChat)
	var got openrouter.ChatCompletionRequest
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(openrouter.ChatCompletionRequest) }).
		Return(reply(`{"strengths":["forest"],"summary":"cozy","design_score":9}`), nil).Once()

	a := New(testConfig(), chat)
	res, err := a.AnalyzeText(context.Background(), "Domes by the lake with a sauna.")
	require.NoError(t, err)
	assert.Equal(t, []string{"forest"}, res.Strengths)
	assert.Equal(t, "cozy", res.Summary)
	assert.Equal(t, 9, res.DesignScore)

	assert.Equal(t, "text-model", got.Model)
	assert.Equal(t, openrouter.JSONObject, got.ResponseFormat)
	require.NotNil(t, got.Temperature)
	assert.InDelta(t, 0.7, *got.Temperature, 1e-9)
	assert.Nil(t, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Russian")
	assert.Contains(t, got.Messages[1].Content, "Domes by the lake")
	chat.AssertExpectations(t)
}

func TestAnalyze_CostTracked(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(reply(`{}`), nil)

	calc := cost.NewCalculator(cost.Rates{"text-model": {Input: 1e6, Output: 1e6}})
	a := New(testConfig(), chat, WithCost(calc))
	_, err := a.AnalyzeText(context.Background(), "copy")
	require.NoError(t, err)
	_, err = a.AnalyzeImage(context.Background(), jpeg, "image/jpeg")
	require.NoError(t, err)

	usd, calls := calc.Total()
	assert.Equal(t, 2, calls)
	assert.InDelta(t, 30.0, usd, 1e-9)
	assert.Equal(t, []string{"vision-model"}, calc.Unpriced())
}

func TestAnalyzeText_TruncatesLongInput(t *testing.T) {
	chat := new(mockChat)
	var got openrouter.ChatCompletionRequest
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(openrouter.ChatCompletionRequest) }).
		Return(reply(`{}`), nil)

	long := strings.Repeat("ш", MaxTextRunes+500)
	_, err := New(testConfig(), chat).AnalyzeText(context.Background(), long)
	require.NoError(t, err)

	user := got.Messages[1].Content.(string)
	assert.Equal(t, MaxTextRunes, strings.Count(user, "ш"))
}

func TestAnalyzeText_EmptyInputSkipsCall(t *testing.T) {
	chat := new(mockChat)
	_, err := New(testConfig(), chat).AnalyzeText(context.Background(), "  \n ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	chat.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestAnalyzeText_UnparseableReplyYieldsDefaults(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).Return(reply("Sorry, I can't help with that."), nil)

	res, err := New(testConfig(), chat).AnalyzeText(context.Background(), "some copy")
	require.NoError(t, err)
	assert.Equal(t, 5, res.DesignScore)
	assert.Empty(t, res.Summary)
	assert.NotNil(t, res.Strengths)
}

func TestAnalyzeImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	chat := new(mockChat)
	var got openrouter.ChatCompletionRequest
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(openrouter.ChatCompletionRequest) }).
		Return(reply("```json\n{\"description\":\"tents\",\"marketing_insights\":[\"a\",\"b\",\"c\"],\"design_score\":\"6\"}\n```"), nil)

	res, err := New(testConfig(), chat).AnalyzeImage(context.Background(), png, "")
	require.NoError(t, err)
	assert.Equal(t, "tents", res.Description)
	assert.Len(t, res.MarketingInsights, 3)
	assert.Equal(t, 6, res.DesignScore)

	assert.Equal(t, "vision-model", got.Model)
	require.NotNil(t, got.MaxTokens)
	assert.Equal(t, 2000, *got.MaxTokens)
	require.Len(t, got.Messages, 1)
	parts := userParts(t, got)
	require.Len(t, parts, 2)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), parts[1].ImageURL.URL)
}

func TestAnalyzeImage_EmptyImage(t *testing.T) {
	chat := new(mockChat)
	_, err := New(testConfig(), chat).AnalyzeImage(context.Background(), nil, "image/png")
	assert.ErrorIs(t, err, ErrEmptyInput)
	chat.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestAnalyzeScreenshot(t *testing.T) {
	chat := new(mockChat)
	var got openrouter.ChatCompletionRequest
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(openrouter.ChatCompletionRequest) }).
		Return(reply(`{"summary":"ok","weaknesses":["no prices"]}`), nil)

	paragraph := strings.Repeat("p", 400)
	res, err := New(testConfig(), chat).AnalyzeScreenshot(context.Background(), jpeg, "https://example.com", "Glamping X", "", paragraph)
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Summary)
	assert.Equal(t, []string{"no prices"}, res.Weaknesses)

	assert.Equal(t, "vision-model", got.Model)
	assert.Equal(t, 3000, *got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)

	parts := userParts(t, got)
	text := parts[0].Text
	assert.Contains(t, text, "URL: https://example.com")
	assert.Contains(t, text, "Title: Glamping X")
	assert.NotContains(t, text, "Heading (H1)")
	assert.Contains(t, text, "Page text: "+strings.Repeat("p", MaxContextParagraphRunes)+"")
	assert.NotContains(t, text, strings.Repeat("p", MaxContextParagraphRunes+1))
	assert.True(t, strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestAnalyzeParsedContent(t *testing.T) {
	chat := new(mockChat)
	var got openrouter.ChatCompletionRequest
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(openrouter.ChatCompletionRequest) }).
		Return(reply(`{"summary":"family retreat"}`), nil)

	res, err := New(testConfig(), chat).AnalyzeParsedContent(context.Background(),
		"https://example.com", "Glamping X", "Welcome", "A much longer descriptive paragraph.")
	require.NoError(t, err)
	assert.Equal(t, "family retreat", res.Summary)

	user := got.Messages[1].Content.(string)
	assert.Contains(t, user, "URL: https://example.com\n\nTitle: Glamping X\n\nHeading (H1): Welcome\n\nBody: A much longer descriptive paragraph.")
}

func TestAnalyzeParsedContent_NothingExtracted(t *testing.T) {
	chat := new(mockChat)
	res, err := New(testConfig(), chat).AnalyzeParsedContent(context.Background(), "https://example.com", "", " ", "")
	require.NoError(t, err)
	assert.Equal(t, EmptyContentSummary, res.Summary)
	assert.Equal(t, 5, res.DesignScore)
	chat.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestAnalyze_CredentialsRejectedNotRetried(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &openrouter.APIError{Status: http.StatusUnauthorized, Body: `{"error":{"message":"User not found."}}`}).Once()

	_, err := New(testConfig(), chat).AnalyzeScreenshot(context.Background(), jpeg, "https://example.com", "", "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialsInvalid)
	assert.NotErrorIs(t, err, ErrRemoteUnavailable)

	var rerr *RemoteError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, 401, rerr.StatusCode)
	assert.Equal(t, "analyze_screenshot", rerr.Op)
	chat.AssertNumberOfCalls(t, "ChatCompletion", 1)
}

func TestAnalyze_TransientRetriedThenSucceeds(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &openrouter.APIError{Status: http.StatusServiceUnavailable, Body: "busy"}).Twice()
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(reply(`{"summary":"ok"}`), nil).Once()

	res, err := New(testConfig(), chat).AnalyzeText(context.Background(), "copy")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Summary)
	chat.AssertNumberOfCalls(t, "ChatCompletion", 3)
}

func TestAnalyze_TransientExhaustedIsUnavailable(t *testing.T) {
	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &openrouter.APIError{Status: http.StatusBadGateway, Body: "gateway"})

	_, err := New(testConfig(), chat).AnalyzeText(context.Background(), "copy")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	chat.AssertNumberOfCalls(t, "ChatCompletion", 3)
}

func TestAnalyze_OpenBreakerFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.Retry.MaxAttempts = 1
	cb := resilience.NewCircuitBreaker(resilience.BreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})

	chat := new(mockChat)
	chat.On("ChatCompletion", mock.Anything, mock.Anything).
		Return(nil, &openrouter.APIError{Status: http.StatusTooManyRequests}).Once()

	a := New(cfg, chat, WithBreaker(cb))
	_, err := a.AnalyzeText(context.Background(), "copy")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)

	_, err = a.AnalyzeText(context.Background(), "copy")
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	chat.AssertNumberOfCalls(t, "ChatCompletion", 1)
}

func TestDataURI(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "data:image/webp;base64,AQI=", DataURI([]byte{1, 2}, "image/webp"))
	assert.Equal(t, "data:image/jpeg;base64,AQI=", DataURI([]byte{1, 2}, ""))
	assert.True(t, strings.HasPrefix(DataURI([]byte("GIF89a....."), "application/octet-stream"), "data:image/gif;base64,"))
}
