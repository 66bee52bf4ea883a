package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/competitor-monitor/internal/analysis"
	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
	"github.com/sells-group/competitor-monitor/internal/store"
)

type fakeService struct {
	result   *pipeline.Result
	text     *model.TextAnalysis
	image    *model.ImageAnalysis
	err      error
	gotURL   string
	gotText  string
	gotName  string
	gotImage []byte
	gotMIME  string
}

func (f *fakeService) AnalyzeCompetitor(_ context.Context, url string) (*pipeline.Result, error) {
	f.gotURL = url
	return f.result, f.err
}

func (f *fakeService) AnalyzeText(_ context.Context, text string) (*model.TextAnalysis, error) {
	f.gotText = text
	return f.text, f.err
}

func (f *fakeService) AnalyzeImage(_ context.Context, name string, image []byte, mimeType string) (*model.ImageAnalysis, error) {
	f.gotName = name
	f.gotImage = image
	f.gotMIME = mimeType
	return f.image, f.err
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	rec := doJSON(t, newRouter(&fakeService{}, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_AnalyzeURL(t *testing.T) {
	a := model.NewTextAnalysis()
	a.Summary = "Clean landing page"
	a.DesignScore = 7
	svc := &fakeService{result: &pipeline.Result{
		Snapshot: &model.PageSnapshot{URL: "https://acme.example", Title: model.StringPtr("Acme")},
		Analysis: a,
		Outcome:  pipeline.OutcomeOK,
	}}

	rec := doJSON(t, newRouter(svc, nil), http.MethodPost, "/v1/analyze/url", `{"url":"https://acme.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://acme.example", svc.gotURL)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, pipeline.OutcomeOK, got.Outcome)
	assert.Equal(t, "Clean landing page", got.Analysis.Summary)
	assert.Equal(t, 7, got.Analysis.DesignScore)
}

func TestRouter_AnalyzeURL_RenderFailedIsOK(t *testing.T) {
	svc := &fakeService{result: &pipeline.Result{
		Snapshot: model.FailedSnapshot("https://slow.example", "rod", model.FailureTimeout, "render: navigate: context deadline exceeded"),
		Outcome:  pipeline.OutcomeRenderFailed,
		Error:    "render: navigate: context deadline exceeded",
	}}

	rec := doJSON(t, newRouter(svc, nil), http.MethodPost, "/v1/analyze/url", `{"url":"https://slow.example"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"outcome":"render_failed"`)
	assert.Contains(t, rec.Body.String(), `"failure":"timeout"`)
}

func TestRouter_AnalyzeURL_Errors(t *testing.T) {
	partial := &pipeline.Result{
		Snapshot: &model.PageSnapshot{URL: "https://acme.example"},
		Outcome:  pipeline.OutcomeAnalysisFailed,
	}

	tests := []struct {
		name     string
		err      error
		status   int
		wantHint bool
	}{
		{"credentials", eris.Wrap(analysis.ErrCredentialsInvalid, "analysis: analyze_screenshot"), http.StatusUnauthorized, true},
		{"remote down", eris.Wrap(analysis.ErrRemoteUnavailable, "analysis: analyze_parsed_content"), http.StatusBadGateway, false},
		{"deadline", eris.Wrap(context.DeadlineExceeded, "analysis: analyze_parsed_content"), http.StatusGatewayTimeout, false},
		{"other", eris.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{result: partial, err: tt.err}
			rec := doJSON(t, newRouter(svc, nil), http.MethodPost, "/v1/analyze/url", `{"url":"https://acme.example"}`)
			require.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
			require.NotNil(t, body.Result)
			assert.Equal(t, pipeline.OutcomeAnalysisFailed, body.Result.Outcome)
			if tt.wantHint {
				assert.Equal(t, credentialsHint, body.Hint)
			} else {
				assert.Empty(t, body.Hint)
			}
		})
	}
}

func TestRouter_AnalyzeURL_BadRequest(t *testing.T) {
	svc := &fakeService{}
	h := newRouter(svc, nil)

	rec := doJSON(t, h, http.MethodPost, "/v1/analyze/url", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url is required")

	rec = doJSON(t, h, http.MethodPost, "/v1/analyze/url", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.gotURL)
}

func TestRouter_AnalyzeText(t *testing.T) {
	a := model.NewTextAnalysis()
	a.Strengths = []string{"clear price"}
	svc := &fakeService{text: a}

	rec := doJSON(t, newRouter(svc, nil), http.MethodPost, "/v1/analyze/text", `{"text":"Best shoes in town"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Best shoes in town", svc.gotText)
	assert.Contains(t, rec.Body.String(), "clear price")
}

func TestRouter_AnalyzeText_Empty(t *testing.T) {
	svc := &fakeService{err: analysis.ErrEmptyInput}
	rec := doJSON(t, newRouter(svc, nil), http.MethodPost, "/v1/analyze/text", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_AnalyzeImage(t *testing.T) {
	img := model.NewImageAnalysis()
	img.Description = "Red banner with a discount"
	svc := &fakeService{image: img}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "dir/banner.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/image", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "banner.png", svc.gotName)
	assert.Equal(t, []byte("\x89PNG fake"), svc.gotImage)
	assert.Equal(t, "application/octet-stream", svc.gotMIME)
	assert.Contains(t, rec.Body.String(), "Red banner with a discount")
}

func TestRouter_AnalyzeImage_MissingField(t *testing.T) {
	rec := doJSON(t, newRouter(&fakeService{}, nil), http.MethodPost, "/v1/analyze/image", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "image")
}

func TestRouter_History(t *testing.T) {
	ring := store.NewRing(5)
	ctx := context.Background()
	require.NoError(t, ring.Append(ctx, model.HistoryEntry{Kind: model.HistoryKindText, Source: "first"}))
	require.NoError(t, ring.Append(ctx, model.HistoryEntry{Kind: model.HistoryKindURL, Source: "https://acme.example"}))

	rec := doJSON(t, newRouter(&fakeService{}, ring), http.MethodGet, "/v1/history?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []model.HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "https://acme.example", entries[0].Source)
}

func TestRouter_History_Empty(t *testing.T) {
	rec := doJSON(t, newRouter(&fakeService{}, nil), http.MethodGet, "/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doJSON(t, newRouter(&fakeService{}, store.NewRing(3)), http.MethodGet, "/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRouter_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/analyze/url", nil)
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	newRouter(&fakeService{}, nil).ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(eris.Wrap(analysis.ErrEmptyInput, "x")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(eris.New("x")))
}
