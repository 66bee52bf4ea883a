package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/competitor-monitor/internal/analysis"
	"github.com/sells-group/competitor-monitor/internal/model"
	"github.com/sells-group/competitor-monitor/internal/pipeline"
	"github.com/sells-group/competitor-monitor/internal/store"
)

const maxImageBytes = 20 << 20

var servePort int

// analysisService is what the HTTP API needs from the pipeline.
type analysisService interface {
	AnalyzeCompetitor(ctx context.Context, url string) (*pipeline.Result, error)
	AnalyzeText(ctx context.Context, text string) (*model.TextAnalysis, error)
	AnalyzeImage(ctx context.Context, name string, image []byte, mimeType string) (*model.ImageAnalysis, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		cfg.Server.Port = port

		env, err := initEnv(ctx, cfg, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env.Pipeline, env.History),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// newRouter builds the HTTP API. hist may be nil.
func newRouter(svc analysisService, hist store.History) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze/url", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				URL string `json:"url"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body", nil)
				return
			}
			if body.URL == "" {
				writeError(w, http.StatusBadRequest, "url is required", nil)
				return
			}

			res, err := svc.AnalyzeCompetitor(req.Context(), body.URL)
			if err != nil {
				writeError(w, statusFor(err), err.Error(), res)
				return
			}
			// A failed render is data: 200 with the snapshot error.
			writeJSON(w, http.StatusOK, res)
		})

		r.Post("/analyze/text", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body", nil)
				return
			}
			a, err := svc.AnalyzeText(req.Context(), body.Text)
			if err != nil {
				writeError(w, statusFor(err), err.Error(), nil)
				return
			}
			writeJSON(w, http.StatusOK, a)
		})

		r.Post("/analyze/image", func(w http.ResponseWriter, req *http.Request) {
			req.Body = http.MaxBytesReader(w, req.Body, maxImageBytes)
			file, header, err := req.FormFile("image")
			if err != nil {
				writeError(w, http.StatusBadRequest, "multipart field \"image\" is required", nil)
				return
			}
			defer file.Close() //nolint:errcheck

			data, err := io.ReadAll(file)
			if err != nil {
				writeError(w, http.StatusBadRequest, "read image: "+err.Error(), nil)
				return
			}
			a, err := svc.AnalyzeImage(req.Context(), filepath.Base(header.Filename), data, header.Header.Get("Content-Type"))
			if err != nil {
				writeError(w, statusFor(err), err.Error(), nil)
				return
			}
			writeJSON(w, http.StatusOK, a)
		})

		r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
			if hist == nil {
				writeJSON(w, http.StatusOK, []model.HistoryEntry{})
				return
			}
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			entries, err := hist.Recent(req.Context(), limit)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error(), nil)
				return
			}
			if entries == nil {
				entries = []model.HistoryEntry{}
			}
			writeJSON(w, http.StatusOK, entries)
		})
	})

	return r
}

// statusFor maps analysis errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrEmptyInput):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrCredentialsInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, analysis.ErrRemoteUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string           `json:"error"`
	Hint   string           `json:"hint,omitempty"`
	Result *pipeline.Result `json:"result,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, res *pipeline.Result) {
	body := errorBody{Error: msg, Result: res}
	if status == http.StatusUnauthorized {
		body.Hint = credentialsHint
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("serve: write response", zap.Error(err))
	}
}

// requestLogger logs one line per request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
