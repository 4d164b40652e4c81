// Package httpapi exposes the solver over HTTP: POST /task plus status,
// variant listing, health, metrics and a websocket event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fcsrv/internal/solver"
	"fcsrv/internal/variant"
	"fcsrv/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Solve(ctx context.Context, task types.Task) ([]int, error)
	Status() types.StatusResponse
	Variants() []types.VariantInfo
	Ready() bool
}

// NewMux builds the HTTP router serving svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	// The websocket route stays outside the compressor.
	if es, ok := svc.(EventSource); ok {
		r.Get("/events", eventsHandler(es))
	}

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints
		r.Use(middleware.Compress(5))
		r.Post("/task", taskHandler(svc))
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, svc.Status())
		})
		r.Get("/variants", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, types.VariantsResponse{Variants: svc.Variants()})
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// taskHandler godoc
//
//	@Summary	Solve a challenge task
//	@Tags		task
//	@Accept		json
//	@Produce	json
//	@Param		task	body		types.Task	true	"Task"
//	@Success	200		{object}	types.TaskResult
//	@Failure	400		{object}	types.TaskResult
//	@Failure	401		{object}	types.TaskResult
//	@Failure	500		{object}	types.TaskResult
//	@Failure	502		{object}	types.TaskResult
//	@Failure	503		{object}	types.TaskResult
//	@Router		/task [post]
func taskHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// Content-Type check
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			IncrementRejection("content_type")
			writeTaskResult(w, http.StatusUnsupportedMediaType, types.TaskResult{Error: "Content-Type must be application/json"})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var task types.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			// Oversized bodies also land here; the size is not reported back.
			IncrementRejection("body")
			writeTaskResult(w, http.StatusBadRequest, types.TaskResult{Error: "invalid JSON body"})
			return
		}

		reqEvent(r, LevelDebug, 0).Str("variant", task.VariantName()).Int("images", len(task.Images)).Msg("task start")

		ctx, cancel := taskContext(r.Context())
		defer cancel()
		answers, err := svc.Solve(ctx, task)
		if err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := statusFor(err)
			if status >= 400 && status < 500 {
				IncrementRejection(rejectionReason(err))
			}
			reqEvent(r, LevelInfo, status).Int("status", status).Str("variant", task.VariantName()).
				Dur("dur", time.Since(start)).Err(err).Msg("task end")
			writeTaskResult(w, status, types.Failed(err))
			return
		}
		reqEvent(r, LevelInfo, 0).Int("status", http.StatusOK).Str("variant", task.VariantName()).
			Dur("dur", time.Since(start)).Msg("task end")
		writeTaskResult(w, http.StatusOK, types.Solved(answers))
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, solver.ErrInvalidAPIKey):
		return "api_key"
	case errors.Is(err, solver.ErrInvalidSubmitLimit):
		return "limit"
	case errors.Is(err, solver.ErrInvalidImages):
		return "images"
	case errors.Is(err, solver.ErrImageDecode):
		return "decode"
	case variant.IsUnknown(err):
		return "variant"
	default:
		return ""
	}
}
