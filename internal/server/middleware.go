package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/changerequest"
	"github.com/pmo-suite/change-request-service/internal/metrics"
	"github.com/pmo-suite/change-request-service/internal/permission"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	actorKey
)

var tracer = otel.Tracer("change-request-service/http")

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// withRequestContext assigns a request id, opens the request span, records latency and
// writes one access log line per request.
func withRequestContext(logger *logrus.Logger) mux.MiddlewareFunc {
	collectors := metrics.Get()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			route := routeTemplate(r)

			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.route", route),
					attribute.String("request.id", requestID),
				),
			)
			defer span.End()
			ctx = context.WithValue(ctx, requestIDKey, requestID)

			w.Header().Set(HeaderRequestID, requestID)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.Status()
			elapsed := time.Since(start)
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			collectors.HTTPDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())

			entry := logger.WithContext(ctx).WithFields(logrus.Fields{
				"request-id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     status,
				"duration":   elapsed.String(),
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request completed")
				return
			}
			entry.Info("request completed")
		})
	}
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// authenticate trusts the identity headers set by the upstream auth layer.
func authenticate(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get(HeaderUserID)
			if userID == "" {
				writeAPIError(w, apperr.New(http.StatusUnauthorized, apperr.CodeUnauthenticated, "missing user identity"))
				return
			}
			role, err := permission.ParseRole(r.Header.Get(HeaderUserRole))
			if err != nil {
				logger.WithContext(r.Context()).WithFields(logrus.Fields{
					"request-id": requestIDFrom(r.Context()),
					"user-id":    userID,
				}).Debug("unrecognised role header, granting no capabilities")
				role = ""
			}
			actor := changerequest.Actor{ID: userID, Role: role}
			trace.SpanFromContext(r.Context()).SetAttributes(
				attribute.String("actor.id", actor.ID),
				attribute.String("actor.role", string(actor.Role)),
			)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, actor)))
		})
	}
}

func actorFrom(ctx context.Context) changerequest.Actor {
	actor, _ := ctx.Value(actorKey).(changerequest.Actor)
	return actor
}
