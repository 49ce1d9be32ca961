package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/pmo-suite/change-request-service/internal/apperr"
	"github.com/pmo-suite/change-request-service/internal/config"
	"github.com/pmo-suite/change-request-service/internal/metrics"
	"github.com/pmo-suite/change-request-service/internal/service"
)

type Options struct {
	Service     *service.Service
	Logger      *logrus.Logger
	CORSOrigins []string
	RateLimit   config.RateLimitOptions
	// LimiterStore defaults to an in-memory store.
	LimiterStore limiter.Store
}

// NewRouter builds the HTTP handler serving the API, health and metrics endpoints.
func NewRouter(opts Options) (http.Handler, error) {
	h := &handlers{
		svc:    opts.Service,
		logger: opts.Logger,
		fail:   ErrorHandler(opts.Logger),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, apperr.New(http.StatusNotFound, apperr.CodeNotFound, "route not found"))
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, apperr.New(http.StatusMethodNotAllowed, apperr.CodeValidation, "method not allowed"))
	})
	router.Use(withRequestContext(opts.Logger))

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if opts.RateLimit.Enabled && opts.RateLimit.RPS > 0 {
		store := opts.LimiterStore
		if store == nil {
			var err error
			if store, err = NewLimiterStore(nil); err != nil {
				return nil, err
			}
		}
		api.Use(rateLimit(store, opts.RateLimit.RPS, opts.Logger))
	}
	api.Use(authenticate(opts.Logger))

	api.HandleFunc("/me/permissions", h.myPermissions).Methods(http.MethodGet)

	cr := api.PathPrefix("/change-requests").Subrouter()
	cr.HandleFunc("/pending", h.listPending).Methods(http.MethodGet)
	cr.HandleFunc("/mine", h.listMine).Methods(http.MethodGet)
	cr.HandleFunc("/export.xlsx", h.export).Methods(http.MethodGet)
	cr.HandleFunc("", h.listByProject).Methods(http.MethodGet)
	cr.HandleFunc("", h.create).Methods(http.MethodPost)
	cr.HandleFunc("/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	cr.HandleFunc("/{id:[0-9]+}", h.review).Methods(http.MethodPut)
	cr.HandleFunc("/{id:[0-9]+}/comments", h.listChangeRequestComments).Methods(http.MethodGet)

	api.HandleFunc("/{entity:tasks|assignments}/{id:[0-9]+}/comments", h.listComments).Methods(http.MethodGet)
	api.HandleFunc("/{entity:tasks|assignments}/{id:[0-9]+}/comments", h.addComment).Methods(http.MethodPost)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", HeaderRequestID, HeaderUserID, HeaderUserRole},
		ExposedHeaders: []string{HeaderRequestID},
	})
	return c.Handler(router), nil
}
