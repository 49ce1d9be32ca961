package server

import (
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/pmo-suite/change-request-service/internal/apperr"
)

const limiterPrefix = "change-requests:ratelimit"

// NewLimiterStore keeps counters in Redis when a client is given, in process memory otherwise.
func NewLimiterStore(client redis.UniversalClient) (limiter.Store, error) {
	if client == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          limiterPrefix,
			CleanUpInterval: time.Minute,
		}), nil
	}
	store, err := redisstore.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   limiterPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create redis limiter store")
	}
	return store, nil
}

// rateLimit allows rps requests per second per caller. Callers are keyed by user id, or by
// client address before authentication.
func rateLimit(store limiter.Store, rps int, logger *logrus.Logger) mux.MiddlewareFunc {
	instance := limiter.New(store, limiter.Rate{Period: time.Second, Limit: int64(rps)})
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithKeyGetter(limiterKey),
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			writeAPIError(w, apperr.New(http.StatusTooManyRequests, apperr.CodeRateLimited, "rate limit exceeded"))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			logger.WithContext(r.Context()).WithError(err).Error("rate limiter unavailable")
			writeAPIError(w, apperr.Internal())
		}),
	)
	return mw.Handler
}

func limiterKey(r *http.Request) string {
	if id := r.Header.Get(HeaderUserID); id != "" {
		return "user:" + id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
