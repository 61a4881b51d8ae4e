package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Log injects a per-request log_id and logs method, path and latency.
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		logger := log.With().Str("log_id", uuid.New().String()).Logger()
		ctx := logger.WithContext(r.Context())

		next.ServeHTTP(w, r.WithContext(ctx))

		logger.Info().Msgf("%s %s, proctm: %vμs", r.Method, r.URL.Path, time.Since(start).Microseconds())
	})
}
