package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/carhop-rentals/booking-verify-api/internal/app/media"
)

type RouterOptions struct {
	// AuthMiddleware guards every /v1 route except the public lookups.
	AuthMiddleware func(http.Handler) http.Handler
	Log            *zap.Logger
	// MediaDir, when set, is served read-only under /media/.
	MediaDir string
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.Log != nil {
		r.Use(requestLogger(opts.Log))
	}
	r.Use(middleware.Recoverer)

	// Health endpoint is unauthenticated (used for infra checks).
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.MediaDir != "" {
		r.With(middleware.SetHeader("Cache-Control", media.CacheControl)).
			Handle("/media/*", http.StripPrefix("/media/", http.FileServer(http.Dir(opts.MediaDir))))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/phone/locales", s.ListPhoneLocales)
		r.Post("/name-match", s.MatchNames)

		r.Group(func(r chi.Router) {
			if opts.AuthMiddleware != nil {
				r.Use(opts.AuthMiddleware)
			}
			r.Post("/session", s.SignIn)
			r.Delete("/session", s.SignOut)
			r.Get("/state", s.GetState)

			r.Put("/verification/documents/{index}", s.ToggleDocument)
			r.Post("/verification/guidelines", s.AcceptGuidelines)
			r.Patch("/verification/phone", s.UpdatePhone)

			r.Post("/bookings", s.ConfirmBooking)

			r.Post("/ride", s.OpenRide)
			r.Delete("/ride", s.CloseRide)
			r.Put("/ride/photos/{slot}", s.PutPhoto)
			r.Put("/ride/video", s.PutVideo)
			r.Post("/ride/complete", s.CompleteRide)
		})
	})
	return r
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("requestId", middleware.GetReqID(r.Context())),
			)
		})
	}
}
