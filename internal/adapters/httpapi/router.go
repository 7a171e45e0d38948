package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
)

type RouterOptions struct {
	// AuthMiddleware resolves the owner of every request. Nil rejects all
	// requests except /healthz.
	AuthMiddleware func(http.Handler) http.Handler
	Log            logrus.FieldLogger
}

// NewRouter constructs the API HTTP router with the dev auth shim and no
// default owner.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{AuthMiddleware: NewDevAuthMiddleware("")})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	auth := opts.AuthMiddleware
	if auth == nil {
		auth = NewDevAuthMiddleware("")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Route("/products", func(r chi.Router) {
			r.Get("/", s.listProducts)
			r.Post("/", s.createProduct)
			r.Get("/check-name", s.checkProductName)
			r.Get("/{id}", s.getProduct)
			r.Put("/{id}", s.updateProduct)
			r.Delete("/{id}", s.deleteProduct)
			r.Post("/{id}/sales", s.recordSale)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.listCategories)
			r.Post("/", s.createCategory)
			r.Get("/check-name", s.checkCategoryName)
			r.Get("/{id}", s.getCategory)
			r.Put("/{id}", s.updateCategory)
			r.Delete("/{id}", s.deleteCategory)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
	return r
}

func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}
