// Package api exposes the sales operations over HTTP.
//
// Every route except the health check requires a bearer token. The verified
// subject becomes the caller for permission checks, and errors are reported
// with their stable kind in a JSON envelope.
package api

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/jacentio/salestrack/prefill"
	"github.com/jacentio/salestrack/sales"
	"github.com/jacentio/salestrack/share"
)

// Options configures the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Server holds the handlers' dependencies.
type Server struct {
	svc      *sales.Service
	shares   *share.Manager
	prefills *prefill.Engine
	auth     *Authenticator
	validate *validator.Validate
	opts     Options
	logger   *slog.Logger
}

// NewServer creates a Server.
func NewServer(svc *sales.Service, shares *share.Manager, prefills *prefill.Engine, auth *Authenticator, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 25 * time.Second
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	return &Server{
		svc:      svc,
		shares:   shares,
		prefills: prefills,
		auth:     auth,
		validate: v,
		opts:     opts,
		logger:   logger,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors())
	r.Use(middleware.Timeout(s.opts.RequestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Route("/me", func(r chi.Router) {
			r.Get("/", s.getMe)
			r.Patch("/", s.updateMe)
			r.Put("/preferences", s.updatePreferences)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Get("/", s.listMyProfiles)
			r.Post("/", s.createProfile)
			r.Get("/shared", s.listSharedProfiles)

			r.Route("/{profileID}", func(r chi.Router) {
				r.Get("/", s.getProfile)
				r.Patch("/", s.updateProfile)
				r.Delete("/", s.deleteProfile)

				r.Get("/shares", s.listProfileShares)
				r.Post("/shares", s.createShare)
				r.Put("/shares/{granteeID}", s.updateShare)
				r.Delete("/shares/{granteeID}", s.revokeShare)

				r.Get("/invites", s.listInvites)
				r.Post("/invites", s.createInvite)

				r.Get("/campaigns", s.listCampaigns)
				r.Post("/campaigns", s.createCampaign)
				r.Post("/campaigns/from-prefill", s.createCampaignFromPrefill)

				r.Get("/payment-methods", s.listPaymentMethods)
				r.Post("/payment-methods", s.createPaymentMethod)
				r.Patch("/payment-methods/{name}", s.updatePaymentMethod)
				r.Delete("/payment-methods/{name}", s.deletePaymentMethod)
			})
		})

		r.Route("/invites/{code}", func(r chi.Router) {
			r.Post("/redeem", s.redeemInvite)
			r.Delete("/", s.deleteInvite)
		})

		r.Get("/shared-campaigns/{code}", s.getCampaignByShareCode)

		r.Route("/campaigns/{campaignID}", func(r chi.Router) {
			r.Get("/", s.getCampaign)
			r.Patch("/", s.updateCampaign)
			r.Delete("/", s.deleteCampaign)
			r.Get("/orders", s.listOrders)
			r.Post("/orders", s.createOrder)
		})

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", s.getOrder)
			r.Put("/", s.updateOrder)
			r.Delete("/", s.deleteOrder)
		})

		r.Route("/catalogs", func(r chi.Router) {
			r.Get("/", s.listPublicCatalogs)
			r.Post("/", s.createCatalog)
			r.Get("/mine", s.listMyCatalogs)
			r.Get("/{catalogID}", s.getCatalog)
			r.Put("/{catalogID}", s.updateCatalog)
			r.Delete("/{catalogID}", s.deleteCatalog)
		})

		r.Route("/prefills", func(r chi.Router) {
			r.Get("/", s.listMyPrefills)
			r.Post("/", s.createPrefill)
			r.Get("/matches", s.findPrefillMatches)
			r.Get("/resolve/{code}", s.resolvePrefill)
			r.Get("/{code}", s.getPrefill)
			r.Patch("/{code}", s.updatePrefill)
			r.Post("/{code}/deactivate", s.deactivatePrefill)
		})
	})

	return r
}

func (s *Server) cors() func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}
	// credentials cannot be combined with a wildcard origin
	if len(opts.AllowedOrigins) > 0 && opts.AllowedOrigins[0] != "*" {
		opts.AllowCredentials = true
	}
	return cors.Handler(opts)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()),
		)
	})
}
