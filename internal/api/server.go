package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/petdance/internal/auth"
	"github.com/digkill/petdance/internal/config"
	"github.com/digkill/petdance/internal/models"
	"github.com/digkill/petdance/internal/service"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

type Profiles interface {
	Profile(ctx context.Context, id auth.Identity) (*service.Profile, error)
}

type Ledger interface {
	Cost() int
	Balance(ctx context.Context, userID string) (int, error)
	Add(ctx context.Context, userID string, amount int, source models.CreditSource, reference string) (*models.CreditEntry, error)
	History(ctx context.Context, userID string, limit int) ([]models.CreditEntry, error)
}

type Generations interface {
	Generate(ctx context.Context, userID string, req service.GenerationRequest) (*service.GenerationResult, error)
	Videos(ctx context.Context, userID string, limit int) ([]models.Video, error)
}

type Checkouts interface {
	CreateCheckout(ctx context.Context, user models.User, planCode string) (*service.CheckoutResult, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type PlanCatalog interface {
	List(ctx context.Context, activeOnly bool) ([]models.Plan, error)
	Create(ctx context.Context, input service.CreatePlanInput) (*models.Plan, error)
	Update(ctx context.Context, id int64, input service.UpdatePlanInput) (*models.Plan, error)
	Delete(ctx context.Context, id int64) error
}

type Referrals interface {
	Redeem(ctx context.Context, userID, code string) (int, error)
	List(ctx context.Context) ([]models.ReferralCode, error)
	Create(ctx context.Context, code string, maxUses int) (*models.ReferralCode, error)
	Update(ctx context.Context, id int64, input service.UpdateReferralInput) (*models.ReferralCode, error)
	Delete(ctx context.Context, id int64) error
}

// VideoProvider is the slice of the video client the api-key check needs.
type VideoProvider interface {
	Configured() bool
	RemainingCredits(ctx context.Context) (float64, error)
}

type Deps struct {
	Config      config.Config
	Log         *slog.Logger
	DB          Pinger
	Verifier    TokenVerifier
	Profiles    Profiles
	Ledger      Ledger
	Generations Generations
	Checkouts   Checkouts
	Plans       PlanCatalog
	Referrals   Referrals
	Video       VideoProvider
	ProxyClient *http.Client
}

type Server struct {
	Deps
	router *chi.Mux
}

func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	proxy := &http.Client{}
	if deps.ProxyClient != nil {
		c := *deps.ProxyClient
		proxy = &c
	}
	proxy.CheckRedirect = proxyRedirectPolicy(deps.Config.ProxyAllowedHosts)
	deps.ProxyClient = proxy

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{Deps: deps, router: r}
	r.Use(s.accessLog)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/check-api-key", s.handleCheckAPIKey)
		r.Get("/styles", s.handleStyles)
		r.Get("/plans", s.handlePlans)
		r.Post("/webhooks/stripe", s.handleStripeWebhook)
		r.Get("/proxy-video", s.handleProxyVideo)

		r.Group(func(protected chi.Router) {
			protected.Use(s.requireUser)
			protected.Get("/me", s.handleMe)
			protected.Get("/videos", s.handleVideos)
			protected.Post("/generate-video", s.handleGenerateVideo)
			protected.Post("/checkout", s.handleCheckout)
			protected.Post("/referrals/redeem", s.handleRedeemReferral)
		})
	})

	if deps.Config.AdminEnabled() {
		s.mountAdmin(r)
	}

	s.mountViews(r)
	return s
}

func (s *Server) mountAdmin(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Route("/plans", func(r chi.Router) {
			r.Get("/", s.handleAdminListPlans)
			r.Post("/", s.handleAdminCreatePlan)
			r.Put("/{id}", s.handleAdminUpdatePlan)
			r.Delete("/{id}", s.handleAdminDeletePlan)
		})
		r.Route("/referral-codes", func(r chi.Router) {
			r.Get("/", s.handleAdminListReferrals)
			r.Post("/", s.handleAdminCreateReferral)
			r.Put("/{id}", s.handleAdminUpdateReferral)
			r.Delete("/{id}", s.handleAdminDeleteReferral)
		})
		r.Post("/credits", s.handleAdminGrantCredits)
	})
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled. The write timeout has to outlast a full
// generation poll loop.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Config.HTTPListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      s.Config.HTTPWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Log.Error("http shutdown error", "err", err)
		}
	}()

	s.Log.Info("http server listening", "addr", s.Config.HTTPListenAddr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, err := s.Verifier.Verify(token)
		if err != nil {
			s.Log.Debug("rejected access token", "err", err)
			writeMessage(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || s.Config.AdminPassword == "" ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.Config.AdminUsername)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.Config.AdminPassword)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="petdance"`)
			writeMessage(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// currentProfile resolves the stored profile of the authenticated caller.
func (s *Server) currentProfile(r *http.Request) (*service.Profile, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return s.Profiles.Profile(r.Context(), id)
}
