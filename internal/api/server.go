// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FamTrack Contributors

// Package api exposes the FamTrack JSON API over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/famtrack/famtrack/internal/auth"
	"github.com/famtrack/famtrack/internal/family"
	"github.com/famtrack/famtrack/internal/ledger"
	"github.com/famtrack/famtrack/internal/reminder"
)

// BasePath prefixes every API route.
const BasePath = "/api"

// AuthService is the account and session surface the API drives.
type AuthService interface {
	SendOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, code string) (string, error)
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.RegisterResult, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	RefreshToken(ctx context.Context, token string) (*auth.RefreshResult, error)
	Logout(ctx context.Context, userID ulid.ULID, token string) string
	ForgotFamilyCode(ctx context.Context, email string) (string, error)
	Authenticate(ctx context.Context, accessToken string) (*auth.User, error)
}

// FamilyService is the family management surface.
type FamilyService interface {
	Details(ctx context.Context, familyID ulid.ULID) (*family.Details, error)
	Members(ctx context.Context, familyID ulid.ULID) ([]family.Member, error)
	RemoveMember(ctx context.Context, familyID, memberID ulid.ULID, requestorRole auth.Role) (string, error)
	UpdateName(ctx context.Context, familyID ulid.ULID, name string, requestorRole auth.Role) (*auth.Family, error)
}

// ReminderService is the on-demand reminder surface.
type ReminderService interface {
	SendToMember(ctx context.Context, familyID, memberID ulid.ULID) (*reminder.Outcome, error)
	SendToAll(ctx context.Context, familyID ulid.ULID) (*reminder.Tally, error)
	SendBulk(ctx context.Context, familyID ulid.ULID, memberIDs []ulid.ULID) (*reminder.Tally, error)
	SendTest(ctx context.Context, email string) (string, error)
}

// LedgerService is the income, expense and dashboard surface.
type LedgerService interface {
	Create(ctx context.Context, kind ledger.Kind, userID ulid.ULID, in ledger.NewEntry) (*ledger.Entry, error)
	ListMine(ctx context.Context, kind ledger.Kind, userID ulid.ULID) ([]*ledger.Entry, error)
	ListFamily(ctx context.Context, kind ledger.Kind, familyID ulid.ULID) ([]*ledger.Entry, error)
	Get(ctx context.Context, kind ledger.Kind, id, userID ulid.ULID) (*ledger.Entry, error)
	Update(ctx context.Context, kind ledger.Kind, id, userID ulid.ULID, p ledger.Patch) (*ledger.Entry, error)
	Delete(ctx context.Context, kind ledger.Kind, id, userID ulid.ULID) (string, error)
	Stats(ctx context.Context, kind ledger.Kind, userID ulid.ULID) (*ledger.Stats, error)
	FamilyDashboard(ctx context.Context, familyID ulid.ULID) (*ledger.FamilyDashboard, error)
	UserDashboard(ctx context.Context, userID ulid.ULID) (*ledger.UserDashboard, error)
	FamilyTrends(ctx context.Context, familyID ulid.ULID, months int) ([]ledger.MonthTrend, error)
	UserTrends(ctx context.Context, userID ulid.ULID, months int) ([]ledger.MonthTrend, error)
}

// RequestRecorder observes served requests.
type RequestRecorder interface {
	ObserveRequest(route, method string, code int, elapsed time.Duration)
}

// Config holds the server dependencies. Metrics and Logger are optional.
type Config struct {
	Addr      string
	Auth      AuthService
	Family    FamilyService
	Reminders ReminderService
	Ledger    LedgerService
	Metrics   RequestRecorder
	Logger    *slog.Logger
}

// Server serves the API.
type Server struct {
	addr      string
	auth      AuthService
	family    FamilyService
	reminders ReminderService
	ledger    LedgerService
	metrics   RequestRecorder
	logger    *slog.Logger

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// NewServer validates cfg and creates a stopped Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cfg.Family == nil {
		return nil, oops.Errorf("family service is required")
	}
	if cfg.Reminders == nil {
		return nil, oops.Errorf("reminder service is required")
	}
	if cfg.Ledger == nil {
		return nil, oops.Errorf("ledger service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:      cfg.Addr,
		auth:      cfg.Auth,
		family:    cfg.Family,
		reminders: cfg.Reminders,
		ledger:    cfg.Ledger,
		metrics:   cfg.Metrics,
		logger:    logger,
	}, nil
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	root := mux.NewRouter()
	root.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	api := root.PathPrefix(BasePath).Subrouter()
	api.Use(s.recoverPanics, s.observe)

	public := api.PathPrefix("/auth").Subrouter()
	public.HandleFunc("/send-otp", s.handleSendOTP).Methods(http.MethodPost)
	public.HandleFunc("/verify-otp", s.handleVerifyOTP).Methods(http.MethodPost)
	public.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	public.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	public.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	public.HandleFunc("/forgot-family-code", s.handleForgotFamilyCode).Methods(http.MethodPost)
	public.Handle("/logout", s.requireUser(http.HandlerFunc(s.handleLogout))).Methods(http.MethodPost)

	fam := api.PathPrefix("/family").Subrouter()
	fam.Use(s.requireUser)
	fam.HandleFunc("", s.handleFamilyDetails).Methods(http.MethodGet)
	fam.HandleFunc("/members", s.handleFamilyMembers).Methods(http.MethodGet)
	fam.HandleFunc("/members/{id}", s.handleRemoveMember).Methods(http.MethodDelete)
	fam.HandleFunc("/name", s.handleRenameFamily).Methods(http.MethodPatch)

	rem := api.PathPrefix("/reminders").Subrouter()
	rem.Use(s.requireUser)
	rem.HandleFunc("/test", s.handleTestReminder).Methods(http.MethodPost)
	admin := rem.NewRoute().Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/send-to-member", s.handleRemindMember).Methods(http.MethodPost)
	admin.HandleFunc("/send-to-all", s.handleRemindAll).Methods(http.MethodPost)
	admin.HandleFunc("/send-bulk", s.handleRemindBulk).Methods(http.MethodPost)

	incomes := s.ledgerRoutes(api.PathPrefix("/incomes").Subrouter(), ledger.KindIncome)
	expenses := s.ledgerRoutes(api.PathPrefix("/expenses").Subrouter(), ledger.KindExpense)

	dash := api.PathPrefix("/dashboard").Subrouter()
	dash.Use(s.requireUser)
	dash.HandleFunc("/family", s.handleFamilyDashboard).Methods(http.MethodGet)
	dash.HandleFunc("/my", s.handleUserDashboard).Methods(http.MethodGet)
	dash.HandleFunc("/family/trends", s.handleFamilyTrends).Methods(http.MethodGet)
	dash.HandleFunc("/my/trends", s.handleUserTrends).Methods(http.MethodGet)

	// A method mismatch inside a subrouter never reaches the root's
	// MethodNotAllowedHandler, so every leaf router carries its own.
	for _, r := range []*mux.Router{root, public, fam, rem, admin, incomes, expenses, dash} {
		r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
	}
	return root
}

// ledgerRoutes mounts one ledger kind's CRUD routes on r behind requireUser.
func (s *Server) ledgerRoutes(r *mux.Router, kind ledger.Kind) *mux.Router {
	r.Use(s.requireUser)
	r.HandleFunc("", s.handleCreateEntry(kind)).Methods(http.MethodPost)
	r.HandleFunc("/my", s.handleMyEntries(kind)).Methods(http.MethodGet)
	r.HandleFunc("/family", s.handleFamilyEntries(kind)).Methods(http.MethodGet)
	r.HandleFunc("/my/stats", s.handleEntryStats(kind)).Methods(http.MethodGet)
	r.HandleFunc("/{id}", s.handleGetEntry(kind)).Methods(http.MethodGet)
	r.HandleFunc("/{id}", s.handleUpdateEntry(kind)).Methods(http.MethodPut)
	r.HandleFunc("/{id}", s.handleDeleteEntry(kind)).Methods(http.MethodDelete)
	return r
}

// Start begins serving on the configured address. The returned channel
// receives a Serve failure and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("API_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown_api_server").Wrap(err)
		}
	}
	s.logger.Info("api server stopped")
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, Envelope{
		Message:    "Cannot " + r.Method + " " + r.URL.Path,
		Error:      auth.KindNotFound.String(),
		StatusCode: http.StatusNotFound,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, Envelope{
		Message:    "Method " + r.Method + " not allowed",
		Error:      "method_not_allowed",
		StatusCode: http.StatusMethodNotAllowed,
	})
}
