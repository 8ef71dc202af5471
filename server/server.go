// Package server exposes the intent engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/unikron/intent-relay/common/types"
	"github.com/unikron/intent-relay/intent"
	"github.com/unikron/intent-relay/queue"
	"github.com/unikron/intent-relay/quote"
	"github.com/unikron/intent-relay/session"
	"github.com/unikron/intent-relay/solana"
)

// IntentEngine is the engine surface the server depends on.
type IntentEngine interface {
	CreateIntent(ctx context.Context, route *types.Route, meta *intent.TradeMeta) (*types.IntentRecord, error)
	Commit(ctx context.Context, hash string) (*solana.CommitOutcome, error)
	Reveal(ctx context.Context, hash, signature string) (*types.RevealResult, error)
	Status(ctx context.Context, hash string) (*types.IntentRecord, error)
	FeeAccounts(ctx context.Context, tokenMint string) (*solana.FeeAccountState, error)
	InitializeFees(ctx context.Context, tokenMint string) (string, *solana.FeeAccounts, error)
	SettleFees(ctx context.Context, tokenMint string, feeAmount uint64) (string, error)
}

// Quoter fetches routes from the aggregator.
type Quoter interface {
	GetQuote(ctx context.Context, req *quote.Request) (*types.Route, error)
}

// Pinger reports the health of a backing dependency.
type Pinger interface {
	Healthy(ctx context.Context) error
}

// Server wires the HTTP surface to the engine, quoter, session store and
// queue.
type Server struct {
	engine   IntentEngine
	quoter   Quoter
	sessions session.Store
	jobs     *queue.Queue
	db       Pinger
	logger   *logrus.Logger
	router   *mux.Router

	// revealDelay is how long after a commit the reveal check job fires.
	revealDelay time.Duration
}

// Options carries the optional collaborators of a server.
type Options struct {
	Sessions    session.Store
	Jobs        *queue.Queue
	DB          Pinger
	RevealDelay time.Duration
}

// New creates a server and registers its routes.
func New(engine IntentEngine, quoter Quoter, logger *logrus.Logger, opts Options) *Server {
	if opts.RevealDelay <= 0 {
		opts.RevealDelay = 30 * time.Second
	}

	s := &Server{
		engine:      engine,
		quoter:      quoter,
		sessions:    opts.Sessions,
		jobs:        opts.Jobs,
		db:          opts.DB,
		logger:      logger,
		router:      mux.NewRouter(),
		revealDelay: opts.RevealDelay,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	swap := s.router.PathPrefix("/swap").Subrouter()
	swap.HandleFunc("/quote", s.handleQuote).Methods(http.MethodPost)
	swap.HandleFunc("/intent", s.handleCreateIntent).Methods(http.MethodPost)
	swap.HandleFunc("/commit/simple", s.handleCommit).Methods(http.MethodPost)
	swap.HandleFunc("/reveal", s.handleReveal).Methods(http.MethodPost)
	swap.HandleFunc("/status/{intentHash}", s.handleStatus).Methods(http.MethodGet)
	swap.HandleFunc("/recover/{sessionId}", s.handleRecover).Methods(http.MethodGet)
	swap.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	fee := s.router.PathPrefix("/fee").Subrouter()
	fee.HandleFunc("/initialize-accounts", s.handleInitializeFees).Methods(http.MethodPost)
	fee.HandleFunc("/settle", s.handleSettleFees).Methods(http.MethodPost)
	fee.HandleFunc("/accounts/{tokenMint}", s.handleFeeAccounts).Methods(http.MethodGet)

	s.router.HandleFunc("/queue/stats", s.handleQueueStats).Methods(http.MethodGet)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
