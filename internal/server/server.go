package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/b0ase/path402/apps/clawwallet/internal/db"
	"github.com/b0ase/path402/apps/clawwallet/internal/logging"
	"github.com/b0ase/path402/apps/clawwallet/internal/reconcile"
)

var log = logging.New("api")

// DaemonInfo gives the API access to the running wallet.
type DaemonInfo interface {
	WalletID() string
	Uptime() time.Duration
	BackendURL() string
	Engine() *reconcile.Engine
	RecentSettlements(limit int) ([]db.SettlementRecord, error)
}

// corsMiddleware allows cross-origin requests from local front ends.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Server is the HTTP JSON API for the ClawWallet daemon.
type Server struct {
	httpSrv *http.Server
	daemon  DaemonInfo
	bind    string
	port    int
}

// New creates an HTTP server.
func New(bind string, port int, daemon DaemonInfo) *Server {
	s := &Server{daemon: daemon, bind: bind, port: port}
	s.httpSrv = &http.Server{
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the API routes wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return corsMiddleware(mux)
}

// Start pre-acquires the port and begins serving HTTP requests.
// If the primary port is in use, it falls back to port+1.
// Returns the actual port bound.
func (s *Server) Start() (int, error) {
	addr := fmt.Sprintf("%s:%d", s.bind, s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		// Try fallback port
		fallbackPort := s.port + 1
		fallbackAddr := fmt.Sprintf("%s:%d", s.bind, fallbackPort)
		ln, err = net.Listen("tcp", fallbackAddr)
		if err != nil {
			return 0, fmt.Errorf("listen on %s and fallback %s: %w", addr, fallbackAddr, err)
		}
		log.Warnf("Using fallback port %d (primary %d was in use)", fallbackPort, s.port)
		s.port = fallbackPort
	}
	if tcp, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcp.Port
	}

	log.Infof("HTTP API listening on %s:%d", s.bind, s.port)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Errorf("HTTP server error: %v", err)
		}
	}()
	return s.port, nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.httpSrv.Shutdown(ctx)
	log.Infof("HTTP server stopped")
}
