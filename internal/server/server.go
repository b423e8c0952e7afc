package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"LiveBoard/internal/config"
	"LiveBoard/internal/export"
	boardnet "LiveBoard/internal/net"
	"LiveBoard/internal/protocol"
	"LiveBoard/internal/render"
	"LiveBoard/internal/state"
)

const (
	maxSnapshotBody  = 8 << 20
	defaultPNGWidth  = 1280
	defaultPNGHeight = 720
	maxPNGSide       = 4096
)

// Server exposes a hub over HTTP: the WebSocket endpoint plus snapshot,
// export and health routes.
type Server struct {
	cfg      config.ServerConfig
	hub      *Hub
	router   *mux.Router
	upgrader websocket.Upgrader
	log      zerolog.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a server for hub. The hub must be running.
func New(cfg config.ServerConfig, hub *Hub) *Server {
	s := &Server{
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// boards are shared on the local network from any origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log:     hub.log.With().Str("component", "http").Logger(),
		closing: make(chan struct{}),
	}

	r := mux.NewRouter()
	r.Use(s.accessLog)
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleWebSocket)
	r.Methods(http.MethodGet).Path("/api/strokes").HandlerFunc(s.getStrokes)
	r.Methods(http.MethodPut).Path("/api/strokes").HandlerFunc(s.putStrokes)
	r.Methods(http.MethodGet).Path("/api/cursors").HandlerFunc(s.getCursors)
	r.Methods(http.MethodGet).Path("/api/peers").HandlerFunc(s.getPeers)
	r.Methods(http.MethodGet).Path("/export.pdf").HandlerFunc(s.exportPDF)
	r.Methods(http.MethodGet).Path("/export.png").HandlerFunc(s.exportPNG)
	r.Methods(http.MethodGet).Path("/health").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes every
// WebSocket connection and shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errc:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close drops every open WebSocket connection. Hijacked connections are not
// tracked by net/http, so Shutdown alone would leave them open.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", m.Code).
			Dur("duration", m.Duration).
			Int64("bytes", m.Written).
			Msg("handled")
	})
}

func (s *Server) peerOptions() boardnet.PeerOptions {
	return boardnet.PeerOptions{
		SendBuffer:   s.cfg.SendBuffer,
		ReadLimit:    s.cfg.ReadLimit,
		WriteTimeout: s.cfg.WriteTimeout,
		PingInterval: s.cfg.PingInterval,
	}
}

// handleWebSocket runs one connection: join, read until the connection
// fails, leave. Dispatch is synchronous, so the connection's events reach
// the hub in the order they were read.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	peer := boardnet.NewPeer(conn, s.peerOptions())
	go peer.WriteLoop()

	ctx := r.Context()
	go func() {
		select {
		case <-s.closing:
			_ = peer.Close()
		case <-ctx.Done():
			_ = peer.Close()
		case <-peer.Done():
		}
	}()

	if err := s.hub.Join(ctx, peer); err != nil {
		s.log.Warn().Err(err).Msg("join failed")
		_ = peer.Close()
		return
	}
	defer func() {
		if err := s.hub.Leave(context.WithoutCancel(ctx), peer.ID()); err != nil && !errors.Is(err, ErrHubClosed) {
			s.log.Warn().Err(err).Str("user", peer.ID()).Msg("leave failed")
		}
	}()

	err = peer.ReadLoop(func(env protocol.Envelope) {
		if err := s.hub.Dispatch(ctx, peer.ID(), env); err != nil {
			s.log.Warn().Err(err).Str("user", peer.ID()).Msg("dispatch failed")
			_ = peer.Close()
		}
	})
	if err != nil {
		s.log.Debug().Err(err).Str("user", peer.ID()).Msg("connection closed")
	}
}

func (s *Server) getStrokes(w http.ResponseWriter, r *http.Request) {
	strokes, err := s.hub.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, strokes)
}

func (s *Server) putStrokes(w http.ResponseWriter, r *http.Request) {
	var strokes []state.Stroke
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSnapshotBody)).Decode(&strokes); err != nil {
		http.Error(w, "invalid stroke list: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.hub.Reset(r.Context(), strokes); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getCursors(w http.ResponseWriter, r *http.Request) {
	cursors, err := s.hub.Cursors(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cursors)
}

func (s *Server) getPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.hub.Peers(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, peers)
}

func (s *Server) exportPDF(w http.ResponseWriter, r *http.Request) {
	strokes, err := s.hub.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WritePDF(&buf, strokes); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="liveboard.pdf"`)
	_, _ = buf.WriteTo(w)
}

func (s *Server) exportPNG(w http.ResponseWriter, r *http.Request) {
	width, err := sizeParam(r, "w", defaultPNGWidth)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	height, err := sizeParam(r, "h", defaultPNGHeight)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	strokes, err := s.hub.Snapshot(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	var buf bytes.Buffer
	if err := render.PNG(&buf, strokes, width, height); err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}

func sizeParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxPNGSide {
		return 0, fmt.Errorf("%s must be between 1 and %d", name, maxPNGSide)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrHubClosed) {
		status = http.StatusServiceUnavailable
	}
	s.log.Error().Err(err).Msg("request failed")
	http.Error(w, err.Error(), status)
}
