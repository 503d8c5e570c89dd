package overlay

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"focuswatch/internal/game"
	"focuswatch/internal/monitor"
)

// Controller is the monitor surface the overlay drives
type Controller interface {
	Start() error
	Stop()
	ForceRefresh()
	SetRoleAndBracket(role game.Role, bracket game.Bracket)
	Preferences() (game.Role, game.Bracket)
	State() monitor.State
	Subscribe(fn monitor.Handler) func()
}

// AutoImport toggles automatic build import
type AutoImport interface {
	SetEnabled(enabled bool)
	Enabled() bool
}

// PreferenceStore applies and persists user settings
type PreferenceStore interface {
	UpdatePreferences(role game.Role, bracket game.Bracket, autoImport bool) error
}

// applyOnly is the store used when nothing persists settings
type applyOnly struct {
	ctrl    Controller
	imports AutoImport
}

func (a applyOnly) UpdatePreferences(role game.Role, bracket game.Bracket, autoImport bool) error {
	if baseRole, baseBracket := a.ctrl.Preferences(); role != baseRole || bracket != baseBracket {
		a.ctrl.SetRoleAndBracket(role, bracket)
	}
	if a.imports != nil {
		a.imports.SetEnabled(autoImport)
	}
	return nil
}

// Settings is the body of PUT /settings. Omitted fields are unchanged.
type Settings struct {
	Role       *string `json:"role,omitempty"`
	Bracket    *string `json:"bracket,omitempty"`
	AutoImport *bool   `json:"autoImport,omitempty"`
}

// StateResponse is GET /state
type StateResponse struct {
	monitor.State
	AutoImport bool `json:"autoImport"`
}

// Server exposes monitor events and commands to browser overlays
type Server struct {
	ctrl     Controller
	imports  AutoImport
	prefs    PreferenceStore
	hub      *Hub
	log      *zap.SugaredLogger
	upgrader websocket.Upgrader

	unsubscribe func()
}

// New creates a server and subscribes it to ctrl. imports may be nil.
// Without prefs, settings are applied but not persisted.
func New(ctrl Controller, imports AutoImport, prefs PreferenceStore, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	sugar := log.Named("overlay").Sugar()
	s := &Server{
		ctrl:    ctrl,
		imports: imports,
		prefs:   prefs,
		hub:     NewHub(sugar),
		log:     sugar,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// overlays are served from OBS browser sources and file:// pages
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	if s.prefs == nil {
		s.prefs = applyOnly{ctrl: ctrl, imports: imports}
	}
	s.unsubscribe = ctrl.Subscribe(func(ev monitor.Event) {
		s.hub.Broadcast(Message{Type: ev.Name(), Data: ev})
	})
	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/state", s.handleState)
	r.Put("/settings", s.handleSettings)
	r.Route("/commands", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/stop", s.handleStop)
		r.Post("/refresh", s.handleRefresh)
	})
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Infof("[Overlay] Listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Close detaches the server from the monitor
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Server) state() StateResponse {
	resp := StateResponse{State: s.ctrl.State()}
	if s.imports != nil {
		resp.AutoImport = s.imports.Enabled()
	}
	return resp
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.ctrl.Start(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ForceRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	role, bracket := s.ctrl.Preferences()
	if req.Role != nil {
		parsed, ok := game.ParseRole(*req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown role")
			return
		}
		role = parsed
	}
	if req.Bracket != nil {
		parsed, ok := game.ParseBracket(*req.Bracket)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown bracket")
			return
		}
		bracket = parsed
	}
	if req.AutoImport != nil && s.imports == nil {
		writeError(w, http.StatusNotImplemented, "auto import unavailable")
		return
	}

	autoImport := s.imports != nil && s.imports.Enabled()
	if req.AutoImport != nil {
		autoImport = *req.AutoImport
	}

	if err := s.prefs.UpdatePreferences(role, bracket, autoImport); err != nil {
		s.log.Warnf("[Overlay] Failed to save settings: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugf("[Overlay] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	id, out := s.hub.Join()
	defer s.hub.Leave(id)

	initial, err := json.Marshal(Message{Type: "state", Data: s.state()})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
			return
		}
	}

	// reader: overlays only listen, but reading surfaces the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case payload, ok := <-out:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
