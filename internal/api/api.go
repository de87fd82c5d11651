// Package api serves the dashboard's HTTP surface: reading and writing
// the device document, and the login session around the write path.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/wufe/catears-dashboard/internal/auth"
	"github.com/wufe/catears-dashboard/internal/blob"
	"github.com/wufe/catears-dashboard/internal/clock"
	"github.com/wufe/catears-dashboard/internal/schema"
	"github.com/wufe/catears-dashboard/internal/wire"
)

const (
	DefaultKey   = "catears.json"
	maxStateBody = 1 << 20
)

type Config struct {
	Store blob.Store
	// Gate is nil when the server has no usable secret or password hash.
	// Every endpoint that needs it then answers 500.
	Gate   *auth.Gate
	Bucket string
	Key    string
	// SecureCookie applies to logout cookies written without a Gate.
	SecureCookie bool
	Clock        clock.Clock
	Logger       zerolog.Logger
}

type server struct {
	cfg Config
}

// NewHandler returns the routed, logged and compressed handler.
func NewHandler(cfg Config) http.Handler {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	s := &server{cfg: cfg}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/state", s.handlePutState)
	mux.HandleFunc("GET /api/state", s.handleGetState)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/auth/session", s.handleSession)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var h http.Handler = gzhttp.GzipHandler(mux)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request")
	})(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(cfg.Logger)(h)
	return h
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type saveResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Bucket    string `json:"bucket"`
	File      string `json:"file"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	ExpiresAt     string `json:"expiresAt,omitempty"`
}

type presetsResponse struct {
	Lights    []string `json:"lights"`
	Chiptunes []string `json:"chiptunes"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, details ...string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}

func (s *server) misconfigured(w http.ResponseWriter, r *http.Request) bool {
	if s.cfg.Gate != nil {
		return false
	}
	hlog.FromRequest(r).Error().Msg("Auth gate is not configured")
	writeError(w, http.StatusInternalServerError, "Server configuration error")
	return true
}

func (s *server) handlePutState(w http.ResponseWriter, r *http.Request) {
	logger := hlog.FromRequest(r)
	if s.misconfigured(w, r) {
		return
	}
	if s.cfg.Store == nil {
		logger.Error().Msg("Blob store is not configured")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	session, err := s.cfg.Gate.Authorize(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected state write")
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxStateBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	cfg, err := wire.Unmarshal(body)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Info().Err(err).Msg("Invalid configuration")
		writeError(w, http.StatusBadRequest, "Invalid configuration", fieldPaths(err)...)
		return
	}

	doc, err := wire.Marshal(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Encoding configuration")
		writeError(w, http.StatusInternalServerError, "Failed to save configuration")
		return
	}
	if err := s.cfg.Store.Put(r.Context(), s.cfg.Key, doc); err != nil {
		logger.Error().Err(err).Msg("Saving configuration")
		writeError(w, http.StatusInternalServerError, "Failed to save configuration")
		return
	}

	logger.Info().Str("username", session.Username).Int("bytes", len(doc)).Msg("Configuration saved")
	writeJSON(w, http.StatusOK, saveResponse{
		Success:   true,
		Message:   "Configuration saved",
		Timestamp: s.cfg.Clock.Now().UTC().Format(time.RFC3339),
		Bucket:    s.cfg.Bucket,
		File:      s.cfg.Key,
	})
}

// fieldPaths lists "path: reason" for every field error in err.
func fieldPaths(err error) []string {
	var decodeErr *wire.DecodeError
	if errors.As(err, &decodeErr) {
		out := make([]string, len(decodeErr.Fields))
		for i, f := range decodeErr.Fields {
			out[i] = f.Error()
		}
		return out
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			var fe *schema.FieldError
			if errors.As(e, &fe) {
				out = append(out, fe.Error())
			}
		}
		return out
	}
	return nil
}

func (s *server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		hlog.FromRequest(r).Error().Msg("Blob store is not configured")
		writeError(w, http.StatusInternalServerError, "Server configuration error")
		return
	}

	data, err := s.cfg.Store.Get(r.Context(), s.cfg.Key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "No configuration stored")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Reading configuration")
		writeError(w, http.StatusInternalServerError, "Failed to read configuration")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.misconfigured(w, r) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, session, err := s.cfg.Gate.Login(req.Username, req.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Str("username", req.Username).Msg("Failed login")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	s.cfg.Gate.SetCookie(w, token, session)
	hlog.FromRequest(r).Info().Str("username", session.Username).Msg("Logged in")
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Username: session.Username})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Gate != nil {
		s.cfg.Gate.Logout(r)
		s.cfg.Gate.ClearCookie(w)
	} else {
		auth.ExpireCookie(w, s.cfg.SecureCookie)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Gate == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	session, err := s.cfg.Gate.Authorize(r)
	if err != nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		Username:      session.Username,
		ExpiresAt:     session.Expires().UTC().Format(time.RFC3339),
	})
}

func (s *server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presetsResponse{
		Lights:    schema.LightPresetNames,
		Chiptunes: schema.ChiptunePresetNames,
	})
}
