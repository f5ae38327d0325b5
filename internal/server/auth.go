package server

import (
	"net/http"
	"strings"

	"github.com/sinfolonokojo/mt5-backend/internal/apperr"
)

// publicPaths never require a bearer token. /api/auth/verify is public
// because it IS the bearer check: it reports whether the presented token
// is valid rather than rejecting the request for lacking one.
var publicPaths = map[string]bool{
	"/":                true,
	"/health":          true,
	"/api/auth/login":  true,
	"/api/auth/verify": true,
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, apperr.New(apperr.Unauthorised, "missing bearer token"))
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			writeError(w, apperr.New(apperr.Unauthorised, "missing bearer token"))
			return
		}
		if err := s.cfg.Tokens.Verify(token); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireFeature gates a route group behind a runtime feature flag,
// returning FeatureDisabled (503) rather than 404 so clients can
// distinguish "not built" from "not enabled".
func (s *Server) requireFeature(enabled func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled() {
				writeError(w, apperr.New(apperr.FeatureDisabled, "this feature is not enabled"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if s.cfg.LoginPassword == "" || req.Password != s.cfg.LoginPassword {
		writeError(w, apperr.New(apperr.Unauthorised, "invalid credentials"))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: s.cfg.Tokens.Issue()})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	valid := token != "" && s.cfg.Tokens.Verify(token) == nil
	writeJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}
