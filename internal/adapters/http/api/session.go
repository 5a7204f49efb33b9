package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/smartbiz/internal/domain/session"
)

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session attached by the session middleware.
func SessionFrom(ctx context.Context) (*session.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*session.Session)
	return s, ok && s != nil
}

// requireSession resolves the caller's session from the X-Session-ID header
// or the session cookie and rejects the request when there is none.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const op = "api.require_session"
		id := sessionID(r, s.cookie)
		if id == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
			return
		}
		sess, err := s.sessions.Session(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func sessionID(r *http.Request, cookie string) string {
	if id := strings.TrimSpace(r.Header.Get(sessionHeader)); id != "" {
		return id
	}
	if c, err := r.Cookie(cookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

// SessionHandler handles login, logout and session inspection.
type SessionHandler struct {
	deps   SessionDependencies
	cookie string
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies, cookie string) *SessionHandler {
	return &SessionHandler{deps: deps, cookie: cookie}
}

// HandleLogin handles POST /session/login requests.
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	var creds session.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid JSON body")))
		return
	}
	sess, err := h.deps.Login(r.Context(), creds)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "validation", WrapKind(op, ErrValidation, err))
			return
		}
		writeFailure(w, op, "", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID, Username: sess.Username})
}

// HandleLogout handles POST /session/logout requests.
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	const op = "api.logout"
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	if err := h.deps.Logout(r.Context(), sess.ID); err != nil {
		writeFailure(w, op, "", err)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: h.cookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSession handles GET /session requests.
func (h *SessionHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind("api.get_session", ErrUnauthorized))
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Username:  sess.Username,
		CreatedAt: sess.CreatedAt,
		Runs:      sess.RunCount(),
	})
}
