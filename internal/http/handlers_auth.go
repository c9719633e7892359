package http

import (
	"net/http"

	"checkin/internal/auth"
	"checkin/internal/core"
)

type loginPage struct {
	Error string
}

// dummyHash is a valid bcrypt hash of a random throwaway string, used to
// equalize timing when the submitted slug does not exist.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, err := s.sessions.FromRequest(r); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", loginPage{})
	case http.MethodPost:
		s.handleLoginSubmit(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	slug := sanitizeInput(r.Form.Get("slug"))
	password := r.Form.Get("password")

	user, err := s.store.GetUserBySlug(r.Context(), slug)
	if err != nil {
		// Burn a bcrypt comparison so missing users cost about the same
		// as wrong passwords.
		_ = auth.CheckPassword(dummyHash, password)
		s.failLogin(w, r, slug)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.failLogin(w, r, slug)
		return
	}

	token, err := s.sessions.Issue(user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "session issue failed", "error", err, "user_id", user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.sessions.SetCookie(w, token)

	s.logger.InfoContext(r.Context(), "login", "user_id", user.ID, "user_slug", user.Slug)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) failLogin(w http.ResponseWriter, r *http.Request, slug string) {
	s.logger.WarnContext(r.Context(), "login rejected", "user_slug", slug, "client_ip", s.ips.ClientIP(r))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	s.render(w, r, "login.html", loginPage{Error: "Wrong name or password."})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if userID, err := s.sessions.FromRequest(r); err == nil {
		s.logger.InfoContext(r.Context(), "logout", "user_id", userID)
	}
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// pageUser is the view-model fragment the nav template needs.
type pageUser struct {
	ID      int64
	Name    string
	IsAdmin bool
}

func (s *Server) pageUser(user core.User) pageUser {
	return pageUser{ID: user.ID, Name: user.Name, IsAdmin: user.Slug == s.adminSlug}
}
