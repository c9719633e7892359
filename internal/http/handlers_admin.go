package http

import (
	"errors"
	"net/http"
	"strconv"

	"checkin/internal/core"
)

type adminQuestionsPage struct {
	User      pageUser
	Questions []core.Question
	Error     string
}

func (s *Server) handleAdminQuestions(w http.ResponseWriter, r *http.Request, user core.User) {
	switch r.Method {
	case http.MethodGet:
		s.renderAdminQuestions(w, r, user, "", http.StatusOK)
	case http.MethodPost:
		s.handleAdminAddQuestion(w, r, user)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderAdminQuestions(w http.ResponseWriter, r *http.Request, user core.User, formError string, status int) {
	questions, err := s.store.ListQuestions(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	s.render(w, r, "admin_questions.html", adminQuestionsPage{
		User:      s.pageUser(user),
		Questions: questions,
		Error:     formError,
	})
}

func (s *Server) handleAdminAddQuestion(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	text := sanitizeInput(r.Form.Get("text"))
	kind := core.QuestionKind(sanitizeInput(r.Form.Get("kind")))

	q, err := s.store.CreateQuestion(ctx, text, kind)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyQuestionText):
			s.renderAdminQuestions(w, r, user, "Question text cannot be empty.", http.StatusUnprocessableEntity)
		case errors.Is(err, core.ErrInvalidKind):
			s.renderAdminQuestions(w, r, user, "Question kind must be scale or text.", http.StatusUnprocessableEntity)
		default:
			s.logger.ErrorContext(ctx, "create question failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	// Fresh questions change what charts can show.
	s.coupleCache.DeletePrefix("couple:")

	s.logger.InfoContext(ctx, "question created", "question_id", q.ID, "kind", string(q.Kind), "user_id", user.ID)
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}

func (s *Server) handleAdminDeleteQuestion(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	id, err := strconv.ParseInt(r.Form.Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.ErrorContext(ctx, "delete question failed", "error", err, "question_id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Deleting a question cascades to stored answers, so every chart
	// derived from it is stale.
	s.seriesCache.DeletePrefix("series:")
	s.coupleCache.DeletePrefix("couple:")

	s.logger.InfoContext(ctx, "question deleted", "question_id", id, "user_id", user.ID)
	http.Redirect(w, r, "/admin/questions", http.StatusSeeOther)
}
