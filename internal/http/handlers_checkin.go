package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"checkin/internal/core"
)

type checkinQuestion struct {
	ID      int64
	Text    string
	IsScale bool
	Value   string
}

type checkinPage struct {
	User      pageUser
	WeekStart string
	Questions []checkinQuestion
	Revisit   bool
	Error     string
	ScaleMin  int
	ScaleMax  int
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request, user core.User) {
	switch r.Method {
	case http.MethodGet:
		s.renderCheckInForm(w, r, user, "")
	case http.MethodPost:
		s.handleCheckInSubmit(w, r, user)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderCheckInForm(w http.ResponseWriter, r *http.Request, user core.User, formError string) {
	ctx := r.Context()
	week := core.WeekStart(time.Now())

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	page := checkinPage{
		User:      s.pageUser(user),
		WeekStart: week.Format("2006-01-02"),
		Error:     formError,
		ScaleMin:  core.ScaleMin,
		ScaleMax:  core.ScaleMax,
	}

	// Prefill from the most recent submission; answers rarely swing
	// week to week, so last week's values are a useful starting point.
	existing, err := s.store.LatestCheckIn(ctx, user.ID)
	hasLatest := err == nil
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		s.logger.ErrorContext(ctx, "latest check-in lookup failed", "error", err, "user_id", user.ID)
	}
	page.Revisit = hasLatest && existing.WeekStart.Equal(week)

	for _, q := range questions {
		cq := checkinQuestion{ID: q.ID, Text: q.Text, IsScale: q.Kind == core.KindScale}
		if hasLatest {
			if v, ok := existing.AnswerFor(q.ID); ok {
				cq.Value = v
			}
		}
		page.Questions = append(page.Questions, cq)
	}

	if formError != "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	s.render(w, r, "checkin.html", page)
}

func (s *Server) handleCheckInSubmit(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	submitted := make(map[int64]string, len(questions))
	for _, q := range questions {
		submitted[q.ID] = sanitizeInput(r.Form.Get("q_" + strconv.FormatInt(q.ID, 10)))
	}

	week := core.WeekStart(time.Now())
	checkin, err := s.checkins.Record(ctx, user.ID, week, questions, submitted)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrScaleOutOfRange):
			s.renderCheckInForm(w, r, user, fmt.Sprintf("Scale answers must be between %d and %d.", core.ScaleMin, core.ScaleMax))
		case errors.Is(err, core.ErrEmptyAnswer):
			s.renderCheckInForm(w, r, user, "Answers cannot be empty.")
		default:
			s.logger.ErrorContext(ctx, "check-in record failed", "error", err, "user_id", user.ID)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	s.invalidateSeries(user.ID)

	s.logger.InfoContext(ctx, "check-in recorded",
		"checkin_id", checkin.ID,
		"user_id", user.ID,
		"week_start", week.Format("2006-01-02"))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// invalidateSeries drops cached chart data derived from this user's
// answers, including every couple series.
func (s *Server) invalidateSeries(userID int64) {
	s.seriesCache.DeletePrefix(fmt.Sprintf("series:%d:", userID))
	s.coupleCache.DeletePrefix("couple:")
}
