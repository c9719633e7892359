package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"checkin/internal/core"
)

type checkinListItem struct {
	ID        int64
	WeekStart string
	Answers   int
	IsCurrent bool
}

type dashboardPage struct {
	User            pageUser
	Notice          string
	Streak          int
	CurrentWeekDone bool
	ScaleQuestions  []core.Question
	Selected        int64
	Series          *core.QuestionSeries
	CheckIns        []checkinListItem
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var scaleQuestions []core.Question
	for _, q := range questions {
		if q.Kind == core.KindScale {
			scaleQuestions = append(scaleQuestions, q)
		}
	}

	page := dashboardPage{
		User:           s.pageUser(user),
		ScaleQuestions: scaleQuestions,
	}
	if r.URL.Query().Get("notice") == "couple" {
		page.Notice = "The couple view needs both of you signed up and at least one scale question."
	}

	weeks, err := s.store.WeekStarts(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "week starts lookup failed", "error", err, "user_id", user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	page.Streak = core.Streak(weeks)

	currentWeek := core.WeekStart(time.Now())
	for _, wk := range weeks {
		if wk.Equal(currentWeek) {
			page.CurrentWeekDone = true
			break
		}
	}

	checkins, err := s.store.ListCheckInsWithAnswers(ctx, user.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list check-ins failed", "error", err, "user_id", user.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	for _, c := range checkins {
		page.CheckIns = append(page.CheckIns, checkinListItem{
			ID:        c.ID,
			WeekStart: c.WeekStart.Format("2006-01-02"),
			Answers:   len(c.Answers),
			IsCurrent: c.WeekStart.Equal(currentWeek),
		})
	}

	if q, ok := s.selectedScaleQuestion(r, scaleQuestions); ok {
		page.Selected = q.ID
		series := s.userSeries(user.ID, q, checkins)
		page.Series = &series
	}

	s.render(w, r, "dashboard.html", page)
}

// selectedScaleQuestion resolves the ?question= picker against the scale
// questions, falling back to the first one.
func (s *Server) selectedScaleQuestion(r *http.Request, scaleQuestions []core.Question) (core.Question, bool) {
	if len(scaleQuestions) == 0 {
		return core.Question{}, false
	}
	if v := r.URL.Query().Get("question"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			for _, q := range scaleQuestions {
				if q.ID == id {
					return q, true
				}
			}
		}
	}
	return scaleQuestions[0], true
}

func (s *Server) userSeries(userID int64, q core.Question, checkins []core.CheckInWithAnswers) core.QuestionSeries {
	key := fmt.Sprintf("series:%d:%d", userID, q.ID)
	if cached, ok := s.seriesCache.Get(key); ok {
		return cached
	}
	series := core.BuildSeries(q, checkins)
	s.seriesCache.Set(key, series)
	return series
}

type weekDetailAnswer struct {
	Question string
	IsScale  bool
	Value    string
}

type weekDetailPage struct {
	User      pageUser
	WeekStart string
	Answers   []weekDetailAnswer
}

func (s *Server) handleWeekDetail(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()

	id, err := pathID(r.URL.Path, "/week/")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	checkin, err := s.store.GetCheckIn(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "check-in lookup failed", "error", err, "checkin_id", id)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// Check-ins are private to their author.
	if checkin.UserID != user.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	questionByID := make(map[int64]core.Question, len(questions))
	for _, q := range questions {
		questionByID[q.ID] = q
	}

	page := weekDetailPage{
		User:      s.pageUser(user),
		WeekStart: checkin.WeekStart.Format("2006-01-02"),
	}
	for _, a := range checkin.Answers {
		q, ok := questionByID[a.QuestionID]
		if !ok {
			// Question deleted since this answer was stored.
			continue
		}
		page.Answers = append(page.Answers, weekDetailAnswer{
			Question: q.Text,
			IsScale:  q.Kind == core.KindScale,
			Value:    a.Value,
		})
	}

	s.render(w, r, "week_detail.html", page)
}

type couplePage struct {
	User           pageUser
	ScaleQuestions []core.Question
	Selected       int64
	Series         core.CoupleSeries
}

func (s *Server) handleCouple(w http.ResponseWriter, r *http.Request, user core.User) {
	ctx := r.Context()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list users failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(users) < 2 {
		http.Redirect(w, r, "/dashboard?notice=couple", http.StatusSeeOther)
		return
	}

	questions, err := s.store.ListQuestions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "list questions failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var scaleQuestions []core.Question
	for _, q := range questions {
		if q.Kind == core.KindScale {
			scaleQuestions = append(scaleQuestions, q)
		}
	}
	q, ok := s.selectedScaleQuestion(r, scaleQuestions)
	if !ok {
		http.Redirect(w, r, "/dashboard?notice=couple", http.StatusSeeOther)
		return
	}

	series, err := s.coupleSeries(ctx, q, users)
	if err != nil {
		s.logger.ErrorContext(ctx, "couple series failed", "error", err, "question_id", q.ID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "couple.html", couplePage{
		User:           s.pageUser(user),
		ScaleQuestions: scaleQuestions,
		Selected:       q.ID,
		Series:         series,
	})
}

func (s *Server) coupleSeries(ctx context.Context, q core.Question, users []core.User) (core.CoupleSeries, error) {
	key := fmt.Sprintf("couple:%d", q.ID)
	if cached, ok := s.coupleCache.Get(key); ok {
		return cached, nil
	}

	byUser := make(map[int64][]core.CheckInWithAnswers, len(users))
	for _, u := range users {
		checkins, err := s.store.ListCheckInsWithAnswers(ctx, u.ID)
		if err != nil {
			return core.CoupleSeries{}, fmt.Errorf("list check-ins for user %d: %w", u.ID, err)
		}
		byUser[u.ID] = checkins
	}

	series := core.BuildCoupleSeries(q, users, byUser)
	s.coupleCache.Set(key, series)
	return series, nil
}
