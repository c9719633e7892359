package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"checkin/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "checkin.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, name, slug string) core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, slug, "$2a$10$fakehashfakehashfakehash")
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", slug, err)
	}
	return u
}

func mustQuestion(t *testing.T, repo *SQLiteRepository, text string, kind core.QuestionKind) core.Question {
	t.Helper()
	q, err := repo.CreateQuestion(context.Background(), text, kind)
	if err != nil {
		t.Fatalf("CreateQuestion(%s) error = %v", text, err)
	}
	return q
}

func week(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestUserRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created := mustUser(t, repo, "Mina", "mina")

	bySlug, err := repo.GetUserBySlug(ctx, "mina")
	if err != nil {
		t.Fatalf("GetUserBySlug() error = %v", err)
	}
	if bySlug.ID != created.ID || bySlug.Name != "Mina" {
		t.Fatalf("GetUserBySlug() = %+v, want id=%d name=Mina", bySlug, created.ID)
	}

	if _, err := repo.GetUserBySlug(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetUserBySlug(nobody) = %v, want ErrNotFound", err)
	}

	// slug is unique
	if _, err := repo.CreateUser(ctx, "Other", "mina", "hash"); err == nil {
		t.Fatal("expected error for duplicate slug")
	}

	mustUser(t, repo, "Tema", "tema")
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 || users[0].Slug != "mina" || users[1].Slug != "tema" {
		t.Fatalf("ListUsers() = %+v, want mina then tema", users)
	}
}

func TestQuestionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	q1 := mustQuestion(t, repo, "How close did you feel this week? (1-10)", core.KindScale)
	mustQuestion(t, repo, "What are you thankful for?", core.KindText)

	questions, err := repo.ListQuestions(ctx)
	if err != nil {
		t.Fatalf("ListQuestions() error = %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("ListQuestions() len = %d, want 2", len(questions))
	}

	first, err := repo.FirstScaleQuestion(ctx)
	if err != nil {
		t.Fatalf("FirstScaleQuestion() error = %v", err)
	}
	if first.ID != q1.ID {
		t.Fatalf("FirstScaleQuestion() id = %d, want %d", first.ID, q1.ID)
	}

	if _, err := repo.CreateQuestion(ctx, "bad", "rating"); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestFirstScaleQuestionMissing(t *testing.T) {
	repo := newTestRepo(t)
	mustQuestion(t, repo, "text only", core.KindText)

	if _, err := repo.FirstScaleQuestion(context.Background()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("FirstScaleQuestion() = %v, want ErrNotFound", err)
	}
}

func TestUpsertCheckIn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustUser(t, repo, "Mina", "mina")
	q1 := mustQuestion(t, repo, "Closeness (1-10)", core.KindScale)
	q2 := mustQuestion(t, repo, "Thanks for?", core.KindText)

	monday := week(2025, 6, 2)

	c, err := repo.UpsertCheckIn(ctx, u.ID, monday, map[int64]string{
		q1.ID: "8",
		q2.ID: "the walk on Sunday",
	})
	if err != nil {
		t.Fatalf("UpsertCheckIn() error = %v", err)
	}
	if c.Version != 1 {
		t.Fatalf("Version = %d, want 1 on first submit", c.Version)
	}

	got, err := repo.GetCheckIn(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCheckIn() error = %v", err)
	}
	if !got.WeekStart.Equal(monday) {
		t.Fatalf("WeekStart = %v, want %v", got.WeekStart, monday)
	}
	if len(got.Answers) != 2 {
		t.Fatalf("answers = %d, want 2", len(got.Answers))
	}

	// Resubmitting the same week replaces answers, keeps one row
	c2, err := repo.UpsertCheckIn(ctx, u.ID, monday, map[int64]string{q1.ID: "5"})
	if err != nil {
		t.Fatalf("UpsertCheckIn() resubmit error = %v", err)
	}
	if c2.ID != c.ID {
		t.Fatalf("resubmit created new check-in %d, want reuse of %d", c2.ID, c.ID)
	}
	if c2.Version != 2 {
		t.Fatalf("Version = %d, want 2 after resubmit", c2.Version)
	}

	got, err = repo.GetCheckIn(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetCheckIn() after resubmit error = %v", err)
	}
	if len(got.Answers) != 1 {
		t.Fatalf("answers after resubmit = %d, want 1", len(got.Answers))
	}
	if v, _ := got.AnswerFor(q1.ID); v != "5" {
		t.Fatalf("answer = %q, want 5", v)
	}

	checkins, err := repo.ListCheckIns(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListCheckIns() error = %v", err)
	}
	if len(checkins) != 1 {
		t.Fatalf("check-ins = %d, want 1 after resubmit", len(checkins))
	}
}

func TestUpsertCheckInRejectsNonMonday(t *testing.T) {
	repo := newTestRepo(t)
	u := mustUser(t, repo, "Mina", "mina")

	tuesday := week(2025, 6, 3)
	if _, err := repo.UpsertCheckIn(context.Background(), u.ID, tuesday, nil); err == nil {
		t.Fatal("expected error for non-Monday week start")
	}
}

func TestListCheckInsOrderAndLatest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustUser(t, repo, "Mina", "mina")
	q := mustQuestion(t, repo, "Closeness", core.KindScale)

	for i, wk := range []time.Time{week(2025, 6, 2), week(2025, 6, 16), week(2025, 6, 9)} {
		if _, err := repo.UpsertCheckIn(ctx, u.ID, wk, map[int64]string{q.ID: "5"}); err != nil {
			t.Fatalf("UpsertCheckIn(%d) error = %v", i, err)
		}
	}

	checkins, err := repo.ListCheckIns(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListCheckIns() error = %v", err)
	}
	if len(checkins) != 3 {
		t.Fatalf("len = %d, want 3", len(checkins))
	}
	if !checkins[0].WeekStart.Equal(week(2025, 6, 16)) {
		t.Fatalf("first = %v, want newest week", checkins[0].WeekStart)
	}

	latest, err := repo.LatestCheckIn(ctx, u.ID)
	if err != nil {
		t.Fatalf("LatestCheckIn() error = %v", err)
	}
	if !latest.WeekStart.Equal(week(2025, 6, 16)) {
		t.Fatalf("LatestCheckIn() week = %v, want 2025-06-16", latest.WeekStart)
	}

	weeks, err := repo.WeekStarts(ctx, u.ID)
	if err != nil {
		t.Fatalf("WeekStarts() error = %v", err)
	}
	if len(weeks) != 3 || !weeks[0].Equal(week(2025, 6, 2)) {
		t.Fatalf("WeekStarts() = %v, want ascending from 2025-06-02", weeks)
	}
}

func TestLatestCheckInEmpty(t *testing.T) {
	repo := newTestRepo(t)
	u := mustUser(t, repo, "Mina", "mina")

	if _, err := repo.LatestCheckIn(context.Background(), u.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("LatestCheckIn() = %v, want ErrNotFound", err)
	}
}

func TestCascadeDeletes(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustUser(t, repo, "Mina", "mina")
	q := mustQuestion(t, repo, "Closeness", core.KindScale)

	c, err := repo.UpsertCheckIn(ctx, u.ID, week(2025, 6, 2), map[int64]string{q.ID: "8"})
	if err != nil {
		t.Fatalf("UpsertCheckIn() error = %v", err)
	}

	t.Run("question delete cascades answers", func(t *testing.T) {
		if err := repo.DeleteQuestion(ctx, q.ID); err != nil {
			t.Fatalf("DeleteQuestion() error = %v", err)
		}
		got, err := repo.GetCheckIn(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetCheckIn() error = %v", err)
		}
		if len(got.Answers) != 0 {
			t.Fatalf("answers = %d, want 0 after question delete", len(got.Answers))
		}
	})

	t.Run("user delete cascades check-ins", func(t *testing.T) {
		if err := repo.DeleteUser(ctx, u.ID); err != nil {
			t.Fatalf("DeleteUser() error = %v", err)
		}
		if _, err := repo.GetCheckIn(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("GetCheckIn() after user delete = %v, want ErrNotFound", err)
		}
	})
}

func TestExportQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustUser(t, repo, "Mina", "mina")
	q := mustQuestion(t, repo, "Closeness (1-10)", core.KindScale)

	c, err := repo.UpsertCheckIn(ctx, u.ID, week(2025, 6, 2), map[int64]string{q.ID: "8"})
	if err != nil {
		t.Fatalf("UpsertCheckIn() error = %v", err)
	}

	pending, err := repo.ListPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExports() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != c.ID {
		t.Fatalf("pending = %+v, want single entry for %d", pending, c.ID)
	}

	exportRows, err := repo.GetExportRows(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetExportRows() error = %v", err)
	}
	if len(exportRows) != 1 {
		t.Fatalf("rows = %d, want 1", len(exportRows))
	}
	er := exportRows[0]
	if er.UserName != "Mina" || er.WeekStart != "2025-06-02" || er.Value != "8" {
		t.Fatalf("export row = %+v", er)
	}

	if err := repo.MarkExported(ctx, c.ID); err != nil {
		t.Fatalf("MarkExported() error = %v", err)
	}
	pending, err = repo.ListPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExports() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after export = %d, want 0", len(pending))
	}

	// Resubmission resets export state to pending
	if _, err := repo.UpsertCheckIn(ctx, u.ID, week(2025, 6, 2), map[int64]string{q.ID: "9"}); err != nil {
		t.Fatalf("UpsertCheckIn() resubmit error = %v", err)
	}
	pending, err = repo.ListPendingExports(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExports() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending after resubmit = %d, want 1", len(pending))
	}

	if err := repo.MarkExportError(ctx, c.ID); err != nil {
		t.Fatalf("MarkExportError() error = %v", err)
	}
	if err := repo.MarkExported(ctx, 99999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("MarkExported(unknown) = %v, want ErrNotFound", err)
	}
}
