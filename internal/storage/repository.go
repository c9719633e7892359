package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"checkin/internal/core"

	_ "modernc.org/sqlite"
)

const weekFormat = "2006-01-02"

// Export states for check-ins (advisory only; the app never depends on them).
const (
	ExportPending = "pending"
	ExportDone    = "exported"
	ExportError   = "error"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks database reachability (used by the readiness endpoint).
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- users ---

func (r *SQLiteRepository) CreateUser(ctx context.Context, name, slug, passwordHash string) (core.User, error) {
	u := core.User{Name: name, Slug: slug, PasswordHash: passwordHash}
	if err := u.Validate(); err != nil {
		return core.User{}, fmt.Errorf("validate user: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (name, slug, password_hash) VALUES (?, ?, ?)`,
		name, slug, passwordHash)
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user insert id: %w", err)
	}

	slog.InfoContext(ctx, "User created", "id", id, "slug", slug)
	return r.GetUserByID(ctx, id)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *SQLiteRepository) GetUserBySlug(ctx context.Context, slug string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, slug, password_hash, created_at FROM users WHERE slug = ?`, slug)
	return scanUser(row)
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, slug, password_hash, created_at FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user; check-ins and answers cascade.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete user %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// --- questions ---

func (r *SQLiteRepository) CreateQuestion(ctx context.Context, text string, kind core.QuestionKind) (core.Question, error) {
	q := core.Question{Text: text, Kind: kind}
	if err := q.Validate(); err != nil {
		return core.Question{}, fmt.Errorf("validate question: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO questions (text, kind) VALUES (?, ?)`, text, string(kind))
	if err != nil {
		return core.Question{}, fmt.Errorf("create question: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Question{}, fmt.Errorf("question insert id: %w", err)
	}

	slog.InfoContext(ctx, "Question created", "id", id, "kind", kind)
	return r.GetQuestion(ctx, id)
}

func (r *SQLiteRepository) GetQuestion(ctx context.Context, id int64) (core.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, text, kind, created_at FROM questions WHERE id = ?`, id)
	return scanQuestion(row)
}

func (r *SQLiteRepository) ListQuestions(ctx context.Context) ([]core.Question, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, text, kind, created_at FROM questions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	var questions []core.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// FirstScaleQuestion returns the lowest-ID scale question, the default
// subject for trend charts.
func (r *SQLiteRepository) FirstScaleQuestion(ctx context.Context) (core.Question, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, text, kind, created_at FROM questions WHERE kind = 'scale' ORDER BY id ASC LIMIT 1`)
	return scanQuestion(row)
}

// DeleteQuestion removes a question; its answers cascade.
func (r *SQLiteRepository) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete question %d: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Question deleted", "id", id)
	return nil
}

// --- check-ins ---

// UpsertCheckIn writes a check-in and its answers in one transaction.
// A resubmission for the same (user, week) replaces the stored answers,
// bumps the version, and resets the export state to pending.
func (r *SQLiteRepository) UpsertCheckIn(ctx context.Context, userID int64, weekStart time.Time, answers map[int64]string) (core.CheckIn, error) {
	c := core.CheckIn{UserID: userID, WeekStart: weekStart}
	if err := c.Validate(); err != nil {
		return core.CheckIn{}, fmt.Errorf("validate check-in: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.CheckIn{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	week := weekStart.Format(weekFormat)

	var (
		id      int64
		version int64 = 1
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM check_ins WHERE user_id = ? AND week_start = ?`, userID, week).Scan(&id, &version)
	switch {
	case err == nil:
		// Same week submitted again: replace answers, bump version
		if _, err := tx.ExecContext(ctx, `DELETE FROM answers WHERE checkin_id = ?`, id); err != nil {
			return core.CheckIn{}, fmt.Errorf("clear previous answers: %w", err)
		}
		version++
		if _, err := tx.ExecContext(ctx,
			`UPDATE check_ins SET version = ?, export_state = ? WHERE id = ?`,
			version, ExportPending, id); err != nil {
			return core.CheckIn{}, fmt.Errorf("bump check-in version: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO check_ins (user_id, week_start) VALUES (?, ?)`, userID, week)
		if err != nil {
			return core.CheckIn{}, fmt.Errorf("create check-in: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return core.CheckIn{}, fmt.Errorf("check-in insert id: %w", err)
		}
	default:
		return core.CheckIn{}, fmt.Errorf("find existing check-in: %w", err)
	}

	for questionID, value := range answers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO answers (checkin_id, question_id, value) VALUES (?, ?, ?)`,
			id, questionID, value); err != nil {
			return core.CheckIn{}, fmt.Errorf("store answer for question %d: %w", questionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.CheckIn{}, fmt.Errorf("commit check-in: %w", err)
	}

	slog.InfoContext(ctx, "Check-in saved",
		"id", id,
		"user_id", userID,
		"week_start", week,
		"version", version,
		"answer_count", len(answers))

	return core.CheckIn{ID: id, UserID: userID, WeekStart: weekStart, Version: version}, nil
}

func (r *SQLiteRepository) GetCheckIn(ctx context.Context, id int64) (core.CheckInWithAnswers, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start, version, created_at FROM check_ins WHERE id = ?`, id)
	c, err := scanCheckIn(row)
	if err != nil {
		return core.CheckInWithAnswers{}, err
	}

	answers, err := r.listAnswers(ctx, id)
	if err != nil {
		return core.CheckInWithAnswers{}, err
	}
	return core.CheckInWithAnswers{CheckIn: c, Answers: answers}, nil
}

// ListCheckIns returns a user's check-ins newest week first, without answers.
func (r *SQLiteRepository) ListCheckIns(ctx context.Context, userID int64) ([]core.CheckIn, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, week_start, version, created_at FROM check_ins
		 WHERE user_id = ? ORDER BY week_start DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	var checkins []core.CheckIn
	for rows.Next() {
		c, err := scanCheckIn(rows)
		if err != nil {
			return nil, err
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}

// ListCheckInsWithAnswers loads a user's full history for series assembly.
func (r *SQLiteRepository) ListCheckInsWithAnswers(ctx context.Context, userID int64) ([]core.CheckInWithAnswers, error) {
	checkins, err := r.ListCheckIns(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(checkins) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.checkin_id, a.question_id, a.value
		 FROM answers a JOIN check_ins c ON c.id = a.checkin_id
		 WHERE c.user_id = ? ORDER BY a.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	byCheckIn := make(map[int64][]core.Answer)
	for rows.Next() {
		var a core.Answer
		if err := rows.Scan(&a.ID, &a.CheckInID, &a.QuestionID, &a.Value); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		byCheckIn[a.CheckInID] = append(byCheckIn[a.CheckInID], a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate answers: %w", err)
	}

	result := make([]core.CheckInWithAnswers, len(checkins))
	for i, c := range checkins {
		result[i] = core.CheckInWithAnswers{CheckIn: c, Answers: byCheckIn[c.ID]}
	}
	return result, nil
}

// LatestCheckIn returns the user's most recent check-in with answers,
// used to prefill the weekly form.
func (r *SQLiteRepository) LatestCheckIn(ctx context.Context, userID int64) (core.CheckInWithAnswers, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, week_start, version, created_at FROM check_ins
		 WHERE user_id = ? ORDER BY week_start DESC LIMIT 1`, userID)
	c, err := scanCheckIn(row)
	if err != nil {
		return core.CheckInWithAnswers{}, err
	}
	answers, err := r.listAnswers(ctx, c.ID)
	if err != nil {
		return core.CheckInWithAnswers{}, err
	}
	return core.CheckInWithAnswers{CheckIn: c, Answers: answers}, nil
}

// WeekStarts returns the distinct weeks a user has checked in, ascending.
func (r *SQLiteRepository) WeekStarts(ctx context.Context, userID int64) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT week_start FROM check_ins WHERE user_id = ? ORDER BY week_start ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list week starts: %w", err)
	}
	defer rows.Close()

	var weeks []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan week start: %w", err)
		}
		w, err := time.ParseInLocation(weekFormat, raw, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse week start %q: %w", raw, err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

func (r *SQLiteRepository) listAnswers(ctx context.Context, checkinID int64) ([]core.Answer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, checkin_id, question_id, value FROM answers
		 WHERE checkin_id = ? ORDER BY question_id ASC`, checkinID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []core.Answer
	for rows.Next() {
		var a core.Answer
		if err := rows.Scan(&a.ID, &a.CheckInID, &a.QuestionID, &a.Value); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// --- export queue ---

// PendingExport identifies a check-in awaiting export.
type PendingExport struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

// ExportRow is one exported spreadsheet row: a single answer with its
// surrounding context resolved.
type ExportRow struct {
	CheckInID    int64
	UserName     string
	WeekStart    string
	QuestionText string
	QuestionKind string
	Value        string
}

// ListPendingExports returns check-ins whose export is still pending.
func (r *SQLiteRepository) ListPendingExports(ctx context.Context, limit int) ([]PendingExport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, version, created_at FROM check_ins
		 WHERE export_state = ? ORDER BY id ASC LIMIT ?`, ExportPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending exports: %w", err)
	}
	defer rows.Close()

	var pending []PendingExport
	for rows.Next() {
		var p PendingExport
		var created string
		if err := rows.Scan(&p.ID, &p.Version, &created); err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		p.CreatedAt = parseTimestamp(created)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// GetExportRows resolves a check-in into spreadsheet rows (one per answer).
func (r *SQLiteRepository) GetExportRows(ctx context.Context, checkinID int64) ([]ExportRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, u.name, c.week_start, q.text, q.kind, a.value
		 FROM answers a
		 JOIN check_ins c ON c.id = a.checkin_id
		 JOIN users u ON u.id = c.user_id
		 JOIN questions q ON q.id = a.question_id
		 WHERE c.id = ? ORDER BY q.id ASC`, checkinID)
	if err != nil {
		return nil, fmt.Errorf("get export rows: %w", err)
	}
	defer rows.Close()

	var result []ExportRow
	for rows.Next() {
		var er ExportRow
		if err := rows.Scan(&er.CheckInID, &er.UserName, &er.WeekStart, &er.QuestionText, &er.QuestionKind, &er.Value); err != nil {
			return nil, fmt.Errorf("scan export row: %w", err)
		}
		result = append(result, er)
	}
	return result, rows.Err()
}

// MarkExported marks a check-in as successfully exported
func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64) error {
	if err := r.setExportState(ctx, id, ExportDone); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Check-in marked as exported", "id", id)
	return nil
}

// MarkExportError marks a check-in as having export errors
func (r *SQLiteRepository) MarkExportError(ctx context.Context, id int64) error {
	if err := r.setExportState(ctx, id, ExportError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Check-in marked with export error", "id", id)
	return nil
}

func (r *SQLiteRepository) setExportState(ctx context.Context, id int64, state string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE check_ins SET export_state = ? WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("set export state: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set export state for %d: %w", id, core.ErrNotFound)
	}
	return nil
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (core.User, error) {
	var u core.User
	var created string
	err := row.Scan(&u.ID, &u.Name, &u.Slug, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = parseTimestamp(created)
	return u, nil
}

func scanQuestion(row rowScanner) (core.Question, error) {
	var q core.Question
	var kind, created string
	err := row.Scan(&q.ID, &q.Text, &kind, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Question{}, fmt.Errorf("question: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Question{}, fmt.Errorf("scan question: %w", err)
	}
	q.Kind = core.QuestionKind(kind)
	q.CreatedAt = parseTimestamp(created)
	return q, nil
}

func scanCheckIn(row rowScanner) (core.CheckIn, error) {
	var c core.CheckIn
	var week, created string
	err := row.Scan(&c.ID, &c.UserID, &week, &c.Version, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CheckIn{}, fmt.Errorf("check-in: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.CheckIn{}, fmt.Errorf("scan check-in: %w", err)
	}
	c.WeekStart, err = time.ParseInLocation(weekFormat, week, time.UTC)
	if err != nil {
		return core.CheckIn{}, fmt.Errorf("parse week start %q: %w", week, err)
	}
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

// parseTimestamp handles SQLite CURRENT_TIMESTAMP values. A zero time is
// returned for anything unparsable; created_at is informational only.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}
