package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	KindScale QuestionKind = "scale"
	KindText  QuestionKind = "text"
)

// Bounds for scale question answers.
const (
	ScaleMin = 1
	ScaleMax = 10
)

type (
	QuestionKind string

	User struct {
		ID           int64
		Name         string
		Slug         string
		PasswordHash string
		CreatedAt    time.Time
	}

	Question struct {
		ID        int64
		Text      string
		Kind      QuestionKind
		CreatedAt time.Time
	}

	// CheckIn is one weekly submission. WeekStart is always a UTC Monday.
	CheckIn struct {
		ID        int64
		UserID    int64
		WeekStart time.Time
		Version   int64
		CreatedAt time.Time
	}

	Answer struct {
		ID         int64
		CheckInID  int64
		QuestionID int64
		Value      string
	}

	// CheckInWithAnswers bundles a check-in with its stored answers.
	CheckInWithAnswers struct {
		CheckIn
		Answers []Answer
	}
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidSlug       = errors.New("invalid slug")
	ErrEmptyQuestionText = errors.New("empty question text")
	ErrInvalidKind       = errors.New("invalid question kind")
	ErrEmptyAnswer       = errors.New("empty answer value")
	ErrScaleOutOfRange   = errors.New("scale answer out of range")
	ErrNotWeekStart      = errors.New("week start is not a Monday")
)

// WeekStart floors t to the Monday of its week, at midnight UTC.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	days := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	monday := t.AddDate(0, 0, -days)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// IsWeekStart reports whether t is a Monday at midnight UTC.
func IsWeekStart(t time.Time) bool {
	return t.Equal(WeekStart(t))
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if !validSlug(u.Slug) {
		return ErrInvalidSlug
	}
	return nil
}

// validSlug accepts short lowercase identifiers: letters, digits, '-'.
func validSlug(s string) bool {
	if len(s) == 0 || len(s) > 50 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '-':
		default:
			return false
		}
	}
	return true
}

func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return ErrEmptyQuestionText
	}
	if len(q.Text) > 255 {
		return errors.New("question text too long (max 255 characters)")
	}
	switch q.Kind {
	case KindScale, KindText:
	default:
		return ErrInvalidKind
	}
	return nil
}

func (c CheckIn) Validate() error {
	if c.UserID <= 0 {
		return errors.New("check-in requires a user")
	}
	if c.WeekStart.IsZero() {
		return errors.New("week start cannot be zero")
	}
	if !IsWeekStart(c.WeekStart) {
		return ErrNotWeekStart
	}
	return nil
}

// ValidateAnswer checks a submitted value against the question kind.
// Callers drop blank values before storing; blanks are rejected here.
func ValidateAnswer(kind QuestionKind, value string) error {
	if strings.TrimSpace(value) == "" {
		return ErrEmptyAnswer
	}
	if len(value) > 2000 {
		return errors.New("answer too long (max 2000 characters)")
	}
	if kind == KindScale {
		if _, ok := ParseScaleValue(value); !ok {
			return ErrScaleOutOfRange
		}
	}
	return nil
}

// ParseScaleValue parses a scale answer, reporting whether it is an
// integer within [ScaleMin, ScaleMax].
func ParseScaleValue(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < ScaleMin || n > ScaleMax {
		return 0, false
	}
	return n, true
}

// AnswerFor returns the stored value for a question, if any.
func (c CheckInWithAnswers) AnswerFor(questionID int64) (string, bool) {
	for _, a := range c.Answers {
		if a.QuestionID == questionID {
			return a.Value, true
		}
	}
	return "", false
}
