package core

import (
	"testing"
	"time"
)

func scaleQ() Question {
	return Question{ID: 1, Text: "How close did you feel this week? (1-10)", Kind: KindScale}
}

func checkinWith(userID int64, week time.Time, answers ...Answer) CheckInWithAnswers {
	return CheckInWithAnswers{
		CheckIn: CheckIn{UserID: userID, WeekStart: week},
		Answers: answers,
	}
}

func TestBuildSeries(t *testing.T) {
	q := scaleQ()
	checkins := []CheckInWithAnswers{
		checkinWith(1, monday(2025, 6, 9), Answer{QuestionID: 1, Value: "8"}),
		checkinWith(1, monday(2025, 6, 2), Answer{QuestionID: 1, Value: "6"}),
		checkinWith(1, monday(2025, 6, 16)), // no answer for q, skipped
		checkinWith(1, monday(2025, 6, 23), Answer{QuestionID: 1, Value: "not a number"}),
	}

	s := BuildSeries(q, checkins)

	wantLabels := []string{"2025-06-02", "2025-06-09", "2025-06-23"}
	if len(s.Labels) != len(wantLabels) {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if s.Labels[i] != l {
			t.Fatalf("label[%d] = %q, want %q", i, s.Labels[i], l)
		}
	}
	if len(s.Values) != len(s.Labels) {
		t.Fatalf("values and labels not parallel: %d vs %d", len(s.Values), len(s.Labels))
	}
	if s.Values[0] == nil || *s.Values[0] != 6 {
		t.Fatalf("values[0] = %v, want 6", s.Values[0])
	}
	if s.Values[1] == nil || *s.Values[1] != 8 {
		t.Fatalf("values[1] = %v, want 8", s.Values[1])
	}
	if s.Values[2] != nil {
		t.Fatalf("values[2] = %v, want nil for unparsable answer", *s.Values[2])
	}
}

func TestBuildSeriesEmpty(t *testing.T) {
	s := BuildSeries(scaleQ(), nil)
	if len(s.Labels) != 0 || len(s.Values) != 0 {
		t.Fatalf("expected empty series, got %v / %v", s.Labels, s.Values)
	}
}

func TestBuildCoupleSeries(t *testing.T) {
	q := scaleQ()
	users := []User{
		{ID: 1, Name: "Mina"},
		{ID: 2, Name: "Tema"},
	}
	byUser := map[int64][]CheckInWithAnswers{
		1: {
			checkinWith(1, monday(2025, 6, 2), Answer{QuestionID: 1, Value: "7"}),
			checkinWith(1, monday(2025, 6, 9), Answer{QuestionID: 1, Value: "8"}),
		},
		2: {
			checkinWith(2, monday(2025, 6, 9), Answer{QuestionID: 1, Value: "5"}),
			checkinWith(2, monday(2025, 6, 16), Answer{QuestionID: 1, Value: "6"}),
		},
	}

	s := BuildCoupleSeries(q, users, byUser)

	wantLabels := []string{"2025-06-02", "2025-06-09", "2025-06-16"}
	if len(s.Labels) != 3 {
		t.Fatalf("labels = %v, want %v", s.Labels, wantLabels)
	}
	for i, l := range wantLabels {
		if s.Labels[i] != l {
			t.Fatalf("label[%d] = %q, want %q", i, s.Labels[i], l)
		}
	}
	if len(s.Users) != 2 {
		t.Fatalf("expected 2 user series, got %d", len(s.Users))
	}
	for _, us := range s.Users {
		if len(us.Values) != len(s.Labels) {
			t.Fatalf("series for %s not aligned: %d values, %d labels", us.Name, len(us.Values), len(s.Labels))
		}
	}

	mina := s.Users[0]
	if mina.Values[0] == nil || *mina.Values[0] != 7 {
		t.Fatalf("mina week 1 = %v, want 7", mina.Values[0])
	}
	if mina.Values[2] != nil {
		t.Fatal("mina week 3 should be nil (no check-in)")
	}

	tema := s.Users[1]
	if tema.Values[0] != nil {
		t.Fatal("tema week 1 should be nil (no check-in)")
	}
	if tema.Values[2] == nil || *tema.Values[2] != 6 {
		t.Fatalf("tema week 3 = %v, want 6", tema.Values[2])
	}
}
