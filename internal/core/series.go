package core

import (
	"sort"
	"time"
)

// weekLabel is the label format used on chart axes.
const weekLabel = "2006-01-02"

// QuestionSeries holds one user's answers to a scale question as parallel
// arrays ready for charting. Values are nil where the stored answer could
// not be parsed as a scale value.
type QuestionSeries struct {
	Question Question
	Labels   []string
	Values   []*int
}

// UserSeries is one user's value column in a couple comparison chart.
type UserSeries struct {
	Name   string
	Values []*int
}

// CoupleSeries aligns every user's answers to a scale question over the
// union of all recorded weeks. Each Values slice has len(Labels) entries.
type CoupleSeries struct {
	Question Question
	Labels   []string
	Users    []UserSeries
}

// BuildSeries assembles a single user's answer series for q, ordered by
// week. Check-ins without an answer for q are skipped entirely; answered
// weeks with unparsable values chart as nil.
func BuildSeries(q Question, checkins []CheckInWithAnswers) QuestionSeries {
	s := QuestionSeries{Question: q}

	sorted := make([]CheckInWithAnswers, len(checkins))
	copy(sorted, checkins)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WeekStart.Before(sorted[j].WeekStart)
	})

	for _, c := range sorted {
		raw, ok := c.AnswerFor(q.ID)
		if !ok {
			continue
		}
		s.Labels = append(s.Labels, c.WeekStart.Format(weekLabel))
		if n, ok := ParseScaleValue(raw); ok {
			v := n
			s.Values = append(s.Values, &v)
		} else {
			s.Values = append(s.Values, nil)
		}
	}
	return s
}

// BuildCoupleSeries assembles the comparison chart for q across users.
// Labels cover the union of all users' weeks; missing weeks chart as nil
// so every user's column stays aligned with the labels.
func BuildCoupleSeries(q Question, users []User, byUser map[int64][]CheckInWithAnswers) CoupleSeries {
	s := CoupleSeries{Question: q}

	weekSet := make(map[time.Time]struct{})
	for _, checkins := range byUser {
		for _, c := range checkins {
			weekSet[c.WeekStart] = struct{}{}
		}
	}
	weeks := make([]time.Time, 0, len(weekSet))
	for w := range weekSet {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	for _, w := range weeks {
		s.Labels = append(s.Labels, w.Format(weekLabel))
	}

	for _, u := range users {
		byWeek := make(map[time.Time]*int)
		for _, c := range byUser[u.ID] {
			raw, ok := c.AnswerFor(q.ID)
			if !ok {
				continue
			}
			if n, ok := ParseScaleValue(raw); ok {
				v := n
				byWeek[c.WeekStart] = &v
			} else {
				byWeek[c.WeekStart] = nil
			}
		}
		values := make([]*int, len(weeks))
		for i, w := range weeks {
			values[i] = byWeek[w]
		}
		s.Users = append(s.Users, UserSeries{Name: u.Name, Values: values})
	}
	return s
}
