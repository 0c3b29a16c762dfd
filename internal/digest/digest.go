package digest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"church-portal/internal/celebrations"
	"church-portal/internal/logging"
	"church-portal/internal/models"
	"church-portal/internal/repositories"
)

// Celebration is one subject whose date recurs inside a window.
type Celebration struct {
	SubjectID string            `json:"subject_id"`
	Name      string            `json:"name"`
	Kind      celebrations.Kind `json:"kind"`
	On        time.Time         `json:"on"`
	Years     int               `json:"years,omitempty"`
}

// Week groups what happens inside one window.
type Week struct {
	Window       celebrations.Window `json:"window"`
	Celebrations []Celebration       `json:"celebrations"`
	Events       []models.Event      `json:"events"`
}

// Weekly is the this-week/next-week view around a reference date.
type Weekly struct {
	Reference time.Time `json:"reference"`
	ThisWeek  Week      `json:"this_week"`
	NextWeek  Week      `json:"next_week"`
}

// Service assembles weekly celebration digests from the directory.
type Service struct {
	members  repositories.MemberRepository
	events   repositories.EventRepository
	week     celebrations.WeekConfig
	renderer *Renderer
	log      *slog.Logger
}

// NewService builds a Service. events may be nil when no event source is
// configured.
func NewService(members repositories.MemberRepository, events repositories.EventRepository, week celebrations.WeekConfig, renderer *Renderer, log *slog.Logger) (*Service, error) {
	if err := week.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		var err error
		if renderer, err = NewRenderer(""); err != nil {
			return nil, err
		}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		members:  members,
		events:   events,
		week:     week,
		renderer: renderer,
		log:      log.With(logging.Module("digest")),
	}, nil
}

// Weekly computes the two windows around ref and fills them.
func (s *Service) Weekly(ctx context.Context, ref time.Time) (Weekly, error) {
	thisWeek := celebrations.CurrentWeek(ref, s.week)
	nextWeek := celebrations.NextWeek(thisWeek)

	members, err := s.members.ListMembers(ctx)
	if err != nil {
		return Weekly{}, fmt.Errorf("list members: %w", err)
	}

	subjects := Subjects(members)
	partition := celebrations.PartitionByWeek(subjects, thisWeek, nextWeek)

	out := Weekly{
		Reference: ref,
		ThisWeek:  Week{Window: thisWeek, Celebrations: collect(partition.ThisWeek, thisWeek)},
		NextWeek:  Week{Window: nextWeek, Celebrations: collect(partition.NextWeek, nextWeek)},
	}

	if s.events != nil {
		events, err := s.events.ListEventsBetween(ctx, thisWeek.Start, nextWeek.End)
		if err != nil {
			return Weekly{}, fmt.Errorf("list events: %w", err)
		}
		for _, e := range events {
			switch {
			case thisWeek.Contains(e.StartsAt):
				out.ThisWeek.Events = append(out.ThisWeek.Events, e)
			case nextWeek.Contains(e.StartsAt):
				out.NextWeek.Events = append(out.NextWeek.Events, e)
			}
		}
	}

	s.log.Debug("weekly digest built",
		slog.Time("window_start", thisWeek.Start),
		slog.Int("this_week", len(out.ThisWeek.Celebrations)),
		slog.Int("next_week", len(out.NextWeek.Celebrations)),
	)
	return out, nil
}

// Render builds the weekly view and renders it as text.
func (s *Service) Render(ctx context.Context, ref time.Time) (string, error) {
	weekly, err := s.Weekly(ctx, ref)
	if err != nil {
		return "", err
	}
	return s.renderer.Render(weekly)
}

// Subjects expands each member into one subject per recorded date.
func Subjects(members []models.Member) []celebrations.Subject {
	subjects := make([]celebrations.Subject, 0, len(members))
	for _, m := range members {
		dates := []struct {
			date *time.Time
			kind celebrations.Kind
		}{
			{m.DateOfBirth, celebrations.KindBirthday},
			{m.MarriageDate, celebrations.KindWeddingAnniversary},
			{m.JoinDate, celebrations.KindChurchJoinAnniversary},
		}
		for _, d := range dates {
			if d.date == nil {
				continue
			}
			subjects = append(subjects, celebrations.Subject{ID: m.ID, Name: m.Name, Date: d.date, Kind: d.kind})
		}
	}
	return subjects
}

// collect resolves each subject's day in w and orders birthdays before
// anniversaries, then by day, then by name.
func collect(subjects []celebrations.Subject, w celebrations.Window) []Celebration {
	out := make([]Celebration, 0, len(subjects))
	for _, s := range subjects {
		on, ok := celebrations.Occurrence(s.Date, w)
		if !ok {
			continue
		}
		c := Celebration{SubjectID: s.ID, Name: s.Name, Kind: s.Kind, On: on}
		if s.Kind.IsAnniversary() {
			c.Years = celebrations.ElapsedYears(*s.Date, on.Year())
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Kind.IsAnniversary() != b.Kind.IsAnniversary() {
			return !a.Kind.IsAnniversary()
		}
		if !a.On.Equal(b.On) {
			return a.On.Before(b.On)
		}
		return a.Name < b.Name
	})
	return out
}
