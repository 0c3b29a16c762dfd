package digest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"church-portal/internal/celebrations"
	"church-portal/internal/mocks"
	"church-portal/internal/models"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

var sundayWeek = celebrations.WeekConfig{StartDay: time.Sunday, Location: time.UTC}

func testMembers() []models.Member {
	return []models.Member{
		{ID: "a", Name: "Asha", DateOfBirth: day(1990, time.June, 14)},
		{ID: "b", Name: "Ben", DateOfBirth: day(1970, time.January, 3), MarriageDate: day(2000, time.June, 10)},
		{ID: "c", Name: "Chidi", JoinDate: day(2010, time.June, 18)},
		{ID: "d", Name: "Dana", DateOfBirth: day(1985, time.June, 10)},
		{ID: "e", Name: "Eli"},
	}
}

func TestSubjectsExpandsRecordedDates(t *testing.T) {
	subjects := Subjects(testMembers())

	require.Len(t, subjects, 5)
	assert.Equal(t, celebrations.KindBirthday, subjects[1].Kind)
	assert.Equal(t, "b", subjects[2].ID)
	assert.Equal(t, celebrations.KindWeddingAnniversary, subjects[2].Kind)
	assert.Equal(t, celebrations.KindChurchJoinAnniversary, subjects[3].Kind)
}

func TestWeeklyPartitionsAndSorts(t *testing.T) {
	members := new(mocks.MemberRepositoryMock)
	events := new(mocks.EventRepositoryMock)
	svc, err := NewService(members, events, sundayWeek, nil, nil)
	require.NoError(t, err)

	members.On("ListMembers", mock.Anything).Return(testMembers(), nil).Once()
	events.On("ListEventsBetween", mock.Anything,
		time.Date(2024, time.June, 9, 0, 0, 0, 0, time.UTC),
		mock.AnythingOfType("time.Time"),
	).Return([]models.Event{
		{ID: "e1", Title: "Choir practice", StartsAt: time.Date(2024, time.June, 13, 19, 0, 0, 0, time.UTC)},
		{ID: "e2", Title: "Picnic", Location: "Park", StartsAt: time.Date(2024, time.June, 22, 12, 0, 0, 0, time.UTC)},
	}, nil).Once()

	weekly, err := svc.Weekly(context.Background(), time.Date(2024, time.June, 12, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	this := weekly.ThisWeek.Celebrations
	require.Len(t, this, 3)
	assert.Equal(t, "Dana", this[0].Name)
	assert.Equal(t, "Asha", this[1].Name)
	assert.Equal(t, "Ben", this[2].Name)
	assert.Equal(t, celebrations.KindWeddingAnniversary, this[2].Kind)
	assert.Equal(t, 24, this[2].Years)
	assert.Zero(t, this[0].Years)

	next := weekly.NextWeek.Celebrations
	require.Len(t, next, 1)
	assert.Equal(t, "Chidi", next[0].Name)
	assert.Equal(t, 14, next[0].Years)
	assert.Equal(t, time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC), next[0].On)

	require.Len(t, weekly.ThisWeek.Events, 1)
	assert.Equal(t, "e1", weekly.ThisWeek.Events[0].ID)
	require.Len(t, weekly.NextWeek.Events, 1)
	assert.Equal(t, "e2", weekly.NextWeek.Events[0].ID)

	members.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestWeeklyAnniversaryAcrossYearBoundary(t *testing.T) {
	members := new(mocks.MemberRepositoryMock)
	svc, err := NewService(members, nil, sundayWeek, nil, nil)
	require.NoError(t, err)

	members.On("ListMembers", mock.Anything).Return([]models.Member{
		{ID: "f", Name: "Faith", MarriageDate: day(2014, time.January, 2)},
	}, nil).Once()

	// Sunday Dec 29 2024 - Saturday Jan 4 2025.
	weekly, err := svc.Weekly(context.Background(), time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Len(t, weekly.ThisWeek.Celebrations, 1)
	assert.Equal(t, 11, weekly.ThisWeek.Celebrations[0].Years)
}

func TestWeeklyMemberError(t *testing.T) {
	members := new(mocks.MemberRepositoryMock)
	svc, err := NewService(members, nil, sundayWeek, nil, nil)
	require.NoError(t, err)

	members.On("ListMembers", mock.Anything).Return(nil, assert.AnError).Once()

	_, err = svc.Weekly(context.Background(), time.Now())
	require.ErrorIs(t, err, assert.AnError)
}

func TestNewServiceRejectsBadWeek(t *testing.T) {
	_, err := NewService(new(mocks.MemberRepositoryMock), nil, celebrations.WeekConfig{StartDay: time.Friday}, nil, nil)
	require.ErrorIs(t, err, celebrations.ErrInvalidStartDay)
}

func TestRenderDefaultTemplate(t *testing.T) {
	members := new(mocks.MemberRepositoryMock)
	svc, err := NewService(members, nil, sundayWeek, nil, nil)
	require.NoError(t, err)
	members.On("ListMembers", mock.Anything).Return(testMembers(), nil).Once()

	text, err := svc.Render(context.Background(), time.Date(2024, time.June, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Contains(t, text, "Week of Sun Jun 9 - Sat Jun 15")
	assert.Contains(t, text, "- Mon Jun 10: Dana birthday")
	assert.Contains(t, text, "- Mon Jun 10: Ben wedding anniversary (24 years)")
	assert.Contains(t, text, "- Tue Jun 18: Chidi church anniversary (14 years)")
}

func TestRenderCustomTemplate(t *testing.T) {
	renderer, err := NewRenderer(`{{ this_week.celebrations.size }}/{{ next_week.celebrations.size }}`)
	require.NoError(t, err)

	out, err := renderer.Render(Weekly{
		ThisWeek: Week{Celebrations: []Celebration{{Name: "x"}, {Name: "y"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "2/0", out)
}

func TestNewRendererRejectsBrokenTemplate(t *testing.T) {
	_, err := NewRenderer(`{% if this_week %}unterminated`)
	require.Error(t, err)
}
