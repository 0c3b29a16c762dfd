package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestDirectoryListMembers(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes optional dates", func(mt *mtest.T) {
		born := time.Date(1990, time.June, 14, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "church.members", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "m1"}, {Key: "name", Value: "Asha"}, {Key: "date_of_birth", Value: born}},
				bson.D{{Key: "_id", Value: "m2"}, {Key: "name", Value: "Ben"}},
			),
			mtest.CreateCursorResponse(0, "church.members", mtest.NextBatch),
		)

		repo := NewDirectoryRepo(mt.Client, "church")
		members, err := repo.ListMembers(context.Background())

		require.NoError(mt, err)
		require.Len(mt, members, 2)
		assert.Equal(mt, "Asha", members[0].Name)
		require.NotNil(mt, members[0].DateOfBirth)
		assert.True(mt, born.Equal(*members[0].DateOfBirth))
		assert.Nil(mt, members[1].DateOfBirth)
		assert.Nil(mt, members[1].MarriageDate)
	})

	mt.Run("surfaces command errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Name:    "InterruptedAtShutdown",
			Message: "shutting down",
		}))

		repo := NewDirectoryRepo(mt.Client, "church")
		_, err := repo.ListMembers(context.Background())

		require.Error(mt, err)
	})
}

func TestDirectoryListEventsBetween(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("returns events", func(mt *mtest.T) {
		starts := time.Date(2024, time.June, 14, 18, 0, 0, 0, time.UTC)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "church.events", mtest.FirstBatch,
				bson.D{{Key: "_id", Value: "e1"}, {Key: "title", Value: "Youth night"}, {Key: "starts_at", Value: starts}},
			),
			mtest.CreateCursorResponse(0, "church.events", mtest.NextBatch),
		)

		repo := NewDirectoryRepo(mt.Client, "church")
		events, err := repo.ListEventsBetween(context.Background(), starts.AddDate(0, 0, -3), starts.AddDate(0, 0, 3))

		require.NoError(mt, err)
		require.Len(mt, events, 1)
		assert.Equal(mt, "Youth night", events[0].Title)
		assert.True(mt, starts.Equal(events[0].StartsAt))
	})
}
