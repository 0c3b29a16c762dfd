package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"church-portal/internal/models"
)

const (
	membersCollection = "members"
	eventsCollection  = "events"
)

// MemberRepository lists directory members for celebration matching.
type MemberRepository interface {
	ListMembers(ctx context.Context) ([]models.Member, error)
}

// EventRepository lists church events by date range.
type EventRepository interface {
	ListEventsBetween(ctx context.Context, from, to time.Time) ([]models.Event, error)
}

// DirectoryRepo reads members and events from the church document store.
type DirectoryRepo struct {
	db *mongo.Database
}

// NewDirectoryRepo constructs a DirectoryRepo over the named database.
func NewDirectoryRepo(client *mongo.Client, database string) *DirectoryRepo {
	return &DirectoryRepo{db: client.Database(database)}
}

// ListMembers returns every member ordered by name.
func (r *DirectoryRepo) ListMembers(ctx context.Context) ([]models.Member, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.db.Collection(membersCollection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, mongoError("find members", err)
	}
	defer cursor.Close(ctx)

	members := []models.Member{}
	if err := cursor.All(ctx, &members); err != nil {
		return nil, mongoError("decode members", err)
	}
	return members, nil
}

// ListEventsBetween returns events starting inside [from, to], earliest first.
func (r *DirectoryRepo) ListEventsBetween(ctx context.Context, from, to time.Time) ([]models.Event, error) {
	filter := bson.D{{Key: "starts_at", Value: bson.D{
		{Key: "$gte", Value: from},
		{Key: "$lte", Value: to},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "starts_at", Value: 1}})

	cursor, err := r.db.Collection(eventsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoError("find events", err)
	}
	defer cursor.Close(ctx)

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, mongoError("decode events", err)
	}
	return events, nil
}

func mongoError(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("mongodb %s: %w: %w", op, ErrStoreUnavailable, err)
	}
	return fmt.Errorf("mongodb %s: %w", op, err)
}
