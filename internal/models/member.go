package models

import "time"

// Member is a church directory record. The dates are optional calendar dates.
type Member struct {
	ID           string     `bson:"_id" json:"id"`
	Name         string     `bson:"name" json:"name"`
	DateOfBirth  *time.Time `bson:"date_of_birth,omitempty" json:"date_of_birth,omitempty"`
	MarriageDate *time.Time `bson:"marriage_date,omitempty" json:"marriage_date,omitempty"`
	JoinDate     *time.Time `bson:"join_date,omitempty" json:"join_date,omitempty"`
}

// Event is a dated church event.
type Event struct {
	ID          string    `bson:"_id" json:"id"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Location    string    `bson:"location,omitempty" json:"location,omitempty"`
	StartsAt    time.Time `bson:"starts_at" json:"starts_at"`
}
