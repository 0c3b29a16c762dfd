package celebrations

import "time"

// Kind identifies what a recurring date celebrates.
type Kind string

const (
	KindBirthday              Kind = "birthday"
	KindWeddingAnniversary    Kind = "wedding_anniversary"
	KindChurchJoinAnniversary Kind = "church_join_anniversary"
)

// IsAnniversary reports whether elapsed years are meaningful for the kind.
func (k Kind) IsAnniversary() bool {
	return k == KindWeddingAnniversary || k == KindChurchJoinAnniversary
}

// Subject is anything with a yearly recurring date.
type Subject struct {
	ID   string     `json:"id"`
	Name string     `json:"name"`
	Date *time.Time `json:"date,omitempty"`
	Kind Kind       `json:"kind"`
}

// Partition splits subjects by the window their date recurs in.
type Partition struct {
	ThisWeek []Subject `json:"this_week"`
	NextWeek []Subject `json:"next_week"`
	None     []Subject `json:"none"`
}

// PartitionByWeek places every subject in exactly one bucket, checking
// thisWeek first. Input order is preserved within each bucket.
func PartitionByWeek(subjects []Subject, thisWeek, nextWeek Window) Partition {
	var p Partition
	for _, s := range subjects {
		switch {
		case IsDateInWeek(s.Date, thisWeek):
			p.ThisWeek = append(p.ThisWeek, s)
		case IsDateInWeek(s.Date, nextWeek):
			p.NextWeek = append(p.NextWeek, s)
		default:
			p.None = append(p.None, s)
		}
	}
	return p
}
