package identity

import (
	"time"

	"github.com/google/uuid"
)

type Insurance struct {
	Provider    string `json:"provider"`
	MemberID    string `json:"member_id"`
	GroupNumber string `json:"group_number,omitempty"`
}

type Patient struct {
	ID          uuid.UUID
	FullName    string
	DateOfBirth time.Time // civil date at UTC midnight
	Phone       string
	Email       string
	Insurance   Insurance
	// VisitHistory holds visit dates in booking order, the first booking included.
	VisitHistory []time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// identityKey is what makes two records the same person: the normalized name
// and the date of birth. An empty name has no key.
func identityKey(name string, dob time.Time) string {
	n := NormalizeName(name)
	if n == "" {
		return ""
	}
	return n + "|" + CivilDate(dob).Format("2006-01-02")
}

func (p Patient) clone() Patient {
	p.VisitHistory = append([]time.Time(nil), p.VisitHistory...)
	return p
}

type MatchKind string

const (
	MatchNone    MatchKind = "none"
	MatchExact   MatchKind = "exact"
	MatchPartial MatchKind = "partial"
)

// Resolution is the outcome of an identity lookup. A nil Patient means the
// requester is new.
type Resolution struct {
	Patient *Patient
	Match   MatchKind
}

func (r Resolution) Existing() bool {
	return r.Patient != nil
}

// CivilDate drops the clock and zone of t, keeping its calendar day as seen in t's location.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
