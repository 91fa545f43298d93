package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateDocument is returned when a mutation would repeat a
	// roster key under the strict duplicate policy.
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrRowNotFound is returned for an out-of-range roster index.
	ErrRowNotFound = errors.New("roster row not found")
)

// Roster is the ordered list of accepted user records of one session.
// It is not safe for concurrent use; Session serializes access.
type Roster struct {
	records []UserRecord
	policy  Policy
}

// NewRoster creates an empty roster enforcing the given policy.
func NewRoster(policy Policy) *Roster {
	return &Roster{policy: policy}
}

// Len returns the number of records.
func (r *Roster) Len() int { return len(r.records) }

// Records returns a copy of the records in order.
func (r *Roster) Records() []UserRecord {
	out := make([]UserRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Get returns the record at index i.
func (r *Roster) Get(i int) (UserRecord, error) {
	if i < 0 || i >= len(r.records) {
		return UserRecord{}, fmt.Errorf("row %d: %w", i, ErrRowNotFound)
	}
	return r.records[i], nil
}

// Documents returns the set of non-empty document numbers on the roster.
func (r *Roster) Documents() map[string]struct{} {
	docs := make(map[string]struct{}, len(r.records))
	for _, u := range r.records {
		if u.Document != "" {
			docs[u.Document] = struct{}{}
		}
	}
	return docs
}

// Append adds one record.
func (r *Roster) Append(rec UserRecord) error {
	return r.AppendMany([]UserRecord{rec})
}

// AppendMany adds records atomically: either all are added or none.
func (r *Roster) AppendMany(recs []UserRecord) error {
	if r.strict() {
		keys := r.keys(-1)
		for _, rec := range recs {
			k := RosterKey(rec, r.policy.Locations)
			if k == "" {
				continue
			}
			if _, dup := keys[k]; dup {
				return fmt.Errorf("%s: %w", rec.Document, ErrDuplicateDocument)
			}
			keys[k] = struct{}{}
		}
	}
	r.records = append(r.records, recs...)
	return nil
}

// Update replaces the record at index i.
func (r *Roster) Update(i int, rec UserRecord) error {
	if i < 0 || i >= len(r.records) {
		return fmt.Errorf("row %d: %w", i, ErrRowNotFound)
	}
	if r.strict() {
		if k := RosterKey(rec, r.policy.Locations); k != "" {
			if _, dup := r.keys(i)[k]; dup {
				return fmt.Errorf("%s: %w", rec.Document, ErrDuplicateDocument)
			}
		}
	}
	r.records[i] = rec
	return nil
}

// Remove deletes the record at index i, preserving order.
func (r *Roster) Remove(i int) error {
	if i < 0 || i >= len(r.records) {
		return fmt.Errorf("row %d: %w", i, ErrRowNotFound)
	}
	r.records = append(r.records[:i], r.records[i+1:]...)
	return nil
}

// RenameFacility points every record on from to the facility to.
// It returns the number of records changed.
func (r *Roster) RenameFacility(from, to string) int {
	n := 0
	for i := range r.records {
		if r.records[i].Facility == from {
			r.records[i].Facility = to
			n++
		}
	}
	return n
}

// Replace swaps the whole roster, enforcing the same rules as AppendMany.
func (r *Roster) Replace(recs []UserRecord) error {
	old := r.records
	r.records = nil
	if err := r.AppendMany(recs); err != nil {
		r.records = old
		return err
	}
	return nil
}

func (r *Roster) strict() bool {
	return r.policy.Duplicates == DuplicatesStrict
}

// keys returns the uniqueness keys of all records except index skip.
func (r *Roster) keys(skip int) map[string]struct{} {
	keys := make(map[string]struct{}, len(r.records))
	for i, u := range r.records {
		if i == skip {
			continue
		}
		if k := RosterKey(u, r.policy.Locations); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys
}
