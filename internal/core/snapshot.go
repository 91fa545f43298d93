package core

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the save/restore document of a session's form data.
type Snapshot struct {
	Client     ClientRecord     `json:"cliente"`
	Facilities []FacilityRecord `json:"sedes"`
	Users      []UserRecord     `json:"usuarios"`
}

// Snapshot captures the session's client, facilities and roster.
func (s *Session) Snapshot() Snapshot {
	facilities := make([]FacilityRecord, len(s.Facilities))
	copy(facilities, s.Facilities)
	return Snapshot{
		Client:     s.Client,
		Facilities: facilities,
		Users:      s.Roster.Records(),
	}
}

// ExportSnapshot encodes the session as a snapshot document.
func ExportSnapshot(s *Session) ([]byte, error) {
	return json.MarshalIndent(s.Snapshot(), "", "  ")
}

// Restore replaces the session's form data with the snapshot. The data is
// normalized and checked as if it had been typed in: facility names follow
// the collision policy and every user must reference a restored facility.
// Nothing changes if a check fails.
func (s *Session) Restore(snap Snapshot) error {
	if err := s.mutable(); err != nil {
		return err
	}

	facilities, err := restoreFacilities(snap.Facilities, s.policy.FacilityCollision)
	if err != nil {
		return fmt.Errorf("restore facilities: %w", err)
	}
	names := make(map[string]string, len(facilities))
	for _, f := range facilities {
		names[Normalize(f.Name)] = f.Name
	}

	users := make([]UserRecord, 0, len(snap.Users))
	for i, u := range snap.Users {
		u = normalizeUser(u)
		if u.Facility != "" {
			name, ok := names[Normalize(u.Facility)]
			if !ok {
				return fmt.Errorf("restore user %d: %s: %w", i+1, u.Facility, ErrUnknownFacility)
			}
			u.Facility = name
		}
		users = append(users, u)
	}
	if err := s.Roster.Replace(users); err != nil {
		return fmt.Errorf("restore roster: %w", err)
	}

	s.Client = normalizeClient(snap.Client)
	s.Facilities = facilities
	s.touch()
	return nil
}

func restoreFacilities(in []FacilityRecord, policy CollisionPolicy) ([]FacilityRecord, error) {
	out := make([]FacilityRecord, 0, len(in))
	index := make(map[string]int, len(in))
	for _, f := range in {
		f = normalizeFacility(f)
		if f.Name == "" {
			return nil, ErrFacilityName
		}
		if j, dup := index[f.Name]; dup {
			if policy != CollisionMerge {
				return nil, fmt.Errorf("%s: %w", f.Name, ErrFacilityExists)
			}
			out[j] = f
			continue
		}
		index[f.Name] = len(out)
		out = append(out, f)
	}
	return out, nil
}

// ImportSnapshot decodes a snapshot document into the session.
func ImportSnapshot(s *Session, data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	return s.Restore(snap)
}
