package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrSessionSubmitted = errors.New("session already submitted")
	ErrSessionNotFound  = errors.New("session not found")
	ErrIncomplete       = errors.New("incomplete user record")
	ErrMissingOtherArea = errors.New("missing other area")
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrFacilityName     = errors.New("facility name is required")
	ErrFacilityExists   = errors.New("facility already exists")
	ErrFacilityNotFound = errors.New("facility not found")
	ErrFacilityInUse    = errors.New("facility is referenced by users")
	ErrUnknownFacility  = errors.New("unknown facility")
	ErrRowCount         = errors.New("row count out of range")
)

// MaxGeneratedRows bounds GenerateRows.
const MaxGeneratedRows = 50

// Session is the complete state of one onboarding form.
// Once Submitted is set every mutation fails with ErrSessionSubmitted.
type Session struct {
	ID           string
	Client       ClientRecord
	Facilities   []FacilityRecord
	Roster       *Roster
	LastFacility string
	LastArea     string
	Submitted    bool
	SubmittedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	policy Policy
}

// NewSession creates an empty session.
func NewSession(id string, policy Policy) *Session {
	t := now().UTC()
	return &Session{
		ID:        id,
		Roster:    NewRoster(policy),
		CreatedAt: t,
		UpdatedAt: t,
		policy:    policy,
	}
}

// Policy returns the policy the session enforces.
func (s *Session) Policy() Policy { return s.policy }

// SetPolicy rebinds a decoded session to the running policy.
func (s *Session) SetPolicy(p Policy) {
	s.policy = p
	recs := []UserRecord{}
	if s.Roster != nil {
		recs = s.Roster.records
	}
	s.Roster = &Roster{records: recs, policy: p}
}

func (s *Session) mutable() error {
	if s.Submitted {
		return ErrSessionSubmitted
	}
	return nil
}

func (s *Session) touch() {
	s.UpdatedAt = now().UTC()
}

// ManualEntry is the form input for a single user.
type ManualEntry struct {
	FirstNames     string   `json:"nombres"`
	LastNames      string   `json:"apellidos"`
	DocType        string   `json:"tipo_doc"`
	Document       string   `json:"documento"`
	Email          string   `json:"correo"`
	BirthDate      string   `json:"fecha_nacimiento"`
	Gender         string   `json:"genero"`
	EducationLevel string   `json:"nivel"`
	JobTitle       string   `json:"titulo"`
	Occupation     string   `json:"ocupacion"`
	Area           string   `json:"area"`
	OtherArea      string   `json:"otra_area"`
	Facility       string   `json:"sede"`
	Coverage       string   `json:"cobertura"`
	Technology     string   `json:"tecnologia"`
	Periodicity    string   `json:"periodicidad"`
	Locations      []string `json:"ubicaciones"`
	StartMonth     string   `json:"mes_inicio"`
	StartYear      int      `json:"anio_inicio"`
}

// SetClient replaces the client record, normalizing its fields.
func (s *Session) SetClient(c ClientRecord) error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.Client = normalizeClient(c)
	s.touch()
	return nil
}

func normalizeClient(c ClientRecord) ClientRecord {
	return ClientRecord{
		LegalName:        upperCell(c.LegalName),
		TaxID:            strings.TrimSpace(c.TaxID),
		Email:            lowerCell(c.Email),
		Phone:            strings.TrimSpace(c.Phone),
		ResponsibleName:  upperCell(c.ResponsibleName),
		ResponsibleTitle: upperCell(c.ResponsibleTitle),
		Address:          upperCell(c.Address),
		Department:       upperCell(c.Department),
		Municipality:     upperCell(c.Municipality),
	}
}

func normalizeFacility(f FacilityRecord) FacilityRecord {
	return FacilityRecord{
		Name:         Normalize(f.Name),
		Address:      upperCell(f.Address),
		Department:   upperCell(f.Department),
		Municipality: upperCell(f.Municipality),
		Responsible:  upperCell(f.Responsible),
		Email:        lowerCell(f.Email),
		Phone:        strings.TrimSpace(f.Phone),
	}
}

// duplicateFacility returns the index and name of the first facility whose
// normalized name repeats an earlier one, or -1.
func duplicateFacility(fs []FacilityRecord) (int, string) {
	seen := make(map[string]struct{}, len(fs))
	for i, f := range fs {
		key := Normalize(f.Name)
		if _, dup := seen[key]; dup {
			return i, f.Name
		}
		seen[key] = struct{}{}
	}
	return -1, ""
}

// FacilityNames returns the registered facility names in order.
func (s *Session) FacilityNames() []string {
	names := make([]string, len(s.Facilities))
	for i, f := range s.Facilities {
		names[i] = f.Name
	}
	return names
}

func (s *Session) facilityIndex(name string) int {
	key := Normalize(name)
	if key == "" {
		return -1
	}
	for i, f := range s.Facilities {
		if Normalize(f.Name) == key {
			return i
		}
	}
	return -1
}

// AddFacility registers a facility and returns its index. Under
// CollisionMerge a facility with the same normalized name is overwritten
// in place and its index returned.
func (s *Session) AddFacility(f FacilityRecord) (int, error) {
	if err := s.mutable(); err != nil {
		return 0, err
	}
	f = normalizeFacility(f)
	if f.Name == "" {
		return 0, ErrFacilityName
	}
	if j := s.facilityIndex(f.Name); j >= 0 {
		if s.policy.FacilityCollision != CollisionMerge {
			return 0, fmt.Errorf("%s: %w", f.Name, ErrFacilityExists)
		}
		s.Facilities[j] = f
		s.touch()
		return j, nil
	}
	s.Facilities = append(s.Facilities, f)
	s.touch()
	return len(s.Facilities) - 1, nil
}

// UpdateFacility replaces the facility at index i. A rename is applied to
// every roster record that referenced the old name. Renaming onto another
// facility's name fails, or folds i into that facility under CollisionMerge.
func (s *Session) UpdateFacility(i int, f FacilityRecord) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if i < 0 || i >= len(s.Facilities) {
		return fmt.Errorf("facility %d: %w", i, ErrFacilityNotFound)
	}
	f = normalizeFacility(f)
	if f.Name == "" {
		return ErrFacilityName
	}
	j := s.facilityIndex(f.Name)
	if j >= 0 && j != i && s.policy.FacilityCollision != CollisionMerge {
		return fmt.Errorf("%s: %w", f.Name, ErrFacilityExists)
	}

	old := s.Facilities[i].Name
	if j >= 0 && j != i {
		s.Facilities[j] = f
		s.Facilities = append(s.Facilities[:i], s.Facilities[i+1:]...)
	} else {
		s.Facilities[i] = f
	}
	if old != f.Name {
		s.Roster.RenameFacility(old, f.Name)
		if s.LastFacility == old {
			s.LastFacility = f.Name
		}
	}
	s.touch()
	return nil
}

// RemoveFacility deletes the facility at index i when no user references it.
func (s *Session) RemoveFacility(i int) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if i < 0 || i >= len(s.Facilities) {
		return fmt.Errorf("facility %d: %w", i, ErrFacilityNotFound)
	}
	name := s.Facilities[i].Name
	for _, u := range s.Roster.records {
		if u.Facility == name {
			return fmt.Errorf("%s: %w", name, ErrFacilityInUse)
		}
	}
	s.Facilities = append(s.Facilities[:i], s.Facilities[i+1:]...)
	if s.LastFacility == name {
		s.LastFacility = ""
	}
	s.touch()
	return nil
}

// AddUser validates a manual entry and appends it to the roster.
// Document duplicates are rejected regardless of the import policy.
func (s *Session) AddUser(in ManualEntry) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if len(s.Facilities) == 0 {
		return ErrNoFacilities
	}

	locs := []string{}
	for _, l := range in.Locations {
		locs = appendLocations(locs, l)
	}
	rec := UserRecord{
		FirstNames:     Normalize(in.FirstNames),
		LastNames:      Normalize(in.LastNames),
		DocType:        upperCell(in.DocType),
		Document:       DocumentNumber(in.Document),
		Email:          lowerCell(in.Email),
		BirthDate:      BirthDateText(in.BirthDate),
		Gender:         upperCell(in.Gender),
		EducationLevel: upperCell(in.EducationLevel),
		JobTitle:       upperCell(in.JobTitle),
		Occupation:     upperCell(in.Occupation),
		Area:           Normalize(in.Area),
		OtherArea:      Normalize(in.OtherArea),
		Coverage:       upperCell(in.Coverage),
		Technology:     upperCell(in.Technology),
		Periodicity:    upperCell(in.Periodicity),
		Locations:      locs,
		StartDate:      FirstDayOfMonth(in.StartMonth, in.StartYear),
	}

	if rec.FirstNames == "" || rec.LastNames == "" || rec.Document == "" ||
		rec.Email == "" || len(rec.Locations) == 0 || strings.TrimSpace(in.Facility) == "" {
		return ErrIncomplete
	}
	if err := checkUserRules(rec); err != nil {
		return err
	}
	if _, dup := s.Roster.Documents()[rec.Document]; dup {
		return fmt.Errorf("%s: %w", rec.Document, ErrDuplicateDocument)
	}
	fi := s.facilityIndex(in.Facility)
	if fi < 0 {
		return fmt.Errorf("%s: %w", in.Facility, ErrUnknownFacility)
	}
	rec.Facility = s.Facilities[fi].Name

	if err := s.Roster.AppendMany(ExpandLocations(rec, s.policy.Locations)); err != nil {
		return err
	}
	s.LastFacility = rec.Facility
	s.LastArea = rec.Area
	s.touch()
	return nil
}

// GenerateRows appends n placeholder records to be completed in the grid.
func (s *Session) GenerateRows(n int, facility, technology, periodicity string) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if n < 1 || n > MaxGeneratedRows {
		return fmt.Errorf("%d: %w", n, ErrRowCount)
	}
	fi := s.facilityIndex(facility)
	if fi < 0 {
		if len(s.Facilities) == 0 {
			return ErrNoFacilities
		}
		return fmt.Errorf("%s: %w", facility, ErrUnknownFacility)
	}

	t := now()
	placeholder := UserRecord{
		DocType:        DocTypes[0],
		BirthDate:      "1990-01-01",
		Gender:         "OTRO",
		EducationLevel: "PROFESIONAL",
		JobTitle:       "OTRO",
		Occupation:     "OTRO",
		Area:           Areas[0],
		Facility:       s.Facilities[fi].Name,
		Coverage:       Coverages[0],
		Technology:     upperCell(technology),
		Periodicity:    upperCell(periodicity),
		Locations:      []string{BodyLocations[0]},
		StartDate:      time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC),
	}
	recs := make([]UserRecord, n)
	for i := range recs {
		recs[i] = placeholder
		recs[i].Locations = []string{BodyLocations[0]}
	}
	if err := s.Roster.AppendMany(recs); err != nil {
		return err
	}
	s.touch()
	return nil
}

// UpdateUser replaces the roster record at index i after normalizing it.
// Blank fields are allowed while a row is being completed, but the other
// area rule and the e-mail shape hold on every edit. The facility, when
// given, must be registered.
func (s *Session) UpdateUser(i int, rec UserRecord) error {
	if err := s.mutable(); err != nil {
		return err
	}
	rec = normalizeUser(rec)
	if err := checkUserRules(rec); err != nil {
		return err
	}
	if rec.Facility != "" {
		fi := s.facilityIndex(rec.Facility)
		if fi < 0 {
			return fmt.Errorf("%s: %w", rec.Facility, ErrUnknownFacility)
		}
		rec.Facility = s.Facilities[fi].Name
	}
	if err := s.Roster.Update(i, rec); err != nil {
		return err
	}
	s.touch()
	return nil
}

// checkUserRules applies the per-record rules that do not depend on the
// rest of the session.
func checkUserRules(u UserRecord) error {
	if !OtherAreaRule(u.Area, u.OtherArea) {
		return ErrMissingOtherArea
	}
	if u.Email != "" && !IsValidEmail(u.Email) {
		return fmt.Errorf("%s: %w", u.Email, ErrInvalidEmail)
	}
	return nil
}

func normalizeUser(u UserRecord) UserRecord {
	locs := []string{}
	for _, l := range u.Locations {
		locs = appendLocations(locs, l)
	}
	u.FirstNames = Normalize(u.FirstNames)
	u.LastNames = Normalize(u.LastNames)
	u.DocType = upperCell(u.DocType)
	u.Document = DocumentNumber(u.Document)
	u.Email = lowerCell(u.Email)
	u.Gender = upperCell(u.Gender)
	u.EducationLevel = upperCell(u.EducationLevel)
	u.JobTitle = upperCell(u.JobTitle)
	u.Occupation = upperCell(u.Occupation)
	u.Area = Normalize(u.Area)
	u.OtherArea = Normalize(u.OtherArea)
	u.Coverage = upperCell(u.Coverage)
	u.Technology = upperCell(u.Technology)
	u.Periodicity = upperCell(u.Periodicity)
	u.Locations = locs
	return u
}

// RemoveUser deletes the roster record at index i.
func (s *Session) RemoveUser(i int) error {
	if err := s.mutable(); err != nil {
		return err
	}
	if err := s.Roster.Remove(i); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Import runs the bulk importer against the session's facilities and
// roster, then appends the accepted records.
func (s *Session) Import(rows [][]string, header HeaderIndex) (ImportResult, error) {
	if err := s.mutable(); err != nil {
		return ImportResult{}, err
	}
	if len(s.Facilities) == 0 {
		return ImportResult{}, ErrNoFacilities
	}
	if err := ValidateHeader(header); err != nil {
		return ImportResult{}, err
	}

	res := ImportRoster(rows, header, s.FacilityNames(), s.Roster.Documents(), s.policy)
	if err := s.Roster.AppendMany(res.Accepted); err != nil {
		return ImportResult{}, err
	}
	s.touch()
	return res, nil
}

// Status reports which sections are complete.
func (s *Session) Status() SessionStatus {
	return SessionStatus{
		ClientOK:     ValidateClient(s.Client, s.policy.ClientRequiredFields) == nil,
		FacilitiesOK: len(s.Facilities) > 0,
		Users:        s.Roster.Len(),
		Facilities:   len(s.Facilities),
		Submitted:    s.Submitted,
	}
}

// MarkSubmitted sets the terminal flag.
func (s *Session) MarkSubmitted() error {
	if err := s.mutable(); err != nil {
		return err
	}
	s.Submitted = true
	s.SubmittedAt = now().UTC()
	s.touch()
	return nil
}

// MsgMissingClientOrFacilities blocks a submission without client data
// or facilities.
const MsgMissingClientOrFacilities = "Faltan datos Cliente/Sedes"

// ValidateSession runs every pre-submission check: client, facilities,
// roster and that every roster facility is registered.
func ValidateSession(s *Session) *ValidationIssue {
	if issue := ValidateClient(s.Client, s.policy.ClientRequiredFields); issue != nil {
		issue.Message = MsgMissingClientOrFacilities + ": " + issue.Message
		return issue
	}
	if len(s.Facilities) == 0 {
		return &ValidationIssue{Section: "sedes", Message: MsgMissingClientOrFacilities}
	}
	// Users reference facilities by name, so names must stay unique to be
	// stored.
	if i, name := duplicateFacility(s.Facilities); i >= 0 {
		return &ValidationIssue{
			Section: "sedes",
			Row:     i + 1,
			Field:   "Nombre",
			Message: fmt.Sprintf("La sede '%s' está repetida.", name),
		}
	}
	if issue := ValidateRoster(s.Roster.records); issue != nil {
		return issue
	}
	for i, u := range s.Roster.records {
		if s.facilityIndex(u.Facility) < 0 {
			return &ValidationIssue{
				Section: "usuarios",
				Row:     i + 1,
				Field:   FieldFacility,
				Message: fmt.Sprintf("La sede '%s' no está registrada.", u.Facility),
			}
		}
	}
	return nil
}

// sessionJSON is the storage form of a Session.
type sessionJSON struct {
	ID           string           `json:"id"`
	Client       ClientRecord     `json:"cliente"`
	Facilities   []FacilityRecord `json:"sedes"`
	Users        []UserRecord     `json:"usuarios"`
	LastFacility string           `json:"last_sede,omitempty"`
	LastArea     string           `json:"last_area,omitempty"`
	Submitted    bool             `json:"submitted"`
	SubmittedAt  time.Time        `json:"submitted_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// MarshalJSON encodes the session for a SessionStore.
func (s *Session) MarshalJSON() ([]byte, error) {
	users := []UserRecord{}
	if s.Roster != nil {
		users = s.Roster.records
	}
	facilities := s.Facilities
	if facilities == nil {
		facilities = []FacilityRecord{}
	}
	return json.Marshal(sessionJSON{
		ID:           s.ID,
		Client:       s.Client,
		Facilities:   facilities,
		Users:        users,
		LastFacility: s.LastFacility,
		LastArea:     s.LastArea,
		Submitted:    s.Submitted,
		SubmittedAt:  s.SubmittedAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	})
}

// UnmarshalJSON decodes a stored session. Call SetPolicy afterwards.
func (s *Session) UnmarshalJSON(data []byte) error {
	var v sessionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	p := s.policy
	*s = Session{
		ID:           v.ID,
		Client:       v.Client,
		Facilities:   v.Facilities,
		Roster:       &Roster{records: v.Users, policy: p},
		LastFacility: v.LastFacility,
		LastArea:     v.LastArea,
		Submitted:    v.Submitted,
		SubmittedAt:  v.SubmittedAt,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		policy:       p,
	}
	return nil
}
