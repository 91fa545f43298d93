package core

import (
	"context"
	"time"
)

// ClientRecord is the organization being onboarded.
type ClientRecord struct {
	LegalName        string `json:"razon_social"`
	TaxID            string `json:"nit"`
	Email            string `json:"email"`
	Phone            string `json:"telefono"`
	ResponsibleName  string `json:"responsable"`
	ResponsibleTitle string `json:"cargo"`
	Address          string `json:"direccion"`
	Department       string `json:"departamento"`
	Municipality     string `json:"municipio"`
}

// Fields returns the record keyed by its JSON field names.
// Used for configurable required-field checks.
func (c ClientRecord) Fields() map[string]string {
	return map[string]string{
		"razon_social": c.LegalName,
		"nit":          c.TaxID,
		"email":        c.Email,
		"telefono":     c.Phone,
		"responsable":  c.ResponsibleName,
		"cargo":        c.ResponsibleTitle,
		"direccion":    c.Address,
		"departamento": c.Department,
		"municipio":    c.Municipality,
	}
}

// FacilityRecord is one physical site ("sede") of the client.
// Name is the key referenced by UserRecord.Facility.
type FacilityRecord struct {
	Name         string `json:"nombre"`
	Address      string `json:"direccion"`
	Department   string `json:"departamento"`
	Municipality string `json:"municipio"`
	Responsible  string `json:"responsable"`
	Email        string `json:"email"`
	Phone        string `json:"telefono"`
}

// UserRecord is one roster entry: a worker who receives a dosimeter,
// or a control dosimeter row.
type UserRecord struct {
	FirstNames     string    `json:"nombres"`
	LastNames      string    `json:"apellidos"`
	DocType        string    `json:"tipo_doc"`
	Document       string    `json:"documento"`
	Email          string    `json:"correo"`
	BirthDate      string    `json:"fecha_nacimiento"`
	Gender         string    `json:"genero"`
	EducationLevel string    `json:"nivel"`
	JobTitle       string    `json:"titulo"`
	Occupation     string    `json:"ocupacion"`
	Area           string    `json:"area"`
	OtherArea      string    `json:"otra_area"`
	Facility       string    `json:"sede"`
	Coverage       string    `json:"cobertura"`
	Technology     string    `json:"tecnologia"`
	Periodicity    string    `json:"periodicidad"`
	Locations      []string  `json:"ubicaciones"`
	StartDate      time.Time `json:"fecha_inicio"`
}

// LocationsText joins the body-location codes the way they are stored
// and displayed.
func (u UserRecord) LocationsText() string {
	return joinLocations(u.Locations)
}

// DuplicatePolicy controls document-number uniqueness during bulk import
// and on roster mutation.
type DuplicatePolicy string

const (
	// DuplicatesStrict rejects a row whose document is already on the roster
	// or was accepted earlier in the same batch.
	DuplicatesStrict DuplicatePolicy = "strict"
	// DuplicatesRelaxed skips the cross-row document check on import.
	DuplicatesRelaxed DuplicatePolicy = "relaxed"
)

// LocationMode controls how multiple body locations are represented.
type LocationMode string

const (
	// LocationsJoined keeps all locations on a single record.
	LocationsJoined LocationMode = "joined"
	// LocationsExploded emits one record per location.
	LocationsExploded LocationMode = "exploded"
)

// BlankLocationPolicy controls import rows with an empty location cell.
type BlankLocationPolicy string

const (
	BlankLocationAllow  BlankLocationPolicy = "allow"
	BlankLocationReject BlankLocationPolicy = "reject"
)

// CollisionPolicy controls facilities whose normalized names collide.
type CollisionPolicy string

const (
	CollisionReject CollisionPolicy = "reject"
	CollisionMerge  CollisionPolicy = "merge"
)

// Policy bundles every behavior that differed between the two shipped
// variants of the onboarding form, plus the facility collision decision.
type Policy struct {
	Duplicates           DuplicatePolicy
	Locations            LocationMode
	BlankLocation        BlankLocationPolicy
	ClientRequiredFields []string
	FacilityCollision    CollisionPolicy
}

// DefaultPolicy mirrors the stricter variant.
func DefaultPolicy() Policy {
	return Policy{
		Duplicates:           DuplicatesStrict,
		Locations:            LocationsJoined,
		BlankLocation:        BlankLocationAllow,
		ClientRequiredFields: []string{"razon_social", "nit", "email", "responsable"},
		FacilityCollision:    CollisionReject,
	}
}

// Severity classifies an import rejection.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rejection describes one spreadsheet row that was not imported.
type Rejection struct {
	Row      int      `json:"row"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
	Data     []string `json:"data,omitempty"`
}

// String renders the rejection the way operators see it.
func (r Rejection) String() string {
	return "Fila " + itoa(r.Row) + ": " + r.Reason
}

// ImportResult is the outcome of a bulk roster import.
type ImportResult struct {
	Accepted   []UserRecord `json:"accepted"`
	Rejections []Rejection  `json:"rejections"`
	TotalRows  int          `json:"total_rows"`
}

// SessionStatus summarizes which sections of the form are complete.
type SessionStatus struct {
	ClientOK     bool `json:"client_ok"`
	FacilitiesOK bool `json:"facilities_ok"`
	Users        int  `json:"users"`
	Facilities   int  `json:"facilities"`
	Submitted    bool `json:"submitted"`
}

// Credentials are the portal login details generated on submission.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// Submission is the complete dataset handed to the Persister.
type Submission struct {
	Key         string
	Client      ClientRecord
	Facilities  []FacilityRecord
	Users       []UserRecord
	Credentials Credentials
	IPAddress   string
	UserAgent   string
}

// PersistResult holds the identifiers generated by the datastore.
type PersistResult struct {
	ClientID      int64            `json:"client_id"`
	FacilityIDs   map[string]int64 `json:"facility_ids"`
	UsersInserted int64            `json:"users_inserted"`
}

// Persister stores a finalized onboarding dataset durably.
type Persister interface {
	SaveOnboarding(ctx context.Context, sub Submission) (PersistResult, error)
}

// Notice carries what notification messages need to know.
type Notice struct {
	Client     ClientRecord
	Facilities int
	Users      int
	SessionID  string
}

// Notifier sends confirmation messages after a submission is stored.
type Notifier interface {
	NotifyInternal(ctx context.Context, n Notice) error
	SendWelcome(ctx context.Context, n Notice, creds Credentials) error
}

// Archiver keeps a copy of the submitted session snapshot.
type Archiver interface {
	ArchiveSnapshot(ctx context.Context, sessionID string, snapshot []byte) error
}

// SessionStore keeps onboarding sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// SubmitResult is the outcome of a successful submission.
// Warnings lists non-fatal notification or archive failures.
type SubmitResult struct {
	SessionID     string           `json:"session_id"`
	ClientID      int64            `json:"client_id"`
	FacilityIDs   map[string]int64 `json:"facility_ids"`
	UsersInserted int64            `json:"users_inserted"`
	Warnings      []string         `json:"warnings,omitempty"`
	Duration      time.Duration    `json:"duration"`
}
