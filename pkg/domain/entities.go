// Package domain defines the persistent records, closed value sets and rule
// evaluation primitives used by landledger.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersion tags persisted snapshots. A snapshot carrying any other
// version is discarded on load.
const SchemaVersion = "2"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and storage keys.
const (
	EntityProject              EntityType = "project"
	EntityPerson               EntityType = "person"
	EntityAcquisitionStatus    EntityType = "acquisition_status"
	EntityTransactionRecord    EntityType = "transaction"
	EntityFinancialTransaction EntityType = "financial_transaction"
	EntityNote                 EntityType = "note"
	EntityTask                 EntityType = "task"
	EntityLegalNote            EntityType = "legal_note"
	EntityUser                 EntityType = "user"
	EntityDocument             EntityType = "document"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project is the root scope for every per-project collection.
type Project struct {
	Base
	Name     string `json:"name"`
	SiteID   string `json:"site_id,omitempty"`
	Location string `json:"location,omitempty"`
}

// Gender of a person in a lineage tree.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// AgeGroup buckets a person's age as recorded on the lineage form.
type AgeGroup string

const (
	AgeMinor  AgeGroup = "minor"
	AgeAdult  AgeGroup = "adult"
	AgeSenior AgeGroup = "senior"
)

// MaritalStatus of a person in a lineage tree.
type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "single"
	MaritalMarried  MaritalStatus = "married"
	MaritalWidowed  MaritalStatus = "widowed"
	MaritalDivorced MaritalStatus = "divorced"
)

// LifeStatus records whether a person is alive.
type LifeStatus string

const (
	LifeAlive    LifeStatus = "alive"
	LifeDeceased LifeStatus = "deceased"
)

// LandClassification is the revenue classification of a surveyed parcel.
type LandClassification string

const (
	LandWet       LandClassification = "wet"
	LandDry       LandClassification = "dry"
	LandGarden    LandClassification = "garden"
	LandPoramboke LandClassification = "poramboke"
	LandOther     LandClassification = "other"
)

// ParseLandClassification maps a freeform label onto the closed set. Unknown
// labels report false.
func ParseLandClassification(label string) (LandClassification, bool) {
	switch c := LandClassification(strings.ToLower(strings.TrimSpace(label))); c {
	case LandWet, LandDry, LandGarden, LandPoramboke, LandOther:
		return c, true
	}
	return "", false
}

// Person is a node in a project's lineage tree. A person without a parent is
// a family head. HeirIDs keeps the display order of the person's children.
type Person struct {
	Base
	ProjectID      string         `json:"project_id"`
	ParentID       *string        `json:"parent_id,omitempty"`
	Name           string         `json:"name"`
	Relation       string         `json:"relation,omitempty"`
	Gender         Gender         `json:"gender,omitempty"`
	AgeGroup       AgeGroup       `json:"age_group,omitempty"`
	MaritalStatus  MaritalStatus  `json:"marital_status,omitempty"`
	LifeStatus     LifeStatus     `json:"life_status,omitempty"`
	SourceOfLand   string         `json:"source_of_land,omitempty"`
	HoldingPattern string         `json:"holding_pattern,omitempty"`
	LandRecords    []SurveyRecord `json:"land_records"`
	HeirIDs        []string       `json:"heir_ids"`
}

// IsFamilyHead reports whether the person is a root of the lineage tree.
func (p Person) IsFamilyHead() bool {
	return p.ParentID == nil || *p.ParentID == ""
}

// LandRecord returns the land record with the given id.
func (p Person) LandRecord(id string) (SurveyRecord, bool) {
	for _, rec := range p.LandRecords {
		if rec.ID == id {
			return rec, true
		}
	}
	return SurveyRecord{}, false
}

// SurveyRecord is a land record owned by exactly one person.
type SurveyRecord struct {
	ID             string             `json:"id"`
	SurveyNumber   string             `json:"survey_number"`
	Acres          string             `json:"acres"`
	Cents          string             `json:"cents"`
	Classification LandClassification `json:"classification,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Extent returns the parcel area in acres (acres + cents/100).
func (r SurveyRecord) Extent() (decimal.Decimal, error) {
	acres, err := parseArea(r.Acres)
	if err != nil {
		return decimal.Zero, err
	}
	cents, err := parseArea(r.Cents)
	if err != nil {
		return decimal.Zero, err
	}
	return acres.Add(cents.Div(hundred)), nil
}

func parseArea(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// Note is a freeform remark attached to a survey number.
type Note struct {
	Base
	ProjectID    string `json:"project_id"`
	SurveyNumber string `json:"survey_number"`
	Body         string `json:"body"`
}

// Task is a to-do item attached to a survey number.
type Task struct {
	Base
	ProjectID    string     `json:"project_id"`
	SurveyNumber string     `json:"survey_number"`
	Title        string     `json:"title"`
	Details      string     `json:"details,omitempty"`
	Completed    bool       `json:"completed"`
	Reminder     bool       `json:"reminder"`
	DueAt        *time.Time `json:"due_at,omitempty"`
}

// LegalNote is a lawyer's remark attached to a survey number.
type LegalNote struct {
	Base
	ProjectID    string `json:"project_id"`
	SurveyNumber string `json:"survey_number"`
	Author       string `json:"author,omitempty"`
	Body         string `json:"body"`
}

// Document is the metadata of a file stored in the blob store.
type Document struct {
	Base
	ProjectID    string `json:"project_id"`
	SurveyNumber string `json:"survey_number,omitempty"`
	FileName     string `json:"file_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size_bytes"`
	BlobKey      string `json:"blob_key"`
	ETag         string `json:"etag,omitempty"`
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ConflictError reports a create that collides with an existing record.
type ConflictError struct {
	Entity EntityType
	Key    string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

// Change describes a mutation applied within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	EntityID string     `json:"entity_id,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Rule + ": " + v.Message
		}
	}
	return "transaction blocked by rules"
}
