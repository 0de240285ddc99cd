package domain

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError reports a field that failed form-level validation.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Entity, e.Field, e.Reason)
}

func required(entity EntityType, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{Entity: entity, Field: field, Reason: "is required"}
	}
	return nil
}

func oneOf[T ~string](entity EntityType, field string, value T, allowed ...T) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return ValidationError{Entity: entity, Field: field, Reason: fmt.Sprintf("has unknown value %q", string(value))}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks required project fields.
func (p Project) Validate() error {
	return required(EntityProject, "name", p.Name)
}

// Validate checks the person form and every embedded land record.
func (p Person) Validate() error {
	if err := firstErr(
		required(EntityPerson, "project_id", p.ProjectID),
		required(EntityPerson, "name", p.Name),
		oneOf(EntityPerson, "gender", p.Gender, GenderMale, GenderFemale, GenderOther),
		oneOf(EntityPerson, "age_group", p.AgeGroup, AgeMinor, AgeAdult, AgeSenior),
		oneOf(EntityPerson, "marital_status", p.MaritalStatus, MaritalSingle, MaritalMarried, MaritalWidowed, MaritalDivorced),
		oneOf(EntityPerson, "life_status", p.LifeStatus, LifeAlive, LifeDeceased),
	); err != nil {
		return err
	}
	for _, rec := range p.LandRecords {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the land record form.
func (r SurveyRecord) Validate() error {
	if err := firstErr(
		required(EntityPerson, "land_records.survey_number", r.SurveyNumber),
		oneOf(EntityPerson, "land_records.classification", r.Classification, LandWet, LandDry, LandGarden, LandPoramboke, LandOther),
	); err != nil {
		return err
	}
	for _, f := range [...]struct{ name, raw string }{{"land_records.acres", r.Acres}, {"land_records.cents", r.Cents}} {
		v, err := parseArea(f.raw)
		if err != nil || v.IsNegative() {
			return ValidationError{Entity: EntityPerson, Field: f.name, Reason: "must be a non-negative number"}
		}
	}
	return nil
}

// Validate checks the acquisition status enums.
func (s AcquisitionStatus) Validate() error {
	const e = EntityAcquisitionStatus
	return firstErr(
		required(e, "project_id", s.ProjectID),
		required(e, "survey_number", s.SurveyNumber),
		oneOf(e, "financials.advance_payment", s.Financials.AdvancePayment, AdvancePending, AdvancePartial, AdvancePaid),
		oneOf(e, "financials.agreement_status", s.Financials.AgreementStatus, AgreementNotStarted, AgreementDrafted, AgreementSigned),
		oneOf(e, "operations.document_collection", s.Operations.DocumentCollection, DocumentsPending, DocumentsInProgress, DocumentsCollected),
		oneOf(e, "legal.query_status", s.Legal.QueryStatus, QueryOpen, QueryRaised, QueryCleared),
	)
}

func validMode(e EntityType, m PaymentMode) error {
	return oneOf(e, "mode", m, ModeCash, ModeCheque, ModeBankTransfer, ModeUPI, ModeOther)
}

func positive(e EntityType, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ValidationError{Entity: e, Field: "amount", Reason: "must be positive"}
	}
	return nil
}

// Validate checks the transaction form.
func (t TransactionRecord) Validate() error {
	const e = EntityTransactionRecord
	if err := firstErr(
		required(e, "project_id", t.ProjectID),
		required(e, "owner", t.Owner),
		validMode(e, t.Mode),
		positive(e, t.Amount),
	); err != nil {
		return err
	}
	if t.Year < 0 {
		return ValidationError{Entity: e, Field: "year", Reason: "must not be negative"}
	}
	return nil
}

// Validate checks the financial transaction form.
func (t FinancialTransaction) Validate() error {
	const e = EntityFinancialTransaction
	return firstErr(
		required(e, "project_id", t.ProjectID),
		required(e, "survey_number", t.SurveyNumber),
		validMode(e, t.Mode),
		positive(e, t.Amount),
	)
}

// Validate checks the note form.
func (n Note) Validate() error {
	return firstErr(
		required(EntityNote, "project_id", n.ProjectID),
		required(EntityNote, "survey_number", n.SurveyNumber),
		required(EntityNote, "body", n.Body),
	)
}

// Validate checks the task form.
func (t Task) Validate() error {
	return firstErr(
		required(EntityTask, "project_id", t.ProjectID),
		required(EntityTask, "survey_number", t.SurveyNumber),
		required(EntityTask, "title", t.Title),
	)
}

// Validate checks the legal note form.
func (n LegalNote) Validate() error {
	return firstErr(
		required(EntityLegalNote, "project_id", n.ProjectID),
		required(EntityLegalNote, "survey_number", n.SurveyNumber),
		required(EntityLegalNote, "body", n.Body),
	)
}

// Validate checks the user form.
func (u User) Validate() error {
	if err := firstErr(
		required(EntityUser, "name", u.Name),
		required(EntityUser, "email", u.Email),
		oneOf(EntityUser, "status", u.Status, UserActive, UserInactive),
	); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return ValidationError{Entity: EntityUser, Field: "email", Reason: "is not a valid address"}
	}
	if !u.Role.Valid() {
		return ValidationError{Entity: EntityUser, Field: "role", Reason: fmt.Sprintf("has unknown value %q", string(u.Role))}
	}
	return nil
}

// Validate checks document metadata.
func (d Document) Validate() error {
	return firstErr(
		required(EntityDocument, "project_id", d.ProjectID),
		required(EntityDocument, "file_name", d.FileName),
		required(EntityDocument, "blob_key", d.BlobKey),
	)
}
