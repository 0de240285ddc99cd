package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "nope"}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() != "transaction blocked by rules: block: nope" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(staticRule{"other"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected two violations, got %d", len(res.Violations))
	}
	if names := engine.Rules(); len(names) != 2 || names[0] != "warn" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{ TransactionView }

func TestAcquisitionStageProgression(t *testing.T) {
	status := AcquisitionStatus{ProjectID: "p", SurveyNumber: "12/3"}
	status.ApplyDefaults()
	if got := status.Stage(); got != StageFinancials {
		t.Fatalf("expected financials, got %s", got)
	}
	status.Financials = Financials{AdvancePayment: AdvancePaid, AgreementStatus: AgreementSigned}
	if got := status.Stage(); got != StageOperations {
		t.Fatalf("expected operations, got %s", got)
	}
	meeting := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	status.Operations = Operations{MeetingDate: &meeting, DocumentCollection: DocumentsCollected}
	if got := status.Stage(); got != StageLegal {
		t.Fatalf("expected legal, got %s", got)
	}
	status.Legal.QueryStatus = QueryCleared
	if got := status.Stage(); got != StageCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestAcquisitionStageIgnoresLaterStepsUntilEarlierComplete(t *testing.T) {
	status := AcquisitionStatus{
		Financials: Financials{AdvancePayment: AdvancePartial, AgreementStatus: AgreementSigned},
		Legal:      Legal{QueryStatus: QueryCleared},
	}
	if got := status.Stage(); got != StageFinancials {
		t.Fatalf("expected financials, got %s", got)
	}
}

func TestSurveyRecordExtent(t *testing.T) {
	rec := SurveyRecord{SurveyNumber: "41", Acres: "2", Cents: "50"}
	got, err := rec.Extent()
	if err != nil {
		t.Fatalf("extent: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected 2.5 acres, got %s", got)
	}
	if _, err := (SurveyRecord{Acres: "x"}).Extent(); err == nil {
		t.Fatalf("expected parse error")
	}
	empty, err := (SurveyRecord{}).Extent()
	if err != nil || !empty.IsZero() {
		t.Fatalf("expected zero extent, got %s %v", empty, err)
	}
}

func TestValidationRequiredFields(t *testing.T) {
	var vErr ValidationError
	if err := (Project{}).Validate(); !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("expected name validation error, got %v", err)
	}
	if err := (Person{ProjectID: "p"}).Validate(); !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("expected person name error, got %v", err)
	}
	person := Person{ProjectID: "p", Name: "Ravi", LandRecords: []SurveyRecord{{SurveyNumber: ""}}}
	if err := person.Validate(); !errors.As(err, &vErr) || vErr.Field != "land_records.survey_number" {
		t.Fatalf("expected survey number error, got %v", err)
	}
	person.LandRecords[0] = SurveyRecord{SurveyNumber: "1", Acres: "-1"}
	if err := person.Validate(); !errors.As(err, &vErr) || vErr.Field != "land_records.acres" {
		t.Fatalf("expected acres error, got %v", err)
	}
	if err := (Person{ProjectID: "p", Name: "A", Gender: "unknown"}).Validate(); err == nil {
		t.Fatalf("expected gender enum error")
	}
}

func TestValidationLedgerAmounts(t *testing.T) {
	tx := TransactionRecord{ProjectID: "p", Owner: "Lakshmi", Amount: decimal.Zero}
	if err := tx.Validate(); err == nil {
		t.Fatalf("expected amount error")
	}
	tx.Amount = decimal.NewFromInt(1000)
	tx.Mode = "barter"
	if err := tx.Validate(); err == nil {
		t.Fatalf("expected mode error")
	}
	tx.Mode = ModeCheque
	if err := tx.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fin := FinancialTransaction{ProjectID: "p", SurveyNumber: "7", Amount: decimal.NewFromInt(5)}
	if err := fin.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUserValidationAndRoles(t *testing.T) {
	u := User{Name: "Asha", Email: "asha@example.com", Role: RoleLawyer}
	if err := u.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u.Email = "not-an-email"
	if err := u.Validate(); err == nil {
		t.Fatalf("expected email error")
	}
	u.Email = "asha@example.com"
	u.Role = "owner"
	if err := u.Validate(); err == nil {
		t.Fatalf("expected role error")
	}
	if r, ok := ParseRole("Super Admin"); !ok || r != RoleSuperAdmin {
		t.Fatalf("expected super admin, got %q %v", r, ok)
	}
	if RoleAggregator.Label() != "Aggregator" {
		t.Fatalf("unexpected label %q", RoleAggregator.Label())
	}
	if len(Roles()) != 5 {
		t.Fatalf("expected closed set of five roles")
	}
	u.ProjectIDs = []string{"a", "b"}
	if !u.AssignedTo("b") || u.AssignedTo("c") {
		t.Fatalf("unexpected assignment result")
	}
}

func TestParseLandClassification(t *testing.T) {
	if c, ok := ParseLandClassification(" Wet "); !ok || c != LandWet {
		t.Fatalf("expected wet, got %q", c)
	}
	if _, ok := ParseLandClassification("swamp"); ok {
		t.Fatalf("expected unknown classification")
	}
}

func TestPersonHelpers(t *testing.T) {
	parent := "root"
	p := Person{ParentID: &parent, LandRecords: []SurveyRecord{{ID: "r1", SurveyNumber: "9"}}}
	if p.IsFamilyHead() {
		t.Fatalf("expected heir")
	}
	if rec, ok := p.LandRecord("r1"); !ok || rec.SurveyNumber != "9" {
		t.Fatalf("expected land record")
	}
	if !(Person{}).IsFamilyHead() {
		t.Fatalf("expected family head")
	}
}
