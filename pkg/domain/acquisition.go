package domain

import "time"

// AdvancePayment tracks the advance paid to the land owner.
type AdvancePayment string

const (
	AdvancePending AdvancePayment = "pending"
	AdvancePartial AdvancePayment = "partial"
	AdvancePaid    AdvancePayment = "paid"
)

// AgreementStatus tracks the sale agreement.
type AgreementStatus string

const (
	AgreementNotStarted AgreementStatus = "not_started"
	AgreementDrafted    AgreementStatus = "drafted"
	AgreementSigned     AgreementStatus = "signed"
)

// DocumentCollection tracks collection of title documents from the owner.
type DocumentCollection string

const (
	DocumentsPending    DocumentCollection = "pending"
	DocumentsInProgress DocumentCollection = "in_progress"
	DocumentsCollected  DocumentCollection = "collected"
)

// QueryStatus tracks the legal query raised against a parcel.
type QueryStatus string

const (
	QueryOpen    QueryStatus = "open"
	QueryRaised  QueryStatus = "raised"
	QueryCleared QueryStatus = "cleared"
)

// Financials groups the money side of an acquisition.
type Financials struct {
	AdvancePayment  AdvancePayment  `json:"advance_payment"`
	AgreementStatus AgreementStatus `json:"agreement_status"`
}

// Complete reports whether the financial step is done.
func (f Financials) Complete() bool {
	return f.AdvancePayment == AdvancePaid && f.AgreementStatus == AgreementSigned
}

// Operations groups the field work of an acquisition.
type Operations struct {
	MeetingDate        *time.Time         `json:"meeting_date,omitempty"`
	DocumentCollection DocumentCollection `json:"document_collection"`
}

// Complete reports whether the operations step is done.
func (o Operations) Complete() bool {
	return o.MeetingDate != nil && !o.MeetingDate.IsZero() && o.DocumentCollection == DocumentsCollected
}

// Legal groups the legal clearance of an acquisition.
type Legal struct {
	QueryStatus QueryStatus `json:"query_status"`
}

// Complete reports whether the legal step is done.
func (l Legal) Complete() bool {
	return l.QueryStatus == QueryCleared
}

// AcquisitionStatus is the progress record of one survey number. The three
// sub-objects are independent; their combination is summarised by Stage.
type AcquisitionStatus struct {
	Base
	ProjectID    string     `json:"project_id"`
	SurveyNumber string     `json:"survey_number"`
	Financials   Financials `json:"financials"`
	Operations   Operations `json:"operations"`
	Legal        Legal      `json:"legal"`
}

// AcquisitionStage is the derived position of a parcel in the pipeline.
type AcquisitionStage string

const (
	StageFinancials AcquisitionStage = "financials"
	StageOperations AcquisitionStage = "operations"
	StageLegal      AcquisitionStage = "legal"
	StageCompleted  AcquisitionStage = "completed"
)

// AcquisitionStages lists stages in pipeline order.
var AcquisitionStages = []AcquisitionStage{StageFinancials, StageOperations, StageLegal, StageCompleted}

// Stage returns the first incomplete step, or completed.
func (s AcquisitionStatus) Stage() AcquisitionStage {
	switch {
	case !s.Financials.Complete():
		return StageFinancials
	case !s.Operations.Complete():
		return StageOperations
	case !s.Legal.Complete():
		return StageLegal
	default:
		return StageCompleted
	}
}

// ApplyDefaults fills unset enum fields with their initial state.
func (s *AcquisitionStatus) ApplyDefaults() {
	if s.Financials.AdvancePayment == "" {
		s.Financials.AdvancePayment = AdvancePending
	}
	if s.Financials.AgreementStatus == "" {
		s.Financials.AgreementStatus = AgreementNotStarted
	}
	if s.Operations.DocumentCollection == "" {
		s.Operations.DocumentCollection = DocumentsPending
	}
	if s.Legal.QueryStatus == "" {
		s.Legal.QueryStatus = QueryOpen
	}
}
