package plotcsv

import (
	"strings"
	"time"

	"landledger/pkg/domain"
)

type statusEffect func(s *domain.AcquisitionStatus, at time.Time)

func advance(a domain.AdvancePayment) statusEffect {
	return func(s *domain.AcquisitionStatus, _ time.Time) { s.Financials.AdvancePayment = a }
}

func agreement(a domain.AgreementStatus) statusEffect {
	return func(s *domain.AcquisitionStatus, _ time.Time) { s.Financials.AgreementStatus = a }
}

func financialsDone(s *domain.AcquisitionStatus, _ time.Time) {
	s.Financials = domain.Financials{AdvancePayment: domain.AdvancePaid, AgreementStatus: domain.AgreementSigned}
}

func meetingHeld(s *domain.AcquisitionStatus, at time.Time) {
	financialsDone(s, at)
	if s.Operations.MeetingDate == nil {
		t := at
		s.Operations.MeetingDate = &t
	}
}

func documents(d domain.DocumentCollection) statusEffect {
	return func(s *domain.AcquisitionStatus, at time.Time) {
		financialsDone(s, at)
		s.Operations.DocumentCollection = d
	}
}

func query(q domain.QueryStatus) statusEffect {
	return func(s *domain.AcquisitionStatus, _ time.Time) { s.Legal.QueryStatus = q }
}

func completed(s *domain.AcquisitionStatus, at time.Time) {
	meetingHeld(s, at)
	s.Operations.DocumentCollection = domain.DocumentsCollected
	s.Legal.QueryStatus = domain.QueryCleared
}

// plotStatuses maps the chart's status phrases onto the acquisition record.
// Phrases that imply a later step also complete the earlier ones.
var plotStatuses = map[string]statusEffect{
	"pending":               func(*domain.AcquisitionStatus, time.Time) {},
	"advance pending":       advance(domain.AdvancePending),
	"partial advance":       advance(domain.AdvancePartial),
	"advance partial":       advance(domain.AdvancePartial),
	"partially paid":        advance(domain.AdvancePartial),
	"advance paid":          advance(domain.AdvancePaid),
	"paid":                  advance(domain.AdvancePaid),
	"agreement drafted":     agreement(domain.AgreementDrafted),
	"drafted":               agreement(domain.AgreementDrafted),
	"agreement signed":      financialsDone,
	"signed":                financialsDone,
	"meeting held":          meetingHeld,
	"meeting done":          meetingHeld,
	"documents in progress": documents(domain.DocumentsInProgress),
	"documents collected":   documents(domain.DocumentsCollected),
	"collected":             documents(domain.DocumentsCollected),
	"query raised":          query(domain.QueryRaised),
	"legal query":           query(domain.QueryRaised),
	"legal cleared":         query(domain.QueryCleared),
	"query cleared":         query(domain.QueryCleared),
	"registered":            completed,
	"completed":             completed,
}

// ApplyPlotStatus updates s according to a chart status phrase. at stands in
// for the meeting date when the phrase implies a meeting took place and none
// is recorded. Unknown phrases leave s untouched and report false.
func ApplyPlotStatus(s *domain.AcquisitionStatus, phrase string, at time.Time) bool {
	effect, ok := plotStatuses[strings.Join(strings.Fields(strings.ToLower(phrase)), " ")]
	if !ok {
		return false
	}
	s.ApplyDefaults()
	effect(s, at)
	return true
}

// StatusPhrases lists the recognised phrases in matching order.
func StatusPhrases() []string {
	out := make([]string, len(phrases))
	for i, p := range phrases {
		out[i] = strings.Join(p, " ")
	}
	return out
}

// PhraseFor returns the chart phrase that best describes s, for writing a
// chart back out. The mapping is lossy.
func PhraseFor(s domain.AcquisitionStatus) string {
	switch {
	case s.Stage() == domain.StageCompleted:
		return "registered"
	case s.Legal.QueryStatus == domain.QueryRaised:
		return "query raised"
	case s.Operations.DocumentCollection == domain.DocumentsCollected:
		return "documents collected"
	case s.Operations.DocumentCollection == domain.DocumentsInProgress:
		return "documents in progress"
	case s.Operations.MeetingDate != nil:
		return "meeting held"
	case s.Financials.Complete():
		return "agreement signed"
	case s.Financials.AgreementStatus == domain.AgreementDrafted:
		return "agreement drafted"
	case s.Financials.AdvancePayment == domain.AdvancePaid:
		return "advance paid"
	case s.Financials.AdvancePayment == domain.AdvancePartial:
		return "partially paid"
	}
	return "pending"
}
