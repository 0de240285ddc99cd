package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMode is how money changed hands.
type PaymentMode string

const (
	ModeCash         PaymentMode = "cash"
	ModeCheque       PaymentMode = "cheque"
	ModeBankTransfer PaymentMode = "bank_transfer"
	ModeUPI          PaymentMode = "upi"
	ModeOther        PaymentMode = "other"
)

// TransactionRecord is a historic title transfer or payment on a parcel.
// Records are append-only.
type TransactionRecord struct {
	Base
	ProjectID      string          `json:"project_id"`
	Owner          string          `json:"owner"`
	Source         string          `json:"source,omitempty"`
	Mode           PaymentMode     `json:"mode,omitempty"`
	Year           int             `json:"year,omitempty"`
	DocumentNumber string          `json:"document_number,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Purpose        string          `json:"purpose,omitempty"`
}

// FinancialTransaction is a payment made by the acquiring party against a
// survey number. Records are append-only.
type FinancialTransaction struct {
	Base
	ProjectID    string          `json:"project_id"`
	SurveyNumber string          `json:"survey_number"`
	Payee        string          `json:"payee,omitempty"`
	Mode         PaymentMode     `json:"mode,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Purpose      string          `json:"purpose,omitempty"`
	PaidOn       time.Time       `json:"paid_on"`
}
