package core

import (
	"context"

	"landledger/pkg/domain"
)

// RecordTransaction appends a transaction to the project ledger. Ledger
// entries cannot be edited once recorded.
func (s *Service) RecordTransaction(ctx context.Context, rec domain.TransactionRecord) (domain.TransactionRecord, domain.Result, error) {
	var created domain.TransactionRecord
	res, err := s.run(ctx, "record_transaction", func(tx domain.Transaction) (string, error) {
		if err := rec.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateTransactionRecord(rec)
		return created.ID, err
	})
	return created, res, err
}

// ListTransactions returns the project ledger in recording order.
func (s *Service) ListTransactions(ctx context.Context, projectID string) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	err := s.read(ctx, "list_transactions", func(v domain.TransactionView) error {
		out = v.ListTransactionRecords(projectID)
		return nil
	})
	return out, err
}

// RecordFinancialTransaction appends a payment against a survey number.
func (s *Service) RecordFinancialTransaction(ctx context.Context, rec domain.FinancialTransaction) (domain.FinancialTransaction, domain.Result, error) {
	var created domain.FinancialTransaction
	res, err := s.run(ctx, "record_financial_transaction", func(tx domain.Transaction) (string, error) {
		if err := rec.Validate(); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateFinancialTransaction(rec)
		return created.ID, err
	})
	return created, res, err
}

// ListFinancialTransactions returns the project's payments in recording order.
func (s *Service) ListFinancialTransactions(ctx context.Context, projectID string) ([]domain.FinancialTransaction, error) {
	var out []domain.FinancialTransaction
	err := s.read(ctx, "list_financial_transactions", func(v domain.TransactionView) error {
		out = v.ListFinancialTransactions(projectID)
		return nil
	})
	return out, err
}
