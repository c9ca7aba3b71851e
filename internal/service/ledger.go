package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

// ledgerEntry is one transaction a document wants in the party ledger.
type ledgerEntry struct {
	source      string
	txType      string
	amount      decimal.Decimal
	description string
}

// ledgerEntries returns the value and the settlement entry of doc. Amounts
// may be zero; callers decide what that means.
func ledgerEntries(doc domain.Document) []ledgerEntry {
	value := doc.TotalAmount
	if !value.IsPositive() {
		value = doc.BalanceAmount
	}

	if doc.Kind == domain.KindSaleReturn {
		return []ledgerEntry{
			{source: domain.LinkSourceSaleReturn, txType: domain.TxTypeGave, amount: value, description: "Sale Return " + doc.InvoiceNo},
			{source: domain.LinkSourceSaleReturnRefund, txType: domain.TxTypeGot, amount: doc.AmountRefunded, description: "Refund for " + doc.InvoiceNo},
		}
	}
	return []ledgerEntry{
		{source: domain.LinkSourceSale, txType: domain.TxTypeGot, amount: value, description: "Sale " + doc.InvoiceNo},
		{source: domain.LinkSourceSalePayment, txType: domain.TxTypeGave, amount: doc.AmountReceived, description: "Payment received for " + doc.InvoiceNo},
	}
}

func (s *Service) newLinkedTransaction(doc domain.Document, entry ledgerEntry) domain.Transaction {
	return domain.Transaction{
		ID:          xid.New(),
		BusinessID:  doc.BusinessID,
		PartyID:     doc.PartyID,
		Amount:      entry.amount,
		Type:        entry.txType,
		Description: entry.description,
		Date:        doc.InvoiceDate,
		Linked:      &domain.TransactionLink{Source: entry.source, RefID: doc.ID},
		CreatedBy:   doc.UpdatedBy,
		CreatedAt:   s.now(),
	}
}

// linkLedger creates the missing linked transactions of a new document.
// Failures are logged and never reach the caller.
func (s *Service) linkLedger(ctx context.Context, doc domain.Document) {
	if doc.PartyID == "" {
		return
	}
	for _, entry := range ledgerEntries(doc) {
		if !entry.amount.IsPositive() {
			continue
		}
		s.createLinked(ctx, doc, entry)
	}
}

func (s *Service) createLinked(ctx context.Context, doc domain.Document, entry ledgerEntry) {
	fields := logrus.Fields{"businessId": doc.BusinessID, "source": entry.source, "refId": doc.ID}

	if _, err := s.repo.FindLinkedTransaction(ctx, doc.BusinessID, entry.source, doc.ID); err == nil {
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		logging.LogWarn(s.log, "ledger", "createLinked", "linked transaction lookup failed", fields, err)
		return
	}

	_, err := s.repo.CreateLinkedTransaction(ctx, s.newLinkedTransaction(doc, entry))
	if errors.Is(err, store.ErrDuplicateLink) {
		return
	}
	if err != nil {
		logging.LogWarn(s.log, "ledger", "createLinked", "linked transaction create failed", fields, err)
	}
}

// syncLedger brings the linked transactions of an updated document in line
// with its new amounts and party.
func (s *Service) syncLedger(ctx context.Context, doc domain.Document) {
	for _, entry := range ledgerEntries(doc) {
		fields := logrus.Fields{"businessId": doc.BusinessID, "source": entry.source, "refId": doc.ID}
		wanted := doc.PartyID != "" && entry.amount.IsPositive()

		existing, err := s.repo.FindLinkedTransaction(ctx, doc.BusinessID, entry.source, doc.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			if wanted {
				s.createLinked(ctx, doc, entry)
			}
			continue
		case err != nil:
			logging.LogWarn(s.log, "ledger", "syncLedger", "linked transaction lookup failed", fields, err)
			continue
		}

		if !wanted {
			if err := s.repo.DeleteTransaction(ctx, doc.BusinessID, existing.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				logging.LogWarn(s.log, "ledger", "syncLedger", "stale linked transaction delete failed", fields, err)
			}
			continue
		}

		if existing.Amount.Equal(entry.amount) && existing.PartyID == doc.PartyID &&
			existing.Description == entry.description && existing.Date.Equal(doc.InvoiceDate) {
			continue
		}
		existing.Amount = entry.amount
		existing.PartyID = doc.PartyID
		existing.Type = entry.txType
		existing.Description = entry.description
		existing.Date = doc.InvoiceDate
		if _, err := s.repo.UpdateTransaction(ctx, *existing); err != nil {
			logging.LogWarn(s.log, "ledger", "syncLedger", "linked transaction update failed", fields, err)
		}
	}
}

// unlinkLedger removes every transaction linked to the document, whatever
// its source. Each failure is logged and the rest continue.
func (s *Service) unlinkLedger(ctx context.Context, doc domain.Document) {
	linked, err := s.repo.ListTransactionsByRef(ctx, doc.BusinessID, doc.ID)
	if err != nil {
		logging.LogWarn(s.log, "ledger", "unlinkLedger", "linked transaction listing failed", logrus.Fields{"refId": doc.ID}, err)
		return
	}
	for _, tx := range linked {
		if err := s.repo.DeleteTransaction(ctx, doc.BusinessID, tx.ID); err != nil {
			logging.LogWarn(s.log, "ledger", "unlinkLedger", "linked transaction delete failed", logrus.Fields{
				"refId":         doc.ID,
				"transactionId": tx.ID,
			}, err)
		}
	}
}
