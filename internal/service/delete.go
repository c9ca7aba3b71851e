package service

import (
	"context"
	"fmt"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/xid"
)

// DeleteDocument soft-deletes a document. Stock is returned first, then the
// document is flagged, then its linked ledger entries are removed.
func (s *Service) DeleteDocument(ctx context.Context, user domain.Actor, kind domain.DocumentKind, id string) (domain.DeleteResult, error) {
	if err := requireUser(user); err != nil {
		return domain.DeleteResult{}, err
	}
	if !xid.Valid(id) {
		return domain.DeleteResult{}, ErrInvalidID
	}

	release, err := s.locker.Acquire(ctx, documentLockKey(kind, id))
	if err != nil {
		return domain.DeleteResult{}, err
	}
	defer release()

	doc, err := s.loadActive(ctx, user, kind, id)
	if err != nil {
		return domain.DeleteResult{}, err
	}

	applied := s.applyDelete(ctx, kind, user.BusinessID, doc.Items)

	deleted := *doc
	deleted.IsDeleted = true
	deleted.UpdatedBy = user.UserID
	deleted.UpdatedAt = s.now()
	if _, err := s.repo.UpdateDocument(ctx, deleted); err != nil {
		s.compensateStock(ctx, user.BusinessID, applied)
		return domain.DeleteResult{}, fmt.Errorf("persist %s delete: %w", kind, err)
	}

	s.unlinkLedger(ctx, deleted)
	s.logAudit(ctx, user, string(kind)+"_delete", string(kind), deleted.ID, "invoice="+deleted.InvoiceNo)

	return domain.DeleteResult{Message: kind.Label() + " deleted successfully"}, nil
}
