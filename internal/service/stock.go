package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"bahikhata/backend/internal/domain"
	"bahikhata/backend/internal/logging"
	"bahikhata/backend/internal/store"
	"bahikhata/backend/internal/xid"
)

// resolveProduct finds the product a line item refers to: the explicit id
// first, then an exact name match inside the business.
func (s *Service) resolveProduct(ctx context.Context, businessID string, item domain.LineItem) (*domain.Product, error) {
	if id := strings.TrimSpace(item.ProductID); id != "" {
		if !xid.Valid(id) {
			return nil, store.ErrNotFound
		}
		return s.repo.GetProduct(ctx, businessID, id)
	}
	name := strings.TrimSpace(item.Name)
	if name == "" {
		return nil, store.ErrNotFound
	}
	return s.repo.FindProductByName(ctx, businessID, name)
}

// normalizeItems pins every resolvable item to its product id so later
// updates reconcile by id even if the item is renamed.
func (s *Service) normalizeItems(ctx context.Context, businessID string, items []domain.LineItem) []domain.LineItem {
	normalized := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		item.ProductID = strings.TrimSpace(item.ProductID)
		if item.ProductID == "" && item.Name != "" {
			if product, err := s.repo.FindProductByName(ctx, businessID, item.Name); err == nil {
				item.ProductID = product.ID
				if item.Unit == "" {
					item.Unit = product.Unit
				}
			}
		}
		normalized = append(normalized, item)
	}
	return normalized
}

type stockLedger struct {
	order []string
	qty   map[string]decimal.Decimal
}

func newStockLedger() *stockLedger {
	return &stockLedger{qty: make(map[string]decimal.Decimal)}
}

func (l *stockLedger) add(productID string, qty decimal.Decimal) {
	if _, ok := l.qty[productID]; !ok {
		l.order = append(l.order, productID)
	}
	l.qty[productID] = l.qty[productID].Add(qty)
}

// aggregate sums quantities per resolved product. Items that resolve to no
// product are logged and left out.
func (s *Service) aggregate(ctx context.Context, businessID string, items []domain.LineItem) *stockLedger {
	agg := newStockLedger()
	for _, item := range items {
		product, err := s.resolveProduct(ctx, businessID, item)
		if err != nil {
			fields := logrus.Fields{"businessId": businessID, "productId": item.ProductID, "name": item.Name}
			if errors.Is(err, store.ErrNotFound) {
				logging.LogWarn(s.log, "stock", "aggregate", "line item product not resolved, stock untouched", fields, nil)
			} else {
				logging.LogWarn(s.log, "stock", "aggregate", "product lookup failed, stock untouched", fields, err)
			}
			continue
		}
		agg.add(product.ID, item.Qty)
	}
	return agg
}

// applyCreate moves stock for a new document: sale -1, return +1 per unit.
func (s *Service) applyCreate(ctx context.Context, kind domain.DocumentKind, businessID string, items []domain.LineItem) []domain.StockAdjustment {
	sign := decimal.NewFromInt(kind.StockSign())
	agg := s.aggregate(ctx, businessID, items)

	changes := make([]domain.StockAdjustment, 0, len(agg.order))
	for _, id := range agg.order {
		changes = append(changes, domain.StockAdjustment{ProductID: id, Delta: agg.qty[id].Mul(sign)})
	}
	return s.applyAdjustments(ctx, businessID, changes)
}

// applyUpdate moves stock by the per-product difference between the stored
// and submitted items, with the same sign convention as create.
func (s *Service) applyUpdate(ctx context.Context, kind domain.DocumentKind, businessID string, oldItems []domain.LineItem, newItems []domain.LineItem) []domain.StockAdjustment {
	sign := decimal.NewFromInt(kind.StockSign())
	before := s.aggregate(ctx, businessID, oldItems)
	after := s.aggregate(ctx, businessID, newItems)

	ids := make([]string, 0, len(before.order)+len(after.order))
	seen := make(map[string]bool, cap(ids))
	for _, id := range append(append([]string{}, before.order...), after.order...) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	changes := make([]domain.StockAdjustment, 0, len(ids))
	for _, id := range ids {
		delta := after.qty[id].Sub(before.qty[id])
		if delta.IsZero() {
			continue
		}
		changes = append(changes, domain.StockAdjustment{ProductID: id, Delta: delta.Mul(sign)})
	}
	return s.applyAdjustments(ctx, businessID, changes)
}

// applyDelete is the exact inverse of applyCreate over the stored items.
func (s *Service) applyDelete(ctx context.Context, kind domain.DocumentKind, businessID string, items []domain.LineItem) []domain.StockAdjustment {
	sign := decimal.NewFromInt(-kind.StockSign())
	agg := s.aggregate(ctx, businessID, items)

	changes := make([]domain.StockAdjustment, 0, len(agg.order))
	for _, id := range agg.order {
		changes = append(changes, domain.StockAdjustment{ProductID: id, Delta: agg.qty[id].Mul(sign)})
	}
	return s.applyAdjustments(ctx, businessID, changes)
}

func (s *Service) applyAdjustments(ctx context.Context, businessID string, changes []domain.StockAdjustment) []domain.StockAdjustment {
	applied := make([]domain.StockAdjustment, 0, len(changes))
	for _, change := range changes {
		if change.Delta.IsZero() {
			continue
		}
		if err := s.repo.AdjustStock(ctx, businessID, change.ProductID, change.Delta); err != nil {
			logging.LogWarn(s.log, "stock", "applyAdjustments", "stock adjustment failed", logrus.Fields{
				"businessId": businessID,
				"productId":  change.ProductID,
				"delta":      change.Delta.String(),
			}, err)
			continue
		}
		applied = append(applied, change)
	}
	return applied
}

// compensateStock undoes adjustments after the document write failed.
func (s *Service) compensateStock(ctx context.Context, businessID string, applied []domain.StockAdjustment) {
	for i := len(applied) - 1; i >= 0; i-- {
		change := applied[i]
		if err := s.repo.AdjustStock(context.WithoutCancel(ctx), businessID, change.ProductID, change.Delta.Neg()); err != nil {
			logging.LogError(s.log, "stock", "compensateStock", "stock compensation failed", logrus.Fields{
				"businessId": businessID,
				"productId":  change.ProductID,
				"delta":      change.Delta.Neg().String(),
			}, err)
		}
	}
}
