package ledger

import (
	"context"
	"fmt"
	"sort"

	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// Ledger owns the authoritative stock counter per product and the append-only
// movement log. Every stock mutation in the system goes through Adjust, inside
// a transaction supplied by the caller, so the counter and its movement row
// always commit together.
type Ledger struct {
	logger *zap.Logger
}

// New creates a ledger.
func New() *Ledger {
	return &Ledger{logger: util.GetLogger()}
}

// AdjustRequest describes one stock mutation.
type AdjustRequest struct {
	ProductID     int64
	Quantity      int
	Direction     models.Direction
	Reason        string
	ReferenceID   int64
	ReferenceType models.ReferenceType
}

// Adjust atomically moves stock and appends the movement row recording it.
// The stock row is read with a row-level lock, so two concurrent OUT
// adjustments of the same product serialize instead of both passing the
// availability check against a stale read. An OUT that would drive the
// counter negative fails with InsufficientStockError and mutates nothing.
func (l *Ledger) Adjust(ctx context.Context, tx store.Tx, req AdjustRequest) (*models.Movement, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("adjust quantity must be positive, got %d", req.Quantity)
	}
	if req.Direction != models.DirectionIn && req.Direction != models.DirectionOut {
		return nil, fmt.Errorf("unknown adjust direction %q", req.Direction)
	}

	ps, err := tx.StockForUpdate(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	var newStock int
	switch req.Direction {
	case models.DirectionIn:
		newStock = ps.Stock + req.Quantity
	case models.DirectionOut:
		if ps.Stock < req.Quantity {
			return nil, &models.InsufficientStockError{
				ProductID: req.ProductID,
				Requested: req.Quantity,
				Available: ps.Stock,
			}
		}
		newStock = ps.Stock - req.Quantity
	}

	if err := tx.UpdateStock(ctx, req.ProductID, newStock); err != nil {
		return nil, fmt.Errorf("failed to update stock: %w", err)
	}

	movement := &models.Movement{
		ProductID:     req.ProductID,
		Direction:     req.Direction,
		Quantity:      req.Quantity,
		PreviousStock: ps.Stock,
		NewStock:      newStock,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
		ReferenceType: req.ReferenceType,
	}
	if err := tx.InsertMovement(ctx, movement); err != nil {
		return nil, fmt.Errorf("failed to record movement: %w", err)
	}

	util.StockMovementsTotal.WithLabelValues(string(req.Direction)).Inc()
	l.logger.Debug("stock adjusted",
		zap.Int64("product_id", req.ProductID),
		zap.String("direction", string(req.Direction)),
		zap.Int("quantity", req.Quantity),
		zap.Int("new_stock", newStock))

	return movement, nil
}

// Restore returns to stock whatever a reference previously took out and has
// not yet put back. Quantities are reconciled against the movement log (OUT
// minus IN per product for the reference), not the order items, so a restore
// never doubles up even if it races item edits or runs after a partial
// earlier restore. Products are processed in ID order to keep lock
// acquisition deterministic across concurrent transactions.
func (l *Ledger) Restore(ctx context.Context, tx store.Tx, refID int64, refType models.ReferenceType, reason string) ([]models.Movement, error) {
	movements, err := tx.MovementsByReference(ctx, refID, refType)
	if err != nil {
		return nil, fmt.Errorf("failed to load movements: %w", err)
	}

	outstanding := make(map[int64]int)
	for _, m := range movements {
		switch m.Direction {
		case models.DirectionOut:
			outstanding[m.ProductID] += m.Quantity
		case models.DirectionIn:
			outstanding[m.ProductID] -= m.Quantity
		}
	}

	productIDs := make([]int64, 0, len(outstanding))
	for id, qty := range outstanding {
		if qty > 0 {
			productIDs = append(productIDs, id)
		}
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	restored := make([]models.Movement, 0, len(productIDs))
	for _, productID := range productIDs {
		m, err := l.Adjust(ctx, tx, AdjustRequest{
			ProductID:     productID,
			Quantity:      outstanding[productID],
			Direction:     models.DirectionIn,
			Reason:        reason,
			ReferenceID:   refID,
			ReferenceType: refType,
		})
		if err != nil {
			return nil, err
		}
		restored = append(restored, *m)
	}
	return restored, nil
}
