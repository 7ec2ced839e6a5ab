package service

import (
	"context"

	"commerce-core/internal/ledger"
	"commerce-core/internal/models"
	"commerce-core/internal/store"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// StockCache is a read-through cache for stock rows.
type StockCache interface {
	GetProductStock(ctx context.Context, productID int64) (*models.ProductStock, error)
	SetProductStock(ctx context.Context, ps *models.ProductStock) error
}

// StockService exposes manual stock adjustments and cached stock reads.
// Manual adjustments use the ADJUSTMENT reference type; this is the only
// sanctioned way to reverse stock of a completed order.
type StockService struct {
	store  store.Store
	ledger *ledger.Ledger
	coord  *Coordinator
	cache  StockCache
	logger *zap.Logger
}

// NewStockService creates a new stock service. cache may be nil.
func NewStockService(st store.Store, lg *ledger.Ledger, coord *Coordinator, cache StockCache) *StockService {
	return &StockService{
		store:  st,
		ledger: lg,
		coord:  coord,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// AdjustStockRequest describes a manual stock correction.
type AdjustStockRequest struct {
	ProductID int64            `json:"product_id" binding:"required"`
	Quantity  int              `json:"quantity" binding:"required,min=1"`
	Direction models.Direction `json:"direction" binding:"required,oneof=IN OUT"`
	Reason    string           `json:"reason" binding:"required"`
}

// Adjust applies a manual adjustment through the ledger.
func (s *StockService) Adjust(ctx context.Context, req AdjustStockRequest) (*models.Movement, error) {
	ctx, span := util.StartSpan(ctx, "StockService.Adjust")
	defer span.End()

	var movement *models.Movement
	err := s.coord.Run(ctx, func(tx store.Tx, pc *PostCommit) error {
		var err error
		movement, err = s.ledger.Adjust(ctx, tx, ledger.AdjustRequest{
			ProductID:     req.ProductID,
			Quantity:      req.Quantity,
			Direction:     req.Direction,
			Reason:        req.Reason,
			ReferenceType: models.ReferenceAdjustment,
		})
		if err != nil {
			return err
		}
		pc.TouchProduct(req.ProductID)
		scheduleStockEvent(pc, movement)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("manual stock adjustment",
		zap.Int64("product_id", req.ProductID),
		zap.String("direction", string(req.Direction)),
		zap.Int("quantity", req.Quantity),
		zap.String("reason", req.Reason))
	return movement, nil
}

// GetStock returns the stock row for a product, read-through cached.
func (s *StockService) GetStock(ctx context.Context, productID int64) (*models.ProductStock, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProductStock(ctx, productID)
		if err != nil {
			s.logger.Warn("stock cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	ps, err := s.store.ProductStock(ctx, productID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetProductStock(ctx, ps); err != nil {
			s.logger.Warn("stock cache write failed", zap.Error(err))
		}
	}
	return ps, nil
}

// Movements returns the full movement history for a product.
func (s *StockService) Movements(ctx context.Context, productID int64) ([]models.Movement, error) {
	return s.store.ProductMovements(ctx, productID)
}
