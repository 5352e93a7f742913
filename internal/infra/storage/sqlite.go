// Package storage persists order and fill history in an embedded sqlite
// database.
package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tradedesk/internal/domain"
)

// OrderRecord is the persisted form of an order.
type OrderRecord struct {
	ID            uint            `gorm:"primaryKey"`
	OrderID       string          `gorm:"uniqueIndex;size:64"`
	Exchange      string          `gorm:"size:32"`
	Base          string          `gorm:"size:16"`
	Quote         string          `gorm:"size:16"`
	TradeType     string          `gorm:"size:16"`
	AmountBase    decimal.Decimal `gorm:"type:text"`
	PriceQ2B      decimal.Decimal `gorm:"type:text"`
	RemainingBase decimal.Decimal `gorm:"type:text"`
	Fake          bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FillRecord is the persisted form of a completed trade.
type FillRecord struct {
	ID              uint            `gorm:"primaryKey"`
	TradeID         string          `gorm:"uniqueIndex;size:64"`
	OrderID         string          `gorm:"index;size:64"`
	Exchange        string          `gorm:"size:32"`
	Base            string          `gorm:"size:16"`
	Quote           string          `gorm:"size:16"`
	TradeType       string          `gorm:"size:16"`
	AmountBase      decimal.Decimal `gorm:"type:text"`
	PriceQ2B        decimal.Decimal `gorm:"type:text"`
	CommissionQuote decimal.Decimal `gorm:"type:text"`
	Fake            bool
	FilledAt        time.Time
}

// Storage wraps the database handle.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path and migrates the
// schema.
func NewStorage(path string) (*Storage, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&OrderRecord{}, &FillRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// SaveOrder upserts the order keyed by OrderID.
func (s *Storage) SaveOrder(o *domain.Order) error {
	rec := OrderRecord{
		OrderID:       o.OrderID,
		Exchange:      o.Pair.Exchange.Name(),
		Base:          o.Pair.Base.Symbol,
		Quote:         o.Pair.Quote.Symbol,
		TradeType:     o.TradeType.String(),
		AmountBase:    o.AmountBase,
		PriceQ2B:      o.PriceQ2B,
		RemainingBase: o.RemainingBase,
		Fake:          o.Fake,
		CreatedAt:     o.Created,
		UpdatedAt:     o.Updated,
	}
	var existing OrderRecord
	err := s.db.Where("order_id = ?", o.OrderID).First(&existing).Error
	if err == nil {
		rec.ID = existing.ID
		return s.db.Save(&rec).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return s.db.Create(&rec).Error
}

// SaveFill appends a fill. A TradeID already present is ignored, matching
// the in-memory dedup semantics.
func (s *Storage) SaveFill(f *domain.TradeCompleted) error {
	rec := FillRecord{
		TradeID:         f.TradeID,
		OrderID:         f.OrderID,
		Exchange:        f.Key.Exchange,
		Base:            f.Key.Base,
		Quote:           f.Key.Quote,
		TradeType:       f.TradeType.String(),
		AmountBase:      f.AmountBase,
		PriceQ2B:        f.PriceQ2B,
		CommissionQuote: f.CommissionQuote,
		Fake:            f.Fake,
		FilledAt:        f.Time,
	}
	var count int64
	if err := s.db.Model(&FillRecord{}).Where("trade_id = ?", f.TradeID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return s.db.Create(&rec).Error
}

// SaveOrderCompleted persists the order and every fill it owns.
func (s *Storage) SaveOrderCompleted(oc *domain.OrderCompleted) error {
	if err := s.SaveOrder(oc.Order); err != nil {
		return err
	}
	for _, f := range oc.Fills() {
		if err := s.SaveFill(f); err != nil {
			return err
		}
	}
	return nil
}

// FillsForOrder returns an order's fills oldest first.
func (s *Storage) FillsForOrder(orderID string) ([]FillRecord, error) {
	var fills []FillRecord
	err := s.db.Where("order_id = ?", orderID).Order("filled_at asc, id asc").Find(&fills).Error
	return fills, err
}

// RecentFills returns the newest limit fills across all orders.
func (s *Storage) RecentFills(limit int) ([]FillRecord, error) {
	var fills []FillRecord
	err := s.db.Order("filled_at desc, id desc").Limit(limit).Find(&fills).Error
	return fills, err
}

// Orders returns every persisted order, newest first.
func (s *Storage) Orders() ([]OrderRecord, error) {
	var orders []OrderRecord
	err := s.db.Order("created_at desc, id desc").Find(&orders).Error
	return orders, err
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
