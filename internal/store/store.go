// Package store defines the persistence contract for the ledger and the
// errors every implementation reports through.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saripos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientCash  = errors.New("insufficient cash")
	ErrOverReturn        = errors.New("return exceeds remaining sold quantity")
	ErrNonZeroQuantity   = errors.New("batch quantity is not zero")
	ErrBatchDeleted      = errors.New("batch is deleted")
	ErrForbidden         = errors.New("forbidden")
)

// InsufficientStockError reports how far short the active batches of one
// product fall of a requested quantity. Unwraps to ErrInsufficientStock so
// callers can keep dispatching with errors.Is.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d (short %d)",
		e.ProductID, e.Requested, e.Available, e.Shortfall())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

func (e *InsufficientStockError) Shortfall() int { return e.Requested - e.Available }

// SaleDraftLine is one validated sale line with the selling price already
// snapshotted. Batch allocation happens inside the store transaction.
type SaleDraftLine struct {
	ProductID  string
	Quantity   int
	PriceCents int64
}

// Repository is the full persistence surface. Every quantity mutation is
// atomic with its inventory history row; there is no way to update or delete
// history through this interface.
type Repository interface {
	// Catalog.
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, p domain.Product, history []domain.ProductHistoryEntry) (domain.Product, error)
	ListProductHistory(ctx context.Context, productID string) ([]domain.ProductHistoryEntry, error)

	// Batches.
	CreateBatch(ctx context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error)
	GetBatch(ctx context.Context, id string) (domain.Batch, error)
	ListBatchesByProduct(ctx context.Context, productID string, includeDeleted bool) ([]domain.Batch, error)
	UpdateBatch(ctx context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error)
	AdjustBatchQuantity(ctx context.Context, batchID string, counted int, entry domain.InventoryHistoryEntry) (domain.Batch, error)
	TransferBatchQuantity(ctx context.Context, fromID, toID string, quantity int, out, in domain.InventoryHistoryEntry) error
	SoftDeleteBatch(ctx context.Context, batchID string, force bool, entry domain.InventoryHistoryEntry) (domain.Batch, error)

	// Transactions.
	CreateSale(ctx context.Context, sale domain.Sale, lines []SaleDraftLine) (domain.Sale, error)
	GetSale(ctx context.Context, id string) (domain.Sale, error)
	ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error)
	CreateReturn(ctx context.Context, ret domain.Return, lines []domain.ReturnLine) (domain.Return, error)
	ListReturnsBySale(ctx context.Context, saleID string) ([]domain.Return, error)

	// Ledger reads.
	ListBatchHistory(ctx context.Context, batchID string) ([]domain.InventoryHistoryEntry, error)

	// Reports.
	LowStock(ctx context.Context, threshold int) ([]domain.LowStockEntry, error)
	ExpiringBatches(ctx context.Context, now time.Time, withinDays int) ([]domain.ExpiringBatch, error)
	SalesSummary(ctx context.Context, from, to time.Time, topN int) (domain.SalesSummary, error)

	// Settings.
	GetSetting(ctx context.Context, key string) (domain.Setting, error)
	ListSettings(ctx context.Context) ([]domain.Setting, error)
	PutSetting(ctx context.Context, s domain.Setting) (domain.Setting, error)

	// Auth accounts.
	CreateUser(ctx context.Context, u domain.UserAccount) error
	GetUser(ctx context.Context, username string) (domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username, passwordHash string) error

	Ping(ctx context.Context) error
	Close() error
}
