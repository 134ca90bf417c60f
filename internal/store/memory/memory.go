// Package memory is an in-process store.Repository used for tests and for
// running the server without postgres. A single mutex makes every operation
// atomic, which keeps the sale and return paths honest about the invariants
// the postgres implementation enforces with transactions.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"saripos/backend/internal/allocation"
	"saripos/backend/internal/domain"
	"saripos/backend/internal/store"
	"saripos/backend/internal/xid"
)

type Store struct {
	mu sync.Mutex

	products       map[string]domain.Product
	barcodes       map[string]string
	batches        map[string]domain.Batch
	sales          map[string]domain.Sale
	returns        map[string]domain.Return
	history        map[string][]domain.InventoryHistoryEntry
	productHistory map[string][]domain.ProductHistoryEntry
	settings       map[string]domain.Setting
	users          map[string]domain.UserAccount

	// remaining returnable quantity per sale item id.
	returnable map[string]int
}

func New() *Store {
	return &Store{
		products:       map[string]domain.Product{},
		barcodes:       map[string]string{},
		batches:        map[string]domain.Batch{},
		sales:          map[string]domain.Sale{},
		returns:        map[string]domain.Return{},
		history:        map[string][]domain.InventoryHistoryEntry{},
		productHistory: map[string][]domain.ProductHistoryEntry{},
		settings:       map[string]domain.Setting{},
		users:          map[string]domain.UserAccount{},
		returnable:     map[string]int{},
	}
}

// NewSeeded returns a store pre-loaded with a small sari-sari catalog, two
// dated cola batches and the default settings rows.
func NewSeeded() *Store {
	s := New()
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	seedProducts := []domain.Product{
		{ID: "prd-cola", Name: "Coca-Cola 1L", Barcode: "4800024770011", SellingPriceCents: 2500, Unit: "bottle", Category: "beverages", CreatedAt: now, UpdatedAt: now},
		{ID: "prd-noodles", Name: "Lucky Me Pancit Canton", Barcode: "4807770190014", SellingPriceCents: 1500, Unit: "pack", Category: "instant food", CreatedAt: now, UpdatedAt: now},
		{ID: "prd-soap", Name: "Safeguard Bar 135g", Barcode: "4902430501217", SellingPriceCents: 4500, Unit: "piece", Category: "toiletries", CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range seedProducts {
		s.products[p.ID] = p
		s.barcodes[p.Barcode] = p.ID
	}

	exp1 := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	exp2 := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	seedBatches := []domain.Batch{
		{ID: "bat-cola-1", ProductID: "prd-cola", BatchNumber: "BATCH-CC-20240701", CostPriceCents: 1800, Quantity: 12, ExpirationDate: &exp1, Status: domain.BatchStatusActive, CreatedAt: now},
		{ID: "bat-cola-2", ProductID: "prd-cola", BatchNumber: "BATCH-CC-20240702", CostPriceCents: 1800, Quantity: 12, ExpirationDate: &exp2, Status: domain.BatchStatusActive, CreatedAt: now.Add(time.Hour)},
		{ID: "bat-noodles-1", ProductID: "prd-noodles", BatchNumber: "BATCH-LM-20240701", CostPriceCents: 1100, Quantity: 40, Status: domain.BatchStatusActive, CreatedAt: now},
		{ID: "bat-soap-1", ProductID: "prd-soap", BatchNumber: "BATCH-SB-20240701", CostPriceCents: 3600, Quantity: 3, Status: domain.BatchStatusActive, CreatedAt: now},
	}
	for _, b := range seedBatches {
		s.batches[b.ID] = b
		s.history[b.ID] = []domain.InventoryHistoryEntry{{
			ID:        xid.New("hst"),
			BatchID:   b.ID,
			Change:    b.Quantity,
			Reason:    domain.ChangeReasonReceipt,
			Note:      "seed stock",
			CreatedAt: b.CreatedAt,
		}}
	}

	for _, st := range DefaultSettings(now) {
		s.settings[st.Key] = st
	}

	// Plain-text seed passwords get upgraded to bcrypt on first auth
	// bootstrap, same as accounts imported from an older install.
	s.users["admin"] = domain.UserAccount{Username: "admin", Password: "admin123", Role: "admin", Active: true, CreatedAt: now}
	s.users["kassy"] = domain.UserAccount{Username: "kassy", Password: "cashier123", Role: "cashier", Active: true, CreatedAt: now}
	return s
}

// DefaultSettings is the seed every fresh store starts from.
func DefaultSettings(now time.Time) []domain.Setting {
	return []domain.Setting{
		{Key: "tax_rate", Value: "0.12", ValueType: domain.SettingTypeNumber, Description: "VAT rate, informational", UpdatedAt: now},
		{Key: "inventory_warning_threshold", Value: "5", ValueType: domain.SettingTypeNumber, Description: "low stock warning level", UpdatedAt: now},
		{Key: "expiring_window_days", Value: "30", ValueType: domain.SettingTypeNumber, Description: "days ahead flagged as expiring soon", UpdatedAt: now},
		{Key: "shop_name", Value: "Sari POS", ValueType: domain.SettingTypeString, Description: "shop display name", UpdatedAt: now},
		{Key: "receipt_footer", Value: "Salamat po!", ValueType: domain.SettingTypeString, Description: "footer line on receipts", UpdatedAt: now},
	}
}

// --- catalog ---

func (s *Store) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrConflict, p.ID)
	}
	if p.Barcode != "" {
		if _, ok := s.barcodes[p.Barcode]; ok {
			return domain.Product{}, fmt.Errorf("%w: barcode %s already registered", store.ErrConflict, p.Barcode)
		}
		s.barcodes[p.Barcode] = p.ID
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	return p, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (domain.Product, error) {
	if barcode == "" {
		return domain.Product{}, fmt.Errorf("%w: empty barcode", store.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.barcodes[barcode]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: barcode %s", store.ErrNotFound, barcode)
	}
	return s.products[id], nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) UpdateProduct(_ context.Context, p domain.Product, history []domain.ProductHistoryEntry) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.products[p.ID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, p.ID)
	}
	if p.Barcode != prev.Barcode {
		if p.Barcode != "" {
			if owner, taken := s.barcodes[p.Barcode]; taken && owner != p.ID {
				return domain.Product{}, fmt.Errorf("%w: barcode %s already registered", store.ErrConflict, p.Barcode)
			}
		}
		delete(s.barcodes, prev.Barcode)
		if p.Barcode != "" {
			s.barcodes[p.Barcode] = p.ID
		}
	}
	s.products[p.ID] = p
	for _, h := range history {
		h.ProductID = p.ID
		if h.ID == "" {
			h.ID = xid.New("phs")
		}
		if h.ChangedAt.IsZero() {
			h.ChangedAt = time.Now().UTC()
		}
		s.productHistory[p.ID] = append(s.productHistory[p.ID], h)
	}
	return p, nil
}

func (s *Store) ListProductHistory(_ context.Context, productID string) ([]domain.ProductHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	return slices.Clone(s.productHistory[productID]), nil
}

// --- batches ---

func (s *Store) CreateBatch(_ context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[b.ProductID]; !ok {
		return domain.Batch{}, fmt.Errorf("%w: product %s", store.ErrNotFound, b.ProductID)
	}
	if _, ok := s.batches[b.ID]; ok {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrConflict, b.ID)
	}
	s.batches[b.ID] = b
	s.appendHistory(b.ID, b.Quantity, entry, b.CreatedAt)
	return b, nil
}

func (s *Store) GetBatch(_ context.Context, id string) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[id]
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, id)
	}
	return b, nil
}

func (s *Store) ListBatchesByProduct(_ context.Context, productID string, includeDeleted bool) ([]domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	out := make([]domain.Batch, 0, 4)
	for _, b := range s.batches {
		if b.ProductID != productID {
			continue
		}
		if !includeDeleted && b.Status == domain.BatchStatusDeleted {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Batch) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if b.CreatedAt.Before(a.CreatedAt) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateBatch(_ context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.batches[b.ID]
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, b.ID)
	}
	if prev.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, b.ID)
	}
	// Edits never touch quantity; the ledger gets a zero-change marker row.
	b.Quantity = prev.Quantity
	b.Status = prev.Status
	s.batches[b.ID] = b
	s.appendHistory(b.ID, 0, entry, time.Time{})
	return b, nil
}

func (s *Store) AdjustBatchQuantity(_ context.Context, batchID string, counted int, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, batchID)
	}
	if b.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, batchID)
	}
	if counted < 0 {
		return domain.Batch{}, fmt.Errorf("%w: counted quantity must not be negative", store.ErrInvalidInput)
	}
	delta := counted - b.Quantity
	b.Quantity = counted
	s.batches[batchID] = b
	if delta != 0 {
		s.appendHistory(batchID, delta, entry, time.Time{})
	}
	return b, nil
}

func (s *Store) TransferBatchQuantity(_ context.Context, fromID, toID string, quantity int, out, in domain.InventoryHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity <= 0 {
		return fmt.Errorf("%w: transfer quantity must be positive", store.ErrInvalidInput)
	}
	from, ok := s.batches[fromID]
	if !ok {
		return fmt.Errorf("%w: batch %s", store.ErrNotFound, fromID)
	}
	to, ok := s.batches[toID]
	if !ok {
		return fmt.Errorf("%w: batch %s", store.ErrNotFound, toID)
	}
	if from.ProductID != to.ProductID {
		return fmt.Errorf("%w: batches belong to different products", store.ErrInvalidInput)
	}
	if from.Status == domain.BatchStatusDeleted || to.Status == domain.BatchStatusDeleted {
		return fmt.Errorf("%w: transfer touches a deleted batch", store.ErrBatchDeleted)
	}
	if from.Quantity < quantity {
		return &store.InsufficientStockError{ProductID: from.ProductID, Requested: quantity, Available: from.Quantity}
	}
	from.Quantity -= quantity
	to.Quantity += quantity
	s.batches[fromID] = from
	s.batches[toID] = to
	s.appendHistory(fromID, -quantity, out, time.Time{})
	s.appendHistory(toID, quantity, in, time.Time{})
	return nil
}

func (s *Store) SoftDeleteBatch(_ context.Context, batchID string, force bool, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.batches[batchID]
	if !ok {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, batchID)
	}
	if b.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, batchID)
	}
	if b.Quantity != 0 && !force {
		return domain.Batch{}, fmt.Errorf("%w: batch %s holds %d units", store.ErrNonZeroQuantity, batchID, b.Quantity)
	}
	writeOff := -b.Quantity
	now := time.Now().UTC()
	b.Quantity = 0
	b.Status = domain.BatchStatusDeleted
	b.DeletedAt = &now
	s.batches[batchID] = b
	s.appendHistory(batchID, writeOff, entry, now)
	return b, nil
}

// --- sales ---

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, lines []store.SaleDraftLine) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Plan every line against the current snapshot before mutating anything,
	// so a late shortfall leaves no partial draw behind.
	type plannedLine struct {
		line store.SaleDraftLine
		plan []domain.Allocation
	}
	planned := make([]plannedLine, 0, len(lines))
	pending := map[string]int{}
	for _, line := range lines {
		if _, ok := s.products[line.ProductID]; !ok {
			return domain.Sale{}, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		snapshot := make([]domain.Batch, 0, 4)
		for _, b := range s.batches {
			if b.ProductID != line.ProductID {
				continue
			}
			b.Quantity -= pending[b.ID]
			snapshot = append(snapshot, b)
		}
		plan, err := allocation.Plan(snapshot, line.Quantity)
		if err != nil {
			return domain.Sale{}, err
		}
		for _, a := range plan {
			pending[a.BatchID] += a.Quantity
		}
		planned = append(planned, plannedLine{line: line, plan: plan})
	}

	sale.Items = make([]domain.SaleItem, 0, len(planned))
	for _, pl := range planned {
		for _, a := range pl.plan {
			b := s.batches[a.BatchID]
			b.Quantity -= a.Quantity
			s.batches[a.BatchID] = b

			item := domain.SaleItem{
				ID:               xid.New("sit"),
				SaleID:           sale.ID,
				BatchID:          a.BatchID,
				ProductID:        pl.line.ProductID,
				Quantity:         a.Quantity,
				PriceAtSaleCents: pl.line.PriceCents,
			}
			sale.Items = append(sale.Items, item)
			s.returnable[item.ID] = item.Quantity

			s.appendHistory(a.BatchID, -a.Quantity, domain.InventoryHistoryEntry{
				Reason: domain.ChangeReasonSale,
				Note:   "sale " + sale.ID,
			}, sale.CreatedAt)
		}
	}
	s.sales[sale.ID] = sale
	return cloneSale(sale), nil
}

func (s *Store) GetSale(_ context.Context, id string) (domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, ok := s.sales[id]
	if !ok {
		return domain.Sale{}, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.CreatedAt.Before(to) {
			continue
		}
		out = append(out, cloneSale(sale))
	}
	slices.SortFunc(out, func(a, b domain.Sale) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if b.CreatedAt.After(a.CreatedAt) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// --- returns ---

func (s *Store) CreateReturn(_ context.Context, ret domain.Return, lines []domain.ReturnLine) (domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.sales[ret.SaleID]
	if !ok {
		return domain.Return{}, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
	}
	itemsByID := map[string]domain.SaleItem{}
	for _, it := range sale.Items {
		itemsByID[it.ID] = it
	}

	// Bound every line before restoring anything.
	claimed := map[string]int{}
	for _, line := range lines {
		it, ok := itemsByID[line.SaleItemID]
		if !ok {
			return domain.Return{}, fmt.Errorf("%w: sale item %s", store.ErrNotFound, line.SaleItemID)
		}
		claimed[it.ID] += line.Quantity
		if claimed[it.ID] > s.returnable[it.ID] {
			return domain.Return{}, fmt.Errorf("%w: sale item %s has %d returnable units",
				store.ErrOverReturn, it.ID, s.returnable[it.ID])
		}
	}

	ret.Items = make([]domain.ReturnItem, 0, len(lines))
	for _, line := range lines {
		it := itemsByID[line.SaleItemID]
		s.returnable[it.ID] -= line.Quantity

		// Restoration targets the originating batch even when it has since
		// been soft-deleted; the ledger keeps the quantity accountable.
		b := s.batches[it.BatchID]
		b.Quantity += line.Quantity
		s.batches[it.BatchID] = b

		ret.Items = append(ret.Items, domain.ReturnItem{
			ID:         xid.New("rit"),
			ReturnID:   ret.ID,
			SaleItemID: it.ID,
			Quantity:   line.Quantity,
		})
		s.appendHistory(it.BatchID, line.Quantity, domain.InventoryHistoryEntry{
			Reason: domain.ChangeReasonReturn,
			Note:   "return " + ret.ID + " against sale " + ret.SaleID,
		}, ret.CreatedAt)
	}
	s.returns[ret.ID] = ret
	return cloneReturn(ret), nil
}

func (s *Store) ListReturnsBySale(_ context.Context, saleID string) ([]domain.Return, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Return, 0, 2)
	for _, r := range s.returns {
		if r.SaleID == saleID {
			out = append(out, cloneReturn(r))
		}
	}
	slices.SortFunc(out, func(a, b domain.Return) int {
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		if b.CreatedAt.Before(a.CreatedAt) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// --- ledger ---

func (s *Store) ListBatchHistory(_ context.Context, batchID string) ([]domain.InventoryHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batchID]; !ok {
		return nil, fmt.Errorf("%w: batch %s", store.ErrNotFound, batchID)
	}
	return slices.Clone(s.history[batchID]), nil
}

// --- reports ---

func (s *Store) LowStock(_ context.Context, threshold int) ([]domain.LowStockEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := map[string]int{}
	for _, b := range s.batches {
		if b.Status != domain.BatchStatusActive {
			continue
		}
		totals[b.ProductID] += b.Quantity
	}
	out := make([]domain.LowStockEntry, 0, 4)
	for id, p := range s.products {
		if totals[id] <= threshold {
			out = append(out, domain.LowStockEntry{Product: p, TotalQuantity: totals[id]})
		}
	}
	slices.SortFunc(out, func(a, b domain.LowStockEntry) int {
		if a.TotalQuantity != b.TotalQuantity {
			return a.TotalQuantity - b.TotalQuantity
		}
		return strings.Compare(a.Product.Name, b.Product.Name)
	})
	return out, nil
}

func (s *Store) ExpiringBatches(_ context.Context, now time.Time, withinDays int) ([]domain.ExpiringBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := truncateToDay(now)
	cutoff := today.AddDate(0, 0, withinDays)
	out := make([]domain.ExpiringBatch, 0, 4)
	for _, b := range s.batches {
		if b.Status != domain.BatchStatusActive || b.Quantity <= 0 || b.ExpirationDate == nil {
			continue
		}
		exp := truncateToDay(*b.ExpirationDate)
		if exp.After(cutoff) {
			continue
		}
		status := domain.ExpirationStatusExpiringSoon
		if exp.Before(today) {
			status = domain.ExpirationStatusExpired
		}
		out = append(out, domain.ExpiringBatch{
			Batch:       b,
			ProductName: s.products[b.ProductID].Name,
			Status:      status,
		})
	}
	slices.SortFunc(out, func(a, b domain.ExpiringBatch) int {
		if a.Batch.ExpirationDate.Before(*b.Batch.ExpirationDate) {
			return -1
		}
		if b.Batch.ExpirationDate.Before(*a.Batch.ExpirationDate) {
			return 1
		}
		return strings.Compare(a.Batch.ID, b.Batch.ID)
	})
	return out, nil
}

func (s *Store) SalesSummary(_ context.Context, from, to time.Time, topN int) (domain.SalesSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := domain.SalesSummary{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		TopProducts: []domain.TopProduct{},
	}
	perProduct := map[string]*domain.TopProduct{}
	for _, sale := range s.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		summary.Sales++
		summary.GrossCents += sale.TotalCents
		for _, it := range sale.Items {
			summary.ItemsSold += int64(it.Quantity)
			tp, ok := perProduct[it.ProductID]
			if !ok {
				tp = &domain.TopProduct{ProductID: it.ProductID, Name: s.products[it.ProductID].Name}
				perProduct[it.ProductID] = tp
			}
			tp.QuantitySold += it.Quantity
			tp.RevenueCents += int64(it.Quantity) * it.PriceAtSaleCents
		}
	}
	for _, r := range s.returns {
		if r.CreatedAt.Before(from) || !r.CreatedAt.Before(to) {
			continue
		}
		summary.RefundedCents += r.RefundAmountCents
	}
	top := make([]domain.TopProduct, 0, len(perProduct))
	for _, tp := range perProduct {
		top = append(top, *tp)
	}
	slices.SortFunc(top, func(a, b domain.TopProduct) int {
		if a.QuantitySold != b.QuantitySold {
			return b.QuantitySold - a.QuantitySold
		}
		if a.RevenueCents != b.RevenueCents {
			if b.RevenueCents > a.RevenueCents {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Name, b.Name)
	})
	if topN > 0 && len(top) > topN {
		top = top[:topN]
	}
	summary.TopProducts = top
	return summary, nil
}

// --- settings ---

func (s *Store) GetSetting(_ context.Context, key string) (domain.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[key]
	if !ok {
		return domain.Setting{}, fmt.Errorf("%w: setting %s", store.ErrNotFound, key)
	}
	return st, nil
}

func (s *Store) ListSettings(_ context.Context) ([]domain.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Setting, 0, len(s.settings))
	for _, st := range s.settings {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b domain.Setting) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

func (s *Store) PutSetting(_ context.Context, st domain.Setting) (domain.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.settings[st.Key]; ok {
		if st.ValueType == "" {
			st.ValueType = prev.ValueType
		}
		if st.Description == "" {
			st.Description = prev.Description
		}
	}
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	s.settings[st.Key] = st
	return st, nil
}

// --- auth accounts ---

func (s *Store) CreateUser(_ context.Context, u domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return fmt.Errorf("%w: user %s", store.ErrConflict, u.Username)
	}
	s.users[u.Username] = u
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	u.Password = passwordHash
	s.users[username] = u
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// --- helpers ---

func (s *Store) appendHistory(batchID string, change int, entry domain.InventoryHistoryEntry, at time.Time) {
	entry.BatchID = batchID
	entry.Change = change
	if entry.ID == "" {
		entry.ID = xid.New("hst")
	}
	if entry.CreatedAt.IsZero() {
		if at.IsZero() {
			at = time.Now().UTC()
		}
		entry.CreatedAt = at
	}
	s.history[batchID] = append(s.history[batchID], entry)
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Items = slices.Clone(sale.Items)
	return sale
}

func cloneReturn(r domain.Return) domain.Return {
	r.Items = slices.Clone(r.Items)
	return r
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
