// Package service coordinates the sale, return and batch lifecycle flows on
// top of the repository, and owns request validation. Everything that touches
// quantities delegates the actual mutation to the store so it stays atomic
// with its history row.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strconv"
	"strings"
	"time"

	"saripos/backend/internal/cache"
	"saripos/backend/internal/domain"
	"saripos/backend/internal/store"
	"saripos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

const reportCacheTTL = 30 * time.Second

type Service struct {
	repo    store.Repository
	reports cache.ReportCache
}

func New(repo store.Repository, reports cache.ReportCache) *Service {
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	return &Service{repo: repo, reports: reports}
}

// --- catalog ---

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	return s.repo.GetProductByBarcode(ctx, strings.TrimSpace(barcode))
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Barcode = strings.TrimSpace(req.Barcode)
	req.Unit = strings.TrimSpace(req.Unit)
	req.Category = strings.TrimSpace(req.Category)

	if req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidInput)
	}
	if req.SellingPriceCents < 0 {
		return domain.Product{}, fmt.Errorf("%w: selling price must not be negative", store.ErrInvalidInput)
	}
	if req.Unit == "" {
		req.Unit = "piece"
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:                xid.New("prd"),
		Name:              req.Name,
		Barcode:           req.Barcode,
		SellingPriceCents: req.SellingPriceCents,
		Unit:              req.Unit,
		Category:          req.Category,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAction(ctx, "product_create", created.ID, fmt.Sprintf("name=%s price=%d", created.Name, created.SellingPriceCents))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	actor, _ := ActorFromContext(ctx)
	updated := existing
	history := make([]domain.ProductHistoryEntry, 0, 4)
	record := func(field, oldValue, newValue string) {
		history = append(history, domain.ProductHistoryEntry{
			ProductID: id,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
			Note:      req.Note,
			ChangedBy: actor.Username,
		})
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: product name required", store.ErrInvalidInput)
		}
		if name != existing.Name {
			record("name", existing.Name, name)
			updated.Name = name
		}
	}
	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode != existing.Barcode {
			record("barcode", existing.Barcode, barcode)
			updated.Barcode = barcode
		}
	}
	if req.SellingPriceCents != nil {
		if *req.SellingPriceCents < 0 {
			return domain.Product{}, fmt.Errorf("%w: selling price must not be negative", store.ErrInvalidInput)
		}
		if *req.SellingPriceCents != existing.SellingPriceCents {
			record("selling_price_cents",
				strconv.FormatInt(existing.SellingPriceCents, 10),
				strconv.FormatInt(*req.SellingPriceCents, 10))
			updated.SellingPriceCents = *req.SellingPriceCents
		}
	}
	if req.Unit != nil {
		unit := strings.TrimSpace(*req.Unit)
		if unit != "" && unit != existing.Unit {
			record("unit", existing.Unit, unit)
			updated.Unit = unit
		}
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category != existing.Category {
			record("category", existing.Category, category)
			updated.Category = category
		}
	}

	if len(history) == 0 {
		return existing, nil
	}
	updated.UpdatedAt = time.Now().UTC()

	saved, err := s.repo.UpdateProduct(ctx, updated, history)
	if err != nil {
		return domain.Product{}, err
	}
	s.logAction(ctx, "product_update", saved.ID, fmt.Sprintf("fields=%d", len(history)))
	return saved, nil
}

func (s *Service) ListProductHistory(ctx context.Context, productID string) ([]domain.ProductHistoryEntry, error) {
	return s.repo.ListProductHistory(ctx, productID)
}

// --- batch lifecycle ---

func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchCreateRequest) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}

	if req.Quantity <= 0 {
		return domain.Batch{}, fmt.Errorf("%w: received quantity must be positive", store.ErrInvalidInput)
	}
	if req.CostPriceCents < 0 {
		return domain.Batch{}, fmt.Errorf("%w: cost price must not be negative", store.ErrInvalidInput)
	}

	product, err := s.repo.GetProduct(ctx, req.ProductID)
	if err != nil {
		return domain.Batch{}, err
	}

	expiration, err := parseDatePtr(req.ExpirationDate)
	if err != nil {
		return domain.Batch{}, err
	}

	now := time.Now().UTC()
	batchNumber := strings.TrimSpace(req.BatchNumber)
	if batchNumber == "" {
		batchNumber = defaultBatchNumber(product.Name, now)
	}

	batch := domain.Batch{
		ID:             xid.New("bat"),
		ProductID:      product.ID,
		BatchNumber:    batchNumber,
		CostPriceCents: req.CostPriceCents,
		Quantity:       req.Quantity,
		ExpirationDate: expiration,
		Status:         domain.BatchStatusActive,
		CreatedAt:      now,
	}
	entry := domain.InventoryHistoryEntry{
		Reason: domain.ChangeReasonReceipt,
		Note:   defaultString(strings.TrimSpace(req.Note), "stock received"),
	}

	created, err := s.repo.CreateBatch(ctx, batch, entry)
	if err != nil {
		return domain.Batch{}, err
	}
	s.logAction(ctx, "batch_receive", created.ID, fmt.Sprintf("product=%s qty=%d", created.ProductID, created.Quantity))
	return created, nil
}

func (s *Service) ListBatches(ctx context.Context, productID string, includeDeleted bool) ([]domain.Batch, error) {
	return s.repo.ListBatchesByProduct(ctx, productID, includeDeleted)
}

func (s *Service) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

func (s *Service) BatchHistory(ctx context.Context, batchID string) ([]domain.InventoryHistoryEntry, error) {
	return s.repo.ListBatchHistory(ctx, batchID)
}

func (s *Service) EditBatch(ctx context.Context, batchID string, req domain.BatchEditRequest) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}

	existing, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if existing.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, batchID)
	}

	updated := existing
	changes := make([]string, 0, 3)

	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Batch{}, fmt.Errorf("%w: cost price must not be negative", store.ErrInvalidInput)
		}
		if *req.CostPriceCents != existing.CostPriceCents {
			changes = append(changes, fmt.Sprintf("cost %d -> %d", existing.CostPriceCents, *req.CostPriceCents))
			updated.CostPriceCents = *req.CostPriceCents
		}
	}
	if req.ExpirationDate != nil {
		expiration, err := parseDatePtr(*req.ExpirationDate)
		if err != nil {
			return domain.Batch{}, err
		}
		if !sameDatePtr(existing.ExpirationDate, expiration) {
			changes = append(changes, fmt.Sprintf("expiration %s -> %s",
				formatDatePtr(existing.ExpirationDate), formatDatePtr(expiration)))
			updated.ExpirationDate = expiration
		}
	}
	if req.BatchNumber != nil {
		number := strings.TrimSpace(*req.BatchNumber)
		if number != existing.BatchNumber {
			changes = append(changes, fmt.Sprintf("batch number %s -> %s",
				defaultString(existing.BatchNumber, "(none)"), defaultString(number, "(none)")))
			updated.BatchNumber = number
		}
	}

	if len(changes) == 0 {
		return existing, nil
	}

	note := strings.Join(changes, "; ")
	if trimmed := strings.TrimSpace(req.Note); trimmed != "" {
		note = note + " (" + trimmed + ")"
	}
	entry := domain.InventoryHistoryEntry{
		Reason: domain.ChangeReasonEdit,
		Note:   note,
	}

	saved, err := s.repo.UpdateBatch(ctx, updated, entry)
	if err != nil {
		return domain.Batch{}, err
	}
	s.logAction(ctx, "batch_edit", saved.ID, note)
	return saved, nil
}

func (s *Service) AdjustBatch(ctx context.Context, batchID string, req domain.BatchAdjustRequest) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}

	if req.CountedQuantity < 0 {
		return domain.Batch{}, fmt.Errorf("%w: counted quantity must not be negative", store.ErrInvalidInput)
	}
	reason := defaultString(strings.TrimSpace(req.Reason), domain.ChangeReasonAdjustment)
	if reason != domain.ChangeReasonAdjustment && reason != domain.ChangeReasonCorrection {
		return domain.Batch{}, fmt.Errorf("%w: adjustment reason must be adjustment or correction", store.ErrInvalidInput)
	}

	entry := domain.InventoryHistoryEntry{
		Reason: reason,
		Note:   defaultString(strings.TrimSpace(req.Note), "stock count adjustment"),
	}
	saved, err := s.repo.AdjustBatchQuantity(ctx, batchID, req.CountedQuantity, entry)
	if err != nil {
		return domain.Batch{}, err
	}
	s.logAction(ctx, "batch_adjust", saved.ID, fmt.Sprintf("counted=%d reason=%s", req.CountedQuantity, reason))
	return saved, nil
}

func (s *Service) TransferBatch(ctx context.Context, req domain.BatchTransferRequest) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return fmt.Errorf("%w: transfer quantity must be positive", store.ErrInvalidInput)
	}
	if req.FromBatchID == "" || req.ToBatchID == "" || req.FromBatchID == req.ToBatchID {
		return fmt.Errorf("%w: transfer requires two distinct batches", store.ErrInvalidInput)
	}

	note := defaultString(strings.TrimSpace(req.Note), "batch transfer")
	out := domain.InventoryHistoryEntry{
		Reason: domain.ChangeReasonTransfer,
		Note:   fmt.Sprintf("%s (to %s)", note, req.ToBatchID),
	}
	in := domain.InventoryHistoryEntry{
		Reason: domain.ChangeReasonTransfer,
		Note:   fmt.Sprintf("%s (from %s)", note, req.FromBatchID),
	}
	if err := s.repo.TransferBatchQuantity(ctx, req.FromBatchID, req.ToBatchID, req.Quantity, out, in); err != nil {
		return err
	}
	s.logAction(ctx, "batch_transfer", req.FromBatchID, fmt.Sprintf("to=%s qty=%d", req.ToBatchID, req.Quantity))
	return nil
}

func (s *Service) DeleteBatch(ctx context.Context, batchID string, req domain.BatchDeleteRequest) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}

	entry := domain.InventoryHistoryEntry{
		Reason: domain.ChangeReasonDelete,
		Note:   defaultString(strings.TrimSpace(req.Note), "batch deleted"),
	}
	deleted, err := s.repo.SoftDeleteBatch(ctx, batchID, req.Force, entry)
	if err != nil {
		return domain.Batch{}, err
	}
	s.logAction(ctx, "batch_delete", deleted.ID, fmt.Sprintf("force=%t", req.Force))
	return deleted, nil
}

// --- sales ---

func (s *Service) ExecuteSale(ctx context.Context, req domain.SaleRequest) (domain.Sale, error) {
	lines, err := normalizeSaleLines(req.Items)
	if err != nil {
		return domain.Sale{}, err
	}
	if req.CashReceivedCents < 0 {
		return domain.Sale{}, fmt.Errorf("%w: cash received must not be negative", store.ErrInvalidInput)
	}

	drafts := make([]store.SaleDraftLine, 0, len(lines))
	totalCents := int64(0)
	for _, line := range lines {
		product, err := s.repo.GetProduct(ctx, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		drafts = append(drafts, store.SaleDraftLine{
			ProductID:  product.ID,
			Quantity:   line.Quantity,
			PriceCents: product.SellingPriceCents,
		})
		totalCents += product.SellingPriceCents * int64(line.Quantity)
	}

	if req.CashReceivedCents < totalCents {
		return domain.Sale{}, fmt.Errorf("%w: total %d, received %d",
			store.ErrInsufficientCash, totalCents, req.CashReceivedCents)
	}

	sale := domain.Sale{
		ID:                xid.New("sal"),
		TotalCents:        totalCents,
		CashReceivedCents: req.CashReceivedCents,
		ChangeCents:       req.CashReceivedCents - totalCents,
		CreatedAt:         time.Now().UTC(),
	}

	created, err := s.repo.CreateSale(ctx, sale, drafts)
	if err != nil {
		return domain.Sale{}, err
	}
	s.logAction(ctx, "sale", created.ID, fmt.Sprintf("total=%d items=%d", created.TotalCents, len(created.Items)))
	return created, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) ListSales(ctx context.Context, dateFrom, dateTo string) ([]domain.Sale, error) {
	from, to, err := parseDateRange(dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, from, to)
}

// --- returns ---

func (s *Service) ExecuteReturn(ctx context.Context, req domain.ReturnRequest) (domain.Return, error) {
	if req.SaleID == "" {
		return domain.Return{}, fmt.Errorf("%w: sale id required", store.ErrInvalidInput)
	}
	if len(req.Items) == 0 {
		return domain.Return{}, fmt.Errorf("%w: return needs at least one item", store.ErrInvalidInput)
	}
	switch req.ReturnType {
	case domain.ReturnTypeRefund, domain.ReturnTypeExchange, domain.ReturnTypeStoreCredit:
	default:
		return domain.Return{}, fmt.Errorf("%w: unknown return type %q", store.ErrInvalidInput, req.ReturnType)
	}
	if req.RefundAmountCents < 0 {
		return domain.Return{}, fmt.Errorf("%w: refund amount must not be negative", store.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Reason) == "" {
		return domain.Return{}, fmt.Errorf("%w: return reason required", store.ErrInvalidInput)
	}
	for _, line := range req.Items {
		if line.SaleItemID == "" || line.Quantity <= 0 {
			return domain.Return{}, fmt.Errorf("%w: return line needs a sale item and a positive quantity", store.ErrInvalidInput)
		}
	}

	ret := domain.Return{
		ID:                xid.New("ret"),
		SaleID:            req.SaleID,
		ReturnType:        req.ReturnType,
		RefundAmountCents: req.RefundAmountCents,
		Reason:            strings.TrimSpace(req.Reason),
		Note:              strings.TrimSpace(req.Note),
		CreatedAt:         time.Now().UTC(),
	}

	created, err := s.repo.CreateReturn(ctx, ret, req.Items)
	if err != nil {
		return domain.Return{}, err
	}
	s.logAction(ctx, "return", created.ID, fmt.Sprintf("sale=%s type=%s refund=%d", created.SaleID, created.ReturnType, created.RefundAmountCents))
	return created, nil
}

func (s *Service) ListReturnsBySale(ctx context.Context, saleID string) ([]domain.Return, error) {
	return s.repo.ListReturnsBySale(ctx, saleID)
}

// --- reports ---

func (s *Service) LowStockReport(ctx context.Context, threshold int) ([]domain.LowStockEntry, error) {
	if threshold <= 0 {
		threshold = s.settingInt(ctx, "inventory_warning_threshold", 5)
	}

	key := fmt.Sprintf("report:lowstock:%d", threshold)
	var cached []domain.LowStockEntry
	if s.reportFromCache(ctx, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.LowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}
	s.reportToCache(ctx, key, entries)
	return entries, nil
}

func (s *Service) ExpiringReport(ctx context.Context, withinDays int) ([]domain.ExpiringBatch, error) {
	if withinDays <= 0 {
		withinDays = s.settingInt(ctx, "expiring_window_days", 30)
	}

	key := fmt.Sprintf("report:expiring:%d", withinDays)
	var cached []domain.ExpiringBatch
	if s.reportFromCache(ctx, key, &cached) {
		return cached, nil
	}

	entries, err := s.repo.ExpiringBatches(ctx, time.Now().UTC(), withinDays)
	if err != nil {
		return nil, err
	}
	s.reportToCache(ctx, key, entries)
	return entries, nil
}

func (s *Service) SalesSummary(ctx context.Context, dateFrom, dateTo string, topN int) (domain.SalesSummary, error) {
	from, to, err := parseDateRange(dateFrom, dateTo)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	if from.IsZero() || to.IsZero() {
		return domain.SalesSummary{}, fmt.Errorf("%w: summary needs a date range", store.ErrInvalidInput)
	}

	key := fmt.Sprintf("report:summary:%s:%s:%d", dateFrom, dateTo, topN)
	var cached domain.SalesSummary
	if s.reportFromCache(ctx, key, &cached) {
		return cached, nil
	}

	summary, err := s.repo.SalesSummary(ctx, from, to, topN)
	if err != nil {
		return domain.SalesSummary{}, err
	}
	s.reportToCache(ctx, key, summary)
	return summary, nil
}

// --- settings ---

func (s *Service) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	return s.repo.ListSettings(ctx)
}

func (s *Service) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	return s.repo.GetSetting(ctx, key)
}

func (s *Service) UpdateSetting(ctx context.Context, key string, req domain.SettingUpdateRequest) (domain.Setting, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Setting{}, err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return domain.Setting{}, fmt.Errorf("%w: setting key required", store.ErrInvalidInput)
	}

	existing, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		return domain.Setting{}, err
	}

	value := strings.TrimSpace(req.Value)
	switch existing.ValueType {
	case domain.SettingTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return domain.Setting{}, fmt.Errorf("%w: setting %s expects a number", store.ErrInvalidInput, key)
		}
	case domain.SettingTypeBoolean:
		if value != "true" && value != "false" {
			return domain.Setting{}, fmt.Errorf("%w: setting %s expects true or false", store.ErrInvalidInput, key)
		}
	case domain.SettingTypeJSON:
		if !json.Valid([]byte(value)) {
			return domain.Setting{}, fmt.Errorf("%w: setting %s expects valid json", store.ErrInvalidInput, key)
		}
	}

	existing.Value = value
	existing.UpdatedAt = time.Now().UTC()
	saved, err := s.repo.PutSetting(ctx, existing)
	if err != nil {
		return domain.Setting{}, err
	}
	s.logAction(ctx, "setting_update", key, value)
	return saved, nil
}

// --- helpers ---

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	return nil
}

func normalizeSaleLines(items []domain.SaleLine) ([]domain.SaleLine, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: sale needs at least one item", store.ErrInvalidInput)
	}

	merged := make([]domain.SaleLine, 0, len(items))
	index := map[string]int{}
	for _, item := range items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("%w: sale line needs a product", store.ErrInvalidInput)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: sale quantity must be positive", store.ErrInvalidInput)
		}
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	// Fixed product order so concurrent sales lock their batch rows in the
	// same sequence regardless of how the register keyed the lines in.
	slices.SortFunc(merged, func(a, b domain.SaleLine) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return merged, nil
}

// defaultBatchNumber derives BATCH-<initials>-<yyyymmdd> from the product
// name when the receiver did not supply a number.
func defaultBatchNumber(productName string, at time.Time) string {
	initials := strings.Builder{}
	for _, word := range strings.Fields(productName) {
		for _, r := range word {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				initials.WriteRune(r)
				break
			}
		}
		if initials.Len() >= 3 {
			break
		}
	}
	code := strings.ToUpper(initials.String())
	if code == "" {
		code = "XX"
	}
	return fmt.Sprintf("BATCH-%s-%s", code, at.UTC().Format("20060102"))
}

func (s *Service) settingInt(ctx context.Context, key string, fallback int) int {
	setting, err := s.repo.GetSetting(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[service] WARN: failed to read setting %s: %v", key, err)
		}
		return fallback
	}
	parsed, err := strconv.ParseFloat(setting.Value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return int(parsed)
}

func (s *Service) reportFromCache(ctx context.Context, key string, out any) bool {
	payload, ok, err := s.reports.Get(ctx, key)
	if err != nil {
		log.Printf("[service] WARN: report cache get %s: %v", key, err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		log.Printf("[service] WARN: report cache decode %s: %v", key, err)
		return false
	}
	return true
}

func (s *Service) reportToCache(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.reports.Set(ctx, key, payload, reportCacheTTL); err != nil {
		log.Printf("[service] WARN: report cache set %s: %v", key, err)
	}
}

func (s *Service) logAction(ctx context.Context, action, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	log.Printf("[service] %s by=%s entity=%s %s", action, defaultString(actor.Username, "system"), entityID, detail)
}

func parseDatePtr(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be yyyy-mm-dd", store.ErrInvalidInput)
	}
	return &t, nil
}

func parseDateRange(dateFrom, dateTo string) (time.Time, time.Time, error) {
	var from, to time.Time
	if p, err := parseDatePtr(dateFrom); err != nil {
		return from, to, err
	} else if p != nil {
		from = *p
	}
	if p, err := parseDatePtr(dateTo); err != nil {
		return from, to, err
	} else if p != nil {
		// Inclusive end date: the range covers the whole of dateTo.
		to = p.AddDate(0, 0, 1)
	}
	return from, to, nil
}

func sameDatePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return "(none)"
	}
	return t.Format("2006-01-02")
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
