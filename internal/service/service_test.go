package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"saripos/backend/internal/cache"
	"saripos/backend/internal/domain"
	"saripos/backend/internal/store"
	"saripos/backend/internal/store/memory"
)

func newTestService() (*Service, *memory.Store) {
	repo := memory.NewSeeded()
	return New(repo, cache.NoopReportCache{}), repo
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin", Role: "admin"})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "kass", Role: "cashier"})
}

func TestSaleDrawsAcrossBatchesInExpirationOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	sale, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 15}},
		CashReceivedCents: 40000,
	})
	if err != nil {
		t.Fatalf("execute sale: %v", err)
	}
	if sale.TotalCents != 15*2500 {
		t.Fatalf("total = %d, want %d", sale.TotalCents, 15*2500)
	}
	if len(sale.Items) != 2 {
		t.Fatalf("expected 2 sale items, got %d", len(sale.Items))
	}
	if sale.Items[0].BatchID != "bat-cola-1" || sale.Items[0].Quantity != 12 {
		t.Errorf("first draw = %+v, want 12 from bat-cola-1", sale.Items[0])
	}
	if sale.Items[1].BatchID != "bat-cola-2" || sale.Items[1].Quantity != 3 {
		t.Errorf("second draw = %+v, want 3 from bat-cola-2", sale.Items[1])
	}

	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	b2, _ := svc.GetBatch(ctx, "bat-cola-2")
	if b1.Quantity != 0 || b2.Quantity != 9 {
		t.Errorf("quantities after sale = %d/%d, want 0/9", b1.Quantity, b2.Quantity)
	}

	history, err := svc.BatchHistory(ctx, "bat-cola-1")
	if err != nil {
		t.Fatalf("batch history: %v", err)
	}
	last := history[len(history)-1]
	if last.Reason != domain.ChangeReasonSale || last.Change != -12 {
		t.Errorf("last history entry = %+v, want sale/-12", last)
	}
}

func TestSaleShortfallLeavesNothingBehind(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	_, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 26}},
		CashReceivedCents: 100000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	var insuff *store.InsufficientStockError
	if !errors.As(err, &insuff) {
		t.Fatalf("err = %T, want *store.InsufficientStockError", err)
	}
	if insuff.Shortfall() != 2 {
		t.Errorf("shortfall = %d, want 2", insuff.Shortfall())
	}

	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	b2, _ := svc.GetBatch(ctx, "bat-cola-2")
	if b1.Quantity != 12 || b2.Quantity != 12 {
		t.Errorf("quantities after failed sale = %d/%d, want 12/12", b1.Quantity, b2.Quantity)
	}
	for _, id := range []string{"bat-cola-1", "bat-cola-2"} {
		history, err := svc.BatchHistory(ctx, id)
		if err != nil {
			t.Fatalf("batch history: %v", err)
		}
		if len(history) != 1 {
			t.Errorf("batch %s has %d history rows after failed sale, want only the seed receipt", id, len(history))
		}
	}
}

func TestSaleCashMathAndInsufficientCash(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	// 3 cola at 25.00 + 2 noodles at 15.00 = 105.00; pay 120.00, change 15.00.
	sale, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items: []domain.SaleLine{
			{ProductID: "prd-cola", Quantity: 3},
			{ProductID: "prd-noodles", Quantity: 2},
		},
		CashReceivedCents: 12000,
	})
	if err != nil {
		t.Fatalf("execute sale: %v", err)
	}
	if sale.TotalCents != 10500 {
		t.Errorf("total = %d, want 10500", sale.TotalCents)
	}
	if sale.ChangeCents != 1500 {
		t.Errorf("change = %d, want 1500", sale.ChangeCents)
	}

	_, err = svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 2}},
		CashReceivedCents: 4999,
	})
	if !errors.Is(err, store.ErrInsufficientCash) {
		t.Fatalf("err = %v, want ErrInsufficientCash", err)
	}

	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	if b1.Quantity != 9 {
		t.Errorf("cola batch after rejected sale = %d, want 9 (only the first sale applied)", b1.Quantity)
	}
}

func TestSaleMergesDuplicateLinesAndRejectsBadInput(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	sale, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items: []domain.SaleLine{
			{ProductID: "prd-cola", Quantity: 2},
			{ProductID: "prd-cola", Quantity: 3},
		},
		CashReceivedCents: 20000,
	})
	if err != nil {
		t.Fatalf("execute sale: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].Quantity != 5 {
		t.Errorf("merged sale items = %+v, want one draw of 5", sale.Items)
	}

	cases := []domain.SaleRequest{
		{Items: nil, CashReceivedCents: 1000},
		{Items: []domain.SaleLine{{ProductID: "prd-cola", Quantity: 0}}, CashReceivedCents: 1000},
		{Items: []domain.SaleLine{{ProductID: "prd-cola", Quantity: -1}}, CashReceivedCents: 1000},
		{Items: []domain.SaleLine{{ProductID: "", Quantity: 1}}, CashReceivedCents: 1000},
	}
	for i, req := range cases {
		if _, err := svc.ExecuteSale(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Errorf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}

	_, err = svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-missing", Quantity: 1}},
		CashReceivedCents: 1000,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown product err = %v, want ErrNotFound", err)
	}
}

func TestSaleLinesOrderedByProductForLocking(t *testing.T) {
	// Concurrent sales must lock batch rows in one fixed sequence, so the
	// normalized lines come out product-sorted no matter the request order.
	lines, err := normalizeSaleLines([]domain.SaleLine{
		{ProductID: "prd-soap", Quantity: 1},
		{ProductID: "prd-cola", Quantity: 2},
		{ProductID: "prd-noodles", Quantity: 3},
		{ProductID: "prd-cola", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := []domain.SaleLine{
		{ProductID: "prd-cola", Quantity: 3},
		{ProductID: "prd-noodles", Quantity: 3},
		{ProductID: "prd-soap", Quantity: 1},
	}
	if len(lines) != len(want) {
		t.Fatalf("normalized lines = %+v, want %+v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}

	svc, _ := newTestService()
	sale, err := svc.ExecuteSale(cashierCtx(), domain.SaleRequest{
		Items: []domain.SaleLine{
			{ProductID: "prd-noodles", Quantity: 2},
			{ProductID: "prd-cola", Quantity: 1},
		},
		CashReceivedCents: 10000,
	})
	if err != nil {
		t.Fatalf("execute sale: %v", err)
	}
	if len(sale.Items) != 2 || sale.Items[0].ProductID != "prd-cola" || sale.Items[1].ProductID != "prd-noodles" {
		t.Errorf("sale items drawn out of product order: %+v", sale.Items)
	}
}

func TestReturnRestoresBatchAndBoundsQuantity(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	sale, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 5}},
		CashReceivedCents: 20000,
	})
	if err != nil {
		t.Fatalf("execute sale: %v", err)
	}
	itemID := sale.Items[0].ID

	ret, err := svc.ExecuteReturn(ctx, domain.ReturnRequest{
		SaleID:            sale.ID,
		Items:             []domain.ReturnLine{{SaleItemID: itemID, Quantity: 3}},
		ReturnType:        domain.ReturnTypeRefund,
		RefundAmountCents: 7500,
		Reason:            "damaged packaging",
	})
	if err != nil {
		t.Fatalf("execute return: %v", err)
	}
	if len(ret.Items) != 1 || ret.Items[0].Quantity != 3 {
		t.Fatalf("return items = %+v, want one line of 3", ret.Items)
	}

	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	if b1.Quantity != 10 {
		t.Errorf("batch after return = %d, want 10", b1.Quantity)
	}

	// Only 2 units remain returnable; a second return of 3 must be refused.
	_, err = svc.ExecuteReturn(ctx, domain.ReturnRequest{
		SaleID:            sale.ID,
		Items:             []domain.ReturnLine{{SaleItemID: itemID, Quantity: 3}},
		ReturnType:        domain.ReturnTypeRefund,
		RefundAmountCents: 7500,
		Reason:            "change of mind",
	})
	if !errors.Is(err, store.ErrOverReturn) {
		t.Fatalf("second return err = %v, want ErrOverReturn", err)
	}
	b1, _ = svc.GetBatch(ctx, "bat-cola-1")
	if b1.Quantity != 10 {
		t.Errorf("batch after refused return = %d, want 10 (unchanged)", b1.Quantity)
	}

	if _, err := svc.ExecuteReturn(ctx, domain.ReturnRequest{
		SaleID:            sale.ID,
		Items:             []domain.ReturnLine{{SaleItemID: itemID, Quantity: 2}},
		ReturnType:        domain.ReturnTypeStoreCredit,
		RefundAmountCents: 0,
		Reason:            "store credit remainder",
	}); err != nil {
		t.Fatalf("remainder return: %v", err)
	}

	returns, err := svc.ListReturnsBySale(ctx, sale.ID)
	if err != nil {
		t.Fatalf("list returns: %v", err)
	}
	if len(returns) != 2 {
		t.Errorf("returns on sale = %d, want 2", len(returns))
	}
}

func TestReturnValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	cases := []domain.ReturnRequest{
		{SaleID: "", Items: []domain.ReturnLine{{SaleItemID: "x", Quantity: 1}}, ReturnType: domain.ReturnTypeRefund, Reason: "r"},
		{SaleID: "sal-x", Items: nil, ReturnType: domain.ReturnTypeRefund, Reason: "r"},
		{SaleID: "sal-x", Items: []domain.ReturnLine{{SaleItemID: "x", Quantity: 1}}, ReturnType: "giveaway", Reason: "r"},
		{SaleID: "sal-x", Items: []domain.ReturnLine{{SaleItemID: "x", Quantity: 0}}, ReturnType: domain.ReturnTypeRefund, Reason: "r"},
		{SaleID: "sal-x", Items: []domain.ReturnLine{{SaleItemID: "x", Quantity: 1}}, ReturnType: domain.ReturnTypeRefund, Reason: ""},
		{SaleID: "sal-x", Items: []domain.ReturnLine{{SaleItemID: "x", Quantity: 1}}, ReturnType: domain.ReturnTypeRefund, RefundAmountCents: -1, Reason: "r"},
	}
	for i, req := range cases {
		if _, err := svc.ExecuteReturn(ctx, req); !errors.Is(err, store.ErrInvalidInput) {
			t.Errorf("case %d: err = %v, want ErrInvalidInput", i, err)
		}
	}

	_, err := svc.ExecuteReturn(ctx, domain.ReturnRequest{
		SaleID:     "sal-missing",
		Items:      []domain.ReturnLine{{SaleItemID: "x", Quantity: 1}},
		ReturnType: domain.ReturnTypeRefund,
		Reason:     "no such sale",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown sale err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	// Seeded cola stock is 24. Ten buyers of 3 each want 30; only 8 can win.
	const buyers = 10
	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ExecuteSale(ctx, domain.SaleRequest{
				Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 3}},
				CashReceivedCents: 10000,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, failed := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, store.ErrInsufficientStock):
			failed++
		default:
			t.Fatalf("unexpected sale error: %v", err)
		}
	}
	if succeeded != 8 || failed != 2 {
		t.Fatalf("succeeded=%d failed=%d, want 8/2", succeeded, failed)
	}

	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	b2, _ := svc.GetBatch(ctx, "bat-cola-2")
	if b1.Quantity < 0 || b2.Quantity < 0 {
		t.Fatalf("negative batch quantity: %d/%d", b1.Quantity, b2.Quantity)
	}
	if b1.Quantity+b2.Quantity != 0 {
		t.Fatalf("remaining stock = %d, want 0", b1.Quantity+b2.Quantity)
	}
}

func TestReceiveBatchGeneratesNumberAndHistory(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	batch, err := svc.ReceiveBatch(ctx, domain.BatchCreateRequest{
		ProductID:      "prd-noodles",
		CostPriceCents: 1100,
		Quantity:       24,
		ExpirationDate: "2025-09-30",
	})
	if err != nil {
		t.Fatalf("receive batch: %v", err)
	}
	if batch.BatchNumber == "" || batch.BatchNumber[:6] != "BATCH-" {
		t.Errorf("batch number = %q, want BATCH-... default", batch.BatchNumber)
	}
	if batch.ExpirationDate == nil || batch.ExpirationDate.Format("2006-01-02") != "2025-09-30" {
		t.Errorf("expiration = %v, want 2025-09-30", batch.ExpirationDate)
	}

	history, err := svc.BatchHistory(ctx, batch.ID)
	if err != nil {
		t.Fatalf("batch history: %v", err)
	}
	if len(history) != 1 || history[0].Reason != domain.ChangeReasonReceipt || history[0].Change != 24 {
		t.Errorf("receipt history = %+v, want one receipt/+24 row", history)
	}

	if _, err := svc.ReceiveBatch(ctx, domain.BatchCreateRequest{
		ProductID: "prd-noodles",
		Quantity:  0,
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("zero quantity err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.ReceiveBatch(cashierCtx(), domain.BatchCreateRequest{
		ProductID: "prd-noodles",
		Quantity:  5,
	}); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("cashier batch receive err = %v, want ErrForbidden", err)
	}
}

func TestDeleteBatchRequiresEmptyOrForce(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	_, err := svc.DeleteBatch(ctx, "bat-cola-1", domain.BatchDeleteRequest{})
	if !errors.Is(err, store.ErrNonZeroQuantity) {
		t.Fatalf("err = %v, want ErrNonZeroQuantity", err)
	}

	deleted, err := svc.DeleteBatch(ctx, "bat-cola-1", domain.BatchDeleteRequest{Force: true, Note: "damaged in storage"})
	if err != nil {
		t.Fatalf("force delete: %v", err)
	}
	if deleted.Status != domain.BatchStatusDeleted || deleted.Quantity != 0 {
		t.Errorf("deleted batch = %+v, want deleted with zero quantity", deleted)
	}

	history, _ := svc.BatchHistory(ctx, "bat-cola-1")
	last := history[len(history)-1]
	if last.Reason != domain.ChangeReasonDelete || last.Change != -12 {
		t.Errorf("delete history = %+v, want delete/-12", last)
	}

	// Deleted batch is no longer drawn from: only 12 units remain sellable.
	_, err = svc.ExecuteSale(cashierCtx(), domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 13}},
		CashReceivedCents: 100000,
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("sale from deleted stock err = %v, want ErrInsufficientStock", err)
	}

	if _, err := svc.DeleteBatch(ctx, "bat-cola-1", domain.BatchDeleteRequest{Force: true}); !errors.Is(err, store.ErrBatchDeleted) {
		t.Errorf("double delete err = %v, want ErrBatchDeleted", err)
	}
}

func TestAdjustAndTransferBatches(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	adjusted, err := svc.AdjustBatch(ctx, "bat-cola-1", domain.BatchAdjustRequest{
		CountedQuantity: 10,
		Note:            "two bottles broken",
	})
	if err != nil {
		t.Fatalf("adjust batch: %v", err)
	}
	if adjusted.Quantity != 10 {
		t.Errorf("adjusted quantity = %d, want 10", adjusted.Quantity)
	}
	history, _ := svc.BatchHistory(ctx, "bat-cola-1")
	last := history[len(history)-1]
	if last.Reason != domain.ChangeReasonAdjustment || last.Change != -2 {
		t.Errorf("adjustment history = %+v, want adjustment/-2", last)
	}

	if err := svc.TransferBatch(ctx, domain.BatchTransferRequest{
		FromBatchID: "bat-cola-2",
		ToBatchID:   "bat-cola-1",
		Quantity:    4,
	}); err != nil {
		t.Fatalf("transfer batch: %v", err)
	}
	b1, _ := svc.GetBatch(ctx, "bat-cola-1")
	b2, _ := svc.GetBatch(ctx, "bat-cola-2")
	if b1.Quantity != 14 || b2.Quantity != 8 {
		t.Errorf("quantities after transfer = %d/%d, want 14/8", b1.Quantity, b2.Quantity)
	}

	if err := svc.TransferBatch(ctx, domain.BatchTransferRequest{
		FromBatchID: "bat-cola-2",
		ToBatchID:   "bat-noodles-1",
		Quantity:    1,
	}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("cross-product transfer err = %v, want ErrInvalidInput", err)
	}
	if err := svc.TransferBatch(ctx, domain.BatchTransferRequest{
		FromBatchID: "bat-cola-2",
		ToBatchID:   "bat-cola-1",
		Quantity:    100,
	}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Errorf("overdrawn transfer err = %v, want ErrInsufficientStock", err)
	}
}

func TestEditBatchWritesZeroChangeMarker(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	newCost := int64(1900)
	newExpiration := "2025-01-31"
	edited, err := svc.EditBatch(ctx, "bat-cola-1", domain.BatchEditRequest{
		CostPriceCents: &newCost,
		ExpirationDate: &newExpiration,
		Note:           "supplier invoice correction",
	})
	if err != nil {
		t.Fatalf("edit batch: %v", err)
	}
	if edited.CostPriceCents != 1900 {
		t.Errorf("cost = %d, want 1900", edited.CostPriceCents)
	}
	if edited.Quantity != 12 {
		t.Errorf("quantity changed by edit: %d", edited.Quantity)
	}

	history, _ := svc.BatchHistory(ctx, "bat-cola-1")
	last := history[len(history)-1]
	if last.Reason != domain.ChangeReasonEdit || last.Change != 0 {
		t.Errorf("edit history = %+v, want edit/0", last)
	}
}

func TestProductUpdateRecordsFieldHistory(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	newPrice := int64(2600)
	newName := "Coca-Cola Litro"
	if _, err := svc.UpdateProduct(ctx, "prd-cola", domain.ProductUpdateRequest{
		Name:              &newName,
		SellingPriceCents: &newPrice,
		Note:              "price increase from supplier",
	}); err != nil {
		t.Fatalf("update product: %v", err)
	}

	history, err := svc.ListProductHistory(ctx, "prd-cola")
	if err != nil {
		t.Fatalf("product history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	fields := map[string]bool{}
	for _, h := range history {
		fields[h.Field] = true
		if h.ChangedBy != "admin" {
			t.Errorf("changed_by = %q, want admin", h.ChangedBy)
		}
	}
	if !fields["name"] || !fields["selling_price_cents"] {
		t.Errorf("recorded fields = %v, want name and selling_price_cents", fields)
	}
}

func TestLowStockAndExpiringReports(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	low, err := svc.LowStockReport(ctx, 0)
	if err != nil {
		t.Fatalf("low stock report: %v", err)
	}
	// Threshold comes from settings (5); only the soap product qualifies.
	if len(low) != 1 || low[0].Product.ID != "prd-soap" || low[0].TotalQuantity != 3 {
		t.Fatalf("low stock = %+v, want prd-soap at 3", low)
	}

	expiring, err := svc.ExpiringReport(ctx, 100000)
	if err != nil {
		t.Fatalf("expiring report: %v", err)
	}
	if len(expiring) != 2 {
		t.Fatalf("expiring batches = %d, want the two dated cola batches", len(expiring))
	}
	if expiring[0].Batch.ID != "bat-cola-1" {
		t.Errorf("first expiring batch = %s, want bat-cola-1 (earliest date first)", expiring[0].Batch.ID)
	}
}

func TestSalesSummaryCountsRange(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	if _, err := svc.ExecuteSale(ctx, domain.SaleRequest{
		Items:             []domain.SaleLine{{ProductID: "prd-cola", Quantity: 4}},
		CashReceivedCents: 10000,
	}); err != nil {
		t.Fatalf("execute sale: %v", err)
	}

	summary, err := svc.SalesSummary(ctx, "2000-01-01", "2100-01-01", 5)
	if err != nil {
		t.Fatalf("sales summary: %v", err)
	}
	if summary.Sales != 1 || summary.ItemsSold != 4 || summary.GrossCents != 10000 {
		t.Errorf("summary = %+v, want 1 sale, 4 items, 10000 gross", summary)
	}
	if len(summary.TopProducts) != 1 || summary.TopProducts[0].ProductID != "prd-cola" {
		t.Errorf("top products = %+v, want prd-cola", summary.TopProducts)
	}

	if _, err := svc.SalesSummary(ctx, "", "", 5); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("missing range err = %v, want ErrInvalidInput", err)
	}
}

func TestSettingUpdateValidatesType(t *testing.T) {
	svc, _ := newTestService()
	ctx := adminCtx()

	saved, err := svc.UpdateSetting(ctx, "inventory_warning_threshold", domain.SettingUpdateRequest{Value: "8"})
	if err != nil {
		t.Fatalf("update setting: %v", err)
	}
	if saved.Value != "8" {
		t.Errorf("value = %q, want 8", saved.Value)
	}

	if _, err := svc.UpdateSetting(ctx, "inventory_warning_threshold", domain.SettingUpdateRequest{Value: "many"}); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("non-numeric err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.UpdateSetting(ctx, "no_such_setting", domain.SettingUpdateRequest{Value: "1"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown key err = %v, want ErrNotFound", err)
	}
	if _, err := svc.UpdateSetting(cashierCtx(), "shop_name", domain.SettingUpdateRequest{Value: "X"}); err == nil {
		t.Error("expected cashier setting update to be refused")
	}

	// The low stock report must pick up the new threshold.
	low, err := svc.LowStockReport(ctx, 0)
	if err != nil {
		t.Fatalf("low stock report: %v", err)
	}
	if len(low) != 1 || low[0].Product.ID != "prd-soap" {
		t.Errorf("low stock after threshold change = %+v", low)
	}
}

func TestBarcodeLookup(t *testing.T) {
	svc, _ := newTestService()
	ctx := cashierCtx()

	p, err := svc.GetProductByBarcode(ctx, "4800024770011")
	if err != nil {
		t.Fatalf("barcode lookup: %v", err)
	}
	if p.ID != "prd-cola" {
		t.Errorf("product = %s, want prd-cola", p.ID)
	}
	if _, err := svc.GetProductByBarcode(ctx, "0000"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown barcode err = %v, want ErrNotFound", err)
	}
	if _, err := svc.GetProductByBarcode(ctx, ""); !errors.Is(err, store.ErrInvalidInput) {
		t.Errorf("empty barcode err = %v, want ErrInvalidInput", err)
	}
}
