package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"saripos/backend/internal/allocation"
	"saripos/backend/internal/domain"
	"saripos/backend/internal/store"
	"saripos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, barcode, selling_price_cents, unit, category, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.Name, nullIfEmpty(p.Barcode), p.SellingPriceCents, p.Unit, p.Category, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, fmt.Errorf("%w: product or barcode already exists", store.ErrConflict)
		}
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.getProductBy(ctx, "id", id)
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	if barcode == "" {
		return domain.Product{}, fmt.Errorf("%w: empty barcode", store.ErrInvalidInput)
	}
	return s.getProductBy(ctx, "barcode", barcode)
}

func (s *Store) getProductBy(ctx context.Context, column string, value string) (domain.Product, error) {
	if column != "id" && column != "barcode" {
		return domain.Product{}, fmt.Errorf("unsupported lookup column")
	}

	var p domain.Product
	var barcode sql.NullString
	query := fmt.Sprintf(`
		SELECT id, name, barcode, selling_price_cents, unit, category, created_at, updated_at
		FROM products
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&p.ID, &p.Name, &barcode, &p.SellingPriceCents, &p.Unit, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, value)
		}
		return domain.Product{}, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, barcode, selling_price_cents, unit, category, created_at, updated_at
		FROM products
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		var barcode sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &barcode, &p.SellingPriceCents, &p.Unit, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		if barcode.Valid {
			p.Barcode = barcode.String
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product, history []domain.ProductHistoryEntry) (domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Product{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = $2, barcode = $3, selling_price_cents = $4, unit = $5, category = $6, updated_at = $7
		WHERE id = $1
	`, p.ID, p.Name, nullIfEmpty(p.Barcode), p.SellingPriceCents, p.Unit, p.Category, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Product{}, fmt.Errorf("%w: barcode already registered", store.ErrConflict)
		}
		return domain.Product{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Product{}, err
	}
	if affected == 0 {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, p.ID)
	}

	for _, h := range history {
		if h.ID == "" {
			h.ID = xid.New("phs")
		}
		if h.ChangedAt.IsZero() {
			h.ChangedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_history (id, product_id, field, old_value, new_value, note, changed_by, changed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`, h.ID, p.ID, h.Field, h.OldValue, h.NewValue, h.Note, h.ChangedBy, h.ChangedAt)
		if err != nil {
			return domain.Product{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func (s *Store) ListProductHistory(ctx context.Context, productID string) ([]domain.ProductHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, field, old_value, new_value, note, changed_by, changed_at
		FROM product_history
		WHERE product_id = $1
		ORDER BY changed_at ASC, id ASC
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.ProductHistoryEntry, 0, 16)
	for rows.Next() {
		var h domain.ProductHistoryEntry
		if err := rows.Scan(&h.ID, &h.ProductID, &h.Field, &h.OldValue, &h.NewValue, &h.Note, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		h.ChangedAt = h.ChangedAt.UTC()
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) CreateBatch(ctx context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Batch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO inventory_batches (
			id, product_id, batch_number, cost_price_cents, quantity,
			expiration_date, status, created_at, deleted_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL)
	`, b.ID, b.ProductID, nullIfEmpty(b.BatchNumber), b.CostPriceCents, b.Quantity,
		nullDate(b.ExpirationDate), b.Status, b.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.Batch{}, fmt.Errorf("%w: product %s", store.ErrNotFound, b.ProductID)
		}
		if isUniqueViolation(err) {
			return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrConflict, b.ID)
		}
		return domain.Batch{}, err
	}

	if err := insertHistory(ctx, tx, b.ID, b.Quantity, entry, b.CreatedAt); err != nil {
		return domain.Batch{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	return b, nil
}

func (s *Store) GetBatch(ctx context.Context, id string) (domain.Batch, error) {
	b, err := scanBatch(s.db.QueryRowContext(ctx, `
		SELECT id, product_id, batch_number, cost_price_cents, quantity,
			expiration_date, status, created_at, deleted_at
		FROM inventory_batches
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, id)
		}
		return domain.Batch{}, err
	}
	return b, nil
}

func (s *Store) ListBatchesByProduct(ctx context.Context, productID string, includeDeleted bool) ([]domain.Batch, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, product_id, batch_number, cost_price_cents, quantity,
			expiration_date, status, created_at, deleted_at
		FROM inventory_batches
		WHERE product_id = $1
	`
	if !includeDeleted {
		query += ` AND status = 'active'`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	batches := make([]domain.Batch, 0, 8)
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func (s *Store) UpdateBatch(ctx context.Context, b domain.Batch, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Batch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := lockBatch(ctx, tx, b.ID)
	if err != nil {
		return domain.Batch{}, err
	}
	if current.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, b.ID)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_batches
		SET batch_number = $2, cost_price_cents = $3, expiration_date = $4
		WHERE id = $1
	`, b.ID, nullIfEmpty(b.BatchNumber), b.CostPriceCents, nullDate(b.ExpirationDate))
	if err != nil {
		return domain.Batch{}, err
	}

	// Quantity is untouched by edits; the ledger gets a zero-change marker.
	if err := insertHistory(ctx, tx, b.ID, 0, entry, time.Time{}); err != nil {
		return domain.Batch{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	b.Quantity = current.Quantity
	b.Status = current.Status
	b.CreatedAt = current.CreatedAt
	return b, nil
}

func (s *Store) AdjustBatchQuantity(ctx context.Context, batchID string, counted int, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	if counted < 0 {
		return domain.Batch{}, fmt.Errorf("%w: counted quantity must not be negative", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Batch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := lockBatch(ctx, tx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if b.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, batchID)
	}

	delta := counted - b.Quantity
	if delta != 0 {
		_, err = tx.ExecContext(ctx, `
			UPDATE inventory_batches SET quantity = $2 WHERE id = $1
		`, batchID, counted)
		if err != nil {
			return domain.Batch{}, err
		}
		if err := insertHistory(ctx, tx, batchID, delta, entry, time.Time{}); err != nil {
			return domain.Batch{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}
	b.Quantity = counted
	return b, nil
}

func (s *Store) TransferBatchQuantity(ctx context.Context, fromID, toID string, quantity int, out, in domain.InventoryHistoryEntry) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: transfer quantity must be positive", store.ErrInvalidInput)
	}
	if fromID == toID {
		return fmt.Errorf("%w: transfer requires two distinct batches", store.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Lock both batches in id order so concurrent transfers cannot deadlock.
	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	locked := map[string]domain.Batch{}
	for _, id := range []string{first, second} {
		b, err := lockBatch(ctx, tx, id)
		if err != nil {
			return err
		}
		locked[id] = b
	}
	from, to := locked[fromID], locked[toID]

	if from.ProductID != to.ProductID {
		return fmt.Errorf("%w: batches belong to different products", store.ErrInvalidInput)
	}
	if from.Status == domain.BatchStatusDeleted || to.Status == domain.BatchStatusDeleted {
		return fmt.Errorf("%w: transfer touches a deleted batch", store.ErrBatchDeleted)
	}
	if from.Quantity < quantity {
		return &store.InsufficientStockError{ProductID: from.ProductID, Requested: quantity, Available: from.Quantity}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_batches SET quantity = quantity - $2 WHERE id = $1
	`, fromID, quantity)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_batches SET quantity = quantity + $2 WHERE id = $1
	`, toID, quantity)
	if err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, fromID, -quantity, out, time.Time{}); err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, toID, quantity, in, time.Time{}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) SoftDeleteBatch(ctx context.Context, batchID string, force bool, entry domain.InventoryHistoryEntry) (domain.Batch, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Batch{}, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := lockBatch(ctx, tx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if b.Status == domain.BatchStatusDeleted {
		return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrBatchDeleted, batchID)
	}
	if b.Quantity != 0 && !force {
		return domain.Batch{}, fmt.Errorf("%w: batch %s holds %d units", store.ErrNonZeroQuantity, batchID, b.Quantity)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE inventory_batches
		SET quantity = 0, status = 'deleted', deleted_at = $2
		WHERE id = $1
	`, batchID, now)
	if err != nil {
		return domain.Batch{}, err
	}
	if err := insertHistory(ctx, tx, batchID, -b.Quantity, entry, now); err != nil {
		return domain.Batch{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Batch{}, err
	}

	b.Quantity = 0
	b.Status = domain.BatchStatusDeleted
	b.DeletedAt = &now
	return b, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, lines []store.SaleDraftLine) (domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Sale{}, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, total_cents, cash_received_cents, change_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sale.ID, sale.TotalCents, sale.CashReceivedCents, sale.ChangeCents, sale.CreatedAt)
	if err != nil {
		return domain.Sale{}, err
	}

	sale.Items = make([]domain.SaleItem, 0, len(lines))
	for _, line := range lines {
		// Lock the product's active batches in id order; the planner decides
		// the FEFO draw over the locked snapshot, so planning and depletion
		// cannot be split by a concurrent sale.
		batchRows, err := pgTx.QueryContext(ctx, `
			SELECT id, product_id, batch_number, cost_price_cents, quantity,
				expiration_date, status, created_at, deleted_at
			FROM inventory_batches
			WHERE product_id = $1 AND status = 'active' AND quantity > 0
			ORDER BY id ASC
			FOR UPDATE
		`, line.ProductID)
		if err != nil {
			return domain.Sale{}, err
		}
		batches := make([]domain.Batch, 0, 8)
		for batchRows.Next() {
			b, err := scanBatch(batchRows)
			if err != nil {
				_ = batchRows.Close()
				return domain.Sale{}, err
			}
			batches = append(batches, b)
		}
		if err := batchRows.Err(); err != nil {
			_ = batchRows.Close()
			return domain.Sale{}, err
		}
		_ = batchRows.Close()

		if len(batches) == 0 {
			// Distinguish a missing product from one with no stock.
			if _, err := s.getProductInTx(ctx, pgTx, line.ProductID); err != nil {
				return domain.Sale{}, err
			}
		}

		plan, err := allocation.Plan(batches, line.Quantity)
		if err != nil {
			var insuff *store.InsufficientStockError
			if errors.As(err, &insuff) && insuff.ProductID == "" {
				insuff.ProductID = line.ProductID
			}
			return domain.Sale{}, err
		}

		for _, a := range plan {
			_, err = pgTx.ExecContext(ctx, `
				UPDATE inventory_batches SET quantity = quantity - $2 WHERE id = $1
			`, a.BatchID, a.Quantity)
			if err != nil {
				return domain.Sale{}, err
			}

			item := domain.SaleItem{
				ID:               xid.New("sit"),
				SaleID:           sale.ID,
				BatchID:          a.BatchID,
				ProductID:        line.ProductID,
				Quantity:         a.Quantity,
				PriceAtSaleCents: line.PriceCents,
			}
			_, err = pgTx.ExecContext(ctx, `
				INSERT INTO sale_items (id, sale_id, batch_id, product_id, quantity, price_at_sale_cents)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, item.ID, item.SaleID, item.BatchID, item.ProductID, item.Quantity, item.PriceAtSaleCents)
			if err != nil {
				return domain.Sale{}, err
			}
			sale.Items = append(sale.Items, item)

			entry := domain.InventoryHistoryEntry{
				Reason: domain.ChangeReasonSale,
				Note:   "sale " + sale.ID,
			}
			if err := insertHistory(ctx, pgTx, a.BatchID, -a.Quantity, entry, sale.CreatedAt); err != nil {
				return domain.Sale{}, err
			}
		}
	}

	if err := pgTx.Commit(); err != nil {
		return domain.Sale{}, err
	}
	return sale, nil
}

func (s *Store) getProductInTx(ctx context.Context, tx *sql.Tx, id string) (domain.Product, error) {
	var p domain.Product
	var barcode sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, barcode, selling_price_cents, unit, category, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &barcode, &p.SellingPriceCents, &p.Unit, &p.Category, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
		}
		return domain.Product{}, err
	}
	if barcode.Valid {
		p.Barcode = barcode.String
	}
	return p, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cents, cash_received_cents, change_cents, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalCents, &sale.CashReceivedCents, &sale.ChangeCents, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, fmt.Errorf("%w: sale %s", store.ErrNotFound, id)
		}
		return domain.Sale{}, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()

	items, err := s.listSaleItems(ctx, sale.ID)
	if err != nil {
		return domain.Sale{}, err
	}
	sale.Items = items
	return sale, nil
}

func (s *Store) listSaleItems(ctx context.Context, saleID string) ([]domain.SaleItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, batch_id, product_id, quantity, price_at_sale_cents
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var it domain.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.BatchID, &it.ProductID, &it.Quantity, &it.PriceAtSaleCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListSales(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	query := `
		SELECT id, total_cents, cash_received_cents, change_cents, created_at
		FROM sales
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
			AND ($2::timestamptz IS NULL OR created_at < $2)
		ORDER BY created_at DESC, id ASC
		LIMIT 500
	`
	rows, err := s.db.QueryContext(ctx, query, nullTimeValue(from), nullTimeValue(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TotalCents, &sale.CashReceivedCents, &sale.ChangeCents, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sale.CreatedAt = sale.CreatedAt.UTC()
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.listSaleItems(ctx, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *Store) CreateReturn(ctx context.Context, ret domain.Return, lines []domain.ReturnLine) (domain.Return, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return domain.Return{}, err
	}
	defer func() { _ = pgTx.Rollback() }()

	// The sale row lock serializes concurrent returns against one sale so the
	// per-item returned totals cannot be overdrawn by a race.
	var saleID string
	err = pgTx.QueryRowContext(ctx, `
		SELECT id FROM sales WHERE id = $1 FOR UPDATE
	`, ret.SaleID).Scan(&saleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Return{}, fmt.Errorf("%w: sale %s", store.ErrNotFound, ret.SaleID)
		}
		return domain.Return{}, err
	}

	type itemState struct {
		batchID   string
		sold      int
		returned  int
	}
	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT si.id, si.batch_id, si.quantity, COALESCE(SUM(ri.quantity), 0)::int
		FROM sale_items si
		LEFT JOIN return_items ri ON ri.sale_item_id = si.id
		WHERE si.sale_id = $1
		GROUP BY si.id, si.batch_id, si.quantity
	`, ret.SaleID)
	if err != nil {
		return domain.Return{}, err
	}
	states := map[string]*itemState{}
	for itemRows.Next() {
		var id string
		st := &itemState{}
		if err := itemRows.Scan(&id, &st.batchID, &st.sold, &st.returned); err != nil {
			_ = itemRows.Close()
			return domain.Return{}, err
		}
		states[id] = st
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return domain.Return{}, err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		st, ok := states[line.SaleItemID]
		if !ok {
			return domain.Return{}, fmt.Errorf("%w: sale item %s", store.ErrNotFound, line.SaleItemID)
		}
		if st.returned+line.Quantity > st.sold {
			return domain.Return{}, fmt.Errorf("%w: sale item %s has %d returnable units",
				store.ErrOverReturn, line.SaleItemID, st.sold-st.returned)
		}
		st.returned += line.Quantity
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO returns (id, sale_id, return_type, refund_amount_cents, reason, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ret.ID, ret.SaleID, ret.ReturnType, ret.RefundAmountCents, ret.Reason, ret.Note, ret.CreatedAt)
	if err != nil {
		return domain.Return{}, err
	}

	ret.Items = make([]domain.ReturnItem, 0, len(lines))
	for _, line := range lines {
		st := states[line.SaleItemID]
		item := domain.ReturnItem{
			ID:         xid.New("rit"),
			ReturnID:   ret.ID,
			SaleItemID: line.SaleItemID,
			Quantity:   line.Quantity,
		}
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO return_items (id, return_id, sale_item_id, quantity)
			VALUES ($1,$2,$3,$4)
		`, item.ID, item.ReturnID, item.SaleItemID, item.Quantity)
		if err != nil {
			return domain.Return{}, err
		}
		ret.Items = append(ret.Items, item)

		// Restore to the originating batch, deleted or not; the ledger keeps
		// the quantity accountable either way.
		_, err = pgTx.ExecContext(ctx, `
			UPDATE inventory_batches SET quantity = quantity + $2 WHERE id = $1
		`, st.batchID, line.Quantity)
		if err != nil {
			return domain.Return{}, err
		}
		entry := domain.InventoryHistoryEntry{
			Reason: domain.ChangeReasonReturn,
			Note:   "return " + ret.ID + " against sale " + ret.SaleID,
		}
		if err := insertHistory(ctx, pgTx, st.batchID, line.Quantity, entry, ret.CreatedAt); err != nil {
			return domain.Return{}, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return domain.Return{}, err
	}
	return ret, nil
}

func (s *Store) ListReturnsBySale(ctx context.Context, saleID string) ([]domain.Return, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sale_id, return_type, refund_amount_cents, reason, note, created_at
		FROM returns
		WHERE sale_id = $1
		ORDER BY created_at ASC, id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returns := make([]domain.Return, 0, 4)
	for rows.Next() {
		var r domain.Return
		if err := rows.Scan(&r.ID, &r.SaleID, &r.ReturnType, &r.RefundAmountCents, &r.Reason, &r.Note, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = r.CreatedAt.UTC()
		returns = append(returns, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range returns {
		itemRows, err := s.db.QueryContext(ctx, `
			SELECT id, return_id, sale_item_id, quantity
			FROM return_items
			WHERE return_id = $1
			ORDER BY id ASC
		`, returns[i].ID)
		if err != nil {
			return nil, err
		}
		items := make([]domain.ReturnItem, 0, 4)
		for itemRows.Next() {
			var it domain.ReturnItem
			if err := itemRows.Scan(&it.ID, &it.ReturnID, &it.SaleItemID, &it.Quantity); err != nil {
				_ = itemRows.Close()
				return nil, err
			}
			items = append(items, it)
		}
		if err := itemRows.Err(); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		_ = itemRows.Close()
		returns[i].Items = items
	}
	return returns, nil
}

func (s *Store) ListBatchHistory(ctx context.Context, batchID string) ([]domain.InventoryHistoryEntry, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, change, reason, note, created_at
		FROM inventory_history
		WHERE batch_id = $1
		ORDER BY created_at ASC, id ASC
	`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make([]domain.InventoryHistoryEntry, 0, 16)
	for rows.Next() {
		var h domain.InventoryHistoryEntry
		if err := rows.Scan(&h.ID, &h.BatchID, &h.Change, &h.Reason, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.CreatedAt = h.CreatedAt.UTC()
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

func (s *Store) LowStock(ctx context.Context, threshold int) ([]domain.LowStockEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.barcode, p.selling_price_cents, p.unit, p.category,
			p.created_at, p.updated_at,
			COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'active'), 0)::int AS total_quantity
		FROM products p
		LEFT JOIN inventory_batches b ON b.product_id = p.id
		GROUP BY p.id
		HAVING COALESCE(SUM(b.quantity) FILTER (WHERE b.status = 'active'), 0) <= $1
		ORDER BY total_quantity ASC, p.name ASC
	`, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LowStockEntry, 0, 16)
	for rows.Next() {
		var e domain.LowStockEntry
		var barcode sql.NullString
		if err := rows.Scan(&e.Product.ID, &e.Product.Name, &barcode, &e.Product.SellingPriceCents,
			&e.Product.Unit, &e.Product.Category, &e.Product.CreatedAt, &e.Product.UpdatedAt, &e.TotalQuantity); err != nil {
			return nil, err
		}
		if barcode.Valid {
			e.Product.Barcode = barcode.String
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ExpiringBatches(ctx context.Context, now time.Time, withinDays int) ([]domain.ExpiringBatch, error) {
	today := nowDateUTC(now)
	cutoff := today.AddDate(0, 0, withinDays)

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.product_id, b.batch_number, b.cost_price_cents, b.quantity,
			b.expiration_date, b.status, b.created_at, b.deleted_at, p.name
		FROM inventory_batches b
		JOIN products p ON p.id = b.product_id
		WHERE b.status = 'active'
			AND b.quantity > 0
			AND b.expiration_date IS NOT NULL
			AND b.expiration_date <= $1
		ORDER BY b.expiration_date ASC, b.id ASC
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.ExpiringBatch, 0, 16)
	for rows.Next() {
		var e domain.ExpiringBatch
		var batchNumber sql.NullString
		var expiry sql.NullTime
		var deletedAt sql.NullTime
		if err := rows.Scan(&e.Batch.ID, &e.Batch.ProductID, &batchNumber, &e.Batch.CostPriceCents,
			&e.Batch.Quantity, &expiry, &e.Batch.Status, &e.Batch.CreatedAt, &deletedAt, &e.ProductName); err != nil {
			return nil, err
		}
		if batchNumber.Valid {
			e.Batch.BatchNumber = batchNumber.String
		}
		if expiry.Valid {
			d := nowDateUTC(expiry.Time)
			e.Batch.ExpirationDate = &d
		}
		e.Batch.CreatedAt = e.Batch.CreatedAt.UTC()
		e.Status = domain.ExpirationStatusExpiringSoon
		if e.Batch.ExpirationDate != nil && e.Batch.ExpirationDate.Before(today) {
			e.Status = domain.ExpirationStatusExpired
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) SalesSummary(ctx context.Context, from, to time.Time, topN int) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{
		From:        from.Format("2006-01-02"),
		To:          to.Format("2006-01-02"),
		TopProducts: make([]domain.TopProduct, 0, topN),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&summary.Sales, &summary.GrossCents)
	if err != nil {
		return summary, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.quantity),0)::bigint
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2
	`, from, to).Scan(&summary.ItemsSold)
	if err != nil {
		return summary, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(refund_amount_cents),0)::bigint
		FROM returns
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&summary.RefundedCents)
	if err != nil {
		return summary, err
	}

	if topN < 1 {
		topN = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT si.product_id, p.name,
			SUM(si.quantity)::int AS qty_sold,
			SUM(si.quantity * si.price_at_sale_cents)::bigint AS revenue
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN products p ON p.id = si.product_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY si.product_id, p.name
		ORDER BY qty_sold DESC, revenue DESC, p.name ASC
		LIMIT $3
	`, from, to, topN)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var tp domain.TopProduct
		if err := rows.Scan(&tp.ProductID, &tp.Name, &tp.QuantitySold, &tp.RevenueCents); err != nil {
			return summary, err
		}
		summary.TopProducts = append(summary.TopProducts, tp)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) (domain.Setting, error) {
	var st domain.Setting
	err := s.db.QueryRowContext(ctx, `
		SELECT key, value, value_type, description, updated_at
		FROM settings
		WHERE key = $1
	`, key).Scan(&st.Key, &st.Value, &st.ValueType, &st.Description, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Setting{}, fmt.Errorf("%w: setting %s", store.ErrNotFound, key)
		}
		return domain.Setting{}, err
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (s *Store) ListSettings(ctx context.Context) ([]domain.Setting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value, value_type, description, updated_at
		FROM settings
		ORDER BY key ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make([]domain.Setting, 0, 16)
	for rows.Next() {
		var st domain.Setting
		if err := rows.Scan(&st.Key, &st.Value, &st.ValueType, &st.Description, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.UpdatedAt = st.UpdatedAt.UTC()
		settings = append(settings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Store) PutSetting(ctx context.Context, st domain.Setting) (domain.Setting, error) {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = time.Now().UTC()
	}
	if st.ValueType == "" {
		st.ValueType = domain.SettingTypeString
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO settings (key, value, value_type, description, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		RETURNING key, value, value_type, description, updated_at
	`, st.Key, st.Value, st.ValueType, st.Description, st.UpdatedAt).Scan(
		&st.Key, &st.Value, &st.ValueType, &st.Description, &st.UpdatedAt)
	if err != nil {
		return domain.Setting{}, err
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return st, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", store.ErrConflict, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, strings.ToLower(strings.TrimSpace(username))).Scan(
		&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
		}
		return domain.UserAccount{}, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, passwordHash string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(passwordHash) == "" {
		return fmt.Errorf("%w: username and password required", store.ErrInvalidInput)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (domain.Batch, error) {
	var b domain.Batch
	var batchNumber sql.NullString
	var expiry sql.NullTime
	var deletedAt sql.NullTime
	err := row.Scan(&b.ID, &b.ProductID, &batchNumber, &b.CostPriceCents, &b.Quantity,
		&expiry, &b.Status, &b.CreatedAt, &deletedAt)
	if err != nil {
		return domain.Batch{}, err
	}
	if batchNumber.Valid {
		b.BatchNumber = batchNumber.String
	}
	if expiry.Valid {
		d := nowDateUTC(expiry.Time)
		b.ExpirationDate = &d
	}
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		b.DeletedAt = &at
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func lockBatch(ctx context.Context, tx *sql.Tx, id string) (domain.Batch, error) {
	b, err := scanBatch(tx.QueryRowContext(ctx, `
		SELECT id, product_id, batch_number, cost_price_cents, quantity,
			expiration_date, status, created_at, deleted_at
		FROM inventory_batches
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Batch{}, fmt.Errorf("%w: batch %s", store.ErrNotFound, id)
		}
		return domain.Batch{}, err
	}
	return b, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, batchID string, change int, entry domain.InventoryHistoryEntry, at time.Time) error {
	if entry.ID == "" {
		entry.ID = xid.New("hst")
	}
	if entry.CreatedAt.IsZero() {
		if at.IsZero() {
			at = time.Now().UTC()
		}
		entry.CreatedAt = at
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO inventory_history (id, batch_id, change, reason, note, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, batchID, change, entry.Reason, entry.Note, entry.CreatedAt)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullDate(val *time.Time) any {
	if val == nil {
		return nil
	}
	return nowDateUTC(*val)
}

func nullTimeValue(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
