package domain

import "time"

// Money is carried as int64 centavos throughout; totals are exact sums.

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Barcode           string    `json:"barcode,omitempty"`
	SellingPriceCents int64     `json:"selling_price_cents"`
	Unit              string    `json:"unit"`
	Category          string    `json:"category"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type ProductCreateRequest struct {
	Name              string `json:"name"`
	Barcode           string `json:"barcode,omitempty"`
	SellingPriceCents int64  `json:"selling_price_cents"`
	Unit              string `json:"unit"`
	Category          string `json:"category"`
}

type ProductUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	Barcode           *string `json:"barcode,omitempty"`
	SellingPriceCents *int64  `json:"selling_price_cents,omitempty"`
	Unit              *string `json:"unit,omitempty"`
	Category          *string `json:"category,omitempty"`
	Note              string  `json:"note,omitempty"`
}

// ProductHistoryEntry records one catalog field change. Independent of the
// batch quantity ledger.
type ProductHistoryEntry struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Field     string    `json:"field"`
	OldValue  string    `json:"old_value"`
	NewValue  string    `json:"new_value"`
	Note      string    `json:"note,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

const (
	BatchStatusActive  = "active"
	BatchStatusDeleted = "deleted"
)

// Batch is one physically distinct lot of a product. Quantity never goes
// negative; a deleted batch is never eligible for allocation.
type Batch struct {
	ID              string     `json:"id"`
	ProductID       string     `json:"product_id"`
	BatchNumber     string     `json:"batch_number,omitempty"`
	CostPriceCents  int64      `json:"cost_price_cents"`
	Quantity        int        `json:"quantity"`
	ExpirationDate  *time.Time `json:"expiration_date,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

type BatchCreateRequest struct {
	ProductID      string `json:"product_id"`
	CostPriceCents int64  `json:"cost_price_cents"`
	Quantity       int    `json:"quantity"`
	ExpirationDate string `json:"expiration_date,omitempty"`
	BatchNumber    string `json:"batch_number,omitempty"`
	Note           string `json:"note,omitempty"`
}

type BatchEditRequest struct {
	CostPriceCents *int64  `json:"cost_price_cents,omitempty"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
	BatchNumber    *string `json:"batch_number,omitempty"`
	Note           string  `json:"note,omitempty"`
}

// BatchAdjustRequest sets a batch to a counted quantity (stock take); the
// signed delta is what lands in the history ledger.
type BatchAdjustRequest struct {
	CountedQuantity int    `json:"counted_quantity"`
	Reason          string `json:"reason,omitempty"`
	Note            string `json:"note,omitempty"`
}

type BatchTransferRequest struct {
	FromBatchID string `json:"from_batch_id"`
	ToBatchID   string `json:"to_batch_id"`
	Quantity    int    `json:"quantity"`
	Note        string `json:"note,omitempty"`
}

type BatchDeleteRequest struct {
	Force      bool   `json:"force"`
	ManagerPIN string `json:"manager_pin,omitempty"`
	Note       string `json:"note,omitempty"`
}

// Allocation is one planner decision: draw Quantity units from BatchID.
type Allocation struct {
	BatchID  string `json:"batch_id"`
	Quantity int    `json:"quantity"`
}

// Inventory history reasons. Receipt marks batch creation, sale and return
// mark the transaction engine's draws and restorations; the rest come from
// administrative flows.
const (
	ChangeReasonReceipt    = "receipt"
	ChangeReasonSale       = "sale"
	ChangeReasonReturn     = "return"
	ChangeReasonAdjustment = "adjustment"
	ChangeReasonCorrection = "correction"
	ChangeReasonTransfer   = "transfer"
	ChangeReasonEdit       = "edit"
	ChangeReasonDelete     = "delete"
)

// InventoryHistoryEntry is an append-only audit row. Negative change is a
// depletion, positive a restoration; rows are never updated or deleted.
type InventoryHistoryEntry struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id"`
	Change    int       `json:"change"`
	Reason    string    `json:"reason"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SaleLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type SaleRequest struct {
	Items             []SaleLine `json:"items"`
	CashReceivedCents int64      `json:"cash_received_cents"`
}

// SaleItem is one allocation of quantity from one batch within one sale.
// PriceAtSaleCents snapshots the product selling price at transaction time.
type SaleItem struct {
	ID               string `json:"id"`
	SaleID           string `json:"sale_id"`
	BatchID          string `json:"batch_id"`
	ProductID        string `json:"product_id"`
	Quantity         int    `json:"quantity"`
	PriceAtSaleCents int64  `json:"price_at_sale_cents"`
}

// Sale is immutable once committed.
type Sale struct {
	ID                string     `json:"id"`
	TotalCents        int64      `json:"total_cents"`
	CashReceivedCents int64      `json:"cash_received_cents"`
	ChangeCents       int64      `json:"change_cents"`
	CreatedAt         time.Time  `json:"created_at"`
	Items             []SaleItem `json:"items"`
}

const (
	ReturnTypeRefund      = "refund"
	ReturnTypeExchange    = "exchange"
	ReturnTypeStoreCredit = "store_credit"
)

type ReturnLine struct {
	SaleItemID string `json:"sale_item_id"`
	Quantity   int    `json:"quantity"`
}

type ReturnRequest struct {
	SaleID            string       `json:"sale_id"`
	Items             []ReturnLine `json:"items"`
	ReturnType        string       `json:"return_type"`
	RefundAmountCents int64        `json:"refund_amount_cents"`
	Reason            string       `json:"reason"`
	Note              string       `json:"note,omitempty"`
}

type ReturnItem struct {
	ID         string `json:"id"`
	ReturnID   string `json:"return_id"`
	SaleItemID string `json:"sale_item_id"`
	Quantity   int    `json:"quantity"`
}

type Return struct {
	ID                string       `json:"id"`
	SaleID            string       `json:"sale_id"`
	ReturnType        string       `json:"return_type"`
	RefundAmountCents int64        `json:"refund_amount_cents"`
	Reason            string       `json:"reason"`
	Note              string       `json:"note,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	Items             []ReturnItem `json:"items"`
}

type LowStockEntry struct {
	Product       Product `json:"product"`
	TotalQuantity int     `json:"total_quantity"`
}

const (
	ExpirationStatusExpired      = "expired"
	ExpirationStatusExpiringSoon = "expiring_soon"
)

type ExpiringBatch struct {
	Batch       Batch  `json:"batch"`
	ProductName string `json:"product_name"`
	Status      string `json:"status"`
}

type TopProduct struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
	RevenueCents int64  `json:"revenue_cents"`
}

type SalesSummary struct {
	From            string       `json:"from"`
	To              string       `json:"to"`
	Sales           int64        `json:"sales"`
	GrossCents      int64        `json:"gross_cents"`
	RefundedCents   int64        `json:"refunded_cents"`
	ItemsSold       int64        `json:"items_sold"`
	TopProducts     []TopProduct `json:"top_products"`
}

// Setting is a typed key/value configuration row consumed by the core as an
// opaque external input (tax rate, warning thresholds, shop identity).
type Setting struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	ValueType   string    `json:"value_type"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	SettingTypeString  = "string"
	SettingTypeNumber  = "number"
	SettingTypeBoolean = "boolean"
	SettingTypeJSON    = "json"
)

type SettingUpdateRequest struct {
	Value string `json:"value"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
