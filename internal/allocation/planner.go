// Package allocation picks which batches satisfy a requested quantity,
// first-expired first-out. Plan is pure: it inspects a snapshot and returns
// a set of draws without touching storage, so both store implementations can
// run it inside their own transactions.
package allocation

import (
	"fmt"
	"slices"
	"strings"

	"saripos/backend/internal/domain"
	"saripos/backend/internal/store"
)

// Plan greedily drains batches in FEFO order until the requested quantity is
// covered. Eligible batches are active with quantity > 0; expired batches
// stay eligible (flagging near-expiry stock is the report layer's job).
// Ordering: expiration ascending with nil expirations last, ties broken by
// creation time then id, so equal inputs always produce equal plans.
func Plan(batches []domain.Batch, quantity int) ([]domain.Allocation, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidInput)
	}

	eligible := make([]domain.Batch, 0, len(batches))
	available := 0
	for _, b := range batches {
		if b.Status != domain.BatchStatusActive || b.Quantity <= 0 {
			continue
		}
		eligible = append(eligible, b)
		available += b.Quantity
	}
	if available < quantity {
		productID := ""
		if len(batches) > 0 {
			productID = batches[0].ProductID
		}
		return nil, &store.InsufficientStockError{
			ProductID: productID,
			Requested: quantity,
			Available: available,
		}
	}

	slices.SortFunc(eligible, compareFEFO)

	plan := make([]domain.Allocation, 0, 2)
	remaining := quantity
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, domain.Allocation{BatchID: b.ID, Quantity: take})
		remaining -= take
	}
	return plan, nil
}

func compareFEFO(a, b domain.Batch) int {
	switch {
	case a.ExpirationDate == nil && b.ExpirationDate != nil:
		return 1
	case a.ExpirationDate != nil && b.ExpirationDate == nil:
		return -1
	case a.ExpirationDate != nil && b.ExpirationDate != nil:
		if a.ExpirationDate.Before(*b.ExpirationDate) {
			return -1
		}
		if b.ExpirationDate.Before(*a.ExpirationDate) {
			return 1
		}
	}
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if b.CreatedAt.Before(a.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}
