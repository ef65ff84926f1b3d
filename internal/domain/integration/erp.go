package integration

import (
	"context"
	"time"
)

// ErpRow is one order-header row from the ERP, joined with its shipment
// tracking field. ShipTrack is comma-joined and may be empty.
type ErpRow struct {
	PurchaseOrderNumber string
	ErpOrderNumber      string
	WarehouseCode       string
	Company             string
	OrderDate           time.Time
	ShipTrack           string
	OnHold              bool
	HoldReason          string
}

// ErpSource is the port to the ERP order-entry database
type ErpSource interface {
	// ListOrderRows returns the rows of orders released on or after since,
	// ordered by order date then ERP order number.
	ListOrderRows(ctx context.Context, since time.Time) ([]ErpRow, error)
}
