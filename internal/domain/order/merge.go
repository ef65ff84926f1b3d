package order

// Merge folds a new observation of an order into the stored record.
//
// The external id and every write-once timestamp already present are kept.
// Flags are OR-ed and the stage never moves backward. Tracking numbers are
// unioned in first-seen order. Commercial fields and line items are replaced
// wholesale when incoming carries line items. ERP fields are overwritten by
// non-empty values. Status only advances. LastUpdatedAt always takes the
// incoming value when set.
//
// Merging a record with itself yields the same record, which is what makes a
// repeated inbound run idempotent.
func Merge(existing, incoming Record) Record {
	out := existing
	if out.ExternalOrderID == "" {
		out.ExternalOrderID = incoming.ExternalOrderID
	}
	out.PurchaseOrderNumber = firstNonEmpty(out.PurchaseOrderNumber, incoming.PurchaseOrderNumber)
	out.OrderNumber = firstNonEmpty(out.OrderNumber, incoming.OrderNumber)
	out.Stage = maxStage(existing.Stage, incoming.Stage)
	if statusRank(incoming.Status) >= statusRank(existing.Status) && incoming.Status != "" {
		out.Status = incoming.Status
	}
	out.Flags = existing.Flags.or(incoming.Flags)
	out.Timestamps = mergeTimestamps(existing.Timestamps, incoming.Timestamps)
	out.TrackingNumbers = unionTracking(existing.TrackingNumbers, incoming.TrackingNumbers)

	out.WarehouseCode = lastNonEmpty(existing.WarehouseCode, incoming.WarehouseCode)
	out.Company = lastNonEmpty(existing.Company, incoming.Company)
	out.ErpOrderNumber = lastNonEmpty(existing.ErpOrderNumber, incoming.ErpOrderNumber)
	out.ErpOrderedAt = lastNonEmpty(existing.ErpOrderedAt, incoming.ErpOrderedAt)
	out.ExpiresAt = firstNonEmpty(existing.ExpiresAt, incoming.ExpiresAt)

	if incoming.LineItems != nil {
		out.CustomerName = incoming.CustomerName
		out.Email = incoming.Email
		out.ShippingAddress = incoming.ShippingAddress
		out.TotalPrice = incoming.TotalPrice
		out.CouponCode = incoming.CouponCode
		out.FinancialStatus = incoming.FinancialStatus
		out.RiskLevel = incoming.RiskLevel
		out.LineItems = append([]LineItem(nil), incoming.LineItems...)
	}
	return out
}

func mergeTimestamps(existing, incoming Timestamps) Timestamps {
	return Timestamps{
		OrderedAt:     firstNonEmpty(existing.OrderedAt, incoming.OrderedAt),
		ReceivedAt:    firstNonEmpty(existing.ReceivedAt, incoming.ReceivedAt),
		ImportedAt:    firstNonEmpty(existing.ImportedAt, incoming.ImportedAt),
		FulfilledAt:   firstNonEmpty(existing.FulfilledAt, incoming.FulfilledAt),
		PostedAt:      firstNonEmpty(existing.PostedAt, incoming.PostedAt),
		LastUpdatedAt: lastNonEmpty(existing.LastUpdatedAt, incoming.LastUpdatedAt),
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func lastNonEmpty(a, b string) string {
	if b != "" {
		return b
	}
	return a
}

// Update is the change the ERP side or the storefront round-trip reports for
// one order. Zero values mean "no information".
type Update struct {
	PurchaseOrderNumber string
	Status              string
	TrackingNumbers     []string
	Cancelled           bool
	Closed              bool
	Posted              bool
	WarehouseCode       string
	Company             string
	ErpOrderNumber      string
	ErpOrderedAt        string
	// ObservedAt stamps the write-once timestamp implied by Status or Posted.
	ObservedAt string
}

// Apply merges u into r with the same rules as Merge
func (r Record) Apply(u Update) Record {
	incoming := Record{
		Status:          u.Status,
		TrackingNumbers: u.TrackingNumbers,
		Flags:           Flags{Cancelled: u.Cancelled, Closed: u.Closed, Posted: u.Posted},
		WarehouseCode:   u.WarehouseCode,
		Company:         u.Company,
		ErpOrderNumber:  u.ErpOrderNumber,
		ErpOrderedAt:    u.ErpOrderedAt,
	}
	switch u.Status {
	case StatusImported:
		incoming.Timestamps.ImportedAt = u.ObservedAt
	case StatusFulfilled:
		incoming.Timestamps.ImportedAt = u.ObservedAt
		incoming.Timestamps.FulfilledAt = u.ObservedAt
	}
	if u.Posted {
		incoming.Timestamps.PostedAt = u.ObservedAt
	}
	return Merge(r, incoming)
}
