package ordersync

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/domain/order"
)

// ReconcileReport summarizes one reconciliation of ERP rows
type ReconcileReport struct {
	Rows      int
	Orders    int
	Ambiguous []string
}

// Reconciler turns ERP order rows into order updates keyed by purchase order
type Reconciler struct {
	tieBreak   TieBreakPolicy
	cancel     *regexp.Regexp
	outOfStock *regexp.Regexp
	noise      []string
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewReconciler creates a reconciler. Settings must have passed Validate.
func NewReconciler(s Settings, logger *zap.Logger) *Reconciler {
	noise := make([]string, len(s.NoiseHoldReasons))
	for i, n := range s.NoiseHoldReasons {
		noise[i] = strings.ToLower(strings.TrimSpace(n))
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		tieBreak:   s.TieBreak,
		cancel:     regexp.MustCompile(s.CancelPattern),
		outOfStock: regexp.MustCompile(s.OutOfStockPattern),
		noise:      noise,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}
}

// ReconcileErpRows groups rows by purchase order, picks one row per PO with
// the configured tie-break policy and converts it to an update. Updates are
// returned in order of each PO's first appearance.
func (r *Reconciler) ReconcileErpRows(rows []integration.ErpRow) ([]order.Update, ReconcileReport) {
	report := ReconcileReport{Rows: len(rows)}

	var pos []string
	groups := make(map[string][]integration.ErpRow)
	for _, row := range rows {
		po := strings.TrimSpace(row.PurchaseOrderNumber)
		if po == "" {
			continue
		}
		row.PurchaseOrderNumber = po
		if _, seen := groups[po]; !seen {
			pos = append(pos, po)
		}
		groups[po] = append(groups[po], row)
	}

	observed := order.FormatTimestamp(r.now().In(r.loc))
	updates := make([]order.Update, 0, len(pos))
	for _, po := range pos {
		group := groups[po]
		if r.conflicting(group) {
			report.Ambiguous = append(report.Ambiguous, po)
			r.logger.Warn("ambiguous reconciliation: conflicting tracking for one purchase order",
				zap.String("stage", "reconcile"),
				zap.String("po", po),
				zap.String("policy", string(r.tieBreak)),
				zap.Strings("tracking", trackingSets(group)),
			)
		}
		updates = append(updates, r.toUpdate(r.pick(group), observed))
	}
	report.Orders = len(updates)
	return updates, report
}

func (r *Reconciler) pick(group []integration.ErpRow) integration.ErpRow {
	switch r.tieBreak {
	case TieBreakFirstTracked:
		for _, row := range group {
			if hasTracking(row) {
				return row
			}
		}
		return group[0]

	case TieBreakLatestOrderDate:
		best := group[0]
		for _, row := range group[1:] {
			switch {
			case row.OrderDate.After(best.OrderDate):
				best = row
			case row.OrderDate.Equal(best.OrderDate) && (hasTracking(row) || !hasTracking(best)):
				best = row
			}
		}
		return best

	default:
		best := group[0]
		for _, row := range group[1:] {
			if hasTracking(row) || !hasTracking(best) {
				best = row
			}
		}
		return best
	}
}

func (r *Reconciler) toUpdate(row integration.ErpRow, observed string) order.Update {
	tracking := order.SplitTracking(row.ShipTrack)
	u := order.Update{
		PurchaseOrderNumber: row.PurchaseOrderNumber,
		TrackingNumbers:     tracking,
		WarehouseCode:       strings.TrimSpace(row.WarehouseCode),
		Company:             strings.TrimSpace(row.Company),
		ErpOrderNumber:      strings.TrimSpace(row.ErpOrderNumber),
		ErpOrderedAt:        order.FormatTimestamp(row.OrderDate),
		ObservedAt:          observed,
	}

	reason := ""
	if row.OnHold {
		reason = strings.TrimSpace(row.HoldReason)
	}
	switch {
	case reason != "" && r.cancel.MatchString(reason):
		u.Status = order.StatusCancelled
		u.Cancelled = true
		u.Closed = true
	case reason != "" && r.outOfStock.MatchString(reason):
		u.Status = order.OnHold("out of stock")
	case len(tracking) > 0 && (reason == "" || r.isNoise(reason)):
		u.Status = order.StatusFulfilled
	case reason != "" && !r.isNoise(reason):
		u.Status = order.OnHold(reason)
	default:
		u.Status = order.StatusImported
	}
	return u
}

func (r *Reconciler) isNoise(reason string) bool {
	return slices.Contains(r.noise, strings.ToLower(reason))
}

// conflicting reports whether two rows of one PO carry different, non-empty
// tracking data.
func (r *Reconciler) conflicting(group []integration.ErpRow) bool {
	var first []string
	for _, row := range group {
		t := order.SplitTracking(row.ShipTrack)
		if len(t) == 0 {
			continue
		}
		if first == nil {
			first = t
			continue
		}
		if !slices.Equal(first, t) {
			return true
		}
	}
	return false
}

func hasTracking(row integration.ErpRow) bool {
	return len(order.SplitTracking(row.ShipTrack)) > 0
}

func trackingSets(group []integration.ErpRow) []string {
	out := make([]string, 0, len(group))
	for _, row := range group {
		if t := strings.Join(order.SplitTracking(row.ShipTrack), ","); t != "" {
			out = append(out, t)
		}
	}
	return out
}
