package ordersync

import (
	"fmt"
	"regexp"
	"time"
)

// CursorFailurePolicy decides what a failed cursor lookup does to the run
type CursorFailurePolicy string

const (
	// CursorDegrade logs the failure and fetches from the earliest order
	CursorDegrade CursorFailurePolicy = "degrade"
	// CursorAbort fails the run
	CursorAbort CursorFailurePolicy = "abort"
)

// TieBreakPolicy picks the winning ERP row when several share a PO
type TieBreakPolicy string

const (
	// TieBreakLastTracked processes rows in source order: a tracked row
	// supersedes everything seen so far, later untracked rows are suppressed.
	TieBreakLastTracked TieBreakPolicy = "last-tracked"
	// TieBreakLatestOrderDate keeps the row with the most recent ERP order date
	TieBreakLatestOrderDate TieBreakPolicy = "latest-order-date"
	// TieBreakFirstTracked keeps the first tracked row regardless of position
	TieBreakFirstTracked TieBreakPolicy = "first-tracked"
)

// IsValid returns true if the policy is known
func (p TieBreakPolicy) IsValid() bool {
	switch p {
	case TieBreakLastTracked, TieBreakLatestOrderDate, TieBreakFirstTracked:
		return true
	default:
		return false
	}
}

// Settings are the business knobs of the pipeline
type Settings struct {
	POPrefix         string
	FeeMarker        string
	MattressKeywords []string
	PromoPrefixes    []string
	PageSize         int
	CursorPolicy     CursorFailurePolicy
	PendingTTL       time.Duration
	Location         *time.Location

	TieBreak          TieBreakPolicy
	CancelPattern     string
	OutOfStockPattern string
	NoiseHoldReasons  []string
	ErpLookback       time.Duration

	ErpTagPrefix    string
	TrackingCompany string
	NotifyCustomer  bool
	Customer        string
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		POPrefix:          "ZSH",
		FeeMarker:         "RecyclingFee",
		MattressKeywords:  []string{"mattress", "box spring", "boxspring", "foundation"},
		PromoPrefixes:     []string{"ZIN"},
		PageSize:          250,
		CursorPolicy:      CursorDegrade,
		PendingTTL:        72 * time.Hour,
		Location:          time.UTC,
		TieBreak:          TieBreakLastTracked,
		CancelPattern:     `(?i)cancel`,
		OutOfStockPattern: `(?i)(out[ -]?of[ -]?stock|\boos\b|backorder)`,
		NoiseHoldReasons:  []string{"duplicate"},
		ErpLookback:       7 * 24 * time.Hour,
		ErpTagPrefix:      "SAGE:",
		Customer:          "ZINUS.COM",
	}
}

// Validate fills zero values from DefaultSettings and rejects bad ones
func (s *Settings) Validate() error {
	d := DefaultSettings()
	if s.PageSize == 0 {
		s.PageSize = d.PageSize
	}
	if s.PageSize < 1 || s.PageSize > 250 {
		return fmt.Errorf("ordersync: page size must be within 1..250, got %d", s.PageSize)
	}
	if s.CursorPolicy == "" {
		s.CursorPolicy = d.CursorPolicy
	}
	if s.CursorPolicy != CursorDegrade && s.CursorPolicy != CursorAbort {
		return fmt.Errorf("ordersync: unknown cursor failure policy %q", s.CursorPolicy)
	}
	if s.TieBreak == "" {
		s.TieBreak = d.TieBreak
	}
	if !s.TieBreak.IsValid() {
		return fmt.Errorf("ordersync: unknown tie-break policy %q", s.TieBreak)
	}
	if s.FeeMarker == "" {
		s.FeeMarker = d.FeeMarker
	}
	if s.MattressKeywords == nil {
		s.MattressKeywords = d.MattressKeywords
	}
	if s.PromoPrefixes == nil {
		s.PromoPrefixes = d.PromoPrefixes
	}
	if s.PendingTTL == 0 {
		s.PendingTTL = d.PendingTTL
	}
	if s.Location == nil {
		s.Location = d.Location
	}
	if s.CancelPattern == "" {
		s.CancelPattern = d.CancelPattern
	}
	if s.OutOfStockPattern == "" {
		s.OutOfStockPattern = d.OutOfStockPattern
	}
	if s.NoiseHoldReasons == nil {
		s.NoiseHoldReasons = d.NoiseHoldReasons
	}
	if s.ErpLookback == 0 {
		s.ErpLookback = d.ErpLookback
	}
	if s.Customer == "" {
		s.Customer = d.Customer
	}
	for _, p := range []string{s.CancelPattern, s.OutOfStockPattern} {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("ordersync: invalid hold-reason pattern %q: %w", p, err)
		}
	}
	return nil
}
