package integration

// SyncPass names one of the independently scheduled pipeline passes
type SyncPass string

const (
	// SyncPassInbound pulls storefront orders into the order store
	SyncPassInbound SyncPass = "inbound"
	// SyncPassOutbound reconciles ERP state and pushes it back to the storefront
	SyncPassOutbound SyncPass = "outbound"
	// SyncPassSweep repairs records left in two partitions by an interrupted move
	SyncPassSweep SyncPass = "sweep"
)

// IsValid returns true if the pass is known
func (p SyncPass) IsValid() bool {
	switch p {
	case SyncPassInbound, SyncPassOutbound, SyncPassSweep:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncPass
func (p SyncPass) String() string {
	return string(p)
}
