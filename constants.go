package mandcluster

import "github.com/behrlich/mandcluster/internal/constants"

// Re-export tunables for public API consumers that want to reference the
// scheduler's defaults without importing the internal package directly.
const (
	HPSFPGABridgeBase   = constants.HPSFPGABridgeBase
	MemDevicePath       = constants.MemDevicePath
	SettleDelay         = constants.SettleDelay
	DefaultRetryBudget  = constants.DefaultRetryBudget
	IntakeQueueCapacity = constants.IntakeQueueCapacity
	MaxCores            = constants.MaxCores
)
