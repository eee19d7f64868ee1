package engine

import "errors"

// User-input class failures: returned to the caller for display or retry.
var (
	ErrInsufficientQuantity = errors.New("insufficient remaining quantity across parcels")
	ErrQuantityMismatch     = errors.New("allocation quantities do not match sell quantity")
	ErrOverAllocation       = errors.New("allocation exceeds parcel remaining quantity")
	ErrStaleAllocation      = errors.New("parcel quantities changed since preview was built")
	ErrInvalidStrategy      = errors.New("unknown matching strategy")
)

// ErrNegativeRemainingQuantity is a defect-class failure: it means validation
// was broken upstream. The operation aborts without partial writes.
var ErrNegativeRemainingQuantity = errors.New("parcel remaining quantity would go negative")
