package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/username/cgtfolio/backend/src/models"
)

// Strategy selects which parcels a sell consumes.
type Strategy int

const (
	StrategyFIFO Strategy = iota
	StrategyLIFO
	StrategyManual
	StrategyOptimal
)

func (s Strategy) String() string {
	switch s {
	case StrategyFIFO:
		return "fifo"
	case StrategyLIFO:
		return "lifo"
	case StrategyManual:
		return "manual"
	case StrategyOptimal:
		return "optimal"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return StrategyFIFO, nil
	case "lifo":
		return StrategyLIFO, nil
	case "manual":
		return StrategyManual, nil
	case "optimal":
		return StrategyOptimal, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Allocation is one (parcel, quantity) step of an allocation plan.
type Allocation struct {
	Parcel   *models.Parcel
	Quantity int64
}

// ManualAllocation is a caller-supplied (parcel id, quantity) pair for
// manual matching.
type ManualAllocation struct {
	ParcelID int64 `json:"parcel_id"`
	Quantity int64 `json:"quantity"`
}

// Plan produces the ordered allocation plan for a sell of sellQuantity units
// against the given candidate parcels. Candidates must all belong to the
// sell's security and have remaining quantity > 0; their incoming order does
// not matter, each strategy re-orders a copy. Plan never mutates parcels and
// never touches persistence.
func Plan(candidates []*models.Parcel, sellQuantity int64, strategy Strategy, manual []ManualAllocation) ([]Allocation, error) {
	if sellQuantity <= 0 {
		return nil, fmt.Errorf("%w: sell quantity must be positive, got %d", ErrQuantityMismatch, sellQuantity)
	}

	switch strategy {
	case StrategyFIFO:
		return greedy(orderByAcquisition(candidates, false), sellQuantity)
	case StrategyLIFO:
		return greedy(orderByAcquisition(candidates, true), sellQuantity)
	case StrategyOptimal:
		return greedy(orderByCostDescending(candidates), sellQuantity)
	case StrategyManual:
		return planManual(candidates, sellQuantity, manual)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidStrategy, strategy)
}

// greedy consumes each parcel's remaining quantity in order until the sell
// quantity is exhausted.
func greedy(ordered []*models.Parcel, sellQuantity int64) ([]Allocation, error) {
	var available int64
	for _, p := range ordered {
		available += p.RemainingQuantity
	}
	if available < sellQuantity {
		return nil, fmt.Errorf("%w: need %d units, only %d available",
			ErrInsufficientQuantity, sellQuantity, available)
	}

	var plan []Allocation
	remaining := sellQuantity
	for _, p := range ordered {
		if remaining == 0 {
			break
		}
		qty := min(p.RemainingQuantity, remaining)
		if qty <= 0 {
			continue
		}
		plan = append(plan, Allocation{Parcel: p, Quantity: qty})
		remaining -= qty
	}
	return plan, nil
}

// planManual uses the caller's pairs verbatim, validating each against the
// candidate set.
func planManual(candidates []*models.Parcel, sellQuantity int64, manual []ManualAllocation) ([]Allocation, error) {
	if len(manual) == 0 {
		return nil, fmt.Errorf("%w: manual matching requires allocations", ErrQuantityMismatch)
	}

	byID := make(map[int64]*models.Parcel, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}

	seen := make(map[int64]bool, len(manual))
	var plan []Allocation
	var total int64
	for _, m := range manual {
		if m.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for parcel %d must be positive", ErrQuantityMismatch, m.ParcelID)
		}
		if seen[m.ParcelID] {
			return nil, fmt.Errorf("%w: parcel %d referenced twice", ErrQuantityMismatch, m.ParcelID)
		}
		seen[m.ParcelID] = true

		parcel, ok := byID[m.ParcelID]
		if !ok {
			return nil, fmt.Errorf("%w: parcel %d is not an available parcel for this security", ErrQuantityMismatch, m.ParcelID)
		}
		if m.Quantity > parcel.RemainingQuantity {
			return nil, fmt.Errorf("%w: parcel %d has %d remaining, requested %d",
				ErrOverAllocation, m.ParcelID, parcel.RemainingQuantity, m.Quantity)
		}

		plan = append(plan, Allocation{Parcel: parcel, Quantity: m.Quantity})
		total += m.Quantity
	}

	if total != sellQuantity {
		return nil, fmt.Errorf("%w: allocations total %d, sell quantity is %d",
			ErrQuantityMismatch, total, sellQuantity)
	}
	return plan, nil
}

// orderByAcquisition returns a copy sorted by acquisition date, oldest first
// (or newest first when reverse). Ties fall back to parcel ID so the order
// is deterministic.
func orderByAcquisition(parcels []*models.Parcel, reverse bool) []*models.Parcel {
	ordered := make([]*models.Parcel, len(parcels))
	copy(ordered, parcels)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
			if reverse {
				return a.AcquisitionDate.After(b.AcquisitionDate)
			}
			return a.AcquisitionDate.Before(b.AcquisitionDate)
		}
		return a.ID < b.ID
	})
	return ordered
}

// orderByCostDescending puts the highest cost-per-unit parcels first, which
// minimises the current gain. Equal costs break toward the oldest
// acquisition, keeping discount eligibility ahead of equally costly lots.
func orderByCostDescending(parcels []*models.Parcel) []*models.Parcel {
	ordered := make([]*models.Parcel, len(parcels))
	copy(ordered, parcels)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CostPerUnit.Equal(b.CostPerUnit) {
			return a.CostPerUnit.GreaterThan(b.CostPerUnit)
		}
		if !a.AcquisitionDate.Equal(b.AcquisitionDate) {
			return a.AcquisitionDate.Before(b.AcquisitionDate)
		}
		return a.ID < b.ID
	})
	return ordered
}
