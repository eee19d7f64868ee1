package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/cgtfolio/backend/src/models"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func parcel(id int64, acquired string, remaining int64, costPerUnit string) *models.Parcel {
	return &models.Parcel{
		ID:                id,
		AcquisitionDate:   day(acquired),
		OriginalQuantity:  remaining,
		RemainingQuantity: remaining,
		CostPerUnit:       decimal.RequireFromString(costPerUnit),
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"fifo", "LIFO", " Manual ", "optimal"} {
		_, err := ParseStrategy(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseStrategy("hifo")
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestPlanFIFOConsumesOldestFirst(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(2, "2023-05-01", 50, "12"),
		parcel(1, "2022-01-01", 100, "10"),
		parcel(3, "2024-02-01", 30, "8"),
	}

	plan, err := Plan(candidates, 120, StrategyFIFO, nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(1), plan[0].Parcel.ID)
	assert.Equal(t, int64(100), plan[0].Quantity)
	assert.Equal(t, int64(2), plan[1].Parcel.ID)
	assert.Equal(t, int64(20), plan[1].Quantity)
}

func TestPlanLIFOConsumesNewestFirst(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(1, "2022-01-01", 100, "10"),
		parcel(2, "2023-05-01", 50, "12"),
		parcel(3, "2024-02-01", 30, "8"),
	}

	plan, err := Plan(candidates, 60, StrategyLIFO, nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(3), plan[0].Parcel.ID)
	assert.Equal(t, int64(30), plan[0].Quantity)
	assert.Equal(t, int64(2), plan[1].Parcel.ID)
	assert.Equal(t, int64(30), plan[1].Quantity)
}

func TestPlanOptimalPrefersHighestCost(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(1, "2022-01-01", 100, "10"),
		parcel(2, "2023-05-01", 50, "12"),
		parcel(3, "2024-02-01", 30, "8"),
	}

	plan, err := Plan(candidates, 60, StrategyOptimal, nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(2), plan[0].Parcel.ID)
	assert.Equal(t, int64(50), plan[0].Quantity)
	assert.Equal(t, int64(1), plan[1].Parcel.ID)
	assert.Equal(t, int64(10), plan[1].Quantity)
}

func TestPlanOptimalTieBreaksOldestFirst(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(2, "2024-02-01", 30, "10"),
		parcel(1, "2022-01-01", 30, "10"),
	}

	plan, err := Plan(candidates, 10, StrategyOptimal, nil)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, int64(1), plan[0].Parcel.ID)
}

func TestPlanStableOrderOnEqualDates(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(7, "2022-01-01", 10, "10"),
		parcel(3, "2022-01-01", 10, "10"),
	}

	plan, err := Plan(candidates, 15, StrategyFIFO, nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, int64(3), plan[0].Parcel.ID)
	assert.Equal(t, int64(7), plan[1].Parcel.ID)
}

func TestPlanInsufficientQuantity(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(1, "2022-01-01", 100, "10"),
	}

	_, err := Plan(candidates, 101, StrategyFIFO, nil)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
}

func TestPlanRejectsNonPositiveSellQuantity(t *testing.T) {
	_, err := Plan(nil, 0, StrategyFIFO, nil)
	assert.ErrorIs(t, err, ErrQuantityMismatch)
}

func TestPlanManual(t *testing.T) {
	candidates := []*models.Parcel{
		parcel(1, "2022-01-01", 100, "10"),
		parcel(2, "2023-05-01", 50, "12"),
	}

	t.Run("exact split", func(t *testing.T) {
		plan, err := Plan(candidates, 70, StrategyManual, []ManualAllocation{
			{ParcelID: 2, Quantity: 50},
			{ParcelID: 1, Quantity: 20},
		})
		require.NoError(t, err)
		require.Len(t, plan, 2)
		assert.Equal(t, int64(2), plan[0].Parcel.ID)
		assert.Equal(t, int64(1), plan[1].Parcel.ID)
	})

	t.Run("total must equal sell quantity", func(t *testing.T) {
		_, err := Plan(candidates, 70, StrategyManual, []ManualAllocation{
			{ParcelID: 1, Quantity: 60},
		})
		assert.ErrorIs(t, err, ErrQuantityMismatch)
	})

	t.Run("over-allocating a parcel", func(t *testing.T) {
		_, err := Plan(candidates, 60, StrategyManual, []ManualAllocation{
			{ParcelID: 2, Quantity: 60},
		})
		assert.ErrorIs(t, err, ErrOverAllocation)
	})

	t.Run("unknown parcel", func(t *testing.T) {
		_, err := Plan(candidates, 10, StrategyManual, []ManualAllocation{
			{ParcelID: 99, Quantity: 10},
		})
		assert.ErrorIs(t, err, ErrQuantityMismatch)
	})

	t.Run("duplicate parcel reference", func(t *testing.T) {
		_, err := Plan(candidates, 40, StrategyManual, []ManualAllocation{
			{ParcelID: 1, Quantity: 20},
			{ParcelID: 1, Quantity: 20},
		})
		assert.ErrorIs(t, err, ErrQuantityMismatch)
	})

	t.Run("no allocations", func(t *testing.T) {
		_, err := Plan(candidates, 10, StrategyManual, nil)
		assert.ErrorIs(t, err, ErrQuantityMismatch)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := Plan(candidates, 10, StrategyManual, []ManualAllocation{
			{ParcelID: 1, Quantity: 0},
		})
		assert.ErrorIs(t, err, ErrQuantityMismatch)
	})
}

func TestPlanDoesNotMutateParcels(t *testing.T) {
	p := parcel(1, "2022-01-01", 100, "10")
	_, err := Plan([]*models.Parcel{p}, 40, StrategyFIFO, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.RemainingQuantity)
}
