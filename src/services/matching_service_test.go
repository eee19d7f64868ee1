package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/store"
)

func TestPreviewFIFO(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	env.seedBuy(t, secID, "2023-05-01", 50, "12")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	preview, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)

	assert.Equal(t, sell.ID, preview.SellTransactionID)
	assert.Equal(t, "BHP", preview.Ticker)
	assert.Equal(t, "fifo", preview.Strategy)
	require.Len(t, preview.Allocations, 1)

	a := preview.Allocations[0]
	assert.Equal(t, p1.ID, a.ParcelID)
	assert.Equal(t, int64(60), a.MatchedQuantity)
	assert.True(t, a.CostBase.Equal(dec("600")), "cost base %s", a.CostBase)
	assert.True(t, a.Proceeds.Equal(dec("900")), "proceeds %s", a.Proceeds)
	assert.True(t, a.CapitalGainLoss.Equal(dec("300")))
	assert.Equal(t, 516, a.HoldingPeriodDays)
	assert.True(t, a.DiscountEligible)
	assert.True(t, a.DiscountAmount.Equal(dec("150")))
	assert.True(t, a.NetCapitalGain.Equal(dec("150")))

	assert.True(t, preview.Totals.NetCapitalGain.Equal(dec("150")))

	// Preview writes nothing.
	stored, err := env.store.GetParcel(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.RemainingQuantity)
}

func TestPreviewErrors(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	buyParcel := env.seedBuy(t, secID, "2022-01-01", 100, "10")

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := env.matching.Preview(9999, engine.StrategyFIFO, nil)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("not a sell", func(t *testing.T) {
		_, err := env.matching.Preview(buyParcel.TransactionID, engine.StrategyFIFO, nil)
		assert.ErrorIs(t, err, ErrNotSellTransaction)
	})

	t.Run("insufficient open quantity", func(t *testing.T) {
		sell := env.seedSell(t, secID, "2023-06-01", 150, "15")
		_, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
		assert.ErrorIs(t, err, engine.ErrInsufficientQuantity)
	})
}

func TestCommitPersistsMatches(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	p2 := env.seedBuy(t, secID, "2023-05-01", 50, "12")
	sell := env.seedSell(t, secID, "2023-06-01", 120, "15")

	preview, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)

	result, err := env.matching.Commit(preview.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), result.MatchedQuantity)
	assert.Len(t, result.MatchIDs, 2)
	assert.True(t, result.SellFullyMatched)

	// First parcel fully consumed, second partially.
	stored1, err := env.store.GetParcel(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored1.RemainingQuantity)
	assert.True(t, stored1.IsFullyMatched)

	stored2, err := env.store.GetParcel(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), stored2.RemainingQuantity)
	assert.False(t, stored2.IsFullyMatched)

	storedSell, err := env.store.GetTransaction(sell.ID)
	require.NoError(t, err)
	assert.True(t, storedSell.IsFullyMatched)

	matches, err := env.store.MatchesForSell(sell.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, p1.ID, matches[0].ParcelID)
	assert.Equal(t, int64(100), matches[0].MatchedQuantity)
	assert.Equal(t, p2.ID, matches[1].ParcelID)
	assert.Equal(t, int64(20), matches[1].MatchedQuantity)

	// A committed preview is single-use.
	_, err = env.matching.Commit(preview.ID)
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestCommitUnknownPreview(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.matching.Commit("no-such-preview")
	assert.ErrorIs(t, err, ErrPreviewNotFound)
}

func TestCommitStalePreview(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	first, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	second, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)

	_, err = env.matching.Commit(first.ID)
	require.NoError(t, err)

	// The second preview was built against state the first commit consumed.
	_, err = env.matching.Commit(second.ID)
	assert.ErrorIs(t, err, engine.ErrStaleAllocation)

	// No partial writes from the failed commit.
	stored, err := env.store.GetParcel(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stored.RemainingQuantity)
}

func TestPreviewAfterFullMatch(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	env.seedBuy(t, secID, "2022-01-01", 100, "10")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	preview, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)

	_, err = env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	assert.ErrorIs(t, err, ErrAlreadyFullyMatched)
}

func TestSecondSellUsesRemainingParcels(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	p2 := env.seedBuy(t, secID, "2023-05-01", 50, "12")

	first := env.seedSell(t, secID, "2023-06-01", 60, "15")
	preview, err := env.matching.Preview(first.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)

	second := env.seedSell(t, secID, "2023-07-01", 60, "16")
	preview, err = env.matching.Preview(second.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	require.Len(t, preview.Allocations, 2)
	assert.Equal(t, p1.ID, preview.Allocations[0].ParcelID)
	assert.Equal(t, int64(40), preview.Allocations[0].MatchedQuantity)
	assert.Equal(t, p2.ID, preview.Allocations[1].ParcelID)
	assert.Equal(t, int64(20), preview.Allocations[1].MatchedQuantity)
}

func TestCommitManualAllocation(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	p2 := env.seedBuy(t, secID, "2023-05-01", 50, "12")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	preview, err := env.matching.Preview(sell.ID, engine.StrategyManual, []engine.ManualAllocation{
		{ParcelID: p2.ID, Quantity: 50},
		{ParcelID: p1.ID, Quantity: 10},
	})
	require.NoError(t, err)
	require.Len(t, preview.Allocations, 2)
	assert.Equal(t, p2.ID, preview.Allocations[0].ParcelID)

	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)

	stored2, err := env.store.GetParcel(p2.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored2.RemainingQuantity)
}

func TestUnmatchSellRestoresParcels(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	p1 := env.seedBuy(t, secID, "2022-01-01", 100, "10")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	preview, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)

	require.NoError(t, env.matching.UnmatchSell(sell.ID))

	stored, err := env.store.GetParcel(p1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), stored.RemainingQuantity)
	assert.False(t, stored.IsFullyMatched)

	storedSell, err := env.store.GetTransaction(sell.ID)
	require.NoError(t, err)
	assert.False(t, storedSell.IsFullyMatched)

	matches, err := env.store.MatchesForSell(sell.ID)
	require.NoError(t, err)
	assert.Empty(t, matches)

	// The sell can be re-matched under a different strategy.
	preview, err = env.matching.Preview(sell.ID, engine.StrategyLIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)
}

func TestUnmatchSellWithoutMatches(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	sell := env.seedSell(t, secID, "2023-06-01", 60, "15")

	err := env.matching.UnmatchSell(sell.ID)
	assert.ErrorIs(t, err, ErrNoMatchesToReverse)
}

func TestCandidatesExcludeExhaustedParcels(t *testing.T) {
	env := newTestEnv(t)
	secID := env.seedSecurity(t, "BHP")
	env.seedBuy(t, secID, "2022-01-01", 10, "10")
	env.seedBuy(t, secID, "2023-05-01", 50, "12")

	first := env.seedSell(t, secID, "2023-06-01", 10, "15")
	preview, err := env.matching.Preview(first.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)

	candidates, err := env.store.Candidates(secID, store.OldestFirst)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(50), candidates[0].RemainingQuantity)
}
