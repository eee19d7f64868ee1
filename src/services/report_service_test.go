package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/cgtfolio/backend/src/engine"
)

// commitSell previews and commits a FIFO match for the given sell terms.
func commitSell(t *testing.T, env *testEnv, secID int64, date string, qty int64, price string) {
	t.Helper()
	sell := env.seedSell(t, secID, date, qty, price)
	preview, err := env.matching.Preview(sell.ID, engine.StrategyFIFO, nil)
	require.NoError(t, err)
	_, err = env.matching.Commit(preview.ID)
	require.NoError(t, err)
}

func TestFYSummaryGroupsByFinancialYear(t *testing.T) {
	env := newTestEnv(t)
	bhp := env.seedSecurity(t, "BHP")
	wes := env.seedSecurity(t, "WES")
	env.seedBuy(t, bhp, "2022-01-01", 200, "10")
	env.seedBuy(t, wes, "2022-01-01", 100, "50")

	// Two sells inside FY2025, one just across the July boundary in FY2026.
	commitSell(t, env, bhp, "2025-06-15", 50, "15") // gain 250, discounted
	commitSell(t, env, wes, "2025-06-20", 40, "45") // loss 200
	commitSell(t, env, bhp, "2025-07-10", 50, "20") // FY2026

	summary, err := env.reports.FYSummary(2025)
	require.NoError(t, err)

	assert.Equal(t, 2025, summary.FinancialYear)
	assert.Equal(t, "FY2024-25", summary.Label)
	assert.Equal(t, day(t, "2024-07-01"), summary.StartDate)
	assert.Equal(t, day(t, "2025-06-30"), summary.EndDate)
	assert.Equal(t, 2, summary.MatchCount)

	assert.True(t, summary.TotalGains.Equal(dec("250")), "gains %s", summary.TotalGains)
	assert.True(t, summary.TotalLosses.Equal(dec("-200")), "losses %s", summary.TotalLosses)
	assert.True(t, summary.TotalDiscounts.Equal(dec("125")), "discounts %s", summary.TotalDiscounts)
	// 125 net from BHP, -200 from WES.
	assert.True(t, summary.NetCapitalGain.Equal(dec("-75")), "net %s", summary.NetCapitalGain)

	require.Len(t, summary.PerSecurity, 2)
	assert.Equal(t, "BHP", summary.PerSecurity[0].Ticker)
	assert.True(t, summary.PerSecurity[0].Net.Equal(dec("125")))
	assert.Equal(t, "WES", summary.PerSecurity[1].Ticker)
	assert.True(t, summary.PerSecurity[1].Net.Equal(dec("-200")))

	next, err := env.reports.FYSummary(2026)
	require.NoError(t, err)
	assert.Equal(t, 1, next.MatchCount)
	assert.True(t, next.TotalGains.Equal(dec("500")), "gains %s", next.TotalGains)
}

func TestFYSummaryEmptyYear(t *testing.T) {
	env := newTestEnv(t)

	summary, err := env.reports.FYSummary(2030)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.MatchCount)
	assert.True(t, summary.NetCapitalGain.IsZero())
	assert.Empty(t, summary.PerSecurity)
}

func TestAvailableFYs(t *testing.T) {
	env := newTestEnv(t)
	bhp := env.seedSecurity(t, "BHP")
	env.seedBuy(t, bhp, "2022-01-01", 200, "10")

	commitSell(t, env, bhp, "2023-08-01", 10, "15")
	commitSell(t, env, bhp, "2025-06-15", 10, "15")
	commitSell(t, env, bhp, "2025-07-10", 10, "15")

	years, err := env.reports.AvailableFYs()
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2025, 2026}, years)
}

func TestReportCacheFlushedOnCommit(t *testing.T) {
	env := newTestEnv(t)
	bhp := env.seedSecurity(t, "BHP")
	env.seedBuy(t, bhp, "2022-01-01", 200, "10")
	commitSell(t, env, bhp, "2025-06-15", 50, "15")

	summary, err := env.reports.FYSummary(2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.MatchCount)

	// A later commit in the same year must invalidate the cached summary.
	commitSell(t, env, bhp, "2025-06-20", 50, "15")
	summary, err = env.reports.FYSummary(2025)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.MatchCount)
}
