package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/store"
)

const (
	ckFYSummary    = "report_fy_summary_%d"
	ckAvailableFYs = "report_available_fys"
)

type reportServiceImpl struct {
	store        *store.SQLStore
	reportCache  *cache.Cache
	fyStartMonth time.Month
}

func NewReportService(st *store.SQLStore, reportCache *cache.Cache, fyStartMonth time.Month) ReportService {
	return &reportServiceImpl{
		store:        st,
		reportCache:  reportCache,
		fyStartMonth: fyStartMonth,
	}
}

// FYSummary aggregates committed matches for the financial year ending in
// the given calendar year: gains and losses split, discounts, net, with a
// per-security breakdown. Pure read over immutable match data, so the
// result is cached until the next commit or reversal flushes it.
func (s *reportServiceImpl) FYSummary(year int) (*FYSummary, error) {
	cacheKey := fmt.Sprintf(ckFYSummary, year)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.(*FYSummary), nil
	}

	start, end := engine.FYRange(year, s.fyStartMonth)
	rows, err := s.store.MatchesInRange(start, end)
	if err != nil {
		return nil, err
	}

	summary := &FYSummary{
		FinancialYear: year,
		Label:         engine.FYLabel(year),
		StartDate:     start,
		EndDate:       end,
		MatchCount:    len(rows),
	}

	perSecurity := make(map[string]*SecuritySummary)
	for _, row := range rows {
		m := row.Match
		sec, ok := perSecurity[row.Ticker]
		if !ok {
			sec = &SecuritySummary{Ticker: row.Ticker}
			perSecurity[row.Ticker] = sec
		}

		if m.CapitalGainLoss.IsPositive() {
			summary.TotalGains = summary.TotalGains.Add(m.CapitalGainLoss)
			sec.Gains = sec.Gains.Add(m.CapitalGainLoss)
		} else {
			summary.TotalLosses = summary.TotalLosses.Add(m.CapitalGainLoss)
			sec.Losses = sec.Losses.Add(m.CapitalGainLoss)
		}
		summary.TotalDiscounts = summary.TotalDiscounts.Add(m.DiscountAmount)
		summary.NetCapitalGain = summary.NetCapitalGain.Add(m.NetCapitalGain)
		sec.Discounts = sec.Discounts.Add(m.DiscountAmount)
		sec.Net = sec.Net.Add(m.NetCapitalGain)
		sec.MatchCount++
	}

	summary.PerSecurity = make([]SecuritySummary, 0, len(perSecurity))
	for _, sec := range perSecurity {
		summary.PerSecurity = append(summary.PerSecurity, *sec)
	}
	sort.Slice(summary.PerSecurity, func(i, j int) bool {
		return summary.PerSecurity[i].Ticker < summary.PerSecurity[j].Ticker
	})

	s.reportCache.Set(cacheKey, summary, cache.DefaultExpiration)
	logger.L.Debug("FY summary computed", "year", year, "matches", summary.MatchCount)
	return summary, nil
}

// AvailableFYs lists the financial years that have at least one committed
// match, ascending.
func (s *reportServiceImpl) AvailableFYs() ([]int, error) {
	if cached, found := s.reportCache.Get(ckAvailableFYs); found {
		return cached.([]int), nil
	}

	dates, err := s.store.MatchedSellDates()
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var years []int
	for _, d := range dates {
		fy := engine.FYOf(d, s.fyStartMonth)
		if !seen[fy] {
			seen[fy] = true
			years = append(years, fy)
		}
	}
	sort.Ints(years)

	s.reportCache.Set(ckAvailableFYs, years, cache.DefaultExpiration)
	return years, nil
}
