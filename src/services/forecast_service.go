package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/store"
)

type forecastServiceImpl struct {
	store *store.SQLStore
}

func NewForecastService(st *store.SQLStore) ForecastService {
	return &forecastServiceImpl{store: st}
}

// Forecast simulates selling quantity units of a security at the given price
// and date under FIFO, LIFO and Optimal, without writing anything. It reuses
// the same planning and calculation code as the commit path, so a forecast
// followed by a real preview+commit with the same inputs produces identical
// per-allocation figures. The hypothetical price is taken to be in the
// reporting currency already (exchange rate 1) with no brokerage.
func (s *forecastServiceImpl) Forecast(ticker string, quantity int64, price decimal.Decimal, sellDate time.Time) (*ForecastResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", engine.ErrQuantityMismatch)
	}
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive", engine.ErrQuantityMismatch)
	}

	sec, err := s.store.GetSecurityByTicker(ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSecurityNotFound, ticker)
		}
		return nil, err
	}

	candidates, err := s.store.Candidates(sec.ID, store.OldestFirst)
	if err != nil {
		return nil, err
	}

	terms := engine.SellTerms{
		TradeDate:    sellDate,
		Quantity:     quantity,
		UnitPrice:    price,
		Brokerage:    decimal.Zero,
		ExchangeRate: decimal.NewFromInt(1),
	}

	result := &ForecastResult{
		Ticker:   sec.Ticker,
		Quantity: quantity,
		Price:    price,
		SellDate: sellDate,
	}
	for _, strategy := range []engine.Strategy{engine.StrategyFIFO, engine.StrategyLIFO, engine.StrategyOptimal} {
		plan, err := engine.Plan(candidates, quantity, strategy, nil)
		if err != nil {
			return nil, err
		}
		allocations, totals := buildAllocations(plan, terms)
		forecast := StrategyForecast{
			Strategy:    strategy.String(),
			Allocations: allocations,
			Totals:      totals,
		}
		switch strategy {
		case engine.StrategyFIFO:
			result.FIFO = forecast
		case engine.StrategyLIFO:
			result.LIFO = forecast
		case engine.StrategyOptimal:
			result.Optimal = forecast
		}
	}
	return result, nil
}
