package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/cgtfolio/backend/src/engine"
	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/models"
	"github.com/username/cgtfolio/backend/src/store"
)

type matchingServiceImpl struct {
	store       *store.SQLStore
	previews    *cache.Cache
	reportCache *cache.Cache
	previewTTL  time.Duration

	// commitMu serializes commits and reversals. Previews stay lock-free;
	// the in-transaction re-validation below catches anything that changed
	// between preview and commit.
	commitMu sync.Mutex
}

func NewMatchingService(st *store.SQLStore, previews, reportCache *cache.Cache, previewTTL time.Duration) MatchingService {
	return &matchingServiceImpl{
		store:       st,
		previews:    previews,
		reportCache: reportCache,
		previewTTL:  previewTTL,
	}
}

// buildAllocations runs the calculator over a plan and accumulates totals.
// Both the preview path and the forecast path go through here, so a forecast
// followed by a commit with the same inputs produces identical figures.
func buildAllocations(plan []engine.Allocation, terms engine.SellTerms) ([]PreviewAllocation, AllocationTotals) {
	allocations := make([]PreviewAllocation, 0, len(plan))
	var totals AllocationTotals
	for _, a := range plan {
		outcome := engine.Calculate(a.Parcel, terms, a.Quantity)
		allocations = append(allocations, PreviewAllocation{
			ParcelID:        a.Parcel.ID,
			AcquisitionDate: a.Parcel.AcquisitionDate,
			CostPerUnit:     a.Parcel.CostPerUnit,
			MatchedQuantity: a.Quantity,
			Outcome:         outcome,
		})
		totals.CostBase = totals.CostBase.Add(outcome.CostBase)
		totals.Proceeds = totals.Proceeds.Add(outcome.Proceeds)
		totals.GainLoss = totals.GainLoss.Add(outcome.CapitalGainLoss)
		totals.Discount = totals.Discount.Add(outcome.DiscountAmount)
		totals.NetCapitalGain = totals.NetCapitalGain.Add(outcome.NetCapitalGain)
	}
	return allocations, totals
}

func (s *matchingServiceImpl) Preview(sellID int64, strategy engine.Strategy, manual []engine.ManualAllocation) (*MatchPreview, error) {
	sell, err := s.store.GetTransaction(sellID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTransactionNotFound, sellID)
		}
		return nil, err
	}
	if !sell.IsSell() {
		return nil, fmt.Errorf("%w: transaction %d is a %s", ErrNotSellTransaction, sellID, sell.Type)
	}

	matched, err := s.store.MatchedQuantityForSell(sellID)
	if err != nil {
		return nil, err
	}
	target := sell.Quantity - matched
	if target <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrAlreadyFullyMatched, sellID)
	}

	sec, err := s.store.GetSecurity(sell.SecurityID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.Candidates(sell.SecurityID, store.OldestFirst)
	if err != nil {
		return nil, err
	}

	plan, err := engine.Plan(candidates, target, strategy, manual)
	if err != nil {
		return nil, err
	}

	allocations, totals := buildAllocations(plan, engine.SellTermsOf(sell))
	preview := &MatchPreview{
		ID:                uuid.NewString(),
		SellTransactionID: sell.ID,
		SecurityID:        sell.SecurityID,
		Ticker:            sec.Ticker,
		Strategy:          strategy.String(),
		Quantity:          target,
		CreatedAt:         time.Now().UTC(),
		Allocations:       allocations,
		Totals:            totals,
	}
	s.previews.Set(preview.ID, preview, s.previewTTL)

	logger.L.Info("Match preview built",
		"previewID", preview.ID, "sellID", sell.ID, "ticker", sec.Ticker,
		"strategy", preview.Strategy, "quantity", target, "allocations", len(allocations))
	return preview, nil
}

func (s *matchingServiceImpl) Commit(previewID string) (*CommitResult, error) {
	cached, found := s.previews.Get(previewID)
	if !found {
		return nil, fmt.Errorf("%w: id %s", ErrPreviewNotFound, previewID)
	}
	preview := cached.(*MatchPreview)

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	sell, err := s.store.GetTransaction(preview.SellTransactionID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.store.DB().Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning commit transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Another commit may have consumed part of this sell since the preview
	// was built.
	matchedBefore, err := store.MatchedQuantityForSellTx(dbTx, sell.ID)
	if err != nil {
		return nil, err
	}
	if matchedBefore+preview.Quantity > sell.Quantity {
		return nil, fmt.Errorf("%w: sell %d already has %d of %d units matched",
			engine.ErrStaleAllocation, sell.ID, matchedBefore, sell.Quantity)
	}

	result := &CommitResult{SellTransactionID: sell.ID}
	for _, a := range preview.Allocations {
		parcel, err := store.GetParcelTx(dbTx, a.ParcelID)
		if err != nil {
			return nil, err
		}
		if a.MatchedQuantity > parcel.RemainingQuantity {
			return nil, fmt.Errorf("%w: parcel %d has %d remaining, preview needs %d",
				engine.ErrStaleAllocation, parcel.ID, parcel.RemainingQuantity, a.MatchedQuantity)
		}

		newRemaining := parcel.RemainingQuantity - a.MatchedQuantity
		if newRemaining < 0 {
			// Unreachable if the check above held; a broken invariant, not
			// a user error.
			logger.L.Error("Commit aborted on invariant violation",
				"parcelID", parcel.ID, "remaining", parcel.RemainingQuantity,
				"matched", a.MatchedQuantity)
			return nil, fmt.Errorf("%w: parcel %d", engine.ErrNegativeRemainingQuantity, parcel.ID)
		}
		if err := store.UpdateParcelQuantityTx(dbTx, parcel.ID, newRemaining); err != nil {
			return nil, err
		}

		match := &models.ParcelMatch{
			ParcelID:          a.ParcelID,
			SellTransactionID: sell.ID,
			MatchedQuantity:   a.MatchedQuantity,
			CostBase:          a.CostBase,
			Proceeds:          a.Proceeds,
			CapitalGainLoss:   a.CapitalGainLoss,
			HoldingPeriodDays: a.HoldingPeriodDays,
			DiscountEligible:  a.DiscountEligible,
			DiscountAmount:    a.DiscountAmount,
			NetCapitalGain:    a.NetCapitalGain,
		}
		if err := store.InsertMatchTx(dbTx, match); err != nil {
			return nil, err
		}
		result.MatchIDs = append(result.MatchIDs, match.ID)
		result.MatchedQuantity += a.MatchedQuantity
	}

	if matchedBefore+result.MatchedQuantity == sell.Quantity {
		if err := store.SetTransactionMatchedTx(dbTx, sell.ID, true); err != nil {
			return nil, err
		}
		result.SellFullyMatched = true
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("committing matches: %w", err)
	}

	s.previews.Delete(previewID)
	s.reportCache.Flush()

	logger.L.Info("Match preview committed",
		"previewID", previewID, "sellID", sell.ID,
		"matches", len(result.MatchIDs), "fullyMatched", result.SellFullyMatched)
	return result, nil
}

// UnmatchSell reverses every committed match of a sell: matches are deleted
// and each parcel's remaining quantity restored, atomically. The sell can
// then be re-matched under a different strategy.
func (s *matchingServiceImpl) UnmatchSell(sellID int64) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	dbTx, err := s.store.DB().Begin()
	if err != nil {
		return fmt.Errorf("beginning reversal transaction: %w", err)
	}
	defer dbTx.Rollback()

	matches, err := store.MatchesForSellTx(dbTx, sellID)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("%w: id %d", ErrNoMatchesToReverse, sellID)
	}

	for _, m := range matches {
		parcel, err := store.GetParcelTx(dbTx, m.ParcelID)
		if err != nil {
			return err
		}
		restored := parcel.RemainingQuantity + m.MatchedQuantity
		if restored > parcel.OriginalQuantity {
			logger.L.Error("Reversal aborted on invariant violation",
				"parcelID", parcel.ID, "remaining", parcel.RemainingQuantity,
				"restoring", m.MatchedQuantity, "original", parcel.OriginalQuantity)
			return fmt.Errorf("reversing match %d would push parcel %d above its original quantity",
				m.ID, parcel.ID)
		}
		if err := store.UpdateParcelQuantityTx(dbTx, parcel.ID, restored); err != nil {
			return err
		}
	}

	if err := store.DeleteMatchesForSellTx(dbTx, sellID); err != nil {
		return err
	}
	if err := store.SetTransactionMatchedTx(dbTx, sellID, false); err != nil {
		return err
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("committing reversal: %w", err)
	}

	s.reportCache.Flush()
	logger.L.Info("Sell unmatched", "sellID", sellID, "matchesReversed", len(matches))
	return nil
}
