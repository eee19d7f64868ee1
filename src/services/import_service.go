package services

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/logger"
	"github.com/username/cgtfolio/backend/src/models"
	"github.com/username/cgtfolio/backend/src/parsers"
	"github.com/username/cgtfolio/backend/src/store"
)

type importServiceImpl struct {
	store       *store.SQLStore
	reportCache *cache.Cache
}

func NewImportService(st *store.SQLStore, reportCache *cache.Cache) ImportService {
	return &importServiceImpl{store: st, reportCache: reportCache}
}

// ImportCSV ingests one broker CSV. Every valid row becomes a transaction;
// BUY rows additionally open a parcel. The whole file lands in a single
// transaction so a mid-file failure leaves nothing behind.
func (s *importServiceImpl) ImportCSV(r io.Reader, source string, mapping map[string]string) (*ImportResult, error) {
	var parser parsers.Parser
	var err error
	if source == "" {
		parser, r, err = parsers.DetectParser(r)
	} else {
		parser, err = parsers.GetParser(source, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	records, rowErrors, err := parser.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailed, err)
	}

	result := &ImportResult{}
	for _, re := range rowErrors {
		result.RowErrors = append(result.RowErrors, fmt.Sprintf("line %d: %s", re.Line, re.Reason))
	}

	tx, err := s.store.DB().Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %v", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool)
	for _, rec := range records {
		hashID := recordHash(rec)
		if seen[hashID] {
			result.SkippedDuplicates++
			continue
		}
		seen[hashID] = true
		exists, err := store.TransactionExistsByHashTx(tx, hashID)
		if err != nil {
			return nil, err
		}
		if exists {
			result.SkippedDuplicates++
			continue
		}

		securityID, err := store.EnsureSecurityTx(tx, &models.Security{
			Ticker:    rec.Ticker,
			Name:      rec.Ticker,
			Exchange:  rec.Exchange,
			Currency:  rec.Currency,
			AssetType: rec.AssetType,
		})
		if err != nil {
			return nil, err
		}

		txn := &models.Transaction{
			SecurityID:   securityID,
			TradeDate:    rec.TradeDate,
			Type:         rec.Type,
			Quantity:     rec.Quantity,
			UnitPrice:    rec.UnitPrice,
			Brokerage:    rec.Brokerage,
			TotalValue:   rec.TotalValue,
			Currency:     rec.Currency,
			ExchangeRate: rec.ExchangeRate,
			HashID:       hashID,
		}
		if err := store.InsertTransactionTx(tx, txn); err != nil {
			return nil, err
		}
		result.Created++

		if txn.IsBuy() {
			if err := s.openParcel(tx, txn); err != nil {
				return nil, err
			}
			result.ParcelsCreated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %v", err)
	}
	s.reportCache.Flush()

	logger.L.Info("CSV import finished",
		"source", source,
		"created", result.Created,
		"parcels", result.ParcelsCreated,
		"duplicates", result.SkippedDuplicates,
		"row_errors", len(result.RowErrors))
	return result, nil
}

// openParcel creates the acquisition parcel for a buy. The cost base is the
// full outlay, purchase value plus brokerage, converted to the reporting
// currency at the trade's exchange rate.
func (s *importServiceImpl) openParcel(tx *sql.Tx, buy *models.Transaction) error {
	qty := decimal.NewFromInt(buy.Quantity)
	gross := buy.UnitPrice.Mul(qty).Add(buy.Brokerage)
	totalCost := gross.Mul(buy.ExchangeRate)
	parcel := &models.Parcel{
		TransactionID:     buy.ID,
		SecurityID:        buy.SecurityID,
		AcquisitionDate:   buy.TradeDate,
		OriginalQuantity:  buy.Quantity,
		RemainingQuantity: buy.Quantity,
		CostPerUnit:       totalCost.Div(qty),
		TotalCostBase:     totalCost,
	}
	return store.InsertParcelTx(tx, parcel)
}

// recordHash builds a stable dedupe key from the canonical trade fields, so
// re-importing the same file (or an overlapping export) is idempotent.
func recordHash(rec models.TradeRecord) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d|%s|%s|%s",
		rec.TradeDate.Format("2006-01-02"), rec.Type, rec.Ticker,
		rec.Quantity, rec.UnitPrice.String(), rec.Brokerage.String(),
		rec.TotalValue.String())
	return hex.EncodeToString(h.Sum(nil))
}
