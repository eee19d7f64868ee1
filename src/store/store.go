package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/cgtfolio/backend/src/models"
)

const dateFormat = "2006-01-02"

var ErrNotFound = errors.New("record not found")

// Order specifies candidate parcel ordering by acquisition date.
type Order int

const (
	OldestFirst Order = iota
	NewestFirst
)

// ParcelStore is the read contract the matching engine consumes: open
// parcels for a security, ordered by acquisition date. Read-only.
type ParcelStore interface {
	Candidates(securityID int64, order Order) ([]*models.Parcel, error)
}

// SQLStore implements reads over the sqlite schema. Writes that belong to a
// commit run against a *sql.Tx via the Tx functions below, so the service
// owns the transaction boundary.
type SQLStore struct {
	db *sql.DB
}

func New(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) DB() *sql.DB { return s.db }

// Candidates returns the parcels of a security with remaining quantity,
// ordered by acquisition date. Ties order by id so the sequence is stable.
func (s *SQLStore) Candidates(securityID int64, order Order) ([]*models.Parcel, error) {
	direction := "ASC"
	if order == NewestFirst {
		direction = "DESC"
	}
	query := fmt.Sprintf(`
	SELECT id, transaction_id, security_id, acquisition_date, original_quantity,
	       remaining_quantity, cost_per_unit, total_cost_base, is_fully_matched
	FROM parcels
	WHERE security_id = ? AND remaining_quantity > 0
	ORDER BY acquisition_date %s, id %s`, direction, direction)

	rows, err := s.db.Query(query, securityID)
	if err != nil {
		return nil, fmt.Errorf("querying candidate parcels: %w", err)
	}
	defer rows.Close()

	var parcels []*models.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParcel(r rowScanner) (*models.Parcel, error) {
	var p models.Parcel
	var acqDate, costPerUnit, totalCost string
	if err := r.Scan(&p.ID, &p.TransactionID, &p.SecurityID, &acqDate,
		&p.OriginalQuantity, &p.RemainingQuantity, &costPerUnit, &totalCost,
		&p.IsFullyMatched); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning parcel: %w", err)
	}
	var err error
	if p.AcquisitionDate, err = time.Parse(dateFormat, acqDate); err != nil {
		return nil, fmt.Errorf("parsing acquisition date %q: %w", acqDate, err)
	}
	if p.CostPerUnit, err = decimal.NewFromString(costPerUnit); err != nil {
		return nil, fmt.Errorf("parsing cost per unit %q: %w", costPerUnit, err)
	}
	if p.TotalCostBase, err = decimal.NewFromString(totalCost); err != nil {
		return nil, fmt.Errorf("parsing total cost base %q: %w", totalCost, err)
	}
	return &p, nil
}

const parcelColumns = `id, transaction_id, security_id, acquisition_date, original_quantity,
	remaining_quantity, cost_per_unit, total_cost_base, is_fully_matched`

func (s *SQLStore) GetParcel(id int64) (*models.Parcel, error) {
	row := s.db.QueryRow(`SELECT `+parcelColumns+` FROM parcels WHERE id = ?`, id)
	return scanParcel(row)
}

// GetParcelTx re-reads a parcel inside an open transaction; the commit
// coordinator uses this for its re-validation pass.
func GetParcelTx(tx *sql.Tx, id int64) (*models.Parcel, error) {
	row := tx.QueryRow(`SELECT `+parcelColumns+` FROM parcels WHERE id = ?`, id)
	return scanParcel(row)
}

// UpdateParcelQuantityTx sets a parcel's remaining quantity and fully-matched
// flag as part of a commit or reversal.
func UpdateParcelQuantityTx(tx *sql.Tx, id, remaining int64) error {
	_, err := tx.Exec(`UPDATE parcels SET remaining_quantity = ?, is_fully_matched = ? WHERE id = ?`,
		remaining, remaining == 0, id)
	if err != nil {
		return fmt.Errorf("updating parcel %d quantity: %w", id, err)
	}
	return nil
}

func InsertParcelTx(tx *sql.Tx, p *models.Parcel) error {
	res, err := tx.Exec(`
	INSERT INTO parcels (transaction_id, security_id, acquisition_date, original_quantity,
		remaining_quantity, cost_per_unit, total_cost_base, is_fully_matched)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TransactionID, p.SecurityID, p.AcquisitionDate.Format(dateFormat),
		p.OriginalQuantity, p.RemainingQuantity, p.CostPerUnit.String(),
		p.TotalCostBase.String(), p.IsFullyMatched)
	if err != nil {
		return fmt.Errorf("inserting parcel: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// ParcelsForSecurity lists every parcel of a security, open or exhausted,
// oldest first.
func (s *SQLStore) ParcelsForSecurity(securityID int64) ([]*models.Parcel, error) {
	rows, err := s.db.Query(`SELECT `+parcelColumns+` FROM parcels
		WHERE security_id = ? ORDER BY acquisition_date ASC, id ASC`, securityID)
	if err != nil {
		return nil, fmt.Errorf("querying parcels: %w", err)
	}
	defer rows.Close()

	var parcels []*models.Parcel
	for rows.Next() {
		p, err := scanParcel(rows)
		if err != nil {
			return nil, err
		}
		parcels = append(parcels, p)
	}
	return parcels, rows.Err()
}
