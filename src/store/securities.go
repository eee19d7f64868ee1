package store

import (
	"database/sql"
	"fmt"

	"github.com/username/cgtfolio/backend/src/models"
)

func (s *SQLStore) GetSecurity(id int64) (*models.Security, error) {
	row := s.db.QueryRow(`SELECT id, ticker, COALESCE(name, ''), exchange, currency, asset_type
		FROM securities WHERE id = ?`, id)
	return scanSecurity(row)
}

func (s *SQLStore) GetSecurityByTicker(ticker string) (*models.Security, error) {
	row := s.db.QueryRow(`SELECT id, ticker, COALESCE(name, ''), exchange, currency, asset_type
		FROM securities WHERE ticker = ?`, ticker)
	return scanSecurity(row)
}

func scanSecurity(row *sql.Row) (*models.Security, error) {
	var sec models.Security
	err := row.Scan(&sec.ID, &sec.Ticker, &sec.Name, &sec.Exchange, &sec.Currency, &sec.AssetType)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning security: %w", err)
	}
	return &sec, nil
}

func (s *SQLStore) ListSecurities() ([]*models.Security, error) {
	rows, err := s.db.Query(`SELECT id, ticker, COALESCE(name, ''), exchange, currency, asset_type
		FROM securities ORDER BY ticker ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying securities: %w", err)
	}
	defer rows.Close()

	var secs []*models.Security
	for rows.Next() {
		var sec models.Security
		if err := rows.Scan(&sec.ID, &sec.Ticker, &sec.Name, &sec.Exchange, &sec.Currency, &sec.AssetType); err != nil {
			return nil, fmt.Errorf("scanning security: %w", err)
		}
		secs = append(secs, &sec)
	}
	return secs, rows.Err()
}

// EnsureSecurityTx finds a security by ticker or creates it, inside the
// import transaction.
func EnsureSecurityTx(tx *sql.Tx, sec *models.Security) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM securities WHERE ticker = ?`, sec.Ticker).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("looking up security %q: %w", sec.Ticker, err)
	}

	res, err := tx.Exec(`INSERT INTO securities (ticker, name, exchange, currency, asset_type)
		VALUES (?, ?, ?, ?, ?)`,
		sec.Ticker, sec.Name, sec.Exchange, sec.Currency, sec.AssetType)
	if err != nil {
		return 0, fmt.Errorf("inserting security %q: %w", sec.Ticker, err)
	}
	return res.LastInsertId()
}
