package parsers

import (
	"io"

	"github.com/username/cgtfolio/backend/src/models"
)

// Parser turns one broker CSV export into canonical trade records.
// Implementations collect per-row problems instead of failing the file.
type Parser interface {
	Parse(file io.Reader) ([]models.TradeRecord, []RowError, error)
}

// RowError reports a single rejected CSV row. Line is the physical line the
// row starts on, so it stays meaningful when quoted fields span lines.
type RowError struct {
	Line   int
	Reason string
}
