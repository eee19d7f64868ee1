package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// GetParser returns the parser for a named import source. The generic
// source additionally needs a column mapping.
func GetParser(source string, mapping map[string]string) (Parser, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "selfwealth":
		return NewSelfWealthParser(), nil
	case "generic":
		if len(mapping) == 0 {
			return nil, fmt.Errorf("generic import requires a column mapping")
		}
		return NewGenericParser(mapping)
	}
	return nil, fmt.Errorf("unsupported import source: %q", source)
}

// DetectParser sniffs the header row of a CSV and picks a parser for a
// known broker format. It returns the data rewound for re-reading.
func DetectParser(file io.Reader) (Parser, io.Reader, error) {
	buf, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	headers, err := csv.NewReader(bytes.NewReader(buf)).Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if DetectSelfWealth(headers) {
		return NewSelfWealthParser(), bytes.NewReader(buf), nil
	}
	return nil, nil, fmt.Errorf("unrecognised CSV format, specify a source or column mapping")
}
