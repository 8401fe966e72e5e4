// Package catalog loads the list of symbols eligible for fetching.
package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"histdata/internal/domain"
)

// Load reads the catalog file at path. See Read for the format.
func Load(path string) ([]domain.Symbol, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	defer f.Close()

	symbols, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return symbols, nil
}

// Read parses catalog rows of the form index,symbol,enable where enable is an
// integer and 0 disables the symbol. Extra columns are ignored. A first row
// whose index and enable columns are not integers is treated as a header.
func Read(r io.Reader) ([]domain.Symbol, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var symbols []domain.Symbol
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: want at least 3 columns, got %d", line, len(record))
		}

		index, idxErr := strconv.Atoi(strings.TrimSpace(record[0]))
		enable, enErr := strconv.Atoi(strings.TrimSpace(record[2]))
		if idxErr != nil || enErr != nil {
			if line == 1 && idxErr != nil && enErr != nil {
				continue // header
			}
			return nil, fmt.Errorf("line %d: malformed row %q", line, strings.Join(record, ","))
		}

		name := strings.TrimSpace(record[1])
		if name == "" {
			return nil, fmt.Errorf("line %d: empty symbol", line)
		}
		if strings.ContainsAny(name, `/\`) {
			return nil, fmt.Errorf("line %d: symbol %q contains a path separator", line, name)
		}

		symbols = append(symbols, domain.Symbol{
			Index:   index,
			Name:    name,
			Enabled: enable != 0,
		})
	}
	return symbols, nil
}

// Enabled filters symbols down to those with the enable flag set.
func Enabled(symbols []domain.Symbol) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(symbols))
	for _, s := range symbols {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}
