package collector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"MarketScreener/internal/model"
)

// DefaultSuffix is the exchange suffix appended to bare tickers.
const DefaultSuffix = ".JK"

// LoadUniverse reads a CSV with a "symbol" column and an optional "name"
// column. Any failure wraps model.ErrFatalInput.
func LoadUniverse(path string) ([]model.Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("universe: %w: %w", model.ErrFatalInput, err)
	}
	defer f.Close()

	list, err := ReadUniverse(f)
	if err != nil {
		return nil, fmt.Errorf("universe %s: %w", path, err)
	}
	return list, nil
}

// ReadUniverse parses universe CSV content.
func ReadUniverse(r io.Reader) ([]model.Instrument, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", model.ErrFatalInput, err)
	}
	symCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "symbol", "ticker", "code":
			if symCol < 0 {
				symCol = i
			}
		case "name":
			nameCol = i
		}
	}
	if symCol < 0 {
		return nil, fmt.Errorf("%w: no symbol column in %v", model.ErrFatalInput, header)
	}

	var out []model.Instrument
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrFatalInput, err)
		}
		if symCol >= len(rec) {
			continue
		}
		inst := model.Instrument{Symbol: strings.TrimSpace(rec[symCol])}
		if nameCol >= 0 && nameCol < len(rec) {
			inst.Name = strings.TrimSpace(rec[nameCol])
		}
		if inst.Symbol != "" {
			out = append(out, inst)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: universe is empty", model.ErrFatalInput)
	}
	return out, nil
}

// NormalizeSymbol upper-cases a ticker and appends suffix when it is missing.
// Index symbols ("^JKSE") are left alone.
func NormalizeSymbol(symbol, suffix string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" || strings.HasPrefix(s, "^") || suffix == "" {
		return s
	}
	if strings.HasSuffix(s, strings.ToUpper(suffix)) {
		return s
	}
	return s + strings.ToUpper(suffix)
}

// Normalize normalizes every symbol and drops duplicates, keeping the first
// occurrence and its name.
func Normalize(list []model.Instrument, suffix string) []model.Instrument {
	seen := make(map[string]bool, len(list))
	out := make([]model.Instrument, 0, len(list))
	for _, inst := range list {
		sym := NormalizeSymbol(inst.Symbol, suffix)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, model.Instrument{Symbol: sym, Name: inst.Name})
	}
	return out
}

// CSVUniverse re-reads the universe file on every Load, so edits apply to
// the next run.
type CSVUniverse struct {
	Path string
}

func (u CSVUniverse) Load() ([]model.Instrument, error) { return LoadUniverse(u.Path) }
