// Package symbols resolves trading symbols to broker instrument identifiers
// using a reference CSV loaded once at startup.
package symbols

import (
	"fmt"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"bracket-trader/internal/errors"
)

// Instrument is one row of the broker's instrument reference file.
type Instrument struct {
	TradingSymbol string `csv:"trading_symbol"`
	ISIN          string `csv:"isin"`
	InstrumentKey string `csv:"instrument_key"`
}

// Resolver maps trading symbols to instrument identifiers. The dictionary is
// built once from the reference file and is read-only afterwards, so lookups
// need no locking.
type Resolver struct {
	bySymbol    map[string]string
	instruments []Instrument
}

// equityPrefix filters the reference file down to cash-equity instruments.
const equityPrefix = "NSE_EQ"

// NewResolver loads the instrument reference CSV and builds the dictionary.
func NewResolver(csvPath string) (*Resolver, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("opening instrument file: %w", err)
	}
	defer f.Close()

	var rows []Instrument
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("parsing instrument file: %w", err)
	}

	r := &Resolver{bySymbol: make(map[string]string)}
	for _, row := range rows {
		if row.TradingSymbol == "" || row.InstrumentKey == "" {
			continue
		}
		if !strings.HasPrefix(row.InstrumentKey, equityPrefix) {
			continue
		}
		r.bySymbol[strings.ToUpper(row.TradingSymbol)] = row.InstrumentKey
		r.instruments = append(r.instruments, row)
	}

	if len(r.bySymbol) == 0 {
		return nil, fmt.Errorf("instrument file %s contains no %s rows", csvPath, equityPrefix)
	}
	return r, nil
}

// Resolve returns the instrument identifier for a trading symbol.
func (r *Resolver) Resolve(tradingSymbol string) (string, error) {
	key, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(tradingSymbol))]
	if !ok {
		return "", errors.ErrSymbolNotFound
	}
	return key, nil
}

// Search returns up to limit instruments whose symbol contains query.
func (r *Resolver) Search(query string, limit int) []Instrument {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToUpper(strings.TrimSpace(query))

	var results []Instrument
	for _, inst := range r.instruments {
		if strings.Contains(strings.ToUpper(inst.TradingSymbol), q) {
			results = append(results, inst)
			if len(results) >= limit {
				break
			}
		}
	}
	return results
}

// Len returns the number of resolvable instruments.
func (r *Resolver) Len() int {
	return len(r.bySymbol)
}
