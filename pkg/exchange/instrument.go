package exchange

import (
	"errors"
	"fmt"
	"sort"

	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

var (
	ErrInstrumentNotPresent = errors.New("instrument is not present in instrument table")
	ErrDuplicateInstrument  = errors.New("instrument is registered twice")
)

type InstrumentInfo struct {
	Symbol       string      `yaml:"symbol" json:"symbol"`
	Digits       int         `yaml:"digits" json:"digits"`
	TickSize     fixed.Point `yaml:"tick_size" json:"tick_size"`
	ContractSize fixed.Point `yaml:"contract_size" json:"contract_size"`
}

// Multiplier converts price differences into account currency.
func (i InstrumentInfo) Multiplier() fixed.Point {
	if i.ContractSize.IsZero() {
		return fixed.One
	}
	return i.ContractSize
}

// InstrumentTable is the static instrument metadata shared by every session.
// It is never mutated after construction, so concurrent readers need no
// locking.
type InstrumentTable struct {
	instruments map[string]InstrumentInfo
	symbols     []string
}

func NewInstrumentTable(instruments ...InstrumentInfo) (InstrumentTable, error) {
	t := InstrumentTable{
		instruments: make(map[string]InstrumentInfo, len(instruments)),
		symbols:     make([]string, 0, len(instruments)),
	}
	for _, instrument := range instruments {
		if instrument.Symbol == "" {
			return InstrumentTable{}, fmt.Errorf("instrument without symbol: %w", ErrInstrumentNotPresent)
		}
		if _, ok := t.instruments[instrument.Symbol]; ok {
			return InstrumentTable{}, fmt.Errorf("%s: %w", instrument.Symbol, ErrDuplicateInstrument)
		}
		t.instruments[instrument.Symbol] = instrument
		t.symbols = append(t.symbols, instrument.Symbol)
	}
	sort.Strings(t.symbols)
	return t, nil
}

func MustInstrumentTable(instruments ...InstrumentInfo) InstrumentTable {
	t, err := NewInstrumentTable(instruments...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t InstrumentTable) Contains(symbol string) bool {
	_, ok := t.instruments[symbol]
	return ok
}

func (t InstrumentTable) Get(symbol string) (InstrumentInfo, error) {
	instrument, ok := t.instruments[symbol]
	if !ok {
		return InstrumentInfo{}, fmt.Errorf("unable to get instrument %s: %w", symbol, ErrInstrumentNotPresent)
	}
	return instrument, nil
}

// Symbols returns the registered symbols in sorted order.
func (t InstrumentTable) Symbols() []string {
	symbols := make([]string, len(t.symbols))
	copy(symbols, t.symbols)
	return symbols
}

func (t InstrumentTable) Len() int {
	return len(t.symbols)
}
