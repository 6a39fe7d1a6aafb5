package synthetic

import "github.com/peter-kozarec/arbiter/pkg/utility/fixed"

// EURUSD is a major pair quoted with five digits and a 0.3 pip spread.
func EURUSD(symbol string, mu, sigma float64) Instrument {
	return Instrument{
		Symbol:     symbol,
		StartPrice: fixed.MustParse("1.0550"),
		Spread:     fixed.MustParse("0.00003"),
		Mu:         mu,
		Sigma:      sigma,
		Digits:     5,
	}
}

func GBPUSD(symbol string, mu, sigma float64) Instrument {
	return Instrument{
		Symbol:     symbol,
		StartPrice: fixed.MustParse("1.2650"),
		Spread:     fixed.MustParse("0.00005"),
		Mu:         mu,
		Sigma:      sigma,
		Digits:     5,
	}
}

// Equity is a generic stock quoted in cents.
func Equity(symbol string, price fixed.Point, mu, sigma float64) Instrument {
	return Instrument{
		Symbol:     symbol,
		StartPrice: price,
		Spread:     fixed.MustParse("0.02"),
		Mu:         mu,
		Sigma:      sigma,
		Digits:     2,
	}
}
