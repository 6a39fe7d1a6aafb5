package sandbox

import (
	"fmt"
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type match struct {
	side  common.OrderSide
	price fixed.Point
	size  fixed.Point
}

// evaluate decides whether order executes against quote. It returns false
// while the order keeps resting and ErrNoLiquidity when a market-equivalent
// execution finds its quote side absent.
func (s *session) evaluate(order *common.Order, quote common.Quote, ts time.Time) (match, bool, error) {
	if order.Kind.IsProtective() {
		return s.evaluateProtective(order, quote, ts)
	}

	switch order.Kind {
	case common.OrderKindMarketBuy:
		return marketFill(common.OrderSideBuy, quote, order.Size)
	case common.OrderKindMarketSell:
		return marketFill(common.OrderSideSell, quote, order.Size)
	case common.OrderKindLimitBuy:
		if quote.HasAsk() && quote.Ask.Lte(order.Price) {
			return match{side: common.OrderSideBuy, price: fixed.Min(order.Price, quote.Ask), size: order.Size}, true, nil
		}
	case common.OrderKindLimitSell:
		if quote.HasBid() && quote.Bid.Gte(order.Price) {
			return match{side: common.OrderSideSell, price: fixed.Max(order.Price, quote.Bid), size: order.Size}, true, nil
		}
	}
	return match{}, false, nil
}

// evaluateProtective handles take-profit and stop-loss orders. They are
// inert until an opposing position exists and never trade more than that
// position holds.
func (s *session) evaluateProtective(order *common.Order, quote common.Quote, ts time.Time) (match, bool, error) {
	position, _ := s.ledger.Position(order.Symbol)
	side := position.ClosingSide()
	if side == common.OrderSideNone {
		return match{}, false, nil
	}
	if order.Side != common.OrderSideNone && order.Side != side {
		return match{}, false, nil
	}

	if !triggered(order, position, side, quote, s.bar, ts) {
		return match{}, false, nil
	}
	return marketFill(side, quote, fixed.Min(order.Size, position.Quantity.Abs()))
}

func triggered(order *common.Order, position common.Position, side common.OrderSide, quote common.Quote, bar int64, ts time.Time) bool {
	switch order.Kind {
	case common.OrderKindTakeProfitPrice:
		if side == common.OrderSideSell {
			return quote.HasBid() && quote.Bid.Gte(order.Price)
		}
		return quote.HasAsk() && quote.Ask.Lte(order.Price)
	case common.OrderKindStopLossPrice:
		if side == common.OrderSideSell {
			return quote.HasBid() && quote.Bid.Lte(order.Price)
		}
		return quote.HasAsk() && quote.Ask.Gte(order.Price)
	case common.OrderKindTakeProfitTime:
		return !ts.Before(order.TriggerTime)
	case common.OrderKindStopLossTime:
		if order.HoldBars > 0 && bar-position.OpenBar >= order.HoldBars {
			return true
		}
		return order.HoldFor > 0 && ts.Sub(position.OpenTime) >= order.HoldFor
	default:
		return false
	}
}

// marketFill buys at the ask and sells at the bid.
func marketFill(side common.OrderSide, quote common.Quote, size fixed.Point) (match, bool, error) {
	if side == common.OrderSideBuy {
		if !quote.HasAsk() {
			return match{}, true, fmt.Errorf("%s has no ask: %w", quote.Symbol, exchange.ErrNoLiquidity)
		}
		return match{side: side, price: quote.Ask, size: size}, true, nil
	}
	if !quote.HasBid() {
		return match{}, true, fmt.Errorf("%s has no bid: %w", quote.Symbol, exchange.ErrNoLiquidity)
	}
	return match{side: side, price: quote.Bid, size: size}, true, nil
}

// expired applies the order's time in force at ts.
func expired(order *common.Order, ts time.Time) bool {
	switch order.TimeInForce {
	case common.TimeInForceDay:
		return tradingDay(ts).After(tradingDay(order.TimeStamp))
	case common.TimeInForceGoodTillDate:
		return ts.After(order.ExpireTime)
	default:
		return false
	}
}

func tradingDay(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
