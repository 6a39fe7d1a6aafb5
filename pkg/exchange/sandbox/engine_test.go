package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/utility"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

var baseTime = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func testInstruments() exchange.InstrumentTable {
	return exchange.MustInstrumentTable(
		exchange.InstrumentInfo{Symbol: "AAA", Digits: 2},
		exchange.InstrumentInfo{Symbol: "BBB", Digits: 2},
	)
}

func createTestEngine(t *testing.T, defaults ...Option) *Engine {
	t.Helper()
	return NewEngine(zaptest.NewLogger(t), testInstruments(), defaults...)
}

func openSession(t *testing.T, e *Engine, options ...Option) utility.SessionId {
	t.Helper()
	options = append([]Option{WithSymbols("AAA")}, options...)
	id, err := e.Open(t.Name(), fixed.FromInt(100000, 0), options...)
	require.NoError(t, err)
	return id
}

func q(symbol, bid, ask string) common.Quote {
	return common.Quote{
		Symbol: symbol,
		Bid:    fixed.MustParse(bid),
		Ask:    fixed.MustParse(ask),
	}
}

func at(bar int) time.Time {
	return baseTime.Add(time.Duration(bar) * time.Minute)
}

func snap(bar int, quotes ...common.Quote) common.Snapshot {
	return common.NewSnapshot(at(bar), quotes...)
}

func point(s string) fixed.Point {
	return fixed.MustParse(s)
}

func assertPoint(t *testing.T, expected string, actual fixed.Point) {
	t.Helper()
	assert.True(t, point(expected).Eq(actual), "expected %s, got %s", expected, actual)
}

func submit(t *testing.T, e *Engine, id utility.SessionId, order common.Order) common.OrderId {
	t.Helper()
	if order.Symbol == "" {
		order.Symbol = "AAA"
	}
	orderId, err := e.Submit(context.Background(), id, order)
	require.NoError(t, err)
	return orderId
}

func process(t *testing.T, e *Engine, id utility.SessionId, snapshot common.Snapshot) {
	t.Helper()
	require.NoError(t, e.Process(context.Background(), id, snapshot))
}

func orderById(t *testing.T, e *Engine, id utility.SessionId, orderId common.OrderId) common.Order {
	t.Helper()
	orders, err := e.Orders(id)
	require.NoError(t, err)
	for _, o := range orders {
		if o.Id == orderId {
			return o
		}
	}
	t.Fatalf("order %d not found", orderId)
	return common.Order{}
}

func position(t *testing.T, e *Engine, id utility.SessionId) common.Position {
	t.Helper()
	view, err := e.View(id)
	require.NoError(t, err)
	return view.Position("AAA")
}

func TestEngine_MarketOrders(t *testing.T) {
	tests := []struct {
		name  string
		kind  common.OrderKind
		price string
		qty   string
	}{
		{name: "market buy fills at ask", kind: common.OrderKindMarketBuy, price: "101.0", qty: "10"},
		{name: "market sell fills at bid", kind: common.OrderKindMarketSell, price: "100.5", qty: "-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e)

			orderId := submit(t, e, id, common.Order{Kind: tt.kind, Size: point("10")})
			assert.Equal(t, common.OrderStatusPending, orderById(t, e, id, orderId).Status)

			process(t, e, id, snap(0, q("AAA", "100.5", "101.0")))

			fills, err := e.Fills(id)
			require.NoError(t, err)
			require.Len(t, fills, 1)
			assertPoint(t, tt.price, fills[0].Price)
			assert.Equal(t, orderId, fills[0].OrderId)
			assert.Equal(t, int64(0), fills[0].Bar)
			assert.Equal(t, int64(1), fills[0].Sequence)

			assertPoint(t, tt.qty, position(t, e, id).Quantity)

			order := orderById(t, e, id, orderId)
			assert.Equal(t, common.OrderStatusFilled, order.Status)
			statuses := make([]common.OrderStatus, 0, len(order.History))
			for _, change := range order.History {
				statuses = append(statuses, change.Status)
			}
			assert.Equal(t, []common.OrderStatus{
				common.OrderStatusPending,
				common.OrderStatusResting,
				common.OrderStatusFilled,
			}, statuses)
		})
	}
}

func TestEngine_LimitOrders(t *testing.T) {
	tests := []struct {
		name      string
		kind      common.OrderKind
		limit     string
		quotes    []common.Quote
		fillBar   int64
		fillPrice string
	}{
		{
			name:  "limit buy waits for ask at or below limit",
			kind:  common.OrderKindLimitBuy,
			limit: "100",
			quotes: []common.Quote{
				q("AAA", "100.5", "101"),
				q("AAA", "99.5", "100"),
			},
			fillBar:   1,
			fillPrice: "100",
		},
		{
			name:  "limit buy improves to the ask",
			kind:  common.OrderKindLimitBuy,
			limit: "100",
			quotes: []common.Quote{
				q("AAA", "97", "98"),
			},
			fillBar:   0,
			fillPrice: "98",
		},
		{
			name:  "limit sell waits for bid at or above limit",
			kind:  common.OrderKindLimitSell,
			limit: "102",
			quotes: []common.Quote{
				q("AAA", "101", "101.5"),
				q("AAA", "103", "103.5"),
			},
			fillBar:   1,
			fillPrice: "103",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e)
			orderId := submit(t, e, id, common.Order{Kind: tt.kind, Price: point(tt.limit), Size: point("1")})

			for bar, quote := range tt.quotes {
				process(t, e, id, snap(bar, quote))
			}

			fills, err := e.Fills(id)
			require.NoError(t, err)
			require.Len(t, fills, 1)
			assert.Equal(t, orderId, fills[0].OrderId)
			assert.Equal(t, tt.fillBar, fills[0].Bar)
			assertPoint(t, tt.fillPrice, fills[0].Price)
		})
	}
}

func TestEngine_NoLiquidity(t *testing.T) {
	t.Run("retry fills once the side returns", func(t *testing.T) {
		router := bus.NewRouter()
		var rejections []common.OrderRejected
		router.OnOrderRejection = func(_ context.Context, rejected common.OrderRejected) {
			rejections = append(rejections, rejected)
		}

		e := createTestEngine(t)
		id := openSession(t, e, WithRouter(router))
		orderId := submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})

		process(t, e, id, snap(0, q("AAA", "100", "0")))
		order := orderById(t, e, id, orderId)
		assert.Equal(t, common.OrderStatusResting, order.Status)
		assert.Equal(t, 1, order.Attempts)
		require.Len(t, rejections, 1)
		assert.True(t, rejections[0].Transient)

		process(t, e, id, snap(1, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, orderId).Status)
		fills, _ := e.Fills(id)
		require.Len(t, fills, 1)
		assertPoint(t, "101", fills[0].Price)
	})

	t.Run("expire policy expires immediately", func(t *testing.T) {
		e := createTestEngine(t, WithLiquidityPolicy(LiquidityExpire))
		id := openSession(t, e)
		orderId := submit(t, e, id, common.Order{Kind: common.OrderKindMarketSell, Size: point("1")})

		process(t, e, id, snap(0, q("AAA", "0", "101")))
		process(t, e, id, snap(1, q("AAA", "100", "101")))

		order := orderById(t, e, id, orderId)
		assert.Equal(t, common.OrderStatusExpired, order.Status)
		assert.Equal(t, reasonNoLiquidity, order.History[len(order.History)-1].Reason)
		fills, _ := e.Fills(id)
		assert.Empty(t, fills)
	})

	t.Run("retry cap expires after n attempts", func(t *testing.T) {
		e := createTestEngine(t)
		id := openSession(t, e, WithMaxAttempts(2))
		orderId := submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})

		process(t, e, id, snap(0, q("AAA", "100", "0")))
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, orderId).Status)

		process(t, e, id, snap(1, q("AAA", "100", "0")))
		order := orderById(t, e, id, orderId)
		assert.Equal(t, common.OrderStatusExpired, order.Status)
		assert.Equal(t, 2, order.Attempts)
	})
}

func TestEngine_PriceProtectiveOrders(t *testing.T) {
	tests := []struct {
		name       string
		entry      common.OrderKind
		entryQuote common.Quote
		kind       common.OrderKind
		trigger    string
		idle       common.Quote
		hit        common.Quote
		fillPrice  string
		realized   string
	}{
		{
			name:       "take profit on long triggers on bid",
			entry:      common.OrderKindMarketBuy,
			entryQuote: q("AAA", "100", "101"),
			kind:       common.OrderKindTakeProfitPrice,
			trigger:    "105",
			idle:       q("AAA", "104.5", "105.5"),
			hit:        q("AAA", "105", "106"),
			fillPrice:  "105",
			realized:   "40",
		},
		{
			name:       "stop loss on long triggers on bid",
			entry:      common.OrderKindMarketBuy,
			entryQuote: q("AAA", "100", "101"),
			kind:       common.OrderKindStopLossPrice,
			trigger:    "96",
			idle:       q("AAA", "96.5", "97"),
			hit:        q("AAA", "95", "96"),
			fillPrice:  "95",
			realized:   "-60",
		},
		{
			name:       "take profit on short triggers on ask",
			entry:      common.OrderKindMarketSell,
			entryQuote: q("AAA", "100", "101"),
			kind:       common.OrderKindTakeProfitPrice,
			trigger:    "95",
			idle:       q("AAA", "94", "95.5"),
			hit:        q("AAA", "94", "95"),
			fillPrice:  "95",
			realized:   "50",
		},
		{
			name:       "stop loss on short triggers on ask",
			entry:      common.OrderKindMarketSell,
			entryQuote: q("AAA", "100", "101"),
			kind:       common.OrderKindStopLossPrice,
			trigger:    "104",
			idle:       q("AAA", "102", "103.5"),
			hit:        q("AAA", "104", "105"),
			fillPrice:  "105",
			realized:   "-50",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e)

			submit(t, e, id, common.Order{Kind: tt.entry, Size: point("10")})
			protective := submit(t, e, id, common.Order{Kind: tt.kind, Price: point(tt.trigger), Size: point("10")})

			process(t, e, id, snap(0, tt.entryQuote))
			process(t, e, id, snap(1, tt.idle))
			assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, protective).Status)

			process(t, e, id, snap(2, tt.hit))
			assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, protective).Status)

			fills, _ := e.Fills(id)
			require.Len(t, fills, 2)
			assertPoint(t, tt.fillPrice, fills[1].Price)
			assertPoint(t, tt.realized, fills[1].RealizedPnL)
			assert.True(t, position(t, e, id).IsFlat())
		})
	}
}

func TestEngine_ProtectiveOrderIsInertWithoutPosition(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	tp := submit(t, e, id, common.Order{Kind: common.OrderKindTakeProfitPrice, Price: point("105"), Size: point("5")})
	process(t, e, id, snap(0, q("AAA", "110", "111")))
	assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, tp).Status)

	// a sell-side take profit must not close a short
	sellTp := submit(t, e, id, common.Order{Kind: common.OrderKindTakeProfitPrice, Side: common.OrderSideSell, Price: point("90"), Size: point("5")})
	submit(t, e, id, common.Order{Kind: common.OrderKindMarketSell, Size: point("2")})
	process(t, e, id, snap(1, q("AAA", "100", "101")))
	process(t, e, id, snap(2, q("AAA", "105.5", "106")))

	assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, tp).Status)
	assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, sellTp).Status)
	assertPoint(t, "-2", position(t, e, id).Quantity)

	// the side-less take profit follows the short and closes it below 105
	process(t, e, id, snap(3, q("AAA", "104", "104.5")))
	assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, tp).Status)
	assert.True(t, position(t, e, id).IsFlat())
}

func TestEngine_ProtectiveOrderIsReduceOnly(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("10")})
	submit(t, e, id, common.Order{Kind: common.OrderKindStopLossPrice, Price: point("99"), Size: point("25")})

	process(t, e, id, snap(0, q("AAA", "100", "101")))
	process(t, e, id, snap(1, q("AAA", "98", "99")))

	fills, _ := e.Fills(id)
	require.Len(t, fills, 2)
	assertPoint(t, "10", fills[1].Size)
	assert.True(t, position(t, e, id).IsFlat())
}

func TestEngine_TakeProfitTime(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	tp := submit(t, e, id, common.Order{Kind: common.OrderKindTakeProfitTime, TriggerTime: at(3), Size: point("1")})

	for bar := 0; bar < 3; bar++ {
		process(t, e, id, snap(bar, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, tp).Status)
	}

	process(t, e, id, snap(3, q("AAA", "102", "103")))
	assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, tp).Status)

	fills, _ := e.Fills(id)
	require.Len(t, fills, 2)
	assert.Equal(t, int64(3), fills[1].Bar)
	assertPoint(t, "102", fills[1].Price)
}

func TestEngine_StopLossTimeTriggersAtHoldingPeriod(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	sl := submit(t, e, id, common.Order{Kind: common.OrderKindStopLossTime, HoldBars: 5, Size: point("1")})

	for bar := 0; bar < 5; bar++ {
		process(t, e, id, snap(bar, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, sl).Status, "bar %d", bar)
		assertPoint(t, "1", position(t, e, id).Quantity)
	}

	process(t, e, id, snap(5, q("AAA", "100", "101")))
	assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, sl).Status)
	assert.True(t, position(t, e, id).IsFlat())

	fills, _ := e.Fills(id)
	require.Len(t, fills, 2)
	assert.Equal(t, int64(5), fills[1].Bar)
}

func TestEngine_StopLossTimeByDuration(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketSell, Size: point("1")})
	sl := submit(t, e, id, common.Order{Kind: common.OrderKindStopLossTime, HoldFor: 2 * time.Minute, Size: point("1")})

	process(t, e, id, snap(0, q("AAA", "100", "101")))
	process(t, e, id, snap(1, q("AAA", "100", "101")))
	assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, sl).Status)

	process(t, e, id, snap(2, q("AAA", "100", "101")))
	assert.Equal(t, common.OrderStatusFilled, orderById(t, e, id, sl).Status)
	assert.True(t, position(t, e, id).IsFlat())
}

func TestEngine_FillPriority(t *testing.T) {
	tests := []struct {
		name        string
		priority    FillPriority
		quantity    string
		protective  common.OrderStatus
		firstFillId int
	}{
		{name: "fifo", priority: PriorityFIFO, quantity: "0", protective: common.OrderStatusResting, firstFillId: 2},
		{name: "protective first", priority: PriorityProtectiveFirst, quantity: "-10", protective: common.OrderStatusFilled, firstFillId: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e, WithFillPriority(tt.priority))

			submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("10")})
			process(t, e, id, snap(0, q("AAA", "100", "101")))

			market := submit(t, e, id, common.Order{Kind: common.OrderKindMarketSell, Size: point("10")})
			tp := submit(t, e, id, common.Order{Kind: common.OrderKindTakeProfitPrice, Price: point("105"), Size: point("10")})
			require.Equal(t, common.OrderId(2), market)
			require.Equal(t, common.OrderId(3), tp)

			process(t, e, id, snap(1, q("AAA", "106", "107")))

			assertPoint(t, tt.quantity, position(t, e, id).Quantity)
			assert.Equal(t, tt.protective, orderById(t, e, id, tp).Status)

			fills, _ := e.Fills(id)
			require.GreaterOrEqual(t, len(fills), 2)
			assert.Equal(t, common.OrderId(tt.firstFillId), fills[1].OrderId)
		})
	}
}

func TestEngine_FIFOAmongEntryOrders(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	first := submit(t, e, id, common.Order{Kind: common.OrderKindLimitBuy, Price: point("101"), Size: point("1")})
	second := submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("2")})
	third := submit(t, e, id, common.Order{Kind: common.OrderKindLimitBuy, Price: point("102"), Size: point("3")})

	process(t, e, id, snap(0, q("AAA", "100", "101")))

	fills, _ := e.Fills(id)
	require.Len(t, fills, 3)
	for i, orderId := range []common.OrderId{first, second, third} {
		assert.Equal(t, orderId, fills[i].OrderId)
		assert.Equal(t, int64(i+1), fills[i].Sequence)
	}
}

func TestEngine_Cancel(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)
	ctx := context.Background()

	filled := submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	resting := submit(t, e, id, common.Order{Kind: common.OrderKindLimitBuy, Price: point("90"), Size: point("1")})
	process(t, e, id, snap(0, q("AAA", "100", "101")))

	before, err := e.View(id)
	require.NoError(t, err)

	require.ErrorIs(t, e.Cancel(ctx, id, filled), exchange.ErrUnknownOrder)
	require.ErrorIs(t, e.Cancel(ctx, id, 99), exchange.ErrUnknownOrder)

	after, err := e.View(id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	require.NoError(t, e.Cancel(ctx, id, resting))
	assert.Equal(t, common.OrderStatusCancelled, orderById(t, e, id, resting).Status)
	require.ErrorIs(t, e.Cancel(ctx, id, resting), exchange.ErrUnknownOrder)

	pending := submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	require.NoError(t, e.Cancel(ctx, id, pending))
	process(t, e, id, snap(1, q("AAA", "100", "101")))

	fills, _ := e.Fills(id)
	assert.Len(t, fills, 1)
	assert.Equal(t, common.OrderStatusCancelled, orderById(t, e, id, pending).Status)
}

func TestEngine_InvalidOrders(t *testing.T) {
	tests := []struct {
		name  string
		order common.Order
	}{
		{name: "unknown instrument", order: common.Order{Kind: common.OrderKindMarketBuy, Symbol: "ZZZ", Size: point("1")}},
		{name: "instrument outside the session", order: common.Order{Kind: common.OrderKindMarketBuy, Symbol: "BBB", Size: point("1")}},
		{name: "zero size", order: common.Order{Kind: common.OrderKindMarketBuy, Size: point("0")}},
		{name: "negative size", order: common.Order{Kind: common.OrderKindMarketBuy, Size: point("-1")}},
		{name: "limit without price", order: common.Order{Kind: common.OrderKindLimitBuy, Size: point("1")}},
		{name: "stop loss without trigger price", order: common.Order{Kind: common.OrderKindStopLossPrice, Size: point("1")}},
		{name: "kind and side disagree", order: common.Order{Kind: common.OrderKindLimitBuy, Side: common.OrderSideSell, Price: point("1"), Size: point("1")}},
		{name: "take profit time without trigger", order: common.Order{Kind: common.OrderKindTakeProfitTime, Size: point("1")}},
		{name: "stop loss time without holding period", order: common.Order{Kind: common.OrderKindStopLossTime, Size: point("1")}},
		{name: "good till date without expiry", order: common.Order{Kind: common.OrderKindMarketBuy, TimeInForce: common.TimeInForceGoodTillDate, Size: point("1")}},
		{name: "unknown kind", order: common.Order{Kind: common.OrderKind(42), Size: point("1")}},
		{name: "cancel command", order: common.NewCancel(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e)

			order := tt.order
			if order.Symbol == "" {
				order.Symbol = "AAA"
			}
			_, err := e.Submit(context.Background(), id, order)
			require.ErrorIs(t, err, exchange.ErrInvalidOrder)

			orders, err := e.Orders(id)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}

func TestEngine_DataSync(t *testing.T) {
	tests := []struct {
		name      string
		snapshots []common.Snapshot
	}{
		{
			name: "missing instrument",
			snapshots: []common.Snapshot{
				snap(0, q("AAA", "100", "101")),
			},
		},
		{
			name: "timestamp regression",
			snapshots: []common.Snapshot{
				snap(1, q("AAA", "100", "101"), q("BBB", "50", "51")),
				snap(0, q("AAA", "100", "101"), q("BBB", "50", "51")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestEngine(t)
			id := openSession(t, e, WithSymbols("AAA", "BBB"))

			var err error
			for _, snapshot := range tt.snapshots {
				if err = e.Process(context.Background(), id, snapshot); err != nil {
					break
				}
			}
			require.ErrorIs(t, err, exchange.ErrDataSync)
			require.ErrorIs(t, e.Err(id), exchange.ErrDataSync)

			err = e.Process(context.Background(), id, snap(5, q("AAA", "100", "101"), q("BBB", "50", "51")))
			require.ErrorIs(t, err, exchange.ErrSessionAborted)
			require.ErrorIs(t, err, exchange.ErrDataSync)

			_, err = e.Submit(context.Background(), id, common.Order{Kind: common.OrderKindMarketBuy, Symbol: "AAA", Size: point("1")})
			require.ErrorIs(t, err, exchange.ErrSessionAborted)

			_, err = e.View(id)
			require.NoError(t, err)
		})
	}
}

func TestEngine_EqualTimestampsAreAllowed(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e)

	process(t, e, id, snap(0, q("AAA", "100", "101")))
	process(t, e, id, snap(0, q("AAA", "100", "101")))

	view, err := e.View(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), view.Bar)
}

func TestEngine_ConstraintViolationAbortsOnlyOwningSession(t *testing.T) {
	e := createTestEngine(t)
	strict := openSession(t, e, WithShortSelling(false))
	loose := openSession(t, e)

	submit(t, e, strict, common.Order{Kind: common.OrderKindMarketSell, Size: point("1")})
	submit(t, e, loose, common.Order{Kind: common.OrderKindMarketSell, Size: point("1")})

	before, err := e.View(strict)
	require.NoError(t, err)

	err = e.Process(context.Background(), strict, snap(0, q("AAA", "100", "101")))
	require.ErrorIs(t, err, exchange.ErrConstraintViolation)
	process(t, e, loose, snap(0, q("AAA", "100", "101")))
	process(t, e, loose, snap(1, q("AAA", "100", "101")))

	after, err := e.View(strict)
	require.NoError(t, err)
	assert.Equal(t, before.Cash, after.Cash)
	assert.True(t, after.Position("AAA").IsFlat())
	assert.Zero(t, after.FillCount)

	require.ErrorIs(t, e.Err(strict), exchange.ErrConstraintViolation)
	require.NoError(t, e.Err(loose))
	assertPoint(t, "-1", position(t, e, loose).Quantity)
}

func TestEngine_TimeInForce(t *testing.T) {
	t.Run("day order expires on the next day", func(t *testing.T) {
		e := createTestEngine(t)
		id := openSession(t, e)
		orderId := submit(t, e, id, common.Order{
			Kind:        common.OrderKindLimitBuy,
			Price:       point("90"),
			Size:        point("1"),
			TimeInForce: common.TimeInForceDay,
		})

		process(t, e, id, snap(0, q("AAA", "100", "101")))
		process(t, e, id, snap(60, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, orderId).Status)

		process(t, e, id, snap(24*60, q("AAA", "80", "81")))
		order := orderById(t, e, id, orderId)
		assert.Equal(t, common.OrderStatusExpired, order.Status)
		assert.Equal(t, reasonTimeInForce, order.History[len(order.History)-1].Reason)
		fills, _ := e.Fills(id)
		assert.Empty(t, fills)
	})

	t.Run("day order submitted before the first bar of a day trades that day", func(t *testing.T) {
		e := createTestEngine(t)
		id := openSession(t, e)

		process(t, e, id, snap(0, q("AAA", "100", "101")))
		orderId := submit(t, e, id, common.Order{
			Kind:        common.OrderKindMarketBuy,
			Size:        point("1"),
			TimeInForce: common.TimeInForceDay,
		})
		process(t, e, id, snap(24*60, q("AAA", "100", "101")))

		order := orderById(t, e, id, orderId)
		assert.Equal(t, common.OrderStatusFilled, order.Status)
		assert.Equal(t, at(24*60), order.TimeStamp)
		fills, _ := e.Fills(id)
		require.Len(t, fills, 1)
		assertPoint(t, "101", fills[0].Price)
	})

	t.Run("day order rests from the snapshot it is absorbed on", func(t *testing.T) {
		e := createTestEngine(t)
		id := openSession(t, e)

		process(t, e, id, snap(0, q("AAA", "100", "101")))
		orderId := submit(t, e, id, common.Order{
			Kind:        common.OrderKindLimitBuy,
			Price:       point("90"),
			Size:        point("1"),
			TimeInForce: common.TimeInForceDay,
		})

		process(t, e, id, snap(24*60, q("AAA", "100", "101")))
		process(t, e, id, snap(24*60+60, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, orderId).Status)

		process(t, e, id, snap(48*60, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusExpired, orderById(t, e, id, orderId).Status)
	})

	t.Run("good till date expires after expire time", func(t *testing.T) {
		e := createTestEngine(t)
		id := openSession(t, e)
		orderId := submit(t, e, id, common.Order{
			Kind:        common.OrderKindLimitSell,
			Price:       point("120"),
			Size:        point("1"),
			TimeInForce: common.TimeInForceGoodTillDate,
			ExpireTime:  at(2),
		})

		for bar := 0; bar <= 2; bar++ {
			process(t, e, id, snap(bar, q("AAA", "100", "101")))
		}
		assert.Equal(t, common.OrderStatusResting, orderById(t, e, id, orderId).Status)

		process(t, e, id, snap(3, q("AAA", "100", "101")))
		assert.Equal(t, common.OrderStatusExpired, orderById(t, e, id, orderId).Status)
	})
}

func TestEngine_CloseWithCloseOut(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e, WithCloseOnTeardown(true))

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("4")})
	resting := submit(t, e, id, common.Order{Kind: common.OrderKindLimitBuy, Price: point("50"), Size: point("1")})
	process(t, e, id, snap(0, q("AAA", "100", "101")))
	process(t, e, id, snap(1, q("AAA", "103", "104")))

	result, err := e.Close(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, result.Err)

	assert.Equal(t, int64(2), result.Bars)
	assert.True(t, result.View.Position("AAA").IsFlat())
	require.Len(t, result.Fills, 2)
	assertPoint(t, "103", result.Fills[1].Price)
	assertPoint(t, "8", result.View.RealizedPnL)
	require.Len(t, result.Trades, 1)

	require.Len(t, result.Orders, 3)
	assert.Equal(t, resting, result.Orders[1].Id)
	assert.Equal(t, common.OrderStatusCancelled, result.Orders[1].Status)
	assert.Equal(t, commentCloseOut, result.Orders[2].Comment)
	assert.Equal(t, common.OrderStatusFilled, result.Orders[2].Status)

	_, err = e.View(id)
	require.ErrorIs(t, err, exchange.ErrUnknownSession)
	_, err = e.Close(context.Background(), id)
	require.ErrorIs(t, err, exchange.ErrUnknownSession)
}

func TestEngine_CloseAbortedSessionKeepsLedger(t *testing.T) {
	e := createTestEngine(t, WithCloseOnTeardown(true))
	id := openSession(t, e)

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("2")})
	process(t, e, id, snap(0, q("AAA", "100", "101")))

	require.NoError(t, e.Abort(id, nil))
	_, err := e.Submit(context.Background(), id, common.Order{Kind: common.OrderKindMarketSell, Symbol: "AAA", Size: point("2")})
	require.ErrorIs(t, err, exchange.ErrSessionAborted)

	result, err := e.Close(context.Background(), id)
	require.NoError(t, err)
	require.ErrorIs(t, result.Err, exchange.ErrSessionAborted)
	assertPoint(t, "2", result.View.Position("AAA").Quantity)
	assert.Len(t, result.Fills, 1)
}

func TestEngine_UnknownSession(t *testing.T) {
	e := createTestEngine(t)
	id := utility.NewSessionId()

	_, err := e.Submit(context.Background(), id, common.Order{})
	require.ErrorIs(t, err, exchange.ErrUnknownSession)
	require.ErrorIs(t, e.Process(context.Background(), id, common.Snapshot{}), exchange.ErrUnknownSession)
	require.ErrorIs(t, e.Cancel(context.Background(), id, 1), exchange.ErrUnknownSession)
	_, err = e.View(id)
	require.ErrorIs(t, err, exchange.ErrUnknownSession)
}

func TestEngine_RouterReceivesSessionEvents(t *testing.T) {
	router := bus.NewRouter()
	var events []bus.EventId
	router.OnOrder = func(context.Context, common.Order) { events = append(events, bus.OrderEvent) }
	router.OnFill = func(context.Context, common.Fill) { events = append(events, bus.FillEvent) }
	router.OnEquity = func(context.Context, common.Equity) { events = append(events, bus.EquityEvent) }

	e := createTestEngine(t)
	id := openSession(t, e, WithRouter(router))
	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	process(t, e, id, snap(0, q("AAA", "100", "101")))

	assert.Equal(t, []bus.EventId{
		bus.OrderEvent,  // pending
		bus.OrderEvent,  // resting
		bus.OrderEvent,  // filled
		bus.FillEvent,   // fill
		bus.EquityEvent, // mark
	}, events)
}

func TestEngine_CancelledContextAbortsSession(t *testing.T) {
	e := createTestEngine(t)
	id := openSession(t, e, WithCloseOnTeardown(true))

	submit(t, e, id, common.Order{Kind: common.OrderKindMarketBuy, Size: point("1")})
	process(t, e, id, snap(0, q("AAA", "100", "101")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.Process(ctx, id, snap(1, q("AAA", "100", "101")))
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, e.Err(id), context.Canceled)

	_, err = e.Submit(context.Background(), id, common.Order{Kind: common.OrderKindMarketBuy, Symbol: "AAA", Size: point("1")})
	assert.ErrorIs(t, err, exchange.ErrSessionAborted)

	result, err := e.Close(context.Background(), id)
	require.NoError(t, err)
	assert.ErrorIs(t, result.Err, context.Canceled)
	require.Len(t, result.Fills, 1)
	assertPoint(t, "1", result.View.Position("AAA").Quantity)
}
