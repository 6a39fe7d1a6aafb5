package backtest

import (
	"time"

	"github.com/peter-kozarec/arbiter/pkg/common"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

var maxAnnualGrowth = fixed.FromInt(27, 0)

type equityPoint struct {
	cash   fixed.Point
	equity fixed.Point
	t      time.Time
}

// Audit collects the equity curve and round trips of one session and turns
// them into a Report.
type Audit struct {
	minSnapshotInterval time.Duration

	equityPoints []equityPoint
	trades       []common.Trade
}

func NewAudit(minSnapshotInterval time.Duration) *Audit {
	return &Audit{
		minSnapshotInterval: minSnapshotInterval,
	}
}

func (a *Audit) AddEquity(equity common.Equity) {
	if len(a.equityPoints) == 0 ||
		equity.TimeStamp.Sub(a.equityPoints[len(a.equityPoints)-1].t) >= a.minSnapshotInterval {
		a.equityPoints = append(a.equityPoints, equityPoint{
			cash:   equity.Cash,
			equity: equity.Value,
			t:      equity.TimeStamp,
		})
	}
}

func (a *Audit) AddTrade(trade common.Trade) {
	a.trades = append(a.trades, trade)
}

func (a *Audit) GenerateReport() Report {
	report := Report{}
	if len(a.equityPoints) == 0 {
		return a.tradeStatistics(report)
	}

	auditedDays := a.dayCount()
	year := fixed.FromInt64(36500, 2)

	report.InitialEquity = a.equityPoints[0].equity
	report.StartDate = a.equityPoints[0].t
	report.FinalEquity = a.equityPoints[len(a.equityPoints)-1].equity
	report.EndDate = a.equityPoints[len(a.equityPoints)-1].t

	if report.InitialEquity.Gt(fixed.Zero) {
		report.TotalProfit = report.FinalEquity.Div(report.InitialEquity).Sub(fixed.One).MulInt64(100).Rescale(2)
	}
	if auditedDays > 0 && report.InitialEquity.Gt(fixed.Zero) && report.FinalEquity.Gt(fixed.Zero) {
		ratio := report.FinalEquity.Div(report.InitialEquity)
		exponent := year.DivInt64(int64(auditedDays))
		// Short runs with large swings cannot be annualized within decimal range.
		growth := ratio.Log().Mul(exponent)
		if growth.Abs().Lt(maxAnnualGrowth) {
			report.AnnualizedReturn = growth.Exp().Sub(fixed.One).MulInt64(100).Rescale(2)
		}
	}

	maxEquity := report.InitialEquity
	for _, point := range a.equityPoints {
		if point.equity.Gt(maxEquity) {
			maxEquity = point.equity
		}
		if !maxEquity.IsPositive() {
			continue
		}
		drawdown := maxEquity.Sub(point.equity).Div(maxEquity)
		if drawdown.Gt(report.MaxDrawdown) {
			report.MaxDrawdown = drawdown
		}
	}

	report = a.tradeStatistics(report)

	if report.MaxDrawdown.Gt(fixed.Zero) {
		report.RecoveryFactor = report.TotalProfit.Div(report.MaxDrawdown.MulInt64(100)).Rescale(5)
	}
	report.MaxDrawdown = report.MaxDrawdown.MulInt64(100).Rescale(2)

	dailyReturns := a.dailyReturns()
	meanReturn := fixed.Mean(dailyReturns)
	vol := fixed.StdDev(dailyReturns, meanReturn)

	if !meanReturn.IsZero() && !vol.IsZero() {
		report.AnnualizedVolatility = vol.Mul(fixed.Sqrt252).MulInt64(100).Rescale(2)
		report.SharpeRatio = fixed.SharpeRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
	}

	return report
}

func (a *Audit) tradeStatistics(report Report) Report {
	var (
		totalDuration time.Duration
		totalProfit   = fixed.Zero
		totalLoss     = fixed.Zero
	)
	for _, trade := range a.trades {
		report.TotalTrades++

		if !trade.OpenTime.IsZero() && trade.CloseTime.After(trade.OpenTime) {
			totalDuration += trade.CloseTime.Sub(trade.OpenTime)
		}

		if trade.NetProfit.Gt(fixed.Zero) {
			totalProfit = totalProfit.Add(trade.NetProfit)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(trade.NetProfit.Neg())
			report.LosingTrades++
		}
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt64(int64(report.WinningTrades))
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt64(int64(report.LosingTrades))
	}
	if totalLoss.Gt(fixed.Zero) {
		report.ProfitFactor = totalProfit.Div(totalLoss)
	}
	if report.AverageLoss.Gt(fixed.Zero) {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss)
	}
	if report.TotalTrades > 0 {
		report.Expectancy = totalProfit.Sub(totalLoss).DivInt64(int64(report.TotalTrades))
		report.AverageTradeDuration = totalDuration / time.Duration(report.TotalTrades)
		report.WinRate = fixed.FromInt64(int64(report.WinningTrades), 0).DivInt64(int64(report.TotalTrades)).MulInt64(100).Rescale(2)
	}
	return report
}

func (a *Audit) dayCount() int {
	if len(a.equityPoints) < 2 {
		return 1
	}
	start := a.equityPoints[0].t
	end := a.equityPoints[len(a.equityPoints)-1].t
	return int(end.Sub(start).Hours()/24) + 1
}

func (a *Audit) dailyReturns() []fixed.Point {
	var dailyReturns []fixed.Point
	if len(a.equityPoints) < 2 {
		return dailyReturns
	}

	var (
		prevDate   = a.equityPoints[0].t.Truncate(24 * time.Hour)
		prevEquity = a.equityPoints[0].equity
	)

	for _, point := range a.equityPoints[1:] {
		currDate := point.t.Truncate(24 * time.Hour)

		if currDate.After(prevDate) && prevEquity.IsPositive() {
			ret := point.equity.Div(prevEquity).Sub(fixed.One)
			dailyReturns = append(dailyReturns, ret)

			prevDate = currDate
			prevEquity = point.equity
		}
	}

	return dailyReturns
}
