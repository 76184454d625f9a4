package position

import "github.com/shopspring/decimal"

// Performance is the trading summary over closed positions. Win and loss
// averages and best/worst are in PnL percent; TotalPnL is in SOL.
type Performance struct {
	TotalTrades     int             `json:"total_trades"`
	ProfitableCount int             `json:"profitable_trades"`
	LosingCount     int             `json:"losing_trades"`
	WinRate         float64         `json:"win_rate"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	AverageWin      float64         `json:"average_win"`
	AverageLoss     float64         `json:"average_loss"`
	BestTrade       float64         `json:"best_trade"`
	WorstTrade      float64         `json:"worst_trade"`
}

func Summarize(closed []Position) Performance {
	out := Performance{TotalPnL: decimal.Zero}
	var winSum, lossSum float64
	for _, p := range closed {
		if p.State != StateClosed {
			continue
		}
		out.TotalTrades++
		out.TotalPnL = out.TotalPnL.Add(p.PnLAbsolute)
		pct := p.PnLPercent.InexactFloat64()
		if out.TotalTrades == 1 {
			out.BestTrade, out.WorstTrade = pct, pct
		} else {
			out.BestTrade = max(out.BestTrade, pct)
			out.WorstTrade = min(out.WorstTrade, pct)
		}
		switch {
		case p.PnLAbsolute.IsPositive():
			out.ProfitableCount++
			winSum += pct
		case p.PnLAbsolute.IsNegative():
			out.LosingCount++
			lossSum += pct
		}
	}
	if out.TotalTrades > 0 {
		out.WinRate = float64(out.ProfitableCount) / float64(out.TotalTrades) * 100
	}
	if out.ProfitableCount > 0 {
		out.AverageWin = winSum / float64(out.ProfitableCount)
	}
	if out.LosingCount > 0 {
		out.AverageLoss = lossSum / float64(out.LosingCount)
	}
	return out
}
