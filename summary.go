package trailingstop

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/engine"
	"github.com/tesius/trailing-stop-visualizer/pkg/metric"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"gonum.org/v1/gonum/stat"
)

// Summary renders the analysis as text tables for terminal output: the
// indicator state, the true-range distribution, and when an exit was
// simulated, the target ladder and the fills it produced.
func (a *Analysis) Summary() string {
	buffer := bytes.NewBuffer(nil)

	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Ticker", "Currency", "Interval", "Period", "Multiplier", "Bars", "ATR", "Volatility"})
	table.Append([]string{
		a.Ticker,
		a.Currency,
		a.Interval,
		strconv.Itoa(a.Period),
		fmt.Sprintf("%.2f", a.Multiplier),
		strconv.Itoa(len(a.Points)),
		formatValue(a.CurrentATR, 4),
		formatValue(a.VolatilityAmount, 4),
	})
	table.Render()

	if n := len(a.Points); n > 0 {
		last := a.Points[n-1]
		fmt.Fprintf(buffer, "Last bar %s: close %.2f, stop %s", last.Date, last.Close, formatValue(last.StopPrice, 2))
		if last.SellSignal {
			buffer.WriteString("  << SELL SIGNAL")
		}
		buffer.WriteString("\n")
	}

	if trs := a.trueRanges(); len(trs) > 1 {
		sorted := append([]float64(nil), trs...)
		sort.Float64s(sorted)
		ci := metric.Bootstrap(trs, metric.Mean, 1000, 0.95)
		fmt.Fprintf(buffer, "True range: mean %.4f (95%% CI %.4f ~ %.4f), p50 %.4f, p90 %.4f\n",
			ci.Mean, ci.Lower, ci.Upper,
			stat.Quantile(0.5, stat.LinInterp, sorted, nil),
			stat.Quantile(0.9, stat.LinInterp, sorted, nil),
		)
	}

	if a.ExitError != "" {
		fmt.Fprintf(buffer, "Exit strategy: %s\n", a.ExitError)
	}

	if a.ExitStrategy != nil {
		a.writeExit(buffer)
	}

	return buffer.String()
}

func (a *Analysis) writeExit(buffer *bytes.Buffer) {
	exit := a.ExitStrategy

	fmt.Fprintf(buffer, "\nExit strategy %s: entry %.2f, stop-loss %.2f, first TP ratio %.2f\n",
		exit.TradeType, exit.EntryPrice, exit.StopLossPrice, exit.FirstTPRatio)

	targets := tablewriter.NewWriter(buffer)
	targets.SetHeader([]string{"Level", "Target", "% From Entry", "ATR Mult", "Sell Ratio"})
	for _, t := range exit.ProfitTargets {
		targets.Append([]string{
			strconv.Itoa(t.Level),
			fmt.Sprintf("%.2f", t.TargetPrice),
			fmt.Sprintf("%.1f %%", t.PctFromEntry*100),
			fmt.Sprintf("%.1f", t.ATRMultiple),
			fmt.Sprintf("%.3f", t.SellRatio),
		})
	}
	targets.Render()

	if len(exit.Sells) == 0 {
		buffer.WriteString("No sells: position still open\n")
		return
	}

	sells := tablewriter.NewWriter(buffer)
	sells.SetHeader([]string{"Date", "Fill", "Price", "Ratio", "Remaining"})
	sells.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	for _, s := range exit.Sells {
		sells.Append([]string{
			s.Date,
			s.Label,
			fmt.Sprintf("%.2f", s.Price),
			fmt.Sprintf("%.3f", s.Ratio),
			fmt.Sprintf("%.3f", s.Remaining),
		})
	}
	sells.SetFooter([]string{
		"",
		"TOTAL",
		formatValue(exit.WeightedAvgSellPrice, 2),
		formatReturn(exit.TotalReturnPct),
		"",
	})
	sells.Render()
}

// TrueRangeHistogram writes an ASCII histogram of the true-range values
// in the response window.
func (a *Analysis) TrueRangeHistogram(w io.Writer, bins int) error {
	trs := a.trueRanges()
	if len(trs) == 0 {
		return core.ErrInsufficientData
	}

	hist := histogram.Hist(bins, trs)
	return histogram.Fprint(w, hist, histogram.Linear(10))
}

func (a *Analysis) trueRanges() []float64 {
	trs := make([]float64, 0, len(a.Points))
	for _, p := range a.Points {
		if p.TrueRange.Valid {
			trs = append(trs, p.TrueRange.Float64)
		}
	}
	return trs
}

func formatValue(v engine.Value, decimals int) string {
	if !v.Valid {
		return "-"
	}
	return strconv.FormatFloat(v.Float64, 'f', decimals, 64)
}

func formatReturn(v engine.Value) string {
	if !v.Valid {
		return "-"
	}
	return fmt.Sprintf("%+.2f %%", v.Float64)
}
