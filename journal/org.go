package journal

import (
	"fmt"
	"strings"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block with the facts in a
// PROPERTIES drawer and an empty review section.
func FormatTradeOrg(t TradeRecord) string {
	heading := fmt.Sprintf("*** %s %d %s (%s)", strings.ToUpper(t.Action), t.Quantity, t.Ticker, shortID(t.TradeID))

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":TRADE_ID: %s\n", t.TradeID))
	b.WriteString(fmt.Sprintf(":RUN_ID: %s\n", t.RunID))
	b.WriteString(fmt.Sprintf(":DATE: %s\n", t.Date.UTC().Format("2006-01-02")))
	b.WriteString(fmt.Sprintf(":TICKER: %s\n", t.Ticker))
	b.WriteString(fmt.Sprintf(":ACTION: %s\n", t.Action))
	b.WriteString(fmt.Sprintf(":REQUESTED: %g\n", t.Requested))
	b.WriteString(fmt.Sprintf(":QUANTITY: %d\n", t.Quantity))
	b.WriteString(fmt.Sprintf(":PRICE: %.4f\n", t.Price))
	b.WriteString(fmt.Sprintf(":REALIZED_PL: %.2f\n", t.RealizedPL))
	if t.Reason != "" {
		b.WriteString(fmt.Sprintf(":REASON: %s\n", t.Reason))
	}
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("**** Review\n- \n")

	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

func shortID(full string) string {
	if len(full) <= 8 {
		return full
	}
	return full[len(full)-8:]
}
