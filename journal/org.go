package journal

import (
	"fmt"
	"strings"
	"time"

	"tendbot/internal/id"
)

// FormatPositionOrg renders an archived position as an Org-mode block for
// pasting into a trading journal. Structured facts go in a PROPERTIES drawer
// for easy search; the narrative headings are left for the human.
func FormatPositionOrg(r PositionRecord) string {
	heading := fmt.Sprintf("** %s %s (%s)", r.Symbol, r.Side, id.Short(r.PositionID))
	open := r.OpenTime.UTC().Format(time.RFC3339)
	closed := r.CloseTime.UTC().Format(time.RFC3339)

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n")
	b.WriteString(":PROPERTIES:\n")
	b.WriteString(fmt.Sprintf(":POSITION_ID: %s\n", r.PositionID))
	b.WriteString(fmt.Sprintf(":SYMBOL: %s\n", r.Symbol))
	b.WriteString(fmt.Sprintf(":SIDE: %s\n", r.Side))
	b.WriteString(fmt.Sprintf(":CONFIDENCE: %s\n", r.Confidence))
	b.WriteString(fmt.Sprintf(":SIZE: %.4f\n", r.SizeOpened))
	b.WriteString(fmt.Sprintf(":ENTRY_PRICE: %.5f\n", r.EntryPrice))
	b.WriteString(fmt.Sprintf(":TARGET_PRICE: %.5f\n", r.TargetPrice))
	b.WriteString(fmt.Sprintf(":STOP_PRICE: %.5f\n", r.StopPrice))
	b.WriteString(fmt.Sprintf(":FINAL_STOP: %.5f\n", r.FinalStop))
	b.WriteString(fmt.Sprintf(":OPEN_TIME: %s\n", open))
	b.WriteString(fmt.Sprintf(":CLOSE_TIME: %s\n", closed))
	b.WriteString(fmt.Sprintf(":PARTIAL_PNL: %.2f\n", r.PartialPnL))
	b.WriteString(fmt.Sprintf(":REALIZED_PNL: %.2f\n", r.RealizedPnL))
	b.WriteString(fmt.Sprintf(":REASON: %s\n", r.Reason))
	b.WriteString(":END:\n")
	b.WriteString("\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")

	return b.String()
}

// FormatPositionsOrg renders multiple positions separated by blank lines.
func FormatPositionsOrg(recs []PositionRecord) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatPositionOrg(r))
	}
	return b.String()
}
