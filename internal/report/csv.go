package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/nao1215/tokentrail/internal/model"
)

var (
	topNHeader      = []string{"OUT ADDRESS", "ENTITY TAG", "IS CONTRACT", "TOTAL AMOUNT"}
	statementHeader = []string{"FROM ADDRESS", "CEX ADDRESS", "TOTAL AMOUNT", "TRANSFER PATH"}
)

// WriteTopNCSV writes the net inflow summary.
func WriteTopNCSV(output io.Writer, stats []model.FlowStat) error {
	w := csv.NewWriter(output)
	if err := w.Write(topNHeader); err != nil {
		return err
	}
	for _, s := range stats {
		err := w.Write([]string{
			s.Address,
			s.EntityTag,
			strconv.FormatBool(s.IsContract),
			formatAmount(s.Amount),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteStatementsCSV writes the flow statements of one exchange.
// FROM ADDRESS is the counterparty of the exchange on the final hop.
func WriteStatementsCSV(output io.Writer, statements []model.FlowStatement) error {
	w := csv.NewWriter(output)
	if err := w.Write(statementHeader); err != nil {
		return err
	}
	for _, s := range statements {
		from := s.Hop.From
		if from == s.ExchangeAddress {
			from = s.Hop.To
		}
		err := w.Write([]string{
			from,
			s.ExchangeAddress,
			formatAmount(s.Hop.Amount),
			s.Path.String(),
		})
		if err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
