package report

import (
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/tokentrail/internal/model"
)

// maxMarkdownStatements caps the statements listed per exchange; the CSV
// artifacts keep the full list.
const maxMarkdownStatements = 20

// MarkdownWriter outputs reports in Markdown for sharing with analysts.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// WriteFlowReport outputs the flow report.
func (w *MarkdownWriter) WriteFlowReport(report *model.FlowReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Token Flow Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Token", "`" + report.Token + "`"},
			{"Address", "`" + report.Address + "`"},
			{"Direction", report.Direction.String()},
			{"Level", levelText(report.Level)},
			{"Generated", report.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
			{"Addresses Visited", strconv.Itoa(report.Visited)},
			{"Archived Paths", strconv.Itoa(report.Archived)},
		},
	})
	md.PlainText("")

	exchanges := sortedExchanges(report.Statements)
	if len(exchanges) > 0 {
		md.Warningf("Funds reached %d tracked exchange(s).", len(exchanges))
	} else {
		md.Note("No flow reached a tracked exchange.")
	}
	md.PlainText("")

	w.writeTopN(md, report.TopN)
	w.writeStatements(md, report, exchanges)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by tokentrail*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeTopN(md *markdown.Markdown, stats []model.FlowStat) {
	md.H2("Top Net Inflows")
	md.PlainText("")
	if len(stats) == 0 {
		md.PlainText("No address received a positive net flow.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(stats))
	for i, s := range stats {
		tag := s.EntityTag
		if tag == "" {
			tag = "-"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			"`" + s.Address + "`",
			tag,
			strconv.FormatBool(s.IsContract),
			formatAmount(s.Amount),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Address", "Entity Tag", "Contract", "Net Amount"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeStatements(md *markdown.Markdown, report *model.FlowReport, exchanges []string) {
	if len(exchanges) == 0 {
		return
	}
	md.H2("Exchange Flows")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Amount Reaching Each Exchange"),
		piechart.WithShowData(true),
	)
	for _, ex := range exchanges {
		var total float64
		for _, s := range report.Statements[ex] {
			total += s.Hop.Amount
		}
		chart.LabelAndIntValue(ex, uint64(math.Round(total)))
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	for _, ex := range exchanges {
		stmts := report.Statements[ex]
		md.H3(ex)
		md.PlainText("")

		shown := stmts[:min(len(stmts), maxMarkdownStatements)]
		rows := make([][]string, len(shown))
		for i, s := range shown {
			rows[i] = []string{
				"`" + s.ExchangeAddress + "`",
				s.EntityTag,
				formatAmount(s.Hop.Amount),
				strconv.Itoa(s.Path.Len()),
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Exchange Address", "Entity Tag", "Amount", "Hops"},
			Rows:   rows,
		})
		md.PlainText("")
		if len(stmts) > len(shown) {
			md.PlainTextf("%d more statement(s) in the CSV artifact.", len(stmts)-len(shown))
			md.PlainText("")
		}
		if len(shown) > 0 {
			md.Details("Largest path", shown[0].Path.String())
			md.PlainText("")
		}
	}
}

// WriteSuspicious outputs the suspicious-address scan.
func (w *MarkdownWriter) WriteSuspicious(report *model.SuspiciousReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Suspicious Address Scan")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Token", "`" + report.Token + "`"},
			{"Address", "`" + report.Address + "`"},
			{"Max Level", levelText(report.MaxLevel)},
		},
	})
	md.PlainText("")

	if len(report.Suspicious) == 0 {
		md.Tip("No address received enough tiny payments to be flagged.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	md.Cautionf("%d address(es) receive many tiny payments.", len(report.Suspicious))
	md.PlainText("")
	rows := make([][]string, len(report.Suspicious))
	for i, s := range report.Suspicious {
		rows[i] = []string{
			"`" + s.Address + "`",
			strconv.Itoa(s.NumPayInAddr),
			strconv.Itoa(s.NumTinyPayInAddr),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Address", "Payers", "Tiny Payers"},
		Rows:   rows,
	})
	md.PlainText("")

	return len(md.String()), md.Build()
}

func levelText(level int) string {
	if level < 0 {
		return "unbounded"
	}
	return strconv.Itoa(level)
}

func sortedExchanges(statements map[string][]model.FlowStatement) []string {
	out := make([]string, 0, len(statements))
	for ex, stmts := range statements {
		if len(stmts) > 0 {
			out = append(out, ex)
		}
	}
	slices.Sort(out)
	return out
}
