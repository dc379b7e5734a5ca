package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/tokentrail/internal/model"
)

// SimpleWriter outputs a plain-text summary for terminal display.
type SimpleWriter struct {
	baseWriter

	// limit caps the rows printed per section. Zero prints everything.
	limit int

	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithLimit caps the rows printed per section.
func WithLimit(n int) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.limit = n
	}
}

// WithVerbose prints the full path of each statement.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output), limit: 10}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteFlowReport outputs the flow report summary.
func (w *SimpleWriter) WriteFlowReport(report *model.FlowReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "TOKEN FLOW REPORT")
	fmt.Fprintf(&sb, "Token:     %s\n", report.Token)
	fmt.Fprintf(&sb, "Address:   %s\n", report.Address)
	fmt.Fprintf(&sb, "Direction: %s\n", report.Direction)
	fmt.Fprintf(&sb, "Level:     %s\n", levelText(report.Level))
	fmt.Fprintf(&sb, "Visited:   %d addresses\n", report.Visited)
	fmt.Fprintf(&sb, "Archived:  %d paths\n\n", report.Archived)

	writeSection(&sb, "TOP NET INFLOWS")
	if len(report.TopN) == 0 {
		sb.WriteString("  none\n")
	}
	for i, s := range capRows(w.limit, report.TopN) {
		tag := ""
		if s.EntityTag != "" {
			tag = " [" + s.EntityTag + "]"
		}
		fmt.Fprintf(&sb, "  %2d. %s %s%s\n", i+1, s.Address, formatAmount(s.Amount), tag)
	}
	sb.WriteString("\n")

	for _, ex := range sortedExchanges(report.Statements) {
		stmts := report.Statements[ex]
		writeSection(&sb, fmt.Sprintf("%s (%d statements)", strings.ToUpper(ex), len(stmts)))
		for _, s := range capRows(w.limit, stmts) {
			fmt.Fprintf(&sb, "  [+] %s %s\n", s.ExchangeAddress, formatAmount(s.Hop.Amount))
			if w.verbose {
				fmt.Fprintf(&sb, "      %s\n", s.Path)
			}
		}
		sb.WriteString("\n")
	}

	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	return io.WriteString(w.output, sb.String())
}

// WriteSuspicious outputs the suspicious-address scan summary.
func (w *SimpleWriter) WriteSuspicious(report *model.SuspiciousReport) (int, error) {
	var sb strings.Builder

	writeBanner(&sb, "SUSPICIOUS ADDRESS SCAN")
	fmt.Fprintf(&sb, "Token:     %s\n", report.Token)
	fmt.Fprintf(&sb, "Address:   %s\n", report.Address)
	fmt.Fprintf(&sb, "Max Level: %s\n\n", levelText(report.MaxLevel))

	writeSection(&sb, "SUSPICIOUS ADDRESSES")
	if len(report.Suspicious) == 0 {
		sb.WriteString("  none\n")
	}
	for _, s := range capRows(w.limit, report.Suspicious) {
		fmt.Fprintf(&sb, "  [!] %s %d/%d tiny payers\n", s.Address, s.NumTinyPayInAddr, s.NumPayInAddr)
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	return io.WriteString(w.output, sb.String())
}

func capRows[T any](limit int, rows []T) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func writeBanner(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	pad := max((70-len(title))/2, 0)
	sb.WriteString(strings.Repeat(" ", pad))
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")
}

func writeSection(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
}
