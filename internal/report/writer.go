package report

import (
	"io"

	"github.com/nao1215/tokentrail/internal/model"
)

// Writer renders reports to a destination.
type Writer interface {
	// WriteFlowReport outputs a flow report and returns the bytes written.
	WriteFlowReport(report *model.FlowReport) (int, error)

	// WriteSuspicious outputs a suspicious-address scan.
	WriteSuspicious(report *model.SuspiciousReport) (int, error)
}

// MultiWriter writes to several Writers in order, stopping at the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteFlowReport outputs the report to all configured Writers.
func (m *MultiWriter) WriteFlowReport(report *model.FlowReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteFlowReport(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSuspicious outputs the scan to all configured Writers.
func (m *MultiWriter) WriteSuspicious(report *model.SuspiciousReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSuspicious(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
