package report

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/nao1215/tokentrail/internal/model"
)

// JSONWriter outputs reports as a single JSON document.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint is WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// flowReportJSON adds the direction name, which FlowReport keeps out of
// its own encoding.
type flowReportJSON struct {
	*model.FlowReport
	Direction string `json:"direction"`
}

// WriteFlowReport outputs the flow report.
func (w *JSONWriter) WriteFlowReport(report *model.FlowReport) (int, error) {
	return w.writeJSON(flowReportJSON{FlowReport: report, Direction: report.Direction.String()})
}

// WriteSuspicious outputs the suspicious-address scan.
func (w *JSONWriter) WriteSuspicious(report *model.SuspiciousReport) (int, error) {
	return w.writeJSON(report)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var (
		data []byte
		err  error
	)
	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// ArchiveWriter appends archived flows as JSON lines. It is safe for
// concurrent use.
type ArchiveWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewArchiveWriter returns an archive that writes to output.
func NewArchiveWriter(output io.Writer) *ArchiveWriter {
	return &ArchiveWriter{enc: json.NewEncoder(output)}
}

// Archive writes flow as one line.
func (a *ArchiveWriter) Archive(_ context.Context, flow model.ArchivedFlow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enc.Encode(flow)
}
