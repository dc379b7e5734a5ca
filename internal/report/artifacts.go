package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/tokentrail/internal/model"
)

// Artifacts writes report files into one directory. All files of one
// Artifacts share the same timestamp.
type Artifacts struct {
	dir    string
	source string
	chain  string
	stamp  int64
}

// NewArtifacts creates dir if needed and returns a file writer for it.
func NewArtifacts(dir, source, chain string, now time.Time) (*Artifacts, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Artifacts{
		dir:    dir,
		source: strings.ToLower(source),
		chain:  strings.ToLower(chain),
		stamp:  now.Unix(),
	}, nil
}

// ShortAddress keeps the first and last three characters of addr.
func ShortAddress(addr string) string {
	if len(addr) <= 9 {
		return addr
	}
	return addr[:3] + "..." + addr[len(addr)-3:]
}

// Path returns the file name of an artifact kind for addr.
func (a *Artifacts) Path(kind, addr, ext string) string {
	name := fmt.Sprintf("%s-%s-%s-%s-%d.%s", kind, a.source, a.chain, ShortAddress(addr), a.stamp, ext)
	return filepath.Join(a.dir, name)
}

// ArchiveFile is a JSON-lines archive backed by a file.
type ArchiveFile struct {
	*ArchiveWriter
	f *os.File
}

// Name returns the file path.
func (f *ArchiveFile) Name() string { return f.f.Name() }

// Close closes the file.
func (f *ArchiveFile) Close() error { return f.f.Close() }

// CreateArchive opens the archive of paths reaching tagged sinks from addr.
func (a *Artifacts) CreateArchive(addr string) (*ArchiveFile, error) {
	f, err := os.Create(a.Path("archive-flow-statements", addr, "json"))
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	return &ArchiveFile{ArchiveWriter: NewArchiveWriter(f), f: f}, nil
}

// WriteFlowReport writes the top-N CSV and one statements CSV per
// exchange, both only when non-empty, and the Markdown summary. It returns
// the paths written.
func (a *Artifacts) WriteFlowReport(report *model.FlowReport) ([]string, error) {
	var paths []string

	if len(report.TopN) > 0 {
		p := a.Path("topN-flow-summary", report.Address, "csv")
		if err := writeFile(p, func(w io.Writer) error { return WriteTopNCSV(w, report.TopN) }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	for _, ex := range sortedExchanges(report.Statements) {
		p := a.Path(strings.ToLower(ex)+"-flow-statements", report.Address, "csv")
		stmts := report.Statements[ex]
		if err := writeFile(p, func(w io.Writer) error { return WriteStatementsCSV(w, stmts) }); err != nil {
			return paths, err
		}
		paths = append(paths, p)
	}

	p := a.Path("flow-report", report.Address, "md")
	err := writeFile(p, func(w io.Writer) error {
		_, err := NewMarkdownWriter(w).WriteFlowReport(report)
		return err
	})
	if err != nil {
		return paths, err
	}
	return append(paths, p), nil
}

// WriteSuspicious writes the scan as indented JSON, even when nothing was
// flagged.
func (a *Artifacts) WriteSuspicious(report *model.SuspiciousReport) (string, error) {
	p := a.Path("suspicious", report.Address, "json")
	err := writeFile(p, func(w io.Writer) error {
		_, err := NewJSONWriter(w, WithPrettyPrint()).WriteSuspicious(report)
		return err
	})
	if err != nil {
		return "", err
	}
	return p, nil
}

func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close %s: %w", path, cerr))
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
