// Package report renders flow reports and suspicious-address scans.
//
// Writers (SimpleWriter, JSONWriter, MarkdownWriter) render a whole
// report to an io.Writer. The CSV helpers and ArchiveWriter produce the
// tabular and JSON-lines artifacts, and Artifacts places all of them in
// an output directory under names that embed the data source, the chain,
// a shortened address and the run timestamp.
package report
