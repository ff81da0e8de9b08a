// Package report renders scan results for people and pipelines.
//
// Console is a streaming scan.Sink for terminals. MarkdownWriter, JSONWriter
// and Table render a finished scan.Summary. Multi fans one run out to
// several sinks.
package report
