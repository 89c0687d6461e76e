package app

import (
	"statguide/domain/core"
	"statguide/domain/profiling"
)

// ExportMetadata describes the exported table
type ExportMetadata struct {
	AnalysisID core.AnalysisID `json:"analysisId,omitempty"`
	DataHash   core.DataHash   `json:"dataHash"`
	RowCount   int             `json:"rowCount"`
	ColCount   int             `json:"colCount"`
}

// ExportDocument is the payload handed to report exporters. Writing it to a
// file is the exporter's job.
type ExportDocument struct {
	Date     core.Timestamp     `json:"date"`
	Data     profiling.RawTable `json:"data"`
	Results  *AnalysisReport    `json:"results"`
	Metadata ExportMetadata     `json:"metadata"`
}

// NewExportDocument snapshots a table and its analysis. A nil report exports
// the data alone.
func NewExportDocument(table profiling.RawTable, report *AnalysisReport) ExportDocument {
	doc := ExportDocument{
		Date:    core.Now(),
		Data:    table,
		Results: report,
		Metadata: ExportMetadata{
			RowCount: table.RowCount(),
			ColCount: len(table.Columns),
			DataHash: Fingerprint(table),
		},
	}
	if report != nil {
		doc.Metadata.AnalysisID = report.ID
	}
	return doc
}
