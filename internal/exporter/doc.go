// Package exporter writes dashboard snapshots to files.
//
// CSVWriter is the low level CSV writer with optional UTF-8 BOM for Excel.
// WriteRowsCSV dumps filtered rows with their derived columns through a gota
// DataFrame, WriteSnapshotXLSX writes one sheet per view with excelize and the
// PNG exports come from the charts package.
//
// ExportAll writes a bundle of formats concurrently and Scheduler runs it on a
// cron spec:
//
//	sched, err := exporter.NewScheduler("@daily", job, logger)
//	sched.Start()
//	defer sched.Stop()
package exporter
