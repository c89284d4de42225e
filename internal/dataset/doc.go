// Package dataset loads the hourly bike rental dataset into an immutable
// in-memory Table.
//
// The source file is produced upstream by a merge of the day and hour
// level datasets, so the column names carry pandas merge suffixes
// (cnt_y, casual_y, ...). CSV is the primary input; XLSX workbooks with
// the same header are accepted as well.
//
// A Table is never mutated after construction. Reloads build a new Table
// and swap it into a Store, which lets request handlers keep using the
// Table they started with.
package dataset
