package ingest

import "errors"

var (
	// ErrNoHeader is returned when a table has no header row.
	ErrNoHeader = errors.New("table has no header row")
	// ErrMissingColumn is returned when a required column is absent from the header.
	ErrMissingColumn = errors.New("required column missing")
	// ErrUnsupportedFormat is returned for input files that are neither spreadsheets nor delimited text.
	ErrUnsupportedFormat = errors.New("unsupported input format")
)
