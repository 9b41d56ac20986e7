package vcf

// RecordSource is the pull interface the variant store reads from.
type RecordSource interface {
	// Peek returns the next record without consuming it.
	// Returns nil, nil when there are no more records.
	Peek() (*Record, error)

	// Next consumes and returns the next record.
	// Returns nil, nil when there are no more records.
	Next() (*Record, error)
}

// RecordWriter receives fully built output records. Implementations own
// serialization and I/O.
type RecordWriter interface {
	WriteRecord(r *Record) error
}
