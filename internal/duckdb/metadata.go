package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. Standard input
// ("-") has no size or modification time.
func StatFile(path string) (FileFingerprint, error) {
	if path == "-" {
		return FileFingerprint{Path: path}, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Dataset is one input of an exported run.
type Dataset struct {
	Operation string
	Role      string // a or b
	FileFingerprint
}

// WriteDataset records an input of an operation.
func (s *Store) WriteDataset(d Dataset) error {
	mtime := sql.NullTime{Time: d.ModTime, Valid: !d.ModTime.IsZero()}
	_, err := s.db.Exec(`INSERT INTO datasets (operation, role, name, size, mtime) VALUES (?, ?, ?, ?, ?)`,
		d.Operation, d.Role, d.Path, d.Size, mtime)
	if err != nil {
		return fmt.Errorf("write dataset %s: %w", d.Path, err)
	}
	return nil
}

// Datasets returns the recorded inputs of an operation in role order.
func (s *Store) Datasets(operation string) ([]Dataset, error) {
	rows, err := s.db.Query(`SELECT operation, role, name, size, mtime
		FROM datasets WHERE operation=? ORDER BY role`, operation)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		var mtime sql.NullTime
		if err := rows.Scan(&d.Operation, &d.Role, &d.Path, &d.Size, &mtime); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		d.ModTime = mtime.Time
		out = append(out, d)
	}
	return out, rows.Err()
}
