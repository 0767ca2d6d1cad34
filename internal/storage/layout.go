package storage

import (
	"database/sql"
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
)

var layoutFileCols = []string{
	"run_pk", "file_id", "relative_path", "directory_id", "filename",
	"extension", "language", "category", "size_bytes", "line_count", "is_binary",
}

var layoutDirCols = []string{
	"run_pk", "directory_id", "relative_path", "parent_id", "depth",
	"file_count", "total_size_bytes",
}

func (db *DB) InsertLayoutFiles(rows []lz.LayoutFile) error {
	return bulkInsert(db, "lz_layout_files", layoutFileCols, rows, func(f lz.LayoutFile) []any {
		return []any{
			f.RunPK, f.FileID, f.RelativePath, f.DirectoryID, f.Filename,
			f.Extension, f.Language, f.Category, f.SizeBytes, f.LineCount, f.IsBinary,
		}
	})
}

func (db *DB) InsertLayoutDirectories(rows []lz.LayoutDirectory) error {
	return bulkInsert(db, "lz_layout_directories", layoutDirCols, rows, func(d lz.LayoutDirectory) []any {
		return []any{
			d.RunPK, d.DirectoryID, d.RelativePath, d.ParentID, d.Depth,
			d.FileCount, d.TotalSizeBytes,
		}
	})
}

// GetFileRecord resolves a layout file by repo-relative path within one
// layout run. Every file-level adapter joins through this.
func (db *DB) GetFileRecord(layoutRunPK int64, relativePath string) (fileID, directoryID string, err error) {
	err = db.conn.QueryRow(
		`SELECT file_id, directory_id FROM lz_layout_files WHERE run_pk = ? AND relative_path = ?`,
		layoutRunPK, relativePath,
	).Scan(&fileID, &directoryID)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("layout file not found: %s: %w", relativePath, ErrNotFound)
	}
	return fileID, directoryID, err
}

// CountLayoutFiles reports how many files one layout run recorded.
func (db *DB) CountLayoutFiles(layoutRunPK int64) (int, error) {
	var n int
	err := db.conn.QueryRow(
		`SELECT COUNT(1) FROM lz_layout_files WHERE run_pk = ?`, layoutRunPK).Scan(&n)
	return n, err
}
