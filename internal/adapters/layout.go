package adapters

import (
	"fmt"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/envelope"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/lz"
	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/pathutil"
)

var layoutDDL = map[string]string{
	"lz_layout_files": `
		CREATE TABLE IF NOT EXISTS lz_layout_files (
			run_pk BIGINT NOT NULL,
			file_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			directory_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			extension TEXT,
			language TEXT,
			category TEXT,
			size_bytes BIGINT,
			line_count INTEGER,
			is_binary BOOLEAN,
			PRIMARY KEY (run_pk, file_id)
		)`,
	"lz_layout_directories": `
		CREATE TABLE IF NOT EXISTS lz_layout_directories (
			run_pk BIGINT NOT NULL,
			directory_id TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			parent_id TEXT,
			depth INTEGER NOT NULL,
			file_count INTEGER,
			total_size_bytes BIGINT,
			PRIMARY KEY (run_pk, directory_id)
		)`,
}

var layoutSchema = map[string]map[string]string{
	"lz_layout_files": {
		"run_pk":        "BIGINT",
		"file_id":       "TEXT",
		"relative_path": "TEXT",
		"directory_id":  "TEXT",
	},
	"lz_layout_directories": {
		"run_pk":        "BIGINT",
		"directory_id":  "TEXT",
		"relative_path": "TEXT",
		"depth":         "INTEGER",
	},
}

// layoutFileEntry is one entry in the layout-scanner files map.
type layoutFileEntry struct {
	ID                string `json:"id"`
	Path              string `json:"path"`
	Name              string `json:"name"`
	Extension         string `json:"extension"`
	Language          string `json:"language"`
	Classification    string `json:"classification"`
	SizeBytes         int64  `json:"size_bytes"`
	LineCount         int    `json:"line_count"`
	IsBinary          bool   `json:"is_binary"`
	ParentDirectoryID string `json:"parent_directory_id"`
}

type layoutDirEntry struct {
	ID                 string `json:"id"`
	Path               string `json:"path"`
	ParentDirectoryID  string `json:"parent_directory_id"`
	Depth              int    `json:"depth"`
	RecursiveFileCount int    `json:"recursive_file_count"`
	RecursiveSizeBytes int64  `json:"recursive_size_bytes"`
}

type layoutData struct {
	Files       map[string]layoutFileEntry `json:"files"`
	Directories map[string]layoutDirEntry  `json:"directories"`
}

// Layout ingests layout-scanner output. Unlike the other adapters it writes
// the layout tables the rest of the collection joins against, so it never
// resolves file ids itself.
type Layout struct {
	Base
}

func (a *Layout) Tool() string { return "layout" }

func (a *Layout) Ingest(env *envelope.Envelope, collection lz.CollectionRun) (int64, error) {
	var data layoutData
	if err := env.DecodeData(&data); err != nil {
		return 0, err
	}
	if err := a.validateQuality(data); err != nil {
		return 0, err
	}
	if err := a.prepare(a.Tool(), layoutDDL, layoutSchema); err != nil {
		return 0, err
	}
	runPK, err := a.createToolRun(env.Metadata, collection.CollectionRunID)
	if err != nil {
		return 0, err
	}

	var files []lz.LayoutFile
	for key, entry := range data.Files {
		raw := entry.Path
		if raw == "" {
			raw = key
		}
		relativePath := a.normalize(raw)
		if relativePath == "" || relativePath == "." {
			continue
		}
		files = append(files, lz.LayoutFile{
			RunPK:        runPK,
			FileID:       entry.ID,
			RelativePath: relativePath,
			DirectoryID:  entry.ParentDirectoryID,
			Filename:     entry.Name,
			Extension:    entry.Extension,
			Language:     entry.Language,
			Category:     entry.Classification,
			SizeBytes:    entry.SizeBytes,
			LineCount:    entry.LineCount,
			IsBinary:     entry.IsBinary,
		})
	}
	if err := a.DB.InsertLayoutFiles(files); err != nil {
		return 0, err
	}

	var dirs []lz.LayoutDirectory
	for key, entry := range data.Directories {
		raw := entry.Path
		if raw == "" {
			raw = key
		}
		dirs = append(dirs, lz.LayoutDirectory{
			RunPK:          runPK,
			DirectoryID:    entry.ID,
			RelativePath:   pathutil.NormalizeDir(raw, a.RepoRoot),
			ParentID:       entry.ParentDirectoryID,
			Depth:          entry.Depth,
			FileCount:      entry.RecursiveFileCount,
			TotalSizeBytes: entry.RecursiveSizeBytes,
		})
	}
	if err := a.DB.InsertLayoutDirectories(dirs); err != nil {
		return 0, err
	}

	a.logger().Info("persisted layout",
		"files", len(files), "directories", len(dirs), "run_pk", runPK)
	return runPK, nil
}

func (a *Layout) validateQuality(data layoutData) error {
	var errs []string
	idx := 0
	for key, entry := range data.Files {
		raw := entry.Path
		if raw == "" {
			raw = key
		}
		errs = append(errs, a.checkPath(raw, fmt.Sprintf("layout file[%d]", idx))...)
		errs = append(errs, checkRequired(entry.ID, fmt.Sprintf("file[%d].id", idx))...)
		errs = append(errs, checkNonNegative(entry.SizeBytes, fmt.Sprintf("file[%d].size_bytes", idx))...)
		errs = append(errs, checkNonNegative(entry.LineCount, fmt.Sprintf("file[%d].line_count", idx))...)
		idx++
	}
	idx = 0
	for key, entry := range data.Directories {
		raw := entry.Path
		if raw == "" {
			raw = key
		}
		// Root directory normalizes to "." and is the one non-relative path
		// a layout payload legitimately contains.
		normalized := pathutil.NormalizeDir(raw, a.RepoRoot)
		if normalized != "." && !pathutil.IsRepoRelative(normalized) {
			errs = append(errs, fmt.Sprintf("layout dir[%d] path invalid: %s -> %s", idx, raw, normalized))
		}
		errs = append(errs, checkRequired(entry.ID, fmt.Sprintf("dir[%d].id", idx))...)
		errs = append(errs, checkNonNegative(entry.Depth, fmt.Sprintf("dir[%d].depth", idx))...)
		errs = append(errs, checkNonNegative(entry.RecursiveFileCount, fmt.Sprintf("dir[%d].recursive_file_count", idx))...)
		errs = append(errs, checkNonNegative(entry.RecursiveSizeBytes, fmt.Sprintf("dir[%d].recursive_size_bytes", idx))...)
		idx++
	}
	return a.failQuality(a.Tool(), errs)
}
