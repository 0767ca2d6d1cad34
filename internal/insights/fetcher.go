// Package insights executes named SQL queries against the landing zone and
// computes collection-level summaries. Query files live in a directory as
// <name>.sql and may carry {{ var }} placeholders, with
// {{ var | default(x) }} supplying a fallback.
package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/alexander-stage-hoco/project-caldera-sub007/internal/storage"
)

var (
	defaultPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\|\s*default\(([^)]+)\)\s*\}\}`)
	simplePattern  = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

// Fetcher loads and runs named queries.
type Fetcher struct {
	DB         *storage.DB
	QueriesDir string
}

func NewFetcher(db *storage.DB, queriesDir string) *Fetcher {
	return &Fetcher{DB: db, QueriesDir: queriesDir}
}

// Fetch renders and executes a named query. run_pk is always available to
// the template; params supply the rest.
func (f *Fetcher) Fetch(queryName string, runPK int64, params map[string]any) ([]map[string]any, error) {
	template, err := f.loadQuery(queryName)
	if err != nil {
		return nil, err
	}
	merged := map[string]any{"run_pk": runPK}
	for k, v := range params {
		merged[k] = v
	}
	sql, err := renderTemplate(template, merged)
	if err != nil {
		return nil, fmt.Errorf("render query %q: %w", queryName, err)
	}
	return f.DB.SelectMaps(sql)
}

// FetchRaw renders and executes an inline query.
func (f *Fetcher) FetchRaw(sql string, params map[string]any) ([]map[string]any, error) {
	rendered, err := renderTemplate(sql, params)
	if err != nil {
		return nil, fmt.Errorf("render query: %w", err)
	}
	return f.DB.SelectMaps(rendered)
}

// ListQueries returns the available query names, sorted.
func (f *Fetcher) ListQueries() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(f.QueriesDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("glob queries: %w", err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), ".sql"))
	}
	return names, nil
}

func (f *Fetcher) loadQuery(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid query name %q", name)
	}
	path := filepath.Join(f.QueriesDir, name+".sql")
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("load query %q: %w", name, err)
	}
	return string(b), nil
}

// renderTemplate substitutes {{ var }} placeholders. A missing variable
// with no default is an error.
func renderTemplate(template string, params map[string]any) (string, error) {
	out := defaultPattern.ReplaceAllStringFunc(template, func(m string) string {
		groups := defaultPattern.FindStringSubmatch(m)
		name, fallback := groups[1], strings.TrimSpace(groups[2])
		if v, ok := params[name]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return strings.Trim(fallback, `'"`)
	})

	var missing []string
	out = simplePattern.ReplaceAllStringFunc(out, func(m string) string {
		name := simplePattern.FindStringSubmatch(m)[1]
		v, ok := params[name]
		if !ok || v == nil {
			missing = append(missing, name)
			return m
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required parameters: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
