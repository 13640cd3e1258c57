// Package scanner walks a directory tree and finds statement files for
// the CLI batch import.
package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner finds statement files under a root directory.
type Scanner struct {
	rootDir string
}

// New creates a scanner for the given root directory. The root may also
// be a single statement file.
func New(rootDir string) *Scanner {
	return &Scanner{rootDir: rootDir}
}

// Scan walks the directory tree and returns all statement files in a
// stable order.
func (s *Scanner) Scan() ([]string, error) {
	rootDir := s.expandHome(s.rootDir)

	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	if !info.IsDir() {
		if !isStatementFile(rootDir) {
			return nil, fmt.Errorf("not a statement file: %s", rootDir)
		}
		return []string{rootDir}, nil
	}

	var results []string
	err = filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isStatementFile(path) {
			return nil
		}
		results = append(results, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	sort.Strings(results)
	return results, nil
}

// isStatementFile checks if file is a known statement format.
func isStatementFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".qfx" || ext == ".ofx" || ext == ".csv"
}

// expandHome expands ~ to the home directory.
func (s *Scanner) expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
