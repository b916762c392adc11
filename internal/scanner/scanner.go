// Package scanner discovers OpenAPI documents under a directory.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bartekus/agentready/internal/openapi"
)

// Scanner lists candidate files below a root directory.
type Scanner struct {
	root string

	mu    sync.Mutex
	cache []string
}

// New creates a new Scanner for the given root.
func New(root string) *Scanner {
	return &Scanner{root: root}
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string {
	return s.root
}

// Files returns every file below the root as slash-separated relative paths,
// caching the result for the instance lifetime. Inside a git work tree it
// asks git, which honours .gitignore; elsewhere it walks the directory.
func (s *Scanner) Files(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cache != nil {
		return s.cache, nil
	}

	files, err := gitFiles(ctx, s.root)
	if err != nil {
		slog.Debug("scanner: git unavailable, walking directory", "root", s.root, "err", err)
		files, err = walkFiles(ctx, s.root)
		if err != nil {
			return nil, err
		}
	}
	s.cache = files
	return s.cache, nil
}

// Filtered returns files matching the filter options.
func (s *Scanner) Filtered(ctx context.Context, opts FilterOptions) ([]string, error) {
	all, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	return FilterFiles(all, opts), nil
}

// Candidates returns YAML and JSON files outside the default excluded
// directories.
func (s *Scanner) Candidates(ctx context.Context) ([]string, error) {
	return s.Filtered(ctx, FilterOptions{
		ExcludeDirs:       DefaultExcludeDirs(),
		IncludeExtensions: SpecExtensions(),
	})
}

// Specs probes every candidate and returns the OpenAPI documents found, with
// paths joined to the root. Files that are not OpenAPI documents are skipped.
func (s *Scanner) Specs(ctx context.Context) ([]*openapi.Document, error) {
	candidates, err := s.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	var docs []*openapi.Document
	for _, rel := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := openapi.Probe(filepath.Join(s.root, filepath.FromSlash(rel)))
		if errors.Is(err, openapi.ErrNotOpenAPI) || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func gitFiles(ctx context.Context, root string) ([]string, error) {
	// -z to avoid escaping issues; untracked files count unless ignored.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "-z", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files failed: %w", err)
	}

	if len(out) == 0 {
		return []string{}, nil
	}

	files := strings.Split(strings.TrimSuffix(string(out), "\x00"), "\x00")
	return dedupe(files), nil
}

func walkFiles(ctx context.Context, root string) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

// dedupe drops repeats; ls-files lists a conflicted path once per stage.
func dedupe(files []string) []string {
	seen := make(map[string]struct{}, len(files))
	out := files[:0]
	for _, f := range files {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
