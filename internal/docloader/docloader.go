// Package docloader discovers and reads the documents an indexing job
// should chunk, sitting between internal/scanner's file discovery and
// internal/chunk's tokenization: it owns pattern filtering, recursion
// depth, and turning a discovered path into file content a Chunker can
// consume. Grounded on the teacher's internal/index/runner.go, which
// used to inline this step between its own scan and chunk stages.
package docloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/agent-brain/brain/internal/scanner"
)

// Document is a file discovered under a folder, read and classified,
// ready for chunking.
type Document struct {
	Path        string // relative to the scanned root
	AbsPath     string
	Content     []byte
	ContentType scanner.ContentType
	Language    string
}

// Options controls which files Load returns, mirroring the index-request
// body fields of spec.md section 6 (folder_path/recursive/include_code/
// include_patterns/exclude_patterns).
type Options struct {
	RootDir         string
	Recursive       bool
	IncludeCode     bool
	IncludePatterns []string
	ExcludePatterns []string
}

// Load scans RootDir and returns every document that should be chunked:
// markdown files always, code files only when IncludeCode is set (plain
// text and other content types are skipped),
// and top-level-only files when Recursive is false. Files that can't be
// read are skipped rather than failing the whole load, matching the
// teacher's graceful-degradation precedent for unreadable files.
func Load(ctx context.Context, opts Options) ([]Document, error) {
	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve folder path %q: %w", opts.RootDir, err)
	}

	s, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	resultCh, err := s.Scan(ctx, &scanner.ScanOptions{
		RootDir:          root,
		IncludePatterns:  opts.IncludePatterns,
		ExcludePatterns:  opts.ExcludePatterns,
		RespectGitignore: true,
		Workers:          runtime.NumCPU(),
	})
	if err != nil {
		return nil, fmt.Errorf("scan folder: %w", err)
	}

	var docs []Document
	for result := range resultCh {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		if result.Error != nil || result.File == nil {
			continue
		}
		f := result.File
		if !opts.Recursive && filepath.Dir(f.Path) != "." {
			continue
		}

		switch f.ContentType {
		case scanner.ContentTypeCode:
			if !opts.IncludeCode {
				continue
			}
		case scanner.ContentTypeMarkdown:
			// always included
		default:
			continue
		}

		content, readErr := os.ReadFile(f.AbsPath)
		if readErr != nil {
			continue
		}

		docs = append(docs, Document{
			Path:        f.Path,
			AbsPath:     f.AbsPath,
			Content:     content,
			ContentType: f.ContentType,
			Language:    f.Language,
		})
	}
	return docs, nil
}
