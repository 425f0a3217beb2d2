package document

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/scraper"
)

// Loader reads research documents from the local filesystem. The path may
// be a single file, a directory (walked recursively), or several of either.
// Files with unsupported extensions are ignored; files that fail to read
// are logged and skipped. An empty final set is ErrNoDocuments.
type Loader struct {
	paths  []string
	logger *observability.StructuredLogger
}

// supported extensions and how their content is interpreted
var loaders = map[string]func(data []byte) string{
	".txt":  asPlainText,
	".md":   asPlainText,
	".csv":  asPlainText,
	".json": asPlainText,
	".html": asExtractedHTML,
	".htm":  asExtractedHTML,
}

func asPlainText(data []byte) string {
	return string(data)
}

func asExtractedHTML(data []byte) string {
	return scraper.ExtractText(string(data))
}

// NewLoader creates a loader over the given paths
func NewLoader(paths ...string) *Loader {
	return &Loader{
		paths:  paths,
		logger: observability.NewStructuredLogger("document_loader"),
	}
}

// Load implements domain.DocumentLoader
func (l *Loader) Load(ctx context.Context) ([]domain.Document, error) {
	files, err := l.resolveFiles()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var documents []domain.Document

	g, ctx := errgroup.WithContext(ctx)
	for _, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			doc, err := l.loadFile(file)
			if err != nil {
				l.logger.Warn(ctx, "Skipping unreadable document",
					map[string]interface{}{
						"path":  file,
						"error": err.Error(),
					},
				)
				return nil
			}
			if doc == nil {
				return nil
			}

			mu.Lock()
			documents = append(documents, *doc)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("loading %v: %w", l.paths, domain.ErrNoDocuments)
	}
	return documents, nil
}

// resolveFiles expands the configured paths into a flat file list
func (l *Loader) resolveFiles() ([]string, error) {
	var files []string

	for _, path := range l.paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	return files, nil
}

// loadFile reads one file; nil document means the extension is unsupported
func (l *Loader) loadFile(path string) (*domain.Document, error) {
	load, ok := loaders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(load(data))
	if content == "" {
		return nil, nil
	}

	return &domain.Document{
		RawContent: content,
		Source:     path,
	}, nil
}
