package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/shuttlewatch/shuttlewatch/internal/shuttle"
)

// DefaultFilePath is where results land when no path is configured.
const DefaultFilePath = "output/search_results.jsonl"

// FileRepositoryConfig holds configuration for the file repository.
type FileRepositoryConfig struct {
	// Path to the JSONL output file (default: DefaultFilePath).
	Path string

	// Logger for save events.
	Logger zerolog.Logger
}

// FileRepository appends each result as one JSON object per line. The
// parent directory is created on first save.
type FileRepository struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewFileRepository creates a file-backed result repository.
func NewFileRepository(cfg FileRepositoryConfig) *FileRepository {
	if cfg.Path == "" {
		cfg.Path = DefaultFilePath
	}
	return &FileRepository{path: cfg.Path, logger: cfg.Logger}
}

// Save appends the result to the output file.
func (r *FileRepository) Save(_ context.Context, result shuttle.SearchResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	raw = append(raw, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(raw); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	r.logger.Debug().Str("path", r.path).Str("run_id", result.RunID.String()).Msg("result saved")
	return nil
}
