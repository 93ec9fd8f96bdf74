package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lunDreame/st-bridge/internal/domain/model"
)

// JSONOptionsRepository persists the exposure selection as a JSON file. A
// missing file reads as empty options rather than an error.
type JSONOptionsRepository struct {
	filepath string
	mu       sync.RWMutex
}

func NewJSONOptionsRepository(filepath string) *JSONOptionsRepository {
	return &JSONOptionsRepository{filepath: filepath}
}

func (r *JSONOptionsRepository) Get(ctx context.Context) (*model.Options, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.Options{Entities: []model.EntityOption{}}, nil
		}
		return nil, err
	}

	var opts model.Options
	if err := json.Unmarshal(data, &opts); err != nil {
		return nil, fmt.Errorf("persistence: parse %s: %w", r.filepath, err)
	}
	if opts.Entities == nil {
		opts.Entities = []model.EntityOption{}
	}
	return &opts, nil
}

func (r *JSONOptionsRepository) Save(ctx context.Context, options *model.Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(options, "", "  ")
	if err != nil {
		return err
	}

	// Write-then-rename so a crash never leaves a truncated file.
	tmp := r.filepath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.filepath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.filepath)
}
