package gemini

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AnalysisStore manages file-based caching of analysis results.
type AnalysisStore struct {
	cacheDir string
}

// NewAnalysisStore creates a store that caches analyses in the given directory.
func NewAnalysisStore(cacheDir string) *AnalysisStore {
	return &AnalysisStore{cacheDir: cacheDir}
}

// Get loads a cached analysis by key. Returns nil if not found.
func (s *AnalysisStore) Get(key string) (*CachedAnalysis, error) {
	data, err := os.ReadFile(s.cachePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var cached CachedAnalysis
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return &cached, nil
}

// Put saves an analysis result to the cache.
func (s *AnalysisStore) Put(key, model string, result *Analysis) error {
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(CachedAnalysis{
		Key:        key,
		Model:      model,
		AnalyzedAt: time.Now(),
		Result:     result,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}

	path := s.cachePath(key)

	// Write atomically: temp file + rename
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

func (s *AnalysisStore) cachePath(key string) string {
	return filepath.Join(s.cacheDir, key+".json")
}
