package gemini

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
)

// CachedAnalyzer serves repeated analyses from memory, then disk, before
// asking the wrapped Analyzer. Cache failures are logged, never returned.
type CachedAnalyzer struct {
	next  Analyzer
	model string
	mem   *lru.Cache
	disk  *AnalysisStore
}

// NewCachedAnalyzer wraps next. disk may be nil to cache in memory only.
// model is folded into the key so switching models misses the cache.
func NewCachedAnalyzer(next Analyzer, model string, size int, disk *AnalysisStore) (*CachedAnalyzer, error) {
	if size <= 0 {
		size = 64
	}
	mem, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	return &CachedAnalyzer{next: next, model: model, mem: mem, disk: disk}, nil
}

// Analyze implements Analyzer.
func (c *CachedAnalyzer) Analyze(ctx context.Context, input AnalyzeInput) (*Analysis, error) {
	key, err := CacheKey(c.model, input)
	if err != nil {
		log.Warn().Err(err).Msg("analysis cache key")
		return c.next.Analyze(ctx, input)
	}

	if v, ok := c.mem.Get(key); ok {
		return copyAnalysis(v.(*Analysis)), nil
	}
	if c.disk != nil {
		cached, err := c.disk.Get(key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("analysis cache read")
		} else if cached != nil && cached.Result != nil {
			c.mem.Add(key, copyAnalysis(cached.Result))
			return copyAnalysis(cached.Result), nil
		}
	}

	result, err := c.next.Analyze(ctx, input)
	if err != nil {
		return nil, err
	}
	c.mem.Add(key, copyAnalysis(result))
	if c.disk != nil {
		if err := c.disk.Put(key, c.model, result); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("analysis cache write")
		}
	}
	return result, nil
}

// Len reports the number of analyses held in memory.
func (c *CachedAnalyzer) Len() int {
	return c.mem.Len()
}

// CacheKey hashes the model and every prompt input.
func CacheKey(model string, input AnalyzeInput) (string, error) {
	diff, err := json.Marshal(input.Diff)
	if err != nil {
		return "", fmt.Errorf("failed to marshal diff: %w", err)
	}
	h := sha256.New()
	for _, part := range [][]byte{[]byte(model), diff, []byte(input.ErrorContext), []byte(input.CodeSnippet)} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyAnalysis(a *Analysis) *Analysis {
	out := *a
	out.Suggestions = append([]string{}, a.Suggestions...)
	return &out
}
