package llm

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// CachedProvider wraps a Provider with a ResponseCache. Only tool-free
// completions go through the cache; Stream and HealthCheck pass through.
type CachedProvider struct {
	inner  Provider
	cache  *ResponseCache
	logger *zap.Logger
}

// NewCachedProvider creates a caching wrapper around the given provider.
func NewCachedProvider(inner Provider, cache *ResponseCache, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{
		inner:  inner,
		cache:  cache,
		logger: logger.With(zap.String("component", "cached_provider"), zap.String("provider", inner.Name())),
	}
}

var _ Provider = (*CachedProvider)(nil)

func (p *CachedProvider) Name() string                        { return p.inner.Name() }
func (p *CachedProvider) SupportsNativeFunctionCalling() bool { return p.inner.SupportsNativeFunctionCalling() }

func (p *CachedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *CachedProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	return p.inner.Stream(ctx, req)
}

func (p *CachedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if p.cache == nil || !p.cache.IsCacheable(req) {
		return p.inner.Completion(ctx, req)
	}

	key := p.cache.GenerateKey(req)
	if entry, err := p.cache.Get(ctx, key); err == nil {
		p.logger.Debug("cache hit", zap.String("key", key), zap.Int("hit_count", entry.HitCount))
		return entry.Response, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		p.logger.Warn("cache lookup failed", zap.Error(err))
	}

	resp, err := p.inner.Completion(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.cache.Set(ctx, key, &CacheEntry{Response: resp}); err != nil {
		p.logger.Warn("cache store failed", zap.Error(err))
	}
	return resp, nil
}
