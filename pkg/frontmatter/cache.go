package frontmatter

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// ParsedDoc is a cached parse result. Cached docs are shared between
// callers and must be treated as read-only.
type ParsedDoc struct {
	Meta map[string]any
	Body string
}

// CachedParser memoizes Parse results keyed by content hash. Watchers
// rescan unchanged files every tick; because parsing is a pure
// function of the bytes, a hash hit skips the YAML decode entirely.
type CachedParser struct {
	cache *lru.Cache[string, *ParsedDoc]
}

// NewCachedParser creates a parser with an LRU of the given size
func NewCachedParser(size int) (*CachedParser, error) {
	c, err := lru.New[string, *ParsedDoc](size)
	if err != nil {
		return nil, err
	}
	return &CachedParser{cache: c}, nil
}

// Parse returns the parsed document for content, reusing the cached
// result when contentHash has been seen before. Only successful
// parses are cached.
func (p *CachedParser) Parse(contentHash string, content []byte) (*ParsedDoc, error) {
	if doc, ok := p.cache.Get(contentHash); ok {
		return doc, nil
	}
	meta, body, err := Parse(content)
	if err != nil {
		return nil, err
	}
	doc := &ParsedDoc{Meta: meta, Body: body}
	p.cache.Add(contentHash, doc)
	return doc, nil
}

// Len reports the number of cached documents
func (p *CachedParser) Len() int {
	return p.cache.Len()
}
