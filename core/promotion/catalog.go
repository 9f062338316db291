package promotion

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

// Catalog is the class level reference data of a screen.
// It is fetched once and treated as static afterwards; a failed fetch is retried on the next Load.
type Catalog struct {
	backend Backend

	mu     sync.RWMutex
	levels []school.ClassLevel
	loaded bool
}

func NewCatalog(backend Backend) *Catalog {
	return &Catalog{backend: backend}
}

func (c *Catalog) Load(ctx context.Context) ([]school.ClassLevel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.copyLevels(), nil
	}
	levels, err := c.backend.ListClassLevels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing class levels")
	}
	c.levels = levels
	c.loaded = true
	return c.copyLevels(), nil
}

func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Levels returns the class levels in catalog order.
func (c *Catalog) Levels() []school.ClassLevel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLevels()
}

func (c *Catalog) FindByLevel(label string) (school.ClassLevel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if label = core.CleanString(label); label == "" {
		return school.ClassLevel{}, false
	}
	for _, cl := range c.levels {
		if core.SameLabel(cl.Level, label) {
			return cl, true
		}
	}
	return school.ClassLevel{}, false
}

// StreamRequired drives whether a stream selector is shown for the level at all.
func (c *Catalog) StreamRequired(label string) bool {
	cl, ok := c.FindByLevel(label)
	return ok && cl.HasStreams()
}

// normalize returns the catalog spellings of level and stream.
// A stream given for an unstreamed level is dropped.
func (c *Catalog) normalize(level string, stream *string) (string, *string) {
	level = core.CleanString(level)
	stream = school.Stream(school.StreamValue(stream))
	cl, ok := c.FindByLevel(level)
	if !ok {
		return level, stream
	}
	if !cl.HasStreams() {
		return cl.Level, nil
	}
	if stream != nil {
		if s, ok := cl.Stream(*stream); ok {
			stream = &s
		}
	}
	return cl.Level, stream
}

func (c *Catalog) copyLevels() []school.ClassLevel {
	levels := make([]school.ClassLevel, len(c.levels))
	copy(levels, c.levels)
	return levels
}
