package store

import (
	"fmt"
	"sync"
)

// Compiler turns a template into an engine-specific plan.
type Compiler interface {
	Compile(t Template) (any, error)
}

// Prepared is a compiled template. Bind it to a key to get a statement.
type Prepared struct {
	template    Template
	plan        any
	consistency Consistency
}

// Template returns the template the statement was compiled from.
func (p *Prepared) Template() Template {
	return p.template
}

// Bind produces a statement for key with the cache's default consistency and
// the op's natural idempotency.
func (p *Prepared) Bind(key Key) Statement {
	return Statement{
		Template:    p.template,
		Key:         key,
		Consistency: p.consistency,
		Idempotent:  p.template.Op.Idempotent(),
		plan:        p.plan,
	}
}

// Cache compiles templates once and reuses the plans. It is safe for
// concurrent use and is normally shared by every component of a process.
type Cache struct {
	compiler    Compiler
	consistency Consistency

	mu       sync.RWMutex
	prepared map[string]*Prepared
}

// NewCache creates a statement cache. Statements bound from it default to
// the given consistency level.
func NewCache(compiler Compiler, consistency Consistency) *Cache {
	if consistency == 0 {
		consistency = ConsistencyLocalQuorum
	}
	return &Cache{
		compiler:    compiler,
		consistency: consistency,
		prepared:    make(map[string]*Prepared),
	}
}

// Prepare returns the compiled form of t, compiling it on first use.
// Reusing a name for a different template shape is an error.
func (c *Cache) Prepare(t Template) (*Prepared, error) {
	c.mu.RLock()
	p, ok := c.prepared[t.Name]
	c.mu.RUnlock()
	if ok {
		return checkSame(p, t)
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.prepared[t.Name]; ok {
		return checkSame(p, t)
	}

	plan, err := c.compiler.Compile(t)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template %s: %w", t.Name, err)
	}
	p = &Prepared{template: t, plan: plan, consistency: c.consistency}
	c.prepared[t.Name] = p
	return p, nil
}

// Len returns the number of compiled templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prepared)
}

// Consistency returns the default consistency level.
func (c *Cache) Consistency() Consistency {
	return c.consistency
}

func checkSame(p *Prepared, t Template) (*Prepared, error) {
	if p.template != t {
		return nil, fmt.Errorf("template %s already prepared with a different shape", t.Name)
	}
	return p, nil
}
