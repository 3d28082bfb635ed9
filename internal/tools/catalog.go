package tools

import (
	"sort"
	"sync"
)

// Tool describes a capability the backend exposes to its agents.
type Tool struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// Catalog indexes the tools returned by the backend. It is replaced
// wholesale on every refresh.
type Catalog struct {
	tools []Tool
	byID  map[string]Tool
	mu    sync.RWMutex
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		byID: make(map[string]Tool),
	}
}

// Replace swaps the catalog contents, keeping the server's order.
func (c *Catalog) Replace(tools []Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = append([]Tool(nil), tools...)
	c.byID = make(map[string]Tool, len(tools))
	for _, t := range tools {
		c.byID[t.ID] = t
	}
}

// Get retrieves a tool by id
func (c *Catalog) Get(id string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byID[id]
	return t, ok
}

// All returns the tools in server order
func (c *Catalog) All() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Tool(nil), c.tools...)
}

// WithCapability returns the tools that declare capability.
func (c *Catalog) WithCapability(capability string) []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Tool
	for _, t := range c.tools {
		for _, cp := range t.Capabilities {
			if cp == capability {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// Capabilities returns every distinct capability, sorted.
func (c *Catalog) Capabilities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, t := range c.tools {
		for _, cp := range t.Capabilities {
			seen[cp] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for cp := range seen {
		out = append(out, cp)
	}
	sort.Strings(out)
	return out
}

// Reset empties the catalog
func (c *Catalog) Reset() {
	c.Replace(nil)
}

// Count returns the number of tools
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}
