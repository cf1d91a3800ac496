package session

import (
	"sync"
	"time"
)

// Info describes the running broadcast session.
type Info struct {
	Namespace string
	StartedAt time.Time
}

// Context holds the current session state shared by the server, monitor and
// logging.
type Context struct {
	mu   sync.RWMutex
	info Info
}

// NewContext creates a Context for the namespace, started now.
func NewContext(namespace string) *Context {
	return &Context{
		info: Info{
			Namespace: namespace,
			StartedAt: time.Now(),
		},
	}
}

// Get returns the current session info.
func (c *Context) Get() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.info
}

// Set replaces the session info.
func (c *Context) Set(info Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
}

// Elapsed returns how long the session has been running.
func (c *Context) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.info.StartedAt)
}
