package main

import "sync"

// rootsGuard hands out the current scan roots under a lock so the
// config watcher can swap them while scans and handlers read them.
type rootsGuard struct {
	mu    sync.RWMutex
	roots []string
}

func newRootsGuard(roots []string) *rootsGuard {
	return &rootsGuard{roots: roots}
}

func (g *rootsGuard) get() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, len(g.roots))
	copy(out, g.roots)
	return out
}

func (g *rootsGuard) set(roots []string) {
	g.mu.Lock()
	g.roots = roots
	g.mu.Unlock()
}
