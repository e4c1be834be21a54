// Package singleflight coalesces concurrent calls that share a key.
package singleflight

import "sync"

// Group holds the calls currently in flight.
type Group struct {
	mu sync.Mutex
	m  map[string]*call
}

type call struct {
	wg   sync.WaitGroup
	val  interface{}
	err  error
	dups int
}

// New creates an empty Group.
func New() *Group {
	return &Group{m: make(map[string]*call)}
}

// Do runs fn once per key among overlapping callers. Callers arriving while fn
// runs wait and receive its result; shared reports whether more than one
// caller received it. The key is released as soon as fn returns.
func (g *Group) Do(key string, fn func() (interface{}, error)) (v interface{}, err error, shared bool) {
	g.mu.Lock()
	if c, ok := g.m[key]; ok {
		c.dups++
		g.mu.Unlock()
		c.wg.Wait()
		return c.val, c.err, true
	}

	c := &call{}
	c.wg.Add(1)
	g.m[key] = c
	g.mu.Unlock()

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.err = &PanicError{Value: r}
			}
		}()
		c.val, c.err = fn()
	}()

	g.mu.Lock()
	if g.m[key] == c {
		delete(g.m, key)
	}
	dups := c.dups
	g.mu.Unlock()
	c.wg.Done()

	return c.val, c.err, dups > 0
}

// Forget drops key so the next Do starts a fresh call.
func (g *Group) Forget(key string) {
	g.mu.Lock()
	delete(g.m, key)
	g.mu.Unlock()
}

// InFlight reports how many keys have a call running.
func (g *Group) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.m)
}

// PanicError carries a panic raised by fn to every waiter.
type PanicError struct {
	Value interface{}
}

func (p *PanicError) Error() string {
	return "singleflight: call panicked"
}
