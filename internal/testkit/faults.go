package testkit

import (
	"errors"
	"sync"
)

var ErrInjectedFault = errors.New("injected fault")

// Injector lets a fixed number of calls through and fails every call after.
type Injector struct {
	mu    sync.Mutex
	limit int
	calls int
	err   error
}

// NewInjector returns an injector that fails after 'limit' successful calls.
// If err is nil, ErrInjectedFault is used.
func NewInjector(limit int, err error) *Injector {
	if err == nil {
		err = ErrInjectedFault
	}
	return &Injector{limit: limit, err: err}
}

// Check records a call and returns the injected error once the limit is spent.
func (i *Injector) Check() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	if i.calls > i.limit {
		return i.err
	}
	return nil
}

// Calls reports how many calls were checked.
func (i *Injector) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

// Gate blocks callers until released. Entered is closed when the first
// caller arrives.
type Gate struct {
	Entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func NewGate() (*Gate, func()) {
	g := &Gate{Entered: make(chan struct{}), release: make(chan struct{})}
	return g, func() { close(g.release) }
}

func (g *Gate) Wait() {
	g.once.Do(func() { close(g.Entered) })
	<-g.release
}
