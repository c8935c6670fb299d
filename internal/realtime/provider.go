package realtime

import (
	"fmt"
	"sync"
	"sync/atomic"
)

type Factory func() (Client, error)

// Provider builds one shared Client on first use. A construction failure is
// cached and returned to every caller.
type Provider struct {
	get   func() (Client, error)
	built atomic.Bool
}

func NewProvider(factory Factory) *Provider {
	if factory == nil {
		panic("realtime.NewProvider: factory must not be nil")
	}
	p := &Provider{}
	p.get = sync.OnceValues(func() (client Client, err error) {
		defer p.built.Store(true)
		defer func() {
			if r := recover(); r != nil {
				client, err = nil, fmt.Errorf("realtime client construction panicked: %v", r)
			}
		}()
		client, err = factory()
		if err == nil && client == nil {
			err = fmt.Errorf("realtime client factory returned nil")
		}
		return client, err
	})
	return p
}

func (p *Provider) Client() (Client, error) {
	return p.get()
}

// Close closes the client if one was built. It never triggers construction.
func (p *Provider) Close() error {
	if !p.built.Load() {
		return nil
	}
	client, err := p.get()
	if err != nil {
		return nil
	}
	return client.Close()
}
