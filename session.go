package petconnect

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tranvictor/petconnect/internal/poll"
)

// Session is the state published by a Resolver for the rest of the
// application: the verified client, the resolved network, the wallet
// source and the contract bindings. Later writes overwrite earlier ones.
//
// A Session can be shared by handing the same value to several consumers
// or to a Resolver via WithSession.
type Session struct {
	mu sync.RWMutex

	network   Network
	source    Source
	contracts map[string]Contract
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		contracts: map[string]Contract{},
	}
}

// Network returns the resolved network, ok is false before it is resolved
func (s *Session) Network() (Network, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.network, s.network != ""
}

// SetNetwork pins the network. A pinned network wins over every other
// preference source during detection.
func (s *Session) SetNetwork(n Network) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.network = n
}

// swapNetwork sets n and returns the previous value
func (s *Session) swapNetwork(n Network) Network {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.network
	s.network = n
	return old
}

// Client returns the published client, nil before a successful connection
func (s *Session) Client() Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.source == nil {
		return nil
	}
	return s.source.Client()
}

// Source returns the wallet source of the published client
func (s *Session) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// swapSource publishes src and returns the source it replaced
func (s *Session) swapSource(src Source) Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.source
	s.source = src
	return old
}

// Contract returns a published binding by its logical name
func (s *Session) Contract(name string) (Contract, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[name]
	return c, ok
}

// Contracts returns a copy of all published bindings
func (s *Session) Contracts() map[string]Contract {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Contract, len(s.contracts))
	for name, c := range s.contracts {
		out[name] = c
	}
	return out
}

// ContractNames returns the sorted names of all published bindings
func (s *Session) ContractNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.contracts))
	for name := range s.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) publishContract(name string, c Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contracts == nil {
		s.contracts = map[string]Contract{}
	}
	s.contracts[name] = c
}

// WaitForContracts blocks until every named binding is published, checking
// up to attempts times with delay in between
func (s *Session) WaitForContracts(ctx context.Context, attempts int, delay time.Duration, names ...string) error {
	cfg := poll.Config{MaxAttempts: attempts, Delay: delay}
	err := poll.Until(ctx, cfg, func(ctx context.Context) (bool, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		for _, name := range names {
			if _, ok := s.contracts[name]; !ok {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("contracts %v not ready: %w", names, err)
	}
	return nil
}
