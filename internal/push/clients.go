package push

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrNoClient indicates an operation on an unknown client id.
var ErrNoClient = errors.New("push: no such client")

// Client is a window controlled by the worker.
type Client struct {
	ID      string
	URL     string
	Focused bool
}

// Clients is the set of windows the worker controls.
type Clients interface {
	// List returns the controlled windows.
	List(ctx context.Context) ([]Client, error)

	// Navigate points the window id at url.
	Navigate(ctx context.Context, id, url string) error

	// Focus brings the window id to the front.
	Focus(ctx context.Context, id string) error

	// Open opens a new window at url.
	Open(ctx context.Context, url string) (Client, error)

	// Claim takes control of every window in scope.
	Claim(ctx context.Context) error
}

// Compile-time check that MemoryClients implements Clients.
var _ Clients = (*MemoryClients)(nil)

// MemoryClients tracks windows in memory. It is safe for concurrent use.
type MemoryClients struct {
	mu      sync.Mutex
	clients []Client
	claimed bool
}

// NewMemoryClients creates an empty client set.
func NewMemoryClients() *MemoryClients {
	return &MemoryClients{}
}

// Add registers an existing window at url.
func (m *MemoryClients) Add(url string) Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Client{ID: uuid.NewString(), URL: url}
	m.clients = append(m.clients, c)
	return c
}

// Claimed reports whether Claim has been called.
func (m *MemoryClients) Claimed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed
}

// List implements Clients.
func (m *MemoryClients) List(ctx context.Context) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.clients), nil
}

// Navigate implements Clients.
func (m *MemoryClients) Navigate(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return ErrNoClient
	}
	m.clients[i].URL = url
	return nil
}

// Focus implements Clients.
func (m *MemoryClients) Focus(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.index(id)
	if i < 0 {
		return ErrNoClient
	}
	for j := range m.clients {
		m.clients[j].Focused = j == i
	}
	return nil
}

// Open implements Clients.
func (m *MemoryClients) Open(ctx context.Context, url string) (Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for j := range m.clients {
		m.clients[j].Focused = false
	}
	c := Client{ID: uuid.NewString(), URL: url, Focused: true}
	m.clients = append(m.clients, c)
	return c, nil
}

// Claim implements Clients.
func (m *MemoryClients) Claim(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimed = true
	return nil
}

func (m *MemoryClients) index(id string) int {
	return slices.IndexFunc(m.clients, func(c Client) bool { return c.ID == id })
}
