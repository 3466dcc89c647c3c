// Package schemaregistry registers avro schemas and frames encoded values
// with the Confluent wire header, so any registry-aware consumer can decode
// them.
package schemaregistry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/sr"
)

// Registry assigns ids to schemas. Registering an already known schema
// under the same subject returns its existing id.
type Registry interface {
	Register(ctx context.Context, subject, schema string) (int, error)
}

// Client talks to a Confluent compatible schema registry.
type Client struct {
	cl *sr.Client
}

func NewClient(urls ...string) (*Client, error) {
	if len(urls) == 0 {
		return nil, errors.New("schema registry url not configured")
	}
	cl, err := sr.NewClient(sr.URLs(urls...))
	if err != nil {
		return nil, fmt.Errorf("schema registry client: %w", err)
	}
	return &Client{cl: cl}, nil
}

func (c *Client) Register(ctx context.Context, subject, schema string) (int, error) {
	ss, err := c.cl.CreateSchema(ctx, subject, sr.Schema{Schema: schema, Type: sr.TypeAvro})
	if err != nil {
		return 0, fmt.Errorf("register %s: %w", subject, err)
	}
	return ss.ID, nil
}

func (c *Client) ReadyCheck() func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := c.cl.Subjects(ctx)
		return err
	}
}

// Memory is an in-process Registry for tests and local tools.
type Memory struct {
	mu    sync.Mutex
	ids   map[string]int
	calls int
}

func NewMemory() *Memory {
	return &Memory{ids: map[string]int{}}
}

func (m *Memory) Register(_ context.Context, subject, schema string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	k := subject + "\x00" + schema
	if id, ok := m.ids[k]; ok {
		return id, nil
	}
	id := len(m.ids) + 1
	m.ids[k] = id
	return id, nil
}

// Calls reports how many Register requests reached the registry.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
