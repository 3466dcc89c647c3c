package schemaregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

// Serializer encodes values as avro and prefixes the registry id of their
// schema. Schemas are registered under their full record name and the id is
// cached for the life of the serializer.
type Serializer struct {
	reg    Registry
	header sr.ConfluentHeader

	mu  sync.RWMutex
	ids map[string]int
}

func NewSerializer(reg Registry) *Serializer {
	return &Serializer{reg: reg, ids: map[string]int{}}
}

func (s *Serializer) Encode(ctx context.Context, schema avro.NamedSchema, v any) ([]byte, error) {
	id, err := s.schemaID(ctx, schema)
	if err != nil {
		return nil, err
	}
	body, err := avro.Marshal(schema, v)
	if err != nil {
		return nil, fmt.Errorf("avro encode %s: %w", schema.FullName(), err)
	}
	out, err := s.header.AppendEncode(make([]byte, 0, 5+len(body)), id, nil)
	if err != nil {
		return nil, err
	}
	return append(out, body...), nil
}

// Decode strips the wire header into v and returns the schema id it named.
func (s *Serializer) Decode(data []byte, schema avro.Schema, v any) (int, error) {
	id, body, err := s.header.DecodeID(data)
	if err != nil {
		return 0, err
	}
	if err := avro.Unmarshal(schema, body, v); err != nil {
		return id, fmt.Errorf("avro decode: %w", err)
	}
	return id, nil
}

func (s *Serializer) schemaID(ctx context.Context, schema avro.NamedSchema) (int, error) {
	subject := schema.FullName()
	s.mu.RLock()
	id, ok := s.ids[subject]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := s.reg.Register(ctx, subject, schema.String())
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.ids[subject] = id
	s.mu.Unlock()
	return id, nil
}
