package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSerializerRequiresRegistry(t *testing.T) {
	for _, url := range []string{"", "  "} {
		ser, err := newSerializer(url)
		assert.ErrorIs(t, err, errRegistryRequired)
		assert.Nil(t, ser)
	}
}

func TestNewSerializerUsesRegistry(t *testing.T) {
	ser, err := newSerializer("http://localhost:8081")
	require.NoError(t, err)
	assert.NotNil(t, ser)
}
