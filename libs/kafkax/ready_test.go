package kafkax

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparePartitions(t *testing.T) {
	want := map[string]int{"user": 12, "game": 6}

	require.NoError(t, comparePartitions(want, map[string]int{"user": 12, "game": 6, "bet": 3}))

	err := comparePartitions(want, map[string]int{"user": 8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `topic "user" has 8 partitions, configured 12`)
	assert.Contains(t, err.Error(), `topic "game" does not exist`)
}

func TestReadyCheckWithoutBrokers(t *testing.T) {
	assert.Error(t, ReadyCheck(nil)(context.Background()))
	assert.Error(t, VerifyPartitions(context.Background(), nil, map[string]int{"user": 1}))
	assert.NoError(t, VerifyPartitions(context.Background(), nil, nil))
}
