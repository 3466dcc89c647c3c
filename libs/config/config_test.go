package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string        `env:"SAMPLE_NAME" envDefault:"relay"`
	Interval time.Duration `env:"SAMPLE_INTERVAL" envDefault:"2s"`
	Size     int           `env:"SAMPLE_SIZE" envDefault:"500"`
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("SAMPLE_SIZE", "42")

	cfg, err := Load[sample]()
	require.NoError(t, err)
	assert.Equal(t, "relay", cfg.Name)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 42, cfg.Size)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SAMPLE_INTERVAL", "soon")

	_, err := Load[sample]()
	require.Error(t, err)
}

func TestPort(t *testing.T) {
	_, err := Port("PORT", "8090")
	require.NoError(t, err)

	for _, bad := range []string{"", "0", "70000", "http"} {
		_, err := Port("PORT", bad)
		assert.Error(t, err, bad)
	}
}

func TestOneOf(t *testing.T) {
	v, err := OneOf("OUTBOX_BACKEND", " Mongo ", "postgres", "mongo")
	require.NoError(t, err)
	assert.Equal(t, "mongo", v)

	_, err = OneOf("OUTBOX_BACKEND", "mysql", "postgres", "mongo")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitList(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitList(""))
}
