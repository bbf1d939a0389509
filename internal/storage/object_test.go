package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagsFromMap(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]string
		want []Tag
	}{
		{
			name: "nil map",
			in:   nil,
			want: nil,
		},
		{
			name: "empty map",
			in:   map[string]string{},
			want: nil,
		},
		{
			name: "ordered by key",
			in:   map[string]string{"zone": "eu", "author": "ops", "kind": "report"},
			want: []Tag{
				{Key: "author", Value: "ops"},
				{Key: "kind", Value: "report"},
				{Key: "zone", Value: "eu"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TagsFromMap(tt.in))
		})
	}
}

func TestTagMap(t *testing.T) {
	tags := []Tag{
		{Key: "author", Value: "ops"},
		{Key: "author", Value: "qa"},
		{Key: "kind", Value: "report"},
	}

	m := TagMap(tags)

	// Later duplicates win.
	assert.Equal(t, map[string]string{"author": "qa", "kind": "report"}, m)
	assert.Nil(t, TagMap(nil))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("localhost:9000", "minioadmin", "minioadmin")

	assert.Equal(t, ProviderMinIO, cfg.Provider)
	assert.Equal(t, "localhost:9000", cfg.Endpoint)
	assert.False(t, cfg.UseSSL)
}
