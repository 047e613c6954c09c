package ochami

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.cscs.ch/openchami/chamicore-connect/internal/testserver"
	"git.cscs.ch/openchami/chamicore-connect/pkg/backend"
)

func newTestBackend(t *testing.T, srv *testserver.Server, mutate ...func(*Config)) *Backend {
	t.Helper()
	cfg := Config{
		BaseURL: srv.URL,
		Token:   "test-token",
	}
	for _, m := range mutate {
		m(&cfg)
	}
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

func TestExpandSelector(t *testing.T) {
	t.Parallel()

	b := &Backend{}

	tests := []struct {
		name  string
		hosts []string
		want  []string
	}{
		{
			name:  "plain hosts pass through",
			hosts: []string{"x1000c0s0b0n0", "x1000c0s0b0n1"},
			want:  []string{"x1000c0s0b0n0", "x1000c0s0b0n1"},
		},
		{
			name:  "range expression expands in order",
			hosts: []string{"nid[001-003]"},
			want:  []string{"nid001", "nid002", "nid003"},
		},
		{
			name:  "mixed elements with duplicates dedupe",
			hosts: []string{"nid002", "nid[001-003]", "nid001"},
			want:  []string{"nid002", "nid001", "nid003"},
		},
		{
			name:  "comma list inside one element",
			hosts: []string{"a01,a02"},
			want:  []string{"a01", "a02"},
		},
		{
			name:  "blank elements are skipped",
			hosts: []string{" ", "nid001", ""},
			want:  []string{"nid001"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := b.expandSelector("test.op", tc.hosts)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpandSelectorErrors(t *testing.T) {
	t.Parallel()

	b := &Backend{}

	t.Run("empty selector", func(t *testing.T) {
		t.Parallel()
		_, err := b.expandSelector("test.op", nil)
		require.Error(t, err)
		assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
	})

	t.Run("only blank elements", func(t *testing.T) {
		t.Parallel()
		_, err := b.expandSelector("test.op", []string{"", "  "})
		require.Error(t, err)
		assert.Equal(t, backend.KindInvalidArgument, backend.KindOf(err))
	})

	t.Run("malformed range", func(t *testing.T) {
		t.Parallel()
		_, err := b.expandSelector("test.op", []string{"nid[003-001]"})
		require.Error(t, err)
		assert.Equal(t, backend.KindParse, backend.KindOf(err))
	})

	t.Run("unbalanced brackets", func(t *testing.T) {
		t.Parallel()
		_, err := b.expandSelector("test.op", []string{"nid[001-002"})
		require.Error(t, err)
		assert.Equal(t, backend.KindParse, backend.KindOf(err))
	})
}

func TestChunk(t *testing.T) {
	t.Parallel()

	hosts := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(hosts, 2))
	assert.Equal(t, [][]string{hosts}, chunk(hosts, 10))
	assert.Len(t, chunk(hosts, 0), 5) // non-positive size degrades to one host per batch
	assert.Nil(t, chunk(nil, 2))
}
