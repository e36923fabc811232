// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUGetFetchesOnce(t *testing.T) {
	c := NewLRU[string, int](4)

	calls := 0
	fetch := func(string) (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.Get("k", fetch)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls)

	v, err = c.Get("k", fetch)
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, 1, calls, "hit must not refetch")
	require.Equal(t, 1, c.Len())
}

func TestLRUGetErrorNotCached(t *testing.T) {
	c := NewLRU[string, int](4)

	wantErr := errors.New("fetch failed")
	calls := 0
	_, err := c.Get("k", func(string) (int, error) {
		calls++
		return 0, wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Zero(t, c.Len())

	// The next get retries the fetch.
	v, err := c.Get("k", func(string) (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, 2, calls)
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU[int, int](2)
	identity := func(k int) (int, error) { return k, nil }

	for k := 0; k < 5; k++ {
		_, err := c.Get(k, identity)
		require.NoError(t, err)
	}
	require.Equal(t, 2, c.Len())
}
