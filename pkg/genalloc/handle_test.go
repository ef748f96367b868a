package genalloc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleDerefAfterRevoke(t *testing.T) {
	a, _ := newTestAllocator(t)

	ptr := a.Alloc(16)
	h, err := NewHandle(a, ptr, 16)
	require.NoError(t, err)
	require.True(t, h.Valid(a))

	buf, err := h.Deref(a)
	require.NoError(t, err)
	require.Len(t, buf, 16)

	_, err = a.Revoke(h.AllocID)
	require.NoError(t, err)

	require.False(t, h.Valid(a))
	_, err = h.Deref(a)
	require.Error(t, err)
}
