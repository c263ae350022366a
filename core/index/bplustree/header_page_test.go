package bplustree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

func TestHeaderPage_Records(t *testing.T) {
	hp := HeaderView(make([]byte, page.DefaultPageSize))
	hp.Init()
	require.True(t, hp.IsValid())

	require.True(t, hp.InsertRecord("orders_pk", 3))
	require.True(t, hp.InsertRecord("users_pk", 9))
	require.False(t, hp.InsertRecord("orders_pk", 4), "duplicate names rejected")

	id, ok := hp.RootID("orders_pk")
	require.True(t, ok)
	require.Equal(t, page.PageID(3), id)

	require.True(t, hp.UpdateRecord("orders_pk", 17))
	id, _ = hp.RootID("orders_pk")
	require.Equal(t, page.PageID(17), id)
	require.False(t, hp.UpdateRecord("missing", 1))

	require.True(t, hp.DeleteRecord("orders_pk"))
	_, ok = hp.RootID("orders_pk")
	require.False(t, ok)
	id, ok = hp.RootID("users_pk")
	require.True(t, ok)
	require.Equal(t, page.PageID(9), id)
}

func TestHeaderPage_RejectsBadNames(t *testing.T) {
	hp := HeaderView(make([]byte, page.DefaultPageSize))
	hp.Init()
	require.False(t, hp.InsertRecord("", 1))
	long := make([]byte, headerNameSize+1)
	for i := range long {
		long[i] = 'x'
	}
	require.False(t, hp.InsertRecord(string(long), 1))
}

func TestHeaderPage_MagicValidation(t *testing.T) {
	hp := HeaderView(make([]byte, page.DefaultPageSize))
	require.False(t, hp.IsValid())
	hp.Init()
	require.True(t, hp.IsValid())
}
