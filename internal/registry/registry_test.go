package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentryhq/sentryd/internal/registry"
)

func TestInMemory_BroadcastExternalExcludesAdopted(t *testing.T) {
	r := registry.New(nil)
	r.SetExternal(true)
	require.NoError(t, r.Add(registry.KindTable, "users", 0))
	require.NoError(t, r.Adopt(7, registry.Broadcast{Entries: []registry.Entry{{Kind: registry.KindTable, Name: "foreign", Owner: 7}}}))

	out, err := r.GetBroadcast()
	require.NoError(t, err)
	require.Len(t, out.Entries, 1)
	assert.Equal(t, "users", out.Entries[0].Name)
}

func TestInMemory_AdoptRemoveRoundTrip(t *testing.T) {
	r := registry.New(nil)
	broadcast := registry.Broadcast{Entries: []registry.Entry{
		{Kind: registry.KindTable, Name: "processes"},
		{Kind: registry.KindLogger, Name: "syslog"},
	}}
	require.NoError(t, r.Adopt(42, broadcast))

	assert.Equal(t, []uint64{42}, r.RouteUUIDs(registry.KindTable, "processes"))
	assert.Equal(t, []uint64{42}, r.RouteUUIDs(registry.KindLogger, "syslog"))

	r.RemoveBroadcast(42)
	assert.Nil(t, r.RouteUUIDs(registry.KindTable, "processes"))
	assert.Nil(t, r.RouteUUIDs(registry.KindLogger, "syslog"))
}

func TestInMemory_AdoptConflict(t *testing.T) {
	r := registry.New(nil)
	require.NoError(t, r.Adopt(1, registry.Broadcast{Entries: []registry.Entry{{Kind: registry.KindTable, Name: "users"}}}))
	err := r.Adopt(2, registry.Broadcast{Entries: []registry.Entry{{Kind: registry.KindTable, Name: "users"}}})
	assert.Error(t, err)
}

func TestInMemory_SetActiveAndSetUp(t *testing.T) {
	called := false
	r := registry.New(func() error {
		called = true
		return nil
	})
	require.NoError(t, r.SetActive(registry.KindConfig, "filesystem"))
	assert.Equal(t, "filesystem", r.Active(registry.KindConfig))
	require.NoError(t, r.SetUp())
	assert.True(t, called)
}

func TestMarshalUnmarshalBroadcastRoundTrip(t *testing.T) {
	b := registry.Broadcast{Entries: []registry.Entry{{Kind: registry.KindTable, Name: "users", Owner: 3}}}
	data, err := b.Marshal()
	require.NoError(t, err)

	got, err := registry.UnmarshalBroadcast(data)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestUnmarshalBroadcast_Empty(t *testing.T) {
	got, err := registry.UnmarshalBroadcast(nil)
	require.NoError(t, err)
	assert.Equal(t, registry.Broadcast{}, got)
}
