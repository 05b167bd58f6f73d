package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLastOccurrenceWins(t *testing.T) {
	ix := NewIndex([]Property{
		{Name: PropSummary, Value: "first"},
		{Name: PropDTStart, Value: "20240101T100000Z"},
		{Name: PropSummary, Value: "second"},
	})

	v, ok := ix.Value(PropSummary)
	require.True(t, ok)
	assert.Equal(t, "second", v)
	assert.True(t, ix.Has(PropDTStart))
	assert.False(t, ix.Has(PropDTEnd))
}

func TestIndexNoValue(t *testing.T) {
	ix := NewIndex([]Property{{Name: PropUID, NoValue: true}})

	assert.True(t, ix.Has(PropUID))
	_, ok := ix.Value(PropUID)
	assert.False(t, ok)
}

func TestEventCloneIsIndependent(t *testing.T) {
	orig := Event{Properties: []Property{
		{Name: PropDTStart, Value: "20240101T100000", Params: map[string][]string{"TZID": {"Europe/Brussels"}}},
		{Name: PropSummary, Value: "Sync"},
	}}

	cp := orig.Clone()
	cp.Properties[0].Params["TZID"][0] = "UTC"
	cp.Properties[1].Value = "changed"

	assert.Equal(t, "Europe/Brussels", orig.Properties[0].Params["TZID"][0])
	assert.Equal(t, "Sync", orig.Properties[1].Value)
}

func TestPropertyCloneDropsEmptyParams(t *testing.T) {
	p := Property{Name: PropSummary, Value: "x", Params: map[string][]string{}}
	assert.Nil(t, p.Clone().Params)
}
