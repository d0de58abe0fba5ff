package audit

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"moneta/core/types"
)

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func TestSinkPersistsEvents(t *testing.T) {
	sink := openTestSink(t)

	sink.Emit(&types.Event{Type: "market.supply", Attributes: map[string]string{
		"from":   "0xabc",
		"amount": "1000",
	}})
	sink.Emit(&types.Event{Type: "market.withdraw", Attributes: map[string]string{
		"src":    "0xabc",
		"amount": "400",
	}})

	records, err := sink.Recent(10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	supplies, err := sink.ByType("market.supply", 10)
	require.NoError(t, err)
	require.Len(t, supplies, 1)
	require.NotEqual(t, supplies[0].ID.String(), "00000000-0000-0000-0000-000000000000")

	var attrs map[string]string
	require.NoError(t, json.Unmarshal([]byte(supplies[0].Attributes), &attrs))
	require.Equal(t, "1000", attrs["amount"])
}

func TestSinkIgnoresNilEvents(t *testing.T) {
	sink := openTestSink(t)
	sink.Emit(nil)

	records, err := sink.Recent(10)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ", nil)
	require.Error(t, err)
}
