package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitConcatenated(t *testing.T) {
	t.Run("single object", func(t *testing.T) {
		out := SplitConcatenated([]byte(`{"id":"a"}`))
		require.Len(t, out, 1)
	})

	t.Run("two concatenated objects", func(t *testing.T) {
		out := SplitConcatenated([]byte(`{"id":"a"}{"id":"b"}`))
		require.Len(t, out, 2)
		assert.JSONEq(t, `{"id":"a"}`, string(out[0]))
		assert.JSONEq(t, `{"id":"b"}`, string(out[1]))
	})

	t.Run("whitespace between objects", func(t *testing.T) {
		out := SplitConcatenated([]byte("{\"id\":\"a\"}\n  {\"id\":\"b\"}"))
		require.Len(t, out, 2)
	})

	t.Run("corrupt fragment is discarded", func(t *testing.T) {
		out := SplitConcatenated([]byte(`{"id":"a"}%%%{"id":"b"}`))
		require.Len(t, out, 2)
		assert.JSONEq(t, `{"id":"a"}`, string(out[0]))
		assert.JSONEq(t, `{"id":"b"}`, string(out[1]))
	})

	t.Run("empty payload", func(t *testing.T) {
		assert.Empty(t, SplitConcatenated(nil))
		assert.Empty(t, SplitConcatenated([]byte("   ")))
	})
}

func TestDedupeByID(t *testing.T) {
	t.Run("duplicate ids collapse to first occurrence", func(t *testing.T) {
		payload := []byte(`{"id":"zyTCAlFPjgYC","title":"Foundation"}{"id":"zyTCAlFPjgYC","title":"Foundation (dup)"}`)

		out := DedupeByID(payload)
		require.Len(t, out, 1)

		var rec struct {
			Title string `json:"title"`
		}
		require.NoError(t, json.Unmarshal(out[0], &rec))
		assert.Equal(t, "Foundation", rec.Title)
	})

	t.Run("distinct ids survive", func(t *testing.T) {
		out := DedupeByID([]byte(`{"id":"a"}{"id":"b"}`))
		assert.Len(t, out, 2)
	})

	t.Run("objects without id are kept", func(t *testing.T) {
		out := DedupeByID([]byte(`{"title":"x"}{"title":"y"}`))
		assert.Len(t, out, 2)
	})

	t.Run("non-object values dropped", func(t *testing.T) {
		out := DedupeByID([]byte(`[1,2,3]{"id":"a"}`))
		require.Len(t, out, 1)
		assert.JSONEq(t, `{"id":"a"}`, string(out[0]))
	})
}

func TestDecodeOne(t *testing.T) {
	t.Run("concatenated payload with duplicate ids yields one record", func(t *testing.T) {
		payload := []byte(`{"id":"x","title":"Dune"}{"id":"x","title":"Dune"}`)

		var rec struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		require.True(t, DecodeOne(payload, &rec))
		assert.Equal(t, "x", rec.ID)
		assert.Equal(t, "Dune", rec.Title)
	})

	t.Run("garbage payload", func(t *testing.T) {
		var rec map[string]interface{}
		assert.False(t, DecodeOne([]byte("%%%%"), &rec))
	})
}
