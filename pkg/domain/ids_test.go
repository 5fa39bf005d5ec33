package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "quill/pkg/domain-errors"
)

// IDs arriving from URLs and tokens must be valid, non-nil UUIDs.
func TestParseID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParsePostID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseUserID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseCategoryID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseSessionID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, SessionID(valid), id)
	})
}

func TestIDScanAndValue(t *testing.T) {
	raw := uuid.New()

	var fromString PostID
	require.NoError(t, fromString.Scan(raw.String()))
	assert.Equal(t, PostID(raw), fromString)

	var fromBytes TagID
	require.NoError(t, fromBytes.Scan([]byte(raw.String())))
	assert.Equal(t, TagID(raw), fromBytes)

	var fromNil UserID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsNil())

	v, err := PostID(raw).Value()
	require.NoError(t, err)
	assert.Equal(t, raw.String(), v)
}

func TestIDJSONRoundTrip(t *testing.T) {
	type payload struct {
		ID UserID `json:"id"`
	}
	in := payload{ID: NewUserID()}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+in.ID.String()+`"}`, string(b))

	var out payload
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
