package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "zkworkspace/pkg/domain-errors"
)

func TestParseOrgID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseOrgID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseOrgID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseOrgID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		u := uuid.New()
		orgID, err := ParseOrgID(u.String())
		require.NoError(t, err)
		assert.Equal(t, OrgID(u), orgID)
		assert.False(t, orgID.IsNil())
	})
}

func TestOrgIDJSON(t *testing.T) {
	orgID := NewOrgID()
	body, err := json.Marshal(map[string]OrgID{"org_id": orgID})
	require.NoError(t, err)
	assert.JSONEq(t, `{"org_id":"`+orgID.String()+`"}`, string(body))

	var decoded map[string]OrgID
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, orgID, decoded["org_id"])

	var bad OrgID
	assert.Error(t, bad.UnmarshalText([]byte("nope")))
}
