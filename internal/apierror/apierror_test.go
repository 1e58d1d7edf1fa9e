package apierror

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIError_JSONShape(t *testing.T) {
	raw, err := json.Marshal(WithCode(CodeAlreadyOpen, "cashier already has an open shift"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"detail":"cashier already has an open shift","code":"ALREADY_OPEN"}`, string(raw))

	raw, err = json.Marshal(New("boom"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"detail":"boom"}`, string(raw))
}

func TestAPIError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: shift not found", WithCode(CodeNotFound, "shift not found").Error())
	assert.Equal(t, "plain", New("plain").Error())
}
