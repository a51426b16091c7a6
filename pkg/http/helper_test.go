package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "shortlets/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLimitOffset(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/approvals?limit=20&offset=40", nil)
	limit, offset, err := ExtractLimitOffset(r)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
	assert.Equal(t, int64(40), offset)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/approvals?offset=-5", nil)
	limit, offset, err = ExtractLimitOffset(r)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)
	assert.Equal(t, int64(0), offset)

	r = httptest.NewRequest(http.MethodGet, "/api/v1/approvals?limit=ten", nil)
	_, _, err = ExtractLimitOffset(r)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Status string `json:"status"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"approved"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "approved", dst.Status)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"approved","admin":true}`))
	assert.True(t, apperrors.HasCode(DecodeJSON(r, &dst), apperrors.CodeInvalidInput))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	assert.True(t, apperrors.HasCode(DecodeJSON(r, &dst), apperrors.CodeInvalidInput))
}
