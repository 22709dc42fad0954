package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		BadRequest:        http.StatusBadRequest,
		Validation:        http.StatusBadRequest,
		UnknownReportType: http.StatusBadRequest,
		NotFound:          http.StatusNotFound,
		ArtifactNotFound:  http.StatusNotFound,
		Conflict:          http.StatusConflict,
		Query:             http.StatusInternalServerError,
		Store:             http.StatusInternalServerError,
		Internal:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus(), string(code))
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	root := errors.New("connection reset")
	err := fmt.Errorf("execute: %w", Wrap(Query, "query failed", root))

	assert.ErrorIs(t, err, root)
	assert.Equal(t, Query, CodeOf(err))
	assert.Equal(t, "execute: query failed: connection reset", err.Error())

	ae, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "query failed", ae.Message())
}

func TestIs_LooksThroughNestedAppErrors(t *testing.T) {
	inner := New(Validation, "fromDate must not be after toDate")
	outer := Wrap(Internal, "bind criteria", inner)

	assert.True(t, Is(outer, Validation))
	assert.True(t, Is(outer, Internal))
	assert.False(t, Is(outer, Query))
	assert.False(t, Is(errors.New("plain"), Internal))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Internal, CodeOf(errors.New("boom")))
}
