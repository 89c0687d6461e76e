package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"statguide/domain/core"
)

func TestGetCode_FromDomainSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"length mismatch", core.NewLengthMismatchError("x and y", 3, 2), CodeValidationError},
		{"empty dataset", fmt.Errorf("load: %w", core.ErrEmptyDataset), CodeEmptyDataset},
		{"backend", core.NewBackendError("remote", stderrors.New("dial tcp")), CodeBackendUnavailable},
		{"computation", fmt.Errorf("%w: singular", core.ErrComputation), CodeComputationError},
		{"plain", stderrors.New("boom"), CodeInternalError},
		{"app error", InvalidInput("bad json"), CodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetCode(tt.err))
		})
	}
}

func TestWrap_KeepsCodeAndChain(t *testing.T) {
	base := core.NewInsufficientSampleError("pearson", 3, 2)
	wrapped := Wrap(base, "correlation failed")

	assert.Equal(t, CodeValidationError, GetCode(wrapped))
	assert.True(t, stderrors.Is(wrapped, core.ErrInsufficientSample))

	rewrapped := Wrapf(wrapped, "request %d", 7)
	assert.Equal(t, CodeValidationError, GetCode(rewrapped))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeValidationError))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeInvalidInput))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeEmptyDataset))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeBackendUnavailable))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(CodeComputationError))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternalError))
}
