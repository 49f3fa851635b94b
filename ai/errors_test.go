package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGatewayError(t *testing.T) {
	cause := errors.New("connection refused")
	err := error(&GatewayError{Op: "invoke", Model: "qwen2.5:3b", Attempts: 4, Err: cause})

	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invoke qwen2.5:3b failed after 4 attempt(s)")

	var gwErr *GatewayError
	assert.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 4, gwErr.Attempts)
}
