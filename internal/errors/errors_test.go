package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrKeygen,
		ErrDeploy,
		ErrConnect,
		ErrFallback,
		ErrSSH,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	err := New(ErrConfig, "No host specified", "Provide a hostname")

	require.NotNil(t, err)
	assert.Equal(t, ErrConfig, err.Code)
	assert.Equal(t, "No host specified", err.Message)
	assert.Equal(t, "Provide a hostname", err.Suggestion)
	assert.Nil(t, err.Cause)
}

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name:     "message only",
			err:      New(ErrDeploy, "Key installation failed", ""),
			contains: []string{"✗ Key installation failed"},
		},
		{
			name:     "message and suggestion",
			err:      New(ErrKeygen, "ssh-keygen not found", "Install openssh-client"),
			contains: []string{"✗ ssh-keygen not found", "Install openssh-client"},
		},
		{
			name:     "wrapped cause appears between message and suggestion",
			err:      WrapWithCode(errors.New("exit status 255"), ErrConnect, "Probe failed", "Check the host"),
			contains: []string{"✗ Probe failed", "exit status 255", "Check the host"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rendered := tt.err.Error()
			for _, want := range tt.contains {
				assert.Contains(t, rendered, want)
			}
			assert.True(t, strings.HasPrefix(rendered, "✗ "))
		})
	}
}

func TestWrapDefaultsToSSH(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, "Session died")

	assert.Equal(t, ErrSSH, err.Code)
	assert.Equal(t, cause, err.Cause)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := WrapWithCode(cause, ErrDeploy, "outer", "")

	assert.True(t, errors.Is(err, cause))
}

func TestIsCode(t *testing.T) {
	err := New(ErrFallback, "no fallback available", "")

	assert.True(t, IsCode(err, ErrFallback))
	assert.False(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))
	assert.False(t, IsCode(errors.New("plain"), ErrConfig))
}

func TestIsCodeThroughWrapping(t *testing.T) {
	inner := New(ErrConnect, "timed out", "")
	wrapped := fmt.Errorf("attempt 2: %w", inner)

	assert.True(t, IsCode(wrapped, ErrConnect))
	assert.Equal(t, ErrConnect, Code(wrapped))
}

func TestCode(t *testing.T) {
	assert.Equal(t, ErrDeploy, Code(New(ErrDeploy, "m", "")))
	assert.Equal(t, "", Code(errors.New("plain")))
	assert.Equal(t, "", Code(nil))
}
