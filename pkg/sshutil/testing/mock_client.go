// Package testing provides a mock SSH client for exercising the probe and
// deployer without real connections.
package testing

import (
	"errors"
	"io"
	"regexp"
	"sync"
)

// CommandResponse defines a canned response for a command pattern.
type CommandResponse struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Error    error
}

// MockClient simulates an SSH connection for testing. Commands are matched
// first exactly, then as regex patterns, in registration order for patterns.
type MockClient struct {
	mu       sync.Mutex
	host     string
	address  string
	closed   bool
	patterns []string
	commands map[string]CommandResponse
	Executed []string // every command passed to Exec, in order
}

// NewMockClient creates a mock client that answers every command with
// exit 0 unless a response is registered.
func NewMockClient(host string) *MockClient {
	return &MockClient{
		host:     host,
		address:  host + ":22",
		commands: make(map[string]CommandResponse),
	}
}

// SetCommandResponse registers a canned response for a command pattern.
// The pattern can be an exact string or a regex.
func (m *MockClient) SetCommandResponse(pattern string, resp CommandResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.commands[pattern]; !ok {
		m.patterns = append(m.patterns, pattern)
	}
	m.commands[pattern] = resp
}

// Exec runs a command against the registered responses.
func (m *MockClient) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, -1, errors.New("connection closed")
	}

	m.Executed = append(m.Executed, cmd)

	if resp, ok := m.commands[cmd]; ok {
		return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
	}

	for _, pattern := range m.patterns {
		if matched, _ := regexp.MatchString(pattern, cmd); matched {
			resp := m.commands[pattern]
			return resp.Stdout, resp.Stderr, resp.ExitCode, resp.Error
		}
	}

	return nil, nil, 0, nil
}

// ExecStream runs a command and writes output to the provided writers.
func (m *MockClient) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	out, errOut, code, execErr := m.Exec(cmd)
	if execErr != nil {
		return -1, execErr
	}

	if stdout != nil && len(out) > 0 {
		stdout.Write(out)
	}
	if stderr != nil && len(errOut) > 0 {
		stderr.Write(errOut)
	}

	return code, nil
}

// Close marks the connection as closed.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockClient) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GetHost returns the host name.
func (m *MockClient) GetHost() string { return m.host }

// GetAddress returns the host:port address.
func (m *MockClient) GetAddress() string { return m.address }
