// Package sshutil wraps golang.org/x/crypto/ssh with the small surface the
// setup flow needs: one authenticated connection per call, bounded timeouts,
// and accept-new host key handling against ~/.ssh/known_hosts.
package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Auth selects how a connection authenticates. Exactly one of KeyPath or
// Password is normally set; UseAgent additionally offers agent signers when
// the agent has keys loaded.
type Auth struct {
	KeyPath  string
	Password string
	UseAgent bool
}

// Key returns an Auth using the private key at path.
func Key(path string) Auth { return Auth{KeyPath: path} }

// Password returns an Auth using the given password.
func Password(pw string) Auth { return Auth{Password: pw} }

// AnyTrusted returns an Auth that offers agent signers plus any default
// local keys, for sessions where a key is already expected to work.
func AnyTrusted() Auth { return Auth{UseAgent: true} }

// Client wraps an SSH connection with the metadata callers log against.
type Client struct {
	*ssh.Client
	Host    string // hostname as given by the caller
	Address string // resolved host:port
}

// Dial opens one authenticated SSH connection to the identity's address.
// The timeout bounds the TCP connect and the handshake; sessions created
// from the returned client are not themselves bounded.
func Dial(id identity.ClusterIdentity, auth Auth, timeout time.Duration) (*Client, error) {
	config, err := buildClientConfig(id.User, auth, timeout)
	if err != nil {
		return nil, err
	}

	address := id.Address()
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", id.Host, address),
			"Make sure the host is reachable: ping "+id.Host)
	}
	if deadlineErr := conn.SetDeadline(time.Now().Add(timeout)); deadlineErr != nil {
		conn.Close()
		return nil, errors.Wrap(deadlineErr, "Failed to bound the SSH handshake")
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", id.Host),
			"Check the username and credentials, or try: ssh "+id.User+"@"+id.Host)
	}
	// Clear the handshake deadline; command execution sets its own bounds.
	_ = conn.SetDeadline(time.Time{})

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    id.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the hostname used to connect.
func (c *Client) GetHost() string { return c.Host }

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string { return c.Address }

// buildClientConfig assembles auth methods and the host key callback.
func buildClientConfig(user string, auth Auth, timeout time.Duration) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	if auth.KeyPath != "" {
		keyAuth, err := keyFileAuth(auth.KeyPath)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Couldn't load private key %s", auth.KeyPath),
				"Check the file exists and isn't passphrase protected")
		}
		methods = append(methods, keyAuth)
	}

	if auth.Password != "" {
		methods = append(methods, ssh.Password(auth.Password))
	}

	if auth.UseAgent {
		if agentAuth := sshAgentAuth(); agentAuth != nil {
			methods = append(methods, agentAuth)
		}
		// Default local keys round out the "anything already trusted" mode.
		for _, keyPath := range defaultKeyPaths() {
			if keyAuth, err := keyFileAuth(keyPath); err == nil {
				methods = append(methods, keyAuth)
			}
		}
	}

	if len(methods) == 0 {
		return nil, errors.New(errors.ErrSSH,
			"No SSH auth methods available",
			"Supply a key or password, or load a key into the agent: ssh-add -l")
	}

	callback, err := acceptNewHostKeyCallback(KnownHostsPath())
	if err != nil {
		return nil, errors.Wrap(err, "Failed to load known_hosts")
	}

	return &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: callback,
		Timeout:         timeout,
	}, nil
}

// keyFileAuth returns an auth method using a private key file.
func keyFileAuth(keyPath string) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, err
	}

	return ssh.PublicKeys(signer), nil
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// Returns nil if there is no agent or it has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// SSHDir returns the user's SSH directory (~/.ssh).
func SSHDir() string {
	return filepath.Join(homeDir(), ".ssh")
}

// KnownHostsPath returns the path to the user's known_hosts file.
func KnownHostsPath() string {
	return filepath.Join(SSHDir(), "known_hosts")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func defaultKeyPaths() []string {
	return []string{
		filepath.Join(SSHDir(), "id_ed25519"),
		filepath.Join(SSHDir(), "id_ecdsa"),
		filepath.Join(SSHDir(), "id_rsa"),
	}
}

// acceptNewHostKeyCallback verifies host keys against known_hosts,
// appending keys for hosts seen for the first time. A key that conflicts
// with a recorded one is always rejected.
func acceptNewHostKeyCallback(knownHostsPath string) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if stderrors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			// Unknown host: record it so later steps never hit a trust prompt.
			return appendKnownHost(knownHostsPath, hostname, key)
		}
		return err
	}, nil
}

// appendKnownHost adds a host key line to known_hosts.
func appendKnownHost(knownHostsPath, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(knownHostsPath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to open known_hosts: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{hostname}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to known_hosts: %w", err)
	}
	return nil
}
