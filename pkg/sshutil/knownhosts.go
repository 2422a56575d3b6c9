package sshutil

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mhoffm/clusterkey/internal/errors"
	"github.com/mhoffm/clusterkey/internal/identity"
	"golang.org/x/crypto/ssh"
)

// hostKeyFetched is the sentinel used to abort the probing handshake once
// the server has presented its key.
const hostKeyFetched = "clusterkey: host key retrieved"

// FetchHostKey connects to an address just far enough into the handshake to
// retrieve the server's public host key, then aborts. No authentication is
// attempted.
func FetchHostKey(address string, timeout time.Duration) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		User: "clusterkey-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			return fmt.Errorf("%s", hostKeyFetched)
		},
		Timeout: timeout,
	}

	client, err := ssh.Dial("tcp", address, config)
	if err != nil {
		if strings.Contains(err.Error(), hostKeyFetched) {
			return <-keyChan, nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't retrieve host key from %s", address),
			"Make sure the host is reachable and SSH is running")
	}

	// The callback always errors, so a successful dial shouldn't happen.
	client.Close()
	return nil, errors.New(errors.ErrSSH,
		fmt.Sprintf("Handshake with %s completed unexpectedly during host key fetch", address),
		"")
}

// EnsureKnownHost records the host's key in known_hosts when it isn't there
// yet, so no later step blocks on an interactive trust prompt. A key that
// conflicts with a previously recorded one is rejected.
func EnsureKnownHost(id identity.ClusterIdentity, timeout time.Duration) error {
	key, err := FetchHostKey(id.Address(), timeout)
	if err != nil {
		return err
	}

	callback, err := acceptNewHostKeyCallback(KnownHostsPath())
	if err != nil {
		return errors.Wrap(err, "Failed to load known_hosts")
	}

	remote := &net.TCPAddr{IP: net.IPv4zero, Port: id.EffectivePort()}
	if err := callback(id.Address(), remote, key); err != nil {
		return errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Host key for %s conflicts with known_hosts", id.Host),
			"If the host was reinstalled, remove the old entry: ssh-keygen -R "+id.Host)
	}
	return nil
}
