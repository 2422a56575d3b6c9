package sshutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mhoffm/clusterkey/internal/errors"
	"golang.org/x/crypto/ssh"
)

// Exec runs a command on the remote host and returns the output.
// Returns stdout, stderr, exit code, and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) Exec(cmd string) (stdout, stderr []byte, exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	exitCode = 0
	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			err = nil // Command ran, just had non-zero exit
		} else {
			return nil, nil, -1, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Failed to execute command: %s", cmd),
				"Check if the command exists on the remote host.")
		}
	}

	return stdoutBuf.Bytes(), stderrBuf.Bytes(), exitCode, nil
}

// ExecStream runs a command and streams output to the provided writers.
// Returns the exit code and any error.
// Exit code is -1 if the command couldn't be executed at all.
func (c *Client) ExecStream(cmd string, stdout, stderr io.Writer) (exitCode int, err error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return -1, errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr

	exitCode = 0
	err = session.Run(cmd)
	if err != nil {
		if exitErr, ok := err.(*ssh.ExitError); ok {
			exitCode = exitErr.ExitStatus()
			err = nil
		} else {
			return -1, errors.WrapWithCode(err, errors.ErrSSH,
				fmt.Sprintf("Failed to execute command: %s", cmd),
				"Check if the command exists on the remote host.")
		}
	}

	return exitCode, nil
}
