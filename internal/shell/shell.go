// Package shell opens remote interactive shell sessions over SSH.
//
// It wraps golang.org/x/crypto/ssh to create PTY-backed login shells on
// user-specified hosts. The session layer consumes it through the Dialer and
// Handle interfaces so tests can substitute an in-memory transport.
package shell

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// Auth methods accepted in a connect configuration.
const (
	AuthPassword = "password"
	AuthKey      = "key"
)

// Config describes the remote shell target.
type Config struct {
	Host       string
	Identifier string // remote login user
	Port       int    // defaults to 22
	AuthMethod string
	Password   string
	PrivateKey string // PEM-encoded, for AuthKey
}

// Handle is one open remote shell. Output delivers remote bytes in the order
// produced and is closed when the remote stream ends. Close is idempotent.
type Handle interface {
	Write(p []byte) (int, error)
	Output() <-chan []byte
	Close() error
}

// Dialer opens remote shells. Open blocks until the shell is ready or the
// context is done.
type Dialer interface {
	Open(ctx context.Context, cfg Config) (Handle, error)
}

// SSHDialer opens PTY-backed shells over SSH.
type SSHDialer struct {
	// Timeout bounds the TCP dial and SSH handshake.
	Timeout time.Duration
}

func NewSSHDialer(timeout time.Duration) *SSHDialer {
	return &SSHDialer{Timeout: timeout}
}

func (d *SSHDialer) Open(ctx context.Context, cfg Config) (Handle, error) {
	clientCfg := &ssh.ClientConfig{
		User:            cfg.Identifier,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.Timeout,
	}

	switch cfg.AuthMethod {
	case AuthPassword:
		clientCfg.Auth = []ssh.AuthMethod{ssh.Password(cfg.Password)}
	case AuthKey:
		signer, err := ssh.ParsePrivateKey([]byte(cfg.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		clientCfg.Auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	default:
		return nil, fmt.Errorf("unsupported auth method %q", cfg.AuthMethod)
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", port))

	dialer := net.Dialer{Timeout: d.Timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientCfg)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	h, err := startShell(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	return h, nil
}

// sshHandle is the production Handle backed by an SSH session with a PTY.
type sshHandle struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	output chan []byte
	done   chan struct{}
	once   sync.Once
}

func startShell(client *ssh.Client) (*sshHandle, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm-256color", 24, 80, modes); err != nil {
		session.Close()
		return nil, fmt.Errorf("request pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, fmt.Errorf("start shell: %w", err)
	}

	h := &sshHandle{
		client:  client,
		session: session,
		stdin:   stdin,
		output:  make(chan []byte, 32),
		done:    make(chan struct{}),
	}
	go h.relayOutput(stdout)
	return h, nil
}

// relayOutput copies remote stdout into the output channel preserving byte
// order, and closes the channel when the remote stream ends.
func (h *sshHandle) relayOutput(stdout io.Reader) {
	defer close(h.output)
	buf := make([]byte, 32*1024)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			select {
			case h.output <- data:
			case <-h.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *sshHandle) Write(p []byte) (int, error) {
	return h.stdin.Write(p)
}

func (h *sshHandle) Output() <-chan []byte {
	return h.output
}

func (h *sshHandle) Close() error {
	h.once.Do(func() {
		close(h.done)
		h.session.Close()
		h.client.Close()
	})
	return nil
}
