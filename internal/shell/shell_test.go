package shell

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// startSSHServer runs an in-process SSH server that accepts the given
// password (and any public key when allowKeys is true) and echoes session
// input back to the client.
func startSSHServer(t *testing.T, password string, allowKeys bool) (host string, port int, cleanup func()) {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if string(pass) == password {
				return &ssh.Permissions{}, nil
			}
			return nil, io.EOF
		},
	}
	if allowKeys {
		config.PublicKeyCallback = func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{}, nil
		}
	}
	config.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	var conns []net.Conn
	var connsMu sync.Mutex

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			netConn, err := listener.Accept()
			if err != nil {
				return
			}
			connsMu.Lock()
			conns = append(conns, netConn)
			connsMu.Unlock()
			go handleTestConn(netConn, config)
		}
	}()

	addr := listener.Addr().String()
	h, p, _ := net.SplitHostPort(addr)
	portNum, _ := strconv.Atoi(p)

	return h, portNum, func() {
		listener.Close()
		connsMu.Lock()
		for _, c := range conns {
			c.Close()
		}
		connsMu.Unlock()
		<-done
	}
}

func handleTestConn(netConn net.Conn, config *ssh.ServerConfig) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := newCh.Accept()
		if err != nil {
			continue
		}
		go func(in <-chan *ssh.Request) {
			for req := range in {
				switch req.Type {
				case "pty-req", "shell":
					req.Reply(true, nil)
				default:
					req.Reply(false, nil)
				}
			}
		}(requests)
		go func(ch ssh.Channel) {
			defer ch.Close()
			io.Copy(ch, ch)
		}(ch)
	}
}

func TestSSHDialer_PasswordAuth(t *testing.T) {
	host, port, cleanup := startSSHServer(t, "secret", false)
	defer cleanup()

	d := NewSSHDialer(5 * time.Second)
	h, err := d.Open(context.Background(), Config{
		Host:       host,
		Port:       port,
		Identifier: "testuser",
		AuthMethod: AuthPassword,
		Password:   "secret",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer h.Close()

	if _, err := h.Write([]byte("hello shell\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := readUntil(t, h, "hello shell")
	if !strings.Contains(got, "hello shell") {
		t.Errorf("expected echoed input, got %q", got)
	}
}

func TestSSHDialer_WrongPassword(t *testing.T) {
	host, port, cleanup := startSSHServer(t, "secret", false)
	defer cleanup()

	d := NewSSHDialer(5 * time.Second)
	_, err := d.Open(context.Background(), Config{
		Host:       host,
		Port:       port,
		Identifier: "testuser",
		AuthMethod: AuthPassword,
		Password:   "wrong",
	})
	if err == nil {
		t.Fatal("expected handshake failure for wrong password")
	}
}

func TestSSHDialer_KeyAuth(t *testing.T) {
	host, port, cleanup := startSSHServer(t, "unused", true)
	defer cleanup()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	privPEM := pem.EncodeToMemory(block)

	d := NewSSHDialer(5 * time.Second)
	h, err := d.Open(context.Background(), Config{
		Host:       host,
		Port:       port,
		Identifier: "testuser",
		AuthMethod: AuthKey,
		PrivateKey: string(privPEM),
	})
	if err != nil {
		t.Fatalf("Open with key auth: %v", err)
	}
	h.Close()
}

func TestSSHDialer_BadPrivateKey(t *testing.T) {
	d := NewSSHDialer(time.Second)
	_, err := d.Open(context.Background(), Config{
		Host:       "127.0.0.1",
		Identifier: "testuser",
		AuthMethod: AuthKey,
		PrivateKey: "not a key",
	})
	if err == nil {
		t.Fatal("expected error for unparsable private key")
	}
}

func TestSSHDialer_UnreachableHost(t *testing.T) {
	d := NewSSHDialer(500 * time.Millisecond)
	_, err := d.Open(context.Background(), Config{
		Host:       "127.0.0.1",
		Port:       1, // nothing listens here
		Identifier: "testuser",
		AuthMethod: AuthPassword,
		Password:   "x",
	})
	if err == nil {
		t.Fatal("expected dial error for unreachable host")
	}
}

func TestSSHDialer_UnsupportedAuthMethod(t *testing.T) {
	d := NewSSHDialer(time.Second)
	_, err := d.Open(context.Background(), Config{
		Host:       "127.0.0.1",
		Identifier: "testuser",
		AuthMethod: "kerberos",
	})
	if err == nil {
		t.Fatal("expected error for unsupported auth method")
	}
}

func TestHandle_CloseIdempotent(t *testing.T) {
	host, port, cleanup := startSSHServer(t, "secret", false)
	defer cleanup()

	d := NewSSHDialer(5 * time.Second)
	h, err := d.Open(context.Background(), Config{
		Host:       host,
		Port:       port,
		Identifier: "testuser",
		AuthMethod: AuthPassword,
		Password:   "secret",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h.Close()
	h.Close() // second close must be a no-op
}

// readUntil drains the handle output until the wanted substring appears or
// a timeout elapses.
func readUntil(t *testing.T, h Handle, want string) string {
	t.Helper()
	var sb strings.Builder
	deadline := time.After(5 * time.Second)
	for {
		select {
		case data, ok := <-h.Output():
			if !ok {
				return sb.String()
			}
			sb.Write(data)
			if strings.Contains(sb.String(), want) {
				return sb.String()
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q, got %q", want, sb.String())
		}
	}
}
