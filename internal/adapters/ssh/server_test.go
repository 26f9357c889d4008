package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

const (
	testUser     = "pilot"
	testPassword = "hunter2"
)

// reply is what the test server answers to one exec request.
type reply struct {
	stdout string
	stderr string
	code   int
	block  bool // never answer; used for timeout tests
}

type execRequest struct {
	command string
	tty     bool
}

// testServer is a minimal SSH server that accepts password auth for testUser
// and, optionally, one public key.
type testServer struct {
	addr     string
	accepts  atomic.Int32
	handler  func(execRequest) reply
	listener net.Listener

	mu       sync.Mutex
	requests []execRequest
	conns    []net.Conn
}

func newTestServer(t *testing.T, authorized gossh.PublicKey, handler func(execRequest) reply) *testServer {
	t.Helper()

	_, hostPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostSigner, err := gossh.NewSignerFromKey(hostPriv)
	require.NoError(t, err)

	cfg := &gossh.ServerConfig{
		PasswordCallback: func(c gossh.ConnMetadata, pass []byte) (*gossh.Permissions, error) {
			if c.User() == testUser && string(pass) == testPassword {
				return nil, nil
			}
			return nil, errors.New("password rejected")
		},
		PublicKeyCallback: func(c gossh.ConnMetadata, key gossh.PublicKey) (*gossh.Permissions, error) {
			if authorized != nil && c.User() == testUser && string(key.Marshal()) == string(authorized.Marshal()) {
				return nil, nil
			}
			return nil, errors.New("key rejected")
		},
	}
	cfg.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &testServer{addr: ln.Addr().String(), handler: handler, listener: ln}
	t.Cleanup(srv.close)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			srv.accepts.Add(1)
			srv.mu.Lock()
			srv.conns = append(srv.conns, conn)
			srv.mu.Unlock()
			go srv.serve(conn, cfg)
		}
	}()

	return srv
}

func (srv *testServer) host() string {
	h, _, _ := net.SplitHostPort(srv.addr)
	return h
}

func (srv *testServer) port() int {
	_, p, _ := net.SplitHostPort(srv.addr)
	n, _ := strconv.Atoi(p)
	return n
}

func (srv *testServer) commands() []execRequest {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return append([]execRequest(nil), srv.requests...)
}

// dropConnections closes every accepted connection, as a network failure would.
func (srv *testServer) dropConnections() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for _, c := range srv.conns {
		_ = c.Close()
	}
	srv.conns = nil
}

func (srv *testServer) close() {
	_ = srv.listener.Close()
	srv.dropConnections()
}

func (srv *testServer) serve(conn net.Conn, cfg *gossh.ServerConfig) {
	_, chans, reqs, err := gossh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go gossh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(gossh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go srv.session(ch, chReqs)
	}
}

func (srv *testServer) session(ch gossh.Channel, reqs <-chan *gossh.Request) {
	defer ch.Close()

	tty := false
	for req := range reqs {
		switch req.Type {
		case "pty-req":
			tty = true
			_ = req.Reply(true, nil)
		case "exec":
			var payload struct{ Command string }
			if err := gossh.Unmarshal(req.Payload, &payload); err != nil {
				_ = req.Reply(false, nil)
				return
			}
			_ = req.Reply(true, nil)

			r := execRequest{command: payload.Command, tty: tty}
			srv.mu.Lock()
			srv.requests = append(srv.requests, r)
			srv.mu.Unlock()

			out := srv.handler(r)
			if out.block {
				// Stdin EOF arrives at once; hold the channel until the client closes it.
				for range reqs {
				}
				return
			}
			_, _ = io.WriteString(ch, out.stdout)
			_, _ = io.WriteString(ch.Stderr(), out.stderr)
			status := struct{ Status uint32 }{uint32(out.code)}
			_, _ = ch.SendRequest("exit-status", false, gossh.Marshal(&status))
			return
		default:
			_ = req.Reply(false, nil)
		}
	}
}
