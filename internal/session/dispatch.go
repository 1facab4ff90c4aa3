package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"runtime"
	"time"

	"github.com/euem/sshbridge/internal/auth"
	"github.com/euem/sshbridge/internal/protocol"
	"github.com/euem/sshbridge/internal/shell"
)

// Capability tokens required per operation.
const (
	PermConnect    = "ssh:connect"
	PermData       = "ssh:data"
	PermDisconnect = "ssh:disconnect"
	PermMonitor    = "system:monitor"
)

// dispatch routes one inbound frame. Authentication is checked before the
// type switch; permissions are checked per operation.
func (s *Session) dispatch(ctx context.Context, data []byte) {
	var msg protocol.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(ctx, protocol.ErrInvalidMessage)
		return
	}

	if !s.authenticated && msg.Type != protocol.TypeAuth {
		s.sendError(ctx, protocol.ErrAuthRequired)
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		s.handleAuth(ctx, msg)

	case protocol.TypeRefreshToken:
		s.handleRefreshToken(ctx)

	case protocol.TypePing:
		s.send(ctx, protocol.NewPong(time.Now().UnixMilli()))

	case protocol.TypeConnect:
		if !s.validateSession(ctx) || !s.checkPermission(ctx, PermConnect) {
			return
		}
		s.handleConnect(ctx, msg.Config)

	case protocol.TypeData:
		if !s.validateSession(ctx) || !s.checkPermission(ctx, PermData) {
			return
		}
		s.handleData(ctx, msg.Data)

	case protocol.TypeDisconnect:
		if !s.validateSession(ctx) || !s.checkPermission(ctx, PermDisconnect) {
			return
		}
		s.releaseShell()

	case protocol.TypeStatus:
		if !s.validateSession(ctx) || !s.checkPermission(ctx, PermMonitor) {
			return
		}
		s.handleStatus(ctx)

	default:
		s.sendError(ctx, protocol.ErrUnknownType)
	}
}

func (s *Session) handleAuth(ctx context.Context, msg protocol.ClientMessage) {
	if msg.Identifier == "" || msg.Secret == "" {
		s.sendError(ctx, protocol.ErrMissingCredentials)
		return
	}

	principal, err := s.opts.Verifier.Verify(msg.Identifier, msg.Secret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.sendError(ctx, protocol.ErrInvalidCredentials)
		} else {
			log.Printf("[session %s] credential lookup: %v", s.id, err)
			s.sendError(ctx, protocol.ErrAuthFailed)
		}
		return
	}

	tok, err := s.opts.Tokens.Issue(principal)
	if err != nil {
		log.Printf("[session %s] issue token: %v", s.id, err)
		s.sendError(ctx, protocol.ErrAuthFailed)
		return
	}

	s.authenticated = true
	s.principal = principal
	s.token = tok

	s.send(ctx, protocol.NewAuthSuccess(tok, protocol.UserSummary{
		Identifier:  principal.Identifier,
		Role:        principal.Role,
		Permissions: principal.Permissions,
	}))
	log.Printf("[session %s] user %s authenticated", s.id, principal.Identifier)
}

func (s *Session) handleRefreshToken(ctx context.Context) {
	if !s.validateSession(ctx) {
		return
	}

	tok, err := s.opts.Tokens.Rotate(s.principal)
	if err != nil {
		log.Printf("[session %s] rotate token: %v", s.id, err)
		s.sendError(ctx, protocol.ErrAuthFailed)
		return
	}
	s.token = tok
	s.send(ctx, protocol.NewTokenRefreshed(tok))
	log.Printf("[session %s] token refreshed for user %s", s.id, s.principal.Identifier)
}

func (s *Session) handleConnect(ctx context.Context, cfg *protocol.ConnectConfig) {
	if cfg == nil || cfg.Host == "" || cfg.Identifier == "" {
		s.sendError(ctx, protocol.ErrMissingShellConfig)
		return
	}

	// An existing shell must be fully released before a new one begins.
	s.releaseShell()

	shellCfg := shell.Config{
		Host:       cfg.Host,
		Identifier: cfg.Identifier,
		Port:       cfg.Port,
		AuthMethod: cfg.AuthMethod,
		Password:   cfg.Secret,
		PrivateKey: cfg.PrivateKey,
	}

	s.connecting = true
	s.deadline = time.NewTimer(s.opts.ConnectTimeout)
	seq := s.shellSeq
	log.Printf("[session %s] connecting to %s", s.id, cfg.Host)

	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
		h, err := s.opts.Dialer.Open(dialCtx, shellCfg)
		if !s.post(dialResult{seq: seq, handle: h, err: err}) && h != nil {
			h.Close()
		}
	}()
}

// handleDialResult attaches a freshly opened shell, or surfaces the dial
// error. Results from an invalidated connect attempt (deadline fired, shell
// released, re-connect issued) only close the stray handle.
func (s *Session) handleDialResult(ctx context.Context, ev dialResult) {
	if ev.seq != s.shellSeq {
		if ev.handle != nil {
			ev.handle.Close()
		}
		return
	}

	s.connecting = false
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}

	if ev.err != nil {
		log.Printf("[session %s] remote shell connect failed: %v", s.id, ev.err)
		s.sendError(ctx, ev.err.Error())
		return
	}

	s.handle = ev.handle
	s.send(ctx, protocol.NewConnected())
	log.Printf("[session %s] remote shell established", s.id)

	go func(seq int, h shell.Handle) {
		for data := range h.Output() {
			if !s.post(shellOutput{seq: seq, data: data}) {
				return
			}
		}
		s.post(shellClosed{seq: seq})
	}(s.shellSeq, ev.handle)
}

func (s *Session) handleData(ctx context.Context, data string) {
	if s.handle == nil {
		return
	}
	if _, err := s.handle.Write([]byte(data)); err != nil {
		log.Printf("[session %s] remote shell write failed: %v", s.id, err)
		s.releaseShell()
		s.sendError(ctx, err.Error())
	}
}

func (s *Session) handleStatus(ctx context.Context) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	s.send(ctx, protocol.NewStatus(protocol.StatusData{
		ActiveConnections: s.opts.Gate.Active(),
		MaxConnections:    s.opts.Gate.Ceiling(),
		Authenticated:     s.authenticated,
		User: &protocol.UserSummary{
			Identifier: s.principal.Identifier,
			Role:       s.principal.Role,
		},
		UptimeSeconds: time.Since(s.opts.StartedAt).Seconds(),
		Memory: protocol.MemoryStats{
			AllocBytes:    mem.Alloc,
			SysBytes:      mem.Sys,
			NumGoroutines: runtime.NumGoroutine(),
		},
	}))
}

// validateSession re-verifies the session token before a privileged
// operation. On failure the session drops back to unauthenticated: the
// principal is cleared and any attached shell is released immediately. On
// success the in-memory principal is refreshed from the token claims, so a
// rotated token's permissions take effect at once.
func (s *Session) validateSession(ctx context.Context) bool {
	if !s.authenticated || s.token == "" {
		s.sendError(ctx, protocol.ErrSessionInvalid)
		return false
	}

	principal, err := s.opts.Tokens.Validate(s.token)
	if err != nil {
		s.authenticated = false
		s.principal = nil
		s.token = ""
		s.releaseShell()
		s.sendError(ctx, protocol.ErrSessionInvalid)
		log.Printf("[session %s] token validation failed, re-authentication required", s.id)
		return false
	}

	s.principal = principal
	return true
}

func (s *Session) checkPermission(ctx context.Context, perm string) bool {
	if !s.principal.HasPermission(perm) {
		s.sendError(ctx, protocol.ErrPermissionDenied)
		return false
	}
	return true
}
