// Package protocol defines the JSON frames exchanged with clients over the
// WebSocket channel. Every frame is one JSON object discriminated by "type".
package protocol

// Inbound message types.
const (
	TypeAuth         = "auth"
	TypeRefreshToken = "refresh_token"
	TypePing         = "ping"
	TypeConnect      = "connect"
	TypeData         = "data"
	TypeDisconnect   = "disconnect"
	TypeStatus       = "status"
)

// Error strings sent in Error frames.
const (
	ErrAuthRequired       = "Authentication required"
	ErrInvalidCredentials = "Invalid credentials"
	ErrMissingCredentials = "Identifier and secret required"
	ErrSessionInvalid     = "Session invalid, please re-authenticate"
	ErrPermissionDenied   = "Permission denied"
	ErrUnknownType        = "Unknown message type"
	ErrInvalidMessage     = "Invalid message format"
	ErrAuthFailed         = "Authentication failed"
	ErrConnectionTimeout  = "Connection timeout"
	ErrMissingShellConfig = "Missing required connection configuration (host, identifier)"
)

// ConnectConfig describes the remote shell target in a connect frame.
type ConnectConfig struct {
	Host       string `json:"host"`
	Identifier string `json:"identifier"`
	Port       int    `json:"port,omitempty"`
	AuthMethod string `json:"authMethod"`
	Secret     string `json:"secret,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// ClientMessage is the union of all inbound frames.
type ClientMessage struct {
	Type       string         `json:"type"`
	Identifier string         `json:"identifier,omitempty"`
	Secret     string         `json:"secret,omitempty"`
	Config     *ConnectConfig `json:"config,omitempty"`
	Data       string         `json:"data,omitempty"`
}

// UserSummary is the principal view embedded in outbound frames.
type UserSummary struct {
	Identifier  string   `json:"identifier"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

type AuthSuccess struct {
	Type  string      `json:"type"`
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type Connected struct {
	Type string `json:"type"`
}

type Data struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

type Closed struct {
	Type string `json:"type"`
}

type Pong struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type TokenRefreshed struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// MemoryStats is a snapshot of process memory counters for status frames.
type MemoryStats struct {
	AllocBytes    uint64 `json:"allocBytes"`
	SysBytes      uint64 `json:"sysBytes"`
	NumGoroutines int    `json:"numGoroutines"`
}

// StatusData is the read-only snapshot returned for a status frame. User is
// truncated to identifier and role.
type StatusData struct {
	ActiveConnections int          `json:"activeConnections"`
	MaxConnections    int          `json:"maxConnections"`
	Authenticated     bool         `json:"authenticated"`
	User              *UserSummary `json:"user"`
	UptimeSeconds     float64      `json:"uptime"`
	Memory            MemoryStats  `json:"memoryUsage"`
}

type Status struct {
	Type string     `json:"type"`
	Data StatusData `json:"data"`
}

// Constructors stamp the discriminator so call sites cannot mismatch it.

func NewAuthSuccess(token string, user UserSummary) AuthSuccess {
	return AuthSuccess{Type: "auth_success", Token: token, User: user}
}

func NewError(msg string) Error {
	return Error{Type: "error", Error: msg}
}

func NewConnected() Connected {
	return Connected{Type: "connected"}
}

func NewData(data string) Data {
	return Data{Type: "data", Data: data}
}

func NewClosed() Closed {
	return Closed{Type: "closed"}
}

func NewPong(timestampMillis int64) Pong {
	return Pong{Type: "pong", Timestamp: timestampMillis}
}

func NewTokenRefreshed(token string) TokenRefreshed {
	return TokenRefreshed{Type: "token_refreshed", Token: token}
}

func NewStatus(data StatusData) Status {
	return Status{Type: "status", Data: data}
}
