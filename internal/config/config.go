package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	BasePath string `envconfig:"BASE_PATH" default:""`

	MaxConnections    int           `envconfig:"MAX_CONNECTIONS" default:"100"`
	ConnectionTimeout time.Duration `envconfig:"CONNECTION_TIMEOUT" default:"30s"`
	MessageSizeLimit  int64         `envconfig:"MESSAGE_SIZE_LIMIT" default:"65536"`
	HeartbeatInterval time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatTimeout  time.Duration `envconfig:"HEARTBEAT_TIMEOUT" default:"10s"`

	JWTSecret    string        `envconfig:"JWT_SECRET" default:"change-this-in-production"`
	JWTExpiresIn time.Duration `envconfig:"JWT_EXPIRES_IN" default:"15m"`

	// CredentialsFile, when set, switches the credential store from the
	// sqlite database to a read-only YAML user file.
	DatabasePath    string `envconfig:"DATABASE_PATH" default:"data/sshbridge.db"`
	CredentialsFile string `envconfig:"CREDENTIALS_FILE" default:""`
	LogPath         string `envconfig:"LOG_PATH" default:""`
}

var Cfg Settings

func Load() {
	if err := envconfig.Process("", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
