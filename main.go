package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/euem/sshbridge/internal/auth"
	"github.com/euem/sshbridge/internal/config"
	"github.com/euem/sshbridge/internal/credstore"
	"github.com/euem/sshbridge/internal/database"
	"github.com/euem/sshbridge/internal/logging"
	"github.com/euem/sshbridge/internal/server"
	"github.com/euem/sshbridge/internal/shell"
	"github.com/euem/sshbridge/internal/token"
)

func main() {
	// Handle CLI commands before starting the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--add-user":
			runCLICommand("add-user")
			return
		case "--reset-password":
			runCLICommand("reset-password")
			return
		}
	}

	config.Load()
	logging.Init()
	defer logging.Close()

	store, err := openCredentialStore()
	if err != nil {
		log.Fatalf("Credential store init: %v", err)
	}
	defer database.Close()

	srv := server.New(server.Options{
		Verifier:          auth.NewVerifier(store),
		Tokens:            token.NewService(config.Cfg.JWTSecret, config.Cfg.JWTExpiresIn),
		Dialer:            shell.NewSSHDialer(config.Cfg.ConnectionTimeout),
		BasePath:          config.Cfg.BasePath,
		MaxConnections:    config.Cfg.MaxConnections,
		ConnectTimeout:    config.Cfg.ConnectionTimeout,
		HeartbeatInterval: config.Cfg.HeartbeatInterval,
		HeartbeatTimeout:  config.Cfg.HeartbeatTimeout,
		MessageSizeLimit:  config.Cfg.MessageSizeLimit,
	})

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Cfg.Port),
		Handler: srv.Router(),
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("SSH WebSocket bridge listening on :%d (base path %q)", config.Cfg.Port, config.Cfg.BasePath)
		log.Printf("Max connections: %d, message size limit: %dKB, token expiry: %s",
			config.Cfg.MaxConnections, config.Cfg.MessageSizeLimit/1024, config.Cfg.JWTExpiresIn)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-sigCtx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}
	log.Println("Server stopped")
}

// openCredentialStore selects the YAML file store when CREDENTIALS_FILE is
// set, and the sqlite store otherwise.
func openCredentialStore() (credstore.Store, error) {
	if config.Cfg.CredentialsFile != "" {
		fs, err := credstore.LoadFile(config.Cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded %d users from %s", fs.Len(), config.Cfg.CredentialsFile)
		return fs, nil
	}

	if err := database.Init(); err != nil {
		return nil, err
	}
	return credstore.NewDBStore(), nil
}

func runCLICommand(command string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password")
	role := fs.String("role", "user", "Role (admin or user)")
	permissions := fs.String("permissions", "ssh:connect,ssh:data,ssh:disconnect", "Comma-separated permissions")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		fmt.Fprintf(os.Stderr, "Usage: sshbridge --%s --username <user> --password <pass>\n", command)
		os.Exit(1)
	}

	config.Load()
	if err := database.Init(); err != nil {
		log.Fatalf("Database init: %v", err)
	}
	defer database.Close()

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	switch command {
	case "add-user":
		perms := *permissions
		if *role == "admin" {
			perms = strings.Join([]string{"ssh:connect", "ssh:data", "ssh:disconnect", "system:monitor"}, ",")
		}
		user := &database.User{
			Username:     *username,
			PasswordHash: hash,
			Role:         *role,
			Permissions:  perms,
		}
		if err := database.CreateUser(user); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		fmt.Printf("User '%s' created with role %s.\n", *username, *role)

	case "reset-password":
		user, err := database.GetUserByUsername(*username)
		if err != nil {
			log.Fatalf("User '%s' not found", *username)
		}
		if err := database.UpdateUserPassword(user.ID, hash); err != nil {
			log.Fatalf("Failed to update password: %v", err)
		}
		fmt.Printf("Password reset for '%s'. Existing tokens expire within %s.\n", *username, config.Cfg.JWTExpiresIn)
	}
}
