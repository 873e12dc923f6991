// ABOUTME: Entry point for the arcstate-server state daemon
// ABOUTME: Subcommands for serving, config init, token minting, and health probes

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/arcstate/arcstate/internal/auth"
	"github.com/arcstate/arcstate/internal/config"
	"github.com/arcstate/arcstate/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                     _        _
  __ _ _ __ ___  ___| |_ __ _| |_ ___
 / _' | '__/ __|/ __| __/ _' | __/ _ \
| (_| | | | (__ \__ \ || (_| | ||  __/
 \__,_|_|  \___||___/\__\__,_|\__\___|
`

// getConfigPath returns the path to the server config file.
// Priority: ARCSTATE_CONFIG env var > XDG_CONFIG_HOME/arcstate/server.yaml
// > ~/.config/arcstate/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ARCSTATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "arcstate", "server.yaml")
}

// getDataPath returns the path to the arcstate data directory.
// Priority: XDG_DATA_HOME/arcstate > ~/.local/share/arcstate
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "arcstate")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: arcstate-server <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the state server")
		fmt.Println("  init      Create a config file with defaults")
		fmt.Println("  token     Mint a client token (requires auth.jwt_secret)")
		fmt.Println("  health    Check server health")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Storage:  %s", cfg.Storage.Backend)
	if cfg.Storage.Path != "" {
		gray.Printf(" (%s)", cfg.Storage.Path)
	}
	fmt.Println()
	if cfg.Auth.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Auth:     ")
		cyan.Println("enabled")
	} else {
		yellow.Print("    ▶ ")
		fmt.Println("Auth:     disabled")
	}

	fmt.Println()

	logger.Info("starting arcstate-server",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Storage.Backend,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	// Generate a random JWT secret so enabling auth is a one-line edit.
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	dataPath := getDataPath()
	statePath := filepath.Join(dataPath, "state.db")

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# arcstate-server configuration
# Generated by arcstate-server init

server:
  http_addr: "localhost:8155"
  shutdown_timeout: "5s"

storage:
  backend: "sqlite"
  path: "%s"

preferences:
  prefix: "_arc_"

workspace:
  prefix: "_arcworkspace"
  flush_delay: "500ms"

auth:
  enabled: false
  jwt_secret: "%s"

logging:
  level: "info"
  format: "text"
`, statePath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	green.Printf("  ✓ Data directory: %s\n", dataPath)
	fmt.Println("\nTo start the server:")
	fmt.Println("  arcstate-server serve")

	return nil
}

func runToken() error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "Subject (client name) for the token")
	ttl := fs.Duration("ttl", 30*24*time.Hour, "Token lifetime")
	if err := fs.Parse(os.Args[2:]); err != nil {
		return err
	}

	if *subject == "" {
		return fmt.Errorf("--subject is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured")
	}

	verifier, err := auth.NewVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	token, err := verifier.Generate(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
