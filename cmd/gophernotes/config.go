package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/gophernotes/internal/logger"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction

	// Length of generated development secrets
	secretBytesLen = 32
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the gophernotes service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secrets to sign access and refresh JWT. Must differ
	AccessSecret  string
	RefreshSecret string

	// Environment: dev or prod
	Environment string

	// Directory with static frontend pages. Optional
	WebDir string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		Environment: defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"JWT_SECRET":         setString(&c.AccessSecret),
		"JWT_REFRESH_SECRET": setString(&c.RefreshSecret),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"WEB_DIR":            setString(&c.WebDir),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("gophernotes", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.AccessSecret, "secret", "s", c.AccessSecret, "Access token secret")
	fs.StringVarP(&c.RefreshSecret, "refresh-secret", "r", c.RefreshSecret, "Refresh token secret")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVarP(&c.WebDir, "web-dir", "w", c.WebDir, "Directory with frontend pages")

	return fs.Parse(args)
}

// Validate checks the config is runnable
// In development missing secrets are generated, so call it after EnsureSecrets
func (c *Config) Validate() error {
	switch c.Environment {
	case logger.EnvDevelopment, logger.EnvProduction:
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if c.DatabaseDSN == "" {
		return errors.New("database DSN is required")
	}
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("both JWT_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}

	return nil
}

// EnsureSecrets fills missing secrets with random ones in development
// Returns names of generated secrets. In production does nothing
func (c *Config) EnsureSecrets() ([]string, error) {
	if c.Environment != logger.EnvDevelopment {
		return nil, nil
	}

	var generated []string
	for _, s := range []struct {
		name  string
		value *string
	}{
		{"JWT_SECRET", &c.AccessSecret},
		{"JWT_REFRESH_SECRET", &c.RefreshSecret},
	} {
		if *s.value != "" {
			continue
		}

		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		*s.value = secret
		generated = append(generated, s.name)
	}

	return generated, nil
}

func randomSecret() (string, error) {
	b := make([]byte, secretBytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("error while generating secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
