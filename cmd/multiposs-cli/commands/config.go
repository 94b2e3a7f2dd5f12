package commands

import (
	"context"
	"errors"
	"fmt"
	"multiposs/lib/configutil"
	"multiposs/lib/multiposs"
	"multiposs/lib/restyutil"
	"os"
	"time"
)

type Config struct {
	BaseUrl          string `json:"base_url"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`
}

const (
	usernameEnv = "MULTIPOSS_USERNAME"
	passwordEnv = "MULTIPOSS_PASSWORD"
)

// readConfig reads the config file if it exists, credentials from the
// environment take priority over the file.
func readConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if username, ok := os.LookupEnv(usernameEnv); ok {
		cfg.Username = username
	}
	if password, ok := os.LookupEnv(passwordEnv); ok {
		cfg.Password = password
	}

	if cfg.Username == "" || cfg.Password == "" {
		return Config{}, fmt.Errorf(
			"no credentials, set username and password in %s or %s and %s",
			path, usernameEnv, passwordEnv,
		)
	}
	return cfg, nil
}

func createClient(ctx context.Context) (*multiposs.Client, error) {
	cfg, err := readConfig(*configPath)
	if err != nil {
		return nil, err
	}

	opts := multiposs.ClientOptions{
		BaseUrl:          cfg.BaseUrl,
		Username:         cfg.Username,
		Password:         cfg.Password,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		CloudflareBypass: cfg.CloudflareBypass,
	}
	if *dumpHttp != "" {
		out, err := restyutil.NewFilesystemOutput(*dumpHttp)
		if err != nil {
			return nil, fmt.Errorf("prepare http dump directory: %w", err)
		}
		opts.InstrumentOutput = out
	}

	return multiposs.NewClient(ctx, opts)
}
