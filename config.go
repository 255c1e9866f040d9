package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"shoplist/popularity"
)

type config struct {
	Debug       bool
	ListenAddr  string
	Backend     string
	DataDir     string
	ConnStr     string
	ListsTable  string
	FeedQueue   string
	RedisConn   string
	CacheTTL    time.Duration
	RelayChan   string
	Suggestions int
	Policy      popularity.Policy
	Buffer      int
	KeepAlive   time.Duration
	Tracing     bool
}

func envInt(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return n, nil
}

func envDur(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}

func envBool(getenv func(string) string, key string) bool {
	b, err := strconv.ParseBool(getenv(key))
	return err == nil && b
}

func envStr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig(getenv func(string) string) (config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := config{
		Debug:      envBool(getenv, "DEBUG"),
		ListenAddr: ":" + envStr(getenv, "LISTEN_PORT", "8100"),
		Backend:    strings.ToLower(envStr(getenv, "STORAGE_BACKEND", "file")),
		DataDir:    envStr(getenv, "DATA_DIR", "./data"),
		ConnStr:    getenv("STORAGE_CONNECTION_STRING"),
		ListsTable: envStr(getenv, "LISTS_TABLE", "lists"),
		FeedQueue:  getenv("CHANGE_FEED_QUEUE"),
		RedisConn:  getenv("REDIS_CONNECTION_STRING"),
		RelayChan:  envStr(getenv, "RELAY_CHANNEL", "list-updates"),
		Tracing:    envBool(getenv, "TRACING_ENABLED"),
	}
	switch cfg.Backend {
	case "file":
	case "table":
		if cfg.ConnStr == "" {
			return cfg, fmt.Errorf("missing storage config: STORAGE_CONNECTION_STRING is required for the table backend")
		}
	default:
		return cfg, fmt.Errorf("invalid STORAGE_BACKEND %q", cfg.Backend)
	}
	if cfg.FeedQueue != "" && cfg.ConnStr == "" {
		return cfg, fmt.Errorf("missing storage config: CHANGE_FEED_QUEUE needs STORAGE_CONNECTION_STRING")
	}

	var err error
	if cfg.CacheTTL, err = envDur(getenv, "LIST_CACHE_TTL", 10*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.KeepAlive, err = envDur(getenv, "KEEPALIVE_INTERVAL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Suggestions, err = envInt(getenv, "SUGGESTIONS_LIMIT", 10); err != nil {
		return cfg, err
	}
	if cfg.Buffer, err = envInt(getenv, "SUBSCRIBER_BUFFER", 16); err != nil {
		return cfg, err
	}
	def := popularity.DefaultPolicy()
	if cfg.Policy.MinScore, err = envInt(getenv, "POPULARITY_MIN_SCORE", def.MinScore); err != nil {
		return cfg, err
	}
	if cfg.Policy.RenameSeed, err = envInt(getenv, "POPULARITY_RENAME_SEED", def.RenameSeed); err != nil {
		return cfg, err
	}
	if cfg.Policy.MigrationSeed, err = envInt(getenv, "POPULARITY_MIGRATION_SEED", def.MigrationSeed); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// redisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=true" connection string.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
