// Package config parses the server binary's CLI surface (spec §6). The
// teacher has no flag library of its own — internal/env is a static
// os.Getenv lookup table — so this follows the same low-ceremony approach
// by hand-parsing long-form "--flag value" / "--flag=value" pairs rather
// than reaching for a CLI framework the pack never uses.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Config is the fully-parsed CLI surface. Dir/DBFilename/AppendOnly are
// accepted and reported for redis-server CLI compatibility but otherwise
// unused: on-disk persistence is out of scope (spec §6 "Persisted state
// layout: out of scope").
type Config struct {
	Port       int
	Bind       string
	Dir        string
	DBFilename string
	AppendOnly bool

	// AdminPort serves internal/admin's /healthz, /metrics, /info surface
	// (SPEC_FULL.md addition, not part of spec.md's CLI surface) — kept on
	// the same Bind address, a separate port from the RESP listener.
	AdminPort int

	// ReplicaOf is nil for a master; when set, the binary starts a
	// replication.Client pointed at Host:Port in addition to the
	// replication.Master it always builds.
	ReplicaOf *ReplicaAddr
}

// ReplicaAddr is the parsed form of --replicaof "<host> <port>".
type ReplicaAddr struct {
	Host string
	Port int
}

// Default returns the flag defaults from spec §6 before any arguments are
// applied.
func Default() Config {
	return Config{
		Port:       6379,
		Bind:       "127.0.0.1",
		DBFilename: "dump.rdb",
		AdminPort:  16379,
	}
}

// Parse parses args (normally os.Args[1:]) into a Config, starting from
// Default(). It returns an error on an unknown flag, a missing value, or a
// value that fails to parse — the caller should exit non-zero in that case
// (spec §6: "non-zero on configuration parse errors").
func Parse(args []string) (Config, error) {
	cfg := Default()

	for i := 0; i < len(args); i++ {
		name, inlineValue, hasInline := splitFlag(args[i])
		if name == "" {
			return cfg, fmt.Errorf("config: unexpected argument %q", args[i])
		}

		// --appendonly is the one boolean flag and takes no value.
		if name == "appendonly" && !hasInline {
			cfg.AppendOnly = true
			continue
		}

		value := inlineValue
		if !hasInline {
			i++
			if i >= len(args) {
				return cfg, fmt.Errorf("config: --%s requires a value", name)
			}
			value = args[i]
		}

		if err := cfg.apply(name, value); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

func (cfg *Config) apply(name, value string) error {
	switch name {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: --port: %w", err)
		}
		cfg.Port = port
	case "bind":
		cfg.Bind = value
	case "admin-port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("config: --admin-port: %w", err)
		}
		cfg.AdminPort = port
	case "dir":
		cfg.Dir = value
	case "dbfilename":
		cfg.DBFilename = value
	case "appendonly":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: --appendonly: %w", err)
		}
		cfg.AppendOnly = b
	case "replicaof":
		addr, err := parseReplicaOf(value)
		if err != nil {
			return err
		}
		cfg.ReplicaOf = addr
	default:
		return fmt.Errorf("config: unknown flag --%s", name)
	}
	return nil
}

// splitFlag strips a "--" prefix and separates an "=value" suffix, e.g.
// "--port=6380" -> ("port", "6380", true); "--appendonly" -> ("appendonly", "", false).
func splitFlag(arg string) (name, value string, hasInline bool) {
	if !strings.HasPrefix(arg, "--") {
		return "", "", false
	}
	rest := strings.TrimPrefix(arg, "--")
	if eq := strings.IndexByte(rest, '='); eq >= 0 {
		return rest[:eq], rest[eq+1:], true
	}
	return rest, "", false
}

// parseReplicaOf parses "<host> <port>" as one argument, matching spec
// §6's `--replicaof "<host> <port>"` form.
func parseReplicaOf(value string) (*ReplicaAddr, error) {
	fields := strings.Fields(value)
	if len(fields) != 2 {
		return nil, errors.New("config: --replicaof expects \"<host> <port>\"")
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("config: --replicaof port: %w", err)
	}
	return &ReplicaAddr{Host: fields[0], Port: port}, nil
}
