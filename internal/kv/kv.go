// Package kv implements the durable key-value stores the appointment list
// and the dispatcher's fired set live in. Each backend satisfies types.KV.
package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/rendezvous/pkg/types"
)

// ErrClosed is returned by operations on a backend after Close.
var ErrClosed = errors.New("kv backend is closed")

// ErrInvalidKey is returned for keys that are empty or contain path
// separators.
var ErrInvalidKey = errors.New("invalid key")

// Open validates cfg and returns the selected backend, ready for use.
// The caller must Close it.
func Open(ctx context.Context, cfg types.Config) (types.KV, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case types.BackendFile:
		return OpenFile(cfg.DataDir)
	case types.BackendSQLite:
		return OpenSQLite(ctx, cfg.DataDir)
	case types.BackendRedis:
		return OpenRedis(ctx, cfg.RedisAddr)
	case types.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrBackendUnknown, cfg.Backend)
	}
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
