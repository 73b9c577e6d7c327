//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	envRedisAddr = "RENDEZVOUS_TEST_REDIS_ADDR"
	coverProfile = "coverage.out"
)

// Test groups test targets.
type Test mg.Namespace

// All runs all tests. Redis tests run only when RENDEZVOUS_TEST_REDIS_ADDR is set.
func (Test) All() error {
	return sh.RunV(binGo, "test", "-v", "./...")
}

// Unit runs all tests with the redis address cleared so no external service
// is contacted.
func (Test) Unit() error {
	env := map[string]string{envRedisAddr: ""}
	return sh.RunWithV(env, binGo, "test", "./...")
}

// Redis runs the key-value backend tests against a live redis server.
func (Test) Redis() error {
	if os.Getenv(envRedisAddr) == "" {
		return fmt.Errorf("%s must point at a redis server (e.g. localhost:6379)", envRedisAddr)
	}
	return sh.RunV(binGo, "test", "-v", "-run", "KV", "./internal/kv/...")
}

// Cover runs all tests with a coverage profile and prints the per-function summary.
func (Test) Cover() error {
	if err := sh.RunV(binGo, "test", "-coverprofile="+coverProfile, "./..."); err != nil {
		return err
	}
	return sh.RunV(binGo, "tool", "cover", "-func="+coverProfile)
}
