//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the rendezvous project using Mage.
//
// Usage:
//
//	mage build          Compile the rendezvous binary to bin/
//	mage test:all       Run all tests
//	mage test:unit      Run tests that need no external services
//	mage test:redis     Run the redis backend tests against RENDEZVOUS_TEST_REDIS_ADDR
//	mage test:cover     Run all tests with a coverage profile
//	mage lint           Run golangci-lint
//	mage vet            Run go vet
//	mage clean          Remove build artifacts
//	mage install        Install rendezvous to GOPATH/bin
//	mage stats          Print Go LOC and documentation word counts
package main
