package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunStopsOnCancel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := run(ctx, []string{"-addr", "127.0.0.1:0", "-models", filepath.Join(t.TempDir(), "none")})
	assert.NoError(t, err)
}

func TestRunBadFlag(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	assert.Error(t, run(context.Background(), []string{"-nope"}))
}

func TestRunLogLevelFlagOverridesEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose")
	assert.Error(t, run(context.Background(), []string{"-models", t.TempDir()}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := run(ctx, []string{"-log-level", "error", "-addr", "127.0.0.1:0", "-models", filepath.Join(t.TempDir(), "none")})
	assert.NoError(t, err)
}
