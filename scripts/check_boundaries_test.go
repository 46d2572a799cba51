package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContestServiceRespectsLayerBoundaries(t *testing.T) {
	violations := collectViolations(filepath.Join("..", "contexts"))
	assert.Empty(t, violations)
}

func writeSource(t *testing.T, root string, rel string, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestCollectViolationsReportsLayerBreaks(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "community/contest/domain/a.go", `package domain

import (
	"strings"

	"photocontest/internal/platform/db"
)
`)
	writeSource(t, root, "community/contest/application/b.go", `package application

import (
	"github.com/google/uuid"

	"photocontest/contexts/community/contest/adapters/memory"
	"photocontest/contexts/community/contest/ports"
)
`)
	writeSource(t, root, "community/contest/ports/c.go", `package ports

import (
	"photocontest/contexts/other/service/domain"
	"photocontest/internal/shared/events"
)
`)
	writeSource(t, root, "community/contest/adapters/d.go", `package adapters

import "gorm.io/gorm"
`)
	writeSource(t, root, "community/contest/domain/a_test.go", `package domain

import "github.com/stretchr/testify/assert"
`)

	got := make(map[string][]string)
	for _, v := range collectViolations(root) {
		got[v.File] = append(got[v.File], v.Rule)
	}

	assert.ElementsMatch(t, []string{
		"domain must not import runtime infrastructure",
		"domain import is outside explicit allowlist",
	}, got["contexts/community/contest/domain/a.go"])
	assert.ElementsMatch(t, []string{
		"application import is outside explicit allowlist",
		"application must not import adapters",
		"application import is outside explicit allowlist",
	}, got["contexts/community/contest/application/b.go"])
	assert.ElementsMatch(t, []string{
		"cross-service imports are forbidden",
		"ports import is outside explicit allowlist",
	}, got["contexts/community/contest/ports/c.go"])
	assert.NotContains(t, got, "contexts/community/contest/adapters/d.go")
	assert.NotContains(t, got, "contexts/community/contest/domain/a_test.go")
}

func TestIsStdlib(t *testing.T) {
	assert.True(t, isStdlib("log/slog"))
	assert.False(t, isStdlib("github.com/google/uuid"))
	assert.False(t, isStdlib("photocontest/internal/shared/events"))
}
