// Copyright 2025 The go-perfmeasure Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sets.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEventSets(t *testing.T) {
	path := writeSets(t, `
cache:
  - cache-references
  - cache-misses
frontend:
  - instructions
  - branch-misses
`)
	sets, err := loadEventSets(path)
	require.NoError(t, err)
	assert.Equal(t, eventSets{
		"cache":    {"cache-references", "cache-misses"},
		"frontend": {"instructions", "branch-misses"},
	}, sets)
}

func TestLoadEventSetsErrors(t *testing.T) {
	_, err := loadEventSets(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := writeSets(t, "not: [valid: yaml")
	_, err = loadEventSets(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error parsing event sets")
}

func TestListCommand(t *testing.T) {
	path := writeSets(t, "cache: [cache-misses]\n")

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"list", "--sets", path})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "instructions")
	assert.Contains(t, out.String(), "context-switches")
	assert.Contains(t, out.String(), "cache: [cache-misses]")
}

func TestWalkDeterministic(t *testing.T) {
	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = byte(i)
	}
	assert.Equal(t, walk(buf), walk(buf))
}
