package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPrintsVersion(t *testing.T) {
	var stderr bytes.Buffer
	exitCode := run([]string{"osmcore", "version"}, &stderr)
	require.Equal(t, 0, exitCode)
	assert.Empty(t, stderr.String())
}

func TestRunFailsWithoutTopologyFile(t *testing.T) {
	var stderr bytes.Buffer
	exitCode := run([]string{"osmcore", "dump", "--dump-dir", t.TempDir()}, &stderr)
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, stderr.String(), "topology-file")
}
