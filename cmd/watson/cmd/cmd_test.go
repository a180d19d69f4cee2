package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "buggy-counter")
	assert.Contains(t, out, "(buggy)")
	assert.Contains(t, out, "strategies: random, trust, replay")
}

func TestCheckThenReplay(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "check", "-s", "trust", "-r", dir, "counter", "buggy-counter")
	assert.EqualError(t, err, "1 of 2 programs have bugs")
	assert.Contains(t, out, "counter:2 [trust] success")
	assert.Contains(t, out, "buggy-counter:2 [trust] assertion-failure")

	reports, err := filepath.Glob(filepath.Join(dir, "*.trace"))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	yamlFile := reports[0][:len(reports[0])-len(".trace")] + ".yaml"

	out, err = execute(t, "replay", yamlFile)
	require.NoError(t, err)
	assert.Contains(t, out, "buggy-counter:2 [replay] assertion-failure")
}

func TestCheckUnknownProgram(t *testing.T) {
	_, err := execute(t, "check", "-r", "", "nope")
	assert.ErrorContains(t, err, "unknown program")
}
