package logger

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachWritesBoth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "optsim.log")
	var out bytes.Buffer
	l := log.New(&bytes.Buffer{}, "", 0)

	c := Attach(l, path, &out)
	l.Println("session started")
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "session started")
	assert.Contains(t, out.String(), "session started")
}

func TestAttachAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "optsim.log")
	require.NoError(t, os.WriteFile(path, []byte("earlier\n"), 0644))

	l := log.New(&bytes.Buffer{}, "", 0)
	c := Attach(l, path, &bytes.Buffer{})
	l.Println("later")
	require.NoError(t, c.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "earlier\n")
	assert.Contains(t, string(raw), "later")
}

func TestAttachNoPath(t *testing.T) {
	var out bytes.Buffer
	l := log.New(&bytes.Buffer{}, "", 0)

	c := Attach(l, "", &out)
	l.Println("stdout only")
	assert.NoError(t, c.Close())
	assert.Contains(t, out.String(), "stdout only")
}
