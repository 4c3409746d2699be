package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dat "github.com/dep2p/go-dat"
	"github.com/dep2p/go-dat/config"
	"github.com/dep2p/go-dat/internal/core/discovery/memory"
)

// syncBuffer 可并发写入的输出缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// writeTestConfig 写入使用回环地址、禁用 mDNS 的配置文件
func writeTestConfig(t *testing.T) string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Network.ListenAddr = "127.0.0.1:0"
	cfg.Network.LookupInterval = config.Duration(50 * time.Millisecond)
	cfg.Network.DialBackoff = 0
	cfg.Discovery.MDNS.Enabled = false
	cfg.Log.Level = "error"

	path := filepath.Join(t.TempDir(), "dat.json")
	require.NoError(t, cfg.SaveFile(path))
	return path
}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(ctx context.Context, t *testing.T, reg *memory.Registry, args ...string) result {
	t.Helper()
	opts := newRootOptions()
	if reg != nil {
		opts.discovery = reg
	}
	var stdout, stderr syncBuffer
	code := run(ctx, opts, args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func linkKey(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "Link: dat://") {
			return strings.TrimPrefix(line, "Link: dat://")
		}
	}
	t.Fatalf("no link in output:\n%s", out)
	return ""
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitError},
		{fmt.Errorf("open: %w", dat.ErrInvalidPath), exitInvalidPath},
		{dat.ErrAlreadyExists, exitExists},
		{dat.ErrKeyMismatch, exitKeyMismatch},
		{dat.ErrCorruptMetadata, exitKeyMismatch},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), "%v", tt.err)
	}
}

func TestVersionCommand(t *testing.T) {
	r := runCLI(context.Background(), t, nil, "version")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "go-dat "+dat.Version)
}

func TestCreateAndKeys(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := filepath.Join(t.TempDir(), "archive")

	r := runCLI(context.Background(), t, nil, "--config", cfg, "create", dir)
	require.Equal(t, exitOK, r.code, r.stderr)
	key := linkKey(t, r.stdout)
	assert.Len(t, key, 64)

	r = runCLI(context.Background(), t, nil, "--config", cfg, "keys", dir)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, key)
	assert.Contains(t, r.stdout, "Writable:     true")
	assert.Contains(t, r.stdout, "Version:      0")
}

func TestCreate_ExitCodes(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()

	r := runCLI(context.Background(), t, nil, "--config", cfg, "create", dir)
	require.Equal(t, exitOK, r.code, r.stderr)

	r = runCLI(context.Background(), t, nil, "--config", cfg, "create", dir)
	assert.Equal(t, exitExists, r.code)
	assert.Contains(t, r.stderr, "already exists")

	r = runCLI(context.Background(), t, nil, "--config", cfg, "create", "/non/existing/folder/")
	assert.Equal(t, exitInvalidPath, r.code)

	zero := strings.Repeat("0", 64)
	r = runCLI(context.Background(), t, nil, "--config", cfg, "clone", zero, dir, "--timeout", "10ms")
	assert.Equal(t, exitKeyMismatch, r.code)
}

func TestKeys_NoArchive(t *testing.T) {
	r := runCLI(context.Background(), t, nil, "--config", writeTestConfig(t), "keys", t.TempDir())
	assert.Equal(t, exitError, r.code)
	assert.Contains(t, r.stderr, "no archive")
}

func TestRoot_InvalidFlags(t *testing.T) {
	r := runCLI(context.Background(), t, nil, "--log-level", "verbose", "version")
	assert.Equal(t, exitError, r.code)

	r = runCLI(context.Background(), t, nil, "--config", filepath.Join(t.TempDir(), "missing.json"), "version")
	assert.Equal(t, exitError, r.code)

	r = runCLI(context.Background(), t, nil, "clone")
	assert.Equal(t, exitError, r.code)
}

func TestShareAndClone(t *testing.T) {
	cfg := writeTestConfig(t)
	reg := memory.NewRegistry()

	src := t.TempDir()
	r := runCLI(context.Background(), t, reg, "--config", cfg, "create", src)
	require.Equal(t, exitOK, r.code, r.stderr)
	key := linkKey(t, r.stdout)

	file := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(file, []byte("hello, dat"), 0644))

	shareCtx, stopShare := context.WithCancel(context.Background())
	defer stopShare()
	shared := make(chan result, 1)
	go func() {
		shared <- runCLI(shareCtx, t, reg, "--config", cfg, "share", src, "--add", file)
	}()

	dst := filepath.Join(t.TempDir(), "mirror")
	r = runCLI(context.Background(), t, reg, "--config", cfg, "clone", key, dst, "--timeout", "20s")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Cloned version 1")
	assert.Contains(t, r.stdout, "hello.txt")

	stopShare()
	select {
	case sr := <-shared:
		assert.Equal(t, exitOK, sr.code, sr.stderr)
		assert.Contains(t, sr.stdout, "Sharing dat://"+key)
		assert.Contains(t, sr.stdout, "Peer connected")
		assert.Contains(t, sr.stdout, "Stopped sharing: received")
	case <-time.After(20 * time.Second):
		t.Fatal("share did not stop")
	}

	r = runCLI(context.Background(), t, nil, "--config", cfg, "keys", dst)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Writable:     false")
	assert.Contains(t, r.stdout, "hello.txt")
}
