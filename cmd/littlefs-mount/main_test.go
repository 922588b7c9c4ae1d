package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/littlefs-utils/engine/enginetest"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	enginetest.Register()
	os.Exit(m.Run())
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-h"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "Usage: littlefs-mount -i INPUT_FILE")
	assert.Contains(t, stdout.String(), "-umount")

	stdout.Reset()
	stderr.Reset()
	assert.Equal(t, 2, run([]string{"-i", "image.bin"}, &stdout, &stderr), "mount point is required")
	assert.Contains(t, stderr.String(), "MOUNTPOINT")
}

// Failures are all reported before anything is mounted.
func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	blank := filepath.Join(dir, "blank.bin")
	assert.NoError(t, os.WriteFile(blank, make([]byte, 512*8), 0o644))
	mnt := filepath.Join(dir, "mnt")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing image", []string{"-i", filepath.Join(dir, "nope.bin"), mnt}, "stat image"},
		{"bad version", []string{"-l", "0", "-i", blank, mnt}, "invalid littlefs version 0"},
		{"bad block size", []string{"-b", "500", "-i", blank, mnt}, "invalid block size"},
		{"unformatted", []string{"-l", "1", "-i", blank, mnt}, "lfs1_mount: Corrupted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr.String(), "littlefs-mount: ")
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}
