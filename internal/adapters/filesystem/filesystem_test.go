package filesystem

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
	"time"
)

func TestCreateDirExclusive(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	path := filepath.Join(root, "exclusive")

	if err := adapter.CreateDirExclusive(ctx, path, 0o755); err != nil {
		t.Fatalf("expected first create to succeed: %v", err)
	}
	if err := adapter.CreateDirExclusive(ctx, path, 0o755); err == nil {
		t.Fatal("expected second create to fail")
	} else if !errors.Is(err, os.ErrExist) {
		t.Fatalf("expected os.ErrExist, got %v", err)
	}
}

func TestCreateDirExclusive_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not reliable on windows")
	}
	umask := syscall.Umask(0)
	defer syscall.Umask(umask)

	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	path := filepath.Join(root, "perm")

	if err := adapter.CreateDirExclusive(ctx, path, 0o700); err != nil {
		t.Fatalf("expected create to succeed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected stat to succeed: %v", err)
	}
	if info.Mode().Perm() != 0o700 {
		t.Fatalf("expected mode 0700, got %o", info.Mode().Perm())
	}
}

func TestCreateDirExclusive_InvalidPerm(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not reliable on windows")
	}
	umask := syscall.Umask(0)
	defer syscall.Umask(umask)

	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	path := filepath.Join(root, "invalid-perm")

	if err := adapter.CreateDirExclusive(ctx, path, -1); err != nil {
		t.Fatalf("expected create to succeed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected stat to succeed: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %o", info.Mode().Perm())
	}
}

func TestCopyFile_PreservesContentModeAndMtime(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	src := filepath.Join(root, "src.bin")
	dst := filepath.Join(root, "dst.bin")
	payload := make([]byte, copyBufferSize+17)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	if err := os.WriteFile(src, payload, 0o640); err != nil {
		t.Fatalf("write src: %v", err)
	}
	mtime := time.Date(2019, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	if err := adapter.CopyFile(ctx, src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("content differs")
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatalf("expected mtime %v, got %v", mtime, info.ModTime())
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o640 {
		t.Fatalf("expected mode 0640, got %o", info.Mode().Perm())
	}
}

func TestCopyFile_RefusesExistingTarget(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatalf("write dst: %v", err)
	}

	err := adapter.CopyFile(ctx, src, dst)
	if !adapter.IsExist(err) {
		t.Fatalf("expected exist error, got %v", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "old" {
		t.Fatalf("existing file overwritten: %q", data)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	dst := filepath.Join(root, "dst")

	err := adapter.CopyFile(ctx, filepath.Join(root, "missing"), dst)
	if !adapter.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("target must not be created: %v", err)
	}
}

func TestCopyFile_RejectsDirectory(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	dst := filepath.Join(root, "dst")

	if err := adapter.CopyFile(ctx, root, dst); err == nil {
		t.Fatal("expected error for directory source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("target must not be created: %v", err)
	}
}

func TestReadDirAndLstat(t *testing.T) {
	ctx := context.Background()
	adapter := New(slog.Default())
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "b"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a"), []byte("xy"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, err := adapter.ReadDir(ctx, root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 || entries[0].Name() != "a" || entries[0].IsDir() || !entries[1].IsDir() {
		t.Fatalf("unexpected entries: %v", entries)
	}
	info, err := adapter.Lstat(ctx, filepath.Join(root, "a"))
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if info.Size() != 2 || !info.IsRegular() || info.IsSymlink() {
		t.Fatalf("unexpected info: size=%d regular=%t", info.Size(), info.IsRegular())
	}

	_, err = adapter.Stat(ctx, filepath.Join(root, "a", "child"))
	if !adapter.IsNotExist(err) {
		t.Fatalf("expected ENOTDIR to count as not-exist, got %v", err)
	}
}
