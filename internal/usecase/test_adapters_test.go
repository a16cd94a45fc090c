package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"golang.org/x/crypto/blake2b"
)

type testFileSystem struct{}

func newTestFileSystem() *testFileSystem {
	return &testFileSystem{}
}

func safeFileMode(perm int, fallback fs.FileMode) fs.FileMode {
	if perm < 0 || perm > 0o777 {
		return fallback
	}
	// #nosec G115 -- perm validated to be within safe range.
	return fs.FileMode(perm)
}

func (a *testFileSystem) WriteFile(ctx context.Context, path string, data []byte, perm int) error {
	_ = ctx
	return os.WriteFile(path, data, safeFileMode(perm, 0o644))
}

func (a *testFileSystem) CreateDir(ctx context.Context, path string, perm int) error {
	_ = ctx
	return os.MkdirAll(path, safeFileMode(perm, 0o755))
}

func (a *testFileSystem) CreateDirExclusive(ctx context.Context, path string, perm int) error {
	_ = ctx
	return os.Mkdir(path, safeFileMode(perm, 0o755))
}

func (a *testFileSystem) RemoveAll(ctx context.Context, path string) error {
	_ = ctx
	return os.RemoveAll(path)
}

func (a *testFileSystem) Stat(ctx context.Context, path string) (FileInfo, error) {
	_ = ctx
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapperTest{info}, nil
}

func (a *testFileSystem) Lstat(ctx context.Context, path string) (FileInfo, error) {
	_ = ctx
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	return &fileInfoWrapperTest{info}, nil
}

func (a *testFileSystem) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	_ = ctx
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	result := make([]DirEntry, 0, len(entries))
	for _, entry := range entries {
		result = append(result, &dirEntryWrapperTest{entry})
	}
	return result, nil
}

func (a *testFileSystem) CopyFile(ctx context.Context, src, dst string) (err error) {
	_ = ctx
	// #nosec G304 -- test paths are controlled by the test harness.
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		_ = srcFile.Close()
	}()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	// #nosec G304 -- test paths are controlled by the test harness.
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = dstFile.Close()
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(dstFile, srcFile); err != nil {
		return err
	}
	if err = dstFile.Close(); err != nil {
		return err
	}
	if err = os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

func (a *testFileSystem) Move(ctx context.Context, src, dst string) error {
	_ = ctx
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (a *testFileSystem) Abs(ctx context.Context, path string) (string, error) {
	_ = ctx
	return filepath.Abs(path)
}

func (a *testFileSystem) EvalSymlinks(ctx context.Context, path string) (string, error) {
	_ = ctx
	return filepath.EvalSymlinks(path)
}

func (a *testFileSystem) Join(elements ...string) string { return filepath.Join(elements...) }
func (a *testFileSystem) Base(path string) string        { return filepath.Base(path) }
func (a *testFileSystem) Dir(path string) string         { return filepath.Dir(path) }
func (a *testFileSystem) Rel(basepath, targpath string) (string, error) {
	return filepath.Rel(basepath, targpath)
}
func (a *testFileSystem) Clean(path string) string { return filepath.Clean(path) }
func (a *testFileSystem) PathSeparator() byte      { return os.PathSeparator }
func (a *testFileSystem) IsNotExist(err error) bool {
	return os.IsNotExist(err) || errors.Is(err, syscall.ENOTDIR)
}
func (a *testFileSystem) IsExist(err error) bool { return os.IsExist(err) }
func (a *testFileSystem) IsPermission(err error) bool {
	return os.IsPermission(err) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM)
}

type fileInfoWrapperTest struct {
	info fs.FileInfo
}

func (f *fileInfoWrapperTest) Name() string       { return f.info.Name() }
func (f *fileInfoWrapperTest) Size() int64        { return f.info.Size() }
func (f *fileInfoWrapperTest) Mode() int          { return int(f.info.Mode()) }
func (f *fileInfoWrapperTest) ModTime() time.Time { return f.info.ModTime() }
func (f *fileInfoWrapperTest) IsDir() bool        { return f.info.IsDir() }
func (f *fileInfoWrapperTest) IsSymlink() bool    { return f.info.Mode()&os.ModeSymlink != 0 }
func (f *fileInfoWrapperTest) IsRegular() bool    { return f.info.Mode().IsRegular() }
func (f *fileInfoWrapperTest) Sys() interface{}   { return f.info.Sys() }

type dirEntryWrapperTest struct {
	entry fs.DirEntry
}

func (d *dirEntryWrapperTest) Name() string { return d.entry.Name() }
func (d *dirEntryWrapperTest) IsDir() bool  { return d.entry.IsDir() }

// faultyFileSystem injects per-path failures on top of testFileSystem.
type faultyFileSystem struct {
	*testFileSystem
	lstatErrs   map[string]error
	readDirErrs map[string]error
	copyErrs    map[string]error
	mkdirErr    error
	mkdirCalls  int
}

func newFaultyFileSystem() *faultyFileSystem {
	return &faultyFileSystem{
		testFileSystem: newTestFileSystem(),
		lstatErrs:      make(map[string]error),
		readDirErrs:    make(map[string]error),
		copyErrs:       make(map[string]error),
	}
}

func (f *faultyFileSystem) Lstat(ctx context.Context, path string) (FileInfo, error) {
	if err, ok := f.lstatErrs[path]; ok {
		return nil, err
	}
	return f.testFileSystem.Lstat(ctx, path)
}

func (f *faultyFileSystem) ReadDir(ctx context.Context, path string) ([]DirEntry, error) {
	if err, ok := f.readDirErrs[path]; ok {
		return nil, err
	}
	return f.testFileSystem.ReadDir(ctx, path)
}

func (f *faultyFileSystem) CopyFile(ctx context.Context, src, dst string) error {
	if err, ok := f.copyErrs[src]; ok {
		return err
	}
	return f.testFileSystem.CopyFile(ctx, src, dst)
}

func (f *faultyFileSystem) CreateDirExclusive(ctx context.Context, path string, perm int) error {
	f.mkdirCalls++
	if f.mkdirErr != nil {
		return f.mkdirErr
	}
	return f.testFileSystem.CreateDirExclusive(ctx, path, perm)
}

// countingHasher hashes with BLAKE2b-512 and records every path it was asked for.
type countingHasher struct {
	mu     sync.Mutex
	calls  map[string]int
	errs   map[string]error
	cancel context.CancelFunc
}

func newCountingHasher() *countingHasher {
	return &countingHasher{calls: make(map[string]int), errs: make(map[string]error)}
}

func (h *countingHasher) HashFile(ctx context.Context, path string) (Digest, error) {
	h.mu.Lock()
	h.calls[path]++
	err := h.errs[path]
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	// #nosec G304 -- test paths are controlled by the test harness.
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum512(data)
	return Digest(hex.EncodeToString(sum[:])), nil
}

func (h *countingHasher) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.calls {
		n += c
	}
	return n
}

func (h *countingHasher) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[path]
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]LockInfo
	busy     bool
	acquired []LockInfo
	released []string
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]LockInfo)}
}

func (l *fakeLock) AcquireLock(ctx context.Context, path string, info LockInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return fmt.Errorf("lock is held by pid 1: %w", ErrLockBusy)
	}
	if _, ok := l.held[path]; ok {
		return fmt.Errorf("lock is held by pid %d: %w", l.held[path].PID, ErrLockBusy)
	}
	l.held[path] = info
	l.acquired = append(l.acquired, info)
	return nil
}

func (l *fakeLock) ReleaseLock(ctx context.Context, path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, path)
	l.released = append(l.released, path)
	return nil
}

func (l *fakeLock) IsLocked(ctx context.Context, path string) (bool, LockInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	info, ok := l.held[path]
	return ok, info, nil
}

func (l *fakeLock) RefreshLock(ctx context.Context, path string) error { return nil }

type fakeProcess struct{ pid int }

func (p fakeProcess) GetPID() int { return p.pid }

type recordingProgress struct {
	mu     sync.Mutex
	starts map[string]int
	incs   map[string]int
	done   map[string]bool
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{starts: map[string]int{}, incs: map[string]int{}, done: map[string]bool{}}
}

func (p *recordingProgress) Start(label string, total int) ProgressTracker {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts[label] = total
	return &recordingTracker{p: p, label: label}
}

type recordingTracker struct {
	p     *recordingProgress
	label string
}

func (t *recordingTracker) Increment() {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.incs[t.label]++
}

func (t *recordingTracker) Finish() {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	t.p.done[t.label] = true
}

type recordingNotifier struct {
	titles   []string
	messages []string
	sounds   []string
}

func (n *recordingNotifier) Send(ctx context.Context, title, message, sound string) error {
	n.titles = append(n.titles, title)
	n.messages = append(n.messages, message)
	n.sounds = append(n.sounds, sound)
	return nil
}

type fakeConfigPort struct {
	fs        FileSystemPort
	data      map[string]ConfigFile
	saveCalls int
}

func newFakeConfigPort(fs FileSystemPort) *fakeConfigPort {
	return &fakeConfigPort{
		fs:   fs,
		data: make(map[string]ConfigFile),
	}
}

func (f *fakeConfigPort) Load(ctx context.Context, path string) (ConfigFile, error) {
	if cfg, ok := f.data[path]; ok {
		return cfg, nil
	}
	return DefaultConfigFile(), nil
}

func (f *fakeConfigPort) Save(ctx context.Context, path string, cfg ConfigFile) error {
	f.saveCalls++
	f.data[path] = cfg
	return f.fs.WriteFile(ctx, path, []byte("config"), 0o644)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeTestFile creates root/rel with content, creating parent directories.
func writeTestFile(t testing.TB, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}
