// Package hasher computes BLAKE2b-512 content digests.
package hasher

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/arumata/backsync/internal/usecase"
)

const bufferSize = 256 * 1024

// Adapter implements HasherPort by streaming file content through BLAKE2b-512.
type Adapter struct {
	logger *slog.Logger
}

// New creates a new hasher adapter.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		panic("hasher adapter requires logger")
	}
	return &Adapter{logger: logger}
}

// HashFile returns the lowercase hex digest of the file at path.
// The context is checked between buffer reads, so large files can be abandoned mid-stream.
func (a *Adapter) HashFile(ctx context.Context, path string) (usecase.Digest, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the tree walk
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	h, err := blake2b.New512(nil)
	if err != nil {
		return "", fmt.Errorf("init blake2b: %w", err)
	}
	buf := make([]byte, bufferSize)
	if _, err := io.CopyBuffer(h, ctxReader{ctx: ctx, r: f}, buf); err != nil {
		return "", fmt.Errorf("read: %w", err)
	}
	return usecase.Digest(hex.EncodeToString(h.Sum(nil))), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
