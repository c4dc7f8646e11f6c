// Package cas is a file-backed content-addressable blob store. Addresses
// are "sha256:<64 hex>" - the same scheme bundle references use - and
// blobs land under a two-level sharded directory layout so no single
// directory grows unbounded.
//
// Writes are atomic: blobs are written to a temp file in the store root
// and renamed into place, so readers never observe a partial blob and a
// crash mid-put leaves at worst a stray temp file.
package cas

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	contracts "github.com/vsbuffalo/modelops-contracts"
)

// Shard fan-out: ab/cd/<digest>.
const (
	shardDepth = 2
	shardWidth = 2
)

// ErrNotFound means no blob exists at the requested address.
var ErrNotFound = errors.New("blob not found")

// FileCAS implements the contracts.CAS port on the local filesystem.
type FileCAS struct {
	root string
}

// Interface check.
var _ contracts.CAS = (*FileCAS)(nil)

// New opens a file CAS rooted at dir, creating it if needed.
func New(dir string) (*FileCAS, error) {
	if dir == "" {
		return nil, fmt.Errorf("cas: root directory must be non-empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cas: create root: %w", err)
	}
	return &FileCAS{root: dir}, nil
}

// Root returns the store's root directory.
func (c *FileCAS) Root() string { return c.root }

// Address computes the content address of data without storing it.
func Address(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Put stores data and returns its address. Idempotent: identical bytes
// always yield the identical address, and re-putting an existing blob
// is a no-op that never rewrites the stored file.
func (c *FileCAS) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	address := Address(data)

	path, err := c.blobPath(address)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return address, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cas put %s: %w", address, err)
	}

	// Write-then-rename within the store root keeps the rename on one
	// filesystem and therefore atomic.
	tmp, err := os.CreateTemp(c.root, ".put-*")
	if err != nil {
		return "", fmt.Errorf("cas put %s: %w", address, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("cas put %s: %w", address, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cas put %s: %w", address, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cas put %s: %w", address, err)
	}
	return address, nil
}

// Get returns the blob at address, or ErrNotFound.
func (c *FileCAS) Get(ctx context.Context, address string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.blobPath(address)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("cas get %s: %w", address, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cas get %s: %w", address, err)
	}
	return data, nil
}

// Exists reports whether a blob is stored at address.
func (c *FileCAS) Exists(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := c.blobPath(address)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cas exists %s: %w", address, err)
	}
	return true, nil
}

// blobPath maps an address to its sharded on-disk location.
func (c *FileCAS) blobPath(address string) (string, error) {
	digest, ok := strings.CutPrefix(address, "sha256:")
	if !ok || !contracts.IsDigestHex(digest) {
		return "", fmt.Errorf("cas: malformed address %q, want sha256:<%d hex>",
			address, contracts.DigestHexLen)
	}
	sharded, err := contracts.Shard(digest, shardDepth, shardWidth)
	if err != nil {
		return "", fmt.Errorf("cas: %w", err)
	}
	return filepath.Join(c.root, filepath.FromSlash(sharded)), nil
}
