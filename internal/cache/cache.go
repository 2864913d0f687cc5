// Package cache stores dependency directories keyed by the OS and a
// content hash of the dependency manifest, so repeated runs skip the
// expensive parts of dependency installation. A stale or missing entry
// only degrades to a full install; it never fails a run.
package cache

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
)

// Cache is a filesystem cache of tar.gz entries.
type Cache struct {
	dir string
}

// New creates a cache rooted at dir, creating it if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Key derives the cache key from the OS identifier and a content hash
// of the manifest file. Editing the manifest invalidates the entry.
func Key(manifestPath string) (string, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("failed to read manifest: %w", err)
	}
	sum := sha256.Sum256(data)
	return goruntime.GOOS + "-" + hex.EncodeToString(sum[:]), nil
}

func (c *Cache) entryPath(key string) string {
	return filepath.Join(c.dir, key+".tar.gz")
}

// Restore extracts the entry for key into dest. It returns false when
// there is no entry. A corrupt entry is removed and reported as a miss.
func (c *Cache) Restore(key, dest string) (bool, error) {
	f, err := os.Open(c.entryPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open cache entry: %w", err)
	}
	defer f.Close()

	if err := extract(f, dest); err != nil {
		os.Remove(c.entryPath(key))
		return false, fmt.Errorf("cache entry %s is corrupt: %w", key, err)
	}

	return true, nil
}

// Save archives src as the entry for key. Written atomically so a
// concurrent reader never sees a partial entry.
func (c *Cache) Save(key, src string) error {
	tmp, err := os.CreateTemp(c.dir, "entry-*.tar.gz")
	if err != nil {
		return fmt.Errorf("failed to create cache temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := archive(src, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to archive %s: %w", src, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), c.entryPath(key))
}

func archive(src string, w io.Writer) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func extract(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Reject entries escaping the destination
		if strings.Contains(hdr.Name, "..") {
			return fmt.Errorf("cache entry contains invalid path %q", hdr.Name)
		}
		target := filepath.Join(dest, filepath.FromSlash(hdr.Name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
		}
	}
}
