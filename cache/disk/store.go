package disk

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	digest "github.com/opencontainers/go-digest"

	"github.com/meigma/assetcache/cache"
)

const (
	metaSuffix = ".meta"
	bodySuffix = ".body"
)

// entryMeta is the JSON record stored next to each body file.
type entryMeta struct {
	Key         string      `json:"key"`
	URL         string      `json:"url,omitempty"`
	Status      int         `json:"status"`
	Header      http.Header `json:"header,omitempty"`
	Digest      string      `json:"digest"`
	Size        int64       `json:"size"`
	Compression string      `json:"compression"`
	Created     time.Time   `json:"created"`
}

// Store is a single named cache on disk.
type Store struct {
	name    string
	dir     string
	storage *Storage
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Get returns the response stored under key.
//
// Corrupted entries (unreadable metadata, decompression failure, or digest
// mismatch) are deleted and reported as misses.
func (s *Store) Get(ctx context.Context, key string) (*cache.Response, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open store root: %w", err)
	}
	defer root.Close()

	base := s.path(key)
	raw, err := root.ReadFile(base + metaSuffix)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read cache metadata: %w", err)
	}

	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Key != key {
		_ = deleteEntry(root, base)
		return nil, false, nil
	}

	stored, err := root.ReadFile(base + bodySuffix)
	if err != nil {
		_ = deleteEntry(root, base)
		return nil, false, nil
	}

	body, err := s.decode(meta.Compression, stored)
	if err != nil {
		_ = deleteEntry(root, base)
		return nil, false, nil
	}

	if match, err := digestMatches(meta.Digest, body); err != nil || !match {
		_ = deleteEntry(root, base)
		return nil, false, nil
	}

	header := meta.Header
	if header == nil {
		header = make(http.Header)
	}
	return &cache.Response{
		URL:    meta.URL,
		Status: meta.Status,
		Header: header,
		Body:   body,
	}, true, nil
}

// Put stores resp under key, replacing any existing entry.
//
// The body is written before the metadata so a reader never observes
// metadata without its body.
func (s *Store) Put(ctx context.Context, key string, resp *cache.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if resp == nil {
		return errors.New("response is nil")
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("open store root: %w", err)
	}
	defer root.Close()

	base := s.path(key)
	dir := filepath.Dir(base)
	if dir != "." {
		if err := root.MkdirAll(dir, s.storage.cfg.dirPerm); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	compression := s.storage.cfg.compression
	stored := resp.Body
	if compression == CompressionZstd {
		stored = s.storage.enc.EncodeAll(resp.Body, nil)
	}

	meta := entryMeta{
		Key:         key,
		URL:         resp.URL,
		Status:      resp.Status,
		Header:      resp.Header,
		Digest:      digest.FromBytes(resp.Body).String(),
		Size:        int64(len(resp.Body)),
		Compression: compression.String(),
		Created:     time.Now().UTC(),
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode cache metadata: %w", err)
	}

	if err := writeFileAtomic(root, dir, base+bodySuffix, "body-*", stored); err != nil {
		return err
	}
	return writeFileAtomic(root, dir, base+metaSuffix, "meta-*", raw)
}

// Delete removes the entry for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open store root: %w", err)
	}
	defer root.Close()
	return deleteEntry(root, s.path(key))
}

// Keys returns the stored request keys ordered by write time, then key.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type keyed struct {
		key     string
		created time.Time
	}
	var found []keyed
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var meta entryMeta
		if err := json.Unmarshal(raw, &meta); err != nil {
			return nil
		}
		found = append(found, keyed{key: meta.Key, created: meta.Created})
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].created.Equal(found[j].created) {
			return found[i].key < found[j].key
		}
		return found[i].created.Before(found[j].created)
	})
	keys := make([]string, len(found))
	for i, f := range found {
		keys[i] = f.key
	}
	return keys, nil
}

func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	hexHash := hex.EncodeToString(sum[:])
	if s.storage.cfg.shardPrefixLen <= 0 {
		return hexHash
	}
	prefixLen := min(s.storage.cfg.shardPrefixLen, len(hexHash))
	return filepath.Join(hexHash[:prefixLen], hexHash)
}

func (s *Store) decode(compression string, stored []byte) ([]byte, error) {
	switch compression {
	case "", CompressionNone.String():
		return stored, nil
	case CompressionZstd.String():
		return s.storage.dec.DecodeAll(stored, nil)
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

func deleteEntry(root *os.Root, base string) error {
	var errs []error
	for _, suffix := range []string{metaSuffix, bodySuffix} {
		if err := root.Remove(base + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func digestMatches(dgst string, data []byte) (bool, error) {
	parsed, err := digest.Parse(dgst)
	if err != nil {
		return false, fmt.Errorf("parse digest %q: %w", dgst, err)
	}
	algo := parsed.Algorithm()
	if !algo.Available() {
		return false, fmt.Errorf("digest algorithm %q unavailable", algo)
	}
	return algo.FromBytes(data) == parsed, nil
}

// writeFileAtomic writes data to a temp file in dir and renames it to path.
func writeFileAtomic(root *os.Root, dir, path, pattern string, data []byte) error {
	tmp, tmpPath, err := createTemp(root, dir, pattern)
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = root.Remove(tmpPath)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = root.Remove(tmpPath)
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := root.Rename(tmpPath, path); err != nil {
		_ = root.Remove(tmpPath)
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

func createTemp(root *os.Root, dir, pattern string) (*os.File, string, error) {
	if pattern == "" {
		pattern = "tmp"
	}
	if !strings.Contains(pattern, "*") {
		pattern += "*"
	}
	if dir == "" {
		dir = "."
	}

	for tries := 0; tries < 10000; tries++ {
		var randBytes [8]byte
		if _, err := rand.Read(randBytes[:]); err != nil {
			return nil, "", err
		}
		name := strings.Replace(pattern, "*", hex.EncodeToString(randBytes[:]), 1)
		path := filepath.Join(dir, name)
		f, err := root.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}

	return nil, "", errors.New("failed to create temp file")
}
