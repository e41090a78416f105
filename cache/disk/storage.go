// Package disk provides a disk-backed implementation of cache.Storage.
//
// Each named store lives in its own directory under the storage root. The
// directory name is the SHA256 of the store name, and a NAME file inside it
// records the original name. Entries are sharded by the SHA256 of their
// request key and stored as a JSON metadata file plus a body file. Bodies are
// validated against their recorded digest on read; corrupt entries are
// deleted and reported as misses.
package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/assetcache/cache"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
	nameFile              = "NAME"
)

// Compression identifies how entry bodies are stored on disk.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// config holds shared configuration for disk storage.
type config struct {
	shardPrefixLen int
	dirPerm        os.FileMode
	compression    Compression
}

// Option configures a Storage.
type Option func(*config)

// WithShardPrefixLen sets the number of hex characters used for sharding.
// Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(c *config) {
		c.shardPrefixLen = n
	}
}

// WithDirPerm sets the directory permissions used for cache directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(c *config) {
		c.dirPerm = mode
	}
}

// WithCompression sets how new entry bodies are written.
// Entries already on disk are read according to their own metadata.
func WithCompression(c Compression) Option {
	return func(cfg *config) {
		cfg.compression = c
	}
}

func defaultConfig() config {
	return config{
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
}

// Storage stores named caches on disk.
type Storage struct {
	dir string
	cfg config
	enc *zstd.Encoder
	dec *zstd.Decoder

	openGroup singleflight.Group
	mu        sync.Mutex
	stores    map[string]*Store
}

// Interface compliance.
var (
	_ cache.Storage = (*Storage)(nil)
	_ cache.Store   = (*Store)(nil)
)

// New creates disk storage rooted at dir.
func New(dir string, opts ...Option) (*Storage, error) {
	if dir == "" {
		return nil, errors.New("cache dir is empty")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.shardPrefixLen < 0 {
		return nil, errors.New("shard prefix length must be >= 0")
	}
	if cfg.compression != CompressionNone && cfg.compression != CompressionZstd {
		return nil, fmt.Errorf("unsupported compression %d", cfg.compression)
	}
	if err := os.MkdirAll(dir, cfg.dirPerm); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Storage{
		dir:    dir,
		cfg:    cfg,
		enc:    enc,
		dec:    dec,
		stores: make(map[string]*Store),
	}, nil
}

// Close releases compression resources. Stores must not be used afterwards.
func (s *Storage) Close() error {
	s.dec.Close()
	return s.enc.Close()
}

// Dir returns the storage root.
func (s *Storage) Dir() string {
	return s.dir
}

// Open returns the store for name, creating its directory if absent.
// Concurrent opens of the same name share a single creation.
func (s *Storage) Open(ctx context.Context, name string) (cache.Store, error) {
	if name == "" {
		return nil, errors.New("store name is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	st, ok := s.stores[name]
	s.mu.Unlock()
	if ok {
		return st, nil
	}

	v, err, _ := s.openGroup.Do(name, func() (any, error) {
		s.mu.Lock()
		if st, ok := s.stores[name]; ok {
			s.mu.Unlock()
			return st, nil
		}
		s.mu.Unlock()

		st, err := s.create(name)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.stores[name] = st
		s.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}
	st, _ = v.(*Store) //nolint:errcheck // type assertion always succeeds when err is nil
	return st, nil
}

func (s *Storage) create(name string) (*Store, error) {
	dirName := storeDirName(name)
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("open cache root: %w", err)
	}
	defer root.Close()

	if err := root.MkdirAll(dirName, s.cfg.dirPerm); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	namePath := filepath.Join(dirName, nameFile)
	if _, err := root.Stat(namePath); errors.Is(err, fs.ErrNotExist) {
		if err := writeFileAtomic(root, dirName, namePath, "name-*", []byte(name)); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat store name: %w", err)
	}

	return &Store{
		name:    name,
		dir:     filepath.Join(s.dir, dirName),
		storage: s,
	}, nil
}

// Has reports whether a store named name exists on disk.
func (s *Storage) Has(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, storeDirName(name), nameFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Delete removes the store named name and every entry in it.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := s.Has(ctx, name)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.stores, name)
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := os.RemoveAll(filepath.Join(s.dir, storeDirName(name))); err != nil {
		return false, fmt.Errorf("remove store %q: %w", name, err)
	}
	return true, nil
}

// Keys returns store names ordered by creation time, then name.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type named struct {
		name    string
		created time.Time
	}
	found := make([]named, 0, len(dirents))
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, d.Name(), nameFile)
		data, err := os.ReadFile(path)
		if err != nil {
			// Stray directory without a NAME file.
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		found = append(found, named{name: string(data), created: info.ModTime()})
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].created.Equal(found[j].created) {
			return found[i].name < found[j].name
		}
		return found[i].created.Before(found[j].created)
	})

	names := make([]string, len(found))
	for i, f := range found {
		names[i] = f.name
	}
	return names, nil
}

// SizeBytes returns the number of bytes stored under the storage root.
func (s *Storage) SizeBytes() (int64, error) {
	return dirSize(s.dir)
}

// StoreSizeBytes returns the number of bytes stored for one named store.
func (s *Storage) StoreSizeBytes(name string) (int64, error) {
	return dirSize(filepath.Join(s.dir, storeDirName(name)))
}

func storeDirName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}
