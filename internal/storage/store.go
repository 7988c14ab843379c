package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"placement/internal/config"
	"placement/internal/placement"
)

const (
	lockSuffix     = ".lock"
	lockRetryDelay = 10 * time.Millisecond
)

var (
	// ErrLoad wraps every load failure. Load still returns a usable cache.
	ErrLoad = errors.New("cannot load placement cache")
	// ErrFlush wraps every flush failure.
	ErrFlush = errors.New("cannot flush placement cache")
)

// Store defines the load/flush contract of the persisted cache.
type Store interface {
	// Name returns the file name of the durable store.
	Name() string
	// Load returns the persisted cache. It never returns a nil cache;
	// on error the cache holds whatever could be read.
	Load(ctx context.Context) (*placement.Cache, error)
	// Flush rewrites the whole durable store with the given entries.
	Flush(ctx context.Context, entries []placement.Entry) error
}

// codec converts between the durable byte image and cache entries.
type codec interface {
	extension() string
	decode(r io.Reader, logger *zap.Logger, cache *placement.Cache) error
	encode(w io.Writer, entries []placement.Entry) error
}

// FileStore keeps the cache in a single file, rewritten atomically.
type FileStore struct {
	fs     afero.Fs
	dir    string
	name   string
	codec  codec
	lock   *flock.Flock
	logger *zap.Logger
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// WithFs replaces the file system, the OS file system is used by default.
func WithFs(fs afero.Fs) Option {
	return func(s *FileStore) {
		s.fs = fs
	}
}

// NewCSVStore creates a store using the line-per-record CSV format,
// named "<keyspace>Replicas.csv".
func NewCSVStore(dir, keyspace string, opts ...Option) *FileStore {
	return newFileStore(dir, keyspace, csvCodec{}, opts...)
}

// NewProtoStore creates a store using length-delimited protobuf records,
// named "<keyspace>Replicas.pb".
func NewProtoStore(dir, keyspace string, opts ...Option) *FileStore {
	return newFileStore(dir, keyspace, protoCodec{}, opts...)
}

// Open creates the store selected by the configuration.
func Open(cfg config.Config, opts ...Option) (*FileStore, error) {
	switch cfg.Format {
	case config.FormatCSV, "":
		return NewCSVStore(cfg.Dir, cfg.Keyspace, opts...), nil
	case config.FormatProto:
		return NewProtoStore(cfg.Dir, cfg.Keyspace, opts...), nil
	default:
		return nil, fmt.Errorf("%w: unknown store format %q", config.ErrConfig, cfg.Format)
	}
}

func newFileStore(dir, keyspace string, c codec, opts ...Option) *FileStore {
	s := &FileStore{
		fs:     afero.NewOsFs(),
		dir:    dir,
		name:   keyspace + "Replicas" + c.extension(),
		codec:  c,
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}

	// Cross-process locks need the OS file system.
	if _, ok := s.fs.(*afero.OsFs); ok {
		s.lock = flock.New(s.Path() + lockSuffix)
	}

	s.logger = s.logger.With(zap.String("store", s.Path()))
	return s
}

// Name returns the file name of the store.
func (s *FileStore) Name() string {
	return s.name
}

// Path returns the full path of the store file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Load reads the store. A missing file is an empty cache, not an error.
func (s *FileStore) Load(ctx context.Context) (*placement.Cache, error) {
	cache := placement.NewCache()

	info, err := s.fs.Stat(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("no persisted placement cache")
		return cache, nil
	} else if err != nil {
		return cache, fmt.Errorf("%w: %w", ErrLoad, err)
	} else if !info.Mode().IsRegular() {
		s.logger.Warn("persisted placement cache is not a regular file")
		return cache, nil
	}

	if s.lock != nil {
		if _, err := s.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
			return cache, fmt.Errorf("%w: cannot acquire lock %q: %w", ErrLoad, s.lock.Path(), err)
		}
		defer s.unlock()
	}

	f, err := s.fs.Open(s.Path())
	if err != nil {
		return cache, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer f.Close()

	if err := s.codec.decode(f, s.logger, cache); err != nil {
		return cache, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	s.logger.Info("loaded placement cache", zap.Int("records", cache.Len()))
	return cache, nil
}

// Flush writes all entries to a temporary file and renames it over the store,
// so readers never observe a partial image.
func (s *FileStore) Flush(ctx context.Context, entries []placement.Entry) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}

	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}

	if s.lock != nil {
		if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
			return fmt.Errorf("%w: cannot acquire lock %q: %w", ErrFlush, s.lock.Path(), err)
		}
		defer s.unlock()
	}

	tmp, err := afero.TempFile(s.fs, s.dir, s.name+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = s.fs.Remove(tmp.Name())
		}
	}()

	if err = s.codec.encode(tmp, entries); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	if err = s.fs.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}

	s.logger.Debug("flushed placement cache", zap.Int("records", len(entries)))
	return nil
}

func (s *FileStore) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("cannot release lock", zap.Error(err))
	}
}
