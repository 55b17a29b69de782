package datasource

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pierrec/lz4/v4"
	bolt "go.etcd.io/bbolt"
)

// cacheBucket holds the cached documents keyed by path.
const cacheBucket = "documents"

// Entry layout: stored-at (unix nanos) | codec | raw length | payload.
const (
	entryTimeSize   = 8
	entryCodecSize  = 1
	entryLengthSize = 4
	entryHeaderSize = entryTimeSize + entryCodecSize + entryLengthSize
)

// Payload codecs.
const (
	codecRaw byte = iota
	codecLZ4
)

// cacheOpenTimeout bounds waiting for the database file lock.
const cacheOpenTimeout = time.Second

// errCorruptEntry marks entries that cannot be decoded; they are treated as misses.
var errCorruptEntry = errors.New("corrupt cache entry")

// CacheOptions configures a CachedFetcher.
type CacheOptions struct {
	// TTL is the lifetime of an entry; zero keeps entries forever.
	TTL    time.Duration
	Logger *slog.Logger
	// Now returns the current time; time.Now when nil.
	Now func() time.Time
}

// CachedFetcher stores successful fetches of another Fetcher in a bolt
// database, compressing each document with LZ4.
type CachedFetcher struct {
	next   Fetcher
	db     *bolt.DB
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// OpenCache opens or creates the cache database at dbPath in front of next.
func OpenCache(dbPath string, next Fetcher, opts CacheOptions) (*CachedFetcher, error) {
	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{Timeout: cacheOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, bucketErr := tx.CreateBucketIfNotExists([]byte(cacheBucket))

		return bucketErr
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create cache bucket: %w", err), db.Close())
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &CachedFetcher{next: next, db: db, ttl: opts.TTL, logger: opts.Logger, now: opts.Now}, nil
}

// Close closes the database.
func (c *CachedFetcher) Close() error {
	return c.db.Close()
}

// Fetch returns the cached document or fetches and stores it.
// Failed fetches are not cached.
func (c *CachedFetcher) Fetch(ctx context.Context, name string) ([]byte, error) {
	data, ok := c.lookup(name)
	if ok {
		c.logger.DebugContext(ctx, "cache hit", "document", name)

		return data, nil
	}

	data, err := c.next.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	storeErr := c.store(name, data)
	if storeErr != nil {
		c.logger.WarnContext(ctx, "cache store failed", "document", name, "error", storeErr)

		return data, nil
	}

	c.logger.DebugContext(ctx, "document cached", "document", name, "size", humanize.Bytes(uint64(len(data))))

	return data, nil
}

// Purge removes every entry.
func (c *CachedFetcher) Purge() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(cacheBucket))
		if err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return fmt.Errorf("delete bucket: %w", err)
		}

		_, err = tx.CreateBucket([]byte(cacheBucket))

		return err
	})
}

// Len returns the number of stored entries, expired ones included.
func (c *CachedFetcher) Len() (int, error) {
	var n int

	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(cacheBucket)).Stats().KeyN

		return nil
	})

	return n, err
}

func (c *CachedFetcher) lookup(name string) ([]byte, bool) {
	var data []byte

	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(cacheBucket)).Get([]byte(name))
		if raw == nil {
			return nil
		}

		storedAt, payload, err := decodeEntry(raw)
		if err != nil {
			return err
		}

		if c.ttl > 0 && c.now().Sub(storedAt) > c.ttl {
			return nil
		}

		data = payload

		return nil
	})
	if err != nil {
		c.logger.Warn("cache lookup failed", "document", name, "error", err)

		return nil, false
	}

	return data, data != nil
}

func (c *CachedFetcher) store(name string, data []byte) error {
	entry := encodeEntry(c.now(), data)

	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(cacheBucket)).Put([]byte(name), entry)
	})
}

// encodeEntry compresses data; incompressible documents are stored raw.
func encodeEntry(storedAt time.Time, data []byte) []byte {
	codec := codecLZ4
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil || written == 0 || written >= len(data) {
		codec = codecRaw
		compressed = data
		written = len(data)
	}

	entry := make([]byte, entryHeaderSize+written)
	binary.LittleEndian.PutUint64(entry, uint64(storedAt.UnixNano()))
	entry[entryTimeSize] = codec
	binary.LittleEndian.PutUint32(entry[entryTimeSize+entryCodecSize:], uint32(len(data)))
	copy(entry[entryHeaderSize:], compressed[:written])

	return entry
}

// decodeEntry returns a copy of the payload; raw may only be valid inside a transaction.
func decodeEntry(raw []byte) (time.Time, []byte, error) {
	if len(raw) < entryHeaderSize {
		return time.Time{}, nil, errCorruptEntry
	}

	storedAt := time.Unix(0, int64(binary.LittleEndian.Uint64(raw)))
	size := int(binary.LittleEndian.Uint32(raw[entryTimeSize+entryCodecSize:]))
	payload := raw[entryHeaderSize:]

	switch raw[entryTimeSize] {
	case codecRaw:
		if len(payload) != size {
			return time.Time{}, nil, errCorruptEntry
		}

		return storedAt, append(make([]byte, 0, size), payload...), nil
	case codecLZ4:
		out := make([]byte, size)

		n, err := lz4.UncompressBlock(payload, out)
		if err != nil || n != size {
			return time.Time{}, nil, errCorruptEntry
		}

		return storedAt, out, nil
	default:
		return time.Time{}, nil, errCorruptEntry
	}
}
