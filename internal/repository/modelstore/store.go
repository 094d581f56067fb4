// Package modelstore persists trained models under the configured model path.
//
// Each save writes a new file model_v{N}.gob.gz holding a gob-encoded envelope:
// metadata plus the gzip-compressed gob encoding of the model state. The
// SHA-256 of the uncompressed state is kept in the metadata and verified on
// load. Files are written to a temp name and renamed, so a crash never leaves a
// half-written latest version. The highest version on disk is the latest one.
package modelstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/recdex/internal/domain"
	"github.com/kailas-cloud/recdex/internal/mf"
)

const (
	filePrefix = "model_v"
	fileSuffix = ".gob.gz"
)

// Metadata describes one persisted model version.
type Metadata struct {
	Version   int
	RunID     string
	TrainedAt time.Time
	SavedAt   time.Time
	Ratings   int
	Users     int
	Items     int
	Checksum  string
	SizeBytes int64
}

type envelope struct {
	Metadata Metadata
	Payload  []byte
}

// Store is a directory of versioned model files. Safe for concurrent use.
type Store struct {
	dir  string
	keep int

	mu     sync.RWMutex
	latest int
}

// New opens (creating if needed) the model directory and scans existing versions.
// keep bounds how many versions survive a save; values < 1 keep everything.
func New(dir string, keep int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create model dir: %w", err)
	}
	s := &Store{dir: dir, keep: keep}
	versions, err := s.versions()
	if err != nil {
		return nil, err
	}
	if len(versions) > 0 {
		s.latest = versions[len(versions)-1]
	}
	return s, nil
}

// Latest returns the newest persisted version, or false when none exists.
func (s *Store) Latest() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest > 0
}

// Save writes m as the next version and returns its metadata.
// Version, Checksum, SavedAt and SizeBytes are filled in by the store.
func (s *Store) Save(ctx context.Context, m *mf.Model, meta Metadata) (Metadata, error) {
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(m.State()); err != nil {
		return Metadata{}, fmt.Errorf("encode model: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	zw := gzip.NewWriter(&compressed)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return Metadata{}, fmt.Errorf("compress model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return Metadata{}, fmt.Errorf("finalize compression: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta.Version = s.latest + 1
	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now().UTC()

	if err := s.writeFile(meta.Version, envelope{Metadata: meta, Payload: compressed.Bytes()}); err != nil {
		return Metadata{}, err
	}
	s.latest = meta.Version

	if err := s.prune(); err != nil {
		return meta, fmt.Errorf("prune old models: %w", err)
	}
	return meta, nil
}

func (s *Store) writeFile(version int, env envelope) error {
	tmp, err := os.CreateTemp(s.dir, ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := gob.NewEncoder(tmp).Encode(env); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(version)); err != nil {
		return fmt.Errorf("publish model file: %w", err)
	}
	return nil
}

// Load reads the latest version. It returns domain.ErrModelNotFound when the
// directory holds no model.
func (s *Store) Load(ctx context.Context) (*mf.Model, Metadata, error) {
	s.mu.RLock()
	version := s.latest
	s.mu.RUnlock()

	if version == 0 {
		return nil, Metadata{}, domain.ErrModelNotFound
	}
	return s.LoadVersion(ctx, version)
}

// LoadVersion reads a specific version and verifies its checksum.
func (s *Store) LoadVersion(ctx context.Context, version int) (*mf.Model, Metadata, error) {
	f, err := os.Open(s.path(version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Metadata{}, fmt.Errorf("version %d: %w", version, domain.ErrModelNotFound)
		}
		return nil, Metadata{}, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var env envelope
	if err := gob.NewDecoder(f).Decode(&env); err != nil {
		return nil, Metadata{}, fmt.Errorf("read model file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(env.Payload))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("decompress model: %w", err)
	}
	defer func() { _ = zr.Close() }()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read decompressed model: %w", err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != env.Metadata.Checksum {
		return nil, Metadata{}, fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, env.Metadata.Checksum, got)
	}

	var state mf.State
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&state); err != nil {
		return nil, Metadata{}, fmt.Errorf("decode model: %w", err)
	}
	m, err := mf.FromState(state)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("restore model: %w", err)
	}
	return m, env.Metadata, nil
}

// ErrChecksumMismatch signals a model file whose payload does not match its recorded checksum.
var ErrChecksumMismatch = errors.New("model checksum mismatch")

func (s *Store) path(version int) string {
	return filepath.Join(s.dir, filePrefix+strconv.Itoa(version)+fileSuffix)
}

// versions lists persisted versions in ascending order.
func (s *Store) versions() ([]int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	var out []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := parseVersion(e.Name()); ok {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out, nil
}

func parseVersion(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, filePrefix)
	if !ok {
		return 0, false
	}
	rest, ok = strings.CutSuffix(rest, fileSuffix)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(rest)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// prune removes all but the newest keep versions. Caller holds s.mu.
func (s *Store) prune() error {
	if s.keep < 1 {
		return nil
	}
	versions, err := s.versions()
	if err != nil {
		return err
	}
	if len(versions) <= s.keep {
		return nil
	}
	for _, v := range versions[:len(versions)-s.keep] {
		if err := os.Remove(s.path(v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove version %d: %w", v, err)
		}
	}
	return nil
}
