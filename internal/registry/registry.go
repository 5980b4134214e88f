package registry

import (
	"bytes"
	"os"
	"strings"
	"sync/atomic"

	"github.com/spf13/viper"

	"github.com/eastgrand/geoinsight/internal/infrastructure/monitoring/logging"
	"github.com/eastgrand/geoinsight/pkg/errors"
)

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Registry publishes the active Snapshot.  Readers call Current and keep the
// returned pointer for the whole request; Swap installs a fully-formed
// replacement atomically and never mutates a published snapshot in place.
type Registry struct {
	active atomic.Pointer[Snapshot]
	logger logging.Logger
}

// New constructs a Registry seeded with the given snapshot.
func New(snap *Snapshot, log logging.Logger) *Registry {
	r := &Registry{logger: log.Named("registry")}
	r.active.Store(snap)
	return r
}

// Current returns the active snapshot.  Never nil after construction.
func (r *Registry) Current() *Snapshot {
	return r.active.Load()
}

// Swap atomically installs next as the active snapshot.
func (r *Registry) Swap(next *Snapshot) {
	prev := r.active.Swap(next)
	r.logger.Info("registry snapshot swapped",
		logging.String("previous_version", prev.Version),
		logging.String("version", next.Version),
		logging.Int("endpoints", next.Catalog.Len()),
	)
}

// ParseDocument decodes raw YAML bytes into a compiled Snapshot.
func ParseDocument(raw []byte) (*Snapshot, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotInvalid, "registry document is not valid YAML")
	}
	doc := &Document{}
	if err := v.Unmarshal(doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotInvalid, "registry document has invalid structure")
	}
	snap, err := Compile(doc, raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotInvalid, "registry document failed validation")
	}
	return snap, nil
}

// LoadFile reads and compiles the registry document at path.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSnapshotInvalid, "failed to read registry document")
	}
	return ParseDocument(raw)
}
