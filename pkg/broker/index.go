package broker

import (
	"bytes"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/ringdb/ringdb/pkg/fs"
)

// seriesIndex is a small accelerator cache mapping slug to creation time,
// persisted as index.json so list() avoids a directory scan on a warm
// broker. It is never a source of truth: a missing or corrupt index file
// is treated as empty and repaired from a directory scan by the caller.
// All disk access goes through the injected fs.FS, the same as the rest of
// the broker and the engine.
type seriesIndex struct {
	mu      sync.Mutex
	fsys    fs.FS
	writer  *fs.AtomicWriter
	path    string
	entries map[string]time.Time
}

func newSeriesIndex(fsys fs.FS, path string) *seriesIndex {
	idx := &seriesIndex{
		fsys:    fsys,
		writer:  fs.NewAtomicWriter(fsys),
		path:    path,
		entries: map[string]time.Time{},
	}
	idx.load()

	return idx
}

func (idx *seriesIndex) load() {
	raw, err := idx.fsys.ReadFile(idx.path)
	if err != nil {
		return
	}

	var entries map[string]time.Time
	if err := json.Unmarshal(raw, &entries); err != nil {
		return
	}

	idx.entries = entries
}

func (idx *seriesIndex) add(slug string, createdAt time.Time) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries[slug] = createdAt

	return idx.persistLocked()
}

func (idx *seriesIndex) remove(slug string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delete(idx.entries, slug)

	return idx.persistLocked()
}

func (idx *seriesIndex) slugs() []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]string, 0, len(idx.entries))
	for slug := range idx.entries {
		out = append(out, slug)
	}

	sort.Strings(out)

	return out
}

func (idx *seriesIndex) persistLocked() error {
	buf, err := json.Marshal(idx.entries)
	if err != nil {
		return err
	}

	return idx.writer.WriteWithDefaults(idx.path, bytes.NewReader(buf))
}

// rebuildFromDisk replaces the index with a fresh directory scan, for
// recovering from a missing or stale index.json.
func (idx *seriesIndex) rebuildFromDisk(fsys fs.FS, tsdbDir string) error {
	entries, err := fsys.ReadDir(tsdbDir)
	if err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = map[string]time.Time{}

	for _, e := range entries {
		name := e.Name()
		if len(name) > 5 && name[len(name)-5:] == ".tsdb" {
			idx.entries[name[:len(name)-5]] = time.Time{}
		}
	}

	return idx.persistLocked()
}
