package broker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ringdb/ringdb/pkg/fs"
	"github.com/ringdb/ringdb/pkg/ringdb"
)

// Logger receives diagnostic messages that are not returned to the client:
// recovered non-monotonic samples, internal errors caught at the boundary.
// It is the same interface pkg/ringdb uses, so one logger threads through
// both layers.
type Logger = ringdb.Logger

// NopLogger discards every message.
type NopLogger = ringdb.NopLogger

// Broker owns every open series file for its lifetime and serializes
// per-series access. The broker-wide coordination lock guards only the
// slug->handle and slug->mutex maps; it is never held across filesystem or
// mmap I/O.
type Broker struct {
	fsys   fs.FS
	locker *fs.Locker
	logger Logger

	baseDir          string
	tsdbDir          string
	csvDir           string
	defaultThreshold float32

	coordLock sync.Mutex
	handles   map[string]*ringdb.Series
	mutexes   map[string]*sync.Mutex

	index *seriesIndex
}

// New constructs a Broker rooted at baseDir. baseDir's tsdb/ and csv/
// subdirectories are created if missing. defaultThreshold is used as a
// newly created series' archive threshold when the caller omits one.
func New(fsys fs.FS, locker *fs.Locker, baseDir string, defaultThreshold float32, logger Logger) (*Broker, error) {
	if logger == nil {
		logger = NopLogger{}
	}

	tsdbDir := filepath.Join(baseDir, "tsdb")
	csvDir := filepath.Join(baseDir, "csv")

	if err := fsys.MkdirAll(tsdbDir, 0o755); err != nil {
		return nil, fmt.Errorf("broker: creating tsdb dir: %w", err)
	}

	if err := fsys.MkdirAll(csvDir, 0o755); err != nil {
		return nil, fmt.Errorf("broker: creating csv dir: %w", err)
	}

	return &Broker{
		fsys:             fsys,
		locker:           locker,
		logger:           logger,
		baseDir:          baseDir,
		tsdbDir:          tsdbDir,
		csvDir:           csvDir,
		defaultThreshold: defaultThreshold,
		handles:          map[string]*ringdb.Series{},
		mutexes:          map[string]*sync.Mutex{},
		index:            newSeriesIndex(fsys, filepath.Join(baseDir, "index.json")),
	}, nil
}

func (b *Broker) tsdbPath(slug string) string { return filepath.Join(b.tsdbDir, slug+".tsdb") }
func (b *Broker) csvPath(slug string) string  { return filepath.Join(b.csvDir, slug+".csv") }

// seriesMutex returns (creating if necessary) the per-slug mutex, under the
// broker-wide coordination lock.
func (b *Broker) seriesMutex(slug string) *sync.Mutex {
	b.coordLock.Lock()
	defer b.coordLock.Unlock()

	m, ok := b.mutexes[slug]
	if !ok {
		m = &sync.Mutex{}
		b.mutexes[slug] = m
	}

	return m
}

// withSeries runs fn holding slug's per-series mutex, lazily opening the
// handle first if needed; the file is opened with the coordination lock
// released. Lookup/install of the
// handle happens under the coordination lock; fn itself runs with only the
// per-series mutex held.
func (b *Broker) withSeries(slug string, fn func(*ringdb.Series) (any, error)) (any, error) {
	if !ringdb.ValidSlug(slug) {
		return nil, fmt.Errorf("%w: %w", ErrClientError, ringdb.ErrInvalidSlug)
	}

	mu := b.seriesMutex(slug)
	mu.Lock()
	defer mu.Unlock()

	handle, err := b.openHandleLocked(slug)
	if err != nil {
		return nil, err
	}

	return fn(handle)
}

// openHandleLocked returns the cached handle for slug, opening it
// on-demand from disk if this is the first use since broker start.
// Callers must hold slug's per-series mutex.
func (b *Broker) openHandleLocked(slug string) (*ringdb.Series, error) {
	b.coordLock.Lock()
	handle, ok := b.handles[slug]
	b.coordLock.Unlock()

	if ok {
		return handle, nil
	}

	opened, err := ringdb.OpenSeries(b.fsys, b.locker, b.tsdbPath(slug), b.logger)
	if err != nil {
		return nil, err
	}

	b.coordLock.Lock()
	b.handles[slug] = opened
	b.coordLock.Unlock()

	return opened, nil
}

// Execute dispatches a parsed Action by Go type, never by command-name
// string, and returns the command's result value.
func (b *Broker) Execute(action Action) (any, error) {
	switch a := action.(type) {
	case ListAction:
		return b.list()
	case CreateAction:
		return b.create(a)
	case UpdateAction:
		return b.withSeries(a.Series, func(s *ringdb.Series) (any, error) {
			return nil, s.Update(a.Batch)
		})
	case AppendAction:
		return b.append(a)
	case FetchAction:
		return b.withSeries(a.Series, func(s *ringdb.Series) (any, error) {
			return s.Fetch(a.AggregationType, a.Resolution, a.PeriodStart, a.PeriodEnd)
		})
	case InfoAction:
		return b.withSeries(a.Series, func(s *ringdb.Series) (any, error) {
			return s.Info(a.Series), nil
		})
	case GetConfigAction:
		return b.withSeries(a.Series, func(s *ringdb.Series) (any, error) {
			return s.Info(a.Series), nil
		})
	case ExistsAction:
		return b.exists(a.Series)
	case DeleteAction:
		return nil, b.delete(a.Series)
	default:
		return nil, fmt.Errorf("%w: %T", ErrNoSuchCommand, action)
	}
}

func (b *Broker) create(a CreateAction) (any, error) {
	if !ringdb.ValidSlug(a.Series) {
		return nil, fmt.Errorf("%w: %w", ErrClientError, ringdb.ErrInvalidSlug)
	}

	mu := b.seriesMutex(a.Series)
	mu.Lock()
	defer mu.Unlock()

	b.coordLock.Lock()
	_, alreadyOpen := b.handles[a.Series]
	b.coordLock.Unlock()

	if alreadyOpen {
		return nil, ringdb.ErrSeriesAlreadyExists
	}

	handle, err := ringdb.CreateSeries(b.fsys, b.locker, b.tsdbPath(a.Series), ringdb.SeriesConfig{
		SeriesType:       a.SeriesType,
		Start:            a.Start,
		Interval:         a.Interval,
		TimezoneName:     a.TimezoneName,
		Archives:         a.Archives,
		DefaultThreshold: b.defaultThreshold,
	}, b.logger)
	if err != nil {
		return nil, err
	}

	if err := b.fsys.WriteFile(b.csvPath(a.Series), nil, 0o644); err != nil {
		b.logger.Errorf("broker: creating csv sidecar for %q: %v", a.Series, err)
	}

	b.coordLock.Lock()
	b.handles[a.Series] = handle
	b.coordLock.Unlock()

	if err := b.index.add(a.Series, time.Now()); err != nil {
		b.logger.Errorf("broker: updating index after create %q: %v", a.Series, err)
	}

	return nil, nil
}

func (b *Broker) append(a AppendAction) (any, error) {
	return b.withSeries(a.Series, func(s *ringdb.Series) (any, error) {
		info := s.Info(a.Series)

		filtered := make([]ringdb.Reading, 0, len(a.Readings))
		for _, r := range a.Readings {
			if r.Timestamp.After(info.Last) {
				filtered = append(filtered, r)
			}
		}

		if err := s.Update(filtered); err != nil {
			return nil, err
		}

		if err := b.appendAuditRows(a.Series, filtered); err != nil {
			b.logger.Errorf("broker: writing audit rows for %q: %v", a.Series, err)
		}

		updated := s.Info(a.Series)

		return map[string]any{
			"appended": len(filtered),
			"last":     updated.Last,
		}, nil
	})
}

func (b *Broker) appendAuditRows(slug string, readings []ringdb.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	f, err := b.fsys.OpenFile(b.csvPath(slug), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, r := range readings {
		line := fmt.Sprintf("%s,%g\n", r.Timestamp.Format(time.RFC3339), r.Value)
		if _, err := f.Write([]byte(line)); err != nil {
			return err
		}
	}

	return nil
}

func (b *Broker) exists(slug string) (bool, error) {
	if !ringdb.ValidSlug(slug) {
		return false, fmt.Errorf("%w: %w", ErrClientError, ringdb.ErrInvalidSlug)
	}

	b.coordLock.Lock()
	_, open := b.handles[slug]
	b.coordLock.Unlock()

	if open {
		return true, nil
	}

	return b.fsys.Exists(b.tsdbPath(slug))
}

func (b *Broker) delete(slug string) error {
	if !ringdb.ValidSlug(slug) {
		return fmt.Errorf("%w: %w", ErrClientError, ringdb.ErrInvalidSlug)
	}

	mu := b.seriesMutex(slug)
	mu.Lock()
	defer mu.Unlock()

	b.coordLock.Lock()
	handle, ok := b.handles[slug]
	if ok {
		delete(b.handles, slug)
	}
	delete(b.mutexes, slug)
	b.coordLock.Unlock()

	if !ok {
		exists, err := b.fsys.Exists(b.tsdbPath(slug))
		if err != nil {
			return err
		}

		if !exists {
			return ringdb.ErrSeriesNotFound
		}
	} else if err := handle.Close(); err != nil {
		b.logger.Errorf("broker: closing %q before delete: %v", slug, err)
	}

	if err := b.fsys.Remove(b.tsdbPath(slug)); err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := b.fsys.Remove(b.csvPath(slug)); err != nil && !os.IsNotExist(err) {
		b.logger.Errorf("broker: removing csv sidecar for %q: %v", slug, err)
	}

	if err := b.index.remove(slug); err != nil {
		b.logger.Errorf("broker: updating index after delete %q: %v", slug, err)
	}

	return nil
}

func (b *Broker) list() ([]string, error) {
	slugs := b.index.slugs()
	if len(slugs) > 0 {
		return slugs, nil
	}

	if err := b.index.rebuildFromDisk(b.fsys, b.tsdbDir); err != nil {
		return nil, fmt.Errorf("broker: rebuilding series index: %w", err)
	}

	return b.index.slugs(), nil
}

// Close closes every open handle. Intended for orderly broker shutdown.
func (b *Broker) Close() error {
	b.coordLock.Lock()
	defer b.coordLock.Unlock()

	var firstErr error

	for slug, h := range b.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("broker: closing %q: %w", slug, err)
		}
	}

	b.handles = map[string]*ringdb.Series{}

	return firstErr
}
