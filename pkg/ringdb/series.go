package ringdb

import (
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ringdb/ringdb/pkg/fs"
)

// Series is one open, memory-mapped series file. A Series is not safe for
// concurrent use by multiple goroutines; callers (normally pkg/broker)
// serialize access per series themselves.
type Series struct {
	fsys   fs.FS
	file   fs.File
	lock   *fs.Lock
	data   []byte
	path   string
	closed bool
	logger Logger

	seriesType   SeriesType
	interval     uint32
	timezoneName string
	loc          *time.Location
	start        int64
	last         int64

	archives []*Archive

	// counterBaseline holds the most recently observed raw reading of a
	// counter series, one value shared by all its archives, in memory only. It is intentionally not part
	// of the on-disk format (see DESIGN.md): it resets to "unknown" on
	// every Open, so the first sample seen after any process restart is
	// treated as establishing a fresh baseline, exactly as spec'd for an
	// archive's first-ever sample.
	counterBaselineSet bool
	counterBaseline    float32

	// gaugePrevRaw mirrors the same "previous raw reading" concept for
	// gauge series but is fully persisted (one float per archive, in the
	// archive's own accumulator field), so no in-memory shadow state is
	// needed here.
}

func validateConfig(cfg SeriesConfig) error {
	if cfg.Interval == 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}

	if cfg.Start.Location() == nil {
		return fmt.Errorf("%w: start has no zone", ErrInvalidConfig)
	}

	if len(cfg.Archives) == 0 {
		return fmt.Errorf("%w: archives must be non-empty", ErrInvalidConfig)
	}

	if len(cfg.TimezoneName) == 0 || len(cfg.TimezoneName) > maxTimezoneNameBytes-1 {
		return fmt.Errorf("%w: timezone name length out of range", ErrInvalidConfig)
	}

	if _, err := time.LoadLocation(cfg.TimezoneName); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidConfig, cfg.TimezoneName)
	}

	for i, a := range cfg.Archives {
		if a.Aggregation == 0 || a.Count == 0 {
			return fmt.Errorf("%w: archive %d has non-positive aggregation or count", ErrInvalidConfig, i)
		}

		if a.AggregationType != Average && a.AggregationType != Min && a.AggregationType != Max {
			return fmt.Errorf("%w: archive %d has unknown aggregation type", ErrInvalidConfig, i)
		}
	}

	return nil
}

// CreateSeries validates cfg, writes a complete new series file at path
// (header, archive metadata, NaN-filled value regions), and opens it.
// Fails with ErrSeriesAlreadyExists if path already exists.
func CreateSeries(fsys fs.FS, locker *fs.Locker, path string, cfg SeriesConfig, logger Logger) (*Series, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSeriesAlreadyExists, path)
	}

	startEpoch := alignDown(toEpoch(cfg.Start), int64(cfg.Interval))

	counts := make([]uint32, len(cfg.Archives))
	for i, a := range cfg.Archives {
		counts[i] = a.Count
	}

	size := totalFileSize(counts)
	buf := make([]byte, size)

	if err := encodeHeader(buf, SeriesConfig{
		SeriesType:   cfg.SeriesType,
		Start:        fromEpoch(startEpoch),
		Interval:     cfg.Interval,
		TimezoneName: cfg.TimezoneName,
		Archives:     cfg.Archives,
	}, startEpoch); err != nil {
		return nil, err
	}

	for i, a := range cfg.Archives {
		threshold := a.Threshold
		if threshold == 0 {
			threshold = cfg.DefaultThreshold
		}

		if threshold == 0 {
			threshold = 0.5
		}

		metaOff := archiveMetaOffset(len(cfg.Archives), i)
		encodeArchiveMeta(buf[metaOff:metaOff+ArchiveMetaSize], archiveMeta{
			aggregationType:  a.AggregationType,
			aggregation:      a.Aggregation,
			count:            a.Count,
			cycles:           0,
			position:         0,
			threshold:        threshold,
			stateAccumulator: float32(math.NaN()),
			stateSampleCount: float32(math.NaN()),
		})
	}

	nan := float32(math.NaN())
	for i := range counts {
		off := slotArrayOffset(counts, i)
		for j := uint32(0); j < counts[i]; j++ {
			writeSlot(buf, off+int64(j)*4, nan)
		}
	}

	if err := fsys.WriteFile(path, buf, 0o644); err != nil {
		return nil, fmt.Errorf("%w: writing series file: %w", ErrInternal, err)
	}

	return OpenSeries(fsys, locker, path, logger)
}

// OpenSeries maps an existing series file and reconstructs in-memory
// archive state from its header. Fails with ErrSeriesNotFound if path does
// not exist, or ErrSeriesLocked if another process holds the file's lock.
// A nil logger discards diagnostics.
func OpenSeries(fsys fs.FS, locker *fs.Locker, path string, logger Logger) (*Series, error) {
	if logger == nil {
		logger = NopLogger{}
	}

	exists, err := fsys.Exists(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSeriesNotFound, path)
	}

	lock, err := locker.TryLock(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeriesLocked, err)
	}

	file, err := fsys.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		lock.Close()
		return nil, fmt.Errorf("%w: opening series file: %w", ErrInternal, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		lock.Close()
		return nil, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		lock.Close()
		return nil, fmt.Errorf("%w: mmap: %w", ErrInternal, err)
	}

	hdr, err := decodeHeader(data)
	if err != nil {
		unix.Munmap(data)
		file.Close()
		lock.Close()
		return nil, err
	}

	loc, err := time.LoadLocation(hdr.timezoneName)
	if err != nil {
		unix.Munmap(data)
		file.Close()
		lock.Close()
		return nil, fmt.Errorf("%w: unknown stored timezone %q: %w", ErrInternal, hdr.timezoneName, err)
	}

	counts := make([]uint32, hdr.archiveCount)
	archives := make([]*Archive, hdr.archiveCount)

	for i := range archives {
		metaOff := archiveMetaOffset(int(hdr.archiveCount), i)
		m := decodeArchiveMeta(data[metaOff : metaOff+ArchiveMetaSize])
		counts[i] = m.count

		archives[i] = &Archive{
			aggregationType: m.aggregationType,
			aggregation:     m.aggregation,
			count:           m.count,
			threshold:       m.threshold,
			cycles:          m.cycles,
			position:        m.position,
			accumulator:     m.stateAccumulator,
			sampleCount:     m.stateSampleCount,
			metaOffset:      metaOff,
		}
	}

	for i, a := range archives {
		a.slotsOff = slotArrayOffset(counts, i)
	}

	return &Series{
		fsys:         fsys,
		file:         file,
		lock:         lock,
		data:         data,
		path:         path,
		logger:       logger,
		seriesType:   hdr.seriesType,
		interval:     hdr.interval,
		timezoneName: hdr.timezoneName,
		loc:          loc,
		start:        hdr.startEpoch,
		last:         hdr.lastEpoch,
		archives:     archives,
	}, nil
}

// Update folds an ordered batch of readings through every archive's
// aggregation state, appends any slots that became final, then rewrites
// the archive metadata block and last_epoch. Readings with a timestamp at
// or before the series' current last are skipped with a logged warning.
// Callers may safely submit overlapping batches: re-submitting an
// already-applied prefix is a no-op.
func (s *Series) Update(batch []Reading) error {
	if s.closed {
		return ErrClosed
	}

	for _, r := range batch {
		epoch := toEpoch(r.Timestamp)
		if epoch <= s.last {
			s.logger.Warnf("ringdb: %s: skipping non-monotonic reading at %d, last is %d", s.path, epoch, s.last)
			continue
		}

		if err := s.applyOne(epoch, r.Value); err != nil {
			return err
		}

		s.last = epoch
	}

	for _, a := range s.archives {
		a.persistMeta(s.data)
	}

	encodeLastEpoch(s.data, s.last)

	return nil
}

func (s *Series) applyOne(epoch int64, value float32) error {
	prev := s.last

	switch s.seriesType {
	case Period:
		for _, a := range s.archives {
			if a.aggregationType == Average && value < 0 {
				return ErrNegativeValueForAverage
			}
		}

		for _, a := range s.archives {
			slots := a.combinePeriod(s.interval, prev, epoch, value)
			for _, v := range slots {
				a.appendSlot(s.data, v)
			}
		}

	case Gauge:
		for _, a := range s.archives {
			prevRaw := a.accumulator
			slots := a.combineGauge(s.interval, prev, epoch, prevRaw, value)
			for _, v := range slots {
				a.appendSlot(s.data, v)
			}
		}

	case Counter:
		if !s.counterBaselineSet {
			s.counterBaselineSet = true
			s.counterBaseline = value
			return nil
		}

		delta := value - s.counterBaseline
		s.counterBaseline = value

		if delta < 0 {
			// Counter reset: absorb as a fresh baseline, emit nothing.
			return nil
		}

		for _, a := range s.archives {
			slots := a.combinePeriod(s.interval, prev, epoch, delta)
			for _, v := range slots {
				a.appendSlot(s.data, v)
			}
		}
	}

	return nil
}

// Fetch selects the archive matching (aggType, resolution) and returns
// every retained slot whose instant lies in [periodStart, periodEnd].
func (s *Series) Fetch(aggType AggregationType, resolution int64, periodStart, periodEnd time.Time) ([]Point, error) {
	if s.closed {
		return nil, ErrClosed
	}

	var archive *Archive
	for _, a := range s.archives {
		if a.aggregationType == aggType && a.resolution(s.interval) == resolution {
			archive = a
			break
		}
	}

	if archive == nil {
		return nil, fmt.Errorf("%w: aggregation=%s resolution=%ds", ErrNoSuitableArchive, aggType, resolution)
	}

	if periodEnd.IsZero() {
		periodEnd = time.Now()
	}

	if periodStart.IsZero() {
		periodStart = periodEnd.Add(-48 * time.Hour)
	}

	startEpoch := toEpoch(periodStart)
	if startEpoch < s.start {
		startEpoch = s.start
	}

	endEpoch := toEpoch(periodEnd)

	startEpoch = alignUp(startEpoch, resolution)
	endEpoch = alignDown(endEpoch, resolution)

	retainedStart := archive.retainedWindowStart()
	total := archive.totalAppended()
	firstBoundary := (s.start/resolution + 1) * resolution

	var points []Point
	for logical := retainedStart; logical < total; logical++ {
		instant := firstBoundary + int64(logical)*resolution
		if instant < startEpoch {
			continue
		}

		if instant > endEpoch {
			break
		}

		v, ok := archive.slotAt(s.data, logical)
		if !ok {
			continue
		}

		points = append(points, Point{
			Timestamp: fromEpochInZone(instant, s.loc),
			Value:     v,
		})
	}

	return points, nil
}

// Info returns series metadata for display.
func (s *Series) Info(slug string) Info {
	archiveInfos := make([]ArchiveInfo, len(s.archives))
	for i, a := range s.archives {
		archiveInfos[i] = a.info(s.interval)
	}

	return Info{
		Slug:         slug,
		SeriesType:   s.seriesType,
		Start:        fromEpochInZone(s.start, s.loc),
		Interval:     s.interval,
		TimezoneName: s.timezoneName,
		Last:         fromEpochInZone(s.last, s.loc),
		Archives:     archiveInfos,
	}
}

// Close flushes dirty pages, unmaps the file, releases the advisory lock,
// and closes the file descriptor. Close is idempotent.
func (s *Series) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true

	syncErr := unix.Msync(s.data, unix.MS_SYNC)
	unmapErr := unix.Munmap(s.data)
	closeErr := s.file.Close()
	lockErr := s.lock.Close()

	if syncErr != nil {
		return fmt.Errorf("%w: msync: %w", ErrInternal, syncErr)
	}

	if unmapErr != nil {
		return fmt.Errorf("%w: munmap: %w", ErrInternal, unmapErr)
	}

	if closeErr != nil {
		return fmt.Errorf("%w: %w", ErrInternal, closeErr)
	}

	return lockErr
}
