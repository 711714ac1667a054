package ringdb

import (
	"encoding/binary"
	"fmt"
	"math"
)

// On-disk layout. All integers little-endian.
//
//	Header (fixed prefix, HeaderSize bytes):
//	  series_type   i64  offset 0
//	  start_epoch   i64  offset 8
//	  interval      u32  offset 16
//	  archive_count u32  offset 20
//	  timezone_name [64]byte, NUL-padded UTF-8, offset 24
//	  last_epoch    i64  offset 88
//	Then archive_count repetitions of ArchiveMetaSize-byte archive metadata:
//	  aggregation_type   u32
//	  aggregation        u32
//	  count              u32
//	  cycles             u32
//	  position           u32
//	  threshold          f32
//	  state_accumulator  f32
//	  state_sample_count f32
//	Then, in declaration order, each archive's slot array: count x f32.
const (
	offSeriesType    = 0
	offStartEpoch    = 8
	offInterval      = 16
	offArchiveCount  = 20
	offTimezoneName  = 24
	offLastEpoch     = 88
	HeaderSize       = 96
	ArchiveMetaSize  = 32
	timezoneNameSize = 64
)

var byteOrder = binary.LittleEndian

// LastEpochOffset returns the fixed byte offset of the last_epoch field
// inside the header, so callers needing only that field can issue a single
// small write without touching the rest of the header.
func LastEpochOffset() int64 { return offLastEpoch }

func encodeHeader(buf []byte, cfg SeriesConfig, lastEpoch int64) error {
	if len(buf) < HeaderSize {
		return fmt.Errorf("ringdb: header buffer too small: %d < %d", len(buf), HeaderSize)
	}

	if len(cfg.TimezoneName) > timezoneNameSize-1 {
		return fmt.Errorf("%w: timezone name %q exceeds %d bytes", ErrInvalidConfig, cfg.TimezoneName, timezoneNameSize-1)
	}

	byteOrder.PutUint64(buf[offSeriesType:], uint64(cfg.SeriesType))
	byteOrder.PutUint64(buf[offStartEpoch:], uint64(toEpoch(cfg.Start)))
	byteOrder.PutUint32(buf[offInterval:], cfg.Interval)
	byteOrder.PutUint32(buf[offArchiveCount:], uint32(len(cfg.Archives)))

	clear(buf[offTimezoneName : offTimezoneName+timezoneNameSize])
	copy(buf[offTimezoneName:offTimezoneName+timezoneNameSize], cfg.TimezoneName)

	byteOrder.PutUint64(buf[offLastEpoch:], uint64(lastEpoch))

	return nil
}

type decodedHeader struct {
	seriesType   SeriesType
	startEpoch   int64
	interval     uint32
	archiveCount uint32
	timezoneName string
	lastEpoch    int64
}

func decodeHeader(buf []byte) (decodedHeader, error) {
	if len(buf) < HeaderSize {
		return decodedHeader{}, fmt.Errorf("%w: header buffer too small: %d < %d", ErrInternal, len(buf), HeaderSize)
	}

	nameBytes := buf[offTimezoneName : offTimezoneName+timezoneNameSize]
	nul := len(nameBytes)
	for i, b := range nameBytes {
		if b == 0 {
			nul = i
			break
		}
	}

	return decodedHeader{
		seriesType:   SeriesType(byteOrder.Uint64(buf[offSeriesType:])),
		startEpoch:   int64(byteOrder.Uint64(buf[offStartEpoch:])),
		interval:     byteOrder.Uint32(buf[offInterval:]),
		archiveCount: byteOrder.Uint32(buf[offArchiveCount:]),
		timezoneName: string(nameBytes[:nul]),
		lastEpoch:    int64(byteOrder.Uint64(buf[offLastEpoch:])),
	}, nil
}

func encodeLastEpoch(buf []byte, lastEpoch int64) {
	byteOrder.PutUint64(buf[offLastEpoch:], uint64(lastEpoch))
}

type archiveMeta struct {
	aggregationType   AggregationType
	aggregation       uint32
	count             uint32
	cycles            uint32
	position          uint32
	threshold         float32
	stateAccumulator  float32
	stateSampleCount  float32
}

func encodeArchiveMeta(buf []byte, m archiveMeta) {
	byteOrder.PutUint32(buf[0:], uint32(m.aggregationType))
	byteOrder.PutUint32(buf[4:], m.aggregation)
	byteOrder.PutUint32(buf[8:], m.count)
	byteOrder.PutUint32(buf[12:], m.cycles)
	byteOrder.PutUint32(buf[16:], m.position)
	byteOrder.PutUint32(buf[20:], math.Float32bits(m.threshold))
	byteOrder.PutUint32(buf[24:], math.Float32bits(m.stateAccumulator))
	byteOrder.PutUint32(buf[28:], math.Float32bits(m.stateSampleCount))
}

func decodeArchiveMeta(buf []byte) archiveMeta {
	return archiveMeta{
		aggregationType:  AggregationType(byteOrder.Uint32(buf[0:])),
		aggregation:      byteOrder.Uint32(buf[4:]),
		count:            byteOrder.Uint32(buf[8:]),
		cycles:           byteOrder.Uint32(buf[12:]),
		position:         byteOrder.Uint32(buf[16:]),
		threshold:        math.Float32frombits(byteOrder.Uint32(buf[20:])),
		stateAccumulator: math.Float32frombits(byteOrder.Uint32(buf[24:])),
		stateSampleCount: math.Float32frombits(byteOrder.Uint32(buf[28:])),
	}
}

func readSlot(buf []byte, byteOffset int64) float32 {
	return math.Float32frombits(byteOrder.Uint32(buf[byteOffset:]))
}

func writeSlot(buf []byte, byteOffset int64, v float32) {
	byteOrder.PutUint32(buf[byteOffset:], math.Float32bits(v))
}

// archiveMetaOffset returns the byte offset of archive i's metadata record.
func archiveMetaOffset(archiveCount, i int) int64 {
	_ = archiveCount
	return HeaderSize + int64(i)*ArchiveMetaSize
}

// slotArrayOffset returns the byte offset of archive i's slot array, given
// every archive's slot count in declaration order.
func slotArrayOffset(counts []uint32, i int) int64 {
	off := HeaderSize + int64(len(counts))*ArchiveMetaSize
	for j := range i {
		off += int64(counts[j]) * 4
	}

	return off
}

// totalFileSize returns the full file size for a series with the given
// archive slot counts.
func totalFileSize(counts []uint32) int64 {
	size := HeaderSize + int64(len(counts))*ArchiveMetaSize
	for _, c := range counts {
		size += int64(c) * 4
	}

	return size
}
