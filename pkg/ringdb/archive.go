package ringdb

// Archive is one circular buffer of f32 slots plus its rolling aggregation
// state. It holds no memory of its own; callers pass the series' mapped
// file buffer to every operation that touches slot or metadata bytes.
type Archive struct {
	aggregationType AggregationType
	aggregation     uint32 // native samples per slot
	count           uint32 // slots in the ring
	threshold       float32

	cycles   uint32
	position uint32

	accumulator float32
	sampleCount float32 // NaN means "unset" / fresh

	metaOffset int64 // byte offset of this archive's metadata record
	slotsOff   int64 // byte offset of this archive's slot array
}

// resolution returns the number of seconds one slot of this archive covers.
func (a *Archive) resolution(interval uint32) int64 {
	return int64(interval) * int64(a.aggregation)
}

// totalAppended returns the total number of slots ever finalized.
func (a *Archive) totalAppended() uint64 {
	return uint64(a.cycles)*uint64(a.count) + uint64(a.position)
}

// appendSlot writes value at the current write head, advances it, and wraps
// the ring on overflow. The write is a single 4-byte aligned store.
func (a *Archive) appendSlot(buf []byte, value float32) {
	off := a.slotsOff + int64(a.position)*4
	writeSlot(buf, off, value)

	a.position++
	if a.position >= a.count {
		a.position = 0
		a.cycles++
	}
}

// slotAt maps a logical slot index (0-based, monotonically increasing since
// series creation) to its physical slot and reads it. ok is false if
// logicalIndex falls outside [0, totalAppended()).
func (a *Archive) slotAt(buf []byte, logicalIndex uint64) (value float32, ok bool) {
	if logicalIndex >= a.totalAppended() {
		return 0, false
	}

	phys := logicalIndex % uint64(a.count)
	off := a.slotsOff + int64(phys)*4

	return readSlot(buf, off), true
}

// retainedWindowStart returns the lowest logical slot index still present
// in the ring; everything below it has been overwritten.
func (a *Archive) retainedWindowStart() uint64 {
	total := a.totalAppended()
	if total <= uint64(a.count) {
		return 0
	}

	return total - uint64(a.count)
}

// persistMeta rewrites this archive's metadata record in place.
func (a *Archive) persistMeta(buf []byte) {
	encodeArchiveMeta(buf[a.metaOffset:a.metaOffset+ArchiveMetaSize], archiveMeta{
		aggregationType:  a.aggregationType,
		aggregation:      a.aggregation,
		count:            a.count,
		cycles:           a.cycles,
		position:         a.position,
		threshold:        a.threshold,
		stateAccumulator: a.accumulator,
		stateSampleCount: a.sampleCount,
	})
}

func (a *Archive) info(interval uint32) ArchiveInfo {
	return ArchiveInfo{
		AggregationType: a.aggregationType,
		Aggregation:     a.aggregation,
		Count:           a.count,
		Resolution:      a.resolution(interval),
		Cycles:          a.cycles,
		Position:        a.position,
	}
}
