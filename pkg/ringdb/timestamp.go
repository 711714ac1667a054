package ringdb

import "time"

// toEpoch converts an absolute instant to whole UTC Unix seconds. Any
// attached time zone is discarded; only the instant matters.
func toEpoch(t time.Time) int64 {
	return t.UTC().Unix()
}

// fromEpoch converts whole UTC Unix seconds back to an instant, in UTC.
// Display-zone conversion happens only at the API boundary via
// fromEpochInZone.
func fromEpoch(epoch int64) time.Time {
	return time.Unix(epoch, 0).UTC()
}

// fromEpochInZone converts epoch seconds to an instant displayed in loc.
// The instant itself is unchanged; only its zone representation differs.
func fromEpochInZone(epoch int64, loc *time.Location) time.Time {
	return time.Unix(epoch, 0).In(loc)
}

// alignDown rounds epoch down to the nearest multiple of interval seconds.
func alignDown(epoch int64, interval int64) int64 {
	if interval <= 0 {
		return epoch
	}

	rem := epoch % interval
	if rem < 0 {
		rem += interval
	}

	return epoch - rem
}

// alignUp rounds epoch up to the nearest multiple of interval seconds.
func alignUp(epoch int64, interval int64) int64 {
	down := alignDown(epoch, interval)
	if down == epoch {
		return epoch
	}

	return down + interval
}
