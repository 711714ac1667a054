// Package ringdb implements a fixed-size, round-robin time-series storage
// engine.
//
// A series is a named stream of (timestamp, value) samples backed by one
// memory-mapped file. At creation time the caller declares one or more
// archives — circular buffers of single-precision slots at increasing
// resolutions — and the file is sized once; it never grows. Each Update
// call folds new samples into every archive's rolling aggregation state and
// appends any slots that became final.
//
// Series is the public entrypoint: Create, Open, Update, Fetch, Info, and
// Close. Everything else in this package (Archive, the aggregator state
// machine, the on-disk header/archive codec) is an implementation detail
// reachable through Series.
package ringdb
