package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ringdb/ringdb/pkg/ringdb"
)

// Command is a wire-protocol command name.
type Command string

const (
	CmdCreate     Command = "create"
	CmdUpdate     Command = "update"
	CmdAppend     Command = "append"
	CmdFetch      Command = "fetch"
	CmdInfo       Command = "info"
	CmdGetConfig  Command = "get_config"
	CmdExists     Command = "exists"
	CmdDelete     Command = "delete"
	CmdList       Command = "list"
)

// Action is a parsed, type-safe request. Dispatch switches on the concrete
// type rather than on a command-name string.
type Action interface {
	isAction()
}

type CreateAction struct {
	Series       string
	SeriesType   ringdb.SeriesType
	Start        time.Time
	Interval     uint32
	Archives     []ringdb.ArchiveConfig
	TimezoneName string
}

type UpdateAction struct {
	Series  string
	Batch   []ringdb.Reading
}

type AppendAction struct {
	Series   string
	Readings []ringdb.Reading
}

type FetchAction struct {
	Series          string
	AggregationType ringdb.AggregationType
	Resolution      int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
}

type InfoAction struct{ Series string }
type GetConfigAction struct{ Series string }
type ExistsAction struct{ Series string }
type DeleteAction struct{ Series string }
type ListAction struct{}

func (CreateAction) isAction()    {}
func (UpdateAction) isAction()    {}
func (AppendAction) isAction()    {}
func (FetchAction) isAction()     {}
func (InfoAction) isAction()      {}
func (GetConfigAction) isAction() {}
func (ExistsAction) isAction()    {}
func (DeleteAction) isAction()    {}
func (ListAction) isAction()      {}

// Frame is the wire request envelope: a command name, optional series
// identity, and a command-specific args payload.
type Frame struct {
	Command Command         `json:"command"`
	Series  string          `json:"series,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// createArgs etc. mirror the JSON shape of each command's args payload.
type createArgs struct {
	SeriesType   string                 `json:"series_type"`
	Start        time.Time              `json:"start"`
	Interval     uint32                 `json:"interval"`
	Archives     []archiveArgs          `json:"archives"`
	TimezoneName string                 `json:"timezone_name"`
}

type archiveArgs struct {
	AggregationType string  `json:"aggregation_type"`
	Aggregation     uint32  `json:"aggregation"`
	Count           uint32  `json:"count"`
	Threshold       float32 `json:"threshold"`
}

type readingArgs struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float32   `json:"value"`
}

type updateArgs struct {
	Batch []readingArgs `json:"batch"`
}

type appendArgs struct {
	Readings []readingArgs `json:"readings"`
}

type fetchArgs struct {
	AggregationType string    `json:"aggregation_type"`
	Resolution      int64     `json:"resolution"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
}

// ParseAction decodes a wire Frame into a concrete Action. This is the
// single place command-name dispatch happens; everything downstream
// switches on Go types.
func ParseAction(f Frame) (Action, error) {
	switch f.Command {
	case CmdCreate:
		var a createArgs
		if err := unmarshalArgs(f.Args, &a); err != nil {
			return nil, err
		}

		st, err := parseSeriesType(a.SeriesType)
		if err != nil {
			return nil, err
		}

		archives := make([]ringdb.ArchiveConfig, len(a.Archives))
		for i, ac := range a.Archives {
			at, err := parseAggregationType(ac.AggregationType)
			if err != nil {
				return nil, err
			}

			archives[i] = ringdb.ArchiveConfig{
				AggregationType: at,
				Aggregation:     ac.Aggregation,
				Count:           ac.Count,
				Threshold:       ac.Threshold,
			}
		}

		return CreateAction{
			Series:       f.Series,
			SeriesType:   st,
			Start:        a.Start,
			Interval:     a.Interval,
			Archives:     archives,
			TimezoneName: a.TimezoneName,
		}, nil

	case CmdUpdate:
		var a updateArgs
		if err := unmarshalArgs(f.Args, &a); err != nil {
			return nil, err
		}

		return UpdateAction{Series: f.Series, Batch: toReadings(a.Batch)}, nil

	case CmdAppend:
		var a appendArgs
		if err := unmarshalArgs(f.Args, &a); err != nil {
			return nil, err
		}

		return AppendAction{Series: f.Series, Readings: toReadings(a.Readings)}, nil

	case CmdFetch:
		var a fetchArgs
		if err := unmarshalArgs(f.Args, &a); err != nil {
			return nil, err
		}

		at, err := parseAggregationType(a.AggregationType)
		if err != nil {
			return nil, err
		}

		return FetchAction{
			Series:          f.Series,
			AggregationType: at,
			Resolution:      a.Resolution,
			PeriodStart:     a.PeriodStart,
			PeriodEnd:       a.PeriodEnd,
		}, nil

	case CmdInfo:
		return InfoAction{Series: f.Series}, nil
	case CmdGetConfig:
		return GetConfigAction{Series: f.Series}, nil
	case CmdExists:
		return ExistsAction{Series: f.Series}, nil
	case CmdDelete:
		return DeleteAction{Series: f.Series}, nil
	case CmdList:
		return ListAction{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoSuchCommand, f.Command)
	}
}

func unmarshalArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing args", ErrClientError)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrClientError, err)
	}

	return nil
}

func toReadings(in []readingArgs) []ringdb.Reading {
	out := make([]ringdb.Reading, len(in))
	for i, r := range in {
		out[i] = ringdb.Reading{Timestamp: r.Timestamp, Value: r.Value}
	}

	return out
}

func parseSeriesType(s string) (ringdb.SeriesType, error) {
	switch s {
	case "period":
		return ringdb.Period, nil
	case "gauge":
		return ringdb.Gauge, nil
	case "counter":
		return ringdb.Counter, nil
	default:
		return 0, fmt.Errorf("%w: unknown series_type %q", ErrClientError, s)
	}
}

func parseAggregationType(s string) (ringdb.AggregationType, error) {
	switch s {
	case "average":
		return ringdb.Average, nil
	case "min":
		return ringdb.Min, nil
	case "max":
		return ringdb.Max, nil
	default:
		return 0, fmt.Errorf("%w: unknown aggregation_type %q", ErrClientError, s)
	}
}
