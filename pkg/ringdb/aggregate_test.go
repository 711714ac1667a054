package ringdb

import (
	"math"
	"testing"
)

func Test_Boundaries_Returns_Every_Multiple_In_Half_Open_Interval(t *testing.T) {
	got := boundaries(1800, 5400, 1800)
	want := []int64{3600, 5400}

	if len(got) != len(want) {
		t.Fatalf("boundaries = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("boundaries = %v, want %v", got, want)
		}
	}
}

func Test_Boundaries_Excludes_Previous_Timestamp_Itself(t *testing.T) {
	got := boundaries(1800, 1800, 1800)
	if len(got) != 0 {
		t.Fatalf("boundaries = %v, want empty", got)
	}
}

func Test_CombinePeriod_Scenario_Average_Single_Boundary(t *testing.T) {
	a := &Archive{
		aggregationType: Average,
		aggregation:     1,
		count:           1000,
		threshold:       0.5,
		accumulator:     float32(math.NaN()),
		sampleCount:     float32(math.NaN()),
	}

	prev := int64(1293883200) // 2011-01-01T12:00:00Z
	next := prev + 1800

	emitted := a.combinePeriod(1800, prev, next, 300)

	if len(emitted) != 1 {
		t.Fatalf("emitted = %v, want one slot", emitted)
	}

	if emitted[0] != 300 {
		t.Errorf("emitted[0] = %v, want 300", emitted[0])
	}

	if a.accumulator != 0 {
		t.Errorf("accumulator after emission = %v, want 0", a.accumulator)
	}

	if a.sampleCount != 0 {
		t.Errorf("sampleCount after emission = %v, want 0", a.sampleCount)
	}
}

func Test_CombinePeriod_Below_Threshold_Emits_NaN(t *testing.T) {
	a := &Archive{
		aggregationType: Average,
		aggregation:     4, // resolution = 4 * interval = 400
		count:           10,
		threshold:       0.9,
		accumulator:     0,
		sampleCount:     0,
	}

	interval := uint32(100)
	prev := int64(100) // mid-window: only 300 of the 400s window is covered
	next := int64(400) // boundary

	emitted := a.combinePeriod(interval, prev, next, 50)
	if len(emitted) != 1 {
		t.Fatalf("emitted = %v, want one slot", emitted)
	}

	if !isNaN32(emitted[0]) {
		t.Errorf("emitted[0] = %v, want NaN (coverage 0.75 < threshold 0.9)", emitted[0])
	}
}

func Test_CombineGauge_First_Sample_Records_Baseline_And_Emits_Nothing(t *testing.T) {
	a := &Archive{
		aggregationType: Average,
		aggregation:     1,
		count:           10,
		accumulator:     float32(math.NaN()),
	}

	emitted := a.combineGauge(1800, 0, 1800, 0, 42)

	if emitted != nil {
		t.Errorf("emitted = %v, want nil on first sample", emitted)
	}

	if a.accumulator != 42 {
		t.Errorf("accumulator = %v, want 42", a.accumulator)
	}
}

func Test_CombineGauge_Interpolates_At_Boundary(t *testing.T) {
	a := &Archive{
		aggregationType: Average,
		aggregation:     1,
		count:           10,
		accumulator:     0, // previous reading
	}

	emitted := a.combineGauge(1800, 0, 1800, 0, 100)

	if len(emitted) != 1 {
		t.Fatalf("emitted = %v, want one slot", emitted)
	}

	if emitted[0] != 100 {
		t.Errorf("emitted[0] = %v, want 100 (boundary coincides with new sample)", emitted[0])
	}
}
