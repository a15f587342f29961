package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/putscout/internal/models"
)

func TestRecorderGathers(t *testing.T) {
	r := New()
	r.ObserveStock("INFY", 120, 4)
	r.ObserveStock("INFY", 10, 1)
	r.ObservePlacements([]models.Placement{{Kind: models.PlacementGTT}, {Kind: models.PlacementEntry}, {Kind: models.PlacementEntry}})
	r.Selected.Set(3)

	mfs, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, l := range m.GetLabel() {
				key += "/" + l.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	want := map[string]float64{
		"putscout_chain_options_total/INFY": 130,
		"putscout_candidates_total/INFY":    5,
		"putscout_placements_total/gtt":     1,
		"putscout_placements_total/entry":   2,
		"putscout_options_of_interest":      3,
	}
	for k, v := range want {
		if values[k] != v {
			t.Errorf("%s = %v, want %v", k, values[k], v)
		}
	}
}

func TestWrite(t *testing.T) {
	r := New()
	started := time.Unix(1600000000, 0)
	r.Finish(started, started.Add(90*time.Second))

	if err := r.Write(""); err != nil {
		t.Fatalf("Write with empty path: %v", err)
	}

	path := filepath.Join(t.TempDir(), "putscout.prom")
	if err := r.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "putscout_run_duration_seconds 90") {
		t.Errorf("missing run duration:\n%s", out)
	}
	if !strings.Contains(out, "putscout_last_run_timestamp_seconds 1.6000000") {
		t.Errorf("missing last run timestamp:\n%s", out)
	}
}
