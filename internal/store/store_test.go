package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/inframind/infra-mind/internal/models"
)

func sample(resource string, cpu float64, ts time.Time) models.MetricSample {
	return models.MetricSample{
		ResourceID:  resource,
		CPUUsage:    cpu,
		MemoryUsage: 40,
		GPUUsage:    10,
		Timestamp:   ts,
	}
}

func TestIngestKeepsTimestampOrder(t *testing.T) {
	s := New(0)
	base := time.Now().UTC().Add(-time.Hour)

	// Deliberately out-of-order arrival offsets, in minutes.
	offsets := []int{5, 1, 9, 3, 3, 7, 0, 8, 2}
	for i, off := range offsets {
		if err := s.Ingest(sample("server-001", float64(i), base.Add(time.Duration(off)*time.Minute))); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}

		window, err := s.Window("server-001", len(offsets))
		if err != nil {
			t.Fatalf("window: %v", err)
		}
		for j := 1; j < len(window); j++ {
			if window[j].Timestamp.Before(window[j-1].Timestamp) {
				t.Fatalf("series out of order after ingest %d: %v before %v", i, window[j].Timestamp, window[j-1].Timestamp)
			}
		}
	}
}

func TestIngestEqualTimestampsStable(t *testing.T) {
	s := New(0)
	ts := time.Now().UTC().Add(-time.Minute)

	// Same timestamp, distinguishable by CPU value.
	for i := 0; i < 4; i++ {
		if err := s.Ingest(sample("server-001", float64(i), ts)); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	// A later sample first, then another equal-timestamp one, which must land
	// after the existing equals but before the later sample.
	if err := s.Ingest(sample("server-001", 99, ts.Add(time.Second))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Ingest(sample("server-001", 4, ts)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	window, err := s.Window("server-001", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	want := []float64{0, 1, 2, 3, 4, 99}
	if len(window) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(window))
	}
	for i, w := range want {
		if window[i].CPUUsage != w {
			t.Fatalf("position %d: expected cpu %v, got %v", i, w, window[i].CPUUsage)
		}
	}
}

func TestIngestEvictsOldest(t *testing.T) {
	s := New(10000)
	base := time.Now().UTC().Add(-24 * time.Hour)

	for i := 0; i < 10001; i++ {
		if err := s.Ingest(sample("server-001", 50, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("ingest %d: %v", i, err)
		}
	}

	window, err := s.Window("server-001", 10001)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 10000 {
		t.Fatalf("expected 10000 samples after eviction, got %d", len(window))
	}
	if got, want := window[0].Timestamp, base.Add(time.Second); !got.Equal(want) {
		t.Fatalf("expected oldest sample evicted: first timestamp %v, want %v", got, want)
	}
}

func TestIngestValidation(t *testing.T) {
	s := New(0)
	ts := time.Now().UTC()

	cases := []struct {
		name   string
		sample models.MetricSample
	}{
		{"empty resource", models.MetricSample{CPUUsage: 50, MemoryUsage: 50, GPUUsage: 50, Timestamp: ts}},
		{"cpu too high", models.MetricSample{ResourceID: "r", CPUUsage: 100.1, MemoryUsage: 50, GPUUsage: 50, Timestamp: ts}},
		{"memory negative", models.MetricSample{ResourceID: "r", CPUUsage: 50, MemoryUsage: -1, GPUUsage: 50, Timestamp: ts}},
		{"gpu too high", models.MetricSample{ResourceID: "r", CPUUsage: 50, MemoryUsage: 50, GPUUsage: 101, Timestamp: ts}},
		{"zero timestamp", models.MetricSample{ResourceID: "r", CPUUsage: 50, MemoryUsage: 50, GPUUsage: 50}},
	}
	for _, tc := range cases {
		err := s.Ingest(tc.sample)
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !models.IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}

	// Rejected samples must not create the resource.
	if _, err := s.Window("r", 1); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError after rejected ingest, got %v", err)
	}
}

func TestIngestNormalizesTimestampToUTC(t *testing.T) {
	s := New(0)
	loc := time.FixedZone("UTC+7", 7*3600)
	local := time.Now().In(loc)

	if err := s.Ingest(sample("server-001", 50, local)); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	latest, err := s.Latest("server-001")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", latest.Timestamp.Location())
	}
	if !latest.Timestamp.Equal(local) {
		t.Fatalf("UTC conversion changed the instant: %v vs %v", latest.Timestamp, local)
	}
}

func TestLatestAndWindowUnknownResource(t *testing.T) {
	s := New(0)

	if _, err := s.Latest("ghost"); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from Latest, got %v", err)
	}
	if _, err := s.Window("ghost", 5); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from Window, got %v", err)
	}
	if _, err := s.LastNMinutes("ghost", 5); !models.IsNotFound(err) {
		t.Fatalf("expected NotFoundError from LastNMinutes, got %v", err)
	}
}

func TestWindowReturnsFewerWhenShort(t *testing.T) {
	s := New(0)
	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		if err := s.Ingest(sample("server-001", float64(i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	window, err := s.Window("server-001", 10)
	if err != nil {
		t.Fatalf("window: %v", err)
	}
	if len(window) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(window))
	}
	if window[2].CPUUsage != 2 {
		t.Fatalf("expected newest sample last, got cpu %v", window[2].CPUUsage)
	}
}

func TestLastNMinutesCutoff(t *testing.T) {
	s := New(0)
	now := time.Now().UTC()

	if err := s.Ingest(sample("server-001", 10, now.Add(-30*time.Minute))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Ingest(sample("server-001", 20, now.Add(-5*time.Minute))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Ingest(sample("server-001", 30, now.Add(-1*time.Minute))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := s.Ingest(sample("server-001", 40, now.Add(-30*time.Second))); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	recent, err := s.LastNMinutes("server-001", 10)
	if err != nil {
		t.Fatalf("lastNMinutes: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent samples, got %d", len(recent))
	}
	if recent[0].CPUUsage != 20 || recent[1].CPUUsage != 30 || recent[2].CPUUsage != 40 {
		t.Fatalf("unexpected samples: %+v", recent)
	}

	// The cutoff is computed from the current clock, so the sample ingested at
	// exactly now-1m is already strictly older than it by the time of the call.
	lastMinute, err := s.LastNMinutes("server-001", 1)
	if err != nil {
		t.Fatalf("lastNMinutes: %v", err)
	}
	if len(lastMinute) != 1 {
		t.Fatalf("expected 1 sample within a minute, got %d", len(lastMinute))
	}
	if lastMinute[0].CPUUsage != 40 {
		t.Fatalf("unexpected sample: %+v", lastMinute[0])
	}
}

func TestConcurrentIngestAcrossResources(t *testing.T) {
	s := New(0)
	base := time.Now().UTC().Add(-time.Hour)

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		resource := fmt.Sprintf("server-%03d", r)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				// Mix chronological and late arrivals.
				off := i
				if i%7 == 0 {
					off = i - 5
				}
				_ = s.Ingest(sample(resource, 50, base.Add(time.Duration(off)*time.Second)))
			}
		}()
	}
	wg.Wait()

	for r := 0; r < 8; r++ {
		resource := fmt.Sprintf("server-%03d", r)
		window, err := s.Window(resource, 200)
		if err != nil {
			t.Fatalf("window %s: %v", resource, err)
		}
		if len(window) != 200 {
			t.Fatalf("%s: expected 200 samples, got %d", resource, len(window))
		}
		for j := 1; j < len(window); j++ {
			if window[j].Timestamp.Before(window[j-1].Timestamp) {
				t.Fatalf("%s: series out of order at %d", resource, j)
			}
		}
	}
}
