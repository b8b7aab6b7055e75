package prometheus_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/discochess/swcache"
	"github.com/discochess/swcache/internal/fetch"
	"github.com/discochess/swcache/internal/stats"
	statsprom "github.com/discochess/swcache/internal/stats/prometheus"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		byName[f.GetName()] = f
	}
	return byName
}

func TestCollector_MetricKinds(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := statsprom.New(reg, statsprom.WithConstLabels(prometheus.Labels{"version": "v3"}))

	c.IncCounter(stats.MetricSyncReplayed, 2)
	c.IncCounter(stats.MetricSyncReplayed, 1)
	c.SetGauge(stats.MetricSyncPending, 4)
	c.SetGauge(stats.MetricSyncPending, 1)
	c.ObserveHistogram(stats.MetricFetchLatency, 0.02)
	c.ObserveHistogram(stats.MetricFetchLatency, 0.3)

	families := gather(t, reg)
	tests := []struct {
		name string
		kind dto.MetricType
		want float64
	}{
		{stats.MetricSyncReplayed, dto.MetricType_COUNTER, 3},
		{stats.MetricSyncPending, dto.MetricType_GAUGE, 1},
		{stats.MetricFetchLatency, dto.MetricType_HISTOGRAM, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := families[tt.name]
			if !ok {
				t.Fatalf("%s not registered", tt.name)
			}
			if f.GetType() != tt.kind {
				t.Errorf("type = %v, want %v", f.GetType(), tt.kind)
			}
			m := f.GetMetric()[0]
			var got float64
			switch tt.kind {
			case dto.MetricType_COUNTER:
				got = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				got = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				got = float64(m.GetHistogram().GetSampleCount())
			}
			if got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
			labels := m.GetLabel()
			if len(labels) != 1 || labels[0].GetName() != "version" || labels[0].GetValue() != "v3" {
				t.Errorf("labels = %v, want version=v3", labels)
			}
		})
	}
}

func TestCollector_WorkerFetches(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := statsprom.New(reg, statsprom.WithConstLabels(prometheus.Labels{"version": "v1"}))

	origin, _ := url.Parse("https://shop.example")
	cfg := swcache.DefaultConfig(origin)
	cfg.Precache = nil
	network := fetch.NetworkFunc(func(ctx context.Context, req *fetch.Request) (*fetch.Response, error) {
		return fetch.NewResponse(http.StatusOK, "text/css", []byte("body{}")), nil
	})
	w, err := swcache.New(swcache.WithConfig(cfg), swcache.WithNetwork(network), swcache.WithStats(collector))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	ctx := context.Background()
	css := fetch.MustRequest(http.MethodGet, "https://shop.example/styles/main.css")
	for range 2 {
		if _, err := w.Fetch(ctx, css); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}

	families := gather(t, reg)
	if got := families[stats.MetricFetches].GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("%s = %v, want 2", stats.MetricFetches, got)
	}
	if got := families[stats.MetricCacheWrites].GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricCacheWrites, got)
	}
	if got := families[stats.MetricCacheHits].GetMetric()[0].GetCounter().GetValue(); got < 1 {
		t.Errorf("%s = %v, want the second fetch served from cache", stats.MetricCacheHits, got)
	}
	if got := families[stats.MetricCacheSize].GetMetric()[0].GetGauge().GetValue(); got != 1 {
		t.Errorf("%s = %v, want 1", stats.MetricCacheSize, got)
	}
	for name, f := range families {
		if !strings.HasPrefix(name, "swcache_") {
			t.Errorf("metric %s lacks the swcache_ prefix", name)
		}
		for _, m := range f.GetMetric() {
			if l := m.GetLabel(); len(l) != 1 || l[0].GetValue() != "v1" {
				t.Errorf("%s labels = %v, want version=v1", name, l)
			}
		}
	}
}

func TestCollector_RestartReusesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := statsprom.New(reg)
	first.IncCounter(stats.MetricPushShown, 2)

	// A second worker on the same registry keeps counting the same series.
	second := statsprom.New(reg)
	second.IncCounter(stats.MetricPushShown, 3)

	f := gather(t, reg)[stats.MetricPushShown]
	if f == nil {
		t.Fatalf("%s not registered", stats.MetricPushShown)
	}
	if got := f.GetMetric()[0].GetCounter().GetValue(); got != 5 {
		t.Errorf("%s = %v, want 5", stats.MetricPushShown, got)
	}
}
