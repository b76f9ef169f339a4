package metrics

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When applying them to a manager", func() {
			m := &Manager{}
			WithNamespace("ns")(m)
			WithSubsystem("sub")(m)
			WithMetricPrefix("pre")(m)
			WithHistogramBuckets([]float64{0.1, 0.5, 1.0})(m)
			WithCustomLabels(map[string]string{"env": "test"})(m)

			Convey("Then the fields should be set", func() {
				So(m.namespace, ShouldEqual, "ns")
				So(m.subsystem, ShouldEqual, "sub")
				So(m.metricPrefix, ShouldEqual, "pre")
				So(m.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(m.customLabels["env"], ShouldEqual, "test")
			})
		})

		Convey("When passing zero values", func() {
			m := &Manager{namespace: "keep", subsystem: "keep"}
			WithNamespace("")(m)
			WithSubsystem("")(m)
			WithHistogramBuckets(nil)(m)
			WithPrometheusRegistry(nil)(m)

			Convey("Then defaults should be kept", func() {
				So(m.namespace, ShouldEqual, "keep")
				So(m.subsystem, ShouldEqual, "keep")
				So(m.histogramBuckets, ShouldBeNil)
				So(m.registry, ShouldBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics should be registered under the affinity namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.snapshotUpserts.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "affinity_service_snapshot_upserts_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("x"),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.sessionsCreated.Inc()

			Convey("Then names and const labels should follow the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				var names []string
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_unit_x_sessions_created_total")
				So(testutil.ToFloat64(manager.sessionsCreated), ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording business metrics", func() {
			before := testutil.ToFloat64(globalManager.completionsRecorded)
			RecordCompletion()
			RecordCompletion()

			Convey("Then counters should advance", func() {
				So(testutil.ToFloat64(globalManager.completionsRecorded), ShouldEqual, before+2)
			})
		})

		Convey("When recording labelled metrics", func() {
			before := testutil.ToFloat64(globalManager.dominantDomain.WithLabelValues("mathematics"))
			RecordDominantDomain("mathematics")

			Convey("Then the labelled series should advance", func() {
				So(testutil.ToFloat64(globalManager.dominantDomain.WithLabelValues("mathematics")), ShouldEqual, before+1)
			})
		})

		Convey("When recording everything else", func() {
			So(func() {
				RecordCompletionDuplicate()
				RecordGameEvent("hint_used")
				RecordSessionCreated()
				RecordAffinityComputation(1.5)
				RecordAffinityError("store_unavailable")
				RecordSnapshotUpsert()
				RecordUnknownDomain()
				UpdateQueueSize(3)
				UpdateWorkerCount(4)
				RecordHTTPRequest("/api/games", "GET", "200")
				RecordHTTPRequestDuration("/api/games", "GET", "200", 2)
				RecordStoreLatency("insert_event", 0.4)
				UpdateBreakerState("store", 0)
				RecordBreakerTransition("store", "closed", "open")
				RecordBreakerRejected("store")
				UpdateQueueCapacity(10)
				UpdateQueueUtilization(0.3)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(0.1)
				UpdateWorkerActiveCount(4)
				RecordWorkerProcessingLatency(3)
				RecordWorkerError()
				RecordErrorByComponent("queue", "full")
				RecordErrorByType("server_error", "high")
				RecordErrorByEndpoint("/api/games", "GET", "not_found")
				RecordErrorLatency("http", "not_found", 1)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.2)
			}, ShouldNotPanic)
		})

		Convey("When reading the registry", func() {
			So(GetRegistry(), ShouldNotBeNil)
			_, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given concurrent metric writers", t, func() {
		before := testutil.ToFloat64(globalManager.snapshotUpserts)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				RecordSnapshotUpsert()
				RecordHTTPRequest("/api/planets", "GET", "200")
			}()
		}
		wg.Wait()

		So(testutil.ToFloat64(globalManager.snapshotUpserts), ShouldEqual, before+50)
	})
}
