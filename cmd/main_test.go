package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	service "github.com/okian/affinity/internal/app"
	"github.com/okian/affinity/internal/config"
	"github.com/okian/affinity/pkg/logger"
)

func init() {
	_ = logger.Init(logger.WithWriter(io.Discard))
}

func TestOpenStore(t *testing.T) {
	convey.Convey("Given a config", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)

		convey.Convey("When the memory store is selected", func() {
			cfg.Store = config.StoreMemory
			store, err := openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then it answers pings behind a closed breaker", func() {
				convey.So(store.Ping(ctx), convey.ShouldBeNil)
				b, ok := store.(interface{ State() string })
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(b.State(), convey.ShouldEqual, "closed")
			})
		})

		convey.Convey("When the sqlite store is selected", func() {
			cfg.Store = config.StoreSQLite
			cfg.DBPath = filepath.Join(t.TempDir(), "nested", "affinity.db")
			store, err := openStore(ctx, cfg, logger.Nop())
			convey.So(err, convey.ShouldBeNil)
			defer func() { _ = store.Close() }()

			convey.Convey("Then the data directory and database are created", func() {
				convey.So(store.Ping(ctx), convey.ShouldBeNil)
				_, statErr := os.Stat(cfg.DBPath)
				convey.So(statErr, convey.ShouldBeNil)
			})
		})
	})
}

func TestNewRouter(t *testing.T) {
	convey.Convey("Given the assembled router", t, func() {
		ctx := context.Background()
		cfg := config.New(ctx)
		svc := service.New(service.WithAsyncRecompute(false))
		defer func() { _ = svc.Stop(ctx) }()

		h := newRouter(ctx, cfg, svc, logger.Nop())

		for _, path := range []string{"/api/health", "/api/games", "/api/planets", "/openapi.yaml", "/api-docs", "/metrics"} {
			convey.Convey("Then GET "+path+" is served", func() {
				w := httptest.NewRecorder()
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then the HTTP server carries the configured timeouts", func() {
			srv := newHTTPServer(cfg, h)
			convey.So(srv.Addr, convey.ShouldEqual, cfg.Addr)
			convey.So(srv.WriteTimeout, convey.ShouldBeGreaterThan, cfg.RequestTimeout)
			convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
		})
	})
}

func TestMetricsUpdaters(t *testing.T) {
	convey.Convey("Given the metrics updaters", t, func() {
		svc := service.New()

		convey.Convey("Then single updates do not panic", func() {
			convey.So(updateSystemMetrics, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("Then the loops return when the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			done := make(chan struct{})
			go func() {
				startSystemMetricsUpdater(ctx)
				startServiceMetricsUpdater(ctx, svc)
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("metrics updaters did not stop")
			}
		})
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a memory backed configuration", t, func() {
		for _, kv := range [][2]string{
			{"AFFINITY_STORE", "memory"},
			{"AFFINITY_ADDR", "127.0.0.1:0"},
			{"AFFINITY_WORKER_COUNT", "1"},
		} {
			_ = os.Setenv(kv[0], kv[1])
		}
		defer func() {
			_ = os.Unsetenv("AFFINITY_STORE")
			_ = os.Unsetenv("AFFINITY_ADDR")
			_ = os.Unsetenv("AFFINITY_WORKER_COUNT")
		}()

		convey.Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			convey.Convey("Then run shuts down cleanly", func() {
				convey.So(run(ctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config is invalid", func() {
			_ = os.Setenv("AFFINITY_STORE", "redis")

			convey.Convey("Then run fails before serving", func() {
				err := run(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
