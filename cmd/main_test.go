package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	app "github.com/okian/smartbiz/internal/app"
	"github.com/okian/smartbiz/internal/config"
	"github.com/okian/smartbiz/pkg/logger"
	"github.com/okian/smartbiz/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func fakeAnalytics() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecasting", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"forecast": [
				{"ds": "2021-01-01T00:00:00", "yhat": 119},
				{"ds": "2022-01-01T00:00:00", "yhat": 150}
			],
			"metrics": {"MAE": 1, "MSE": 1, "RMSE": 1}
		}`))
	})
	return httptest.NewServer(mux)
}

func csvUpload(content string) (*bytes.Buffer, string) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "sales.csv")
	_, _ = fw.Write([]byte(content))
	_ = mw.Close()
	return &body, mw.FormDataContentType()
}

func TestMainConfig(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("SMARTBIZ_ADDR", ":8081")
		_ = os.Setenv("SMARTBIZ_BACKEND_TIMEOUT_MS", "2000")
		defer func() {
			_ = os.Unsetenv("SMARTBIZ_ADDR")
			_ = os.Unsetenv("SMARTBIZ_BACKEND_TIMEOUT_MS")
		}()

		convey.Convey("Then configuration should be loadable", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
			convey.So(cfg.BackendTimeout(), convey.ShouldEqual, 2*time.Second)

			convey.Convey("And the write timeout outlasts the backend timeout", func() {
				convey.So(writeTimeout(cfg), convey.ShouldBeGreaterThan, cfg.BackendTimeout())
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given the gateway wired to a fake analytics backend", t, func() {
		backendSrv := fakeAnalytics()
		defer backendSrv.Close()

		_ = os.Setenv("SMARTBIZ_BACKEND_URL", backendSrv.URL)
		defer func() { _ = os.Unsetenv("SMARTBIZ_BACKEND_URL") }()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg, err := config.Load(ctx)
		convey.So(err, convey.ShouldBeNil)

		svc := app.New(app.WithBackend(newBackend(cfg)), app.WithSessionTTL(cfg.SessionTTL()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		router := newRouter(ctx, cfg, svc)

		convey.Convey("When a user logs in and forecasts", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/session/login",
				bytes.NewBufferString(`{"username":"ana","password":"pw"}`)))
			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)

			var login struct {
				SessionID string `json:"session_id"`
			}
			convey.So(json.Unmarshal(w.Body.Bytes(), &login), convey.ShouldBeNil)

			body, contentType := csvUpload("Year,Value\n2020,100\n2021,120\n")
			req := httptest.NewRequest(http.MethodPost, "/forecast?model=prophet", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("X-Session-ID", login.SessionID)
			w = httptest.NewRecorder()
			router.ServeHTTP(w, req)

			convey.Convey("Then only the forecast past the history is returned", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				var res struct {
					Forecast []struct {
						Period string  `json:"period"`
						Value  float64 `json:"value"`
					} `json:"forecast"`
					Dropped int `json:"dropped"`
				}
				convey.So(json.Unmarshal(w.Body.Bytes(), &res), convey.ShouldBeNil)
				convey.So(len(res.Forecast), convey.ShouldEqual, 1)
				convey.So(res.Forecast[0].Period, convey.ShouldEqual, "2022")
				convey.So(res.Dropped, convey.ShouldEqual, 1)
			})

			convey.Convey("And the run can be exported as CSV", func() {
				req := httptest.NewRequest(http.MethodGet, "/forecast/runs/prophet/export", http.NoBody)
				req.Header.Set("X-Session-ID", login.SessionID)
				w := httptest.NewRecorder()
				router.ServeHTTP(w, req)

				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
				convey.So(w.Body.String(), convey.ShouldEqual, "Year,Forecasted Sales\n2022,150.00\n")
			})
		})

		convey.Convey("When the docs are requested", func() {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody))

			convey.Convey("Then the OpenAPI document is served", func() {
				convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestInitMetrics(t *testing.T) {
	convey.Convey("Given a config naming the metrics", t, func() {
		cfg := config.New()
		cfg.MetricsNamespace = "acme"
		cfg.Environment = "test"
		convey.So(cfg.Validate(), convey.ShouldBeNil)

		convey.Convey("When metrics are initialized from it", func() {
			initMetrics(cfg)
			metrics.RecordMissingColumn()

			convey.Convey("Then the gateway series carry the configured prefix and label", func() {
				families, err := metrics.Gather()
				convey.So(err, convey.ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "acme_gateway_missing_column_errors_total" {
						found = true
						convey.So(f.GetMetric()[0].GetLabel()[0].GetValue(), convey.ShouldEqual, "test")
					}
				}
				convey.So(found, convey.ShouldBeTrue)
			})
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When testing system metrics updater", func() {
			convey.Convey("Then it returns once the context is done", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer cancel()

				convey.So(func() {
					startSystemMetricsUpdater(ctx)
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When testing system metrics update", func() {
			convey.Convey("Then it should update metrics without panicking", func() {
				convey.So(func() {
					updateSystemMetrics()
				}, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When creating a metrics manager on its own registry", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))

			convey.Convey("Then it should be usable", func() {
				convey.So(manager, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given an invalid backend URL", t, func() {
		_ = os.Setenv("SMARTBIZ_BACKEND_URL", "not a url")
		defer func() { _ = os.Unsetenv("SMARTBIZ_BACKEND_URL") }()

		convey.Convey("Then configuration loading should fail", func() {
			cfg, err := config.Load(context.Background())
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a service without a backend", t, func() {
		svc := app.New()

		convey.Convey("Then it refuses to start", func() {
			convey.So(svc.Start(context.Background()), convey.ShouldNotBeNil)
		})
	})
}
