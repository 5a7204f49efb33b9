package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/smartbiz/internal/adapters/backend"
	"github.com/okian/smartbiz/internal/adapters/repository"
	"github.com/okian/smartbiz/internal/domain/forecast"
	"github.com/okian/smartbiz/internal/domain/inflight"
	"github.com/okian/smartbiz/internal/domain/session"
	"github.com/okian/smartbiz/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeBackend struct {
	mu sync.Mutex

	forecast  *backend.ForecastResponse
	segment   *backend.SegmentResponse
	churn     *backend.ChurnResponse
	anomalies *backend.AnomalyResponse
	chat      *backend.ChatResponse
	recommend *backend.RecommendResponse
	err       error

	// gate blocks Forecast until closed when set.
	gate    chan struct{}
	entered chan struct{}

	calls []string
}

func (f *fakeBackend) record(op string) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Forecast(_ context.Context, model string, _ backend.Upload) (*backend.ForecastResponse, error) {
	f.record("forecast:" + model)
	if f.gate != nil {
		f.entered <- struct{}{}
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.forecast, nil
}

func (f *fakeBackend) Segment(_ context.Context, method string, _ backend.Upload) (*backend.SegmentResponse, error) {
	f.record("segment:" + method)
	if f.err != nil {
		return nil, f.err
	}
	return f.segment, nil
}

func (f *fakeBackend) PredictChurn(context.Context, backend.Upload) (*backend.ChurnResponse, error) {
	f.record("churn")
	if f.err != nil {
		return nil, f.err
	}
	return f.churn, nil
}

func (f *fakeBackend) DetectAnomalies(_ context.Context, method string, _ backend.Upload) (*backend.AnomalyResponse, error) {
	f.record("anomalies:" + method)
	if f.err != nil {
		return nil, f.err
	}
	return f.anomalies, nil
}

func (f *fakeBackend) UploadDataset(_ context.Context, up backend.Upload) (*backend.DatasetResponse, error) {
	f.record("dataset")
	if f.err != nil {
		return nil, f.err
	}
	return &backend.DatasetResponse{Message: "loaded " + up.Filename, Rows: 3}, nil
}

func (f *fakeBackend) Chat(_ context.Context, question string) (*backend.ChatResponse, error) {
	f.record("chat:" + question)
	if f.err != nil {
		return nil, f.err
	}
	if f.chat == nil {
		return &backend.ChatResponse{}, nil
	}
	return f.chat, nil
}

func (f *fakeBackend) Recommend(_ context.Context, customerID string, _ backend.Upload) (*backend.RecommendResponse, error) {
	f.record("recommend:" + customerID)
	if f.err != nil {
		return nil, f.err
	}
	return f.recommend, nil
}

// mapStore is a Store without expiry that counts Close calls.
type mapStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	closed   int
}

func newMapStore() *mapStore {
	return &mapStore{sessions: map[string]*session.Session{}}
}

func (m *mapStore) Put(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *mapStore) Get(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (m *mapStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *mapStore) Expire(context.Context, time.Time) int { return 0 }

func (m *mapStore) Count(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *mapStore) ModelRuns(context.Context) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		n += s.RunCount()
	}
	return n
}

func (m *mapStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func startService(fb *fakeBackend, opts ...Option) *Service {
	svc := New(append([]Option{WithBackend(fb)}, opts...)...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func login(svc *Service) *session.Session {
	sess, err := svc.Login(context.Background(), session.Credentials{Username: "ana", Password: "secret"})
	So(err, ShouldBeNil)
	return sess
}

func historyUpload() backend.Upload {
	return backend.Upload{Filename: "sales.csv", Content: []byte("Year,Value\n2020,100\n2021,120\n")}
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a service without a backend", t, func() {
		svc := New()

		Convey("Then Start fails", func() {
			So(errors.Is(svc.Start(context.Background()), ErrNoBackend), ShouldBeTrue)
		})

		Convey("Then operations report it is not started", func() {
			_, err := svc.Login(context.Background(), session.Credentials{Username: "a", Password: "b"})
			So(errors.Is(err, ErrNotStarted), ShouldBeTrue)
		})
	})

	Convey("Given a started service", t, func() {
		svc := startService(&fakeBackend{})

		Convey("Then Start is idempotent and Stop can be called twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			svc.Stop()
			So(svc.Stats(context.Background())["started"], ShouldBeFalse)
		})
	})
}

func TestServiceCustomStore(t *testing.T) {
	Convey("Given a service with its own session store", t, func() {
		store := newMapStore()
		svc := startService(&fakeBackend{}, WithStore(store))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a user logs in", func() {
			sess := login(svc)

			Convey("Then the session lives in that store", func() {
				So(store.Count(ctx), ShouldEqual, 1)
				got, err := store.Get(ctx, sess.ID)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, sess)
				So(svc.Stats(ctx)["activeSessions"], ShouldEqual, 1)
			})

			Convey("And the service stops and starts again", func() {
				svc.Stop()
				So(store.closed, ShouldEqual, 1)
				So(svc.Start(ctx), ShouldBeNil)
				defer svc.Stop()

				Convey("Then the injected store is kept", func() {
					_, err := svc.Session(ctx, sess.ID)
					So(err, ShouldBeNil)
				})
			})
		})
	})
}

func TestServiceSessions(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startService(&fakeBackend{})
		defer svc.Stop()
		ctx := context.Background()

		Convey("When logging in with blank credentials", func() {
			_, err := svc.Login(ctx, session.Credentials{Username: "  ", Password: "x"})

			Convey("Then the login is refused", func() {
				So(errors.Is(err, session.ErrInvalidCredentials), ShouldBeTrue)
			})
		})

		Convey("When logging in and out", func() {
			sess := login(svc)

			got, err := svc.Session(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(got.Username, ShouldEqual, "ana")

			So(svc.Logout(ctx, sess.ID), ShouldBeNil)

			Convey("Then the session is gone", func() {
				_, err := svc.Session(ctx, sess.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
				So(errors.Is(svc.Logout(ctx, sess.ID), repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a service with a short session TTL", t, func() {
		now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
		var mu sync.Mutex
		clock := func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}
		svc := startService(&fakeBackend{}, WithSessionTTL(time.Minute), WithClock(clock))
		defer svc.Stop()
		sess := login(svc)

		Convey("When the session idles past the TTL", func() {
			mu.Lock()
			now = now.Add(2 * time.Minute)
			mu.Unlock()

			Convey("Then it can no longer be resolved", func() {
				_, err := svc.Session(context.Background(), sess.ID)
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceForecast(t *testing.T) {
	Convey("Given a backend that forecasts overlapping periods", t, func() {
		fb := &fakeBackend{forecast: &backend.ForecastResponse{
			Forecast: []backend.ForecastPoint{
				{Period: backend.Label{Text: "2021-01-01"}, Value: 119},
				{Period: backend.Label{Text: "2022-01-01"}, Value: 150},
				{Period: backend.Label{Text: "2023", Numeric: true}, Value: 160},
			},
			Metrics: backend.ErrorMetrics{MAE: 1.5, MSE: 2.25, RMSE: 1.5},
			Summary: "steady growth",
		}}
		svc := startService(fb)
		defer svc.Stop()
		sess := login(svc)
		ctx := context.Background()

		Convey("When forecasting with prophet", func() {
			res, err := svc.Forecast(ctx, sess, "prophet", historyUpload())
			So(err, ShouldBeNil)

			Convey("Then the history is merged with the forecast past its last period", func() {
				So(res.Model, ShouldEqual, "prophet")
				So(res.Series, ShouldResemble, []forecast.Point{
					{Period: "2020", Value: 100, Kind: forecast.Historical},
					{Period: "2021", Value: 120, Kind: forecast.Historical},
					{Period: "2022", Value: 150, Kind: forecast.Forecast},
					{Period: "2023", Value: 160, Kind: forecast.Forecast},
				})
				So(len(res.Forecast), ShouldEqual, 2)
				So(res.Dropped, ShouldEqual, 1)
				So(res.Metrics.RMSE, ShouldEqual, 1.5)
				So(res.Summary, ShouldEqual, "steady growth")
			})

			Convey("Then the run is recorded for the session", func() {
				run, ok := sess.Run("prophet")
				So(ok, ShouldBeTrue)
				So(run.Points, ShouldResemble, res.Forecast)
				So(svc.Stats(ctx)["modelRuns"], ShouldEqual, 1)
			})

			Convey("Then ClearRuns empties the registry", func() {
				svc.ClearRuns(ctx, sess)
				So(sess.RunCount(), ShouldEqual, 0)
			})
		})

		Convey("When the upload lacks a value column", func() {
			_, err := svc.Forecast(ctx, sess, "prophet", backend.Upload{Filename: "x.csv", Content: []byte("Year,Region\n2020,EU\n")})

			Convey("Then the backend is never called", func() {
				So(errors.Is(err, forecast.ErrMissingColumn), ShouldBeTrue)
				So(fb.Calls(), ShouldBeEmpty)
			})
		})

		Convey("When the upload is empty", func() {
			_, err := svc.Forecast(ctx, sess, "prophet", backend.Upload{Filename: "x.csv"})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, forecast.ErrEmptyCSV), ShouldBeTrue)
			})
		})
	})

	Convey("Given a failing backend", t, func() {
		boom := &backend.Error{Op: backend.OpForecast, Kind: backend.KindStatus, Status: 500, Message: "model crashed"}
		svc := startService(&fakeBackend{err: boom})
		defer svc.Stop()
		sess := login(svc)

		Convey("When forecasting", func() {
			_, err := svc.Forecast(context.Background(), sess, "arima", historyUpload())

			Convey("Then the backend error is returned and nothing is recorded", func() {
				So(errors.Is(err, backend.ErrBackend), ShouldBeTrue)
				So(sess.RunCount(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a forecast still in flight", t, func() {
		fb := &fakeBackend{
			forecast: &backend.ForecastResponse{},
			gate:     make(chan struct{}),
			entered:  make(chan struct{}, 1),
		}
		svc := startService(fb)
		defer svc.Stop()
		sess := login(svc)
		ctx := context.Background()

		done := make(chan error, 1)
		go func() {
			_, err := svc.Forecast(ctx, sess, "prophet", historyUpload())
			done <- err
		}()
		<-fb.entered

		Convey("When the same session submits again", func() {
			_, err := svc.Forecast(ctx, sess, "arima", historyUpload())

			Convey("Then the second request is refused until the first returns", func() {
				So(errors.Is(err, inflight.ErrInProgress), ShouldBeTrue)
				close(fb.gate)
				So(<-done, ShouldBeNil)
				fb.gate = nil
				_, err = svc.Forecast(ctx, sess, "arima", historyUpload())
				So(err, ShouldBeNil)
			})
		})
	})
}

func TestServiceAnalytics(t *testing.T) {
	Convey("Given a backend with analytics results", t, func() {
		fb := &fakeBackend{
			segment: &backend.SegmentResponse{
				Data: []backend.Row{
					{"CustomerID": "1", "Cluster": float64(0)},
					{"CustomerID": "2", "Cluster": float64(1)},
					{"CustomerID": "3", "Cluster": float64(0)},
				},
			},
			churn: &backend.ChurnResponse{Data: []backend.Row{
				{"CustomerID": "1", "ChurnLabel": float64(1), "ChurnProbability": 0.9},
				{"CustomerID": "2", "ChurnLabel": float64(0), "ChurnProbability": 0.1},
			}},
			anomalies: &backend.AnomalyResponse{},
			recommend: &backend.RecommendResponse{Recommendations: []string{"Tea"}, Cluster: intPtr(1)},
		}
		svc := startService(fb)
		defer svc.Stop()
		sess := login(svc)
		ctx := context.Background()

		Convey("When segmenting", func() {
			res, err := svc.Segment(ctx, sess, "kmeans", historyUpload())

			Convey("Then rows and cluster sizes are returned", func() {
				So(err, ShouldBeNil)
				So(res.Method, ShouldEqual, "kmeans")
				So(len(res.Rows), ShouldEqual, 3)
				So(res.Summaries, ShouldNotBeNil)
				So(len(res.Clusters), ShouldEqual, 2)
			})
		})

		Convey("When predicting churn", func() {
			res, err := svc.PredictChurn(ctx, sess, historyUpload())

			Convey("Then the summary counts churned customers", func() {
				So(err, ShouldBeNil)
				So(res.Summary.Total, ShouldEqual, 2)
				So(res.Summary.Churned, ShouldEqual, 1)
			})
		})

		Convey("When the anomaly result has no rows", func() {
			res, err := svc.DetectAnomalies(ctx, sess, "isolation_forest", historyUpload())

			Convey("Then an empty table is returned", func() {
				So(err, ShouldBeNil)
				So(res.Rows, ShouldNotBeNil)
				So(res.Rows, ShouldBeEmpty)
				So(res.Stats.Total, ShouldEqual, 0)
			})
		})

		Convey("When recommending", func() {
			res, err := svc.Recommend(ctx, sess, "C42", historyUpload())

			Convey("Then the cluster is labelled", func() {
				So(err, ShouldBeNil)
				So(res.CustomerID, ShouldEqual, "C42")
				So(res.Recommendations, ShouldResemble, []string{"Tea"})
				So(*res.Cluster, ShouldEqual, 1)
				So(res.ClusterLabel, ShouldEqual, "High-Spender")
			})
		})

		Convey("When the assistant gives no answer", func() {
			_, err := svc.UploadDataset(ctx, sess, historyUpload())
			So(err, ShouldBeNil)
			res, err := svc.Chat(ctx, sess, "best month?")

			Convey("Then a placeholder answer is returned", func() {
				So(err, ShouldBeNil)
				So(res.Answer, ShouldEqual, noAnswer)
				So(fb.Calls(), ShouldResemble, []string{"dataset", "chat:best month?"})
			})
		})
	})
}

func intPtr(v int) *int { return &v }
