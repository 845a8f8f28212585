package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/devinfo/internal/adapters/http/api"
	repository "github.com/okian/devinfo/internal/adapters/repository"
	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/internal/domain/preference"
	"github.com/okian/devinfo/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
	_ = logger.SetLevelString("error")
}

// mockDeps records the sources it receives and replies with canned facts.
type mockDeps struct {
	mu         sync.Mutex
	store      repository.PreferenceStore
	collectErr error
	delay      time.Duration
	updates    []aggregator.Update
	sources    []service.Source
}

func newMockDeps() *mockDeps {
	return &mockDeps{store: repository.NewMemoryStore()}
}

func settledFacts() facts.Facts {
	f := facts.NewFacts()
	for _, field := range facts.AllFields {
		f[field] = facts.Missing()
	}
	f[facts.FieldDeviceClass] = facts.Resolve("desktop")
	f[facts.FieldAddress] = facts.Resolve("203.0.113.9")
	f[facts.FieldCPUCores] = facts.Resolve(8)
	return f
}

func (m *mockDeps) Collect(_ context.Context, src service.Source) (service.Result, error) {
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.collectErr != nil {
		return service.Result{}, m.collectErr
	}
	return service.Result{
		SessionID: "sess-1",
		Facts:     settledFacts(),
		Notices:   []facts.Notice{{Field: facts.FieldBattery, Kind: facts.KindPermissionDenied, Message: "Battery: permission denied"}},
		Settled:   true,
	}, nil
}

func (m *mockDeps) Stream(_ context.Context, src service.Source, fn func(string, aggregator.Update)) error {
	m.mu.Lock()
	m.sources = append(m.sources, src)
	m.mu.Unlock()
	for _, u := range m.updates {
		fn("sess-2", u)
	}
	return nil
}

func (m *mockDeps) Preferences(ctx context.Context, id string) (*preference.Session, error) {
	return preference.Load(ctx, m.store, id)
}

func (m *mockDeps) SetDarkMode(ctx context.Context, id string, on bool) error {
	p, err := preference.Load(ctx, m.store, id)
	if err != nil {
		return err
	}
	return p.SetDarkMode(ctx, on)
}

type mockStats struct{}

func (mockStats) GetStats() map[string]interface{} {
	return map[string]interface{}{"started": true, "activeSessions": 0}
}

func newRouter(deps api.Dependencies) *mux.Router {
	r := mux.NewRouter()
	api.NewServer(deps, mockStats{}).Register(context.Background(), r)
	return r
}

func do(r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

type factsBody struct {
	SessionID string `json:"session_id"`
	Settled   bool   `json:"settled"`
	Message   string `json:"message"`
	Theme     string `json:"theme"`
	Facts     []struct {
		Field   string `json:"field"`
		Label   string `json:"label"`
		State   string `json:"state"`
		Display string `json:"display"`
	} `json:"facts"`
	Notices []facts.Notice `json:"notices"`
}

func TestServer_Register(t *testing.T) {
	Convey("Given a server", t, func() {
		Convey("When registering on a nil router", func() {
			So(func() { api.NewServer(newMockDeps(), mockStats{}).Register(context.Background(), nil) }, ShouldPanic)
		})

		Convey("When calling the monitoring routes", func() {
			r := newRouter(newMockDeps())

			Convey("Then health should serve the metrics registry", func() {
				rec := do(r, http.MethodGet, "/healthz", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
			})

			Convey("Then stats should be JSON", func() {
				rec := do(r, http.MethodGet, "/stats", "")
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["started"], ShouldEqual, true)
			})

			Convey("Then a wrong method should answer 405", func() {
				rec := do(r, http.MethodGet, "/api/v1/facts", "")
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)

				rec = do(r, http.MethodDelete, "/api/v1/preferences/phone-7/dark-mode", "")
				So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})

			Convey("Then an unknown path should answer 404", func() {
				rec := do(r, http.MethodGet, "/api/v1/nothing", "")
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestFactsHandler_HandleCollect(t *testing.T) {
	Convey("Given a facts route", t, func() {
		deps := newMockDeps()
		r := newRouter(deps)

		Convey("When posting a report for the basic view", func() {
			rec := do(r, http.MethodPost, "/api/v1/facts", `{"viewport":{"width":1280,"height":720}}`)
			var got factsBody
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)

			Convey("Then the settled card should be returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(got.SessionID, ShouldEqual, "sess-1")
				So(got.Settled, ShouldBeTrue)
				So(got.Message, ShouldEqual, api.LoadedMessage)
				So(got.Facts[0].Field, ShouldEqual, string(facts.FieldDeviceClass))
				So(got.Facts[0].Display, ShouldEqual, "desktop")
				So(got.Facts[1].Display, ShouldEqual, "203.0.113.9")
				So(got.Notices, ShouldHaveLength, 1)
				So(got.Theme, ShouldBeEmpty)
			})

			Convey("Then extended fields should be hidden", func() {
				for _, f := range got.Facts {
					So(facts.ExtendedFields[facts.Field(f.Field)], ShouldBeFalse)
				}
			})

			Convey("Then the service should receive the report", func() {
				So(deps.sources, ShouldHaveLength, 1)
				So(deps.sources[0].Environment.Viewport.Width, ShouldEqual, 1280)
				So(deps.sources[0].Request, ShouldNotBeNil)
			})
		})

		Convey("When asking for more with a dark client", func() {
			So(deps.SetDarkMode(context.Background(), "laptop-1", true), ShouldBeNil)
			rec := do(r, http.MethodPost, "/api/v1/facts?view=more&client=laptop-1", "")
			var got factsBody
			So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)

			Convey("Then every field and the theme should be present", func() {
				So(got.Facts, ShouldHaveLength, len(facts.AllFields))
				So(got.Theme, ShouldEqual, preference.ThemeDark)
			})
		})

		Convey("When the report is malformed", func() {
			rec := do(r, http.MethodPost, "/api/v1/facts", "{nope")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "bad_request")
		})

		Convey("When the client id is invalid", func() {
			rec := do(r, http.MethodPost, "/api/v1/facts?client=a%20b", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the service is not running", func() {
			deps.collectErr = service.ErrNotStarted
			rec := do(r, http.MethodPost, "/api/v1/facts", "")
			So(rec.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the service fails", func() {
			deps.collectErr = errors.New("boom")
			rec := do(r, http.MethodPost, "/api/v1/facts", "")
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestFactsHandler_SlowCollect(t *testing.T) {
	Convey("Given a server whose write timeout is shorter than a collection", t, func() {
		deps := newMockDeps()
		deps.delay = 200 * time.Millisecond
		srv := httptest.NewUnstartedServer(newRouter(deps))
		srv.Config.WriteTimeout = 50 * time.Millisecond
		srv.Start()
		defer srv.Close()

		Convey("When the collection finishes after the write deadline", func() {
			resp, err := http.Post(srv.URL+"/api/v1/facts", "application/json", strings.NewReader("{}"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			var got factsBody
			decodeErr := json.NewDecoder(resp.Body).Decode(&got)

			Convey("Then the whole card should still be delivered", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(decodeErr, ShouldBeNil)
				So(got.Settled, ShouldBeTrue)
				So(got.SessionID, ShouldEqual, "sess-1")
			})
		})
	})
}

func TestFactsHandler_HandleStream(t *testing.T) {
	Convey("Given a stream of two updates", t, func() {
		deps := newMockDeps()
		pending := facts.NewFacts()
		deps.updates = []aggregator.Update{
			{Facts: pending, Changed: facts.AllFields},
			{Facts: settledFacts(), Changed: []facts.Field{facts.FieldAddress}, Settled: true},
		}
		srv := httptest.NewServer(newRouter(deps))
		defer srv.Close()

		Convey("When the stream is read", func() {
			resp, err := http.Post(srv.URL+"/api/v1/facts/stream", "application/json", strings.NewReader("{}"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			var events []string
			var data []string
			sc := bufio.NewScanner(resp.Body)
			for sc.Scan() {
				line := sc.Text()
				switch {
				case strings.HasPrefix(line, "event: "):
					events = append(events, strings.TrimPrefix(line, "event: "))
				case strings.HasPrefix(line, "data: "):
					data = append(data, strings.TrimPrefix(line, "data: "))
				}
			}

			Convey("Then every update and the loaded marker should arrive", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldEqual, "text/event-stream")
				So(events, ShouldResemble, []string{"update", "update", "loaded"})

				var first factsBody
				So(json.Unmarshal([]byte(data[0]), &first), ShouldBeNil)
				So(first.SessionID, ShouldEqual, "sess-2")
				So(first.Facts[0].Display, ShouldEqual, facts.PendingText)
				So(first.Facts[0].State, ShouldEqual, "unresolved")

				var last factsBody
				So(json.Unmarshal([]byte(data[1]), &last), ShouldBeNil)
				So(last.Settled, ShouldBeTrue)
				So(data[2], ShouldContainSubstring, api.LoadedMessage)
			})
		})

		Convey("When the report is malformed", func() {
			resp, err := http.Post(srv.URL+"/api/v1/facts/stream", "application/json", strings.NewReader("{nope"))
			So(err, ShouldBeNil)
			defer resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestPreferencesHandler(t *testing.T) {
	Convey("Given the dark-mode routes", t, func() {
		r := newRouter(newMockDeps())

		Convey("When nothing is stored", func() {
			rec := do(r, http.MethodGet, "/api/v1/preferences/phone-7/dark-mode", "")
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"dark_mode":false`)
			So(rec.Body.String(), ShouldContainSubstring, `"theme":"light"`)
		})

		Convey("When dark mode is switched on", func() {
			rec := do(r, http.MethodPut, "/api/v1/preferences/phone-7/dark-mode", `{"dark_mode":true}`)
			So(rec.Code, ShouldEqual, http.StatusOK)

			Convey("Then it should be read back", func() {
				rec := do(r, http.MethodGet, "/api/v1/preferences/phone-7/dark-mode", "")
				So(rec.Body.String(), ShouldContainSubstring, `"dark_mode":true`)
				So(rec.Body.String(), ShouldContainSubstring, `"theme":"dark"`)
			})
		})

		Convey("When the body is missing the flag", func() {
			rec := do(r, http.MethodPut, "/api/v1/preferences/phone-7/dark-mode", `{}`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			rec := do(r, http.MethodPut, "/api/v1/preferences/phone-7/dark-mode", `on`)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the client id is too long", func() {
			rec := do(r, http.MethodGet, "/api/v1/preferences/"+strings.Repeat("x", 200)+"/dark-mode", "")
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
