package iplookup_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okian/devinfo/internal/adapters/iplookup"
	"github.com/okian/devinfo/internal/domain/facts"
	. "github.com/smartystreets/goconvey/convey"
)

func newUpstream() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"1.2.3.4"}`))
	})
	mux.HandleFunc("/alt-ip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"address":"5.6.7.8"}`))
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"not-an-ip"}`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/geo/1.2.3.4/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"1.2.3.4","city":"Paris","region":"Ile-de-France","country":"France"}`))
	})
	mux.HandleFunc("/geo/10.0.0.1/json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ip":"10.0.0.1","bogon":true}`))
	})
	return httptest.NewServer(mux)
}

func TestClient_ResolveAddress(t *testing.T) {
	Convey("Given an upstream address service", t, func() {
		srv := newUpstream()
		Reset(srv.Close)
		ctx := context.Background()

		Convey("When it returns an ip field", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL + "/ip"))
			addr, err := c.ResolveAddress(ctx)

			Convey("Then the address should be returned", func() {
				So(err, ShouldBeNil)
				So(addr, ShouldEqual, "1.2.3.4")
			})
		})

		Convey("When it returns an address field", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL + "/alt-ip"))
			addr, err := c.ResolveAddress(ctx)
			So(err, ShouldBeNil)
			So(addr, ShouldEqual, "5.6.7.8")
		})

		Convey("When it returns something that is not an address", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL + "/garbage"))
			_, err := c.ResolveAddress(ctx)

			Convey("Then it should be a network failure", func() {
				So(errors.Is(err, facts.ErrNetworkFailure), ShouldBeTrue)
				So(errors.Is(err, iplookup.ErrBadResponse), ShouldBeTrue)
			})
		})

		Convey("When the service is down", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL + "/down"))
			_, err := c.ResolveAddress(ctx)

			Convey("Then the status should be reported as a network failure", func() {
				So(errors.Is(err, facts.ErrNetworkFailure), ShouldBeTrue)
				So(errors.Is(err, iplookup.ErrUnexpectedStatus), ShouldBeTrue)
			})
		})

		Convey("When the request times out", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL+"/slow"), iplookup.WithTimeout(50*time.Millisecond))
			_, err := c.ResolveAddress(ctx)
			So(errors.Is(err, facts.ErrNetworkFailure), ShouldBeTrue)
		})

		Convey("When the caller cancels", func() {
			c := iplookup.New(iplookup.WithAddressURL(srv.URL + "/slow"))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.ResolveAddress(cctx)

			Convey("Then the error should be a cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(facts.Classify(err), ShouldEqual, facts.KindCancelled)
			})
		})
	})
}

func TestClient_Locate(t *testing.T) {
	Convey("Given an upstream location service", t, func() {
		srv := newUpstream()
		Reset(srv.Close)
		c := iplookup.New(iplookup.WithLocationURL(srv.URL + "/geo/"))
		ctx := context.Background()

		Convey("When locating 1.2.3.4", func() {
			loc, err := c.Locate(ctx, "1.2.3.4")

			Convey("Then city, region and country should be returned", func() {
				So(err, ShouldBeNil)
				So(loc, ShouldResemble, facts.Location{City: "Paris", Region: "Ile-de-France", Country: "France"})
				So(loc.String(), ShouldEqual, "Paris, France")
			})
		})

		Convey("When locating a private address", func() {
			_, err := c.Locate(ctx, "10.0.0.1")
			So(errors.Is(err, iplookup.ErrBadResponse), ShouldBeTrue)
		})

		Convey("When locating an unknown address", func() {
			_, err := c.Locate(ctx, "9.9.9.9")
			So(errors.Is(err, facts.ErrNetworkFailure), ShouldBeTrue)
		})

		Convey("When locating garbage", func() {
			_, err := c.Locate(ctx, "../etc")
			So(errors.Is(err, iplookup.ErrInvalidAddress), ShouldBeTrue)
		})
	})
}

func TestFromRequest(t *testing.T) {
	Convey("Given inbound requests", t, func() {
		ctx := context.Background()

		Convey("When X-Forwarded-For is set", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
			addr, err := iplookup.FromRequest(r).ResolveAddress(ctx)
			So(err, ShouldBeNil)
			So(addr, ShouldEqual, "203.0.113.7")
		})

		Convey("When only X-Real-IP is set", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set("X-Real-IP", "198.51.100.2")
			addr, err := iplookup.FromRequest(r).ResolveAddress(ctx)
			So(err, ShouldBeNil)
			So(addr, ShouldEqual, "198.51.100.2")
		})

		Convey("When falling back to the peer address", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "192.0.2.10:54321"
			addr, err := iplookup.FromRequest(r).ResolveAddress(ctx)
			So(err, ShouldBeNil)
			So(addr, ShouldEqual, "192.0.2.10")
		})

		Convey("When nothing usable is present", func() {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = "pipe"
			_, err := iplookup.FromRequest(r).ResolveAddress(ctx)
			So(err, ShouldEqual, iplookup.ErrNoClientAddress)
		})
	})
}
