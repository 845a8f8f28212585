package client_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/devinfo/internal/adapters/client"
	"github.com/okian/devinfo/internal/domain/facts"
	. "github.com/smartystreets/goconvey/convey"
)

const fullReport = `{
	"user_agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	"viewport": {"width": 390, "height": 844},
	"pixel_ratio": 3,
	"time_zone": "Europe/Paris",
	"color_depth": 24,
	"battery": {"level": 0.87, "charging": true},
	"geolocation": {"latitude": 48.85, "longitude": 2.35},
	"connection": {"effective_type": "4g", "downlink_mbps": 10, "rtt_ms": 50},
	"orientation": "portrait-primary",
	"device_memory": 4,
	"cpu_cores": 6
}`

func TestDecode(t *testing.T) {
	Convey("Given posted reports", t, func() {
		Convey("When the report is complete", func() {
			rep, err := client.Decode(strings.NewReader(fullReport))

			Convey("Then every section should be present", func() {
				So(err, ShouldBeNil)
				So(rep.Viewport, ShouldResemble, facts.Viewport{Width: 390, Height: 844})
				So(rep.Battery, ShouldNotBeNil)
				So(*rep.CPUCores, ShouldEqual, 6)
			})
		})

		Convey("When the body is empty", func() {
			rep, err := client.Decode(strings.NewReader(""))
			So(err, ShouldBeNil)
			So(rep.Battery, ShouldBeNil)
		})

		Convey("When the body is not JSON", func() {
			_, err := client.Decode(strings.NewReader("{nope"))
			So(errors.Is(err, client.ErrInvalidReport), ShouldBeTrue)
		})

		Convey("When the battery level is out of range", func() {
			_, err := client.Decode(strings.NewReader(`{"battery":{"level":87}}`))
			So(errors.Is(err, client.ErrInvalidReport), ShouldBeTrue)
		})
	})
}

func TestReport_Environment(t *testing.T) {
	Convey("Given a report without agent or locale", t, func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/facts", nil)
		req.Header.Set("User-Agent", "curl/8.0")
		req.Header.Set("Accept-Language", "fr-CH, fr;q=0.9, en;q=0.8")

		Convey("When building the environment", func() {
			e := client.Report{Viewport: facts.Viewport{Width: 800, Height: 600}}.Environment(req)

			Convey("Then the request headers should fill the gaps", func() {
				So(e.UserAgent, ShouldEqual, "curl/8.0")
				So(e.Locale, ShouldEqual, "fr-CH")
				So(e.Viewport.Width, ShouldEqual, 800)
			})
		})

		Convey("When reading language headers", func() {
			So(client.PreferredLanguage("en-US;q=0.8"), ShouldEqual, "en-US")
			So(client.PreferredLanguage("*"), ShouldEqual, "")
			So(client.PreferredLanguage(""), ShouldEqual, "")
		})
	})
}

func TestReport_Capabilities(t *testing.T) {
	Convey("Given reports", t, func() {
		ctx := context.Background()

		Convey("When every section is present", func() {
			rep, err := client.Decode(strings.NewReader(fullReport))
			So(err, ShouldBeNil)
			caps := rep.Capabilities()

			Convey("Then the sources should return the reported values", func() {
				b, err := caps.Battery.Battery(ctx)
				So(err, ShouldBeNil)
				So(b.String(), ShouldEqual, "87% - Charging")

				pos, err := caps.Geolocation.CurrentPosition(ctx)
				So(err, ShouldBeNil)
				So(pos, ShouldResemble, facts.Coordinates{Latitude: 48.85, Longitude: 2.35})

				c, err := caps.Connection.Connection(ctx)
				So(err, ShouldBeNil)
				So(c.EffectiveType, ShouldEqual, "4g")

				o, err := caps.Orientation.Orientation(ctx)
				So(err, ShouldBeNil)
				So(o, ShouldEqual, "portrait-primary")

				mem, err := caps.Hardware.DeviceMemory(ctx)
				So(err, ShouldBeNil)
				So(mem, ShouldEqual, 4.0)
			})
		})

		Convey("When nothing optional is present", func() {
			caps := client.Report{}.Capabilities()
			So(caps.Battery, ShouldBeNil)
			So(caps.Geolocation, ShouldBeNil)
			So(caps.Connection, ShouldBeNil)
			So(caps.Orientation, ShouldBeNil)
			So(caps.Hardware, ShouldBeNil)
		})

		Convey("When only cores are reported", func() {
			cores := 8
			caps := client.Report{CPUCores: &cores}.Capabilities()
			_, err := caps.Hardware.DeviceMemory(ctx)
			n, cerr := caps.Hardware.LogicalCores(ctx)

			Convey("Then memory should be silently absent", func() {
				So(facts.Classify(err), ShouldEqual, facts.KindCapabilityAbsent)
				So(cerr, ShouldBeNil)
				So(n, ShouldEqual, 8)
			})
		})

		Convey("When geolocation was denied", func() {
			caps := client.Report{Geolocation: &client.GeolocationReport{Denied: true}}.Capabilities()
			_, err := caps.Geolocation.CurrentPosition(ctx)
			So(facts.Classify(err), ShouldEqual, facts.KindPermissionDenied)
		})

		Convey("When geolocation timed out", func() {
			caps := client.Report{Geolocation: &client.GeolocationReport{Error: "timeout"}}.Capabilities()
			_, err := caps.Geolocation.CurrentPosition(ctx)

			Convey("Then it should be a source failure", func() {
				So(errors.Is(err, client.ErrPositionUnavailable), ShouldBeTrue)
				So(facts.Classify(err), ShouldEqual, facts.KindSourceFailure)
			})
		})
	})
}
