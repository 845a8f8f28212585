package host

import (
	"context"
	"errors"
	"io/fs"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/okian/devinfo/internal/domain/facts"
	"github.com/okian/devinfo/internal/domain/uaparse"
	"github.com/okian/devinfo/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

// lockedFS lets a test swap sysfs files while a watcher polls.
type lockedFS struct {
	mu sync.Mutex
	m  fstest.MapFS
}

func (l *lockedFS) Open(name string) (fs.File, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.m.Open(name)
}

func (l *lockedFS) set(name, data string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.m[name] = &fstest.MapFile{Data: []byte(data)}
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func laptopFS() fstest.MapFS {
	return fstest.MapFS{
		"class/power_supply/AC/type":           {Data: []byte("Mains\n")},
		"class/power_supply/BAT0/type":         {Data: []byte("Battery\n")},
		"class/power_supply/BAT0/capacity":     {Data: []byte("87\n")},
		"class/power_supply/BAT0/status":       {Data: []byte("Charging\n")},
		"class/net/lo/operstate":               {Data: []byte("unknown\n")},
		"class/net/eth0/operstate":             {Data: []byte("up\n")},
		"class/net/eth0/speed":                 {Data: []byte("1000\n")},
		"class/net/wlan0/operstate":            {Data: []byte("up\n")},
		"class/net/wlan0/wireless/link":        {Data: []byte("0\n")},
		"class/net/docker0/operstate":          {Data: []byte("down\n")},
		"class/net/docker0/speed":              {Data: []byte("10000\n")},
		"class/power_supply/BAT0/manufacturer": {Data: []byte("ACME\n")},
	}
}

func TestBattery(t *testing.T) {
	Convey("Given a power_supply tree", t, func() {
		ctx := context.Background()

		Convey("When a battery is charging", func() {
			b := newBattery(laptopFS(), time.Second, nil)
			got, err := b.Battery(ctx)

			Convey("Then capacity and status should be read", func() {
				So(b.present(), ShouldBeTrue)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, facts.Battery{Percentage: 87, Charging: true})
				So(got.String(), ShouldEqual, "87% - Charging")
			})
		})

		Convey("When the supply has no type file but a BAT name", func() {
			fsys := fstest.MapFS{
				"class/power_supply/BAT1/capacity": {Data: []byte("40")},
				"class/power_supply/BAT1/status":   {Data: []byte("Discharging")},
			}
			got, err := newBattery(fsys, time.Second, nil).Battery(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, facts.Battery{Percentage: 40, Charging: false})
		})

		Convey("When the battery is full", func() {
			fsys := laptopFS()
			fsys["class/power_supply/BAT0/status"] = &fstest.MapFile{Data: []byte("Full")}
			got, err := newBattery(fsys, time.Second, nil).Battery(ctx)
			So(err, ShouldBeNil)
			So(got.Charging, ShouldBeTrue)
		})

		Convey("When there is only mains power", func() {
			fsys := fstest.MapFS{"class/power_supply/AC/type": {Data: []byte("Mains")}}
			b := newBattery(fsys, time.Second, nil)
			_, err := b.Battery(ctx)

			Convey("Then the capability should be absent", func() {
				So(b.present(), ShouldBeFalse)
				So(errors.Is(err, facts.ErrCapabilityAbsent), ShouldBeTrue)
			})
		})

		Convey("When capacity is garbage", func() {
			fsys := laptopFS()
			fsys["class/power_supply/BAT0/capacity"] = &fstest.MapFile{Data: []byte("lots")}
			_, err := newBattery(fsys, time.Second, nil).Battery(ctx)

			Convey("Then it should be a plain source failure", func() {
				So(err, ShouldNotBeNil)
				So(facts.Classify(err), ShouldEqual, facts.KindSourceFailure)
			})
		})
	})
}

func TestBattery_Watch(t *testing.T) {
	Convey("Given a watched battery", t, func() {
		fsys := &lockedFS{m: laptopFS()}
		h := New(WithSysFS(fsys), WithTerminal(nil), WithPollInterval(5*time.Millisecond))
		b := newBattery(fsys, h.pollInterval, h.logger)

		seen := make(chan facts.Battery, 16)
		unsub, err := b.WatchBattery(func(v facts.Battery) { seen <- v })
		So(err, ShouldBeNil)
		Reset(unsub)

		Convey("When the charge changes", func() {
			fsys.set("class/power_supply/BAT0/capacity", "86")

			Convey("Then the watcher should report the new reading", func() {
				var got facts.Battery
				select {
				case got = <-seen:
				case <-time.After(2 * time.Second):
				}
				So(got, ShouldResemble, facts.Battery{Percentage: 86, Charging: true})
			})
		})

		Convey("When unsubscribed twice", func() {
			unsub()
			unsub()
			fsys.set("class/power_supply/BAT0/capacity", "10")
			time.Sleep(30 * time.Millisecond)

			Convey("Then nothing should be reported", func() {
				So(len(seen), ShouldEqual, 0)
			})
		})
	})
}

func TestNetwork(t *testing.T) {
	Convey("Given a class/net tree", t, func() {
		ctx := context.Background()

		Convey("When a wired and a wireless link are up", func() {
			got, err := newNetwork(laptopFS()).Connection(ctx)

			Convey("Then the wired link should win with its speed", func() {
				So(err, ShouldBeNil)
				So(got, ShouldResemble, facts.Connection{EffectiveType: LinkEthernet, DownlinkMbps: 1000})
			})
		})

		Convey("When only wireless is up", func() {
			fsys := laptopFS()
			fsys["class/net/eth0/operstate"] = &fstest.MapFile{Data: []byte("down")}
			got, err := newNetwork(fsys).Connection(ctx)
			So(err, ShouldBeNil)
			So(got.EffectiveType, ShouldEqual, LinkWiFi)
		})

		Convey("When nothing is up", func() {
			fsys := fstest.MapFS{"class/net/lo/operstate": {Data: []byte("unknown")}}
			got, err := newNetwork(fsys).Connection(ctx)
			So(err, ShouldBeNil)
			So(got.EffectiveType, ShouldEqual, LinkOffline)
		})

		Convey("When there is no class/net", func() {
			n := newNetwork(fstest.MapFS{})
			_, err := n.Connection(ctx)
			So(n.present(), ShouldBeFalse)
			So(errors.Is(err, facts.ErrCapabilityAbsent), ShouldBeTrue)
		})
	})
}

func TestGeolocationAndHardware(t *testing.T) {
	Convey("Given host sources", t, func() {
		ctx := context.Background()

		Convey("When geolocation is denied", func() {
			_, err := geolocation{Allowed: false}.CurrentPosition(ctx)
			So(facts.Classify(err), ShouldEqual, facts.KindPermissionDenied)
		})

		Convey("When geolocation is allowed", func() {
			got, err := geolocation{Allowed: true, Latitude: 48.85, Longitude: 2.35}.CurrentPosition(ctx)
			So(err, ShouldBeNil)
			So(got.String(), ShouldEqual, "Lat: 48.85, Lon: 2.35")
		})

		Convey("When counting cores", func() {
			n, err := hardware{}.LogicalCores(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldBeGreaterThan, 0)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := hardware{}.DeviceMemory(cctx)
			So(facts.Classify(err), ShouldEqual, facts.KindCancelled)
		})
	})
}

func TestEnvironmentReadings(t *testing.T) {
	Convey("Given environment variables", t, func() {
		Convey("When reading the locale", func() {
			So(Locale(env(map[string]string{"LANG": "en_US.UTF-8"})), ShouldEqual, "en-US")
			So(Locale(env(map[string]string{"LC_ALL": "fr_FR@euro", "LANG": "en_US"})), ShouldEqual, "fr-FR")
			So(Locale(env(map[string]string{"LANG": "C.UTF-8"})), ShouldEqual, "")
			So(Locale(env(nil)), ShouldEqual, "")
		})

		Convey("When estimating color depth", func() {
			So(ColorDepth(true, env(map[string]string{"COLORTERM": "truecolor"})), ShouldEqual, 24)
			So(ColorDepth(true, env(map[string]string{"TERM": "xterm-256color"})), ShouldEqual, 8)
			So(ColorDepth(true, env(map[string]string{"TERM": "xterm"})), ShouldEqual, 4)
			So(ColorDepth(true, env(map[string]string{"TERM": "dumb"})), ShouldEqual, 1)
			So(ColorDepth(false, env(map[string]string{"COLORTERM": "truecolor"})), ShouldEqual, 1)
		})

		Convey("When synthesizing the user agent", func() {
			ua := UserAgent("linux", "amd64", "1.2.3")
			So(ua, ShouldEqual, "Mozilla/5.0 (X11; Linux x86_64) devinfo/1.2.3")

			Convey("Then it should not be mistaken for a browser or a phone", func() {
				r := uaparse.Parse(ua)
				So(r.Browser.Name, ShouldEqual, uaparse.UnknownBrowser)
				So(uaparse.Classify(r, 120, 40), ShouldEqual, uaparse.Desktop)
			})
		})

		Convey("When orienting a viewport", func() {
			So(OrientationOf(facts.Viewport{Width: 120, Height: 40}), ShouldEqual, Landscape)
			So(OrientationOf(facts.Viewport{Width: 40, Height: 120}), ShouldEqual, Portrait)
		})
	})
}

func TestHost(t *testing.T) {
	Convey("Given a host without a terminal", t, func() {
		vars := map[string]string{"TZ": ":Europe/Paris", "LANG": "de_DE.UTF-8", "COLUMNS": "100", "LINES": "30"}

		Convey("When the machine is a laptop", func() {
			h := New(WithSysFS(laptopFS()), WithTerminal(nil), WithGetenv(env(vars)),
				WithGeolocation(GeoConfig{Allowed: true}))
			e := h.Environment()
			caps := h.Capabilities()

			Convey("Then the environment should come from variables", func() {
				So(e.TimeZone, ShouldEqual, "Europe/Paris")
				So(e.Locale, ShouldEqual, "de-DE")
				So(e.Viewport, ShouldResemble, facts.Viewport{Width: 100, Height: 30})
				So(e.PixelRatio, ShouldEqual, 1)
				So(e.ColorDepth, ShouldEqual, 1)
			})

			Convey("Then sysfs-backed capabilities should be present", func() {
				So(caps.Battery, ShouldNotBeNil)
				So(caps.Connection, ShouldNotBeNil)
				So(caps.Geolocation, ShouldNotBeNil)
				So(caps.Hardware, ShouldNotBeNil)
				So(caps.Viewport, ShouldBeNil)
				So(caps.Orientation, ShouldBeNil)
			})
		})

		Convey("When the machine is a bare container", func() {
			caps := New(WithSysFS(fstest.MapFS{}), WithTerminal(nil), WithGetenv(env(nil))).Capabilities()

			Convey("Then only hardware should be present", func() {
				So(caps.Battery, ShouldBeNil)
				So(caps.Connection, ShouldBeNil)
				So(caps.Geolocation, ShouldBeNil)
				So(caps.Hardware, ShouldNotBeNil)
			})
		})
	})
}
