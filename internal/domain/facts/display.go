package facts

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
)

// Placeholders rendered for facts without a value.
const (
	PendingText     = "Loading..."
	UnavailableText = "unavailable"
)

var labels = map[Field]string{
	FieldAddress:      "IP Address",
	FieldLocation:     "IP Location",
	FieldUserAgent:    "User Agent",
	FieldBrowser:      "Browser",
	FieldOS:           "OS",
	FieldDeviceClass:  "Device Type",
	FieldViewport:     "Screen Size",
	FieldPixelRatio:   "Pixel Ratio",
	FieldTimeZone:     "Time Zone",
	FieldBattery:      "Battery Status",
	FieldConnection:   "Network Type",
	FieldGeolocation:  "Geolocation",
	FieldDeviceMemory: "Device Memory",
	FieldCPUCores:     "CPU Cores",
	FieldOrientation:  "Screen Orientation",
	FieldColorDepth:   "Color Depth",
	FieldLocale:       "Locale",
}

// Label is the human name of a field.
func Label(f Field) string {
	if l, ok := labels[f]; ok {
		return l
	}
	return string(f)
}

// Display renders the fact's value for the card. Pending and unavailable facts
// render distinct placeholders.
func (f Fact) Display(field Field) string {
	switch f.State {
	case Unresolved:
		return PendingText
	case Unavailable:
		return UnavailableText
	}

	switch v := f.Value.(type) {
	case string:
		return v
	case int:
		if field == FieldColorDepth {
			return fmt.Sprintf("%d-bit", v)
		}
		return strconv.Itoa(v)
	case float64:
		if field == FieldDeviceMemory {
			return formatMemory(v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	case nil:
		return UnavailableText
	default:
		return fmt.Sprint(v)
	}
}

// formatMemory renders a binary gigabyte estimate the way
// navigator.deviceMemory is shown. Fractional estimates fall back to an IEC
// byte count of the same quantity.
func formatMemory(gib float64) string {
	if gib >= 1 && gib == float64(int64(gib)) {
		return fmt.Sprintf("%d GB", int64(gib))
	}
	return humanize.IBytes(uint64(gib * (1 << 30)))
}

// Row is one rendered line of the card.
type Row struct {
	Field Field
	Label string
	Text  string
}

// Rows renders the aggregate into card rows. Extended fields are included
// only when more is set.
func (f Facts) Rows(more bool) []Row {
	rows := make([]Row, 0, len(AllFields))
	for _, field := range AllFields {
		if ExtendedFields[field] && !more {
			continue
		}
		rows = append(rows, Row{Field: field, Label: Label(field), Text: f.Get(field).Display(field)})
	}
	return rows
}
