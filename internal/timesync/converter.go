package timesync

import (
	"fmt"
	"time"
)

// DisplayLayout renders timestamps with microsecond precision.
const DisplayLayout = "2006-01-02 15:04:05.000000"

// Converter handles conversion from epoch milliseconds to wall-clock time.
type Converter struct {
	location *time.Location
}

// NewConverter creates a converter rendering times in the named location.
// "" and "Local" select the system zone, "UTC" selects UTC, anything else is
// looked up in the IANA database.
func NewConverter(name string) (*Converter, error) {
	switch name {
	case "", "Local":
		return &Converter{location: time.Local}, nil
	case "UTC":
		return &Converter{location: time.UTC}, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
	}
	return &Converter{location: loc}, nil
}

// ToWallClock converts a timestamp in milliseconds since the epoch.
func (c *Converter) ToWallClock(millis int64) time.Time {
	return time.UnixMilli(millis).In(c.location)
}

// Render formats a timestamp with DisplayLayout.
func (c *Converter) Render(millis int64) string {
	return c.ToWallClock(millis).Format(DisplayLayout)
}

// Location returns the location used for conversions.
func (c *Converter) Location() *time.Location {
	return c.location
}
