package nmea

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/sky-view/internal/receiver"
)

const (
	DefaultHost = "localhost"
	DefaultPort = 2947
)

/*
Example 1: Local gpsd
    cfg := nmea.Config{}
    // Executes: gpspipe -r localhost:2947

Example 2: One device of a remote gpsd, stop after ten minutes
    cfg := nmea.Config{
        Host:      "pi.local",
        Device:    "/dev/ttyACM0",
        ExitTimer: receiver.NewTimeDuration(10 * time.Minute),
    }
    // Executes: gpspipe -r -x 600 pi.local:2947:/dev/ttyACM0
*/

// Config is the `gpspipe` tool configuration
type Config struct {
	Runtime string `yaml:"runtime" json:"runtime"` // Binary name or path (default: gpspipe)

	Host   string `yaml:"host" json:"host"`     // gpsd host (default: localhost)
	Port   int    `yaml:"port" json:"port"`     // gpsd port (default: 2947)
	Device string `yaml:"device" json:"device"` // Restrict output to one device of the gpsd instance

	ExitTimer receiver.TimeDuration `yaml:"exitTimer" json:"exitTimer"` // -x seconds, exit after this long (default: off)
	Count     int                   `yaml:"count" json:"count"`         // -n count, exit after this many sentences (default: off)
}

func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return receiver.NewConfigError(fmt.Sprintf("nmea.Config: invalid port: %d", c.Port))
	}
	if strings.ContainsAny(c.Host, ": ") {
		return receiver.NewConfigError(fmt.Sprintf("nmea.Config: invalid host: %q", c.Host))
	}
	if err := c.ExitTimer.Validate(); err != nil {
		return receiver.NewConfigError(fmt.Sprintf("nmea.Config: invalid exit timer: %s", err))
	}
	if c.Count < 0 {
		return receiver.NewConfigError(fmt.Sprintf("nmea.Config: count must not be negative: %d", c.Count))
	}
	return nil
}

// RuntimeName returns the binary to look up.
func (c *Config) RuntimeName() string {
	if c.Runtime == "" {
		return Runtime
	}
	return c.Runtime
}

// Server returns the gpspipe server argument, host:port[:device].
func (c *Config) Server() string {
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	server := fmt.Sprintf("%s:%d", host, port)
	if c.Device != "" {
		server += ":" + c.Device
	}
	return server
}

// Args returns the command line arguments for `gpspipe`
// See `man gpspipe` for more information:
// https://gpsd.io/gpspipe.html
func (c *Config) Args() ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	args := []string{"-r"} // raw NMEA sentences

	if c.ExitTimer > 0 {
		args = append(args, "-x", strconv.Itoa(c.ExitTimer.Seconds()))
	}

	if c.Count > 0 {
		args = append(args, "-n", strconv.Itoa(c.Count))
	}

	args = append(args, c.Server())

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args()
	if err != nil {
		return fmt.Sprintf("nmea.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", c.RuntimeName(), strings.Join(args, " "))
}
