// Package env sets up stimulator binaries from flags and environment
// variables.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes"
	"github.com/robotalks/fes.go/pkg/telemetry"
	"github.com/robotalks/fes.go/pkg/transport/virtual"
)

// Config provides common options to set up a stimulator.
type Config struct {
	Name string
	Port string
	// Virtual replaces the serial port with a simulated board.
	Virtual bool
	// ChannelsFile is a CSV channel definition, the default channels are
	// used when empty.
	ChannelsFile string

	Sync      uint
	Frequency float64
	Settle    time.Duration

	// MQTTURL specifies the broker, e.g. mqtt://host:port/topic-prefix/
	MQTTURL     string
	MetricsAddr string
	WSAddr      string
}

var defaultConfig = Config{
	Port:      "/dev/ttyUSB0",
	Sync:      0x05,
	Frequency: 20,
	Settle:    fes.DefaultSettleDelay,
	MQTTURL:   "mqtt://localhost:1883/fes/",
}

func init() {
	if val := os.Getenv("FES_NAME"); val != "" {
		defaultConfig.Name = val
	}
	if val := os.Getenv("FES_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("FES_VIRTUAL"); val != "" {
		defaultConfig.Virtual, _ = strconv.ParseBool(val)
	}
	if val := os.Getenv("FES_CHANNELS"); val != "" {
		defaultConfig.ChannelsFile = val
	}
	if val := os.Getenv("FES_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("FES_METRICS_ADDR"); val != "" {
		defaultConfig.MetricsAddr = val
	}
	if val := os.Getenv("FES_WS_ADDR"); val != "" {
		defaultConfig.WSAddr = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Name, "name", defaultConfig.Name, "Stimulator name, derived from machine id if empty")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the board")
	flag.BoolVar(&defaultConfig.Virtual, "virtual", defaultConfig.Virtual, "Use a simulated board")
	flag.StringVar(&defaultConfig.ChannelsFile, "channels", defaultConfig.ChannelsFile, "Channel definition CSV")
	flag.UintVar(&defaultConfig.Sync, "sync", defaultConfig.Sync, "Schedule sync byte")
	flag.Float64Var(&defaultConfig.Frequency, "freq", defaultConfig.Frequency, "Stimulation frequency (Hz)")
	flag.DurationVar(&defaultConfig.Settle, "settle", defaultConfig.Settle, "Delay after setup frames")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.MetricsAddr, "metrics-addr", defaultConfig.MetricsAddr, "Listen address of /metrics")
	flag.StringVar(&defaultConfig.WSAddr, "ws-addr", defaultConfig.WSAddr, "Listen address of the status websocket")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// StimulatorName returns Name or the name derived from the machine id.
func (c *Config) StimulatorName() string {
	if c.Name != "" {
		return c.Name
	}
	return NameFromMachineID()
}

// SyncByte validates and returns the sync byte.
func (c *Config) SyncByte() (byte, error) {
	if c.Sync > 0xff {
		return 0, fmt.Errorf("sync %#x exceeds one byte", c.Sync)
	}
	return byte(c.Sync), nil
}

// Channels loads the channel set.
func (c *Config) Channels() ([]*fes.Channel, error) {
	if c.ChannelsFile == "" {
		return DefaultChannels(), nil
	}
	return LoadChannelsFile(c.ChannelsFile)
}

// NewStimulator creates the stimulator described by the config.
func (c *Config) NewStimulator(opts ...fes.Option) (*fes.Stimulator, error) {
	chs, err := c.Channels()
	if err != nil {
		return nil, err
	}
	opts = append([]fes.Option{fes.WithSettleDelay(c.Settle)}, opts...)
	if c.Virtual {
		glog.Infof("Using simulated board on %s", c.Port)
		opts = append(opts, fes.WithTransport(virtual.New()))
	}
	return fes.New(c.StimulatorName(), c.Port, chs, opts...), nil
}

// MustNewStimulator creates the stimulator and fails on error.
func (c *Config) MustNewStimulator(opts ...fes.Option) *fes.Stimulator {
	s, err := c.NewStimulator(opts...)
	if err != nil {
		glog.Exitf("Create stimulator: %v", err)
	}
	return s
}

// NewLink connects to the MQTT broker. It returns nil without error when
// MQTT is disabled.
func (c *Config) NewLink(name string) (*telemetry.Link, error) {
	if c.MQTTURL == "" {
		return nil, nil
	}
	opts, prefix, err := telemetry.ClientOptionsFromURL(c.MQTTURL)
	if err != nil {
		return nil, fmt.Errorf("invalid MQTT URL: %w", err)
	}
	if opts.ClientID == "" {
		opts.SetClientID(name)
	}
	link := telemetry.NewLink(telemetry.NewQueue(opts, prefix), name)
	if err := link.Queue.Connect(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", c.MQTTURL, err)
	}
	return link, nil
}
