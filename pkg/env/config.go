// Package env sets up sensors and bridge connections from flags and
// environment variables.
package env

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/r503.go/pkg/r503"
)

// Environment variables providing defaults.
const (
	EnvPort     = "R503_PORT"
	EnvBaudrate = "R503_BAUD"
	EnvAddress  = "R503_ADDRESS"
	EnvPassword = "R503_PASSWORD"
	EnvRemote   = "R503_REMOTE"
	EnvMQTTURL  = "R503_MQTT_URL"
	EnvID       = "R503_ID"
)

// Config provides common options to reach a sensor.
type Config struct {
	// Port is the serial port the sensor is attached to.
	Port     string
	Baudrate int
	Address  uint32
	Password uint32
	// Sim uses a simulated sensor instead of Port.
	Sim bool

	// Remote is the URL of a bridge to use instead of a local sensor.
	// e.g. tcp://host:port, ws://host:port/path, mqtt://host:port/prefix/
	Remote string
	// MQTTBrokerURL is where the bridge daemon publishes the sensor.
	MQTTBrokerURL string
	// ID identifies the sensor on MQTT.
	ID string
}

var defaultConfig = Config{
	Port:     "/dev/ttyUSB0",
	Baudrate: r503.DefaultBaudrate,
	Address:  r503.DefaultAddress,
	Password: r503.DefaultPassword,
}

func init() {
	defaultConfig.ID = MachineID()
	if err := defaultConfig.LoadEnv(os.LookupEnv); err != nil {
		glog.Warning(err)
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Serial port of the sensor.")
	flag.IntVar(&defaultConfig.Baudrate, "baud", defaultConfig.Baudrate, "Baudrate of the sensor.")
	flag.Var((*hexValue)(&defaultConfig.Address), "addr", "Address of the sensor.")
	flag.Var((*hexValue)(&defaultConfig.Password), "password", "Password of the sensor.")
	flag.BoolVar(&defaultConfig.Sim, "sim", defaultConfig.Sim, "Use a simulated sensor.")
	flag.StringVar(&defaultConfig.Remote, "remote", defaultConfig.Remote, "Bridge URL, tcp://, ws:// or mqtt://.")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Sensor ID on MQTT.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// LoadEnv overrides the config with environment variables found by lookup.
func (c *Config) LoadEnv(lookup func(string) (string, bool)) error {
	if val, ok := lookup(EnvPort); ok && val != "" {
		c.Port = val
	}
	if val, ok := lookup(EnvBaudrate); ok && val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBaudrate, err)
		}
		c.Baudrate = baud
	}
	for name, ptr := range map[string]*uint32{EnvAddress: &c.Address, EnvPassword: &c.Password} {
		if val, ok := lookup(name); ok && val != "" {
			if err := (*hexValue)(ptr).Set(val); err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
		}
	}
	if val, ok := lookup(EnvRemote); ok {
		c.Remote = val
	}
	if val, ok := lookup(EnvMQTTURL); ok {
		c.MQTTBrokerURL = val
	}
	if val, ok := lookup(EnvID); ok && val != "" {
		c.ID = val
	}
	return nil
}

// hexValue is a uint32 flag printed in hex, parsed with any base prefix.
type hexValue uint32

func (v *hexValue) String() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("0x%08X", uint32(*v))
}

func (v *hexValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return err
	}
	*v = hexValue(n)
	return nil
}
