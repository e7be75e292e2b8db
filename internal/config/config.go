// Package config loads the controller configuration from a YAML file with
// environment overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/edgarvilca/riego/internal/decision"
)

// Duration accepts Go duration strings ("30s", "1m") in the YAML file.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std converts to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type MQTT struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
}

type Influx struct {
	URL          string   `yaml:"url"`
	Token        string   `yaml:"token"`
	Org          string   `yaml:"org"`
	Bucket       string   `yaml:"bucket"`
	SyncInterval Duration `yaml:"sync_interval"`
	BatchSize    int      `yaml:"batch_size"`
}

type Model struct {
	RegistryURL  string   `yaml:"registry_url"`
	PullInterval Duration `yaml:"pull_interval"`
}

type Weather struct {
	APIKey   string  `yaml:"api_key"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Timezone string  `yaml:"timezone"`
}

type Budget struct {
	BaseMM   float64 `yaml:"base_mm"`
	ETOCoeff float64 `yaml:"eto_coeff"`
}

type Hardware struct {
	SoilPort     string  `yaml:"soil_port"` // RS485 adapter device
	SoilBaud     int     `yaml:"soil_baud"`
	SoilSlaveID  byte    `yaml:"soil_slave_id"`
	LevelPort    string  `yaml:"level_port"` // US-100 serial device
	LevelBaud    int     `yaml:"level_baud"`
	TankHeightCM float64 `yaml:"tank_height_cm"`
	FlowPin      string  `yaml:"flow_pin"`

	PumpPin       string `yaml:"pump_pin"`
	IrrigationPin string `yaml:"irrigation_pin"`
	SupplyPin     string `yaml:"supply_pin"`
	FertilizerPin string `yaml:"fertilizer_pin"`
}

type Control struct {
	Interval        Duration `yaml:"interval"`
	ErrorPause      Duration `yaml:"error_pause"`
	CycleDoseMM     float64  `yaml:"cycle_dose_mm"`
	ExpectedFlowLPM float64  `yaml:"expected_flow_lpm"`
	DryRunFloorPct  float64  `yaml:"dry_run_floor_pct"`
}

type Config struct {
	HTTPAddr   string              `yaml:"http_addr"`
	Simulate   bool                `yaml:"simulate"`
	MQTT       MQTT                `yaml:"mqtt"`
	Influx     Influx              `yaml:"influx"`
	Model      Model               `yaml:"model"`
	Weather    Weather             `yaml:"weather"`
	Budget     Budget              `yaml:"budget"`
	Hardware   Hardware            `yaml:"hardware"`
	Control    Control             `yaml:"control"`
	Thresholds decision.Thresholds `yaml:"thresholds"`
}

// Default returns the configuration used when the file omits a field.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		MQTT: MQTT{
			Host:     "localhost",
			Port:     1883,
			ClientID: "riego-controller",
		},
		Influx: Influx{
			SyncInterval: Duration(time.Minute),
			BatchSize:    500,
		},
		Model: Model{
			PullInterval: Duration(15 * time.Minute),
		},
		Hardware: Hardware{
			SoilPort:      "/dev/ttyUSB0",
			SoilBaud:      4800,
			SoilSlaveID:   1,
			LevelPort:     "/dev/ttyAMA0",
			LevelBaud:     9600,
			TankHeightCM:  100,
			FlowPin:       "7",
			PumpPin:       "11",
			IrrigationPin: "13",
			SupplyPin:     "15",
			FertilizerPin: "16",
		},
		Control: Control{
			Interval:        Duration(time.Minute),
			ErrorPause:      Duration(5 * time.Second),
			CycleDoseMM:     1.0,
			ExpectedFlowLPM: 10,
			DryRunFloorPct:  10,
		},
		Budget: Budget{
			BaseMM:   2.0,
			ETOCoeff: 0.8,
		},
		Thresholds: decision.DefaultThresholds(),
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path returns defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets deployments keep credentials out of the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MQTT_HOST"); v != "" {
		cfg.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_USER"); v != "" {
		cfg.MQTT.User = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("OWM_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("MODEL_REGISTRY_URL"); v != "" {
		cfg.Model.RegistryURL = v
	}
	if os.Getenv("SIMULATE") == "true" {
		cfg.Simulate = true
	}
}

func (c Config) validate() error {
	if c.MQTT.Host == "" || c.MQTT.Port <= 0 {
		return fmt.Errorf("config: mqtt host and port are required")
	}
	if c.Control.Interval <= 0 {
		return fmt.Errorf("config: control interval must be positive")
	}
	if c.Hardware.TankHeightCM <= 0 {
		return fmt.Errorf("config: tank height must be positive")
	}
	for name, r := range map[string]decision.Range{
		"humidity":    c.Thresholds.Humidity,
		"ph":          c.Thresholds.PH,
		"ec":          c.Thresholds.EC,
		"water_level": c.Thresholds.WaterLevel,
	} {
		if r.Min >= r.Max {
			return fmt.Errorf("config: threshold %s: min %.2f must be below max %.2f", name, r.Min, r.Max)
		}
	}
	return nil
}
