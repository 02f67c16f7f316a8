package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the controller and bridge configuration.
type Config struct {
	Sensing     SensingConfig     `yaml:"sensing"`
	Protection  ProtectionConfig  `yaml:"protection"`
	Tracker     TrackerConfig     `yaml:"tracker"`
	Duty        DutyConfig        `yaml:"duty"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Thermal     ThermalConfig     `yaml:"thermal"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Serial      SerialConfig      `yaml:"serial"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	HTTP        HTTPConfig        `yaml:"http"`
	Monitor     MonitorConfig     `yaml:"monitor"`
	Mock        MockConfig        `yaml:"mock"`
}

// SensingConfig contains the analog front end calibration parameters.
type SensingConfig struct {
	ADCReference     float64 `yaml:"adc_reference"`      // ADC reference voltage (V)
	ADCFullScale     int     `yaml:"adc_full_scale"`     // Number of ADC codes (1024 for 10-bit)
	ShuntScale       float64 `yaml:"shunt_scale"`        // Current sense gain (A per V of sense, x1000)
	VoltageFullScale float64 `yaml:"voltage_full_scale"` // Input voltage at ADC full scale (V)
	WindowSize       int     `yaml:"window_size"`        // Current moving average window
	ZeroSamples      int     `yaml:"zero_samples"`       // Samples averaged for the zero-current offset
	VoltageSamples   int     `yaml:"voltage_samples"`    // Samples averaged per voltage reading
}

// ConversionFactor returns volts per ADC code scaled down by 1000.
func (s SensingConfig) ConversionFactor() float64 {
	return s.ADCReference / float64(s.ADCFullScale) / 1000
}

// AmpsPerCount returns the current represented by one ADC code above the offset.
func (s SensingConfig) AmpsPerCount() float64 {
	return s.ConversionFactor() * s.ShuntScale
}

// VoltageScale returns volts per ADC code on the voltage channel.
func (s SensingConfig) VoltageScale() float64 {
	return s.VoltageFullScale / float64(s.ADCFullScale)
}

// ProtectionConfig contains the protection rule set and physical limits.
type ProtectionConfig struct {
	MinimumDuty    bool    `yaml:"minimum_duty"`
	Overcurrent    bool    `yaml:"overcurrent"`
	Overvoltage    bool    `yaml:"overvoltage"`
	MaxCurrent     float64 `yaml:"max_current"`     // A
	MaxVoltage     float64 `yaml:"max_voltage"`     // V
	OvercurrentRaw int     `yaml:"overcurrent_raw"` // Overrides MaxCurrent when non-zero
	OvervoltageRaw int     `yaml:"overvoltage_raw"` // Overrides MaxVoltage when non-zero
	DebounceTicks  int     `yaml:"debounce_ticks"`  // Ticks a flag stays active after its condition clears
}

// TrackerConfig contains maximum power point tracker parameters.
type TrackerConfig struct {
	Enabled     bool `yaml:"enabled"`
	HistorySize int  `yaml:"history_size"`
	Step        int  `yaml:"step"`
}

// DutyConfig contains the actuator range.
type DutyConfig struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Initial int `yaml:"initial"`
}

// ScheduleConfig contains task periods of the control loop.
type ScheduleConfig struct {
	Current     time.Duration `yaml:"current"`
	Voltage     time.Duration `yaml:"voltage"`
	Power       time.Duration `yaml:"power"`
	Temperature time.Duration `yaml:"temperature"`
}

// ThermalConfig contains temperature probe parameters.
type ThermalConfig struct {
	MaxProbes int `yaml:"max_probes"`
}

// DiagnosticsConfig toggles loop diagnostics.
type DiagnosticsConfig struct {
	LogTransitions bool `yaml:"log_transitions"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// MQTTConfig contains telemetry publishing configuration.
type MQTTConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Broker         string `yaml:"broker"`
	ClientID       string `yaml:"client_id"` // Random when empty
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	DeviceID       string `yaml:"device_id"`
	TelemetryTopic string `yaml:"telemetry_topic"` // {device_id} is replaced
	EventTopic     string `yaml:"event_topic"`     // {device_id} is replaced
	QoS            byte   `yaml:"qos"`
}

// HTTPConfig contains the status API configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // Empty disables the API
}

// MonitorConfig contains host side snapshot retention.
type MonitorConfig struct {
	WindowSeconds  float64 `yaml:"window_seconds"`
	AverageSamples int     `yaml:"average_samples"` // Snapshots averaged before monitoring, 0 disables
}

// MockConfig contains simulated controller configuration.
type MockConfig struct {
	SampleRate     time.Duration `yaml:"sample_rate"`     // Wall time between emitted snapshots
	TickStep       time.Duration `yaml:"tick_step"`       // Simulated time per control tick
	TicksPerSample int           `yaml:"ticks_per_sample"` // Control ticks run per emitted snapshot
	ZeroRaw        int           `yaml:"zero_raw"`        // Current sense output at zero load (ADC)
	PanelVoc       float64       `yaml:"panel_voc"`       // Open circuit voltage (V)
	PanelIsc       float64       `yaml:"panel_isc"`       // Short circuit current (A)
	BatteryVoltage float64       `yaml:"battery_voltage"` // Output side voltage (V)
	NoiseCounts    int           `yaml:"noise_counts"`    // Peak ADC noise
	Probes         []float64     `yaml:"probes"`          // Simulated probe temperatures (°C)
}

// Default returns a default configuration matching the reference hardware.
func Default() *Config {
	return &Config{
		Sensing: SensingConfig{
			ADCReference:     5.0,
			ADCFullScale:     1024,
			ShuntScale:       19500,
			VoltageFullScale: 44.8,
			WindowSize:       16,
			ZeroSamples:      5,
			VoltageSamples:   5,
		},
		Protection: ProtectionConfig{
			MinimumDuty: true,
			Overcurrent: true,
			Overvoltage: true,
			MaxCurrent:  40,
			MaxVoltage:  37,
		},
		Tracker: TrackerConfig{
			Enabled:     true,
			HistorySize: 100,
			Step:        1,
		},
		Duty: DutyConfig{
			Min:     0,
			Max:     255,
			Initial: 128,
		},
		Schedule: ScheduleConfig{
			Current:     time.Millisecond,
			Voltage:     10 * time.Millisecond,
			Power:       100 * time.Millisecond,
			Temperature: time.Second,
		},
		Thermal: ThermalConfig{
			MaxProbes: 2,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 500000,
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			DeviceID:       "controller-1",
			TelemetryTopic: "gomppt/{device_id}/telemetry",
			EventTopic:     "gomppt/{device_id}/events",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Monitor: MonitorConfig{
			WindowSeconds: 60,
		},
		Mock: MockConfig{
			SampleRate:     100 * time.Millisecond,
			TickStep:       time.Millisecond,
			TicksPerSample: 100,
			ZeroRaw:        34,
			PanelVoc:       36,
			PanelIsc:       9,
			BatteryVoltage: 12.6,
			NoiseCounts:    1,
			Probes:         []float64{25, 31},
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults fills fields where zero is never a meaningful value.
// Sample counts are left alone so that a degenerate configuration is rejected by Validate.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Sensing.ADCReference == 0 {
		c.Sensing.ADCReference = def.Sensing.ADCReference
	}
	if c.Sensing.ShuntScale == 0 {
		c.Sensing.ShuntScale = def.Sensing.ShuntScale
	}
	if c.Sensing.VoltageFullScale == 0 {
		c.Sensing.VoltageFullScale = def.Sensing.VoltageFullScale
	}

	if c.Protection.MaxCurrent == 0 {
		c.Protection.MaxCurrent = def.Protection.MaxCurrent
	}
	if c.Protection.MaxVoltage == 0 {
		c.Protection.MaxVoltage = def.Protection.MaxVoltage
	}

	if c.Thermal.MaxProbes == 0 {
		c.Thermal.MaxProbes = def.Thermal.MaxProbes
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.MQTT.Broker == "" {
		c.MQTT.Broker = def.MQTT.Broker
	}
	if c.MQTT.DeviceID == "" {
		c.MQTT.DeviceID = def.MQTT.DeviceID
	}
	if c.MQTT.TelemetryTopic == "" {
		c.MQTT.TelemetryTopic = def.MQTT.TelemetryTopic
	}
	if c.MQTT.EventTopic == "" {
		c.MQTT.EventTopic = def.MQTT.EventTopic
	}

	if c.Monitor.WindowSeconds == 0 {
		c.Monitor.WindowSeconds = def.Monitor.WindowSeconds
	}

	if c.Mock.SampleRate == 0 {
		c.Mock.SampleRate = def.Mock.SampleRate
	}
	if c.Mock.TickStep == 0 {
		c.Mock.TickStep = def.Mock.TickStep
	}
	if c.Mock.TicksPerSample == 0 {
		c.Mock.TicksPerSample = def.Mock.TicksPerSample
	}
	if c.Mock.PanelVoc == 0 {
		c.Mock.PanelVoc = def.Mock.PanelVoc
	}
	if c.Mock.PanelIsc == 0 {
		c.Mock.PanelIsc = def.Mock.PanelIsc
	}
	if c.Mock.BatteryVoltage == 0 {
		c.Mock.BatteryVoltage = def.Mock.BatteryVoltage
	}
}
