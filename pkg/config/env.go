package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ApplyEnv loads the given .env files (if present) and overrides
// connection settings from the environment.
func (c *Config) ApplyEnv(files ...string) {
	_ = godotenv.Load(files...)

	c.Serial.Port = getEnv("GOMPPT_SERIAL_PORT", c.Serial.Port)
	c.Serial.BaudRate = getEnvInt("GOMPPT_SERIAL_BAUD", c.Serial.BaudRate)

	c.MQTT.Enabled = getEnvBool("GOMPPT_MQTT_ENABLED", c.MQTT.Enabled)
	c.MQTT.Broker = getEnv("GOMPPT_MQTT_BROKER", c.MQTT.Broker)
	c.MQTT.ClientID = getEnv("GOMPPT_MQTT_CLIENT_ID", c.MQTT.ClientID)
	c.MQTT.Username = getEnv("GOMPPT_MQTT_USERNAME", c.MQTT.Username)
	c.MQTT.Password = getEnv("GOMPPT_MQTT_PASSWORD", c.MQTT.Password)
	c.MQTT.DeviceID = getEnv("GOMPPT_DEVICE_ID", c.MQTT.DeviceID)

	c.HTTP.Addr = getEnv("GOMPPT_HTTP_ADDR", c.HTTP.Addr)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as int, using default: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: failed to parse %s as bool, using default: %v", key, err)
		return defaultValue
	}
	return boolValue
}
