package common

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"devmon/config"
)

var (
	// Generic settings.
	LogTimestamp  bool
	LogLevel      string
	SystemdNotify bool

	// Monitor settings.
	PollInterval         time.Duration
	TemperatureDeadband  float64
	AlertHighTemperature float64
	AlertLowTemperature  float64
	AlertTopic           string
	GPIOPin              string
	PinName              string
)

func SetDefaults(cmd *cobra.Command) {
	// Defaults
	viper.SetDefault("LOG_TIMESTAMP", true)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SYSTEMD_NOTIFY", false)
	viper.SetDefault("CONFIG_FILE", "~/.devmon.yaml")

	viper.SetDefault("WIFI_SSID", "")
	viper.SetDefault("WIFI_PASSWORD", "")

	viper.SetDefault("MQTT_BROKER_IP", "")
	viper.SetDefault("MQTT_BROKER_PORT", 1883)
	viper.SetDefault("MQTT_BROKER_USERNAME", "")
	viper.SetDefault("MQTT_BROKER_PASSWORD", "")
	viper.SetDefault("MQTT_CLIENT_ID", "")

	viper.SetDefault("POLL_INTERVAL", time.Second)
	viper.SetDefault("TEMPERATURE_DEADBAND", 2.0)
	viper.SetDefault("ALERT_HIGH_TEMPERATURE", 58.0)
	viper.SetDefault("ALERT_LOW_TEMPERATURE", 56.0)
	viper.SetDefault("ALERT_TOPIC", "Arduino/command/LED")
	viper.SetDefault("GPIO_PIN", "GPIO5")
	viper.SetDefault("PIN_NAME", "D5")

	// Command line flags
	cmd.Flags().Bool("log-timestamp", true, "Prefix each log line with timestamp")
	cmd.Flags().String("log-level", "info", "Log level (one of panic, fatal, error, warn, info or debug)")
	cmd.Flags().Bool("systemd-notify", false, "Enable systemd sd_notify callback")
	cmd.Flags().String(
		"config-file", "~/.devmon.yaml", "Configuration file location. This is where the WiFi and broker secrets should be included")

	cmd.Flags().String("wifi-ssid", "", "SSID (name) of the local WiFi network")
	cmd.Flags().String("wifi-password", "", "Password for the local WiFi network")

	cmd.Flags().String("mqtt-broker-ip", "", "IP address of the MQTT broker to connect to")
	cmd.Flags().Int("mqtt-broker-port", 1883, "TCP port of the MQTT broker")
	cmd.Flags().String("mqtt-broker-username", "", "MQTT Username")
	cmd.Flags().String("mqtt-broker-password", "", "MQTT Password")
	cmd.Flags().String("mqtt-client-id", "", "Unique client ID on the broker, generated when empty")

	cmd.Flags().Duration("poll-interval", time.Second, "How often the hardware status is sampled")
	cmd.Flags().Float64("temperature-deadband", 2.0, "Minimum temperature change in °C before a new status is published")
	cmd.Flags().Float64("alert-high-temperature", 58.0, "Temperature in °C above which the high temperature alert turns on")
	cmd.Flags().Float64("alert-low-temperature", 56.0, "Temperature in °C below which the high temperature alert turns off")
	cmd.Flags().String("alert-topic", "Arduino/command/LED", "Command topic of the peer device that displays the alert, empty disables the alert")
	cmd.Flags().String("gpio-pin", "GPIO5", "Name of the GPIO pin to monitor and control")
	cmd.Flags().String("pin-name", "D5", "Label of the pin in command and status topics")

	_ = viper.BindPFlag("LOG_TIMESTAMP", cmd.Flags().Lookup("log-timestamp"))
	_ = viper.BindPFlag("LOG_LEVEL", cmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("SYSTEMD_NOTIFY", cmd.Flags().Lookup("systemd-notify"))
	_ = viper.BindPFlag("CONFIG_FILE", cmd.Flags().Lookup("config-file"))

	_ = viper.BindPFlag("WIFI_SSID", cmd.Flags().Lookup("wifi-ssid"))
	_ = viper.BindPFlag("WIFI_PASSWORD", cmd.Flags().Lookup("wifi-password"))

	_ = viper.BindPFlag("MQTT_BROKER_IP", cmd.Flags().Lookup("mqtt-broker-ip"))
	_ = viper.BindPFlag("MQTT_BROKER_PORT", cmd.Flags().Lookup("mqtt-broker-port"))
	_ = viper.BindPFlag("MQTT_BROKER_USERNAME", cmd.Flags().Lookup("mqtt-broker-username"))
	_ = viper.BindPFlag("MQTT_BROKER_PASSWORD", cmd.Flags().Lookup("mqtt-broker-password"))
	_ = viper.BindPFlag("MQTT_CLIENT_ID", cmd.Flags().Lookup("mqtt-client-id"))

	_ = viper.BindPFlag("POLL_INTERVAL", cmd.Flags().Lookup("poll-interval"))
	_ = viper.BindPFlag("TEMPERATURE_DEADBAND", cmd.Flags().Lookup("temperature-deadband"))
	_ = viper.BindPFlag("ALERT_HIGH_TEMPERATURE", cmd.Flags().Lookup("alert-high-temperature"))
	_ = viper.BindPFlag("ALERT_LOW_TEMPERATURE", cmd.Flags().Lookup("alert-low-temperature"))
	_ = viper.BindPFlag("ALERT_TOPIC", cmd.Flags().Lookup("alert-topic"))
	_ = viper.BindPFlag("GPIO_PIN", cmd.Flags().Lookup("gpio-pin"))
	_ = viper.BindPFlag("PIN_NAME", cmd.Flags().Lookup("pin-name"))

	// Setup env
	viper.SetEnvPrefix("devmon")
	viper.AutomaticEnv()
}

// ApplyConfiguration reads the configuration file and resolves the layered
// values into the package globals and the returned connection settings.
func ApplyConfiguration(cmd *cobra.Command) (*config.Settings, error) {
	envFile := viper.GetString("CONFIG_FILE")
	viper.SetConfigFile(envFile)
	if err := viper.ReadInConfig(); err != nil {
		// If file does not exist continue with only env variables and flags.
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	LogTimestamp = viper.GetBool("LOG_TIMESTAMP")
	LogLevel = viper.GetString("LOG_LEVEL")
	SystemdNotify = viper.GetBool("SYSTEMD_NOTIFY")

	PollInterval = viper.GetDuration("POLL_INTERVAL")
	TemperatureDeadband = viper.GetFloat64("TEMPERATURE_DEADBAND")
	AlertHighTemperature = viper.GetFloat64("ALERT_HIGH_TEMPERATURE")
	AlertLowTemperature = viper.GetFloat64("ALERT_LOW_TEMPERATURE")
	AlertTopic = viper.GetString("ALERT_TOPIC")
	GPIOPin = viper.GetString("GPIO_PIN")
	PinName = viper.GetString("PIN_NAME")

	settings := &config.Settings{
		WifiSSID:     viper.GetString("WIFI_SSID"),
		WifiPassword: viper.GetString("WIFI_PASSWORD"),

		BrokerIP:       viper.GetString("MQTT_BROKER_IP"),
		BrokerPort:     viper.GetInt("MQTT_BROKER_PORT"),
		BrokerUsername: viper.GetString("MQTT_BROKER_USERNAME"),
		BrokerPassword: viper.GetString("MQTT_BROKER_PASSWORD"),
		ClientID:       viper.GetString("MQTT_CLIENT_ID"),
	}
	settings.EnsureClientID()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}
