package monitor

import (
	"time"

	"github.com/sirupsen/logrus"

	"devmon/sensor"
)

// Config bundles configuration settings for Monitor.
type Config struct {
	Logger logrus.FieldLogger

	// Temperature and Pin are the hardware values being monitored.
	Temperature sensor.TemperatureSource
	Pin         sensor.Pin

	// PinName is the label the pin uses in command and status topics.
	PinName string

	PollInterval time.Duration

	// TemperatureDeadband is the minimum change in degrees Celsius before
	// a new temperature status is published.
	TemperatureDeadband float64

	// Alert thresholds in degrees Celsius. The alert turns on above High
	// and only turns off again below Low.
	AlertHighTemperature float64
	AlertLowTemperature  float64
	// AlertTopic is the command topic of the peer device that displays
	// the alert.
	AlertTopic string

	MQTTClient   string
	MQTTBroker   string
	MQTTUser     string
	MQTTPassword string

	OnReady func(*Monitor)
}
