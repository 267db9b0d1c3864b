package monitor

import (
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	temperatureCommand = "cpu_temperature"

	commandGet   = "get"
	pinLevelHigh = "high"
	pinLevelLow  = "low"
)

// handleConnect runs on every successful broker connection. The broker
// drops the session and its subscriptions when the connection is lost, so
// the command subscription must be issued again after each reconnect. The
// retained statuses are republished first so they reflect the state after
// the outage.
func (m *Monitor) handleConnect() {
	m.publishAllStatus()

	if err := m.mqttConn.Subscribe(m.commandTopicFilter(), commandQoS, m.handleCommand); err != nil {
		m.logger.WithError(err).Errorln("failed to subscribe to command topic")
	}
}

// handleCommand dispatches messages arriving on the command topics.
func (m *Monitor) handleCommand(_ pahomqtt.Client, msg pahomqtt.Message) {
	command := strings.TrimPrefix(msg.Topic(), m.commandTopicPrefix())
	message := string(msg.Payload())

	m.logger.WithFields(logrus.Fields{
		"command": command,
		"message": message,
	}).Debugln("received command")

	// The handling of the messages should not block, publishing replies
	// should be done in a separate thread in case they take too long to
	// send.
	go m.dispatchCommand(command, message)
}

func (m *Monitor) dispatchCommand(command, message string) {
	switch command {
	case temperatureCommand:
		m.handleTemperatureCommand(message)
	case m.config.PinName:
		m.handlePinCommand(message)
	default:
		m.logger.WithField("command", command).Warnln("unknown command topic")
	}
}

// handleTemperatureCommand answers a temperature status request.
func (m *Monitor) handleTemperatureCommand(message string) {
	if message != commandGet {
		m.logger.WithField("message", message).Warnln("unknown temperature command")
		return
	}

	temperature, err := m.config.Temperature.Temperature()
	if err != nil {
		m.logger.WithError(err).Errorln("failed to read cpu temperature")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishTemperatureLocked(temperature)
}

// handlePinCommand answers a pin status request or sets the pin level.
func (m *Monitor) handlePinCommand(message string) {
	switch message {
	case commandGet:
	case pinLevelHigh, pinLevelLow:
		if err := m.config.Pin.Set(message == pinLevelHigh); err != nil {
			m.logger.WithError(err).Errorln("failed to set pin")
			return
		}
		m.logger.Debugln("pin set", message)
	default:
		m.logger.WithField("message", message).Warnln("unknown pin command")
		return
	}

	high, err := m.config.Pin.Level()
	if err != nil {
		m.logger.WithError(err).Errorln("failed to read pin")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishPinLocked(high)
}
