package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"devmon/mqtt"
)

const (
	commandQoS byte = 1
	statusQoS  byte = 0
)

// broker is the part of the MQTT client the monitor uses. It is an
// interface so the reporting logic can be exercised without a live broker.
type broker interface {
	Connect() error
	Disconnect()
	Publish(topic string, qos byte, retained bool, message string) error
	Subscribe(topic string, qos byte, handler pahomqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Monitor samples the CPU temperature and a GPIO pin, reports their status
// over MQTT and executes commands received from the broker.
type Monitor struct {
	config *Config

	logger logrus.FieldLogger

	mqttConn broker

	mu sync.Mutex
	// Last reported values. The reported flags distinguish "never
	// published" from a genuine zero value.
	lastTemperature float64
	tempReported    bool
	lastPinHigh     bool
	pinReported     bool
	alertActive     bool
}

// New constructs a monitor from the provided parameters.
func New(c *Config) (*Monitor, error) {
	if c.Temperature == nil {
		return nil, fmt.Errorf("no temperature source, nothing to monitor")
	}
	if c.Pin == nil {
		return nil, fmt.Errorf("no gpio pin, nothing to monitor")
	}
	if c.AlertLowTemperature >= c.AlertHighTemperature {
		return nil, fmt.Errorf("alert low threshold %.1f not below high threshold %.1f",
			c.AlertLowTemperature, c.AlertHighTemperature)
	}

	m := &Monitor{
		config: c,
		logger: c.Logger,
	}

	// Wire the broker client here so the connection handle exists before
	// Run starts and shutdown never races setup. Connecting happens later.
	m.mqttConn = mqtt.NewClient(&mqtt.Config{
		Logger: c.Logger,

		ClientID: c.MQTTClient,
		Broker:   c.MQTTBroker,
		User:     c.MQTTUser,
		Password: c.MQTTPassword,

		OnConnect: m.handleConnect,
	})

	return m, nil
}

// Run starts all the associated resources and blocks forever until signals
// or error occurs.
func (m *Monitor) Run(ctx context.Context) error {
	runCtx, runCtxCancel := context.WithCancel(ctx)
	defer runCtxCancel()

	logger := m.logger

	errCh := make(chan error, 2)
	exitCh := make(chan struct{}, 1)
	signalCh := make(chan os.Signal, 1)
	readyCh := make(chan struct{}, 1)
	triggerCh := make(chan bool, 1)

	var wg sync.WaitGroup

	// Poll the hardware and report status changes.
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-runCtx.Done():
			return
		case <-readyCh:
		}

		m.poll(runCtx, triggerCh)
	}()

	// Setup and then wait until services close before closing the exit channel.
	go func() {
		if err := m.setup(); err != nil {
			errCh <- err
		} else {
			close(readyCh)
		}

		wg.Wait()
		close(exitCh)
	}()

	// Wait for exit or error, with support for HUP to republish all status.
	err := func() error {
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for {
			select {
			case errFromChannel := <-errCh:
				return errFromChannel
			case reason := <-signalCh:
				if reason == syscall.SIGHUP {
					logger.Infoln("reload signal received, republishing status")
					select {
					case triggerCh <- true:
					default:
					}
					continue
				}
				logger.WithField("signal", reason).Warnln("received signal")
				return nil
			}
		}
	}()

	logger.Infoln("clean shutdown start")

	// Stop accepting commands and report the final state before dropping
	// the broker connection.
	if unsubErr := m.mqttConn.Unsubscribe(m.commandTopicFilter()); unsubErr != nil {
		logger.Debugln(unsubErr)
	}
	if pinErr := m.config.Pin.Set(false); pinErr != nil {
		logger.WithError(pinErr).Errorln("failed to reset pin")
	}
	m.publishAllStatus()
	m.mqttConn.Disconnect()

	// Cancel our own context and stop context sensitive services.
	runCtxCancel()

	// Wait for the exitCh to be closed indicating all services have exited.
	func() {
		for {
			select {
			case <-exitCh:
				logger.Infoln("clean shutdown complete, exiting")
				return
			default:
				// Some services still running.
				logger.Infoln("waiting services to exit")
			}
			select {
			case reason := <-signalCh:
				logger.WithField("signal", reason).Warn("received signal")
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}()

	return err
}

// setup connects to the MQTT server. Status publication and the command
// subscription happen in the on connect handler so they are restored on
// every automatic reconnect as well.
// If set, calls the OnReady function when done.
func (m *Monitor) setup() error {
	if err := m.mqttConn.Connect(); err != nil {
		return fmt.Errorf("failed to connect to MQTT server: %w", err)
	}

	// Notify ready.
	if m.config.OnReady != nil {
		m.config.OnReady(m)
	}

	return nil
}

// poll periodically samples the hardware and publishes significant changes.
// A value on triggerCh forces a full status republish.
//
// Blocks forever until the ctx is canceled.
func (m *Monitor) poll(ctx context.Context, triggerCh <-chan bool) {
	logger := m.logger

	interval := m.config.PollInterval
	if interval <= 0 {
		interval = time.Second
	}

	logger.Infoln("status poll start")
	for {
		m.checkAndReport()

		select {
		case <-ctx.Done():
			logger.Infoln("status poll stopped")
			return
		case <-triggerCh:
			m.publishAllStatus()
		case <-time.After(interval):
		}
	}
}

// checkAndReport samples both hardware values, publishes those that moved
// and updates the high temperature alert.
func (m *Monitor) checkAndReport() {
	logger := m.logger

	temperature, err := m.config.Temperature.Temperature()
	if err != nil {
		logger.WithError(err).Errorln("failed to read cpu temperature")
	} else {
		m.maybeReportTemperature(temperature)
		m.updateAlert(temperature)
	}

	high, err := m.config.Pin.Level()
	if err != nil {
		logger.WithError(err).Errorln("failed to read pin")
	} else {
		m.maybeReportPin(high)
	}
}

// maybeReportTemperature publishes the temperature when it moved more than
// the deadband since the last report. The first reading always publishes.
func (m *Monitor) maybeReportTemperature(temperature float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delta := temperature - m.lastTemperature
	if delta < 0 {
		delta = -delta
	}
	if m.tempReported && delta <= m.config.TemperatureDeadband {
		return
	}

	m.publishTemperatureLocked(temperature)
}

// maybeReportPin publishes the pin level when it changed since the last
// report. The first reading always publishes.
func (m *Monitor) maybeReportPin(high bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pinReported && high == m.lastPinHigh {
		return
	}

	m.publishPinLocked(high)
}

// publishAllStatus reads and publishes both values regardless of how much
// they changed.
func (m *Monitor) publishAllStatus() {
	logger := m.logger

	m.mu.Lock()
	defer m.mu.Unlock()

	if temperature, err := m.config.Temperature.Temperature(); err != nil {
		logger.WithError(err).Errorln("failed to read cpu temperature")
	} else {
		m.publishTemperatureLocked(temperature)
	}

	if high, err := m.config.Pin.Level(); err != nil {
		logger.WithError(err).Errorln("failed to read pin")
	} else {
		m.publishPinLocked(high)
	}
}

// publishTemperatureLocked publishes a retained temperature status. The
// caller must hold m.mu.
func (m *Monitor) publishTemperatureLocked(temperature float64) {
	message := strconv.FormatFloat(temperature, 'f', 1, 64)
	if err := m.mqttConn.Publish(m.temperatureStatusTopic(), statusQoS, true, message); err != nil {
		m.logger.WithError(err).Errorln("failed to send temperature status")
		return
	}

	m.logger.WithFields(logrus.Fields{
		"topic":       m.temperatureStatusTopic(),
		"temperature": message,
	}).Debugln("status published")

	m.lastTemperature = temperature
	m.tempReported = true
}

// publishPinLocked publishes a retained pin status. The caller must hold m.mu.
func (m *Monitor) publishPinLocked(high bool) {
	message := pinLevelLow
	if high {
		message = pinLevelHigh
	}
	if err := m.mqttConn.Publish(m.pinStatusTopic(), statusQoS, true, message); err != nil {
		m.logger.WithError(err).Errorln("failed to send pin status")
		return
	}

	m.logger.WithFields(logrus.Fields{
		"topic": m.pinStatusTopic(),
		"level": message,
	}).Debugln("status published")

	m.lastPinHigh = high
	m.pinReported = true
}

func (m *Monitor) commandTopicFilter() string {
	return m.config.MQTTClient + "/command/#"
}

func (m *Monitor) commandTopicPrefix() string {
	return m.config.MQTTClient + "/command/"
}

func (m *Monitor) temperatureStatusTopic() string {
	return m.config.MQTTClient + "/status/" + temperatureCommand
}

func (m *Monitor) pinStatusTopic() string {
	return m.config.MQTTClient + "/status/" + m.config.PinName
}
