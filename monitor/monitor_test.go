package monitor

import (
	"errors"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	message  string
}

type subscribed struct {
	topic string
	qos   byte
}

type fakeBroker struct {
	mu            sync.Mutex
	messages      []published
	subscriptions []subscribed
	publishErr    error
}

func (b *fakeBroker) Connect() error { return nil }
func (b *fakeBroker) Disconnect()    {}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, message string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.messages = append(b.messages, published{topic, qos, retained, message})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, _ pahomqtt.MessageHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = append(b.subscriptions, subscribed{topic, qos})
	return nil
}

func (b *fakeBroker) Unsubscribe(string) error { return nil }

func (b *fakeBroker) all() []published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]published(nil), b.messages...)
}

func (b *fakeBroker) subs() []subscribed {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]subscribed(nil), b.subscriptions...)
}

type fakeTemperature struct {
	value float64
	err   error
}

func (f *fakeTemperature) Temperature() (float64, error) { return f.value, f.err }

type fakePin struct {
	high   bool
	setErr error
}

func (p *fakePin) Set(high bool) error {
	if p.setErr != nil {
		return p.setErr
	}
	p.high = high
	return nil
}

func (p *fakePin) Level() (bool, error) { return p.high, nil }

func newTestMonitor(t *testing.T) (*Monitor, *fakeBroker, *fakeTemperature, *fakePin) {
	t.Helper()

	logger, _ := test.NewNullLogger()
	temperature := &fakeTemperature{value: 40.0}
	pin := &fakePin{}

	m, err := New(&Config{
		Logger: logger,

		Temperature: temperature,
		Pin:         pin,
		PinName:     "D5",

		TemperatureDeadband:  2.0,
		AlertHighTemperature: 58.0,
		AlertLowTemperature:  56.0,
		AlertTopic:           "Arduino/command/LED",

		MQTTClient: "devmon-test",
	})
	require.NoError(t, err)

	conn := &fakeBroker{}
	m.mqttConn = conn

	return m, conn, temperature, pin
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()

	_, err := New(&Config{Logger: logger, Pin: &fakePin{}, AlertHighTemperature: 58, AlertLowTemperature: 56})
	assert.Error(t, err, "missing temperature source")

	_, err = New(&Config{Logger: logger, Temperature: &fakeTemperature{}, AlertHighTemperature: 58, AlertLowTemperature: 56})
	assert.Error(t, err, "missing pin")

	_, err = New(&Config{
		Logger:      logger,
		Temperature: &fakeTemperature{},
		Pin:         &fakePin{},

		AlertHighTemperature: 56.0,
		AlertLowTemperature:  58.0,
	})
	assert.Error(t, err, "inverted alert thresholds")
}

func TestNewWiresBrokerClient(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()

	m, err := New(&Config{
		Logger: logger,

		Temperature: &fakeTemperature{},
		Pin:         &fakePin{},

		AlertHighTemperature: 58.0,
		AlertLowTemperature:  56.0,
	})
	require.NoError(t, err)

	// The connection handle must exist before Run starts so the shutdown
	// path never observes a half initialized monitor.
	assert.NotNil(t, m.mqttConn)
}

func TestConnectHandlerRestoresSubscription(t *testing.T) {
	t.Parallel()

	m, conn, temperature, _ := newTestMonitor(t)
	temperature.value = 43.2

	// Every (re)connection republishes the statuses and issues the command
	// subscription again, the broker forgets both during an outage.
	m.handleConnect()
	m.handleConnect()

	subscriptions := conn.subs()
	require.Len(t, subscriptions, 2)
	for _, s := range subscriptions {
		assert.Equal(t, "devmon-test/command/#", s.topic)
		assert.Equal(t, commandQoS, s.qos)
	}

	// Statuses are current, ignoring the deadband.
	var reports []string
	for _, msg := range conn.all() {
		if msg.topic == "devmon-test/status/cpu_temperature" {
			reports = append(reports, msg.message)
		}
	}
	assert.Equal(t, []string{"43.2", "43.2"}, reports)
}

func TestTemperatureCommand(t *testing.T) {
	t.Parallel()

	m, conn, temperature, _ := newTestMonitor(t)
	temperature.value = 41.6

	m.dispatchCommand("cpu_temperature", "get")

	messages := conn.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "devmon-test/status/cpu_temperature", messages[0].topic)
	assert.Equal(t, "41.6", messages[0].message)
	assert.Equal(t, statusQoS, messages[0].qos)
	assert.True(t, messages[0].retained)
}

func TestTemperatureCommandUnknownPayload(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)

	m.dispatchCommand("cpu_temperature", "reboot")

	assert.Empty(t, conn.all())
}

func TestTemperatureCommandReadError(t *testing.T) {
	t.Parallel()

	m, conn, temperature, _ := newTestMonitor(t)
	temperature.err = errors.New("no sensor")

	m.dispatchCommand("cpu_temperature", "get")

	assert.Empty(t, conn.all())
}

func TestPinCommand(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		message  string
		wantHigh bool
		want     string
	}{
		"get":  {message: "get", wantHigh: false, want: "low"},
		"high": {message: "high", wantHigh: true, want: "high"},
		"low":  {message: "low", wantHigh: false, want: "low"},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			m, conn, _, pin := newTestMonitor(t)

			m.dispatchCommand("D5", tt.message)

			assert.Equal(t, tt.wantHigh, pin.high)
			messages := conn.all()
			require.Len(t, messages, 1)
			assert.Equal(t, "devmon-test/status/D5", messages[0].topic)
			assert.Equal(t, tt.want, messages[0].message)
			assert.True(t, messages[0].retained)
		})
	}
}

func TestPinCommandUnknownPayload(t *testing.T) {
	t.Parallel()

	m, conn, _, pin := newTestMonitor(t)

	m.dispatchCommand("D5", "sideways")

	assert.False(t, pin.high)
	assert.Empty(t, conn.all())
}

func TestUnknownCommandTopic(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)

	m.dispatchCommand("D6", "get")

	assert.Empty(t, conn.all())
}

func TestTemperatureDeadband(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)

	// First reading always publishes.
	m.maybeReportTemperature(40.0)
	require.Len(t, conn.all(), 1)

	// Within the deadband, nothing new.
	m.maybeReportTemperature(41.5)
	m.maybeReportTemperature(38.5)
	require.Len(t, conn.all(), 1)

	// Beyond the deadband in either direction.
	m.maybeReportTemperature(42.5)
	messages := conn.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "42.5", messages[1].message)

	m.maybeReportTemperature(40.0)
	messages = conn.all()
	require.Len(t, messages, 3)
	assert.Equal(t, "40.0", messages[2].message)
}

func TestPinReportOnChange(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)

	m.maybeReportPin(false)
	m.maybeReportPin(false)
	require.Len(t, conn.all(), 1)
	assert.Equal(t, "low", conn.all()[0].message)

	m.maybeReportPin(true)
	messages := conn.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "high", messages[1].message)
}

func TestPublishErrorKeepsLastValue(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)
	conn.publishErr = errors.New("broker gone")

	m.maybeReportTemperature(40.0)
	assert.Empty(t, conn.all())

	// Once the broker is back the failed report is retried because the
	// value was never recorded as published.
	conn.publishErr = nil
	m.maybeReportTemperature(40.0)
	require.Len(t, conn.all(), 1)
}

func TestAlertHysteresis(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)

	// Below both thresholds, no alert.
	m.updateAlert(50.0)
	assert.Empty(t, conn.all())

	// Crossing the high threshold turns the alert on, once.
	m.updateAlert(59.0)
	m.updateAlert(60.0)
	messages := conn.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "Arduino/command/LED", messages[0].topic)
	assert.Equal(t, "on", messages[0].message)
	assert.Equal(t, commandQoS, messages[0].qos)
	assert.False(t, messages[0].retained)

	// Between thresholds the alert holds.
	m.updateAlert(57.0)
	require.Len(t, conn.all(), 1)

	// Dropping below the low threshold turns it off, once.
	m.updateAlert(55.0)
	m.updateAlert(54.0)
	messages = conn.all()
	require.Len(t, messages, 2)
	assert.Equal(t, "off", messages[1].message)
}

func TestAlertDisabledWithoutTopic(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)
	m.config.AlertTopic = ""

	m.updateAlert(99.0)
	assert.Empty(t, conn.all())
}

func TestAlertPublishErrorRetries(t *testing.T) {
	t.Parallel()

	m, conn, _, _ := newTestMonitor(t)
	conn.publishErr = errors.New("broker gone")

	m.updateAlert(59.0)
	assert.Empty(t, conn.all())

	conn.publishErr = nil
	m.updateAlert(59.0)
	messages := conn.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "on", messages[0].message)
}

func TestCheckAndReport(t *testing.T) {
	t.Parallel()

	m, conn, temperature, pin := newTestMonitor(t)
	temperature.value = 59.5
	pin.high = true

	m.checkAndReport()

	topics := map[string]string{}
	for _, msg := range conn.all() {
		topics[msg.topic] = msg.message
	}
	assert.Equal(t, "59.5", topics["devmon-test/status/cpu_temperature"])
	assert.Equal(t, "high", topics["devmon-test/status/D5"])
	assert.Equal(t, "on", topics["Arduino/command/LED"])
}

func TestPublishAllStatusIgnoresDeadband(t *testing.T) {
	t.Parallel()

	m, conn, temperature, _ := newTestMonitor(t)
	temperature.value = 40.0

	m.publishAllStatus()
	temperature.value = 40.1
	m.publishAllStatus()

	var reports []string
	for _, msg := range conn.all() {
		if msg.topic == "devmon-test/status/cpu_temperature" {
			reports = append(reports, msg.message)
		}
	}
	assert.Equal(t, []string{"40.0", "40.1"}, reports)
}

func TestCommandTopics(t *testing.T) {
	t.Parallel()

	m, _, _, _ := newTestMonitor(t)

	assert.Equal(t, "devmon-test/command/#", m.commandTopicFilter())
	assert.Equal(t, "devmon-test/command/", m.commandTopicPrefix())
	assert.Equal(t, "devmon-test/status/cpu_temperature", m.temperatureStatusTopic())
	assert.Equal(t, "devmon-test/status/D5", m.pinStatusTopic())
}
