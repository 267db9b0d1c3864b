package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	waitBeforeDisconnect = 250 * time.Millisecond

	defaultKeepAlive   = 2 * time.Second
	defaultPingTimeout = 1 * time.Second

	// publishTimeout bounds how long a caller blocks on a broker ack.
	publishTimeout   = 10 * time.Second
	subscribeTimeout = 5 * time.Second
)

type Client struct {
	config *Config
	logger logrus.FieldLogger

	client pahomqtt.Client
}

func NewClient(c *Config) *Client {
	mqttLog := c.Logger.WithField("scope", "mqtt")
	pahomqtt.DEBUG = NewLogger(mqttLog, logrus.DebugLevel)
	pahomqtt.WARN = NewLogger(mqttLog, logrus.WarnLevel)
	pahomqtt.ERROR = NewLogger(mqttLog, logrus.ErrorLevel)
	pahomqtt.CRITICAL = NewLogger(mqttLog, logrus.FatalLevel)

	return &Client{
		config: c,
		logger: c.Logger,
	}
}

func (c *Client) Connect() error {
	keepAlive := c.config.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(c.config.Broker).
		SetClientID(c.config.ClientID).
		SetUsername(c.config.User).
		SetPassword(c.config.Password)
	opts.SetKeepAlive(keepAlive)
	opts.SetPingTimeout(defaultPingTimeout)
	opts.SetAutoReconnect(true)
	// Handlers publish from within message callbacks, ordered delivery
	// would deadlock there.
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		c.logger.WithField("broker", c.config.Broker).Infoln("broker connected")
		if c.config.OnConnect != nil {
			c.config.OnConnect()
		}
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.WithError(err).Warnln("broker connection lost")
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	_ = token.Wait()
	if err := token.Error(); err != nil {
		return err
	}

	return nil
}

func (c *Client) Disconnect() {
	if c.client != nil {
		c.client.Disconnect(uint(waitBeforeDisconnect.Milliseconds()))
	}
}

// Publish sends a message and waits for the broker to take it, bounded by
// publishTimeout. Retained messages keep the last status available for
// subscribers that come online later.
func (c *Client) Publish(topic string, qos byte, retained bool, message string) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}

	token := c.client.Publish(topic, qos, retained, message)
	if ok := token.WaitTimeout(publishTimeout); !ok {
		return fmt.Errorf("timeout publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}

	return nil
}

func (c *Client) Subscribe(topic string, qos byte, handler pahomqtt.MessageHandler) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}

	token := c.client.Subscribe(topic, qos, handler)
	if ok := token.WaitTimeout(subscribeTimeout); !ok {
		return fmt.Errorf("timeout subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}

	c.logger.WithField("topic", topic).Debugln("subscribed")
	return nil
}

func (c *Client) Unsubscribe(topic string) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}

	token := c.client.Unsubscribe(topic)
	if ok := token.WaitTimeout(subscribeTimeout); !ok {
		return fmt.Errorf("timeout unsubscribing from %s", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}

	return nil
}
