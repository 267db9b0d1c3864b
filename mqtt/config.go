package mqtt

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config bundles configuration settings for MQTT.
type Config struct {
	Logger logrus.FieldLogger

	ClientID string
	Broker   string
	User     string
	Password string

	// KeepAlive defaults to a couple of seconds so a device that gets
	// unplugged disappears from the broker quickly.
	KeepAlive time.Duration

	// OnConnect runs after every successful connection, the first one as
	// well as automatic reconnects. The broker forgets subscriptions when
	// the connection drops, so they must be restored from this callback.
	OnConnect func()
}
