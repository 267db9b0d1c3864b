package serve

import (
	"context"
	"fmt"
	"os"

	systemDaemon "github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"devmon/cmd/devmond/common"
	"devmon/monitor"
	"devmon/sensor"
)

func CommandServe() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := serve(cmd); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}

	common.SetDefaults(serveCmd)

	return serveCmd
}

func serve(cmd *cobra.Command) error {
	settings, err := common.ApplyConfiguration(cmd)
	if err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}

	logger, err := newLogger(!common.LogTimestamp, common.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	logger.Debugln("devmon serve start")

	if settings.WifiSSID != "" {
		// Association is handled by the OS, the credentials are carried
		// for provisioning and surfaced here for operators.
		logger.WithField("ssid", settings.WifiSSID).Debugln("wifi network configured")
	}

	cpu := sensor.NewCPUTemperature("")
	pin, err := sensor.OpenGPIO(common.GPIOPin)
	if err != nil {
		return fmt.Errorf("failed to open gpio pin: %w", err)
	}

	m, err := monitor.New(&monitor.Config{
		Logger: logger,

		Temperature: cpu,
		Pin:         pin,
		PinName:     common.PinName,

		PollInterval:         common.PollInterval,
		TemperatureDeadband:  common.TemperatureDeadband,
		AlertHighTemperature: common.AlertHighTemperature,
		AlertLowTemperature:  common.AlertLowTemperature,
		AlertTopic:           common.AlertTopic,

		MQTTClient:   settings.ClientID,
		MQTTBroker:   settings.BrokerURL(),
		MQTTUser:     settings.BrokerUsername,
		MQTTPassword: settings.BrokerPassword,

		OnReady: func(*monitor.Monitor) {
			logger.WithField("client_id", settings.ClientID).Infoln("devmon ready")
			if common.SystemdNotify {
				ok, notifyErr := systemDaemon.SdNotify(false, systemDaemon.SdNotifyReady)
				logger.WithField("ok", ok).Debugln("systemd sd_notify done")
				if notifyErr != nil {
					logger.WithError(notifyErr).Errorln("systemd sd_notify failed")
				}
			}
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	return m.Run(context.Background())
}
