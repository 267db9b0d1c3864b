package monitor

const (
	alertOn  = "on"
	alertOff = "off"
)

// updateAlert drives the high temperature alert on the peer device. The
// alert turns on above the high threshold and only turns off again below the
// low threshold, so a temperature hovering around a single limit does not
// flap the alert.
func (m *Monitor) updateAlert(temperature float64) {
	if m.config.AlertTopic == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case temperature > m.config.AlertHighTemperature && !m.alertActive:
		m.logger.WithField("temperature", temperature).Infoln("high temperature alert enabled")
		if err := m.mqttConn.Publish(m.config.AlertTopic, commandQoS, false, alertOn); err != nil {
			m.logger.WithError(err).Errorln("failed to send", alertOn, "alert")
			return
		}
		m.alertActive = true
	case temperature < m.config.AlertLowTemperature && m.alertActive:
		m.logger.WithField("temperature", temperature).Infoln("high temperature alert disabled")
		if err := m.mqttConn.Publish(m.config.AlertTopic, commandQoS, false, alertOff); err != nil {
			m.logger.WithError(err).Errorln("failed to send", alertOff, "alert")
			return
		}
		m.alertActive = false
	}
}
