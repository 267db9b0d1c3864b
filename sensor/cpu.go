package sensor

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/sensors"
)

// cpuSensorKeys are the thermal zone names for the CPU package on the
// hardware this runs on, in order of preference.
var cpuSensorKeys = []string{
	"cpu_thermal", // Raspberry Pi
	"cpu-thermal",
	"coretemp",
	"k10temp",
	"soc_thermal",
}

// CPUTemperature reads the CPU temperature from the host's thermal sensors.
type CPUTemperature struct {
	// Key pins the reading to a specific sensor. When empty the first
	// known CPU sensor key is used.
	Key string
}

func NewCPUTemperature(key string) *CPUTemperature {
	return &CPUTemperature{Key: key}
}

func (c *CPUTemperature) Temperature() (float64, error) {
	stats, err := sensors.SensorsTemperatures()
	if err != nil {
		return 0, fmt.Errorf("failed to read thermal sensors: %w", err)
	}

	stat, ok := pickCPUSensor(stats, c.Key)
	if !ok {
		return 0, fmt.Errorf("no cpu thermal sensor found")
	}

	return stat.Temperature, nil
}

// pickCPUSensor selects the sensor reading to report. An explicit key wins,
// otherwise the known CPU sensor names are tried in order.
func pickCPUSensor(stats []sensors.TemperatureStat, key string) (sensors.TemperatureStat, bool) {
	if key != "" {
		for _, s := range stats {
			if s.SensorKey == key {
				return s, true
			}
		}
		return sensors.TemperatureStat{}, false
	}

	for _, known := range cpuSensorKeys {
		for _, s := range stats {
			if strings.HasPrefix(s.SensorKey, known) {
				return s, true
			}
		}
	}

	return sensors.TemperatureStat{}, false
}
