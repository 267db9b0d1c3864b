// Package sensor provides access to the hardware values the monitor reports:
// the CPU temperature and a single GPIO pin.
package sensor

// TemperatureSource reads a temperature in degrees Celsius.
type TemperatureSource interface {
	Temperature() (float64, error)
}

// Pin is a digital output pin whose level can also be read back.
type Pin interface {
	Set(high bool) error
	Level() (bool, error)
}
