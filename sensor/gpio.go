package sensor

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOPin drives a pin through the host's GPIO registry.
type GPIOPin struct {
	pin gpio.PinIO
}

// OpenGPIO initializes the host drivers and configures the named pin as a
// low output.
func OpenGPIO(name string) (*GPIOPin, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize gpio host: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to configure gpio pin %q: %w", name, err)
	}

	return &GPIOPin{pin: pin}, nil
}

func (g *GPIOPin) Set(high bool) error {
	return g.pin.Out(gpio.Level(high))
}

func (g *GPIOPin) Level() (bool, error) {
	return bool(g.pin.Read()), nil
}
