package panel

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"
)

// SSD1306 shows frames on an I2C SSD1306 OLED. Colors are reduced to on/off
// by the driver.
type SSD1306 struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
}

// OpenSSD1306 initialises the host drivers and opens the display on the named
// I2C bus ("" selects the first bus).
func OpenSSD1306(busName string, width, height int) (*SSD1306, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init host drivers: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	opts := ssd1306.DefaultOpts
	if width > 0 && height > 0 {
		opts.W, opts.H = width, height
	}

	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("open ssd1306: %w", err)
	}

	return &SSD1306{bus: bus, dev: dev}, nil
}

// Show draws frame at the top left of the display.
func (s *SSD1306) Show(frame *image.RGBA) error {
	return s.dev.Draw(frame.Bounds(), frame, image.Point{})
}

// Close turns the display off and releases the bus.
func (s *SSD1306) Close() error {
	haltErr := s.dev.Halt()
	if err := s.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return haltErr
}
