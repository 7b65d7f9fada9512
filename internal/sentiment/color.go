package sentiment

import "fmt"

// RGB is an 8-bit colour.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex renders #RRGGBB.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

// MarshalText encodes the colour in CSS rgb() form.
func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses the CSS rgb() form.
func (c *RGB) UnmarshalText(b []byte) error {
	var r, g, bl uint8
	if _, err := fmt.Sscanf(string(b), "rgb(%d, %d, %d)", &r, &g, &bl); err != nil {
		return fmt.Errorf("parse colour %q: %w", b, err)
	}
	*c = RGB{R: r, G: g, B: bl}
	return nil
}
