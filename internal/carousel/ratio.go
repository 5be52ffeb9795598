package carousel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
)

// AspectRatio is a hero image ratio in the "W:H" form LINE expects.
type AspectRatio string

const (
	// Square is used for image-only cards.
	Square AspectRatio = "1:1"
	// Wide is used as soon as any text or button content is enabled.
	Wide AspectRatio = "1.91:1"
)

// ratioTolerance absorbs "1.91:1" vs "1.92:1".
const ratioTolerance = 0.02

// Target canvas sizes.
const (
	SquareWidth  = 900
	SquareHeight = 900
	WideWidth    = 1920
	WideHeight   = 1000
)

// ResolveAspectRatio picks the hero ratio from the card's enabled content.
// Button 4 is not consulted.
func ResolveAspectRatio(c Card) AspectRatio {
	if c.EnableTitle || c.EnableContent || c.EnablePrice {
		return Wide
	}
	for i := 0; i < 3; i++ {
		if c.Buttons[i].Enabled {
			return Wide
		}
	}
	return Square
}

// ParseAspectRatio accepts "W:H" labels. Anything numerically equal to the
// wide ratio normalizes to Wide.
func ParseAspectRatio(s string) (AspectRatio, error) {
	v, err := ratioValue(s)
	if err != nil {
		return "", err
	}
	switch {
	case math.Abs(v-1) <= ratioTolerance:
		return Square, nil
	case math.Abs(v-1.91) <= ratioTolerance:
		return Wide, nil
	}
	return "", domerrors.NewValidationError("aspectRatio", fmt.Sprintf("unsupported ratio %q", s))
}

// Value returns width divided by height.
func (r AspectRatio) Value() float64 {
	v, err := ratioValue(string(r))
	if err != nil {
		return 0
	}
	return v
}

// Equal compares two ratios numerically.
func (r AspectRatio) Equal(other AspectRatio) bool {
	a, b := r.Value(), other.Value()
	if a == 0 || b == 0 {
		return r == other
	}
	return math.Abs(a-b) <= ratioTolerance
}

// Dimensions returns the crop canvas size for r.
func (r AspectRatio) Dimensions() (width, height int) {
	if r.Equal(Square) {
		return SquareWidth, SquareHeight
	}
	return WideWidth, WideHeight
}

func ratioValue(s string) (float64, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, domerrors.NewValidationError("aspectRatio", fmt.Sprintf("malformed ratio %q", s))
	}
	wv, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return 0, domerrors.NewValidationError("aspectRatio", fmt.Sprintf("malformed ratio %q", s))
	}
	hv, err := strconv.ParseFloat(h, 64)
	if err != nil || hv <= 0 || wv <= 0 {
		return 0, domerrors.NewValidationError("aspectRatio", fmt.Sprintf("malformed ratio %q", s))
	}
	return wv / hv, nil
}
