// Package carousel models the cards of a carousel message and the reducer
// that mutates them.
//
// A Collection is an immutable value. Every change goes through
// Store.Dispatch, which validates the command, applies the structure lock
// when the master card changes, releases image handles that dropped out of
// the collection and reports follow-up work (re-crops) as intents.
package carousel

import (
	"github.com/garyellow/line-carousel-composer/internal/resource"
)

// Capacity and input limits.
const (
	MaxCards        = 10
	DefaultCopyCap  = 4
	MaxButtons      = 4
	MaxTitleRunes   = 20
	MaxContentRunes = 60
	MaxPriceDigits  = 15
	MaxLabelRunes   = 12
)

// ButtonMode is the LINE button style.
type ButtonMode string

const (
	ModePrimary   ButtonMode = "primary"
	ModeSecondary ButtonMode = "secondary"
	ModeLink      ButtonMode = "link"
)

func (m ButtonMode) valid() bool {
	return m == ModePrimary || m == ModeSecondary || m == ModeLink
}

// ActionType selects what a button does when tapped.
type ActionType string

const (
	// ActionSelect is the "not chosen yet" placeholder.
	ActionSelect ActionType = "select"
	ActionURL    ActionType = "url"
	ActionText   ActionType = "text"
	ActionImage  ActionType = "image"
)

func (a ActionType) valid() bool {
	return a == ActionSelect || a == ActionURL || a == ActionText || a == ActionImage
}

// Currency of the price line.
type Currency string

// CurrencyNTD is the only supported currency.
const CurrencyNTD Currency = "ntd"

// Button is one footer button. Enabled and Mode are structure; the rest is content.
type Button struct {
	Enabled        bool            `json:"enabled"`
	Mode           ButtonMode      `json:"mode"`
	Label          string          `json:"label"`
	Action         ActionType      `json:"action"`
	URL            string          `json:"url"`
	Tag            string          `json:"tag"`
	TriggerMessage string          `json:"triggerMessage"`
	TriggerImage   resource.Handle `json:"triggerImage,omitempty"`
}

func blankButton(mode ButtonMode) Button {
	return Button{Mode: mode, Action: ActionSelect}
}

// defaultMode mirrors the editor: the first button is primary.
func defaultMode(index int) ButtonMode {
	if index == 0 {
		return ModePrimary
	}
	return ModeSecondary
}

// SourceImage is the untouched upload kept for re-cropping.
type SourceImage struct {
	Data        []byte
	ContentType string
	Name        string
}

// Card is one carousel slide.
type Card struct {
	ID int `json:"id"`

	EnableImage    bool `json:"enableImage"`
	EnableTitle    bool `json:"enableTitle"`
	EnableContent  bool `json:"enableContent"`
	EnablePrice    bool `json:"enablePrice"`
	EnableImageURL bool `json:"enableImageUrl"`

	Image    resource.Handle `json:"image,omitempty"`
	Original *SourceImage    `json:"-"`
	Title    string          `json:"cardTitle"`
	Content  string          `json:"content"`
	Price    string          `json:"price"`
	Currency Currency        `json:"currency"`
	ImageURL string          `json:"imageUrl"`
	ImageTag string          `json:"imageTag"`

	Buttons [MaxButtons]Button `json:"buttons"`

	// gen increments whenever the image source or target ratio changes,
	// so late crop results can be recognized.
	gen uint64
	// croppedAt is the ratio Image was cropped at; pending is the ratio of
	// the crop in flight, if any.
	croppedAt AspectRatio
	pending   AspectRatio
}

// NewCard returns an image-only card with no buttons.
func NewCard(id int) Card {
	c := Card{
		ID:          id,
		EnableImage: true,
		Currency:    CurrencyNTD,
	}
	for i := range c.Buttons {
		c.Buttons[i] = blankButton(defaultMode(i))
	}
	return c
}

// Generation returns the crop generation of the card.
func (c Card) Generation() uint64 { return c.gen }

// CroppedAt returns the ratio the current image was cropped at.
func (c Card) CroppedAt() AspectRatio { return c.croppedAt }

// dropImage forgets the image, its source and any crop in flight.
func (c *Card) dropImage() {
	if c.Original != nil || !c.Image.IsZero() || c.pending != "" {
		c.gen++
	}
	c.Image = ""
	c.Original = nil
	c.croppedAt = ""
	c.pending = ""
}

// HasOriginal reports whether the card can be re-cropped.
func (c Card) HasOriginal() bool { return c.Original != nil && len(c.Original.Data) > 0 }

// ButtonCount returns the number of enabled buttons.
func (c Card) ButtonCount() int {
	n := 0
	for _, b := range c.Buttons {
		if b.Enabled {
			n++
		}
	}
	return n
}

// Handles lists every resource handle the card owns.
func (c Card) Handles() []resource.Handle {
	var hs []resource.Handle
	if !c.Image.IsZero() {
		hs = append(hs, c.Image)
	}
	for _, b := range c.Buttons {
		if !b.TriggerImage.IsZero() {
			hs = append(hs, b.TriggerImage)
		}
	}
	return hs
}

// Structure is the part of a card followers must mirror.
type Structure struct {
	EnableImage    bool
	EnableTitle    bool
	EnableContent  bool
	EnablePrice    bool
	EnableImageURL bool
	Buttons        [MaxButtons]ButtonShape
}

// ButtonShape is the structural part of a button.
type ButtonShape struct {
	Enabled bool
	Mode    ButtonMode
}

// Structure extracts the structural flags of c.
func (c Card) Structure() Structure {
	s := Structure{
		EnableImage:    c.EnableImage,
		EnableTitle:    c.EnableTitle,
		EnableContent:  c.EnableContent,
		EnablePrice:    c.EnablePrice,
		EnableImageURL: c.EnableImageURL,
	}
	for i, b := range c.Buttons {
		s.Buttons[i] = ButtonShape{Enabled: b.Enabled, Mode: b.Mode}
	}
	return s
}

func hasMandatorySection(c Card) bool {
	return c.EnableImage || c.EnableTitle || c.EnableContent
}
