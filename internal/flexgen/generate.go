// Package flexgen turns carousel cards into LINE Flex Message containers.
//
// Generate is pure and total: optional fields that are empty are left out
// of the output instead of being rejected. Validation of a collection
// before sending is the job of carousel.Validate.
package flexgen

import (
	"encoding/json"
	"strings"

	"github.com/garyellow/line-carousel-composer/internal/carousel"
	"github.com/garyellow/line-carousel-composer/internal/lineutil"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// PlaceholderScheme prefixes hero URLs when no resolver is configured.
const PlaceholderScheme = "placeholder://"

// ImageResolver maps a resource handle to the URL LINE should fetch.
// An empty return value means the image is not available.
type ImageResolver func(resource.Handle) string

type options struct {
	resolve ImageResolver
	symbols map[carousel.Currency]string
}

// Option configures Generate.
type Option func(*options)

// WithImageResolver sets how image handles become URLs.
func WithImageResolver(r ImageResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolve = r
		}
	}
}

// WithCurrencySymbols overrides the symbol printed before a price.
func WithCurrencySymbols(symbols map[carousel.Currency]string) Option {
	return func(o *options) {
		for k, v := range symbols {
			o.symbols[k] = v
		}
	}
}

func placeholderURL(h resource.Handle) string {
	return PlaceholderScheme + string(h)
}

// Generate builds a bubble for a single card, or a carousel of bubbles in
// card order otherwise.
func Generate(cards []carousel.Card, opts ...Option) messaging_api.FlexContainerInterface {
	o := &options{
		resolve: placeholderURL,
		symbols: map[carousel.Currency]string{carousel.CurrencyNTD: "NT$"},
	}
	for _, opt := range opts {
		opt(o)
	}

	if len(cards) == 1 {
		return o.bubble(cards[0])
	}

	bubbles := make([]messaging_api.FlexBubble, 0, len(cards))
	for _, card := range cards {
		bubbles = append(bubbles, *o.bubble(card))
	}
	return lineutil.NewFlexCarousel(bubbles)
}

func (o *options) bubble(card carousel.Card) *messaging_api.FlexBubble {
	return lineutil.NewFlexBubble(o.hero(card), o.body(card), o.footer(card)).FlexBubble
}

func (o *options) hero(card carousel.Card) *lineutil.FlexImage {
	if !card.EnableImage || card.Image.IsZero() {
		return nil
	}
	url := o.resolve(card.Image)
	if url == "" {
		return nil
	}
	img := lineutil.NewFlexImage(url).
		WithAspectRatio(string(carousel.ResolveAspectRatio(card)))
	if link := strings.TrimSpace(card.ImageURL); card.EnableImageURL && link != "" {
		img.WithAction(lineutil.NewURIAction("", link))
	}
	return img
}

func (o *options) body(card carousel.Card) *lineutil.FlexBox {
	var contents []messaging_api.FlexComponentInterface

	if title := strings.TrimSpace(card.Title); card.EnableTitle && title != "" {
		contents = append(contents, lineutil.NewFlexText(title).
			WithSize(lineutil.TextSizeXL).
			WithWeight(lineutil.WeightBold).
			WithColor(lineutil.ColorText).
			WithWrap(true).FlexText)
	}
	if content := strings.TrimSpace(card.Content); card.EnableContent && content != "" {
		contents = append(contents, lineutil.NewFlexText(content).
			WithSize(lineutil.TextSizeSM).
			WithColor(lineutil.ColorLabel).
			WithWrap(true).
			WithMargin(lineutil.SpacingMD).FlexText)
	}
	if price := strings.TrimSpace(card.Price); card.EnablePrice && price != "" {
		contents = append(contents, lineutil.NewFlexText(o.symbols[card.Currency]+price).
			WithSize(lineutil.TextSizeMD).
			WithWeight(lineutil.WeightBold).
			WithColor(lineutil.ColorPrice).
			WithAlign(lineutil.AlignEnd).
			WithMargin(lineutil.SpacingMD).FlexText)
	}

	if len(contents) == 0 {
		return nil
	}
	return lineutil.NewFlexBox("vertical", contents...)
}

func (o *options) footer(card carousel.Card) *lineutil.FlexBox {
	var contents []messaging_api.FlexComponentInterface
	for _, b := range card.Buttons {
		if !b.Enabled {
			continue
		}
		action := o.action(b)
		if action == nil {
			continue
		}
		btn := lineutil.NewFlexButton(action).
			WithStyle(string(b.Mode)).
			WithHeight(lineutil.ButtonHeightSM)
		if b.Mode == carousel.ModePrimary {
			btn.WithColor(lineutil.ColorLineGreen)
		}
		contents = append(contents, btn.FlexButton)
	}

	if len(contents) == 0 {
		return nil
	}
	return lineutil.NewFlexBox("vertical", contents...).WithSpacing(lineutil.SpacingSM)
}

// action maps a button to a LINE action, or nil when the button has
// nothing to send.
func (o *options) action(b carousel.Button) lineutil.Action {
	label := strings.TrimSpace(b.Label)
	if label == "" {
		return nil
	}
	label = lineutil.TruncateRunes(label, lineutil.MaxButtonLabel)

	switch b.Action {
	case carousel.ActionText:
		text := strings.TrimSpace(b.TriggerMessage)
		if text == "" {
			return nil
		}
		return lineutil.NewMessageAction(label, text)
	case carousel.ActionImage:
		if b.TriggerImage.IsZero() {
			return nil
		}
		url := o.resolve(b.TriggerImage)
		if url == "" {
			return nil
		}
		return lineutil.NewURIAction(label, url)
	default:
		url := strings.TrimSpace(b.URL)
		if url == "" {
			return nil
		}
		return lineutil.NewURIAction(label, url)
	}
}

// Message wraps a container for sending.
func Message(altText string, container messaging_api.FlexContainerInterface) *messaging_api.FlexMessage {
	return lineutil.NewFlexMessage(altText, container)
}

// Marshal renders a container as JSON, including its "type" discriminator.
func Marshal(container messaging_api.FlexContainerInterface) ([]byte, error) {
	return json.Marshal(container)
}
