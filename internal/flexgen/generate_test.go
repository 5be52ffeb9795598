package flexgen

import (
	"encoding/json"
	"testing"

	"github.com/garyellow/line-carousel-composer/internal/carousel"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saleCard() carousel.Card {
	card := carousel.NewCard(1)
	card.EnableTitle = true
	card.Title = "Sale"
	card.Image = resource.Handle("h1")
	card.Buttons[0].Enabled = true
	card.Buttons[0].Label = "Buy"
	card.Buttons[0].Action = carousel.ActionURL
	card.Buttons[0].URL = "https://x"
	return card
}

func TestGenerate_SingleCardIsBubble(t *testing.T) {
	t.Parallel()

	got := Generate([]carousel.Card{saleCard()})
	bubble, ok := got.(*messaging_api.FlexBubble)
	require.True(t, ok, "single card must produce a bubble, got %T", got)

	hero, ok := bubble.Hero.(*messaging_api.FlexImage)
	require.True(t, ok)
	assert.Equal(t, "placeholder://h1", hero.Url)
	assert.Equal(t, "1.91:1", hero.AspectRatio)
	assert.Nil(t, hero.Action)

	require.NotNil(t, bubble.Body)
	require.Len(t, bubble.Body.Contents, 1)
	title, ok := bubble.Body.Contents[0].(*messaging_api.FlexText)
	require.True(t, ok)
	assert.Equal(t, "Sale", title.Text)
	assert.Equal(t, messaging_api.FlexTextWEIGHT("bold"), title.Weight)

	require.NotNil(t, bubble.Footer)
	require.Len(t, bubble.Footer.Contents, 1)
	btn, ok := bubble.Footer.Contents[0].(*messaging_api.FlexButton)
	require.True(t, ok)
	action, ok := btn.Action.(*messaging_api.UriAction)
	require.True(t, ok)
	assert.Equal(t, "Buy", action.Label)
	assert.Equal(t, "https://x", action.Uri)
	assert.Equal(t, messaging_api.FlexButtonSTYLE("primary"), btn.Style)
}

func TestGenerate_CarouselKeepsOrder(t *testing.T) {
	t.Parallel()

	cards := make([]carousel.Card, 3)
	for i := range cards {
		cards[i] = carousel.NewCard(i + 1)
		cards[i].EnableTitle = true
		cards[i].Title = []string{"A", "B", "C"}[i]
	}

	got := Generate(cards)
	c, ok := got.(*messaging_api.FlexCarousel)
	require.True(t, ok)
	require.Len(t, c.Contents, 3)
	for i, want := range []string{"A", "B", "C"} {
		text := c.Contents[i].Body.Contents[0].(*messaging_api.FlexText)
		assert.Equal(t, want, text.Text)
	}
}

func TestGenerate_OmitsEmptySections(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.EnableTitle = true
	card.EnableContent = true
	card.Buttons[0].Enabled = true

	bubble := Generate([]carousel.Card{card}).(*messaging_api.FlexBubble)
	assert.Nil(t, bubble.Hero, "no image handle, no hero")
	assert.Nil(t, bubble.Body, "blank title and content, no body")
	assert.Nil(t, bubble.Footer, "unlabeled button is dropped")
}

func TestGenerate_BodyOrderAndPrice(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.EnableTitle, card.Title = true, "T"
	card.EnableContent, card.Content = true, "C"
	card.EnablePrice, card.Price = true, "1200"

	bubble := Generate([]carousel.Card{card}).(*messaging_api.FlexBubble)
	require.Len(t, bubble.Body.Contents, 3)

	texts := make([]*messaging_api.FlexText, 3)
	for i, c := range bubble.Body.Contents {
		texts[i] = c.(*messaging_api.FlexText)
	}
	assert.Equal(t, "T", texts[0].Text)
	assert.Equal(t, "C", texts[1].Text)
	assert.Equal(t, "#666666", texts[1].Color)
	assert.Equal(t, "NT$1200", texts[2].Text)
	assert.Equal(t, messaging_api.FlexTextALIGN("end"), texts[2].Align)
	assert.Equal(t, "#0f6beb", texts[2].Color)
}

func TestGenerate_DisabledFieldsIgnoreContent(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.EnableTitle, card.Title = true, "T"
	card.Price = "99" // price disabled

	bubble := Generate([]carousel.Card{card}).(*messaging_api.FlexBubble)
	assert.Len(t, bubble.Body.Contents, 1)
}

func TestGenerate_ButtonActions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		button  carousel.Button
		wantNil bool
		check   func(t *testing.T, a messaging_api.ActionInterface)
	}{
		{
			name:   "url",
			button: carousel.Button{Label: "Go", Action: carousel.ActionURL, URL: "https://a"},
			check: func(t *testing.T, a messaging_api.ActionInterface) {
				u := a.(*messaging_api.UriAction)
				assert.Equal(t, "https://a", u.Uri)
			},
		},
		{
			name:   "text",
			button: carousel.Button{Label: "Say", Action: carousel.ActionText, TriggerMessage: "hello"},
			check: func(t *testing.T, a messaging_api.ActionInterface) {
				m := a.(*messaging_api.MessageAction)
				assert.Equal(t, "Say", m.Label)
				assert.Equal(t, "hello", m.Text)
			},
		},
		{
			name:   "image",
			button: carousel.Button{Label: "Pic", Action: carousel.ActionImage, TriggerImage: "t1"},
			check: func(t *testing.T, a messaging_api.ActionInterface) {
				u := a.(*messaging_api.UriAction)
				assert.Equal(t, "placeholder://t1", u.Uri)
			},
		},
		{name: "text without message", button: carousel.Button{Label: "Say", Action: carousel.ActionText}, wantNil: true},
		{name: "image without handle", button: carousel.Button{Label: "Pic", Action: carousel.ActionImage}, wantNil: true},
		{name: "url without url", button: carousel.Button{Label: "Go", Action: carousel.ActionURL}, wantNil: true},
		{name: "no label", button: carousel.Button{Action: carousel.ActionURL, URL: "https://a"}, wantNil: true},
	}

	o := &options{resolve: placeholderURL}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := o.action(tt.button)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			tt.check(t, got)
		})
	}
}

func TestGenerate_ImageLinkAndResolver(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.Image = "h1"
	card.EnableImageURL = true
	card.ImageURL = "https://shop"

	resolver := WithImageResolver(func(h resource.Handle) string {
		return "https://cdn/" + string(h) + ".jpg"
	})
	bubble := Generate([]carousel.Card{card}, resolver).(*messaging_api.FlexBubble)

	hero := bubble.Hero.(*messaging_api.FlexImage)
	assert.Equal(t, "https://cdn/h1.jpg", hero.Url)
	assert.Equal(t, "1:1", hero.AspectRatio, "image-only card is square")
	link, ok := hero.Action.(*messaging_api.UriAction)
	require.True(t, ok)
	assert.Equal(t, "https://shop", link.Uri)
}

func TestGenerate_UnresolvableImageDropsHero(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.Image = "gone"
	bubble := Generate([]carousel.Card{card},
		WithImageResolver(func(resource.Handle) string { return "" }),
	).(*messaging_api.FlexBubble)
	assert.Nil(t, bubble.Hero)
}

func TestGenerate_CurrencySymbols(t *testing.T) {
	t.Parallel()

	card := carousel.NewCard(1)
	card.EnablePrice, card.Price = true, "5"
	bubble := Generate([]carousel.Card{card},
		WithCurrencySymbols(map[carousel.Currency]string{carousel.CurrencyNTD: "$"}),
	).(*messaging_api.FlexBubble)
	assert.Equal(t, "$5", bubble.Body.Contents[0].(*messaging_api.FlexText).Text)
}

func TestGenerate_Idempotent(t *testing.T) {
	t.Parallel()

	cards := []carousel.Card{saleCard(), saleCard()}
	a, err := Marshal(Generate(cards))
	require.NoError(t, err)
	b, err := Marshal(Generate(cards))
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestMarshal_TypeDiscriminator(t *testing.T) {
	t.Parallel()

	data, err := Marshal(Generate([]carousel.Card{saleCard()}))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "bubble", doc["type"])

	data, err = Marshal(Generate([]carousel.Card{saleCard(), saleCard()}))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "carousel", doc["type"])
}

func TestMessage(t *testing.T) {
	t.Parallel()

	msg := Message("Weekly deals", Generate([]carousel.Card{saleCard()}))
	assert.Equal(t, "Weekly deals", msg.AltText)
	assert.NotNil(t, msg.Contents)
}
