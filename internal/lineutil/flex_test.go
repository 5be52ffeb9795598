package lineutil

import (
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlexBubble_OmitsNilSections(t *testing.T) {
	t.Parallel()

	bubble := NewFlexBubble(nil, NewFlexBox("vertical", NewFlexText("hi").FlexText), nil)
	assert.Nil(t, bubble.Hero)
	assert.Nil(t, bubble.Footer)
	require.NotNil(t, bubble.Body)
	assert.Len(t, bubble.Body.Contents, 1)
}

func TestNewFlexImage_Defaults(t *testing.T) {
	t.Parallel()

	img := NewFlexImage("https://example.com/a.jpg").
		WithAspectRatio("1.91:1").
		WithAction(NewURIAction("", "https://example.com"))

	assert.Equal(t, "https://example.com/a.jpg", img.Url)
	assert.Equal(t, ImageSizeFull, img.Size)
	assert.Equal(t, messaging_api.FlexImageASPECT_MODE(AspectModeCover), img.AspectMode)
	assert.Equal(t, "1.91:1", img.AspectRatio)

	action, ok := img.Action.(*messaging_api.UriAction)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", action.Uri)
}

func TestFlexText_Fluent(t *testing.T) {
	t.Parallel()

	text := NewFlexText("NT$100").
		WithSize(TextSizeMD).
		WithWeight(WeightBold).
		WithAlign(AlignEnd).
		WithColor(ColorPrice).
		WithWrap(true).
		WithMargin(SpacingSM)

	assert.Equal(t, "NT$100", text.Text)
	assert.Equal(t, TextSizeMD, text.Size)
	assert.Equal(t, messaging_api.FlexTextWEIGHT(WeightBold), text.Weight)
	assert.Equal(t, messaging_api.FlexTextALIGN(AlignEnd), text.Align)
	assert.Equal(t, ColorPrice, text.Color)
	assert.True(t, text.Wrap)
	assert.Equal(t, SpacingSM, text.Margin)
}

func TestFlexButton_Fluent(t *testing.T) {
	t.Parallel()

	btn := NewFlexButton(NewMessageAction("Go", "go")).
		WithStyle("primary").
		WithHeight(ButtonHeightSM).
		WithColor(ColorLineGreen)

	assert.Equal(t, messaging_api.FlexButtonSTYLE("primary"), btn.Style)
	assert.Equal(t, messaging_api.FlexButtonHEIGHT(ButtonHeightSM), btn.Height)
	assert.Equal(t, ColorLineGreen, btn.Color)
	action, ok := btn.Action.(*messaging_api.MessageAction)
	require.True(t, ok)
	assert.Equal(t, "go", action.Text)
}

func TestNewFlexCarousel(t *testing.T) {
	t.Parallel()

	a := NewFlexBubble(nil, NewFlexBox("vertical"), nil)
	b := NewFlexBubble(nil, NewFlexBox("vertical"), nil)
	carousel := NewFlexCarousel([]messaging_api.FlexBubble{*a.FlexBubble, *b.FlexBubble})
	assert.Len(t, carousel.Contents, 2)
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii truncated", "abcdefgh", 6, "abc..."},
		{"cjk truncated", "一二三四五六七", 5, "一二..."},
		{"tiny limit", "abcdef", 2, "ab"},
		{"zero limit", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateRunes(tt.input, tt.max))
		})
	}
}

func TestNewFlexMessage_AltText(t *testing.T) {
	t.Parallel()

	container := NewFlexBubble(nil, NewFlexBox("vertical"), nil).FlexBubble

	msg := NewFlexMessage("  ", container)
	assert.Equal(t, DefaultAltText, msg.AltText)

	long := strings.Repeat("字", MaxAltTextLength+10)
	msg = NewFlexMessage(long, container)
	assert.Equal(t, MaxAltTextLength, len([]rune(msg.AltText)))
}
