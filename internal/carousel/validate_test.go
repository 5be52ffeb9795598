package carousel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func completeTop() TopLevel {
	return TopLevel{
		Title:            "週年慶",
		NotificationText: "限時優惠",
		PreviewText:      "快來看看",
		ScheduleType:     ScheduleImmediate,
	}
}

func completeCard(id int) Card {
	c := NewCard(id)
	c.Image = "img"
	c.Title = "Sale"
	return c
}

func TestValidate_Complete(t *testing.T) {
	assert.Empty(t, Validate([]Card{completeCard(1)}, completeTop()))
}

func TestValidate_TopLevel(t *testing.T) {
	top := TopLevel{ScheduleType: ScheduleScheduled}

	got := Validate([]Card{completeCard(1)}, top)
	assert.Equal(t, []string{
		"請輸入活動標題",
		"請輸入通知訊息",
		"請輸入通知預覽",
		"請選擇排程時間",
	}, got)
}

func TestValidate_CardRules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Card)
		want   []string
	}{
		{
			name:   "title always required",
			mutate: func(c *Card) { c.Title = "  " },
			want:   []string{"請輸入標題文字"},
		},
		{
			name:   "image required when enabled",
			mutate: func(c *Card) { c.Image = "" },
			want:   []string{"請選擇圖片"},
		},
		{
			name:   "image not required when disabled",
			mutate: func(c *Card) { c.Image = ""; c.EnableImage = false; c.EnableTitle = true },
			want:   nil,
		},
		{
			name:   "content required when enabled",
			mutate: func(c *Card) { c.EnableContent = true },
			want:   []string{"請輸入內文文字說明"},
		},
		{
			name:   "price zero placeholder",
			mutate: func(c *Card) { c.EnablePrice = true; c.Price = "0" },
			want:   []string{"請輸入金額"},
		},
		{
			name:   "price set",
			mutate: func(c *Card) { c.EnablePrice = true; c.Price = "100" },
			want:   nil,
		},
		{
			name: "button without label or action",
			mutate: func(c *Card) {
				c.Buttons[0].Enabled = true
			},
			want: []string{"請輸入按鈕 1 文字", "請選擇按鈕 1 動作"},
		},
		{
			name: "url button needs url",
			mutate: func(c *Card) {
				c.Buttons[0] = Button{Enabled: true, Label: "Go", Action: ActionURL}
			},
			want: []string{"請輸入按鈕 1 網址"},
		},
		{
			name: "text button needs trigger message",
			mutate: func(c *Card) {
				c.Buttons[0] = Button{Enabled: true, Label: "Go", Action: ActionURL, URL: "https://a"}
				c.Buttons[1] = Button{Enabled: true, Label: "Say", Action: ActionText}
			},
			want: []string{"請輸入按鈕 2 觸發訊息"},
		},
		{
			name: "image button needs trigger image",
			mutate: func(c *Card) {
				c.Buttons[0] = Button{Enabled: true, Label: "Pic", Action: ActionImage}
			},
			want: []string{"請上傳按鈕 1 觸發圖片"},
		},
		{
			name: "disabled buttons are ignored",
			mutate: func(c *Card) {
				c.Buttons[3] = Button{Label: "", Action: ActionSelect}
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := completeCard(1)
			tt.mutate(&c)
			assert.Equal(t, tt.want, Validate([]Card{c}, completeTop()))
		})
	}
}

func TestValidate_CardPrefixWhenMany(t *testing.T) {
	second := completeCard(2)
	second.Title = ""
	second.Image = ""

	got := Validate([]Card{completeCard(1), second}, completeTop())
	assert.Equal(t, []string{"輪播 2：請輸入標題文字", "輪播 2：請選擇圖片"}, got)
}
