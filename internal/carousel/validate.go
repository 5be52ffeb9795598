package carousel

import (
	"fmt"
	"strings"
)

// ScheduleType tells when the message goes out.
type ScheduleType string

const (
	ScheduleImmediate ScheduleType = "immediate"
	ScheduleScheduled ScheduleType = "scheduled"
)

// TopLevel holds the form fields that surround the cards.
type TopLevel struct {
	Title            string       `json:"title"`
	NotificationText string       `json:"notificationMsg"`
	PreviewText      string       `json:"previewMsg"`
	ScheduleType     ScheduleType `json:"scheduleType"`
	ScheduledTime    string       `json:"scheduledTime"`
}

// Validate lists every unmet required field, in card order. Messages are
// prefixed with the card ordinal when there is more than one card.
// An empty result means the message may be submitted.
func Validate(cards []Card, top TopLevel) []string {
	var problems []string

	if blank(top.Title) {
		problems = append(problems, "請輸入活動標題")
	}
	if blank(top.NotificationText) {
		problems = append(problems, "請輸入通知訊息")
	}
	if blank(top.PreviewText) {
		problems = append(problems, "請輸入通知預覽")
	}
	if top.ScheduleType == ScheduleScheduled && blank(top.ScheduledTime) {
		problems = append(problems, "請選擇排程時間")
	}

	for i, c := range cards {
		prefix := ""
		if len(cards) > 1 {
			prefix = fmt.Sprintf("輪播 %d：", i+1)
		}
		for _, p := range validateCard(c) {
			problems = append(problems, prefix+p)
		}
	}
	return problems
}

func validateCard(c Card) []string {
	var problems []string

	if blank(c.Title) {
		problems = append(problems, "請輸入標題文字")
	}
	if c.EnableImage && c.Image.IsZero() {
		problems = append(problems, "請選擇圖片")
	}
	if c.EnableContent && blank(c.Content) {
		problems = append(problems, "請輸入內文文字說明")
	}
	if c.EnablePrice && (blank(c.Price) || isZeroAmount(c.Price)) {
		problems = append(problems, "請輸入金額")
	}

	for i, b := range c.Buttons {
		if !b.Enabled {
			continue
		}
		n := i + 1
		if blank(b.Label) {
			problems = append(problems, fmt.Sprintf("請輸入按鈕 %d 文字", n))
		}
		switch b.Action {
		case ActionURL:
			if blank(b.URL) {
				problems = append(problems, fmt.Sprintf("請輸入按鈕 %d 網址", n))
			}
		case ActionText:
			if blank(b.TriggerMessage) {
				problems = append(problems, fmt.Sprintf("請輸入按鈕 %d 觸發訊息", n))
			}
		case ActionImage:
			if b.TriggerImage.IsZero() {
				problems = append(problems, fmt.Sprintf("請上傳按鈕 %d 觸發圖片", n))
			}
		default:
			problems = append(problems, fmt.Sprintf("請選擇按鈕 %d 動作", n))
		}
	}
	return problems
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// isZeroAmount matches the "0" placeholder, including "00".
func isZeroAmount(s string) bool {
	return strings.Trim(strings.TrimSpace(s), "0") == ""
}
