package lineutil

// LINE API Character Limits (Rune count)
// References: https://developers.line.biz/en/reference/messaging-api/
const (
	MaxAltTextLength = 400 // Flex message alt text length
	MaxButtonLabel   = 40  // Flex button action label
)

// DefaultAltText is used when a message has no title.
const DefaultAltText = "輪播訊息"
