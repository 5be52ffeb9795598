package lineutil

// Spacing keywords accepted by Flex components.
const (
	SpacingSM = "sm"
	SpacingMD = "md"
)

// Text sizes and weights.
const (
	TextSizeSM = "sm"
	TextSizeMD = "md"
	TextSizeXL = "xl"

	WeightBold = "bold"

	AlignEnd = "end"
)

// Image layout.
const (
	ImageSizeFull   = "full"
	AspectModeCover = "cover"
)

// Button heights.
const (
	ButtonHeightSM = "sm"
)

// Colors used by the carousel bubble. They match the composer preview.
const (
	ColorLineGreen = "#06C755" // LINE Green, primary button background
	ColorText      = "#111111" // Title text
	ColorLabel     = "#666666" // Body text
	ColorPrice     = "#0f6beb" // Price line
)
