package imagecrop

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
)

// UploadKind selects the size limit for an upload.
type UploadKind int

const (
	// HeroImage is a card's main image.
	HeroImage UploadKind = iota
	// TriggerImage is the picture sent by an "image" button.
	TriggerImage
)

// Size limits in bytes.
const (
	MaxHeroBytes    = 5 * 1024 * 1024
	MaxTriggerBytes = 1 * 1024 * 1024
)

const (
	msgBadFormat       = "檔案格式錯誤，請上傳 JPG、JPEG 或 PNG 格式的圖片"
	msgHeroTooLarge    = "圖片大小超過 5 MB，請選擇較小的圖片"
	msgTriggerTooLarge = "圖片大小超過 1 MB，請選擇較小的圖片"
)

// Limit returns the byte limit for k.
func (k UploadKind) Limit() int {
	if k == TriggerImage {
		return MaxTriggerBytes
	}
	return MaxHeroBytes
}

func (k UploadKind) String() string {
	if k == TriggerImage {
		return "trigger_image"
	}
	return "hero_image"
}

var allowedDeclared = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// CheckUpload verifies the declared type, the sniffed type and the size of
// an upload before any decoding happens. It returns the sniffed MIME type.
// An empty declared type skips the declared-type check.
func CheckUpload(kind UploadKind, declared string, data []byte) (string, error) {
	w := domerrors.NewWrapper("imagecrop", "check_upload")

	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && !allowedDeclared[declared] {
		return "", w.Wrap(domerrors.ErrUploadRejected, msgBadFormat)
	}

	if len(data) > kind.Limit() {
		if kind == TriggerImage {
			return "", w.Wrap(domerrors.ErrUploadRejected, msgTriggerTooLarge)
		}
		return "", w.Wrap(domerrors.ErrUploadRejected, msgHeroTooLarge)
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("image/jpeg"):
		return "image/jpeg", nil
	case mt.Is("image/png"):
		return "image/png", nil
	}
	return "", w.Wrap(domerrors.ErrUploadRejected, msgBadFormat)
}
