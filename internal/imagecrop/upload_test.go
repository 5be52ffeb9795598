package imagecrop

import (
	"bytes"
	"testing"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
)

func TestCheckUpload(t *testing.T) {
	pngData := encodePNG(t, 8, 8)
	jpegData := encodeJPEG(t, 8, 8)
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")

	tests := []struct {
		name     string
		kind     UploadKind
		declared string
		data     []byte
		wantType string
		wantMsg  string
	}{
		{"png ok", HeroImage, "image/png", pngData, "image/png", ""},
		{"jpeg ok", HeroImage, "image/jpeg", jpegData, "image/jpeg", ""},
		{"jpg alias ok", HeroImage, "image/jpg", jpegData, "image/jpeg", ""},
		{"no declared type sniffs", TriggerImage, "", pngData, "image/png", ""},
		{"declared gif", HeroImage, "image/gif", gif, "", msgBadFormat},
		{"png label on gif bytes", HeroImage, "image/png", gif, "", msgBadFormat},
		{"hero over 5MB", HeroImage, "image/png", padded(pngData, MaxHeroBytes+1), "", msgHeroTooLarge},
		{"trigger over 1MB", TriggerImage, "image/png", padded(pngData, MaxTriggerBytes+1), "", msgTriggerTooLarge},
		{"hero at 1MB+1 is fine", HeroImage, "image/png", padded(pngData, MaxTriggerBytes+1), "image/png", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckUpload(tt.kind, tt.declared, tt.data)
			if tt.wantMsg != "" {
				if !domerrors.IsUploadRejected(err) {
					t.Fatalf("expected upload rejected, got %v", err)
				}
				if msg := domerrors.GetUserMessage(err); msg != tt.wantMsg {
					t.Errorf("message = %q, want %q", msg, tt.wantMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.wantType {
				t.Errorf("type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

// padded appends zero bytes so data reaches size while keeping its magic header.
func padded(data []byte, size int) []byte {
	if len(data) >= size {
		return data
	}
	return append(bytes.Clone(data), make([]byte, size-len(data))...)
}
