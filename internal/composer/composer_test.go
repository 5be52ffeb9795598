package composer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/assets"
	"github.com/garyellow/line-carousel-composer/internal/carousel"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/storage"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool    { return &v }
func strPtr(v string) *string { return &v }

func actionPtr(a carousel.ActionType) *carousel.ActionType { return &a }

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		img.Set(w/2, y, color.RGBA{B: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type memBackend struct {
	mu   sync.Mutex
	keys []string
}

func (b *memBackend) Name() string { return "mem" }

func (b *memBackend) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "https://cdn.example.com/" + key, nil
}

func (b *memBackend) Delete(context.Context, string) error { return nil }

func newTestManager(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	if cfg.Publisher == nil {
		db, err := storage.NewTestDB()
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		cfg.Publisher = assets.NewPublisher(&memBackend{}, db)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Shutdown)
	return m
}

func heroSize(t *testing.T, m *Manager, s *Session) (int, int) {
	t.Helper()
	blob, ok := m.Registry().Get(s.Collection().Master().Image)
	require.True(t, ok, "hero image should be live")
	return blob.Width, blob.Height
}

func TestSession_RecropOnRatioChange(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 400, 300))
	require.NoError(t, err)
	w, h := heroSize(t, m, s)
	assert.Equal(t, 900, w)
	assert.Equal(t, 900, h)

	first := s.Collection().Master().Image
	released := m.Registry().Released()

	tr, err := s.Dispatch(ctx, carousel.UpdateCard{Patch: carousel.CardPatch{EnableTitle: boolPtr(true)}})
	require.NoError(t, err)
	require.Len(t, tr.Intents, 1)

	s.Wait()

	w, h = heroSize(t, m, s)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1000, h)

	_, live := m.Registry().Get(first)
	assert.False(t, live, "square crop should be released")
	assert.Equal(t, released+1, m.Registry().Released())
	assert.Equal(t, 1, m.Registry().Live())
}

func TestSession_RecropAfterImageShownAgain(t *testing.T) {
	hide := carousel.CardPatch{EnableImage: boolPtr(false)}
	show := carousel.CardPatch{EnableImage: boolPtr(true)}
	title := carousel.CardPatch{EnableTitle: boolPtr(true)}
	hideWithTitle := carousel.CardPatch{EnableImage: boolPtr(false), EnableTitle: boolPtr(true)}

	tests := []struct {
		name    string
		patches []carousel.CardPatch
	}{
		{"ratio changes in the same edit that hides the image", []carousel.CardPatch{hideWithTitle, show}},
		{"image hidden while the crop runs", []carousel.CardPatch{title, hide, show}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, ManagerConfig{})
			ctx := context.Background()
			s, err := m.Create(ctx)
			require.NoError(t, err)

			_, err = s.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 400, 300))
			require.NoError(t, err)

			for _, p := range tt.patches {
				_, err := s.Dispatch(ctx, carousel.UpdateCard{Patch: p})
				require.NoError(t, err)
			}
			s.Wait()

			w, h := heroSize(t, m, s)
			assert.Equal(t, 1920, w)
			assert.Equal(t, 1000, h)
			assert.Equal(t, carousel.Wide, s.Collection().Master().CroppedAt())
			assert.Equal(t, 1, m.Registry().Live(), "only the wide crop stays live")
		})
	}
}

func TestSession_AttachImageRejectsBadUpload(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.AttachImage(ctx, 1, "doc.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.Error(t, err)
	assert.True(t, domerrors.IsUploadRejected(err))
	assert.True(t, s.Collection().Master().Image.IsZero())

	_, err = s.AttachImage(ctx, 1, "broken.png", "image/png", append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...))
	require.Error(t, err)
	assert.Equal(t, 0, m.Registry().Live())

	_, err = s.AttachImage(ctx, 42, "photo.png", "image/png", testPNG(t, 10, 10))
	assert.True(t, domerrors.IsNotFound(err))
}

func TestSession_TriggerImage(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.Dispatch(ctx, carousel.AddButton{})
	require.NoError(t, err)

	big := make([]byte, 2*1024*1024)
	_, err = s.AttachTriggerImage(ctx, 1, 0, "image/png", big)
	assert.True(t, domerrors.IsUploadRejected(err))

	_, err = s.AttachTriggerImage(ctx, 1, 0, "image/png", testPNG(t, 20, 20))
	require.NoError(t, err)
	assert.False(t, s.Collection().Master().Buttons[0].TriggerImage.IsZero())

	// a disabled slot rejects the image and releases it again
	_, err = s.AttachTriggerImage(ctx, 1, 3, "image/png", testPNG(t, 20, 20))
	require.Error(t, err)
	assert.Equal(t, 1, m.Registry().Live())
}

func TestSession_DocumentMemoized(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	doc1, _ := s.Document()
	doc2, _ := s.Document()
	assert.Same(t, doc1, doc2)

	_, err = s.Dispatch(ctx, carousel.AddCard{})
	require.NoError(t, err)
	doc3, col := s.Document()
	assert.NotSame(t, doc1, doc3)
	assert.Equal(t, 2, col.Len())
	_, isCarousel := doc3.(*messaging_api.FlexCarousel)
	assert.True(t, isCarousel)
}

func TestSession_Publish(t *testing.T) {
	backend := &memBackend{}
	db, err := storage.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m := newTestManager(t, ManagerConfig{Publisher: assets.NewPublisher(backend, db)})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	top := carousel.TopLevel{
		Title:            "週年慶",
		NotificationText: "限時優惠",
		PreviewText:      "週年慶開跑",
		ScheduleType:     carousel.ScheduleImmediate,
	}

	_, err = s.Publish(ctx, top)
	require.Error(t, err)
	assert.True(t, domerrors.IsValidationFailed(err))
	assert.NotEmpty(t, domerrors.Problems(err))

	_, err = s.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 300, 300))
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, carousel.UpdateCard{Patch: carousel.CardPatch{
		EnableTitle: boolPtr(true),
		Title:       strPtr("Sale"),
	}})
	require.NoError(t, err)

	pub, err := s.Publish(ctx, top)
	require.NoError(t, err)
	require.NotNil(t, pub.Message)
	assert.Equal(t, "週年慶開跑", pub.Message.AltText)
	require.Len(t, pub.Assets, 1)

	bubble, ok := pub.Message.Contents.(*messaging_api.FlexBubble)
	require.True(t, ok)
	hero, ok := bubble.Hero.(*messaging_api.FlexImage)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(hero.Url, "https://cdn.example.com/images/"))
	assert.Equal(t, "1.91:1", hero.AspectRatio)
	assert.Len(t, backend.keys, 1)
}

func TestSession_CopyKeepsOwnHandles(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 100, 100))
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, carousel.CopyCard{})
	require.NoError(t, err)

	cards := s.Collection().Cards()
	require.Len(t, cards, 2)
	assert.NotEqual(t, cards[0].Image, cards[1].Image)
	assert.Equal(t, 2, m.Registry().Live())

	_, err = s.Dispatch(ctx, carousel.DeleteCard{ID: cards[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Registry().Live())
}

func TestSession_ButtonActionUpdate(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	s, err := m.Create(ctx)
	require.NoError(t, err)

	_, err = s.Dispatch(ctx, carousel.AddButton{})
	require.NoError(t, err)
	_, err = s.Dispatch(ctx, carousel.UpdateButton{Index: 0, Patch: carousel.ButtonPatch{
		Label:  strPtr("Buy"),
		Action: actionPtr(carousel.ActionURL),
		URL:    strPtr("https://shop.example.com"),
	}})
	require.NoError(t, err)

	b := s.Collection().Master().Buttons[0]
	assert.Equal(t, "Buy", b.Label)
	assert.Equal(t, carousel.ActionURL, b.Action)
}

func TestManager_Lifecycle(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxSessions: 1, TTL: time.Minute})
	ctx := context.Background()

	s, err := m.Create(ctx)
	require.NoError(t, err)

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Create(ctx)
	require.Error(t, err)
	assert.True(t, domerrors.IsCapacityExceeded(err))

	_, err = s.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 50, 50))
	require.NoError(t, err)

	require.NoError(t, m.Close(s.ID()))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Registry().Live())

	_, err = m.Get(s.ID())
	assert.True(t, domerrors.IsNotFound(err))
	assert.True(t, domerrors.IsNotFound(m.Close(s.ID())))

	_, err = s.Dispatch(ctx, carousel.AddCard{})
	assert.True(t, domerrors.IsNotFound(err), "closed sessions reject commands")
}

func TestManager_Sweep(t *testing.T) {
	m := newTestManager(t, ManagerConfig{TTL: time.Minute})
	ctx := context.Background()

	idle, err := m.Create(ctx)
	require.NoError(t, err)
	_, err = idle.AttachImage(ctx, 1, "photo.png", "image/png", testPNG(t, 50, 50))
	require.NoError(t, err)

	assert.Equal(t, 0, m.Sweep(time.Now()))
	assert.Equal(t, 1, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0, m.Registry().Live())
}

func TestManager_SweepMakesRoom(t *testing.T) {
	m := newTestManager(t, ManagerConfig{MaxSessions: 1, TTL: time.Nanosecond})
	ctx := context.Background()

	_, err := m.Create(ctx)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = m.Create(ctx)
	require.NoError(t, err, "an expired session should be evicted to make room")
	assert.Equal(t, 1, m.Len())
}
