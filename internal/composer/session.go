// Package composer runs editing sessions: each session owns a card store,
// turns uploads into cropped hero images and carries out the automatic
// re-crops the store asks for.
package composer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyellow/line-carousel-composer/internal/assets"
	"github.com/garyellow/line-carousel-composer/internal/carousel"
	"github.com/garyellow/line-carousel-composer/internal/ctxutil"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/flexgen"
	"github.com/garyellow/line-carousel-composer/internal/imagecrop"
	"github.com/garyellow/line-carousel-composer/internal/logger"
	"github.com/garyellow/line-carousel-composer/internal/metrics"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/garyellow/line-carousel-composer/internal/sentry"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Crop triggers, used as metric labels.
const (
	triggerManual = "manual"
	triggerAuto   = "auto"
)

const (
	msgSessionClosed = "編輯階段已結束，請重新開始"
	msgPublishFailed = "發布失敗，請稍後再試"
)

// Session is one editing session. All methods are safe for concurrent use;
// mutations are serialized by the underlying store.
type Session struct {
	id        string
	createdAt time.Time
	lastUsed  atomic.Int64

	store     *carousel.Store
	registry  *resource.Registry
	pipeline  *imagecrop.Pipeline
	publisher *assets.Publisher
	preview   flexgen.ImageResolver
	metrics   *metrics.Metrics
	log       *logger.Logger

	cropTimeout time.Duration

	// ctx is canceled on Close and stops in-flight automatic crops.
	ctx    context.Context
	cancel context.CancelFunc

	// launchMu keeps Wait from racing with new recrop goroutines.
	launchMu sync.Mutex
	crops    sync.WaitGroup
	closed   atomic.Bool

	docMu  sync.Mutex
	docRev uint64
	doc    messaging_api.FlexContainerInterface
}

func (s *Session) ID() string { return s.id }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastUsed returns when the session last handled a request.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch() {
	s.lastUsed.Store(time.Now().UnixNano())
}

// Collection returns the current snapshot.
func (s *Session) Collection() carousel.Collection {
	return s.store.Collection()
}

// CopyLimit returns the CopyCard ceiling of this session.
func (s *Session) CopyLimit() int {
	return s.store.CopyLimit()
}

func (s *Session) withTracing(ctx context.Context) context.Context {
	return ctxutil.WithSessionID(ctx, s.id)
}

// Dispatch applies cmd and starts the follow-up work it produced.
func (s *Session) Dispatch(ctx context.Context, cmd carousel.Command) (carousel.Transition, error) {
	if s.closed.Load() {
		s.releaseCarried(cmd)
		return carousel.Transition{}, domerrors.NewWrapper("composer", cmd.CommandName()).Wrap(domerrors.ErrNotFound, msgSessionClosed)
	}
	s.touch()
	ctx = s.withTracing(ctx)

	tr, err := s.store.Dispatch(cmd)
	switch {
	case err != nil:
		s.metrics.RecordCommand(cmd.CommandName(), "error")
		s.log.WithError(err).
			WithField("command", cmd.CommandName()).
			DebugContext(ctx, "Command rejected")
		return tr, err
	case tr.Stale:
		s.metrics.RecordCommand(cmd.CommandName(), "stale")
	default:
		s.metrics.RecordCommand(cmd.CommandName(), "success")
	}

	s.run(ctx, tr.Intents)
	return tr, nil
}

// releaseCarried frees the handle a rejected command brought along.
func (s *Session) releaseCarried(cmd carousel.Command) {
	switch c := cmd.(type) {
	case carousel.SetImage:
		s.registry.Release(c.Handle)
	case carousel.ApplyCrop:
		s.registry.Release(c.Handle)
	case carousel.SetTriggerImage:
		s.registry.Release(c.Handle)
	}
}

// run starts one goroutine per recrop intent.
func (s *Session) run(ctx context.Context, intents []carousel.Intent) {
	if len(intents) == 0 {
		return
	}
	s.launchMu.Lock()
	defer s.launchMu.Unlock()

	for _, in := range intents {
		ri, ok := in.(carousel.RecropIntent)
		if !ok {
			continue
		}
		bg := ctxutil.PreserveTracing(ctx)
		s.crops.Go(func() {
			s.recrop(bg, ri)
		})
	}
}

// recrop crops the retained source to the new ratio and reports back with
// ApplyCrop. Failures are logged and reported, never surfaced to the user.
func (s *Session) recrop(ctx context.Context, ri carousel.RecropIntent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).ErrorContext(ctx, "Panic in automatic crop")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cropTimeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	start := time.Now()
	res, err := s.pipeline.Crop(ctx, ri.Source.Data, ri.Ratio)
	if err != nil {
		s.metrics.RecordCrop(triggerAuto, "error", time.Since(start).Seconds())
		if s.ctx.Err() != nil {
			return
		}
		s.log.WithError(err).
			WithField("card_id", ri.CardID).
			WithField("ratio", string(ri.Ratio)).
			WarnContext(ctx, "Automatic crop failed")
		sentry.CaptureException(ctx, err, map[string]string{
			"trigger": triggerAuto,
			"ratio":   string(ri.Ratio),
		})
		return
	}

	h := s.registry.Put(resource.Blob{
		Data:        res.Data,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
	})
	tr, err := s.Dispatch(ctx, carousel.ApplyCrop{
		CardID:     ri.CardID,
		Generation: ri.Generation,
		Handle:     h,
		Ratio:      ri.Ratio,
	})
	if err != nil {
		// h was released by the store or releaseCarried
		s.metrics.RecordCrop(triggerAuto, "error", time.Since(start).Seconds())
		return
	}
	if tr.Stale {
		s.metrics.RecordCrop(triggerAuto, "stale", time.Since(start).Seconds())
		return
	}
	s.metrics.RecordCrop(triggerAuto, "success", time.Since(start).Seconds())
}

// Wait blocks until every automatic crop started so far has finished.
func (s *Session) Wait() {
	s.launchMu.Lock()
	defer s.launchMu.Unlock()
	s.crops.Wait()
}

// AttachImage validates an upload, crops it for the card's current ratio and
// installs it. The untouched upload is kept for later re-crops.
func (s *Session) AttachImage(ctx context.Context, cardID int, name, declared string, data []byte) (carousel.Transition, error) {
	w := domerrors.NewWrapper("composer", "attach_image")
	ctx = s.withTracing(ctx)

	contentType, err := imagecrop.CheckUpload(imagecrop.HeroImage, declared, data)
	if err != nil {
		s.metrics.RecordCommand("set_image", "rejected")
		return carousel.Transition{}, err
	}

	card, _, ok := s.store.Collection().Find(cardID)
	if !ok {
		return carousel.Transition{}, w.Wrap(domerrors.ErrNotFound, "找不到指定的輪播")
	}
	ratio := carousel.ResolveAspectRatio(card)

	cropCtx, cancel := context.WithTimeout(ctx, s.cropTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.pipeline.Crop(cropCtx, data, ratio)
	if err != nil {
		s.metrics.RecordCrop(triggerManual, "error", time.Since(start).Seconds())
		return carousel.Transition{}, err
	}
	s.metrics.RecordCrop(triggerManual, "success", time.Since(start).Seconds())

	h := s.registry.Put(resource.Blob{
		Data:        res.Data,
		ContentType: res.ContentType,
		Width:       res.Width,
		Height:      res.Height,
	})
	return s.Dispatch(ctx, carousel.SetImage{
		CardID: cardID,
		Original: &carousel.SourceImage{
			Data:        data,
			ContentType: contentType,
			Name:        name,
		},
		Handle: h,
		Ratio:  ratio,
	})
}

// AttachTriggerImage stores the picture an "image" button sends. It is kept
// as uploaded.
func (s *Session) AttachTriggerImage(ctx context.Context, cardID, index int, declared string, data []byte) (carousel.Transition, error) {
	contentType, err := imagecrop.CheckUpload(imagecrop.TriggerImage, declared, data)
	if err != nil {
		s.metrics.RecordCommand("set_trigger_image", "rejected")
		return carousel.Transition{}, err
	}

	h := s.registry.Put(resource.Blob{Data: data, ContentType: contentType})
	return s.Dispatch(ctx, carousel.SetTriggerImage{CardID: cardID, Index: index, Handle: h})
}

// Document returns the Flex container for the current collection, using
// preview URLs for images. It is rebuilt only when the collection changed.
func (s *Session) Document() (messaging_api.FlexContainerInterface, carousel.Collection) {
	col := s.store.Collection()

	s.docMu.Lock()
	defer s.docMu.Unlock()
	if s.doc == nil || s.docRev != col.Revision() {
		s.doc = flexgen.Generate(col.Cards(), flexgen.WithImageResolver(s.preview))
		s.docRev = col.Revision()
	}
	return s.doc, col
}

// Validate lists the problems blocking submission.
func (s *Session) Validate(top carousel.TopLevel) []string {
	return carousel.Validate(s.store.Collection().Cards(), top)
}

// Publication is a ready-to-send message.
type Publication struct {
	Message  *messaging_api.FlexMessage
	Assets   map[resource.Handle]string
	Revision uint64
}

// Publish validates the collection, uploads its images and returns the
// FlexMessage referencing the public URLs.
func (s *Session) Publish(ctx context.Context, top carousel.TopLevel) (Publication, error) {
	w := domerrors.NewWrapper("composer", "publish")
	ctx = s.withTracing(ctx)
	s.touch()

	if s.publisher == nil {
		return Publication{}, w.Wrap(fmt.Errorf("no asset publisher configured"), msgPublishFailed)
	}

	// Recrops in flight would publish an image of the wrong ratio
	s.Wait()

	col := s.store.Collection()
	if problems := carousel.Validate(col.Cards(), top); len(problems) > 0 {
		return Publication{}, domerrors.NewProblemList(problems)
	}

	var handles []resource.Handle
	for _, card := range col.Cards() {
		handles = append(handles, card.Handles()...)
	}
	urls, err := s.publisher.PublishAll(ctx, s.registry, handles)
	if err != nil {
		s.log.WithError(err).ErrorContext(ctx, "Failed to publish assets")
		return Publication{}, err
	}

	container := flexgen.Generate(col.Cards(), flexgen.WithImageResolver(func(h resource.Handle) string {
		return urls[h]
	}))

	altText := top.PreviewText
	if altText == "" {
		altText = top.Title
	}

	s.log.WithField("cards", col.Len()).
		WithField("assets", len(urls)).
		InfoContext(ctx, "Carousel published")

	return Publication{
		Message:  flexgen.Message(altText, container),
		Assets:   urls,
		Revision: col.Revision(),
	}, nil
}

// Close stops automatic crops and releases every handle the session owns.
// It is safe to call more than once.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.Wait()
	released := s.store.Close()
	s.log.WithField("released", len(released)).Debug("Session closed")
}
