package app

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/garyellow/line-carousel-composer/internal/carousel"
	"github.com/garyellow/line-carousel-composer/internal/composer"
	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/flexgen"
	"github.com/garyellow/line-carousel-composer/internal/imagecrop"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"github.com/gin-gonic/gin"
)

const sessionKey = "composer.session"

// multipartOverhead leaves room for boundaries and headers around the file
// part, so an oversized file still reaches the size check with its own message.
const multipartOverhead = 1 << 20

const (
	uploadField    = "image"
	msgNoFile      = "請選擇要上傳的圖片"
	msgUploadLarge = "圖片檔案過大"
	msgNoResource  = "圖片已失效，請重新上傳"
)

type cardView struct {
	carousel.Card
	AspectRatio carousel.AspectRatio `json:"aspectRatio"`
	PreviewURL  string               `json:"previewUrl,omitempty"`
}

type sessionView struct {
	ID        string     `json:"id"`
	Revision  uint64     `json:"revision"`
	ActiveID  int        `json:"activeId"`
	CopyLimit int        `json:"copyLimit"`
	CanAdd    bool       `json:"canAdd"`
	CanCopy   bool       `json:"canCopy"`
	Cards     []cardView `json:"cards"`
	Notice    string     `json:"notice,omitempty"`
}

func (a *Application) view(s *composer.Session, notice string) sessionView {
	col := s.Collection()
	v := sessionView{
		ID:        s.ID(),
		Revision:  col.Revision(),
		ActiveID:  col.ActiveID(),
		CopyLimit: s.CopyLimit(),
		CanAdd:    col.Len() < carousel.MaxCards,
		CanCopy:   col.Len() < s.CopyLimit(),
		Notice:    notice,
	}
	for _, card := range col.Cards() {
		cv := cardView{Card: card, AspectRatio: carousel.ResolveAspectRatio(card)}
		if !card.Image.IsZero() {
			cv.PreviewURL = a.resourceURL(card.Image)
		}
		v.Cards = append(v.Cards, cv)
	}
	return v
}

func (a *Application) resourceURL(h resource.Handle) string {
	return a.cfg.PublicBaseURL + "/api/v1/resources/" + string(h)
}

// loadSession resolves :id and stores the session on the gin context.
func (a *Application) loadSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := a.sessions.Get(c.Param("id"))
		if err != nil {
			a.respondError(c, err)
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

func session(c *gin.Context) *composer.Session {
	return c.MustGet(sessionKey).(*composer.Session)
}

// dispatch runs cmd on the request's session and answers with the new state.
func (a *Application) dispatch(c *gin.Context, cmd carousel.Command) {
	s := session(c)
	tr, err := s.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.view(s, tr.Notice))
}

func intParam(c *gin.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return v, nil
}

func (a *Application) createSession(c *gin.Context) {
	s, err := a.sessions.Create(c.Request.Context())
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a.view(s, ""))
}

func (a *Application) getSession(c *gin.Context) {
	c.JSON(http.StatusOK, a.view(session(c), ""))
}

func (a *Application) closeSession(c *gin.Context) {
	if err := a.sessions.Close(session(c).ID()); err != nil {
		a.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *Application) addCard(c *gin.Context) {
	a.dispatch(c, carousel.AddCard{})
}

func (a *Application) copyCard(c *gin.Context) {
	a.dispatch(c, carousel.CopyCard{})
}

func (a *Application) deleteCard(c *gin.Context) {
	id, err := intParam(c, "cardID")
	if err != nil {
		a.badRequest(c, "cardID", err)
		return
	}
	a.dispatch(c, carousel.DeleteCard{ID: id})
}

func (a *Application) setActive(c *gin.Context) {
	var req struct {
		ID int `json:"id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		a.badRequest(c, "id", err)
		return
	}
	a.dispatch(c, carousel.SetActive{ID: req.ID})
}

func (a *Application) updateCard(c *gin.Context) {
	var patch carousel.CardPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		a.badRequest(c, "card", err)
		return
	}
	a.dispatch(c, carousel.UpdateCard{Patch: patch})
}

func (a *Application) addButton(c *gin.Context) {
	a.dispatch(c, carousel.AddButton{})
}

func (a *Application) removeButton(c *gin.Context) {
	index, err := intParam(c, "index")
	if err != nil {
		a.badRequest(c, "index", err)
		return
	}
	a.dispatch(c, carousel.RemoveButton{Index: index})
}

func (a *Application) updateButton(c *gin.Context) {
	index, err := intParam(c, "index")
	if err != nil {
		a.badRequest(c, "index", err)
		return
	}
	var patch carousel.ButtonPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		a.badRequest(c, "button", err)
		return
	}
	a.dispatch(c, carousel.UpdateButton{Index: index, Patch: patch})
}

func (a *Application) clearImage(c *gin.Context) {
	id, err := intParam(c, "cardID")
	if err != nil {
		a.badRequest(c, "cardID", err)
		return
	}
	a.dispatch(c, carousel.ClearImage{CardID: id})
}

type upload struct {
	name     string
	declared string
	data     []byte
}

// readUpload reads the "image" multipart field, capped near limit.
func (a *Application) readUpload(c *gin.Context, kind imagecrop.UploadKind) (upload, error) {
	w := domerrors.NewWrapper("http", "upload")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, int64(kind.Limit()+multipartOverhead))

	fh, err := c.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return upload{}, w.Wrap(domerrors.ErrUploadRejected, msgUploadLarge)
		}
		return upload{}, w.Wrap(domerrors.NewValidationError(uploadField, err.Error()), msgNoFile)
	}

	f, err := fh.Open()
	if err != nil {
		return upload{}, w.Wrap(err, msgNoFile)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, int64(kind.Limit())+1))
	if err != nil {
		return upload{}, w.Wrap(err, msgNoFile)
	}
	return upload{name: fh.Filename, declared: fh.Header.Get("Content-Type"), data: data}, nil
}

// allowUpload applies the per-session upload limiter.
func (a *Application) allowUpload(c *gin.Context) bool {
	key := c.Param("id")
	if a.uploadLimiter.Allow(key) {
		return true
	}
	a.rateLimited(c, a.uploadLimiter.RetryAfter(key))
	return false
}

func (a *Application) uploadImage(c *gin.Context) {
	id, err := intParam(c, "cardID")
	if err != nil {
		a.badRequest(c, "cardID", err)
		return
	}
	if !a.allowUpload(c) {
		return
	}
	up, err := a.readUpload(c, imagecrop.HeroImage)
	if err != nil {
		a.respondError(c, err)
		return
	}

	s := session(c)
	tr, err := s.AttachImage(c.Request.Context(), id, up.name, up.declared, up.data)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.view(s, tr.Notice))
}

func (a *Application) uploadTriggerImage(c *gin.Context) {
	id, err := intParam(c, "cardID")
	if err != nil {
		a.badRequest(c, "cardID", err)
		return
	}
	index, err := intParam(c, "index")
	if err != nil {
		a.badRequest(c, "index", err)
		return
	}
	if !a.allowUpload(c) {
		return
	}
	up, err := a.readUpload(c, imagecrop.TriggerImage)
	if err != nil {
		a.respondError(c, err)
		return
	}

	s := session(c)
	tr, err := s.AttachTriggerImage(c.Request.Context(), id, index, up.declared, up.data)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.view(s, tr.Notice))
}

func (a *Application) getFlex(c *gin.Context) {
	doc, _ := session(c).Document()
	body, err := flexgen.Marshal(doc)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (a *Application) validate(c *gin.Context) {
	var top carousel.TopLevel
	if err := c.ShouldBindJSON(&top); err != nil {
		a.badRequest(c, "topLevel", err)
		return
	}
	problems := session(c).Validate(top)
	c.JSON(http.StatusOK, gin.H{
		"valid":    len(problems) == 0,
		"problems": problems,
	})
}

func (a *Application) publish(c *gin.Context) {
	var top carousel.TopLevel
	if err := c.ShouldBindJSON(&top); err != nil {
		a.badRequest(c, "topLevel", err)
		return
	}

	pub, err := session(c).Publish(c.Request.Context(), top)
	if err != nil {
		a.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":  pub.Message,
		"assets":   pub.Assets,
		"revision": pub.Revision,
	})
}

// serveResource returns the bytes of a live image handle for previews.
func (a *Application) serveResource(c *gin.Context) {
	blob, ok := a.sessions.Registry().Get(resource.Handle(c.Param("handle")))
	if !ok {
		a.respondError(c, domerrors.NewWrapper("http", "resource").Wrap(domerrors.ErrNotFound, msgNoResource))
		return
	}
	// Handles never change content
	c.Header("Cache-Control", "private, max-age=3600, immutable")
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}
