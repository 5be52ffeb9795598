package carousel

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	domerrors "github.com/garyellow/line-carousel-composer/internal/errors"
	"github.com/garyellow/line-carousel-composer/internal/resource"
	"golang.org/x/text/unicode/norm"
)

// User-facing messages.
const (
	msgCardAdded       = "已新增輪播"
	msgCardCopied      = "已複製輪播"
	msgCardDeleted     = "已刪除輪播"
	msgAddCapacity     = "最多可新增%d個輪播"
	msgCopyCapacity    = "最多只能有 %d 個輪播"
	msgKeepOneCard     = "至少需保留一個輪播"
	msgKeepOneSection  = "至少需要保留「選擇圖片」、「標題文字」或「內文文字說明」其中一個選項"
	msgMasterOnly      = "版面設定僅能在輪播 1 調整，請切換至輪播 1 修改"
	msgCardNotFound    = "找不到指定的輪播"
	msgButtonCapacity  = "最多可新增 %d 個按鈕"
	msgButtonNotFound  = "找不到指定的按鈕"
	msgTitleTooLong    = "標題文字最多 %d 個字"
	msgContentTooLong  = "內文文字說明最多 %d 個字"
	msgLabelTooLong    = "按鈕文字最多 %d 個字"
	msgPriceDigits     = "金額僅能輸入數字"
	msgPriceTooLong    = "金額最多 %d 位數"
	msgInvalidMode     = "按鈕樣式不正確"
	msgInvalidAction   = "按鈕動作不正確"
	msgInvalidCurrency = "幣別不正確"
	msgImageMissing    = "圖片不存在"
	msgImageDisabled   = "請先啟用「選擇圖片」"
)

// Option configures a Store.
type Option func(*Store)

// WithReleaser sets where dropped handles are released.
func WithReleaser(r resource.Releaser) Option {
	return func(s *Store) { s.releaser = r }
}

// WithDuplicator lets CopyCard give the copy its own image handles.
// Without it, copies start without images.
func WithDuplicator(d resource.Duplicator) Option {
	return func(s *Store) { s.duplicator = d }
}

// WithCopyLimit sets the card ceiling for CopyCard.
func WithCopyLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.copyLimit = min(n, MaxCards)
		}
	}
}

// Store owns a Collection and serializes mutations to it.
type Store struct {
	mu         sync.Mutex
	col        Collection
	releaser   resource.Releaser
	duplicator resource.Duplicator
	copyLimit  int
}

// NewStore creates a store holding one default card.
func NewStore(opts ...Option) *Store {
	s := &Store{
		col:       NewCollection(),
		copyLimit: DefaultCopyCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the current snapshot.
func (s *Store) Collection() Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.col
}

// CopyLimit returns the CopyCard ceiling.
func (s *Store) CopyLimit() int { return s.copyLimit }

// Dispatch applies cmd. On error the collection is unchanged; handles
// carried by the command are still released.
func (s *Store) Dispatch(cmd Command) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.col
	res, err := s.reduce(prev, cmd)
	if err != nil {
		released := s.releaseOrphans(prev, prev, carriedHandles(cmd))
		return Transition{Collection: prev, Released: released}, err
	}

	next := res.col
	var intents []Intent
	if next.revision != prev.revision {
		intents = scheduleRecrops(next)
	}
	released := s.releaseOrphans(prev, next, carriedHandles(cmd))
	s.col = next

	return Transition{
		Collection: next,
		Intents:    intents,
		Released:   released,
		Notice:     res.notice,
		Stale:      res.stale,
	}, nil
}

// Close releases every handle the collection owns.
func (s *Store) Close() []resource.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []resource.Handle
	for h := range s.col.Handles() {
		if s.releaser != nil {
			s.releaser.Release(h)
		}
		released = append(released, h)
	}
	s.col = s.col.with([]Card{NewCard(1)}, 1)
	return released
}

func (s *Store) releaseOrphans(prev, next Collection, carried []resource.Handle) []resource.Handle {
	keep := next.Handles()
	var released []resource.Handle
	seen := make(map[resource.Handle]struct{})

	drop := func(h resource.Handle) {
		if _, ok := keep[h]; ok {
			return
		}
		if _, ok := seen[h]; ok {
			return
		}
		seen[h] = struct{}{}
		if s.releaser != nil {
			s.releaser.Release(h)
		}
		released = append(released, h)
	}
	for _, c := range prev.cards {
		for _, h := range c.Handles() {
			drop(h)
		}
	}
	for _, h := range carried {
		drop(h)
	}
	return released
}

// scheduleRecrops emits one intent per card whose image was cropped at a
// ratio other than the one it resolves to now, unless a crop for that ratio
// is already in flight. A crop in flight for a ratio the card no longer
// wants, or for a card whose image is hidden, is invalidated.
func scheduleRecrops(next Collection) []Intent {
	var intents []Intent
	for i := range next.cards {
		card := &next.cards[i]
		if !card.HasOriginal() || !card.EnableImage {
			if card.pending != "" {
				card.pending = ""
				card.gen++
			}
			continue
		}
		want := ResolveAspectRatio(*card)
		if card.pending != "" && !card.pending.Equal(want) {
			card.pending = ""
			card.gen++
		}
		if card.croppedAt.Equal(want) || card.pending != "" {
			continue
		}
		card.gen++
		card.pending = want
		intents = append(intents, RecropIntent{
			CardID:     card.ID,
			Generation: card.gen,
			Ratio:      want,
			Source:     card.Original,
		})
	}
	return intents
}

type reduction struct {
	col    Collection
	notice string
	stale  bool
}

func (s *Store) reduce(col Collection, cmd Command) (reduction, error) {
	w := domerrors.NewWrapper("carousel", cmd.CommandName())

	switch c := cmd.(type) {
	case AddCard:
		if col.Len() >= MaxCards {
			return reduction{}, w.Wrapf(domerrors.ErrCapacityExceeded, msgAddCapacity, MaxCards)
		}
		card := conform(col.Master(), NewCard(col.nextID()))
		for i, mb := range col.Master().Buttons {
			if mb.Enabled {
				card.Buttons[i].Action = mb.Action
			}
		}
		cards := append(col.Cards(), card)
		return reduction{col: col.with(cards, card.ID), notice: msgCardAdded}, nil

	case CopyCard:
		if col.Len() >= s.copyLimit {
			return reduction{}, w.Wrapf(domerrors.ErrCapacityExceeded, msgCopyCapacity, s.copyLimit)
		}
		card, err := s.duplicate(col.Active())
		if err != nil {
			return reduction{}, w.Wrap(err, "複製輪播失敗")
		}
		card.ID = col.nextID()
		cards := append(col.Cards(), card)
		return reduction{col: col.with(cards, card.ID), notice: msgCardCopied}, nil

	case DeleteCard:
		_, idx, ok := col.Find(c.ID)
		if !ok {
			return reduction{}, w.Wrap(domerrors.ErrNotFound, msgCardNotFound)
		}
		if col.Len() <= 1 {
			return reduction{}, w.Wrap(domerrors.ErrInvalidInput, msgKeepOneCard)
		}
		cards := col.Cards()
		cards = append(cards[:idx], cards[idx+1:]...)
		if idx == 0 {
			// the next card becomes master and everyone mirrors it
			cards = append([]Card{cards[0]}, PropagateStructure(cards[0], cards[1:])...)
		}
		active := col.activeID
		if active == c.ID {
			active = cards[0].ID
		}
		return reduction{col: col.with(cards, active), notice: msgCardDeleted}, nil

	case SetActive:
		if _, _, ok := col.Find(c.ID); !ok {
			return reduction{}, w.Wrap(domerrors.ErrNotFound, msgCardNotFound)
		}
		return reduction{col: col.with(col.Cards(), c.ID)}, nil

	case UpdateCard:
		return s.updateActive(col, w, func(card Card, _ bool) (Card, error) {
			return applyCardPatch(card, c.Patch, w)
		})

	case AddButton:
		return s.updateActive(col, w, func(card Card, master bool) (Card, error) {
			if !master {
				return card, w.Wrap(domerrors.ErrStructureEditRejected, msgMasterOnly)
			}
			n := card.ButtonCount()
			if n >= MaxButtons {
				return card, w.Wrapf(domerrors.ErrCapacityExceeded, msgButtonCapacity, MaxButtons)
			}
			card.Buttons[n] = blankButton(defaultMode(n))
			card.Buttons[n].Enabled = true
			return card, nil
		})

	case RemoveButton:
		_, idx, _ := col.Find(col.activeID)
		if idx != 0 {
			return reduction{}, w.Wrap(domerrors.ErrStructureEditRejected, msgMasterOnly)
		}
		if c.Index < 0 || c.Index >= MaxButtons || !col.Master().Buttons[c.Index].Enabled {
			return reduction{}, w.Wrap(domerrors.ErrInvalidInput, msgButtonNotFound)
		}
		// every card drops the same slot so follower content stays aligned
		cards := col.Cards()
		for i := range cards {
			cards[i].Buttons = removeButton(cards[i].Buttons, c.Index)
		}
		cards = append([]Card{cards[0]}, PropagateStructure(cards[0], cards[1:])...)
		return s.finish(col, cards), nil

	case UpdateButton:
		return s.updateActive(col, w, func(card Card, _ bool) (Card, error) {
			return applyButtonPatch(card, c.Index, c.Patch, w)
		})

	case SetImage:
		return s.updateCard(col, c.CardID, w, func(card Card) (Card, error) {
			if c.Handle.IsZero() {
				return card, w.Wrap(domerrors.ErrInvalidInput, msgImageMissing)
			}
			if !card.EnableImage {
				return card, w.Wrap(domerrors.ErrInvalidInput, msgImageDisabled)
			}
			card.Image = c.Handle
			card.Original = c.Original
			card.croppedAt = c.Ratio
			card.pending = ""
			card.gen++
			return card, nil
		})

	case ApplyCrop:
		card, _, ok := col.Find(c.CardID)
		if !ok || card.gen != c.Generation || !card.HasOriginal() || !card.EnableImage ||
			!ResolveAspectRatio(card).Equal(c.Ratio) {
			// stale result; the carried handle is released by Dispatch
			return reduction{col: col, stale: true}, nil
		}
		return s.updateCard(col, c.CardID, w, func(card Card) (Card, error) {
			card.Image = c.Handle
			card.croppedAt = c.Ratio
			card.pending = ""
			return card, nil
		})

	case ClearImage:
		return s.updateCard(col, c.CardID, w, func(card Card) (Card, error) {
			card.dropImage()
			return card, nil
		})

	case SetTriggerImage:
		return s.updateCard(col, c.CardID, w, func(card Card) (Card, error) {
			if c.Index < 0 || c.Index >= MaxButtons || !card.Buttons[c.Index].Enabled {
				return card, w.Wrap(domerrors.ErrInvalidInput, msgButtonNotFound)
			}
			card.Buttons[c.Index].TriggerImage = c.Handle
			return card, nil
		})
	}

	return reduction{}, fmt.Errorf("unknown command %T: %w", cmd, domerrors.ErrInvalidInput)
}

// updateActive applies fn to the active card and settles the structure lock.
func (s *Store) updateActive(col Collection, w *domerrors.ErrorWrapper, fn func(Card, bool) (Card, error)) (reduction, error) {
	card, idx, ok := col.Find(col.activeID)
	if !ok {
		return reduction{}, w.Wrap(domerrors.ErrNotFound, msgCardNotFound)
	}
	master := idx == 0

	updated, err := fn(card, master)
	if err != nil {
		return reduction{}, err
	}
	if !hasMandatorySection(updated) {
		return reduction{}, w.Wrap(domerrors.ErrStructureEditRejected, msgKeepOneSection)
	}
	if !master && updated.Structure() != card.Structure() {
		return reduction{}, w.Wrap(domerrors.ErrStructureEditRejected, msgMasterOnly)
	}

	cards := col.Cards()
	cards[idx] = updated
	if master {
		cards = append([]Card{cards[0]}, PropagateStructure(cards[0], cards[1:])...)
	}
	return s.finish(col, cards), nil
}

// updateCard applies a content-only change to the card with id.
func (s *Store) updateCard(col Collection, id int, w *domerrors.ErrorWrapper, fn func(Card) (Card, error)) (reduction, error) {
	card, idx, ok := col.Find(id)
	if !ok {
		return reduction{}, w.Wrap(domerrors.ErrNotFound, msgCardNotFound)
	}
	updated, err := fn(card)
	if err != nil {
		return reduction{}, err
	}
	cards := col.Cards()
	cards[idx] = updated
	return s.finish(col, cards), nil
}

func (s *Store) finish(col Collection, cards []Card) reduction {
	return reduction{col: col.with(cards, col.activeID)}
}

func (s *Store) duplicate(src Card) (Card, error) {
	dst := src
	// the source card's crop in flight does not land on the copy
	dst.pending = ""
	if s.duplicator == nil {
		dst.dropImage()
		for i := range dst.Buttons {
			dst.Buttons[i].TriggerImage = ""
		}
		return dst, nil
	}

	var made []resource.Handle
	dup := func(h resource.Handle) (resource.Handle, error) {
		nh, err := s.duplicator.Duplicate(h)
		if err != nil {
			return "", err
		}
		if !nh.IsZero() {
			made = append(made, nh)
		}
		return nh, nil
	}
	undo := func() {
		if s.releaser == nil {
			return
		}
		for _, h := range made {
			s.releaser.Release(h)
		}
	}

	var err error
	if dst.Image, err = dup(src.Image); err != nil {
		undo()
		return Card{}, err
	}
	for i := range dst.Buttons {
		if dst.Buttons[i].TriggerImage, err = dup(src.Buttons[i].TriggerImage); err != nil {
			undo()
			return Card{}, err
		}
	}
	return dst, nil
}

func removeButton(buttons [MaxButtons]Button, index int) [MaxButtons]Button {
	var out [MaxButtons]Button
	j := 0
	for i, b := range buttons {
		if i == index {
			continue
		}
		out[j] = b
		j++
	}
	out[MaxButtons-1] = blankButton(defaultMode(MaxButtons - 1))
	return out
}

func applyCardPatch(card Card, p CardPatch, w *domerrors.ErrorWrapper) (Card, error) {
	setFlag := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setFlag(&card.EnableImage, p.EnableImage)
	setFlag(&card.EnableTitle, p.EnableTitle)
	setFlag(&card.EnableContent, p.EnableContent)
	setFlag(&card.EnablePrice, p.EnablePrice)
	setFlag(&card.EnableImageURL, p.EnableImageURL)

	if p.Title != nil {
		v, err := capRunes(*p.Title, MaxTitleRunes, "cardTitle", msgTitleTooLong, w)
		if err != nil {
			return card, err
		}
		card.Title = v
	}
	if p.Content != nil {
		v, err := capRunes(*p.Content, MaxContentRunes, "content", msgContentTooLong, w)
		if err != nil {
			return card, err
		}
		card.Content = v
	}
	if p.Price != nil {
		v := strings.TrimSpace(*p.Price)
		if !isDigits(v) {
			return card, w.Wrap(domerrors.NewValidationError("price", "digits only"), msgPriceDigits)
		}
		if len(v) > MaxPriceDigits {
			return card, w.Wrapf(domerrors.NewValidationError("price", "too long"), msgPriceTooLong, MaxPriceDigits)
		}
		card.Price = v
	}
	if p.Currency != nil {
		if *p.Currency != CurrencyNTD {
			return card, w.Wrap(domerrors.NewValidationError("currency", string(*p.Currency)), msgInvalidCurrency)
		}
		card.Currency = *p.Currency
	}
	if p.ImageURL != nil {
		card.ImageURL = strings.TrimSpace(*p.ImageURL)
	}
	if p.ImageTag != nil {
		card.ImageTag = strings.TrimSpace(*p.ImageTag)
	}
	return card, nil
}

func applyButtonPatch(card Card, index int, p ButtonPatch, w *domerrors.ErrorWrapper) (Card, error) {
	if index < 0 || index >= MaxButtons || !card.Buttons[index].Enabled {
		return card, w.Wrap(domerrors.ErrInvalidInput, msgButtonNotFound)
	}
	b := card.Buttons[index]

	if p.Mode != nil {
		if !p.Mode.valid() {
			return card, w.Wrap(domerrors.NewValidationError("mode", string(*p.Mode)), msgInvalidMode)
		}
		b.Mode = *p.Mode
	}
	if p.Label != nil {
		v, err := capRunes(*p.Label, MaxLabelRunes, "label", msgLabelTooLong, w)
		if err != nil {
			return card, err
		}
		b.Label = v
	}
	if p.Action != nil {
		if !p.Action.valid() {
			return card, w.Wrap(domerrors.NewValidationError("action", string(*p.Action)), msgInvalidAction)
		}
		b.Action = *p.Action
	}
	if p.URL != nil {
		b.URL = strings.TrimSpace(*p.URL)
	}
	if p.Tag != nil {
		b.Tag = strings.TrimSpace(*p.Tag)
	}
	if p.TriggerMessage != nil {
		b.TriggerMessage = norm.NFC.String(*p.TriggerMessage)
	}

	card.Buttons[index] = b
	return card, nil
}

// capRunes normalizes v to NFC and enforces a rune limit.
func capRunes(v string, limit int, field, msg string, w *domerrors.ErrorWrapper) (string, error) {
	v = norm.NFC.String(v)
	if utf8.RuneCountInString(v) > limit {
		return "", w.Wrapf(domerrors.NewValidationError(field, "too long"), msg, limit)
	}
	return v, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
