package carousel

import (
	"github.com/garyellow/line-carousel-composer/internal/resource"
)

// Command is a request to mutate the collection.
type Command interface {
	CommandName() string
}

// AddCard appends a card shaped like the master, with blank content.
type AddCard struct{}

// CopyCard appends a deep copy of the active card.
type CopyCard struct{}

// DeleteCard removes the card with ID.
type DeleteCard struct{ ID int }

// SetActive selects the card to edit.
type SetActive struct{ ID int }

// UpdateCard patches the active card.
type UpdateCard struct{ Patch CardPatch }

// AddButton enables the next free button slot on the active card.
type AddButton struct{}

// RemoveButton removes button Index on the active card and shifts the
// following buttons down.
type RemoveButton struct{ Index int }

// UpdateButton patches button Index on the active card.
type UpdateButton struct {
	Index int
	Patch ButtonPatch
}

// SetImage installs a manually cropped image and its source file.
type SetImage struct {
	CardID   int
	Original *SourceImage
	Handle   resource.Handle
	Ratio    AspectRatio
}

// ApplyCrop installs the result of an automatic re-crop. It is dropped when
// the card moved on since the crop was scheduled.
type ApplyCrop struct {
	CardID     int
	Generation uint64
	Handle     resource.Handle
	Ratio      AspectRatio
}

// ClearImage removes the hero image of a card.
type ClearImage struct{ CardID int }

// SetTriggerImage sets or clears the image sent by an "image" button.
type SetTriggerImage struct {
	CardID int
	Index  int
	Handle resource.Handle
}

func (AddCard) CommandName() string         { return "add_card" }
func (CopyCard) CommandName() string        { return "copy_card" }
func (DeleteCard) CommandName() string      { return "delete_card" }
func (SetActive) CommandName() string       { return "set_active" }
func (UpdateCard) CommandName() string      { return "update_card" }
func (AddButton) CommandName() string       { return "add_button" }
func (RemoveButton) CommandName() string    { return "remove_button" }
func (UpdateButton) CommandName() string    { return "update_button" }
func (SetImage) CommandName() string        { return "set_image" }
func (ApplyCrop) CommandName() string       { return "apply_crop" }
func (ClearImage) CommandName() string      { return "clear_image" }
func (SetTriggerImage) CommandName() string { return "set_trigger_image" }

// carriedHandles lists handles a command hands over to the store. Any of
// them not adopted by the resulting collection is released.
func carriedHandles(cmd Command) []resource.Handle {
	var h resource.Handle
	switch c := cmd.(type) {
	case SetImage:
		h = c.Handle
	case ApplyCrop:
		h = c.Handle
	case SetTriggerImage:
		h = c.Handle
	}
	if h.IsZero() {
		return nil
	}
	return []resource.Handle{h}
}

// CardPatch carries the fields to change on a card. Nil means unchanged.
type CardPatch struct {
	EnableImage    *bool     `json:"enableImage,omitempty"`
	EnableTitle    *bool     `json:"enableTitle,omitempty"`
	EnableContent  *bool     `json:"enableContent,omitempty"`
	EnablePrice    *bool     `json:"enablePrice,omitempty"`
	EnableImageURL *bool     `json:"enableImageUrl,omitempty"`
	Title          *string   `json:"cardTitle,omitempty"`
	Content        *string   `json:"content,omitempty"`
	Price          *string   `json:"price,omitempty"`
	Currency       *Currency `json:"currency,omitempty"`
	ImageURL       *string   `json:"imageUrl,omitempty"`
	ImageTag       *string   `json:"imageTag,omitempty"`
}

// ButtonPatch carries the fields to change on a button. Nil means unchanged.
type ButtonPatch struct {
	Mode           *ButtonMode `json:"mode,omitempty"`
	Label          *string     `json:"label,omitempty"`
	Action         *ActionType `json:"action,omitempty"`
	URL            *string     `json:"url,omitempty"`
	Tag            *string     `json:"tag,omitempty"`
	TriggerMessage *string     `json:"triggerMessage,omitempty"`
}

// Intent is follow-up work produced by a mutation.
type Intent interface {
	IntentName() string
}

// RecropIntent asks the effect runner to crop Source to Ratio and report
// back with ApplyCrop carrying Generation.
type RecropIntent struct {
	CardID     int
	Generation uint64
	Ratio      AspectRatio
	Source     *SourceImage
}

func (RecropIntent) IntentName() string { return "recrop" }

// Transition is the outcome of a dispatched command.
type Transition struct {
	Collection Collection
	Intents    []Intent
	// Released lists handles released while applying the command.
	Released []resource.Handle
	// Notice is a short confirmation for the user, if any.
	Notice string
	// Stale is set when an ApplyCrop arrived after the card moved on.
	Stale bool
}
