package position

import (
	"fmt"
	"strings"
)

// Slot identifies one of the independent rankings a picture can take part in.
type Slot int

const (
	SlotGallery Slot = iota + 1
	SlotStartPage
)

// Slots lists every ranking in a stable order.
var Slots = []Slot{SlotGallery, SlotStartPage}

// Ranks holds the rank of an entity in every slot. 0 means unranked.
type Ranks struct {
	Gallery   int
	StartPage int
}

// ParseSlot accepts the names used on the HTTP surface ("gallery", "startPage") case-insensitively.
func ParseSlot(raw string) (Slot, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gallery":
		return SlotGallery, nil
	case "startpage", "start_page", "start-page":
		return SlotStartPage, nil
	}
	return 0, fmt.Errorf("unknown position slot %q", raw)
}

func (s Slot) Valid() bool {
	return s == SlotGallery || s == SlotStartPage
}

func (s Slot) String() string {
	switch s {
	case SlotGallery:
		return "gallery"
	case SlotStartPage:
		return "startPage"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

// Column is the storage column backing the slot.
func (s Slot) Column() string {
	switch s {
	case SlotGallery:
		return "gallery_position"
	case SlotStartPage:
		return "startpage_position"
	}
	return ""
}

// Of returns the rank held in this slot.
func (s Slot) Of(r *Ranks) int {
	switch s {
	case SlotGallery:
		return r.Gallery
	case SlotStartPage:
		return r.StartPage
	}
	return 0
}

// Set stores rank in this slot. Invalid slots are ignored.
func (s Slot) Set(r *Ranks, rank int) {
	switch s {
	case SlotGallery:
		r.Gallery = rank
	case SlotStartPage:
		r.StartPage = rank
	}
}
