package ws

import "github.com/duskhollow/packrat/internal/game/grid"

// clientCommand is the envelope for every command a client sends. Fields
// beyond Type are read per command; pointers distinguish absent from zero.
type clientCommand struct {
	Type      string `json:"type"`
	Archetype string `json:"archetype,omitempty"`
	Item      string `json:"item,omitempty"`
	Layer     string `json:"layer,omitempty"`
	Col       *int   `json:"col,omitempty"`
	Row       *int   `json:"row,omitempty"`
	Rotation  *int   `json:"rotation,omitempty"`
}

// itemPayload describes one placed grid instance.
type itemPayload struct {
	ID        string `json:"id"`
	Archetype string `json:"archetype"`
	Col       int    `json:"col"`
	Row       int    `json:"row"`
	Rotation  int    `json:"rotation"`
}

// slotPayload describes one occupied equipment slot.
type slotPayload struct {
	Layer     string `json:"layer"`
	Item      string `json:"item"`
	Archetype string `json:"archetype"`
}

type totalsPayload struct {
	Armor  int     `json:"armor"`
	Warmth int     `json:"warmth"`
	Weight float64 `json:"weight"`
	Pieces int     `json:"pieces"`
}

// statePayload is the full inventory view, sent on connect and on "list".
type statePayload struct {
	Type   string        `json:"type"`
	UID    string        `json:"uid"`
	Width  int           `json:"width"`
	Height int           `json:"height"`
	Items  []itemPayload `json:"items"`
	Slots  []slotPayload `json:"slots"`
	Totals totalsPayload `json:"totals"`
}

// ackPayload confirms a committed command. Item is set when the command
// produced or returned a specific instance.
type ackPayload struct {
	Type    string       `json:"type"`
	Command string       `json:"command"`
	Item    *itemPayload `json:"item,omitempty"`
}

// errorPayload reports a refused command. The profile is unchanged whenever
// one of these is sent.
type errorPayload struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

// eventPayload reports a committed slot mutation. Events precede the ack of
// the command that caused them.
type eventPayload struct {
	Type      string `json:"type"`
	Layer     string `json:"layer,omitempty"`
	Item      string `json:"item,omitempty"`
	Displaced string `json:"displaced,omitempty"`
}

func okMessage(command string) ackPayload {
	return ackPayload{Type: "ok", Command: command}
}

func okItemMessage(command string, inst grid.ItemInstance) ackPayload {
	p := toItemPayload(inst)
	return ackPayload{Type: "ok", Command: command, Item: &p}
}

func errorMessage(command, reason string) errorPayload {
	return errorPayload{Type: "error", Command: command, Reason: reason}
}

func toItemPayload(inst grid.ItemInstance) itemPayload {
	p := itemPayload{
		ID:       inst.ID,
		Col:      inst.Anchor.Col,
		Row:      inst.Anchor.Row,
		Rotation: inst.Rotation,
	}
	if inst.Archetype != nil {
		p.Archetype = inst.Archetype.ID
	}
	return p
}
