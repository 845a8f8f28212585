package api

import (
	"github.com/okian/devinfo/internal/domain/facts"
)

// LoadedMessage is shown once every field has settled.
const LoadedMessage = "Device Info Loaded!"

// factView is one rendered row of the device card.
type factView struct {
	Field   facts.Field `json:"field"`
	Label   string      `json:"label"`
	State   facts.State `json:"state"`
	Value   any         `json:"value,omitempty"`
	Display string      `json:"display"`
}

type factsResponse struct {
	SessionID string         `json:"session_id"`
	Settled   bool           `json:"settled"`
	Message   string         `json:"message,omitempty"`
	Theme     string         `json:"theme,omitempty"`
	Facts     []factView     `json:"facts"`
	Notices   []facts.Notice `json:"notices"`
}

type updateEvent struct {
	SessionID string         `json:"session_id"`
	Changed   []facts.Field  `json:"changed"`
	Settled   bool           `json:"settled"`
	Facts     []factView     `json:"facts"`
	Notices   []facts.Notice `json:"notices,omitempty"`
}

// renderFacts lists the card rows for the basic or extended view.
func renderFacts(f facts.Facts, more bool) []factView {
	rows := f.Rows(more)
	out := make([]factView, 0, len(rows))
	for _, row := range rows {
		fact := f.Get(row.Field)
		out = append(out, factView{
			Field:   row.Field,
			Label:   row.Label,
			State:   fact.State,
			Value:   fact.Value,
			Display: row.Text,
		})
	}
	return out
}

func loadedMessage(settled bool) string {
	if settled {
		return LoadedMessage
	}
	return ""
}
