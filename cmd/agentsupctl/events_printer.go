package main

import (
	"encoding/json"
	"io"

	"github.com/agentsup/agentsup/internal/uiemit"
)

// eventPrinter writes each uiemit.Envelope to w as one NDJSON line.
type eventPrinter struct {
	w io.Writer
}

func newEventPrinter(w io.Writer) *eventPrinter {
	return &eventPrinter{w: w}
}

type printedEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

func (p *eventPrinter) print(env uiemit.Envelope) {
	data, err := json.Marshal(printedEnvelope{Event: env.Name, Payload: env.Payload})
	if err != nil {
		return
	}
	p.w.Write(append(data, '\n'))
}
