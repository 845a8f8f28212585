package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/devinfo/internal/adapters/client"
	service "github.com/okian/devinfo/internal/app"
	"github.com/okian/devinfo/internal/domain/aggregator"
	"github.com/okian/devinfo/pkg/logger"
)

// FactsHandler runs fact sessions for posted client reports.
type FactsHandler struct {
	deps Dependencies
}

// NewFactsHandler creates a new facts handler.
func NewFactsHandler(deps Dependencies) *FactsHandler {
	return &FactsHandler{deps: deps}
}

// viewOptions are the query parameters shared by both facts endpoints.
type viewOptions struct {
	more     bool
	clientID string
}

func parseView(r *http.Request) viewOptions {
	q := r.URL.Query()
	return viewOptions{more: q.Get("view") == "more", clientID: q.Get("client")}
}

func (h *FactsHandler) source(r *http.Request) (service.Source, error) {
	rep, err := client.Decode(r.Body)
	if err != nil {
		return service.Source{}, WrapKind("decode report", ErrBadRequest, err)
	}
	return service.Source{
		Environment:  rep.Environment(r),
		Capabilities: rep.Capabilities(),
		Request:      r,
	}, nil
}

// HandleCollect handles POST /api/v1/facts: the report is collected until
// settled and the whole card is returned.
func (h *FactsHandler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := parseView(r)
	src, err := h.source(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	// Collect is bounded by the service's collect timeout, which may exceed
	// the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	resp := factsResponse{}
	if view.clientID != "" {
		p, err := h.deps.Preferences(ctx, view.clientID)
		if err != nil {
			writeFailure(w, err)
			return
		}
		resp.Theme = p.Theme()
	}

	res, err := h.deps.Collect(ctx, src)
	if err != nil {
		logger.Get().Warn(ctx, "collect failed", logger.Error(err))
		writeFailure(w, err)
		return
	}
	resp.SessionID = res.SessionID
	resp.Settled = res.Settled
	resp.Message = loadedMessage(res.Settled)
	resp.Facts = renderFacts(res.Facts, view.more)
	resp.Notices = res.Notices
	writeJSON(w, http.StatusOK, resp)
}

// HandleStream handles POST /api/v1/facts/stream as server-sent events: one
// "update" event per applied change until the client disconnects.
func (h *FactsHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	view := parseView(r)
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", ErrStreamingUnsupported)
		return
	}
	src, err := h.source(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = h.deps.Stream(ctx, src, func(id string, u aggregator.Update) {
		payload, err := json.Marshal(updateEvent{
			SessionID: id,
			Changed:   u.Changed,
			Settled:   u.Settled,
			Facts:     renderFacts(u.Facts, view.more),
			Notices:   u.Notices,
		})
		if err != nil {
			return
		}
		if _, err := fmt.Fprintf(w, "event: update\ndata: %s\n\n", payload); err != nil {
			return
		}
		if u.Settled {
			_, _ = fmt.Fprintf(w, "event: loaded\ndata: %q\n\n", LoadedMessage)
		}
		flusher.Flush()
	})
	if err != nil {
		logger.Get().Warn(ctx, "stream ended with error", logger.Error(err))
		_, _ = fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
		flusher.Flush()
	}
}
