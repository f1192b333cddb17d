package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/service"
)

// RegisterEvents registers the render command stream.
func (h *Handler) RegisterEvents(api huma.API) {
	huma.Get(api, "/api/v1/editor/events", h.Events,
		huma.OperationTags("editor"),
	)
}

// Events streams render commands to the page as DOM custom events. A new
// stream first receives the full current state so a reloaded map catches up.
func (h *Handler) Events(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sub := h.bus.Subscribe()
		defer h.bus.Unsubscribe(sub)

		h.log.Debug().Int("subscribers", h.bus.Subscribers()).Msg("events stream opened")

		forward := func(ev service.Event) {
			if err := sse.Dispatch(ev.Name, ev.Detail); err != nil {
				h.log.Debug().Err(err).Str("event", ev.Name).Msg("dispatch failed")
			}
		}
		h.session.Replay(service.NewEventRenderer(forward))
		sse.Replace(h.renderStatus(), selStatus)
		sse.Replace(h.renderMode(), selModeButtons)
		sse.Patch(h.renderAttributes(), selAttributes)

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-sub.Ready():
				if !ok {
					return
				}
				var dataChanged, modeChanged bool
				for _, ev := range sub.Drain() {
					forward(ev)
					dataChanged = dataChanged || ev.Name == service.EventSetData
					modeChanged = modeChanged || ev.Name == service.EventTreeMode
				}
				if dataChanged {
					sse.Replace(h.renderStatus(), selStatus)
				}
				if modeChanged {
					sse.Replace(h.renderMode(), selModeButtons)
				}
			}
		}
	}), nil
}
