package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-trees/internal/attrs"
	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/service"
)

// RegisterAttributes registers the building attribute editor routes.
func (h *Handler) RegisterAttributes(api huma.API) {
	huma.Get(api, "/api/v1/editor/attributes", h.ShowAttributes, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/buildings/open", h.OpenBuilding, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/attributes/{action}", h.EditAttributes, huma.OperationTags("editor"))
}

func keySignal(i int) string { return fmt.Sprintf("attrkey%d", i) }
func valSignal(i int) string { return fmt.Sprintf("attrval%d", i) }

// patchAttributes re-renders the attribute table and resets its signals so
// inputs show the session's rows rather than stale client values.
func (h *Handler) patchAttributes(sse humastar.SSE) {
	a, ok := h.session.Attributes()
	if !ok {
		sse.Patch(h.closedPanel(), selAttributes)
		return
	}
	signals := map[string]any{}
	for i, r := range a.Rows {
		if r.ReadOnly {
			continue
		}
		signals[keySignal(i)] = r.Key
		signals[valSignal(i)] = r.Value
	}
	sse.Signals(signals)
	sse.Patch(h.Renderer.MustRender("attribute-table", a), selAttributes)
}

// applyRows copies edited key/value signals into the open session.
func (h *Handler) applyRows(signals humastar.Signals) error {
	a, ok := h.session.Attributes()
	if !ok {
		return attrs.ErrNoSession
	}
	for i, r := range a.Rows {
		if r.ReadOnly || !signals.Has(keySignal(i)) {
			continue
		}
		key := signals.Text(keySignal(i))
		val := signals.Text(valSignal(i))
		if key == r.Key && val == r.Value {
			continue
		}
		if err := h.session.SetAttributeRow(i, key, val); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

// ShowAttributes renders the open attribute session, if any.
func (h *Handler) ShowAttributes(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(h.patchAttributes), nil
}

// OpenBuilding opens the attribute editor on the building named by the
// buildingid signal, or on the building under the lng and lat signals.
func (h *Handler) OpenBuilding(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		var err error
		if id := signals.Text("buildingid"); id != "" {
			_, err = h.session.OpenBuilding(id)
		} else {
			_, err = h.session.OpenBuildingAt(orb.Point{signals.Float("lng"), signals.Float("lat")})
		}
		switch {
		case errors.Is(err, service.ErrPopupSuppressed):
			return
		case err != nil:
			sse.Error(err.Error())
			return
		}
		h.patchAttributes(sse)
	}), nil
}

type AttributeActionInput struct {
	Action string `path:"action" enum:"add,remove,save,close" doc:"Editor action"`
	Row    int    `query:"row" minimum:"0" doc:"Row index for remove"`
	humastar.SignalsInput
}

// EditAttributes applies an editor action. Pending edits in the page's
// signals are kept across add and remove, and written by save.
func (h *Handler) EditAttributes(ctx context.Context, input *AttributeActionInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		if input.Action == "close" {
			h.session.CloseAttributes()
			sse.Patch(h.closedPanel(), selAttributes)
			return
		}
		if err := h.applyRows(signals); err != nil {
			sse.Error(err.Error())
			return
		}

		switch input.Action {
		case "add":
			_, err = h.session.AddAttributeRow()
		case "remove":
			err = h.session.RemoveAttributeRow(input.Row)
		case "save":
			_, err = h.session.CommitAttributes()
			if err == nil {
				sse.Success("Attributes saved")
			}
		}
		if err != nil {
			sse.Error(err.Error())
			if errors.Is(err, attrs.ErrNotFound) {
				sse.Patch(h.closedPanel(), selAttributes)
			}
			return
		}
		h.patchAttributes(sse)
	}), nil
}
