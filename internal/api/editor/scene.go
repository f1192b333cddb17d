package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/interact"
	"github.com/joeblew999/plat-trees/internal/service"
)

// MaxUploadBytes caps an uploaded GeoJSON file.
const MaxUploadBytes = 50 << 20

// RegisterScene registers mode, pointer, upload and reset routes.
func (h *Handler) RegisterScene(api huma.API) {
	huma.Get(api, "/api/v1/editor/status", h.Status, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/mode/{mode}", h.SetMode, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/pointer/{kind}", h.Pointer, huma.OperationTags("editor"))
	huma.Register(api, huma.Operation{
		OperationID:  "editor-upload",
		Method:       http.MethodPost,
		Path:         "/api/v1/editor/upload",
		Summary:      "Load a GeoJSON file into the editor",
		Tags:         []string{"editor"},
		MaxBodyBytes: MaxUploadBytes,
	}, h.Upload)
	huma.Post(api, "/api/v1/editor/reset", h.Reset, huma.OperationTags("editor"))
}

// Status re-renders the scene counters and mode buttons.
func (h *Handler) Status(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Replace(h.renderStatus(), selStatus)
		sse.Replace(h.renderMode(), selModeButtons)
	}), nil
}

type ModeInput struct {
	Mode string `path:"mode" enum:"none,continuous-place,continuous-delete" doc:"Tree mode; selecting the active mode turns it off"`
}

// SetMode toggles a tree mode.
func (h *Handler) SetMode(ctx context.Context, input *ModeInput) (*huma.StreamResponse, error) {
	m, err := interact.ParseMode(input.Mode)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	return h.Stream(func(sse humastar.SSE) {
		mode := h.session.SetMode(m)
		sse.Replace(h.renderMode(), selModeButtons)
		if mode != interact.ModeNone {
			sse.Patch(h.closedPanel(), selAttributes)
		}
	}), nil
}

type PointerInput struct {
	Kind string `path:"kind" enum:"down,move,up,click" doc:"Pointer event kind"`
	humastar.SignalsInput
}

// Pointer feeds a map pointer event from the page's lng, lat and button
// signals. A plain click with no tree mode opens the building under it.
func (h *Handler) Pointer(ctx context.Context, input *PointerInput) (*huma.StreamResponse, error) {
	kind, err := interact.ParseEventKind(input.Kind)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("lng") || !signals.Has("lat") {
		return nil, huma.Error400BadRequest("lng and lat signals are required")
	}
	ev := interact.PointerEvent{
		Kind:   kind,
		LngLat: orb.Point{signals.Float("lng"), signals.Float("lat")},
		Button: signals.Int("button"),
	}

	return h.Stream(func(sse humastar.SSE) {
		h.session.Pointer(ev)
		if kind != interact.Click || ev.Button != interact.PrimaryButton {
			return
		}
		if h.session.Mode() != interact.ModeNone {
			return
		}
		if _, err := h.session.OpenBuildingAt(ev.LngLat); err == nil {
			h.patchAttributes(sse)
		}
	}), nil
}

type UploadInput struct {
	RawBody multipart.Form
}

// Upload loads a GeoJSON file chosen in the page's file input.
func (h *Handler) Upload(ctx context.Context, input *UploadInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		files := input.RawBody.File["file"]
		if len(files) == 0 {
			sse.Error("No file provided")
			return
		}

		header := files[0]
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".geojson" && ext != ".json" {
			sse.Error("Only .geojson or .json files are allowed")
			return
		}
		data, err := readUpload(header)
		if err != nil {
			sse.Error(err.Error())
			return
		}

		res, err := h.session.Load(data)
		switch {
		case errors.Is(err, service.ErrLoadInProgress):
			sse.Error("A file is already loading")
			return
		case err != nil:
			h.log.Warn().Err(err).Str("file", header.Filename).Msg("upload rejected")
			sse.Error("Invalid GeoJSON file: " + header.Filename)
			return
		}

		sse.Success(loadSummary(header.Filename, res))
		sse.Replace(h.renderStatus(), selStatus)
	}), nil
}

// loadSummary reports what a load kept and what it had to repair or skip.
func loadSummary(name string, res service.LoadResult) string {
	msg := fmt.Sprintf("Loaded %s: %d buildings, %d trees", name, res.Buildings, res.Trees)
	if res.Upgraded > 0 {
		msg += fmt.Sprintf(", %d point trees rebuilt", res.Upgraded)
	}
	if res.Orphans > 0 {
		msg += fmt.Sprintf(", %d unpaired tree halves repaired", res.Orphans)
	}
	if res.Dropped > 0 {
		msg += fmt.Sprintf(", %d unsupported features skipped", res.Dropped)
	}
	return msg
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > MaxUploadBytes {
		return nil, fmt.Errorf("file too large: %d bytes", header.Size)
	}
	f, err := header.Open()
	if err != nil {
		return nil, errors.New("failed to open uploaded file")
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, MaxUploadBytes))
}

// Reset clears the scene.
func (h *Handler) Reset(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		h.session.Reset()
		sse.Patch(h.closedPanel(), selAttributes)
		sse.Replace(h.renderStatus(), selStatus)
		sse.Replace(h.renderMode(), selModeButtons)
		sse.Success("Scene cleared")
	}), nil
}
