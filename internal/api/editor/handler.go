// Package editor contains Datastar SSE handlers for the editor UI.
package editor

import (
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/service"
)

// Fragment targets on the editor page.
const (
	selModeButtons = "#mode-buttons"
	selStatus      = "#scene-status"
	selAttributes  = "#attribute-panel"
	selSun         = "#sun-controls"
)

// Handler serves the editor's Datastar endpoints. Methods named Register*
// are auto-discovered by huma.AutoRegister.
type Handler struct {
	humastar.Handler
	session *service.Session
	bus     *service.EventBus
	log     zerolog.Logger
}

// NewHandler creates the editor handler. Render commands published on bus
// are forwarded to every open events stream.
func NewHandler(session *service.Session, bus *service.EventBus, renderer *humastar.Renderer, log zerolog.Logger) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		session: session,
		bus:     bus,
		log:     log.With().Str("component", "editor").Logger(),
	}
}

type modeData struct {
	Mode string
}

func (h *Handler) renderMode() string {
	return h.Renderer.MustRender("mode-buttons", modeData{Mode: h.session.Mode().String()})
}

func (h *Handler) renderStatus() string {
	return h.Renderer.MustRender("scene-status", h.session.State())
}

func (h *Handler) renderAttributes() string {
	a, ok := h.session.Attributes()
	if !ok {
		return h.closedPanel()
	}
	return h.Renderer.MustRender("attribute-table", a)
}

func (h *Handler) closedPanel() string {
	return h.Empty("No building selected", "Click a building to edit its attributes.")
}

func (h *Handler) renderSun() string {
	components, _ := h.session.Sun()
	return h.Renderer.MustRender("sun-controls", components)
}
