package editor

import (
	"context"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/service"
)

// Settings form signal prefix and route, shared with the server's form
// registration.
const (
	SettingsPrefix = "settings"
	SettingsPath   = "/api/v1/editor/settings"
)

// RegisterSun registers lighting and generation settings routes.
func (h *Handler) RegisterSun(api huma.API) {
	huma.Get(api, "/api/v1/editor/sun", h.ShowSun, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/sun", h.SetSun, huma.OperationTags("editor"))
	huma.Post(api, SettingsPath, h.SetSettings, huma.OperationTags("editor"))
}

func sunSignal(name string) string { return "sun" + name }

// sunSignals mirrors every slider value into its signal.
func (h *Handler) sunSignals() map[string]any {
	components, _ := h.session.Sun()
	signals := make(map[string]any, len(components))
	for _, c := range components {
		signals[sunSignal(c.Name)] = c.Value
	}
	return signals
}

// ShowSun renders the date and time sliders.
func (h *Handler) ShowSun(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(h.sunSignals())
		sse.Patch(h.renderSun(), selSun)
	}), nil
}

type SunInput struct {
	Component string `query:"component" enum:"month,day,hour,minute" required:"true" doc:"Slider that changed"`
	humastar.SignalsInput
}

// SetSun reads the changed slider's signal and relights the map. Text that
// is not a whole number leaves the lighting as it was; either way the
// slider and its numeric input are resynced to the stored value.
func (h *Handler) SetSun(ctx context.Context, input *SunInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	text := signals.Text(sunSignal(input.Component))

	return h.Stream(func(sse humastar.SSE) {
		_, _ = h.session.SetSun(input.Component, text)
		sse.Signals(h.sunSignals())
	}), nil
}

// SetSettings applies the settings form.
func (h *Handler) SetSettings(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	cur := h.session.Settings()
	next := service.Settings{
		MinHeight: floatOr(signals, SettingsPrefix+"minheight", cur.MinHeight),
		MaxHeight: floatOr(signals, SettingsPrefix+"maxheight", cur.MaxHeight),
		Spacing:   floatOr(signals, SettingsPrefix+"spacing", cur.Spacing),
	}

	return h.Stream(func(sse humastar.SSE) {
		got := h.session.SetSettings(next)
		sse.Signals(map[string]any{
			SettingsPrefix + "minheight": got.MinHeight,
			SettingsPrefix + "maxheight": got.MaxHeight,
			SettingsPrefix + "spacing":   got.Spacing,
		})
		sse.Success("Settings saved")
	}), nil
}

// floatOr reads a numeric signal, keeping def for blank or non-numeric text.
func floatOr(s humastar.Signals, key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s.Text(key)), 64)
	if err != nil {
		return def
	}
	return v
}
