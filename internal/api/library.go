package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/service"
)

// RegisterLibrary registers routes for scene files kept in the data directory.
func (h *APIHandler) RegisterLibrary(api huma.API) {
	huma.Get(api, "/api/v1/library", h.ListScenes, huma.OperationTags("library"))
	huma.Put(api, "/api/v1/library/{name}", h.SaveScene, huma.OperationTags("library"))
	huma.Post(api, "/api/v1/library/{name}/load", h.LoadSceneFile, huma.OperationTags("library"))
}

type SceneNameInput struct {
	Name string `path:"name" doc:"Scene file name" example:"park.geojson"`
}

type ScenesOutput struct {
	Body struct {
		Scenes []service.SceneFile `json:"scenes" doc:"Scene files in the library"`
	}
}

func (h *APIHandler) library() (*service.Library, error) {
	if h.svc.Library == nil {
		return nil, huma.Error503ServiceUnavailable("Scene library not configured")
	}
	return h.svc.Library, nil
}

func libraryError(err error) error {
	switch {
	case errors.Is(err, service.ErrSceneName):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, service.ErrSceneNotFound):
		return huma.Error404NotFound(err.Error())
	}
	return huma.Error500InternalServerError("Scene library failure", err)
}

// ListScenes lists the saved scene files.
func (h *APIHandler) ListScenes(ctx context.Context, input *struct{}) (*ScenesOutput, error) {
	lib, err := h.library()
	if err != nil {
		return nil, err
	}
	files, err := lib.List()
	if err != nil {
		return nil, libraryError(err)
	}
	out := &ScenesOutput{}
	out.Body.Scenes = files
	return out, nil
}

// SaveScene writes the exported scene into the library.
func (h *APIHandler) SaveScene(ctx context.Context, input *SceneNameInput) (*struct{ Body service.SceneFile }, error) {
	lib, err := h.library()
	if err != nil {
		return nil, err
	}
	data, err := h.svc.Session.Export()
	if errors.Is(err, service.ErrNothingToExport) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("export failed", err)
	}
	f, err := lib.Write(input.Name, data)
	if err != nil {
		return nil, libraryError(err)
	}
	return &struct{ Body service.SceneFile }{Body: f}, nil
}

// LoadSceneFile replaces the scene with a saved file.
func (h *APIHandler) LoadSceneFile(ctx context.Context, input *SceneNameInput) (*struct{ Body service.LoadResult }, error) {
	lib, err := h.library()
	if err != nil {
		return nil, err
	}
	data, err := lib.Read(input.Name)
	if err != nil {
		return nil, libraryError(err)
	}
	res, err := h.svc.Session.Load(data)
	switch {
	case errors.Is(err, service.ErrLoadInProgress):
		return nil, huma.Error409Conflict(err.Error())
	case errors.Is(err, scene.ErrInvalidGeoJSON):
		return nil, huma.Error400BadRequest(err.Error())
	case err != nil:
		return nil, huma.Error500InternalServerError("load failed", err)
	}
	return &struct{ Body service.LoadResult }{Body: res}, nil
}
