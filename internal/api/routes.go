// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/db"
	"github.com/joeblew999/plat-trees/internal/humastar"
	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/service"
)

// Version is reported by the health and info endpoints.
const Version = "0.1.0"

// MaxSceneBytes caps a posted scene document.
const MaxSceneBytes = 50 << 20

// Services holds the dependencies for API handlers. Catalog may be nil when
// DuckDB is unavailable; Library is nil without a data directory.
type Services struct {
	Session *service.Session
	Catalog *db.Catalog
	Library *service.Library
}

// Types

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

type TreeIDInput struct {
	ID string `path:"id" doc:"Tree id" example:"tree-0"`
}

type BuildingIDInput struct {
	ID string `path:"id" doc:"Building ID property, as text" example:"42"`
}

type CollectionInput struct {
	Collection string `path:"collection" enum:"buildings,trunks,canopies" doc:"Feature collection"`
}

type GeoJSONOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Body               []byte
}

type LoadInput struct {
	RawBody []byte `contentType:"application/geo+json"`
}

type PlaceTreeBody struct {
	Lng    float64 `json:"lng" minimum:"-180" maximum:"180" doc:"Longitude" example:"-74.006"`
	Lat    float64 `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude" example:"40.7128"`
	Height float64 `json:"height,omitempty" minimum:"0" doc:"Total height in metres; omitted or 0 picks a random height"`
}

type ListTreesInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Page size"`
}

// TreeBody is a single tree with its state-dependent actions.
type TreeBody struct {
	service.TreeInfo
}

var treeActions = []humastar.ActionDef{
	{Rel: "delete", Pattern: "/api/v1/trees/%s", Method: http.MethodDelete, Title: "Delete tree"},
}

func (b TreeBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, treeActions)
}

// BuildingBody is a building's property map.
type BuildingBody struct {
	ID         string             `json:"id" doc:"Building ID property, as text"`
	Properties geojson.Properties `json:"properties" doc:"Feature properties"`
}

var buildingActions = []humastar.ActionDef{
	{Rel: "edit", Pattern: "/api/v1/buildings/%s/properties", Method: http.MethodPut, Title: "Edit properties"},
}

func (b BuildingBody) Actions() []humastar.Action {
	return humastar.ActionsFor(b.ID, buildingActions)
}

type UpdateBuildingInput struct {
	BuildingIDInput
	Body map[string]string `doc:"Property values as typed; numeric text becomes a number, ID is kept"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/state", h.GetState, huma.OperationTags("health"))
}

// RegisterSettings registers tree generation settings routes.
func (h *APIHandler) RegisterSettings(api huma.API) {
	huma.Get(api, "/api/v1/settings", h.GetSettings, huma.OperationTags("settings"))
	huma.Put(api, "/api/v1/settings", h.PutSettings, huma.OperationTags("settings"))
}

// RegisterScene registers whole-scene routes.
func (h *APIHandler) RegisterScene(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:  "load-scene",
		Method:       http.MethodPost,
		Path:         "/api/v1/scene",
		Summary:      "Load a GeoJSON FeatureCollection",
		Tags:         []string{"scene"},
		MaxBodyBytes: MaxSceneBytes,
	}, h.LoadScene)
	huma.Get(api, "/api/v1/scene", h.ExportScene, huma.OperationTags("scene"))
	huma.Register(api, huma.Operation{
		OperationID:   "reset-scene",
		Method:        http.MethodDelete,
		Path:          "/api/v1/scene",
		Summary:       "Clear the scene",
		Tags:          []string{"scene"},
		DefaultStatus: http.StatusNoContent,
	}, h.ResetScene)
	huma.Get(api, "/api/v1/scene/{collection}", h.GetCollection, huma.OperationTags("scene"))
}

// RegisterTrees registers tree routes.
func (h *APIHandler) RegisterTrees(api huma.API) {
	huma.Get(api, "/api/v1/trees", h.ListTrees, huma.OperationTags("trees"))
	huma.Register(api, huma.Operation{
		OperationID:   "place-tree",
		Method:        http.MethodPost,
		Path:          "/api/v1/trees",
		Summary:       "Place a tree",
		Tags:          []string{"trees"},
		DefaultStatus: http.StatusCreated,
	}, h.PlaceTree)
	huma.Get(api, "/api/v1/trees/{id}", h.GetTree, huma.OperationTags("trees"))
	huma.Register(api, huma.Operation{
		OperationID:   "delete-tree",
		Method:        http.MethodDelete,
		Path:          "/api/v1/trees/{id}",
		Summary:       "Delete a tree",
		Tags:          []string{"trees"},
		DefaultStatus: http.StatusNoContent,
	}, h.DeleteTree)
}

// RegisterBuildings registers building routes.
func (h *APIHandler) RegisterBuildings(api huma.API) {
	huma.Get(api, "/api/v1/buildings/{id}", h.GetBuilding, huma.OperationTags("buildings"))
	huma.Put(api, "/api/v1/buildings/{id}/properties", h.PutBuildingProperties, huma.OperationTags("buildings"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetState(ctx context.Context, input *struct{}) (*struct{ Body service.State }, error) {
	return &struct{ Body service.State }{Body: h.svc.Session.State()}, nil
}

func (h *APIHandler) GetSettings(ctx context.Context, input *struct{}) (*struct{ Body service.Settings }, error) {
	return &struct{ Body service.Settings }{Body: h.svc.Session.Settings()}, nil
}

// PutSettings stores new settings; height bounds given in the wrong order
// are swapped.
func (h *APIHandler) PutSettings(ctx context.Context, input *struct{ Body service.Settings }) (*struct{ Body service.Settings }, error) {
	return &struct{ Body service.Settings }{Body: h.svc.Session.SetSettings(input.Body)}, nil
}

func (h *APIHandler) LoadScene(ctx context.Context, input *LoadInput) (*struct{ Body service.LoadResult }, error) {
	res, err := h.svc.Session.Load(input.RawBody)
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

func (h *APIHandler) ExportScene(ctx context.Context, input *struct{}) (*GeoJSONOutput, error) {
	data, err := h.svc.Session.Export()
	if errors.Is(err, service.ErrNothingToExport) {
		return nil, huma.Error404NotFound(err.Error())
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("export failed", err)
	}
	return &GeoJSONOutput{
		ContentType:        "application/geo+json",
		ContentDisposition: fmt.Sprintf(`attachment; filename=%q`, service.ExportFilename),
		Body:               data,
	}, nil
}

func (h *APIHandler) ResetScene(ctx context.Context, input *struct{}) (*struct{}, error) {
	h.svc.Session.Reset()
	return &struct{}{}, nil
}

func (h *APIHandler) GetCollection(ctx context.Context, input *CollectionInput) (*GeoJSONOutput, error) {
	c, ok := scene.ParseCollection(input.Collection)
	if !ok {
		return nil, huma.Error404NotFound("unknown collection")
	}
	data, err := h.svc.Session.CollectionJSON(c)
	if err != nil {
		return nil, huma.Error500InternalServerError("encode failed", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) ListTrees(ctx context.Context, input *ListTreesInput) (*struct {
	Body humastar.PageBody[service.TreeInfo]
}, error) {
	page := humastar.Page(h.svc.Session.Trees(), input.Offset, input.Limit)
	return &struct {
		Body humastar.PageBody[service.TreeInfo]
	}{Body: page}, nil
}

func (h *APIHandler) PlaceTree(ctx context.Context, input *struct{ Body PlaceTreeBody }) (*struct{ Body TreeBody }, error) {
	t := h.svc.Session.PlaceTree(orb.Point{input.Body.Lng, input.Body.Lat}, input.Body.Height)
	return &struct{ Body TreeBody }{Body: TreeBody{service.DescribeTree(t)}}, nil
}

func (h *APIHandler) GetTree(ctx context.Context, input *TreeIDInput) (*struct{ Body TreeBody }, error) {
	t, ok := h.svc.Session.Tree(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("tree not found")
	}
	return &struct{ Body TreeBody }{Body: TreeBody{service.DescribeTree(t)}}, nil
}

func (h *APIHandler) DeleteTree(ctx context.Context, input *TreeIDInput) (*struct{}, error) {
	if err := h.svc.Session.DeleteTree(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{}{}, nil
}

func (h *APIHandler) GetBuilding(ctx context.Context, input *BuildingIDInput) (*struct{ Body BuildingBody }, error) {
	props, ok := h.svc.Session.Building(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("building not found")
	}
	return &struct{ Body BuildingBody }{Body: BuildingBody{ID: input.ID, Properties: props}}, nil
}

func (h *APIHandler) PutBuildingProperties(ctx context.Context, input *UpdateBuildingInput) (*struct{ Body BuildingBody }, error) {
	props, err := h.svc.Session.UpdateBuilding(input.ID, input.Body)
	if err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body BuildingBody }{Body: BuildingBody{ID: input.ID, Properties: props}}, nil
}
