// Package service holds the editing session behind the tree map editor.
package service

import (
	"github.com/joeblew999/plat-trees/internal/attrs"
	"github.com/joeblew999/plat-trees/internal/scene"
	"github.com/joeblew999/plat-trees/internal/sun"
)

// Settings are the user-adjustable tree generation knobs.
// Huma reads the tags for OpenAPI and validation.
type Settings struct {
	MinHeight float64 `json:"minHeight" minimum:"0" default:"5" doc:"Minimum random tree height in metres" example:"5"`
	MaxHeight float64 `json:"maxHeight" minimum:"0" default:"15" doc:"Maximum random tree height in metres" example:"15"`
	Spacing   float64 `json:"spacing" minimum:"0" default:"5" doc:"Minimum distance between trees of one drag, in metres" example:"5"`
}

// LoadResult summarises a loaded file.
type LoadResult struct {
	Buildings int `json:"buildings" doc:"Buildings kept"`
	Trees     int `json:"trees" doc:"Trees kept, including upgraded legacy points"`
	Upgraded  int `json:"upgraded" doc:"Legacy point trees rebuilt as trunk and canopy"`
	Dropped   int `json:"dropped" doc:"Features with unsupported geometry"`
	Orphans   int `json:"orphans" doc:"Trunk or canopy halves repaired with a fresh id or a generated partner"`
}

// State is a snapshot of the session for status endpoints and page render.
type State struct {
	Mode       string          `json:"mode" enum:"none,continuous-place,continuous-delete" doc:"Active tree mode"`
	Dragging   bool            `json:"dragging" doc:"Whether a drag is in progress"`
	Buildings  int             `json:"buildings" doc:"Buildings in the scene"`
	Trees      int             `json:"trees" doc:"Trees in the scene"`
	Loading    bool            `json:"loading" doc:"Whether a file load is pending"`
	Settings   Settings        `json:"settings"`
	Sun        []sun.Component `json:"sun" doc:"Date and time sliders"`
	Lights     []sun.Light     `json:"lights" doc:"Current scene lighting"`
	Attributes *AttributeState `json:"attributes,omitempty" doc:"Open attribute editor, if any"`
}

// AttributeState is the open attribute editor session.
type AttributeState struct {
	BuildingID string      `json:"buildingId" doc:"ID of the building being edited"`
	Rows       []attrs.Row `json:"rows"`
}

// TreeInfo describes a placed tree.
type TreeInfo struct {
	ID       string     `json:"id" doc:"Tree id" example:"tree-0"`
	Position [2]float64 `json:"position" doc:"Longitude and latitude of the trunk centre"`
	Height   float64    `json:"height" doc:"Total height in metres"`
}

// DescribeTree summarises t.
func DescribeTree(t *scene.Tree) TreeInfo {
	info := TreeInfo{ID: t.ID, Height: t.Height()}
	if t.Trunk != nil && t.Trunk.Geometry != nil {
		c := t.Trunk.Geometry.Bound().Center()
		info.Position = [2]float64{c[0], c[1]}
	}
	return info
}
