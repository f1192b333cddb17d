package scene

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-trees/internal/geom"
)

// ChangeFunc is called after the listed collections changed.
type ChangeFunc func(changed ...Collection)

// Store holds the buildings and trees of the current scene together with the
// tree id counter. It is not safe for concurrent use; callers serialise
// access (see service.Session).
type Store struct {
	buildings []*geojson.Feature
	trees     []*Tree
	index     map[string]*Tree
	next      int
	listeners []ChangeFunc
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]*Tree)}
}

// OnChange registers fn to be called whenever collections change.
func (s *Store) OnChange(fn ChangeFunc) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(changed ...Collection) {
	for _, fn := range s.listeners {
		fn(changed...)
	}
}

// NextTreeID hands out the next tree id. Ids are never handed out twice.
func (s *Store) NextTreeID() string {
	id := TreeIDPrefix + strconv.Itoa(s.next)
	s.next++
	return id
}

// reserve makes sure future ids do not collide with id.
func (s *Store) reserve(id string) {
	if n, ok := treeSerial(id); ok && n >= s.next {
		s.next = n + 1
	}
}

// AddTree appends a tree to the trunk and canopy collections.
func (s *Store) AddTree(t *Tree) error {
	if t == nil || t.Trunk == nil || t.Canopy == nil {
		return fmt.Errorf("tree is incomplete")
	}
	if _, exists := s.index[t.ID]; exists {
		return fmt.Errorf("tree %q already exists", t.ID)
	}
	s.reserve(t.ID)
	s.trees = append(s.trees, t)
	s.index[t.ID] = t
	s.notify(Trunks, Canopies)
	return nil
}

// DeleteTree removes both halves of the tree with the given id. It reports
// whether a tree was removed; deleting an unknown id is a no-op.
func (s *Store) DeleteTree(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	delete(s.index, id)
	for i, t := range s.trees {
		if t.ID == id {
			s.trees = append(s.trees[:i:i], s.trees[i+1:]...)
			break
		}
	}
	s.notify(Trunks, Canopies)
	return true
}

// Tree returns the tree with the given id.
func (s *Store) Tree(id string) (*Tree, bool) {
	t, ok := s.index[id]
	return t, ok
}

// Trees returns the trees in insertion order.
func (s *Store) Trees() []*Tree {
	out := make([]*Tree, len(s.trees))
	copy(out, s.trees)
	return out
}

// TreeCount returns the number of trees.
func (s *Store) TreeCount() int { return len(s.trees) }

// BuildingCount returns the number of buildings.
func (s *Store) BuildingCount() int { return len(s.buildings) }

// TreesAt returns the ids of trees whose trunk or canopy footprint contains
// p, topmost (most recently placed) first.
func (s *Store) TreesAt(p orb.Point) []string {
	var ids []string
	for i := len(s.trees) - 1; i >= 0; i-- {
		t := s.trees[i]
		if geom.Contains(t.Canopy.Geometry, p) || geom.Contains(t.Trunk.Geometry, p) {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

// Building returns the building whose ID property formats to id.
func (s *Store) Building(id string) (*geojson.Feature, bool) {
	for _, f := range s.buildings {
		if v, ok := f.Properties[PropBuildingID]; ok && FormatValue(v) == id {
			return f, true
		}
	}
	return nil, false
}

// SetBuildingProperties replaces the property map of the building with the
// given ID. It reports false when no such building exists.
func (s *Store) SetBuildingProperties(id string, props geojson.Properties) bool {
	f, ok := s.Building(id)
	if !ok {
		return false
	}
	f.Properties = props
	s.notify(Buildings)
	return true
}

// Collection builds a FeatureCollection view of one collection.
func (s *Store) Collection(c Collection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	switch c {
	case Buildings:
		fc.Features = append(fc.Features, s.buildings...)
	case Trunks:
		for _, t := range s.trees {
			fc.Features = append(fc.Features, t.Trunk)
		}
	case Canopies:
		for _, t := range s.trees {
			fc.Features = append(fc.Features, t.Canopy)
		}
	}
	return fc
}

// Combined returns buildings, trunks and canopies in a single collection.
func (s *Store) Combined() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range Collections {
		fc.Features = append(fc.Features, s.Collection(c).Features...)
	}
	return fc
}

// Replace swaps in a freshly classified partition in one step.
func (s *Store) Replace(p *Partition) {
	s.buildings = append([]*geojson.Feature(nil), p.Buildings...)
	s.trees = append([]*Tree(nil), p.Trees...)
	s.index = make(map[string]*Tree, len(p.Trees))
	for _, t := range p.Trees {
		s.index[t.ID] = t
		s.reserve(t.ID)
	}
	s.notify(Collections...)
}

// Clear empties every collection. The id counter keeps counting.
func (s *Store) Clear() {
	s.buildings = nil
	s.trees = nil
	s.index = make(map[string]*Tree)
	s.notify(Collections...)
}

// FormatValue renders a property value the way it shows up in an editable
// text field.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
