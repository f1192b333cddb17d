package scene

import (
	"encoding/json"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-trees/internal/geom"
)

func newTestGenerator(t *testing.T) (*Generator, *Store) {
	t.Helper()
	s := NewStore()
	return NewGenerator(s, rand.NewPCG(1, 2), Heights{Min: 5, Max: 15}), s
}

func ids(fc *geojson.FeatureCollection) []string {
	var out []string
	for _, f := range fc.Features {
		out = append(out, f.Properties[PropTreeID].(string))
	}
	sort.Strings(out)
	return out
}

func building(id string) *geojson.Feature {
	f := geojson.NewFeature(orb.Polygon{{{0, 0}, {0.001, 0}, {0.001, 0.001}, {0, 0.001}, {0, 0}}})
	f.Properties = geojson.Properties{PropBuildingID: id, "Height": 30.0}
	return f
}

func TestPlaceTree_Dimensions(t *testing.T) {
	g, s := newTestGenerator(t)

	p := g.PlaceTree(orb.Point{-74, 40}, 10)
	assert.Equal(t, orb.Point{-74, 40}, p)

	tree, ok := s.Tree("tree-0")
	require.True(t, ok)
	assert.Equal(t, true, tree.Trunk.Properties[PropIsTrunk])
	assert.InDelta(t, 4.0, tree.Trunk.Properties[PropHeight], 1e-9)
	assert.Equal(t, 0.0, tree.Trunk.Properties[PropBase])
	assert.Equal(t, true, tree.Canopy.Properties[PropIsCanopy])
	assert.InDelta(t, 6.0, tree.Canopy.Properties[PropHeight], 1e-9)
	assert.InDelta(t, 4.0, tree.Canopy.Properties[PropBase], 1e-9)
	assert.InDelta(t, 10.0, tree.Height(), 1e-9)
}

func TestPlaceTree_RandomHeightWithinBounds(t *testing.T) {
	g, s := newTestGenerator(t)
	g.SetHeights(Heights{Min: 8, Max: 3})
	assert.Equal(t, Heights{Min: 3, Max: 8}, g.Heights())

	for i := 0; i < 50; i++ {
		g.PlaceTree(orb.Point{float64(i) * 0.001, 0}, 0)
	}
	for _, tree := range s.Trees() {
		assert.GreaterOrEqual(t, tree.Height(), 3.0)
		assert.LessOrEqual(t, tree.Height(), 8.0)
	}
}

func TestStore_PairingSurvivesPlaceAndDelete(t *testing.T) {
	g, s := newTestGenerator(t)
	r := rand.New(rand.NewPCG(7, 7))

	for i := 0; i < 200; i++ {
		if r.IntN(3) == 0 && s.TreeCount() > 0 {
			trees := s.Trees()
			s.DeleteTree(trees[r.IntN(len(trees))].ID)
		} else {
			g.PlaceTree(orb.Point{r.Float64(), r.Float64()}, 0)
		}
		require.Equal(t, ids(s.Collection(Trunks)), ids(s.Collection(Canopies)))
	}
}

func TestStore_IDsNeverReused(t *testing.T) {
	g, s := newTestGenerator(t)

	first := g.Plant(orb.Point{0, 0}, 5)
	require.True(t, s.DeleteTree(first.ID))
	assert.False(t, s.DeleteTree(first.ID), "second delete is a no-op")

	second := g.Plant(orb.Point{0, 0}, 5)
	s.Clear()
	third := g.Plant(orb.Point{0, 0}, 5)

	assert.Equal(t, "tree-0", first.ID)
	assert.Equal(t, "tree-1", second.ID)
	assert.Equal(t, "tree-2", third.ID)
}

func TestStore_TreesAt(t *testing.T) {
	g, s := newTestGenerator(t)
	older := g.Plant(orb.Point{0, 0}, 5)
	newer := g.Plant(orb.Point{0.00001, 0}, 5)

	assert.Equal(t, []string{newer.ID, older.ID}, s.TreesAt(orb.Point{0.000005, 0}))
	assert.Empty(t, s.TreesAt(orb.Point{1, 1}))
}

func TestStore_ChangeNotifications(t *testing.T) {
	g, s := newTestGenerator(t)
	var got [][]Collection
	s.OnChange(func(changed ...Collection) { got = append(got, changed) })

	tree := g.Plant(orb.Point{0, 0}, 5)
	s.DeleteTree(tree.ID)
	s.DeleteTree(tree.ID)

	assert.Equal(t, [][]Collection{{Trunks, Canopies}, {Trunks, Canopies}}, got)
}

func TestStore_SetBuildingProperties(t *testing.T) {
	s := NewStore()
	s.Replace(&Partition{Buildings: []*geojson.Feature{building("7")}})

	ok := s.SetBuildingProperties("7", geojson.Properties{PropBuildingID: "7", "name": "x"})
	require.True(t, ok)
	f, _ := s.Building("7")
	assert.Equal(t, "x", f.Properties["name"])

	assert.False(t, s.SetBuildingProperties("8", geojson.Properties{}))
}

func TestClassify_LegacyPointUpgrade(t *testing.T) {
	g, s := newTestGenerator(t)
	raw, err := Decode([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[-74,40]},"properties":{"height":10}}
	]}`))
	require.NoError(t, err)

	p := Classify(raw, g)
	s.Replace(p)

	assert.Empty(t, p.Buildings)
	assert.Equal(t, 1, p.Upgraded)
	require.Len(t, s.Collection(Trunks).Features, 1)
	require.Len(t, s.Collection(Canopies).Features, 1)

	trunk := s.Collection(Trunks).Features[0]
	canopy := s.Collection(Canopies).Features[0]
	assert.Equal(t, trunk.Properties[PropTreeID], canopy.Properties[PropTreeID])
	assert.InDelta(t, 4.0, trunk.Properties[PropHeight], 1e-9)
	assert.Equal(t, 0.0, trunk.Properties[PropBase])
	assert.InDelta(t, 6.0, canopy.Properties[PropHeight], 1e-9)
	assert.InDelta(t, 4.0, canopy.Properties[PropBase], 1e-9)
}

func TestClassify_RoundTrip(t *testing.T) {
	g, s := newTestGenerator(t)
	s.Replace(&Partition{Buildings: []*geojson.Feature{building("1"), building("2")}})
	g.Plant(orb.Point{0, 0}, 6)
	g.Plant(orb.Point{0.001, 0.001}, 0)

	first, err := json.Marshal(s.Combined())
	require.NoError(t, err)

	raw, err := Decode(first)
	require.NoError(t, err)
	s.Replace(Classify(raw, g))

	for _, c := range Collections {
		want := mustJSON(t, rebuild(t, first, c))
		got := mustJSON(t, s.Collection(c))
		assert.JSONEq(t, want, got, "collection %s", c)
	}
}

func TestClassify_DropsUnknownGeometry(t *testing.T) {
	g, _ := newTestGenerator(t)
	raw, err := Decode([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{}},
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"ID":"b1"}}
	]}`))
	require.NoError(t, err)

	p := Classify(raw, g)
	assert.Len(t, p.Buildings, 1)
	assert.Empty(t, p.Trees)
	assert.Equal(t, 1, p.Dropped)
	assert.Zero(t, p.Orphans)
}

func TestClassify_RepairsUnpairedHalves(t *testing.T) {
	g, s := newTestGenerator(t)
	raw, err := Decode([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[0.0001,0],[0.0001,0.0001],[0,0.0001],[0,0]]]},"properties":{"isTrunk":true,"height":4,"base":0}},
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[1,1],[1.0001,1],[1.0001,1.0001],[1,1.0001],[1,1]]]},"properties":{"id":"tree-9","isCanopy":true,"height":6,"base":4,"note":"kept"}}
	]}`))
	require.NoError(t, err)

	p := Classify(raw, g)
	assert.Equal(t, 2, p.Orphans)
	require.Len(t, p.Trees, 2)

	canopyOnly := p.Trees[0]
	assert.Equal(t, "tree-9", canopyOnly.ID)
	assert.Equal(t, "kept", canopyOnly.Canopy.Properties["note"])
	assert.Equal(t, "tree-9", canopyOnly.Trunk.Properties[PropTreeID])
	assert.Equal(t, true, canopyOnly.Trunk.Properties[PropIsTrunk])
	assert.Equal(t, 4.0, canopyOnly.Trunk.Properties[PropHeight])
	assert.True(t, geom.Contains(canopyOnly.Trunk.Geometry, orb.Point{1.00005, 1.00005}))
	assert.InDelta(t, 10.0, canopyOnly.Height(), 1e-9)

	trunkOnly := p.Trees[1]
	assert.Equal(t, "tree-10", trunkOnly.ID, "fresh id follows the loaded ones")
	assert.Equal(t, "tree-10", trunkOnly.Trunk.Properties[PropTreeID])
	assert.Equal(t, 4.0, trunkOnly.Canopy.Properties[PropBase])
	assert.InDelta(t, 6.0, trunkOnly.Canopy.Properties[PropHeight], 1e-9)

	s.Replace(p)
	assert.Len(t, s.Collection(Trunks).Features, 2)
	assert.Len(t, s.Collection(Canopies).Features, 2)
	assert.Equal(t, "tree-11", s.NextTreeID())
}

func TestClassify_LoadedIDsAdvanceCounter(t *testing.T) {
	g, s := newTestGenerator(t)
	raw, err := Decode([]byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"id":"tree-41","isTrunk":true}},
		{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{"id":"tree-41","isCanopy":true}},
		{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{}}
	]}`))
	require.NoError(t, err)

	s.Replace(Classify(raw, g))
	_, ok := s.Tree("tree-42")
	assert.True(t, ok, "legacy tree takes the id after the loaded ones")
	assert.Equal(t, "tree-43", s.NextTreeID())
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidGeoJSON)
}

func rebuild(t *testing.T, data []byte, c Collection) *geojson.FeatureCollection {
	t.Helper()
	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		if Kind(f) == c {
			out.Append(f)
		}
	}
	return out
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
