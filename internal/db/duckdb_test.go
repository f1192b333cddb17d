package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sceneDoc = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"ID":7,"height":30},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
 {"type":"Feature","properties":{"id":"tree-0","isTrunk":true,"height":4,"base":0},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
 {"type":"Feature","properties":{"id":"tree-0","isCanopy":true,"height":6,"base":4},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
 {"type":"Feature","properties":{"id":"tree-1","isTrunk":true,"height":8,"base":0},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}},
 {"type":"Feature","properties":{"id":"tree-1","isCanopy":true,"height":12,"base":8},
  "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}
]}`

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStats(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	s, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, s)

	require.NoError(t, c.Sync(ctx, []byte(sceneDoc)))
	s, err = c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Buildings)
	assert.Equal(t, 2, s.Trees)
	assert.InDelta(t, 15, s.MeanTreeHeight, 1e-9)
	assert.InDelta(t, 20, s.MaxTreeHeight, 1e-9)
	assert.InDelta(t, 30, s.MeanBuilding, 1e-9)
}

func TestSync_Replaces(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	require.NoError(t, c.Sync(ctx, []byte(sceneDoc)))
	require.NoError(t, c.Sync(ctx, []byte(`{"type":"FeatureCollection","features":[]}`)))

	res, err := c.Query(ctx, "SELECT count(*) AS n FROM features")
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	assert.EqualValues(t, 0, res.Rows[0]["n"])
}

func TestSync_Invalid(t *testing.T) {
	c := openTest(t)
	assert.Error(t, c.Sync(context.Background(), []byte("nope")))
}

func TestQuery(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	require.NoError(t, c.Sync(ctx, []byte(sceneDoc)))

	res, err := c.Query(ctx, "SELECT tree_id FROM features WHERE kind = ? ORDER BY seq", "trunks")
	require.NoError(t, err)
	assert.Equal(t, []string{"tree_id"}, res.Columns)
	require.Equal(t, 2, res.Count)
	assert.Equal(t, "tree-0", res.Rows[0]["tree_id"])

	_, err = c.Query(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = c.Query(ctx, "SELECT * FROM nowhere")
	assert.Error(t, err)
}

func TestTables(t *testing.T) {
	c := openTest(t)
	tables, err := c.Tables(context.Background())
	require.NoError(t, err)
	assert.Contains(t, tables, "features")
}
