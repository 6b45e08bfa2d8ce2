package integrations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpsolver/internal/opt"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestFileSourceJSON(t *testing.T) {
	p := write(t, "p.json", `{
	  "vehicles": [{"id": "v1", "start_index": 0, "capacity": [5, 9]}],
	  "jobs": [{"id": "a", "location_index": 1, "delivery": null, "service": 2}],
	  "matrix": [[0, 4], [4, 0]]
	}`)
	req, err := FileSource{Path: p}.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, req.Validate())
	assert.Equal(t, opt.Limit(5), req.Vehicles[0].Capacity.Capacity())
	assert.Equal(t, int64(1), req.Jobs[0].Delivery.Delivery())
	require.NotNil(t, req.Jobs[0].Service)
	assert.Equal(t, int64(2), *req.Jobs[0].Service)
}

func TestFileSourceYAML(t *testing.T) {
	p := write(t, "p.yaml", `
algorithm: greedy
vehicles:
  - id: v1
    start_index: 0
jobs:
  - id: a
    location_index: 1
    delivery: 3
matrix:
  - [0, 4]
  - [4, 0]
`)
	req, err := FileSource{Path: p}.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, req.Validate())
	assert.Equal(t, "greedy", req.Algorithm)
	assert.True(t, req.Vehicles[0].Capacity.IsNull())
	assert.Equal(t, int64(3), req.Jobs[0].Delivery.Delivery())
}

func TestFileSourceErrors(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.json")}.Load(context.Background())
	assert.ErrorContains(t, err, "failed to read problem")

	_, err = FileSource{Path: write(t, "p.toml", "x = 1")}.Load(context.Background())
	assert.ErrorContains(t, err, "unsupported problem file extension")

	_, err = FileSource{Path: write(t, "p.json", "{")}.Load(context.Background())
	assert.ErrorContains(t, err, "failed to parse problem")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Path: write(t, "p.json", "{}")}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSourceInterface(t *testing.T) {
	var s Source = FileSource{Path: "x.json"}
	assert.Equal(t, "file:x.json", s.Name())
}
