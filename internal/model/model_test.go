package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v3"

	"vrpsolver/internal/opt"
)

func TestQuantityJSONForms(t *testing.T) {
	var v struct {
		A Quantity `json:"a"`
		B Quantity `json:"b"`
		C Quantity `json:"c"`
		D Quantity `json:"d"`
		E Quantity `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":5,"b":[7,100],"c":null,"d":[]}`), &v))

	assert.Equal(t, opt.Limit(5), v.A.Capacity())
	assert.Equal(t, opt.Limit(7), v.B.Capacity())
	assert.True(t, v.C.Capacity().IsUnlimited())
	assert.True(t, v.D.Capacity().IsUnlimited())
	assert.True(t, v.E.Capacity().IsUnlimited())

	assert.Equal(t, int64(5), v.A.Delivery())
	assert.Equal(t, int64(7), v.B.Delivery())
	assert.Equal(t, int64(1), v.C.Delivery())
	assert.Equal(t, int64(1), v.D.Delivery())
	assert.Equal(t, int64(1), v.E.Delivery())
	assert.True(t, v.D.IsNull())
}

func TestQuantityJSONRejectsGarbage(t *testing.T) {
	var q Quantity
	assert.Error(t, json.Unmarshal([]byte(`"five"`), &q))
	assert.Error(t, json.Unmarshal([]byte(`[1.5]`), &q))
}

func TestQuantityMarshalKeepsShape(t *testing.T) {
	b, err := json.Marshal([]Quantity{Scalar(3), Vector(4, 9), {}})
	require.NoError(t, err)
	assert.JSONEq(t, `[3,[4,9],null]`, string(b))
}

func TestQuantityYAML(t *testing.T) {
	doc := `
vehicles:
  - id: v1
    start_index: 0
    capacity: [10, 3]
  - id: v2
    start_index: 1
    capacity: ~
jobs:
  - id: j1
    location_index: 1
    delivery: 4
  - id: j2
    location_index: 0
matrix:
  - [0, 2]
  - [2, 0]
`
	var req OptimizeRequest
	require.NoError(t, yaml.Unmarshal([]byte(doc), &req))
	require.NoError(t, req.Validate())
	assert.Equal(t, opt.Limit(10), req.Vehicles[0].Capacity.Capacity())
	assert.True(t, req.Vehicles[1].Capacity.Capacity().IsUnlimited())
	assert.Equal(t, int64(4), req.Jobs[0].Delivery.Delivery())
	assert.Equal(t, int64(1), req.Jobs[1].Delivery.Delivery())

	out, err := yaml.Marshal(Vector(2, 1))
	require.NoError(t, err)
	assert.Equal(t, "- 2\n- 1\n", string(out))
}

func validRequest() OptimizeRequest {
	svc := int64(2)
	return OptimizeRequest{
		Vehicles: []VehicleIn{{ID: "v1", StartIndex: 0, Capacity: Scalar(5)}},
		Jobs: []JobIn{
			{ID: "j1", LocationIndex: 1, Delivery: Scalar(2), Service: &svc},
			{ID: "j2", LocationIndex: 2},
		},
		Matrix: [][]int64{{0, 5, 9}, {5, 0, 3}, {9, 3, 0}},
	}
}

func TestValidate(t *testing.T) {
	ok := validRequest()
	require.NoError(t, ok.Validate())

	cases := map[string]func(r *OptimizeRequest){
		"no vehicles":       func(r *OptimizeRequest) { r.Vehicles = nil },
		"ragged matrix":     func(r *OptimizeRequest) { r.Matrix[1] = []int64{1} },
		"empty matrix":      func(r *OptimizeRequest) { r.Matrix = nil },
		"negative entry":    func(r *OptimizeRequest) { r.Matrix[0][2] = -1 },
		"start out of range": func(r *OptimizeRequest) { r.Vehicles[0].StartIndex = 3 },
		"job out of range":  func(r *OptimizeRequest) { r.Jobs[0].LocationIndex = -1 },
		"duplicate job":     func(r *OptimizeRequest) { r.Jobs[1].ID = "j1" },
		"duplicate vehicle": func(r *OptimizeRequest) { r.Vehicles = append(r.Vehicles, r.Vehicles[0]) },
		"blank id":          func(r *OptimizeRequest) { r.Jobs[0].ID = " " },
		"negative delivery": func(r *OptimizeRequest) { r.Jobs[0].Delivery = Scalar(-1) },
		"negative capacity": func(r *OptimizeRequest) { r.Vehicles[0].Capacity = Vector(-2) },
		"bad algorithm":     func(r *OptimizeRequest) { r.Algorithm = "alns" },
		"bad objective":     func(r *OptimizeRequest) { r.Objective = "distance" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := validRequest()
			mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidProblem))
		})
	}
}

func TestRequestToProblem(t *testing.T) {
	p := validRequest().Problem()
	require.Len(t, p.Vehicles, 1)
	assert.Equal(t, opt.Limit(5), p.Vehicles[0].Capacity)
	assert.Equal(t, opt.Job{ID: "j1", Location: 1, Delivery: 2, Service: 2}, p.Jobs[0])
	assert.Equal(t, opt.Job{ID: "j2", Location: 2, Delivery: 1}, p.Jobs[1])
}

func TestNewOptimizeResponse(t *testing.T) {
	sol := opt.Solution{
		Routes:        map[string]opt.Route{"v1": {Jobs: []string{"j1"}, Duration: 7}, "v2": {}},
		TotalDuration: 7,
	}
	resp := NewOptimizeResponse(sol, opt.Stats{Algorithm: opt.AlgorithmGreedy, Unassigned: []string{"j2"}})
	assert.Equal(t, int64(7), resp.TotalDeliveryDuration)
	assert.Equal(t, RouteOut{Jobs: []string{}}, resp.Routes["v2"])
	assert.Equal(t, []string{"j2"}, resp.Unassigned)
	assert.Equal(t, "greedy", resp.Algorithm)
	assert.Equal(t, "duration", resp.Objective)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"total_delivery_duration":7`)
	assert.Contains(t, string(b), `"delivery_duration":7`)
}
