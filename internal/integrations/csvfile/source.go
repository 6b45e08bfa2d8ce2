// Package csvfile reads a problem from three CSV exports:
//
//	vehicles.csv  id,start_index,capacity
//	jobs.csv      id,location_index,delivery,service
//	matrix.csv    one row of travel times per location, no header
//
// Capacity and delivery may be empty (unlimited / default 1) or hold several
// dimensions separated by ';', of which the first is used.
package csvfile

import (
    "context"
    "encoding/csv"
    "fmt"
    "io"
    "os"
    "strconv"
    "strings"

    "github.com/samber/lo"

    "vrpsolver/internal/model"
)

type Source struct {
    VehiclesPath string
    JobsPath     string
    MatrixPath   string
}

func (s Source) Name() string { return "csv:" + s.JobsPath }

func (s Source) Load(ctx context.Context) (model.OptimizeRequest, error) {
    var req model.OptimizeRequest
    vehicles, err := readFile(s.VehiclesPath, true)
    if err != nil { return req, err }
    if err := ctx.Err(); err != nil { return req, err }
    jobs, err := readFile(s.JobsPath, true)
    if err != nil { return req, err }
    matrix, err := readFile(s.MatrixPath, false)
    if err != nil { return req, err }

    for i, rec := range vehicles {
        v, err := parseVehicle(rec)
        if err != nil { return req, fmt.Errorf("%s row %d: %w", s.VehiclesPath, i+2, err) }
        req.Vehicles = append(req.Vehicles, v)
    }
    req.Jobs = []model.JobIn{}
    for i, rec := range jobs {
        j, err := parseJob(rec)
        if err != nil { return req, fmt.Errorf("%s row %d: %w", s.JobsPath, i+2, err) }
        req.Jobs = append(req.Jobs, j)
    }
    for i, rec := range matrix {
        row, err := parseRow(rec)
        if err != nil { return req, fmt.Errorf("%s row %d: %w", s.MatrixPath, i+1, err) }
        req.Matrix = append(req.Matrix, row)
    }
    return req, nil
}

// readFile returns all records, dropping the header row when header is set.
func readFile(path string, header bool) ([][]string, error) {
    f, err := os.Open(path)
    if err != nil { return nil, fmt.Errorf("failed to open %s: %w", path, err) }
    defer f.Close()
    recs, err := read(f, header)
    if err != nil { return nil, fmt.Errorf("failed to read %s: %w", path, err) }
    return recs, nil
}

func read(r io.Reader, header bool) ([][]string, error) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = -1
    cr.TrimLeadingSpace = true
    cr.Comment = '#'
    recs, err := cr.ReadAll()
    if err != nil { return nil, err }
    if header && len(recs) > 0 { recs = recs[1:] }
    return lo.Reject(recs, func(rec []string, _ int) bool {
        return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
    }), nil
}

func field(rec []string, i int) string {
    if i < len(rec) { return strings.TrimSpace(rec[i]) }
    return ""
}

func parseVehicle(rec []string) (model.VehicleIn, error) {
    var v model.VehicleIn
    v.ID = field(rec, 0)
    start, err := strconv.Atoi(field(rec, 1))
    if err != nil { return v, fmt.Errorf("start_index: %w", err) }
    v.StartIndex = start
    v.Capacity, err = parseQuantity(field(rec, 2))
    if err != nil { return v, fmt.Errorf("capacity: %w", err) }
    return v, nil
}

func parseJob(rec []string) (model.JobIn, error) {
    var j model.JobIn
    j.ID = field(rec, 0)
    loc, err := strconv.Atoi(field(rec, 1))
    if err != nil { return j, fmt.Errorf("location_index: %w", err) }
    j.LocationIndex = loc
    j.Delivery, err = parseQuantity(field(rec, 2))
    if err != nil { return j, fmt.Errorf("delivery: %w", err) }
    if s := field(rec, 3); s != "" {
        svc, err := strconv.ParseInt(s, 10, 64)
        if err != nil { return j, fmt.Errorf("service: %w", err) }
        j.Service = &svc
    }
    return j, nil
}

// parseQuantity maps "" to null, "7" to a scalar and "7;2" to a vector.
func parseQuantity(s string) (model.Quantity, error) {
    if s == "" { return model.Quantity{}, nil }
    if !strings.Contains(s, ";") {
        n, err := strconv.ParseInt(s, 10, 64)
        if err != nil { return model.Quantity{}, err }
        return model.Scalar(n), nil
    }
    var dims []int64
    for _, p := range strings.Split(s, ";") {
        p = strings.TrimSpace(p)
        if p == "" { continue }
        n, err := strconv.ParseInt(p, 10, 64)
        if err != nil { return model.Quantity{}, err }
        dims = append(dims, n)
    }
    return model.Vector(dims...), nil
}

func parseRow(rec []string) ([]int64, error) {
    row := make([]int64, len(rec))
    for i, c := range rec {
        n, err := strconv.ParseInt(strings.TrimSpace(c), 10, 64)
        if err != nil { return nil, fmt.Errorf("column %d: %w", i+1, err) }
        row[i] = n
    }
    return row, nil
}
