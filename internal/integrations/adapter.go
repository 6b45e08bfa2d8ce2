// Package integrations loads problem instances from outside the API: JSON or
// YAML files, and CSV exports handled by the csvfile subpackage.
package integrations

import (
    "context"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    yaml "gopkg.in/yaml.v3"

    "vrpsolver/internal/model"
)

// Source produces a problem instance. Implementations do not validate; the
// caller runs model.OptimizeRequest.Validate.
type Source interface {
    Name() string
    Load(ctx context.Context) (model.OptimizeRequest, error)
}

// FileSource reads a problem from a .json, .yaml or .yml file.
type FileSource struct {
    Path string
}

func (f FileSource) Name() string { return "file:" + f.Path }

func (f FileSource) Load(ctx context.Context) (model.OptimizeRequest, error) {
    var req model.OptimizeRequest
    if err := ctx.Err(); err != nil { return req, err }
    b, err := os.ReadFile(f.Path)
    if err != nil {
        return req, fmt.Errorf("failed to read problem %s: %w", f.Path, err)
    }
    switch strings.ToLower(filepath.Ext(f.Path)) {
    case ".yaml", ".yml":
        err = yaml.Unmarshal(b, &req)
    case ".json", "":
        err = json.Unmarshal(b, &req)
    default:
        return req, fmt.Errorf("unsupported problem file extension %q (want .json, .yaml or .yml)", filepath.Ext(f.Path))
    }
    if err != nil {
        return req, fmt.Errorf("failed to parse problem %s: %w", f.Path, err)
    }
    return req, nil
}
