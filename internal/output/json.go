package output

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/moondance-labs/netports/pkg/model"
)

// ToJSON encodes r as one JSON object: {"command": "<tag>", ...payload}.
func ToJSON(r model.Result) ([]byte, error) {
	var v any
	switch r := r.(type) {
	case model.ByPortResult:
		v = struct {
			Command model.Command `json:"command"`
			model.ByPortResult
		}{r.Command(), r}
	case model.ByPIDResult:
		v = struct {
			Command model.Command `json:"command"`
			model.ByPIDResult
		}{r.Command(), r}
	case model.ConflictsResult:
		v = struct {
			Command model.Command `json:"command"`
			model.ConflictsResult
		}{r.Command(), r}
	case model.ProbeResult:
		v = struct {
			Command model.Command `json:"command"`
			model.ProbeResult
		}{r.Command(), r}
	case model.ConnectionsResult:
		v = struct {
			Command model.Command `json:"command"`
			model.ConnectionsResult
		}{r.Command(), r}
	default:
		return nil, errors.Errorf("unknown result %T", r)
	}
	return json.Marshal(v)
}
