package collection

import (
	"bytes"
	"encoding/json"
	goerrors "errors"

	jsonpatch "github.com/evanphx/json-patch/v5"
	jsondiff "github.com/mattbaird/jsonpatch"

	"github.com/abought/jamdb/pkg/errors"
)

// resolvePatch turns an update argument into a JSON-patch op list. A
// list passes through as the patch itself; a mapping is treated as the
// whole target document and diffed against previous.
func resolvePatch(previous, change any) ([]any, error) {
	raw, err := json.Marshal(change)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, errors.BadRequest("empty update payload")
	}

	switch trimmed[0] {
	case '[':
		var patch []any
		if err := json.Unmarshal(raw, &patch); err != nil {
			return nil, errors.BadRequest(err.Error())
		}
		return patch, nil

	case '{':
		prevRaw, err := json.Marshal(previous)
		if err != nil {
			return nil, errors.BadRequest(err.Error())
		}
		ops, err := jsondiff.CreatePatch(prevRaw, raw)
		if err != nil {
			return nil, errors.BadRequest(err.Error())
		}
		patch := make([]any, len(ops))
		for i, op := range ops {
			opRaw, err := json.Marshal(op)
			if err != nil {
				return nil, errors.BadRequest(err.Error())
			}
			var generic any
			if err := json.Unmarshal(opRaw, &generic); err != nil {
				return nil, errors.BadRequest(err.Error())
			}
			patch[i] = generic
		}
		return patch, nil

	default:
		return nil, errors.BadRequest("update payload must be a patch list or a target document")
	}
}

// applyPatch applies a JSON-patch op list to previous and returns the
// patched document. A failed "test" op surfaces JSONPatchTestFailed;
// any other patch defect is a BadRequest.
func applyPatch(previous any, patch []any) (any, error) {
	prevRaw, err := json.Marshal(previous)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	patchRaw, err := json.Marshal(patch)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	decoded, err := jsonpatch.DecodePatch(patchRaw)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	patched, err := decoded.Apply(prevRaw)
	if err != nil {
		if goerrors.Is(err, jsonpatch.ErrTestFailed) {
			return nil, errors.JSONPatchTestFailed(err.Error())
		}
		return nil, errors.BadRequest(err.Error())
	}

	var data any
	if err := json.Unmarshal(patched, &data); err != nil {
		return nil, errors.BadRequest(err.Error())
	}
	return data, nil
}
