package fetcher

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DecodeJSONObject re-decodes an artifact's JSON into T.
func DecodeJSONObject[T any](art *Artifact) (*T, error) {
	var obj T
	if err := json.Unmarshal(art.Body, &obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// UnwrapSingle decodes a JSON array that wraps exactly one object, the shape
// some metadata endpoints return, and yields that object.
func UnwrapSingle[T any](art *Artifact) (*T, error) {
	var arr []T
	if err := json.Unmarshal(art.Body, &arr); err == nil {
		if len(arr) == 0 {
			return nil, eris.New("json: empty array")
		}
		return &arr[0], nil
	}
	return DecodeJSONObject[T](art)
}
