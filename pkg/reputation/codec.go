package reputation

import "encoding/json"

func encodeResult(r *Result) ([]byte, error) {
	return json.Marshal(r)
}

func decodeResult(raw []byte) (*Result, bool) {
	var r Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, false
	}
	return &r, true
}
