package pypi

import "encoding/json"

func encodeVerdict(v *llmVerdictResult) ([]byte, error) {
	return json.Marshal(v)
}

func decodeVerdict(raw []byte) *llmVerdictResult {
	var v llmVerdictResult
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}
