package resolver

import "encoding/json"

func encodeMetadata(m *Metadata) ([]byte, error) {
	return json.Marshal(m)
}

func decodeMetadata(raw []byte) (*Metadata, bool) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}
