package services

import (
	"encoding/json"

	"gorm.io/datatypes"
)

func DecodeEvidenceLinks(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var links []string
	if err := json.Unmarshal(raw, &links); err != nil {
		return nil
	}
	return links
}

func decodeAny(raw datatypes.JSON) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte(`{}`))
	}
	return datatypes.JSON(raw)
}
