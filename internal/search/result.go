package search

import (
	"encoding/json"

	"github.com/xxxxxxxx15339/TechScope-SearchEngine/internal/document"
)

// Result is one ranked search hit. Its JSON form is flat: doc_id and score,
// with the document's metadata fields merged alongside. Metadata keys that
// would collide with doc_id or score are skipped.
type Result struct {
	DocID string
	Score float64
	Meta  *document.Metadata
}

func (r Result) MarshalJSON() ([]byte, error) {
	obj := map[string]any{}
	if r.Meta != nil {
		for k, v := range r.Meta.Flatten() {
			if k == "doc_id" || k == "score" {
				continue
			}
			obj[k] = v
		}
	}
	obj["doc_id"] = r.DocID
	obj["score"] = r.Score
	return json.Marshal(obj)
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Result{}
	if v, ok := raw["doc_id"]; ok {
		if err := json.Unmarshal(v, &r.DocID); err != nil {
			return err
		}
		delete(raw, "doc_id")
	}
	if v, ok := raw["score"]; ok {
		if err := json.Unmarshal(v, &r.Score); err != nil {
			return err
		}
		delete(raw, "score")
	}
	if len(raw) == 0 {
		return nil
	}
	rest, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var meta document.Metadata
	if err := json.Unmarshal(rest, &meta); err != nil {
		return err
	}
	r.Meta = &meta
	return nil
}
