package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

//
// JSONB helper
//

// JSONB is a helper for Postgres jsonb columns.
// Backed by map[string]any and works with sqlx / database/sql.
type JSONB map[string]any

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (j *JSONB) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("JSONB: expected []byte, got %T", value)
	}

	if len(b) == 0 {
		*j = nil
		return nil
	}

	return json.Unmarshal(b, j)
}

// Clone returns a shallow copy of the bag.
func (j JSONB) Clone() JSONB {
	if j == nil {
		return nil
	}
	out := make(JSONB, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}

// MergeAt shallow-merges patch into the sub-map stored under key and
// returns the updated bag. Other keys are opaque pass-through; nested
// values inside the sub-map are replaced, not deep-merged.
func (j JSONB) MergeAt(key string, patch JSONB) JSONB {
	if len(patch) == 0 {
		return j
	}
	out := j.Clone()
	if out == nil {
		out = JSONB{}
	}

	sub := JSONB{}
	if existing, ok := out[key].(map[string]any); ok {
		for k, v := range existing {
			sub[k] = v
		}
	} else if existing, ok := out[key].(JSONB); ok {
		for k, v := range existing {
			sub[k] = v
		}
	}
	for k, v := range patch {
		sub[k] = v
	}

	out[key] = map[string]any(sub)
	return out
}
