// Package rawjson helps tagged structs round-trip JSON objects that may carry
// fields the struct doesn't know about yet. CaptureRecord, Workflow, and
// ExecutionFeedback are all externally-produced or forward-evolving payloads
// (§9 "Dynamic dictionary payloads"), so their MarshalJSON/UnmarshalJSON keep
// any unrecognized key in a side map instead of discarding it.
package rawjson

import (
	"encoding/json"
	"sort"
)

// ExtractUnknown unmarshals data as a JSON object and returns every key not
// present in known. The returned map is nil (not empty) when there are no
// unknown keys, so callers can treat a nil Extra field as "nothing extra".
func ExtractUnknown(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// Merge re-marshals knownJSON (the JSON encoding of a struct's declared
// fields) with extra's entries added back in for any key the struct didn't
// already emit. Keys are sorted for deterministic output (§4.5's "save" is a
// deterministic-JSON write).
func Merge(knownJSON []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return knownJSON, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(knownJSON, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, merged[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}
