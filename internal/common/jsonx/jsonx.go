// Package jsonx contains defensive JSON helpers for payloads coming from
// external providers and older ingestion runs. Some stored raw payloads
// contain several JSON objects concatenated back to back; these helpers
// split such payloads and drop fragments that do not parse.
package jsonx

import (
	"bytes"
	"encoding/json"
	"io"
)

// SplitConcatenated splits a payload that may contain one or more
// concatenated JSON values into individual raw messages. Unparseable
// fragments are discarded; parsing resumes at the next decodable value
// where possible.
func SplitConcatenated(data []byte) []json.RawMessage {
	var out []json.RawMessage

	data = bytes.TrimSpace(data)
	for len(data) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if err == io.EOF {
				break
			}
			// Skip one byte and retry so a corrupt fragment does not
			// swallow everything after it.
			data = bytes.TrimSpace(data[1:])
			continue
		}
		out = append(out, raw)
		data = bytes.TrimSpace(data[dec.InputOffset():])
	}

	return out
}

// DedupeByID unwraps a concatenated payload of JSON objects and returns
// one raw message per distinct "id" field, first occurrence winning.
// Objects without an id field are kept as-is. Non-object values are
// dropped.
func DedupeByID(data []byte) []json.RawMessage {
	seen := make(map[string]bool)
	var out []json.RawMessage

	for _, raw := range SplitConcatenated(data) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			continue
		}

		idRaw, ok := obj["id"]
		if !ok {
			out = append(out, raw)
			continue
		}

		var id string
		if err := json.Unmarshal(idRaw, &id); err != nil {
			// Non-string ids are compared by raw bytes
			id = string(idRaw)
		}

		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, raw)
	}

	return out
}

// DecodeOne unwraps a possibly concatenated payload and decodes the first
// de-duplicated record into dest. Returns false when no decodable object
// is present.
func DecodeOne(data []byte, dest interface{}) bool {
	records := DedupeByID(data)
	if len(records) == 0 {
		return false
	}
	return json.Unmarshal(records[0], dest) == nil
}
