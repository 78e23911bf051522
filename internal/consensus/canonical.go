package consensus

import (
	"bytes"
	"encoding/json"
	"sort"
)

// CanonicalKey renders a JSON value in a canonical form: object keys sorted
// recursively, array order preserved. Two responses that differ only in
// field ordering produce the same key, so serialization order never splits
// a consensus group. Invalid or empty JSON canonicalizes to "{}".
func CanonicalKey(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "{}"
	}
	var buf bytes.Buffer
	writeCanonical(&buf, v)
	return buf.String()
}

func writeCanonical(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeCanonical(buf, val[k])
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeCanonical(buf, e)
		}
		buf.WriteByte(']')
	case json.Number:
		buf.WriteString(val.String())
	default:
		b, _ := json.Marshal(val)
		buf.Write(b)
	}
}
