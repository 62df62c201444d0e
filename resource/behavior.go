package resource

import "encoding/json"

// Behavior controls how a record's fields are split between the
// object body and object metadata when persisted.
type Behavior string

const (
	// BodyOnly serializes the full payload into the object body.
	BodyOnly Behavior = "body-only"
	// BodyOverflow keeps small scalar fields in object metadata and
	// spills everything else (objects, arrays, long strings) to the
	// body; reads merge both back into one map.
	BodyOverflow Behavior = "body-overflow"
	// TruncateData keeps only schema-declared attributes; fields not
	// named by the schema are dropped before the write.
	TruncateData Behavior = "truncate-data"
)

// metadataValueLimit is the longest scalar value BodyOverflow will
// keep in object metadata before treating it as a body field instead.
const metadataValueLimit = 256

// encode splits data into (body, metadata) per behavior and schema.
func encode(behavior Behavior, schema Schema, data map[string]any) ([]byte, map[string]string, error) {
	switch behavior {
	case TruncateData:
		declared := schema.fieldNames()
		trimmed := make(map[string]any, len(declared))
		for name := range declared {
			if v, ok := data[name]; ok {
				trimmed[name] = v
			}
		}
		body, err := json.Marshal(trimmed)
		return body, nil, err

	case BodyOverflow:
		metadata := map[string]string{}
		body := map[string]any{}
		for k, v := range data {
			if s, ok := scalarString(v); ok && len(s) <= metadataValueLimit {
				metadata[k] = s
				continue
			}
			body[k] = v
		}
		bodyBytes, err := json.Marshal(body)
		return bodyBytes, metadata, err

	default: // BodyOnly
		bodyBytes, err := json.Marshal(data)
		return bodyBytes, nil, err
	}
}

// decode reassembles a record from its stored body and metadata.
func decode(body []byte, metadata map[string]string) (map[string]any, error) {
	data := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &data); err != nil {
			return nil, err
		}
	}
	for k, v := range metadata {
		if _, exists := data[k]; !exists {
			data[k] = v
		}
	}
	return data, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		if t {
			return "true", true
		}
		return "false", true
	case float64, float32, int, int64:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return "", false
	}
}
