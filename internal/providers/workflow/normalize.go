package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Extraction is what the normalizer could pull out of a workflow response.
// Both fields may be set; FileURL wins once it has been fetched.
type Extraction struct {
	ImageBase64 string
	FileURL     string
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Files  json.RawMessage `json:"files"`
	Result json.RawMessage `json:"result"`
	Image  json.RawMessage `json:"image"`
}

type dataEnvelope struct {
	Files   json.RawMessage `json:"files"`
	Outputs json.RawMessage `json:"outputs"`
}

// strategy inspects one known response shape. matched reports whether the
// shape's guard applied; once a guard applies no later strategy runs, even
// when the strategy itself found nothing.
type strategy struct {
	name string
	run  func(env envelope) (out Extraction, matched bool)
}

var strategies = []strategy{
	{name: "data.files", run: fromDataFiles},
	{name: "data.outputs", run: fromDataOutputs},
	{name: "files", run: fromTopLevelFiles},
	{name: "result", run: fromResult},
}

// Normalize applies the known response shapes in priority order and stops at
// the first whose guard matches. The returned name identifies that shape, or
// is empty when none applied. Top-level "image" is not consulted here; see
// Resolver.Resolve.
func Normalize(body []byte) (Extraction, string, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Arrays, strings and numbers carry none of the known fields.
		if json.Valid(body) {
			return Extraction{}, "", nil
		}
		return Extraction{}, "", fmt.Errorf("workflow: decode response: %w", err)
	}
	for _, s := range strategies {
		if out, ok := s.run(env); ok {
			return out, s.name, nil
		}
	}
	return Extraction{}, "", nil
}

func decodeData(env envelope) (dataEnvelope, bool) {
	var d dataEnvelope
	if !isObject(env.Data) {
		return d, false
	}
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return d, false
	}
	return d, true
}

func fromDataFiles(env envelope) (Extraction, bool) {
	d, ok := decodeData(env)
	if !ok {
		return Extraction{}, false
	}
	return firstFileURL(d.Files)
}

func fromDataOutputs(env envelope) (Extraction, bool) {
	d, ok := decodeData(env)
	if !ok || !truthy(d.Outputs) {
		return Extraction{}, false
	}
	var found string
	_ = eachValue(d.Outputs, func(val json.RawMessage) bool {
		if s, ok := asString(val); ok {
			if strings.HasPrefix(s, "http") || strings.HasPrefix(s, "/") {
				found = s
				return false
			}
			return true
		}
		if u := stringField(val, "url"); u != "" {
			found = u
			return false
		}
		return true
	})
	return Extraction{FileURL: found}, true
}

func fromTopLevelFiles(env envelope) (Extraction, bool) {
	return firstFileURL(env.Files)
}

func fromResult(env envelope) (Extraction, bool) {
	if !truthy(env.Result) {
		return Extraction{}, false
	}
	if s, ok := asString(env.Result); ok {
		if strings.HasPrefix(s, "http") {
			return Extraction{FileURL: s}, true
		}
		return Extraction{}, true
	}
	var result struct {
		Content []json.RawMessage `json:"content"`
	}
	if !isObject(env.Result) || json.Unmarshal(env.Result, &result) != nil {
		return Extraction{}, true
	}
	for _, item := range result.Content {
		kind := stringField(item, "type")
		if kind != "image" && kind != "resource" {
			continue
		}
		return Extraction{
			FileURL:     stringField(item, "url"),
			ImageBase64: stringField(item, "data"),
		}, true
	}
	return Extraction{}, true
}

func firstFileURL(raw json.RawMessage) (Extraction, bool) {
	var files []json.RawMessage
	if !isArray(raw) || json.Unmarshal(raw, &files) != nil || len(files) == 0 {
		return Extraction{}, false
	}
	return Extraction{FileURL: stringField(files[0], "url")}, true
}

// eachValue walks the values of a JSON object in property enumeration order
// (array-index keys ascending, then the rest as written), or the elements of
// an array. fn returns false to stop.
func eachValue(raw json.RawMessage, fn func(json.RawMessage) bool) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}

	var indexed, named []objectEntry
	for dec.More() {
		var key string
		if delim == '{' {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, _ = tok.(string)
		}
		var val json.RawMessage
		if err := dec.Decode(&val); err != nil {
			return err
		}
		if delim == '[' {
			if !fn(val) {
				return nil
			}
			continue
		}
		if idx, ok := arrayIndex(key); ok {
			indexed = append(indexed, objectEntry{index: idx, value: val})
		} else {
			named = append(named, objectEntry{value: val})
		}
	}

	sort.SliceStable(indexed, func(i, j int) bool { return indexed[i].index < indexed[j].index })
	for _, e := range append(indexed, named...) {
		if !fn(e.value) {
			return nil
		}
	}
	return nil
}

type objectEntry struct {
	index uint32
	value json.RawMessage
}

// arrayIndex reports whether key is a canonical array index: a decimal
// integer without leading zeros below 2^32-1.
func arrayIndex(key string) (uint32, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	n, err := strconv.ParseUint(key, 10, 32)
	if err != nil || n == math.MaxUint32 {
		return 0, false
	}
	return uint32(n), true
}

func asString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", false
	}
	return s, true
}

func stringField(raw json.RawMessage, key string) string {
	if !isObject(raw) {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	s, _ := asString(obj[key])
	return s
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// truthy mirrors loose JSON truthiness: absent, null, false, 0 and "" are false.
func truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", `""`:
		return false
	}
	var n float64
	if err := json.Unmarshal(trimmed, &n); err == nil {
		return n != 0
	}
	return true
}
