package popularity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/bytedance/sonic"
)

// encodeIndex writes the index as a JSON object whose keys appear in insertion
// order, so that tie-breaks survive a restart.
func encodeIndex(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		key, err := sonic.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(e.Count))
	}
	if len(entries) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}")
	return buf.Bytes(), nil
}

// decodeIndex reads either the current name->score object or the legacy bare
// array of names. Legacy names are reported with legacy=true and a zero count;
// the caller assigns their score.
func decodeIndex(data []byte) (entries []Entry, legacy bool, err error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, false, err
	}
	switch tok {
	case json.Delim('['):
		for dec.More() {
			var name string
			if err := dec.Decode(&name); err != nil {
				return nil, true, err
			}
			entries = append(entries, Entry{Name: name})
		}
		legacy = true
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, false, err
			}
			name, ok := keyTok.(string)
			if !ok {
				return nil, false, fmt.Errorf("unexpected key %v", keyTok)
			}
			var count int
			if err := dec.Decode(&count); err != nil {
				return nil, false, err
			}
			if count < 0 {
				count = 0
			}
			entries = append(entries, Entry{Name: name, Count: count})
		}
	default:
		return nil, false, fmt.Errorf("unexpected index shape %v", tok)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, legacy, err
	}
	return entries, legacy, nil
}
