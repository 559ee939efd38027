package prediction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"fraudserve/internal/domain/transaction"
)

// ParseInput decodes a request body holding either one JSON object or an
// array of objects. Empty bodies, null, {} and [] are ErrNoData; anything
// else that is not an object or an array of objects is malformed.
func ParseInput(data []byte) ([]*transaction.Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, malformed("", ErrNoData)
	}

	switch data[0] {
	case '{':
		r := transaction.NewRecord()
		if err := json.Unmarshal(data, r); err != nil {
			return nil, malformed("request body is not valid JSON", err)
		}
		if r.Len() == 0 {
			return nil, malformed("", ErrNoData)
		}
		return []*transaction.Record{r}, nil

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, malformed("request body is not valid JSON", err)
		}
		if len(items) == 0 {
			return nil, malformed("", ErrNoData)
		}

		records := make([]*transaction.Record, 0, len(items))
		for i, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || item[0] != '{' {
				return nil, malformed(fmt.Sprintf("element %d is not a JSON object", i), ErrMalformedInput)
			}
			r := transaction.NewRecord()
			if err := json.Unmarshal(item, r); err != nil {
				return nil, malformed(fmt.Sprintf("element %d is not valid JSON", i), err)
			}
			records = append(records, r)
		}
		return records, nil
	}

	return nil, malformed("expected a JSON object or an array of objects", ErrMalformedInput)
}
