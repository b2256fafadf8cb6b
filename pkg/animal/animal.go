// Package animal defines the wire and canonical data shapes moved by the
// ETL pipeline: list/detail records as the Animal API returns them, and the
// transformed record the home endpoint accepts.
package animal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Summary is one item from the paginated list endpoint. The list endpoint
// only guarantees id and name; anything else it returns is ignored.
type Summary struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Page is one page of the list endpoint.
type Page struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Items      []Summary `json:"items"`
}

// Detail is the raw per-animal record from the detail endpoint. The source
// API is inconsistent: friends may arrive as a comma-delimited string or an
// array, born_at as a string, a unix epoch number, or null. Custom
// unmarshalers preserve whatever arrived so the transformer can decide.
// Unrecognized fields are dropped on decode.
type Detail struct {
	ID      int        `json:"id"`
	Name    string     `json:"name"`
	Friends RawFriends `json:"friends"`
	BornAt  RawBornAt  `json:"born_at"`
}

// RawFriends holds the friends field in whichever shape the source sent it.
type RawFriends struct {
	// List is set when the source sent a JSON array.
	List []string

	// Raw is set when the source sent a delimited string.
	Raw string

	// IsList reports which of the two fields is authoritative.
	IsList bool
}

// UnmarshalJSON accepts a string, an array of strings, or null.
func (f *RawFriends) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = RawFriends{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("friends string: %w", err)
		}
		*f = RawFriends{Raw: s}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("friends array: %w", err)
		}
		*f = RawFriends{List: list, IsList: true}
		return nil
	default:
		return fmt.Errorf("friends: unsupported JSON type: %s", truncate(data))
	}
}

// MarshalJSON round-trips the original shape, mainly for test fixtures.
func (f RawFriends) MarshalJSON() ([]byte, error) {
	if f.IsList {
		return json.Marshal(f.List)
	}
	return json.Marshal(f.Raw)
}

// RawBornAt holds the born_at field before normalization.
type RawBornAt struct {
	// Value is the string form of whatever arrived ("" when absent/null).
	Value string

	// Numeric is true when the source sent a JSON number (unix epoch).
	Numeric bool

	// Present is false when the field was absent or null.
	Present bool
}

// UnmarshalJSON accepts a string, a number, or null.
func (b *RawBornAt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*b = RawBornAt{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("born_at string: %w", err)
		}
		if strings.TrimSpace(s) == "" {
			*b = RawBornAt{}
			return nil
		}
		*b = RawBornAt{Value: s, Present: true}
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("born_at: unsupported JSON type: %s", truncate(data))
	}
	*b = RawBornAt{Value: n.String(), Numeric: true, Present: true}
	return nil
}

// MarshalJSON round-trips the original shape, mainly for test fixtures.
func (b RawBornAt) MarshalJSON() ([]byte, error) {
	if !b.Present {
		return []byte("null"), nil
	}
	if b.Numeric {
		return []byte(b.Value), nil
	}
	return json.Marshal(b.Value)
}

// Animal is the canonical record submitted to the home endpoint. Only the
// transformer produces these, and only after validation: friends is always
// non-nil and ordered, born_at is RFC 3339 UTC or null when unknown.
type Animal struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Friends []string `json:"friends"`
	BornAt  *string  `json:"born_at"`
}

// MarshalJSON guarantees friends serializes as [] rather than null so the
// destination schema is satisfied even for zero-value records.
func (a Animal) MarshalJSON() ([]byte, error) {
	type alias Animal
	out := alias(a)
	if out.Friends == nil {
		out.Friends = []string{}
	}
	return json.Marshal(out)
}

func truncate(data []byte) string {
	const max = 32
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}
