// Copyright 2025 Marcin Wiktor
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

// Package collection implements parsing and flattening of Postman
// collection (format v2.x) documents into per-endpoint documents
// suitable for chunking and embedding.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	ErrEmptyCollection = errors.New("collection contains no items")
	ErrMissingInfo     = errors.New("collection is missing the 'info' block")
	ErrInvalidFormat   = errors.New("document is not a valid postman collection")
)

type Collection struct {
	Info Info    `json:"info"`
	Item []*Item `json:"item"`
}

type Info struct {
	PostmanID   string      `json:"_postman_id"`
	Name        string      `json:"name"`
	Description Description `json:"description"`
	Schema      string      `json:"schema"`
}

// Item is a node of the collection tree. Folders carry a nested Item
// list and no Request; endpoints carry a Request.
type Item struct {
	Name        string      `json:"name"`
	Description Description `json:"description"`
	Item        []*Item     `json:"item"`
	Request     *Request    `json:"request"`
	Response    []*Response `json:"response"`
}

func (i Item) IsFolder() bool {
	return i.Request == nil
}

type Request struct {
	Method      string      `json:"method"`
	URL         URL         `json:"url"`
	Description Description `json:"description"`
	Header      []KeyValue  `json:"header"`
	Body        *Body       `json:"body"`
}

type Response struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Code   int    `json:"code"`
	Body   string `json:"body"`
}

type KeyValue struct {
	Key         string      `json:"key"`
	Value       string      `json:"value"`
	Description Description `json:"description"`
	Disabled    bool        `json:"disabled"`
}

type Body struct {
	Mode       string          `json:"mode"`
	Raw        string          `json:"raw"`
	URLEncoded []KeyValue      `json:"urlencoded"`
	FormData   []KeyValue      `json:"formdata"`
	GraphQL    json.RawMessage `json:"graphql"`
}

// Description is either a plain string or an object with a
// 'content' field, depending on the exporting client.
type Description string

func (d *Description) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Description(s)
		return nil
	}

	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid description field: %w", err)
	}

	*d = Description(obj.Content)
	return nil
}

func (d Description) String() string {
	return string(d)
}

// URL is either a raw string or a structured object. The raw form is
// always retained; Path holds the display path when present.
type URL struct {
	Raw   string
	Path  []string
	Query []KeyValue
}

func (u *URL) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		u.Raw = s
		return nil
	}

	var obj struct {
		Raw   string     `json:"raw"`
		Path  []string   `json:"path"`
		Query []KeyValue `json:"query"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid url field: %w", err)
	}

	u.Raw = obj.Raw
	u.Path = obj.Path
	u.Query = obj.Query
	return nil
}

// DisplayPath returns the path portion of the url, preferring the
// structured path segments over the raw string.
func (u URL) DisplayPath() string {
	if len(u.Path) > 0 {
		return "/" + strings.Join(u.Path, "/")
	}

	raw := u.Raw
	if idx := strings.Index(raw, "?"); idx >= 0 {
		raw = raw[:idx]
	}
	if idx := strings.Index(raw, "://"); idx >= 0 {
		raw = raw[idx+3:]
		if slash := strings.Index(raw, "/"); slash >= 0 {
			return raw[slash:]
		}
		return "/"
	}
	return raw
}

func Parse(data []byte) (*Collection, error) {
	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if c.Info.Name == "" && c.Info.Schema == "" {
		return nil, ErrMissingInfo
	}

	if len(c.Item) == 0 {
		return nil, ErrEmptyCollection
	}

	return &c, nil
}

func ParseFile(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}
	return Parse(data)
}
