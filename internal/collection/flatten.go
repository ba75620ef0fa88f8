package collection

import (
	"fmt"
	"strings"
)

const responseBodyMaxLen = 2000

// Endpoint is a single flattened request from the collection tree,
// carrying the folder path it was found under.
type Endpoint struct {
	Name        string
	Method      string
	URL         string
	Path        string
	Folder      string
	Description string
	Headers     []KeyValue
	Query       []KeyValue
	Body        string
	Responses   []*Response
}

// Title disambiguates endpoints with the same name across folders.
func (e Endpoint) Title() string {
	if e.Folder == "" {
		return e.Name
	}
	return e.Folder + "/" + e.Name
}

// Meta returns the payload metadata stored next to every chunk of
// this endpoint in the vector store.
func (e Endpoint) Meta() map[string]string {
	return map[string]string{
		"endpoint": e.Title(),
		"method":   e.Method,
		"path":     e.Path,
		"folder":   e.Folder,
	}
}

// Document renders the canonical text form of the endpoint used for
// chunking and embedding.
func (e Endpoint) Document() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", e.Title())
	fmt.Fprintf(&b, "%s %s\n", e.Method, e.URL)

	if e.Description != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(e.Description))
		b.WriteString("\n")
	}

	if len(e.Headers) > 0 {
		b.WriteString("\nHeaders:\n")
		for _, h := range e.Headers {
			if h.Disabled {
				continue
			}
			fmt.Fprintf(&b, "- %s: %s", h.Key, h.Value)
			if h.Description != "" {
				fmt.Fprintf(&b, " (%s)", h.Description)
			}
			b.WriteString("\n")
		}
	}

	if len(e.Query) > 0 {
		b.WriteString("\nQuery parameters:\n")
		for _, q := range e.Query {
			fmt.Fprintf(&b, "- %s=%s", q.Key, q.Value)
			if q.Description != "" {
				fmt.Fprintf(&b, " (%s)", q.Description)
			}
			b.WriteString("\n")
		}
	}

	if e.Body != "" {
		b.WriteString("\nRequest body:\n")
		b.WriteString(strings.TrimSpace(e.Body))
		b.WriteString("\n")
	}

	for _, r := range e.Responses {
		if r.Body == "" {
			continue
		}

		body := strings.TrimSpace(r.Body)
		if len(body) > responseBodyMaxLen {
			body = body[:responseBodyMaxLen]
		}

		fmt.Fprintf(&b, "\nExample response '%s' (%d):\n%s\n", r.Name, r.Code, body)
	}

	return b.String()
}

// Flatten walks the collection item tree depth-first and returns one
// Endpoint per request item, skipping folders without requests.
func (c Collection) Flatten() []*Endpoint {
	endpoints := make([]*Endpoint, 0)
	for _, item := range c.Item {
		endpoints = appendEndpoints(endpoints, item, "")
	}
	return endpoints
}

func appendEndpoints(endpoints []*Endpoint, item *Item, folder string) []*Endpoint {
	if item.IsFolder() {
		path := item.Name
		if folder != "" {
			path = folder + "/" + item.Name
		}
		for _, child := range item.Item {
			endpoints = appendEndpoints(endpoints, child, path)
		}
		return endpoints
	}

	req := item.Request

	// the description may live on the item or the request itself
	desc := item.Description.String()
	if desc == "" {
		desc = req.Description.String()
	}

	var body string
	if req.Body != nil {
		body = renderBody(req.Body)
	}

	e := &Endpoint{
		Name:        item.Name,
		Method:      req.Method,
		URL:         req.URL.Raw,
		Path:        req.URL.DisplayPath(),
		Folder:      folder,
		Description: desc,
		Headers:     req.Header,
		Query:       req.URL.Query,
		Body:        body,
		Responses:   item.Response,
	}
	return append(endpoints, e)
}

func renderBody(b *Body) string {
	switch b.Mode {
	case "raw":
		return b.Raw

	case "urlencoded":
		return renderKeyValues(b.URLEncoded)

	case "formdata":
		return renderKeyValues(b.FormData)

	case "graphql":
		return string(b.GraphQL)

	default:
		return b.Raw
	}
}

func renderKeyValues(kvs []KeyValue) string {
	var b strings.Builder
	for _, kv := range kvs {
		if kv.Disabled {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", kv.Key, kv.Value)
	}
	return b.String()
}
