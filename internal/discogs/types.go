package discogs

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Artist is a credited artist on a release. ANV is the artist name variation.
type Artist struct {
	Name string `json:"name"`
	ANV  string `json:"anv"`
}

// Label is a label credit with its catalog number.
type Label struct {
	Name  string `json:"name"`
	Catno string `json:"catno"`
}

// Format is one physical format entry, e.g. a vinyl LP with free text "Red".
type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
	Text         string   `json:"text,omitempty"`
}

// BasicInformation is the release payload embedded in collection and wantlist items.
type BasicInformation struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Thumb      string   `json:"thumb"`
	CoverImage string   `json:"cover_image"`
	Artists    []Artist `json:"artists"`
	Labels     []Label  `json:"labels"`
	Formats    []Format `json:"formats"`
	Genres     []string `json:"genres,omitempty"`
	Styles     []string `json:"styles,omitempty"`
}

// NoteField is one entry of a structured notes array.
type NoteField struct {
	FieldID int    `json:"field_id"`
	Value   string `json:"value"`
}

// Notes holds either a plain note or the structured field list Discogs returns for
// collection items. At most one of the two forms is set.
type Notes struct {
	Plain  *string
	Fields []NoteField
}

// PlainNote builds a Notes value from a string.
func PlainNote(s string) Notes { return Notes{Plain: &s} }

// StructuredNotes builds a Notes value from field entries.
func StructuredNotes(fields ...NoteField) Notes { return Notes{Fields: fields} }

// UnmarshalJSON accepts a string, an array of {field_id,value}, or null.
func (n *Notes) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*n = Notes{}
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode notes string: %w", err)
		}
		n.Plain = &s
	case '[':
		if err := json.Unmarshal(data, &n.Fields); err != nil {
			return fmt.Errorf("decode notes fields: %w", err)
		}
	default:
		return fmt.Errorf("unsupported notes payload %q", string(data))
	}
	return nil
}

// MarshalJSON writes the form that was decoded.
func (n Notes) MarshalJSON() ([]byte, error) {
	switch {
	case n.Plain != nil:
		return json.Marshal(*n.Plain)
	case n.Fields != nil:
		return json.Marshal(n.Fields)
	}
	return []byte("null"), nil
}

// Text flattens the notes: structured values are joined with newlines. Absent notes
// yield "".
func (n Notes) Text() string {
	if n.Plain != nil {
		return *n.Plain
	}
	if len(n.Fields) == 0 {
		return ""
	}
	values := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		values[i] = f.Value
	}
	return strings.Join(values, "\n")
}

// Release is one collection, wantlist or suggestion entry.
type Release struct {
	ID               int64            `json:"id"`
	InstanceID       *int64           `json:"instance_id,omitempty"`
	FolderID         *int64           `json:"folder_id,omitempty"`
	Rating           int              `json:"rating"`
	BasicInformation BasicInformation `json:"basic_information"`
	Notes            Notes            `json:"notes"`
	DateAdded        string           `json:"date_added,omitempty"`
}

// Pagination is the page envelope Discogs returns with every list response.
type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// CollectionResponse is one page of a collection folder.
type CollectionResponse struct {
	Pagination Pagination `json:"pagination"`
	Releases   []Release  `json:"releases"`
}

// WantlistResponse is one page of the wantlist.
type WantlistResponse struct {
	Pagination Pagination `json:"pagination"`
	Wants      []Release  `json:"wants"`
}

// Page is the list-agnostic form of a single fetched page.
type Page struct {
	Pagination Pagination `json:"pagination"`
	Items      []Release  `json:"items"`
}

// SearchResult is one database search hit.
type SearchResult struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Year        string   `json:"year,omitempty"`
	Thumb       string   `json:"thumb,omitempty"`
	CoverImage  string   `json:"cover_image,omitempty"`
	Format      []string `json:"format,omitempty"`
	Label       []string `json:"label,omitempty"`
	Genre       []string `json:"genre,omitempty"`
	Catno       string   `json:"catno,omitempty"`
	ResourceURL string   `json:"resource_url"`
}

// SearchResults is one page of search hits.
type SearchResults struct {
	Results    []SearchResult `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// AddResult is the response to adding a release to a collection folder.
type AddResult struct {
	InstanceID  int64  `json:"instance_id"`
	ResourceURL string `json:"resource_url,omitempty"`
}
