package normalize

import (
	"testing"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
)

func str(v *string) string {
	if v == nil {
		return "<nil>"
	}
	return *v
}

func TestExtract(t *testing.T) {
	info := discogs.BasicInformation{
		ID:    1,
		Title: "Kind of Blue",
		Artists: []discogs.Artist{
			{Name: "Miles Davis"},
			{Name: "", ANV: "Coltrane"},
			{Name: " ", ANV: ""},
		},
		Labels: []discogs.Label{
			{Name: "Columbia", Catno: " "},
			{Name: "CBS", Catno: "CL 1355"},
		},
		Formats: []discogs.Format{
			{Name: "Vinyl", Qty: "1", Descriptions: []string{"LP"}, Text: "Blue Marble"},
		},
		Genres: []string{"Jazz", "Modal"},
		Styles: []string{"Cool Jazz"},
	}

	got := Extract(info)

	checks := []struct {
		name string
		got  *string
		want string
	}{
		{"primary artist", got.PrimaryArtist, "Miles Davis"},
		{"all artists", got.AllArtists, "Miles Davis, Coltrane"},
		{"primary genre", got.PrimaryGenre, "Jazz"},
		{"primary style", got.PrimaryStyle, "Cool Jazz"},
		{"primary format", got.PrimaryFormat, "Vinyl"},
		{"vinyl color", got.VinylColor, "Blue Marble"},
		{"catalog number", got.CatalogNumber, "CL 1355"},
		{"record label", got.RecordLabel, "Columbia"},
	}
	for _, c := range checks {
		if str(c.got) != c.want {
			t.Errorf("%s: expected %q, got %q", c.name, c.want, str(c.got))
		}
	}
}

func TestExtractEmptyPayload(t *testing.T) {
	got := Extract(discogs.BasicInformation{})
	if got != (models.NormalizedFields{}) {
		t.Fatalf("expected all nil fields, got %+v", got)
	}
}

func TestPrimaryArtistFallsBackToVariation(t *testing.T) {
	got := Extract(discogs.BasicInformation{Artists: []discogs.Artist{{ANV: "Prince"}}})
	if str(got.PrimaryArtist) != "Prince" {
		t.Fatalf("expected ANV fallback, got %q", str(got.PrimaryArtist))
	}
}

func TestVinylColor(t *testing.T) {
	tests := []struct {
		name    string
		formats []discogs.Format
		want    *string
	}{
		{
			name:    "cleans commas and spacing",
			formats: []discogs.Format{{Name: "Vinyl", Text: "Red,  Black Splatter,  "}},
			want:    ptr("Red, Black Splatter"),
		},
		{
			name:    "matches vinyl case-insensitively",
			formats: []discogs.Format{{Name: "CD"}, {Name: "2xVINYL", Text: "Clear"}},
			want:    ptr("Clear"),
		},
		{
			name:    "any format with text",
			formats: []discogs.Format{{Name: "Cassette", Text: "Yellow"}},
			want:    ptr("Yellow"),
		},
		{
			name:    "commas only",
			formats: []discogs.Format{{Name: "Vinyl", Text: "  ,  "}},
		},
		{
			name:    "vinyl without text",
			formats: []discogs.Format{{Name: "Vinyl", Descriptions: []string{"LP"}}},
		},
		{
			name:    "no vinyl",
			formats: []discogs.Format{{Name: "CD"}, {Name: "Cassette"}},
		},
		{
			name: "empty",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := VinylColor(tc.formats)
			if str(got) != str(tc.want) {
				t.Fatalf("expected %q, got %q", str(tc.want), str(got))
			}
		})
	}
}

func TestSortFieldsOf(t *testing.T) {
	year := 1959
	release := models.Release{
		Title: "Kind of Blue",
		Year:  &year,
		NormalizedFields: models.NormalizedFields{
			PrimaryArtist: ptr("Miles Davis"),
			VinylColor:    ptr("Black"),
		},
	}

	got := SortFieldsOf(release)
	if str(got.Title) != "Kind of Blue" || str(got.PrimaryArtist) != "Miles Davis" || str(got.VinylColor) != "Black" {
		t.Fatalf("unexpected sort fields %+v", got)
	}
	if got.Year == nil || *got.Year != 1959 {
		t.Fatalf("expected year 1959, got %v", got.Year)
	}
	if got.PrimaryGenre != nil || got.AllArtists != nil || got.PrimaryFormat != nil {
		t.Fatalf("expected unset fields to stay nil, got %+v", got)
	}
}
