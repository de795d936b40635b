// Package normalize derives flat, sortable fields from Discogs release payloads.
package normalize

import (
	"regexp"
	"strings"

	"vinylsync/internal/discogs"
	"vinylsync/internal/models"
)

var (
	trailingComma = regexp.MustCompile(`,\s*$`)
	commaSpacing  = regexp.MustCompile(`,\s+`)
)

// Extract computes the normalized scalars for a release. Empty inputs yield nil
// fields.
func Extract(info discogs.BasicInformation) models.NormalizedFields {
	return models.NormalizedFields{
		PrimaryArtist: primaryArtist(info.Artists),
		AllArtists:    allArtists(info.Artists),
		PrimaryGenre:  first(info.Genres),
		PrimaryStyle:  first(info.Styles),
		PrimaryFormat: primaryFormat(info.Formats),
		VinylColor:    VinylColor(info.Formats),
		CatalogNumber: catalogNumber(info.Labels),
		RecordLabel:   recordLabel(info.Labels),
	}
}

// SortFieldsOf projects a stored release onto the fields copied to list rows.
func SortFieldsOf(r models.Release) models.SortFields {
	title := r.Title
	return models.SortFields{
		Title:         &title,
		PrimaryArtist: r.PrimaryArtist,
		AllArtists:    r.AllArtists,
		Year:          r.Year,
		PrimaryGenre:  r.PrimaryGenre,
		PrimaryFormat: r.PrimaryFormat,
		VinylColor:    r.VinylColor,
	}
}

func artistName(a discogs.Artist) string {
	if strings.TrimSpace(a.Name) != "" {
		return a.Name
	}
	return a.ANV
}

func primaryArtist(artists []discogs.Artist) *string {
	if len(artists) == 0 {
		return nil
	}
	return nonEmpty(artistName(artists[0]))
}

func allArtists(artists []discogs.Artist) *string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if name := artistName(a); strings.TrimSpace(name) != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return ptr(strings.Join(names, ", "))
}

func primaryFormat(formats []discogs.Format) *string {
	if len(formats) == 0 {
		return nil
	}
	return ptr(formats[0].Name)
}

// VinylColor returns the cleaned free text of the first vinyl format, or of the first
// format carrying free text at all.
func VinylColor(formats []discogs.Format) *string {
	for _, f := range formats {
		if !strings.Contains(strings.ToLower(f.Name), "vinyl") && f.Text == "" {
			continue
		}
		if f.Text == "" {
			return nil
		}
		color := trailingComma.ReplaceAllString(f.Text, "")
		color = commaSpacing.ReplaceAllString(color, ", ")
		return nonEmpty(strings.TrimSpace(color))
	}
	return nil
}

func catalogNumber(labels []discogs.Label) *string {
	for _, l := range labels {
		if strings.TrimSpace(l.Catno) != "" {
			return ptr(l.Catno)
		}
	}
	return nil
}

func recordLabel(labels []discogs.Label) *string {
	if len(labels) == 0 {
		return nil
	}
	return ptr(labels[0].Name)
}

func first(values []string) *string {
	if len(values) == 0 {
		return nil
	}
	return ptr(values[0])
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func ptr(s string) *string { return &s }
