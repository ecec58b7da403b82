package rules

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/osa030/replaybox/internal/domain/track"
)

// keySeparator joins the name and artist parts of a key.
const keySeparator = "\x1f"

var whitespace = regexp.MustCompile(`\s+`)

// versionPatterns strip remaster and edition markers from song titles.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
	regexp.MustCompile(`\s*-\s*remaster(ed)?\s+\d{4}`),       // "- Remastered 2009"
	regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
	regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
	regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
	regexp.MustCompile(`\s*\(.*?remaster.*?\)`),
	regexp.MustCompile(`\s*\[.*?remaster.*?\]`),
	regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
	regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
	regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
	regexp.MustCompile(`\s*-\s*live\b.*$`),         // "- Live at Wembley"
	regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
	regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
}

// Fold returns the case, whitespace and Unicode-composition insensitive form of s.
func Fold(s string) string {
	s = norm.NFC.String(s)
	s = strings.ToLower(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// foldArtist folds an artist name, mapping blanks to the unknown-artist bucket.
func foldArtist(artist string) string {
	a := Fold(artist)
	if a == "" {
		return Fold(track.UnknownArtist)
	}
	return a
}

// StripVersion removes remaster/edit/live suffixes from an already folded title.
func StripVersion(name string) string {
	stripped := name
	for _, p := range versionPatterns {
		stripped = p.ReplaceAllString(stripped, "")
	}
	stripped = strings.TrimSpace(whitespace.ReplaceAllString(stripped, " "))
	stripped = strings.TrimRight(stripped, " -")
	if stripped == "" {
		// A title that is nothing but a marker keeps its own identity.
		return name
	}
	return stripped
}

// Normalizer derives grouping keys, consulting a Table for album aliases.
type Normalizer struct {
	table         *Table
	stripVersions bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithVersionStripping makes song keys ignore remaster/edit/live suffixes.
func WithVersionStripping(enabled bool) Option {
	return func(n *Normalizer) {
		n.stripVersions = enabled
	}
}

// NewNormalizer creates a Normalizer. table may be nil.
func NewNormalizer(table *Table, opts ...Option) *Normalizer {
	n := &Normalizer{table: table}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Key returns the alias-resolved grouping key for (name, artist).
func (n *Normalizer) Key(name, artist string) string {
	if base, ok := n.table.Canonical(name, artist); ok {
		name = base
	}
	return Fold(name) + keySeparator + foldArtist(artist)
}

// CanonicalName returns the rule's base name when one applies.
// ok is false when the caller should keep the record's own casing.
func (n *Normalizer) CanonicalName(name, artist string) (string, bool) {
	return n.table.Canonical(name, artist)
}

// SongKey returns the grouping key for a song. Album aliases do not apply to songs.
func (n *Normalizer) SongKey(name, artist string) string {
	folded := Fold(name)
	if n.stripVersions {
		folded = StripVersion(folded)
	}
	return folded + keySeparator + foldArtist(artist)
}

// ArtistKey returns the grouping key for an artist.
func (n *Normalizer) ArtistKey(name string) string {
	return foldArtist(name)
}

// JoinedArtistsKey folds a full artist credit into one comparable string.
func JoinedArtistsKey(artists []string) string {
	folded := make([]string, 0, len(artists))
	for _, a := range artists {
		if f := Fold(a); f != "" {
			folded = append(folded, f)
		}
	}
	return strings.Join(folded, ", ")
}
