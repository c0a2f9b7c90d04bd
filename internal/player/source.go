package player

import "strings"

// Spotify content types the normalizer understands
var spotifyTypes = []string{"playlist", "album", "artist", "track"}

const spotifyURLPrefix = "https://open.spotify.com/"

// Normalize rewrites a media source into the form required by the given
// capability kind. Unrecognized sources are returned unchanged, never an
// error.
func Normalize(source string, kind Kind) string {
	if kind == ManagedService {
		return NormalizeManaged(source)
	}
	return NormalizeUniversal(source)
}

// NormalizeUniversal converts Spotify URI forms to canonical open.spotify.com
// URLs, which both standard and Music Assistant players accept. Canonical
// URLs and non-Spotify sources pass through unchanged, so the function is
// idempotent.
func NormalizeUniversal(source string) string {
	if source == "" {
		return source
	}

	for _, typ := range spotifyTypes {
		// spotify:playlist:ID and spotify://playlist:ID
		for _, prefix := range []string{"spotify:" + typ + ":", "spotify://" + typ + ":"} {
			if strings.HasPrefix(source, prefix) {
				return spotifyURLPrefix + typ + "/" + source[len(prefix):]
			}
		}
		// spotify://playlist/ID
		if prefix := "spotify://" + typ + "/"; strings.HasPrefix(source, prefix) {
			return spotifyURLPrefix + typ + "/" + source[len(prefix):]
		}
	}

	// URLs, library:// references and anything else pass as-is
	return source
}

// NormalizeManaged rewrites a source into the slash-separated spotify://
// URI form the Music Assistant service requires. Colon-separated URI forms
// are reslashed, canonical URLs are converted back to URIs (query strings
// dropped), and pass-through forms (stream URLs, library://) are unmodified.
func NormalizeManaged(source string) string {
	if source == "" {
		return source
	}

	for _, typ := range spotifyTypes {
		for _, prefix := range []string{"spotify:" + typ + ":", "spotify://" + typ + ":"} {
			if strings.HasPrefix(source, prefix) {
				return "spotify://" + typ + "/" + source[len(prefix):]
			}
		}
	}

	if strings.HasPrefix(source, spotifyURLPrefix) {
		rest := source[len(spotifyURLPrefix):]
		for _, typ := range spotifyTypes {
			if strings.HasPrefix(rest, typ+"/") {
				id := rest[len(typ)+1:]
				if i := strings.IndexByte(id, '?'); i >= 0 {
					id = id[:i]
				}
				return "spotify://" + typ + "/" + id
			}
		}
	}

	return source
}

// SourceType describes a media source for diagnostics
type SourceType string

const (
	SourceSpotify      SourceType = "spotify"
	SourceYouTubeMusic SourceType = "youtube_music"
	SourceURL          SourceType = "url"
	SourceLibrary      SourceType = "library"
	SourceOther        SourceType = "other"
)

// DetectSourceType identifies the kind of media source for logging and
// failure-message classification.
func DetectSourceType(source string) SourceType {
	switch {
	case IsYouTubeMusicSource(source):
		return SourceYouTubeMusic
	case strings.HasPrefix(source, "spotify:") || strings.HasPrefix(source, "spotify://") ||
		strings.Contains(source, "open.spotify.com"):
		return SourceSpotify
	case strings.HasPrefix(source, "library://"):
		return SourceLibrary
	case strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://"):
		return SourceURL
	default:
		return SourceOther
	}
}

// IsYouTubeMusicSource reports whether a source is a YouTube Music reference,
// in either the simplified youtube_music:type:id form or a full
// music.youtube.com URL.
func IsYouTubeMusicSource(source string) bool {
	if source == "" {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(source))

	if strings.HasPrefix(lower, "youtube_music:") {
		parts := strings.SplitN(lower, ":", 3)
		if len(parts) >= 3 {
			switch parts[1] {
			case "playlist", "track", "album":
				return true
			}
		}
		return false
	}

	if strings.Contains(lower, "music.youtube.com") {
		if strings.Contains(lower, "/playlist") && strings.Contains(lower, "list=") {
			return true
		}
		if strings.Contains(lower, "/watch") && strings.Contains(lower, "v=") {
			return true
		}
		if strings.Contains(lower, "/album/") {
			return true
		}
	}

	return false
}
