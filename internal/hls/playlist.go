// Package hls processes media playlists as line-oriented text: foreign
// ad stripping, duration accounting, and ad-splicing rewrites.
package hls

import (
	"strconv"
	"strings"
)

const (
	tagHeader        = "#EXTM3U"
	tagExtInf        = "#EXTINF"
	tagKey           = "#EXT-X-KEY"
	tagDiscontinuity = "#EXT-X-DISCONTINUITY"
	tagEndList       = "#EXT-X-ENDLIST"
)

// stripKeyWindow is how many lines after a discontinuity are scanned for
// the content's AES-128 key tag when deciding whether the block before
// the discontinuity was a foreign ad.
const stripKeyWindow = 6

// Lines splits playlist text into trimmed lines, dropping blank ones.
func Lines(playlist string) []string {
	raw := strings.Split(strings.ReplaceAll(playlist, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// isSegmentURI reports whether a playlist line is a media segment reference.
func isSegmentURI(line string) bool {
	return line != "" && !strings.HasPrefix(line, "#")
}

// CountSegments returns the number of media segment references.
func CountSegments(lines []string) int {
	n := 0
	for _, l := range lines {
		if isSegmentURI(l) {
			n++
		}
	}
	return n
}

// FirstSegmentURI returns the first media segment reference, or "" when
// the playlist has none.
func FirstSegmentURI(lines []string) string {
	for _, l := range lines {
		if isSegmentURI(l) {
			return l
		}
	}
	return ""
}

// TotalDuration sums all EXTINF durations in seconds. Malformed EXTINF
// lines contribute zero; a playlist without EXTINF has duration zero.
func TotalDuration(lines []string) float64 {
	var total float64
	for _, l := range lines {
		total += extInfDuration(l)
	}
	return total
}

// extInfDuration parses "#EXTINF:<seconds>[,<title>]" and returns the
// duration, or 0 when the line is not a parseable EXTINF tag.
func extInfDuration(line string) float64 {
	if !strings.HasPrefix(line, tagExtInf+":") {
		return 0
	}
	v := strings.TrimPrefix(line, tagExtInf+":")
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// isAESKeyTag reports whether the line declares AES-128 encryption.
func isAESKeyTag(line string) bool {
	return strings.HasPrefix(line, tagKey+":") && strings.Contains(line, "METHOD=AES-128")
}

// isPlainKeyTag reports whether the line is a key tag that declares no
// encryption (METHOD=NONE).
func isPlainKeyTag(line string) bool {
	return strings.HasPrefix(line, tagKey+":") && strings.Contains(line, "METHOD=NONE")
}

// StripForeignAds detects and removes a third-party pre-roll ad block:
// unencrypted segments before the first discontinuity, followed within a
// few lines by the content's AES-128 key tag. Blocks larger than
// maxSegments are assumed to be real content and left untouched.
//
// Returns the (possibly) stripped lines and the number of segment
// references dropped.
func StripForeignAds(lines []string, maxSegments int) ([]string, int) {
	disc := -1
	for i, l := range lines {
		if l == tagDiscontinuity {
			disc = i
			break
		}
	}
	if disc < 0 {
		return lines, 0
	}

	segsBefore := CountSegments(lines[:disc])
	if segsBefore == 0 || segsBefore > maxSegments {
		return lines, 0
	}

	// The block qualifies only when it is unencrypted. Any non-NONE key
	// declaration before the discontinuity means real encrypted content.
	for _, l := range lines[:disc] {
		if strings.HasPrefix(l, tagKey+":") && !isPlainKeyTag(l) {
			return lines, 0
		}
	}

	// And the real content must re-declare AES-128 shortly after the splice.
	end := disc + 1 + stripKeyWindow
	if end > len(lines) {
		end = len(lines)
	}
	keyed := false
	for _, l := range lines[disc+1 : end] {
		if isAESKeyTag(l) {
			keyed = true
			break
		}
	}
	if !keyed {
		return lines, 0
	}

	// Drop the ad block and its leading unencrypted key tag, keeping the
	// header tags that precede it.
	out := make([]string, 0, len(lines)-segsBefore)
	for _, l := range lines[:disc] {
		switch {
		case strings.HasPrefix(l, tagExtInf+":"):
		case isSegmentURI(l):
		case isPlainKeyTag(l):
			// Leading key of the foreign block.
		default:
			out = append(out, l)
		}
	}
	out = append(out, lines[disc+1:]...)

	return out, segsBefore
}
