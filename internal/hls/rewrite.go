package hls

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hweng-dev/adsplice/internal/domain/model"
)

// ProxyMode selects how rewritten segment and key URLs are proxied.
type ProxyMode string

const (
	// ProxyModePassthrough emits absolutized URLs unmodified.
	ProxyModePassthrough ProxyMode = "passthrough"
	// ProxyModeCORS prefixes absolutized URLs with a CORS-proxy origin.
	ProxyModeCORS ProxyMode = "cors"
	// ProxyModeFull rewrites URLs onto this service's own segment-proxy
	// endpoint with the original URL as a query parameter.
	ProxyModeFull ProxyMode = "full"
)

// ParseProxyMode maps a configuration value to a ProxyMode, defaulting
// to passthrough for unknown values.
func ParseProxyMode(s string) ProxyMode {
	switch ProxyMode(strings.ToLower(strings.TrimSpace(s))) {
	case ProxyModeCORS:
		return ProxyModeCORS
	case ProxyModeFull:
		return ProxyModeFull
	default:
		return ProxyModePassthrough
	}
}

// URLRewriter absolutizes playlist references against the source base
// URL and applies the configured proxy mode.
type URLRewriter struct {
	Base          *url.URL
	Mode          ProxyMode
	CORSPrefix    string // CORS-proxy origin, prepended to the absolute URL
	ProxyEndpoint string // own segment-proxy endpoint for ProxyModeFull
	OwnHost       string // URLs on this host are never re-proxied
}

// Rewrite returns the client-facing form of one playlist reference.
func (rw *URLRewriter) Rewrite(ref string) string {
	abs := ref
	if rw.Base != nil {
		if u, err := rw.Base.Parse(ref); err == nil {
			abs = u.String()
		}
	}

	if rw.OwnHost != "" {
		if u, err := url.Parse(abs); err == nil && u.Host == rw.OwnHost {
			return abs
		}
	}

	switch rw.Mode {
	case ProxyModeCORS:
		if rw.CORSPrefix == "" {
			return abs
		}
		return rw.CORSPrefix + abs
	case ProxyModeFull:
		if rw.ProxyEndpoint == "" {
			return abs
		}
		return rw.ProxyEndpoint + "?url=" + url.QueryEscape(abs)
	default:
		return abs
	}
}

// rewriteKeyLine rewrites the URI attribute of an EXT-X-KEY tag.
func (rw *URLRewriter) rewriteKeyLine(line string) string {
	const attr = `URI="`
	start := strings.Index(line, attr)
	if start < 0 {
		return line
	}
	start += len(attr)
	end := strings.Index(line[start:], `"`)
	if end < 0 {
		return line
	}
	end += start
	return line[:start] + rw.Rewrite(line[start:end]) + line[end:]
}

// AdURLFunc resolves the media URL to splice in for one placement.
// Returning false means no segment is available; the slot is consumed
// without output.
type AdURLFunc func(p *model.AdPlacement) (string, bool)

// RewriteOptions configures one splicing pass over a stripped playlist.
type RewriteOptions struct {
	URLs           *URLRewriter
	Placements     []*model.AdPlacement
	AdURL          AdURLFunc
	SegmentsToSkip int // leading content segments dropped when a pre-roll is assigned
}

// RewriteResult reports what one splicing pass produced.
type RewriteResult struct {
	Playlist        string
	ContentSegments int
	AdsInjected     int
}

// Rewrite walks the playlist linearly, splicing due ad placements before
// content segments, absolutizing and proxying every URL, and preserving
// the terminal ENDLIST tag.
//
// The encryption-key deferral invariant: while a pre-roll slot is
// assigned and not yet injected, an encountered AES-128 key tag is held
// back and re-emitted only after the pre-roll's segment and
// discontinuity, so the unencrypted ad is never covered by a stale key
// declaration.
func Rewrite(lines []string, opts RewriteOptions) RewriteResult {
	var b strings.Builder

	if opts.URLs == nil {
		opts.URLs = &URLRewriter{}
	}

	total := CountSegments(lines)

	var (
		pendingKey     string
		pendingExtInf  string
		progressed     int
		emitted        int
		skipped        int
		injected       int
		sawEndList     bool
		prerollSpliced bool
	)

	prerollPending := func() bool {
		for _, p := range opts.Placements {
			if p.Role == model.RolePreroll && p.Assigned() && !p.Injected() {
				return true
			}
		}
		return false
	}

	flushPendingKey := func() {
		if pendingKey != "" {
			b.WriteString(pendingKey)
			b.WriteByte('\n')
			pendingKey = ""
		}
	}

	injectDue := func(progress float64) {
		for _, p := range opts.Placements {
			if p.Injected() || !p.Assigned() || p.Percentage > progress {
				continue
			}
			adURL, ok := opts.AdURL(p)
			if !ok {
				// Slot consumed with nothing to splice; release any
				// deferred key at its original position.
				_ = p.MarkInjected()
				flushPendingKey()
				continue
			}
			b.WriteString(tagKey + ":METHOD=NONE\n")
			b.WriteString(fmt.Sprintf(tagExtInf+":%.3f,\n", adSegmentSeconds))
			b.WriteString(adURL)
			b.WriteByte('\n')
			b.WriteString(tagDiscontinuity + "\n")
			_ = p.MarkInjected()
			injected++
			if p.Role == model.RolePreroll {
				prerollSpliced = true
			}
			flushPendingKey()
		}
	}

	for _, line := range lines {
		switch {
		case isSegmentURI(line):
			progress := 0.0
			if total > 0 {
				progress = float64(progressed) / float64(total) * 100
			}
			injectDue(progress)
			progressed++

			// Segments presumed redundant with the injected pre-roll's
			// runtime still advance progress but produce no output.
			// Only a pre-roll that actually made it into the output
			// buys the right to drop content.
			if prerollSpliced && skipped < opts.SegmentsToSkip {
				skipped++
				pendingExtInf = ""
				continue
			}

			if pendingExtInf != "" {
				b.WriteString(pendingExtInf)
				b.WriteByte('\n')
				pendingExtInf = ""
			}
			b.WriteString(opts.URLs.Rewrite(line))
			b.WriteByte('\n')
			emitted++

		case strings.HasPrefix(line, tagExtInf+":"):
			pendingExtInf = line

		case strings.HasPrefix(line, tagKey+":"):
			rewritten := opts.URLs.rewriteKeyLine(line)
			if isAESKeyTag(line) && prerollPending() {
				pendingKey = rewritten
				continue
			}
			b.WriteString(rewritten)
			b.WriteByte('\n')

		case line == tagEndList:
			sawEndList = true

		default:
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	// Post-roll (and any slot the walk never reached) goes after the
	// last content segment.
	injectDue(100)
	flushPendingKey()

	if sawEndList {
		b.WriteString(tagEndList + "\n")
	}

	return RewriteResult{
		Playlist:        b.String(),
		ContentSegments: emitted,
		AdsInjected:     injected,
	}
}

// adSegmentSeconds is the synthetic EXTINF duration for spliced ad segments.
const adSegmentSeconds = 3.0
