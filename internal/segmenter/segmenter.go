// Package segmenter turns incrementally buffered script text into speakable
// sentences and pause directives.
package segmenter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind discriminates segment variants.
type Kind int

const (
	KindText Kind = iota
	KindPause
)

// Segment is one atomic unit of a meditation script: either a speakable
// sentence or an explicit silence.
type Segment struct {
	Kind     Kind
	Content  string  // trimmed sentence text when Kind is KindText
	Duration float64 // seconds of silence when Kind is KindPause
}

// Pause directives look like "[5s]". Anything malformed, such as "[abcs]",
// never matches and flows through as ordinary text.
var pauseDirective = regexp.MustCompile(`\[(\d+)s\]`)

const terminators = "。！？.!?\n"

// Split consumes buffer and returns every complete segment in order plus the
// unconsumed remainder. A trailing sentence without a terminator stays in the
// remainder until more text arrives or the caller flushes.
func Split(buffer string) ([]Segment, string) {
	var segments []Segment
	rest := buffer
	for {
		loc := pauseDirective.FindStringSubmatchIndex(rest)
		if loc != nil {
			segments = appendText(segments, rest[:loc[0]])
			if d, err := strconv.Atoi(rest[loc[2]:loc[3]]); err == nil && d > 0 {
				segments = append(segments, Segment{Kind: KindPause, Duration: float64(d)})
			}
			rest = rest[loc[1]:]
			continue
		}
		if end := lastBoundary(rest); end > 0 {
			segments = appendSentences(segments, rest[:end])
			rest = rest[end:]
		}
		return segments, rest
	}
}

// Flush converts a terminal remainder into its final text segment. The
// second return is false when nothing speakable remains.
func Flush(remainder string) (Segment, bool) {
	trimmed := strings.TrimSpace(remainder)
	if trimmed == "" {
		return Segment{}, false
	}
	return Segment{Kind: KindText, Content: trimmed}, true
}

// lastBoundary returns the byte offset just past the last sentence
// terminator in s, or 0 when s holds no complete sentence.
func lastBoundary(s string) int {
	end := 0
	for i, r := range s {
		if strings.ContainsRune(terminators, r) {
			end = i + utf8.RuneLen(r)
		}
	}
	return end
}

// appendSentences splits complete into sentences, treating a run of
// consecutive terminators as a single sentence ending.
func appendSentences(segments []Segment, complete string) []Segment {
	start := 0
	inRun := false
	for i, r := range complete {
		if strings.ContainsRune(terminators, r) {
			inRun = true
			continue
		}
		if inRun {
			segments = appendText(segments, complete[start:i])
			start = i
			inRun = false
		}
	}
	return appendText(segments, complete[start:])
}

func appendText(segments []Segment, candidate string) []Segment {
	if trimmed := strings.TrimSpace(candidate); trimmed != "" {
		segments = append(segments, Segment{Kind: KindText, Content: trimmed})
	}
	return segments
}
