package dialog

import (
	"strconv"
	"strings"
)

// Engine item types as emitted by the transcription engine.
const (
	ItemPronunciation = "pronunciation"
	ItemPunctuation   = "punctuation"
)

// EngineResult is the raw JSON document produced by the speech-recognition
// engine (AWS Transcribe batch output shape). All numeric fields arrive as
// strings and must be parsed with [ParseNum] — engine output is treated as
// imperfect, never as programmer error.
//
// Depending on engine configuration the diarization section appears either at
// the top level or nested under Results; [EngineResult.Segments] abstracts
// over both placements.
type EngineResult struct {
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
	Results       *Results       `json:"results,omitempty"`
}

// Results holds the flat token stream of the engine result.
type Results struct {
	Items []Item `json:"items,omitempty"`

	// SpeakerLabels is the nested placement of the diarization section,
	// used by some engine configurations instead of the top-level field.
	SpeakerLabels *SpeakerLabels `json:"speaker_labels,omitempty"`
}

// SpeakerLabels is the diarization section of an engine result.
type SpeakerLabels struct {
	Segments []Segment `json:"segments"`
}

// Segment is a span of time attributed to one diarized speaker label,
// enumerating which item time-ranges belong to it.
type Segment struct {
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	SpeakerLabel string        `json:"speaker_label"`
	Items        []SegmentItem `json:"items"`
}

// Start returns the segment start time in seconds.
func (s Segment) Start() float64 { return ParseNum(s.StartTime) }

// End returns the segment end time in seconds.
func (s Segment) End() float64 { return ParseNum(s.EndTime) }

// SegmentItem is one item time-range inside a [Segment]. Some engine
// configurations attach the token content and confidence directly to the
// segment item; both fields are empty otherwise.
type SegmentItem struct {
	StartTime    string `json:"start_time,omitempty"`
	EndTime      string `json:"end_time,omitempty"`
	SpeakerLabel string `json:"speaker_label,omitempty"`
	Content      string `json:"content,omitempty"`
	Confidence   string `json:"confidence,omitempty"`
}

// Start returns the item start time in seconds.
func (it SegmentItem) Start() float64 { return ParseNum(it.StartTime) }

// End returns the item end time in seconds.
func (it SegmentItem) End() float64 { return ParseNum(it.EndTime) }

// Item is one token of the flat result stream. Pronunciation items carry
// timing; punctuation items do not and belong to the preceding word.
type Item struct {
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	Type         string        `json:"type"`
	Alternatives []Alternative `json:"alternatives"`
	SpeakerLabel string        `json:"speaker_label,omitempty"`
}

// Alternative is one recognition hypothesis for an [Item]. The engine lists
// the best hypothesis first.
type Alternative struct {
	Confidence string `json:"confidence,omitempty"`
	Content    string `json:"content"`
}

// Start returns the item start time in seconds.
func (it Item) Start() float64 { return ParseNum(it.StartTime) }

// End returns the item end time in seconds.
func (it Item) End() float64 { return ParseNum(it.EndTime) }

// Content returns the best hypothesis text, or "" when the engine emitted no
// alternatives.
func (it Item) Content() string {
	if len(it.Alternatives) == 0 {
		return ""
	}
	return it.Alternatives[0].Content
}

// Confidence returns the best hypothesis confidence, or 0 when the engine
// emitted no alternatives.
func (it Item) Confidence() float64 {
	if len(it.Alternatives) == 0 {
		return 0
	}
	return ParseNum(it.Alternatives[0].Confidence)
}

// Segments returns the diarization segments regardless of whether the engine
// placed them at the top level or under the results section. Returns nil when
// neither placement is present.
func (r *EngineResult) Segments() []Segment {
	if r == nil {
		return nil
	}
	if r.SpeakerLabels != nil {
		return r.SpeakerLabels.Segments
	}
	if r.Results != nil && r.Results.SpeakerLabels != nil {
		return r.Results.SpeakerLabels.Segments
	}
	return nil
}

// HasSpeakerLabels reports whether the result contains a diarization section
// in either placement. An empty-but-present section counts as present.
func (r *EngineResult) HasSpeakerLabels() bool {
	if r == nil {
		return false
	}
	return r.SpeakerLabels != nil || (r.Results != nil && r.Results.SpeakerLabels != nil)
}

// ParseNum parses a numeric engine field (timestamp or confidence). The
// engine serialises numbers as strings and occasionally emits garbage;
// unparsable or empty values yield 0 rather than an error. This is the single
// place where the zero-on-failure policy for engine numerics lives.
func ParseNum(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
