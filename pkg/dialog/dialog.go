// Package dialog defines the shared data model for the voxnorm pipeline.
//
// These types form the lingua franca between the ingest, normalization, and
// role-mapping stages. Each stage defines its own behaviour, but the
// cross-cutting data structures live here to avoid circular imports: the raw
// engine result shape ([EngineResult]), the turn-level intermediate
// representation ([Dialog], [Turn]), and the downstream-facing outputs
// ([RoleMap], [NormalizedItem]).
//
// All structures are constructed once and never mutated afterwards; the
// pipeline stages that produce them are pure functions over in-memory data.
package dialog

import "time"

// SourceTranscribe is the metadata source literal for batch engine results.
const SourceTranscribe = "aws_transcribe"

// Role is the clinical function of a speaker, inferred from diarized labels.
type Role string

const (
	RolePatient   Role = "PATIENT"
	RoleClinician Role = "CLINICIAN"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RolePatient {
		return RoleClinician
	}
	return RolePatient
}

// RoleMap maps each diarized speaker label to a clinical role. Every distinct
// label appearing in a dialog's turns has exactly one entry; multiple labels
// may map to the same role.
type RoleMap map[string]Role

// Turn is a contiguous stretch of dialogue attributed to one diarized speaker
// label, with aggregated text, time bounds, and confidence.
type Turn struct {
	// Speaker is the diarized label as emitted by the engine (e.g., "spk_0").
	// It is an opaque identifier, not a real identity.
	Speaker string `json:"speaker"`

	// StartTime and EndTime are the turn bounds in seconds. Consecutive
	// turns may leave gaps; they are never required to be contiguous.
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// Text is the concatenated token text: words separated by single
	// spaces, punctuation glued to the preceding word.
	Text string `json:"text"`

	// Confidence is the duration-weighted mean of the constituent word
	// confidences, in [0, 1].
	Confidence float64 `json:"confidence"`

	// IsPartial is reserved for streaming use; batch ingest always
	// produces false.
	IsPartial bool `json:"isPartial"`
}

// Duration returns the turn length in seconds.
func (t Turn) Duration() float64 { return t.EndTime - t.StartTime }

// Metadata describes the provenance and aggregate shape of a [Dialog].
type Metadata struct {
	// Source identifies the engine that produced the input.
	Source string `json:"source"`

	// Language is the BCP 47 tag the transcript was recognised in.
	Language string `json:"language"`

	// TotalDuration is the maximum end time in seconds across all
	// diarization segments, 0 when there are none.
	TotalDuration float64 `json:"totalDuration"`

	// SpeakerCount is the number of distinct diarized labels.
	SpeakerCount int `json:"speakerCount"`

	// CreatedAt records when the dialog was built.
	CreatedAt time.Time `json:"createdAt"`
}

// Dialog is the turn-level intermediate representation produced by ingest.
type Dialog struct {
	Turns    []Turn   `json:"turns"`
	Metadata Metadata `json:"metadata"`
}

// Speakers returns the distinct speaker labels in first-appearance order
// across the dialog's turns.
func (d *Dialog) Speakers() []string {
	if d == nil {
		return nil
	}
	seen := make(map[string]struct{}, 2)
	var order []string
	for _, t := range d.Turns {
		if _, ok := seen[t.Speaker]; ok {
			continue
		}
		seen[t.Speaker] = struct{}{}
		order = append(order, t.Speaker)
	}
	return order
}

// Bucket is one of exactly two canonical speaker identities that an arbitrary
// number of diarized labels are collapsed into by the normalizer.
type Bucket string

const (
	BucketA Bucket = "A"
	BucketB Bucket = "B"
)

// NormalizedItem is one token of the normalizer's output stream: per-token
// granularity, bucketed to A/B, with filler words flagged but retained.
type NormalizedItem struct {
	T0     float64 `json:"t0"`
	T1     float64 `json:"t1"`
	Bucket Bucket  `json:"bucket"`
	Text   string  `json:"text"`
	Conf   float64 `json:"conf"`
	Filler bool    `json:"filler,omitempty"`
}
