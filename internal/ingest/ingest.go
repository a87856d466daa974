// Package ingest converts a raw engine result into the turn-level dialog
// representation: one turn per diarization segment, in temporal order, with
// merged text and a duration-weighted confidence score.
package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

// Structural input errors. The engine result is untrusted, so both are
// surfaced as wrapped errors rather than panics; callers branch with
// [errors.Is].
var (
	// ErrMissingSpeakerLabels indicates the result carries no diarization
	// section at all, so turns cannot be attributed to speakers.
	ErrMissingSpeakerLabels = errors.New("engine result missing speaker_labels")

	// ErrMissingResults indicates the diarization section is present but
	// the flat token stream is not; both are required to reconstruct turns.
	ErrMissingResults = errors.New("engine result missing speaker_labels or results items")
)

// defaultLanguage is used when the caller does not override it. The engine
// result itself carries no language field.
const defaultLanguage = "fr-CA"

// Option configures an [Ingestor].
type Option func(*Ingestor)

// WithLanguage sets the language tag recorded in the dialog metadata.
// Default: "fr-CA".
func WithLanguage(lang string) Option {
	return func(ing *Ingestor) {
		ing.language = lang
	}
}

// WithClock overrides the clock used for the metadata CreatedAt field.
// Intended for tests that need deterministic output.
func WithClock(now func() time.Time) Option {
	return func(ing *Ingestor) {
		ing.now = now
	}
}

// Ingestor builds dialogs from engine results. It is read-only after
// construction and safe for concurrent use.
type Ingestor struct {
	language string
	now      func() time.Time
}

// New returns an [Ingestor] configured with the supplied options.
func New(opts ...Option) *Ingestor {
	ing := &Ingestor{
		language: defaultLanguage,
		now:      time.Now,
	}
	for _, o := range opts {
		o(ing)
	}
	return ing
}

// Execute parses res into a [dialog.Dialog]: one turn per diarization
// segment, emitted in temporal order.
//
// An empty-but-present diarization section succeeds with zero turns and
// all-zero aggregates. A result missing the diarization section fails with
// [ErrMissingSpeakerLabels]; a result missing the flat token stream fails
// with [ErrMissingResults].
func (ing *Ingestor) Execute(res *dialog.EngineResult) (*dialog.Dialog, error) {
	if res == nil || !res.HasSpeakerLabels() {
		return nil, fmt.Errorf("ingest: %w", ErrMissingSpeakerLabels)
	}
	if res.Results == nil || res.Results.Items == nil {
		return nil, fmt.Errorf("ingest: %w", ErrMissingResults)
	}

	segments := append([]dialog.Segment(nil), res.Segments()...)

	// Segments are assumed sorted by start time; engines are imperfect,
	// so sort defensively. Stable keeps equal-start segments in input order.
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].Start() < segments[j].Start()
	})

	turns := make([]dialog.Turn, 0, len(segments))
	for _, seg := range segments {
		turns = append(turns, buildTurn(seg, res.Results.Items))
	}

	return &dialog.Dialog{
		Turns: turns,
		Metadata: dialog.Metadata{
			Source:        dialog.SourceTranscribe,
			Language:      ing.language,
			TotalDuration: maxSegmentEnd(segments),
			SpeakerCount:  countDistinctSpeakers(segments),
			CreatedAt:     ing.now(),
		},
	}, nil
}

// word is a pronunciation item matched to a segment, carrying its index in
// the flat item stream so trailing punctuation can be located.
type word struct {
	content    string
	start, end float64
	confidence float64
	index      int
}

// buildTurn assembles one turn from the flat items overlapping the segment's
// time range. A segment whose declared ranges match no items still yields a
// turn with empty text and confidence 0 — the speaker spoke for that
// duration even when the content is unrecoverable.
func buildTurn(seg dialog.Segment, items []dialog.Item) dialog.Turn {
	words := collectWords(seg, items)

	turn := dialog.Turn{
		Speaker:   seg.SpeakerLabel,
		StartTime: seg.Start(),
		EndTime:   seg.End(),
	}
	if len(words) == 0 {
		return turn
	}

	turn.Text = joinWords(words, items)
	turn.EndTime = words[len(words)-1].end
	turn.Confidence = weightedConfidence(words)
	return turn
}

// collectWords returns the pronunciation items whose time range overlaps the
// segment, sorted by start time.
func collectWords(seg dialog.Segment, items []dialog.Item) []word {
	segStart, segEnd := seg.Start(), seg.End()

	var words []word
	for i, it := range items {
		if it.Type != dialog.ItemPronunciation || it.Content() == "" {
			continue
		}
		if it.Start() < segEnd && it.End() > segStart {
			words = append(words, word{
				content:    it.Content(),
				start:      it.Start(),
				end:        it.End(),
				confidence: it.Confidence(),
				index:      i,
			})
		}
	}

	sort.SliceStable(words, func(i, j int) bool { return words[i].start < words[j].start })
	return words
}

// directAttach lists punctuation that glues to the preceding word with no
// space. Anything else (dashes, quotes) keeps a separating space.
var directAttach = map[string]bool{
	".": true, ",": true, "?": true, "!": true, ";": true, ":": true,
}

// joinWords concatenates the words in temporal order, separating words with
// single spaces and attaching each word's trailing punctuation items (which
// carry no timing of their own) directly to it.
func joinWords(words []word, items []dialog.Item) string {
	var b strings.Builder
	for wi, w := range words {
		if wi > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w.content)

		// Punctuation items that follow this word in the flat stream,
		// up to the next pronunciation item, belong to this word.
		for j := w.index + 1; j < len(items); j++ {
			next := items[j]
			if next.Type == dialog.ItemPronunciation {
				break
			}
			if next.Type != dialog.ItemPunctuation {
				continue
			}
			punct := strings.TrimSpace(next.Content())
			if punct == "" {
				continue
			}
			// Engines occasionally emit the same punctuation item twice
			// in a row; attach it once.
			if strings.HasSuffix(b.String(), punct) {
				continue
			}
			if !directAttach[punct] {
				b.WriteByte(' ')
			}
			b.WriteString(punct)
		}
	}
	return strings.TrimSpace(b.String())
}

// weightedConfidence computes the duration-weighted mean confidence of the
// turn's words. Words with zero or negative duration contribute no weight;
// when the total weight vanishes the unweighted mean is used instead, so a
// turn of zero-duration words still reports a sensible score.
func weightedConfidence(words []word) float64 {
	const epsilon = 1e-9

	var weighted, totalWeight float64
	for _, w := range words {
		d := w.end - w.start
		if d <= 0 {
			continue
		}
		weighted += w.confidence * d
		totalWeight += d
	}
	if totalWeight > epsilon {
		return weighted / totalWeight
	}

	var sum float64
	for _, w := range words {
		sum += w.confidence
	}
	return sum / float64(len(words))
}

func maxSegmentEnd(segments []dialog.Segment) float64 {
	var max float64
	for _, seg := range segments {
		if end := seg.End(); end > max {
			max = end
		}
	}
	return max
}

func countDistinctSpeakers(segments []dialog.Segment) int {
	seen := make(map[string]struct{}, 2)
	for _, seg := range segments {
		seen[seg.SpeakerLabel] = struct{}{}
	}
	return len(seen)
}
