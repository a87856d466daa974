// Package normalize collapses the engine's flat, noisily-diarized token
// stream into a clean two-bucket stream.
//
// This is the token-granularity counterpart to the ingest package: where
// ingest trusts the engine's segment grouping and emits turns, normalize
// works on individual tokens — filtering low-confidence ones, flagging
// bilingual filler words, merging contiguous same-speaker runs, and folding
// however many diarized labels the engine hallucinated down to exactly two
// canonical buckets. The two paths serve different consumers and are kept
// deliberately separate.
package normalize

import (
	"math"
	"sort"
	"strings"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

// Policy constants. These are fixed decisions of the normalizer, not caller
// configuration: tokens below the confidence floor are noise, and a gap above
// the merge threshold means the speaker actually paused.
const (
	minConfidence = 0.5
	mergeGapSec   = 0.5
)

// Filler vocabularies. Fillers are flagged, never dropped — removal policy
// belongs to the consumer.
var (
	fillersEN = wordSet("uh", "um", "mmm", "er", "ah", "like")
	fillersFR = wordSet("euh", "heu", "ben", "bah", "alors", "hum")
)

func wordSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// Token is one assembled unit of the input stream prior to bucketing.
type Token struct {
	Start, End float64
	Text       string
	Confidence float64
	Label      string
	Filler     bool
}

// Stats aggregates what the normalizer did to the stream.
type Stats struct {
	// UniqueBefore is the distinct diarized label count before collapsing.
	UniqueBefore int `json:"uniqueBefore"`

	// UniqueAfter is always 2 once any token survives filtering.
	UniqueAfter int `json:"uniqueAfter"`

	// DroppedLowConf counts tokens removed by the confidence floor.
	DroppedLowConf int `json:"droppedLowConf"`
}

// Result is the normalizer output: the bucketed token stream, the diarized
// label to bucket mapping, and aggregate stats.
type Result struct {
	Items []dialog.NormalizedItem  `json:"items"`
	Map   map[string]dialog.Bucket `json:"map"`
	Stats Stats                    `json:"stats"`
}

// AdjacencyMetric measures how close two tokens are for the purpose of
// folding a minor speaker into a primary one. Smaller is closer.
type AdjacencyMetric func(a, b Token) float64

// TimeAdjacency is the default metric: the smaller of the two boundary gaps
// between the tokens. An alternative metric (acoustic embedding distance,
// for instance) can be substituted via [WithAdjacencyMetric].
func TimeAdjacency(a, b Token) float64 {
	return math.Min(math.Abs(a.Start-b.End), math.Abs(b.Start-a.End))
}

// Option configures a [Normalizer].
type Option func(*Normalizer)

// WithAdjacencyMetric replaces the metric used to fold non-primary speakers
// into their nearest primary. Default: [TimeAdjacency].
func WithAdjacencyMetric(m AdjacencyMetric) Option {
	return func(n *Normalizer) {
		n.metric = m
	}
}

// Normalizer converts engine results into two-bucket token streams. It is
// read-only after construction and safe for concurrent use.
type Normalizer struct {
	metric AdjacencyMetric
}

// New returns a [Normalizer] configured with the supplied options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{metric: TimeAdjacency}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize runs the default [Normalizer] over res.
func Normalize(res *dialog.EngineResult) Result {
	return New().Normalize(res)
}

// Normalize filters, tags, merges, and buckets the token stream of res.
// Degenerate input (no segments, no items) yields an empty result, never an
// error.
func (n *Normalizer) Normalize(res *dialog.EngineResult) Result {
	tokens := assembleTokens(res)
	if len(tokens) == 0 {
		return Result{Items: []dialog.NormalizedItem{}, Map: map[string]dialog.Bucket{}}
	}

	kept := tokens[:0]
	dropped := 0
	for _, tok := range tokens {
		if tok.Confidence < minConfidence {
			dropped++
			continue
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return Result{
			Items: []dialog.NormalizedItem{},
			Map:   map[string]dialog.Bucket{},
			Stats: Stats{DroppedLowConf: dropped},
		}
	}

	markFillers(kept)
	merged := mergeContiguous(kept)
	bucketMap := n.collapse(merged)

	items := make([]dialog.NormalizedItem, len(merged))
	for i, tok := range merged {
		items[i] = dialog.NormalizedItem{
			T0:     tok.Start,
			T1:     tok.End,
			Bucket: bucketMap[tok.Label],
			Text:   tok.Text,
			Conf:   tok.Confidence,
			Filler: tok.Filler,
		}
	}

	return Result{
		Items: items,
		Map:   bucketMap,
		Stats: Stats{
			UniqueBefore:   len(distinctLabels(merged)),
			UniqueAfter:    2,
			DroppedLowConf: dropped,
		},
	}
}

// assembleTokens builds the ordered token list, preferring the diarization
// segment structure and falling back to per-item speaker labels when the
// engine attached speakers directly to the flat stream instead.
func assembleTokens(res *dialog.EngineResult) []Token {
	var tokens []Token

	for _, seg := range res.Segments() {
		for _, it := range seg.Items {
			label := it.SpeakerLabel
			if label == "" {
				label = seg.SpeakerLabel
			}
			if label == "" {
				label = "unknown"
			}
			tokens = append(tokens, Token{
				Start:      it.Start(),
				End:        it.End(),
				Text:       it.Content,
				Confidence: dialog.ParseNum(it.Confidence),
				Label:      label,
			})
		}
	}

	if len(tokens) == 0 && res != nil && res.Results != nil {
		for _, it := range res.Results.Items {
			if it.SpeakerLabel == "" {
				continue
			}
			tokens = append(tokens, Token{
				Start:      it.Start(),
				End:        it.End(),
				Text:       it.Content(),
				Confidence: it.Confidence(),
				Label:      it.SpeakerLabel,
			})
		}
	}

	// Input order across segments is not guaranteed temporal.
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].Start < tokens[j].Start })
	return tokens
}

// markFillers flags tokens whose text matches the bilingual filler
// vocabularies, case-insensitively.
func markFillers(tokens []Token) {
	for i := range tokens {
		w := strings.ToLower(strings.TrimSpace(tokens[i].Text))
		if _, ok := fillersEN[w]; ok {
			tokens[i].Filler = true
			continue
		}
		if _, ok := fillersFR[w]; ok {
			tokens[i].Filler = true
		}
	}
}

// mergeContiguous merges adjacent tokens that share a speaker label and sit
// within the merge gap of each other. Merged confidence is the minimum of
// the pair — one low-confidence word taints the whole span.
func mergeContiguous(tokens []Token) []Token {
	if len(tokens) == 0 {
		return nil
	}

	merged := make([]Token, 0, len(tokens))
	current := tokens[0]

	for _, tok := range tokens[1:] {
		if tok.Label == current.Label && tok.Start-current.End <= mergeGapSec {
			current.End = tok.End
			current.Text += " " + tok.Text
			current.Confidence = math.Min(current.Confidence, tok.Confidence)
			current.Filler = current.Filler || tok.Filler
			continue
		}
		merged = append(merged, current)
		current = tok
	}

	return append(merged, current)
}

// collapse maps every diarized label to one of exactly two buckets. With at
// most two labels the mapping follows first temporal appearance. With more,
// the two most frequent labels become the primaries and every remaining
// label is folded into whichever primary it is nearest to under the
// configured adjacency metric — a brief interjection gets absorbed by its
// temporal neighbour.
func (n *Normalizer) collapse(tokens []Token) map[string]dialog.Bucket {
	labels := distinctLabels(tokens)
	bucketMap := make(map[string]dialog.Bucket, len(labels))

	if len(labels) <= 2 {
		for i, label := range labels {
			bucketMap[label] = bucketFor(i)
		}
		return bucketMap
	}

	counts := make(map[string]int, len(labels))
	for _, tok := range tokens {
		counts[tok.Label]++
	}

	// Rank by frequency; the stable sort breaks ties by first appearance.
	ranked := append([]string(nil), labels...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return counts[ranked[i]] > counts[ranked[j]]
	})

	primaries := ranked[:2]
	for i, label := range primaries {
		bucketMap[label] = bucketFor(i)
	}
	for _, label := range ranked[2:] {
		bucketMap[label] = bucketMap[n.nearestPrimary(label, primaries, tokens)]
	}
	return bucketMap
}

// nearestPrimary scans all cross pairs between the minor label's tokens and
// each primary's tokens, returning the primary with the smallest metric
// value. Speaker counts are small in practice, so the quadratic scan is
// harmless.
func (n *Normalizer) nearestPrimary(label string, primaries []string, tokens []Token) string {
	var minorTokens []Token
	for _, tok := range tokens {
		if tok.Label == label {
			minorTokens = append(minorTokens, tok)
		}
	}
	if len(minorTokens) == 0 {
		return primaries[0]
	}

	nearest := primaries[0]
	minDist := math.Inf(1)
	for _, primary := range primaries {
		for _, ptok := range tokens {
			if ptok.Label != primary {
				continue
			}
			for _, mtok := range minorTokens {
				if d := n.metric(mtok, ptok); d < minDist {
					minDist = d
					nearest = primary
				}
			}
		}
	}
	return nearest
}

func distinctLabels(tokens []Token) []string {
	seen := make(map[string]struct{}, 2)
	var order []string
	for _, tok := range tokens {
		if _, ok := seen[tok.Label]; ok {
			continue
		}
		seen[tok.Label] = struct{}{}
		order = append(order, tok.Label)
	}
	return order
}

func bucketFor(i int) dialog.Bucket {
	if i == 0 {
		return dialog.BucketA
	}
	return dialog.BucketB
}
