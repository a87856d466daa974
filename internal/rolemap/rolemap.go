// Package rolemap assigns clinical roles to the anonymous diarized speakers
// of a dialog.
//
// There is no ground truth identity to lean on, so the mapper treats the
// problem as a classifier with a strong prior and weak evidence: the first
// distinct speaker is presumed to be the patient (consultations open with the
// patient describing their complaint), and bilingual lexical cues — question
// words for the clinician, self-report vocabulary for the patient — are
// scored per speaker as a secondary signal. The prior is authoritative:
// cue scores are computed and exposed for audit, but they only override the
// order-based assignment when a caller opts in with an explicit evidence
// threshold. Manual correction goes through [SwapRoles] instead.
package rolemap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

// ErrNilDialog indicates the mapper was handed no dialog to work with.
var ErrNilDialog = errors.New("dialog has no turns")

// Option configures a [Mapper].
type Option func(*Mapper)

// WithLexicon replaces the built-in cue vocabularies.
func WithLexicon(lex Lexicon) Option {
	return func(m *Mapper) {
		m.lex = lex
	}
}

// WithFuzzyCues enables pronunciation-based cue matching with the given
// Jaro-Winkler threshold, so misrecognised cue words still score.
func WithFuzzyCues(threshold float64) Option {
	return func(m *Mapper) {
		m.fuzzy = NewFuzzyCueMatcher(threshold)
	}
}

// WithOverrideMargin sets the cue-score margin by which a non-first speaker
// must out-score the first speaker before the evidence overrides the
// first-speaker-is-patient prior. The default margin is +Inf: the prior
// always wins and cue scores are advisory only.
func WithOverrideMargin(margin float64) Option {
	return func(m *Mapper) {
		m.overrideMargin = margin
	}
}

// Mapper assigns PATIENT/CLINICIAN roles to diarized speaker labels. It is
// read-only after construction and safe for concurrent use.
type Mapper struct {
	lex            Lexicon
	fuzzy          *FuzzyCueMatcher
	overrideMargin float64
}

// New returns a [Mapper] configured with the supplied options.
func New(opts ...Option) *Mapper {
	m := &Mapper{
		lex:            DefaultLexicon(),
		overrideMargin: math.Inf(1),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Execute maps every distinct speaker label in d to a role. The first
// distinct label in turn order becomes the patient, every other label the
// clinician. A dialog with zero turns yields an empty map; a nil dialog is
// the one defended-against input error.
func (m *Mapper) Execute(d *dialog.Dialog) (dialog.RoleMap, error) {
	if d == nil {
		return nil, fmt.Errorf("rolemap: %w", ErrNilDialog)
	}

	speakers := d.Speakers()
	roles := make(dialog.RoleMap, len(speakers))
	if len(speakers) == 0 {
		return roles, nil
	}

	patient := speakers[0]

	// Secondary signal: per-speaker cue scores. Positive leans patient,
	// negative leans clinician. The prior stands unless a challenger
	// clears the configured margin.
	scores := m.Scores(d)
	if !math.IsInf(m.overrideMargin, 1) {
		for _, s := range speakers[1:] {
			if scores[s]-scores[patient] >= m.overrideMargin {
				patient = s
			}
		}
	}

	for _, s := range speakers {
		if s == patient {
			roles[s] = dialog.RolePatient
		} else {
			roles[s] = dialog.RoleClinician
		}
	}
	return roles, nil
}

// Scores computes the lexical cue score for every distinct speaker in d:
// +1 per patient-cue occurrence, −1 per clinician-cue occurrence, summed
// over the speaker's turns. Useful for auditing why the mapper leaned the
// way it did.
func (m *Mapper) Scores(d *dialog.Dialog) map[string]float64 {
	scores := make(map[string]float64)
	if d == nil {
		return scores
	}

	texts := make(map[string][]string)
	for _, t := range d.Turns {
		texts[t.Speaker] = append(texts[t.Speaker], t.Text)
	}

	for speaker, parts := range texts {
		normalized := normalizeText(strings.Join(parts, " "))
		var score float64
		for _, cue := range m.lex.PatientCues {
			score += float64(m.countMatches(normalized, cue))
		}
		for _, cue := range m.lex.ClinicianCues {
			score -= float64(m.countMatches(normalized, cue))
		}
		scores[speaker] = score
	}
	return scores
}

// countMatches counts cue occurrences in the normalized text, adding fuzzy
// per-token hits when a fuzzy matcher is configured. Exact hits and fuzzy
// hits are not double-counted: a token equal to the cue only counts once.
func (m *Mapper) countMatches(normalized, cue string) int {
	count := countCue(normalized, cue)
	if m.fuzzy == nil {
		return count
	}
	for _, token := range strings.Fields(normalized) {
		if token != strings.ToLower(cue) && m.fuzzy.Match(token, cue) {
			count++
		}
	}
	return count
}

// SwapRoles returns a copy of roles with every PATIENT flipped to CLINICIAN
// and vice versa. Used for manual correction when the heuristic guessed the
// global order backwards; it never re-inspects text, so applying it twice
// restores the original map.
func SwapRoles(roles dialog.RoleMap) dialog.RoleMap {
	swapped := make(dialog.RoleMap, len(roles))
	for speaker, role := range roles {
		swapped[speaker] = role.Other()
	}
	return swapped
}
