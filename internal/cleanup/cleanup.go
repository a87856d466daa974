// Package cleanup scrubs role-mapped dialog turns for downstream report
// generation: filler removal, spacing normalization, and stutter-repetition
// removal, governed by named profiles.
//
// The clinical_light profile keeps repetitions and guards medical terms —
// in a clinical record, "très très enflé" may be the patient's emphasis and
// a repeated dosage is never noise.
package cleanup

import (
	"regexp"
	"strings"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

// ClinicalGuards toggles protections for clinically meaningful content
// during cleanup.
type ClinicalGuards struct {
	PreserveMedicalTerms bool `yaml:"preserve_medical_terms"`
	PreserveNumbers      bool `yaml:"preserve_numbers"`
	PreserveDates        bool `yaml:"preserve_dates"`
}

// Profile names a cleanup policy.
type Profile struct {
	Name              string         `yaml:"name"`
	RemoveFillers     bool           `yaml:"remove_fillers"`
	NormalizeSpacing  bool           `yaml:"normalize_spacing"`
	RemoveRepetitions bool           `yaml:"remove_repetitions"`
	Guards            ClinicalGuards `yaml:"guards"`
}

// DefaultProfile removes fillers and repetitions with no clinical guards.
func DefaultProfile() Profile {
	return Profile{
		Name:              "default",
		RemoveFillers:     true,
		NormalizeSpacing:  true,
		RemoveRepetitions: true,
	}
}

// ClinicalLightProfile removes fillers but keeps repetitions and guards
// medical terms, numbers, and dates.
func ClinicalLightProfile() Profile {
	return Profile{
		Name:             "clinical_light",
		RemoveFillers:    true,
		NormalizeSpacing: true,
		Guards: ClinicalGuards{
			PreserveMedicalTerms: true,
			PreserveNumbers:      true,
			PreserveDates:        true,
		},
	}
}

// ProfileByName resolves a profile name from configuration. Unknown names
// fall back to the default profile.
func ProfileByName(name string) Profile {
	if name == "clinical_light" {
		return ClinicalLightProfile()
	}
	return DefaultProfile()
}

// Turn is a cleaned dialog turn with its clinical role attached.
type Turn struct {
	Speaker    string      `json:"speaker"`
	Role       dialog.Role `json:"role"`
	StartTime  float64     `json:"startTime"`
	EndTime    float64     `json:"endTime"`
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	IsPartial  bool        `json:"isPartial"`
}

// Stats summarises what cleanup removed.
type Stats struct {
	OriginalTurnCount  int `json:"originalTurnCount"`
	CleanedTurnCount   int `json:"cleanedTurnCount"`
	RemovedFillers     int `json:"removedFillers"`
	RemovedRepetitions int `json:"removedRepetitions"`
}

// Dialog is the cleaned, role-attached dialog.
type Dialog struct {
	Turns   []Turn `json:"turns"`
	Profile string `json:"profile"`
	Stats   Stats  `json:"stats"`
}

// Conversational fillers removed by cleanup. Wider than the normalizer's
// tag list: cleanup erases text, so hedges and discourse markers belong
// here too.
var fillers = []string{
	// French
	"euh", "heu", "ben", "bah", "alors", "hum", "voilà", "enfin", "bref",
	"hein", "tu vois", "tu sais", "je veux dire", "genre",
	// English
	"um", "uh", "mmm", "er", "well", "you know", "i mean",
	"basically", "actually", "literally",
}

var fillerPatterns = compileFillerPatterns()

func compileFillerPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(fillers))
	for _, f := range fillers {
		// \b does not understand accented letters, so phrase and word
		// boundaries are approximated with explicit alternatives.
		patterns = append(patterns, regexp.MustCompile(`(?i)(^|[\s,])`+regexp.QuoteMeta(f)+`($|[\s,.!?;:])`))
	}
	return patterns
}

// Terms whose repetition is clinically meaningful under
// [ClinicalGuards.PreserveMedicalTerms].
var medicalTerms = []string{
	"douleur", "symptôme", "diagnostic", "traitement", "médicament",
	"pain", "symptom", "diagnosis", "treatment", "medication",
	"mg", "ml", "cc", "bpm", "mmhg",
}

var (
	multiSpace      = regexp.MustCompile(`\s+`)
	spaceBeforePunc = regexp.MustCompile(`\s+([,.!?;:])`)
	puncRunSpace    = regexp.MustCompile(`([,.!?;:])\s+([,.!?;:])`)
	numberLike      = regexp.MustCompile(`^\d`)
)

// Apply cleans every turn of d under the given profile, attaching roles from
// roles. Turns whose text becomes empty are dropped; speakers absent from
// roles default to the patient role rather than failing, since a missing
// entry means the role mapper never saw that label.
func Apply(d *dialog.Dialog, roles dialog.RoleMap, profile Profile) *Dialog {
	out := &Dialog{
		Profile: profile.Name,
		Stats:   Stats{OriginalTurnCount: len(d.Turns)},
	}

	for _, t := range d.Turns {
		text := t.Text

		if profile.RemoveRepetitions {
			out.Stats.RemovedRepetitions += countAdjacentRepetitions(text)
		}
		if profile.RemoveFillers {
			before := len(text)
			text = removeFillers(text)
			if diff := before - len(text); diff > 0 {
				out.Stats.RemovedFillers += diff
			}
		}
		if profile.RemoveRepetitions {
			text = removeRepetitions(text, profile.Guards)
		}
		if profile.NormalizeSpacing {
			text = normalizeSpacing(text)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		role, ok := roles[t.Speaker]
		if !ok {
			role = dialog.RolePatient
		}
		out.Turns = append(out.Turns, Turn{
			Speaker:    t.Speaker,
			Role:       role,
			StartTime:  t.StartTime,
			EndTime:    t.EndTime,
			Text:       text,
			Confidence: t.Confidence,
			IsPartial:  t.IsPartial,
		})
	}

	out.Stats.CleanedTurnCount = len(out.Turns)
	return out
}

// removeFillers strips standalone filler words and phrases, then collapses
// any immediately repeated leftovers.
func removeFillers(text string) string {
	for _, p := range fillerPatterns {
		// Keep replacing until stable: overlapping matches ("euh euh")
		// are not all caught in one pass because the trailing boundary
		// of one match is the leading boundary of the next.
		for {
			replaced := p.ReplaceAllString(text, "$1$2")
			if replaced == text {
				break
			}
			text = replaced
		}
	}
	return text
}

// removeRepetitions drops immediately repeated words ("le le genou"),
// keeping repeats of guarded medical terms when configured.
func removeRepetitions(text string, guards ClinicalGuards) string {
	words := strings.Fields(text)
	cleaned := make([]string, 0, len(words))

	for i, w := range words {
		if i+1 < len(words) && w == words[i+1] {
			preserved := (guards.PreserveMedicalTerms && isMedicalTerm(w)) ||
				(guards.PreserveNumbers && numberLike.MatchString(w))
			if preserved {
				cleaned = append(cleaned, w)
			}
			continue
		}
		cleaned = append(cleaned, w)
	}
	return strings.Join(cleaned, " ")
}

func isMedicalTerm(word string) bool {
	w := strings.ToLower(strings.Trim(word, ",.!?;:"))
	for _, term := range medicalTerms {
		if strings.Contains(w, term) {
			return true
		}
	}
	return false
}

// normalizeSpacing collapses whitespace runs and fixes spacing around
// punctuation.
func normalizeSpacing(text string) string {
	text = multiSpace.ReplaceAllString(text, " ")
	text = spaceBeforePunc.ReplaceAllString(text, "$1")
	text = puncRunSpace.ReplaceAllString(text, "$1$2")
	return strings.TrimSpace(text)
}

func countAdjacentRepetitions(text string) int {
	words := strings.Fields(text)
	count := 0
	for i := 0; i+1 < len(words); i++ {
		if words[i] == words[i+1] {
			count++
		}
	}
	return count
}
