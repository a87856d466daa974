package rolemap

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the bilingual cue vocabularies used to score speakers.
// Cues may be single words or short phrases; matching is case-insensitive on
// word boundaries. The lexicon is plain data so it can be tuned or replaced
// (by a trained classifier's vocabulary, say) without touching the mapper's
// control flow.
type Lexicon struct {
	// PatientCues bias a speaker toward the patient role: first-person
	// self-report and symptom vocabulary.
	PatientCues []string `yaml:"patient_cues"`

	// ClinicianCues bias a speaker toward the clinician role: question
	// words and clinical-procedure vocabulary.
	ClinicianCues []string `yaml:"clinician_cues"`
}

// DefaultLexicon returns the built-in French/English cue vocabularies.
func DefaultLexicon() Lexicon {
	return Lexicon{
		PatientCues: []string{
			// French self-report
			"je", "moi", "mon", "ma", "mes", "j'ai", "j'étais",
			"douleur", "mal", "souffre", "sensation", "symptôme", "problème",
			// English self-report
			"i", "my", "me", "i'm", "i was", "i had", "i feel", "i think", "i need",
			"pain", "hurt", "ache", "symptom", "problem", "issue", "feel",
		},
		ClinicianCues: []string{
			// French question and procedure vocabulary
			"comment", "depuis", "combien", "où", "quand", "pourquoi",
			"diagnostic", "traitement", "médicament", "prescription", "examen",
			// English question and procedure vocabulary
			"how", "since", "how long", "where", "when", "why", "what",
			"diagnosis", "treatment", "medication", "exam", "test",
		},
	}
}

// LoadLexicon reads a YAML lexicon file. Missing cue lists fall back to the
// built-in defaults, so a file may override just one side.
func LoadLexicon(path string) (Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("lexicon: open %q: %w", path, err)
	}
	defer f.Close()

	lex, err := LoadLexiconFromReader(f)
	if err != nil {
		return Lexicon{}, fmt.Errorf("lexicon: parse %q: %w", path, err)
	}
	return lex, nil
}

// LoadLexiconFromReader decodes a YAML lexicon from r. Useful in tests where
// lexicons are constructed from string literals.
func LoadLexiconFromReader(r io.Reader) (Lexicon, error) {
	var lex Lexicon
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lex); err != nil {
		return Lexicon{}, fmt.Errorf("decode yaml: %w", err)
	}

	defaults := DefaultLexicon()
	if len(lex.PatientCues) == 0 {
		lex.PatientCues = defaults.PatientCues
	}
	if len(lex.ClinicianCues) == 0 {
		lex.ClinicianCues = defaults.ClinicianCues
	}
	return lex, nil
}

// normalizeText lowercases text and replaces every non-letter, non-digit
// rune except apostrophes with a space, so cue phrases can be matched on
// word boundaries with plain string containment.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 2)
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(text) {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '\'' || r == '’' || r > 127
		if !keep {
			// Collapse separator runs so phrase cues match on single spaces.
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		if r == '’' {
			r = '\''
		}
		b.WriteRune(r)
		space = false
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// countCue returns the number of word-boundary occurrences of cue within
// normalized, which must be a [normalizeText] result.
func countCue(normalized, cue string) int {
	needle := " " + strings.ToLower(cue) + " "
	return strings.Count(normalized, needle)
}
