package rolemap

import (
	"errors"
	"strings"
	"testing"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

func turnsDialog(turns ...dialog.Turn) *dialog.Dialog {
	return &dialog.Dialog{Turns: turns}
}

func TestExecute_SingleSpeaker(t *testing.T) {
	t.Parallel()

	d := turnsDialog(dialog.Turn{Speaker: "spk_0", Text: "J'ai mal au dos."})
	roles, err := New().Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 || roles["spk_0"] != dialog.RolePatient {
		t.Errorf("roles = %v, want {spk_0: PATIENT}", roles)
	}
}

func TestExecute_ThreeSpeakersFirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "Bonjour"},
		dialog.Turn{Speaker: "spk_1", Text: "Bonjour, comment allez-vous?"},
		dialog.Turn{Speaker: "spk_2", Text: "On commence."},
		dialog.Turn{Speaker: "spk_0", Text: "J'ai mal."},
	)
	roles, err := New().Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := dialog.RoleMap{
		"spk_0": dialog.RolePatient,
		"spk_1": dialog.RoleClinician,
		"spk_2": dialog.RoleClinician,
	}
	for speaker, role := range want {
		if roles[speaker] != role {
			t.Errorf("roles[%q] = %q, want %q", speaker, roles[speaker], role)
		}
	}
	if len(roles) != len(want) {
		t.Errorf("len(roles) = %d, want %d", len(roles), len(want))
	}
}

func TestExecute_EmptyDialog(t *testing.T) {
	t.Parallel()

	roles, err := New().Execute(turnsDialog())
	if err != nil {
		t.Fatalf("empty dialog must not error: %v", err)
	}
	if len(roles) != 0 {
		t.Errorf("roles = %v, want empty map", roles)
	}
}

func TestExecute_NilDialog(t *testing.T) {
	t.Parallel()

	_, err := New().Execute(nil)
	if !errors.Is(err, ErrNilDialog) {
		t.Fatalf("err = %v, want ErrNilDialog", err)
	}
}

func TestExecute_CuesDoNotOverrideOrderByDefault(t *testing.T) {
	t.Parallel()

	// The first speaker asks all the questions and the second does every
	// bit of self-reporting; order still wins with the default mapper.
	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "Comment? Depuis combien de temps? Où?"},
		dialog.Turn{Speaker: "spk_1", Text: "J'ai une douleur, je souffre, mon dos me fait mal."},
	)
	roles, err := New().Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roles["spk_0"] != dialog.RolePatient {
		t.Errorf("roles[spk_0] = %q, want PATIENT — the order prior is authoritative", roles["spk_0"])
	}
	if roles["spk_1"] != dialog.RoleClinician {
		t.Errorf("roles[spk_1] = %q, want CLINICIAN", roles["spk_1"])
	}
}

func TestExecute_OverrideMarginLetsEvidenceWin(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "Comment? Depuis combien de temps? Où?"},
		dialog.Turn{Speaker: "spk_1", Text: "J'ai une douleur, je souffre, mon dos me fait mal."},
	)
	roles, err := New(WithOverrideMargin(2)).Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roles["spk_1"] != dialog.RolePatient {
		t.Errorf("roles[spk_1] = %q, want PATIENT once the margin is cleared", roles["spk_1"])
	}
	if roles["spk_0"] != dialog.RoleClinician {
		t.Errorf("roles[spk_0] = %q, want CLINICIAN", roles["spk_0"])
	}
}

func TestExecute_RoleMapTotality(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_2", Text: "a"},
		dialog.Turn{Speaker: "spk_0", Text: "b"},
		dialog.Turn{Speaker: "spk_2", Text: "c"},
		dialog.Turn{Speaker: "spk_1", Text: "d"},
	)
	roles, err := New().Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, speaker := range d.Speakers() {
		role, ok := roles[speaker]
		if !ok {
			t.Errorf("speaker %q missing from role map", speaker)
		}
		if role != dialog.RolePatient && role != dialog.RoleClinician {
			t.Errorf("roles[%q] = %q, not a valid role", speaker, role)
		}
	}
	if len(roles) != 3 {
		t.Errorf("len(roles) = %d, want exactly one entry per distinct speaker", len(roles))
	}
}

func TestScores(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "J'ai une douleur au dos, je souffre."},
		dialog.Turn{Speaker: "spk_1", Text: "Depuis combien de temps? Comment est la douleur?"},
	)
	scores := New().Scores(d)

	if scores["spk_0"] <= 0 {
		t.Errorf("scores[spk_0] = %v, want positive (self-report vocabulary)", scores["spk_0"])
	}
	if scores["spk_1"] >= 0 {
		t.Errorf("scores[spk_1] = %v, want negative (question vocabulary)", scores["spk_1"])
	}
}

func TestScores_MixedOrAbsentCues(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "Oui."},
		dialog.Turn{Speaker: "spk_1", Text: "D'accord."},
	)
	scores := New().Scores(d)
	if scores["spk_0"] != 0 || scores["spk_1"] != 0 {
		t.Errorf("scores = %v, want zero for cue-free text", scores)
	}

	// Cue-free text must not change the order-based outcome.
	roles, err := New().Execute(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if roles["spk_0"] != dialog.RolePatient || roles["spk_1"] != dialog.RoleClinician {
		t.Errorf("roles = %v, want default order assignment", roles)
	}
}

func TestSwapRoles_Involution(t *testing.T) {
	t.Parallel()

	original := dialog.RoleMap{
		"spk_0": dialog.RolePatient,
		"spk_1": dialog.RoleClinician,
		"spk_2": dialog.RoleClinician,
	}

	swapped := SwapRoles(original)
	if swapped["spk_0"] != dialog.RoleClinician || swapped["spk_1"] != dialog.RolePatient {
		t.Errorf("swapped = %v, want every role flipped", swapped)
	}

	restored := SwapRoles(swapped)
	if len(restored) != len(original) {
		t.Fatalf("len(restored) = %d, want %d", len(restored), len(original))
	}
	for speaker, role := range original {
		if restored[speaker] != role {
			t.Errorf("restored[%q] = %q, want %q — swap must be an involution", speaker, restored[speaker], role)
		}
	}

	// The input map must not be mutated.
	if original["spk_0"] != dialog.RolePatient {
		t.Error("SwapRoles mutated its input")
	}
}

func TestLoadLexiconFromReader(t *testing.T) {
	t.Parallel()

	yml := `
patient_cues: ["je", "douleur"]
`
	lex, err := LoadLexiconFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lex.PatientCues) != 2 {
		t.Errorf("PatientCues = %v, want the two overrides", lex.PatientCues)
	}
	if len(lex.ClinicianCues) == 0 {
		t.Error("ClinicianCues should fall back to defaults when omitted")
	}
}

func TestLoadLexiconFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := LoadLexiconFromReader(strings.NewReader("cue_words: [a]\n"))
	if err == nil {
		t.Fatal("unknown YAML field should be rejected")
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		cue  string
		want int
	}{
		{"plain word", "J'ai mal au dos", "mal", 1},
		{"punctuation boundary", "Comment? Depuis quand?", "comment", 1},
		{"phrase cue", "How long has it hurt?", "how long", 1},
		{"no substring hits", "malheureusement", "mal", 0},
		{"apostrophe cue", "j'ai mal", "j'ai", 1},
		{"curly apostrophe", "j’ai mal", "j'ai", 1},
		{"repeated", "mal, mal, mal", "mal", 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := countCue(normalizeText(tc.in), tc.cue); got != tc.want {
				t.Errorf("countCue(normalizeText(%q), %q) = %d, want %d", tc.in, tc.cue, got, tc.want)
			}
		})
	}
}

func TestFuzzyCueMatcher(t *testing.T) {
	t.Parallel()

	m := NewFuzzyCueMatcher(0.85)

	tests := []struct {
		name  string
		token string
		cue   string
		want  bool
	}{
		{"exact", "douleur", "douleur", true},
		{"near miss", "douleure", "douleur", true},
		{"unrelated", "bonjour", "douleur", false},
		{"phrase cue skipped", "how", "how long", false},
		{"empty token", "", "douleur", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := m.Match(tc.token, tc.cue); got != tc.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tc.token, tc.cue, got, tc.want)
			}
		})
	}
}

func TestExecute_FuzzyCuesScoreMisheardWords(t *testing.T) {
	t.Parallel()

	d := turnsDialog(
		dialog.Turn{Speaker: "spk_0", Text: "La douleure est insupportable."},
	)

	exact := New().Scores(d)
	fuzzy := New(WithFuzzyCues(0.85)).Scores(d)

	if fuzzy["spk_0"] <= exact["spk_0"] {
		t.Errorf("fuzzy score %v should exceed exact score %v for a misheard cue", fuzzy["spk_0"], exact["spk_0"])
	}
}
