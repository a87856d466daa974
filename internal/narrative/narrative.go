// Package narrative renders a cleaned, role-mapped dialog into text for
// human review and downstream report drafting.
//
// Two renderings are provided: a plain narrative (role-prefixed lines when
// both roles are present, a single block otherwise) and a markdown
// transcript with timestamps.
package narrative

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/centomomd/voxnorm/internal/cleanup"
	"github.com/centomomd/voxnorm/pkg/dialog"
)

// ErrNilDialog indicates there was no cleaned dialog to render.
var ErrNilDialog = errors.New("cleaned dialog is nil")

// Format selects the narrative layout.
type Format string

const (
	// FormatSingleBlock renders turn texts as running prose, used when
	// only one role speaks.
	FormatSingleBlock Format = "single_block"

	// FormatRolePrefixed renders each turn as "ROLE: text", used when
	// both roles are present.
	FormatRolePrefixed Format = "role_prefixed"
)

// paragraphBreakSec is the turn duration beyond which a paragraph break is
// inserted after the turn — long monologues read better split up.
const paragraphBreakSec = 12.0

// Options tunes narrative rendering.
type Options struct {
	// MaxLineLength wraps turn text at the given width; 0 disables
	// wrapping.
	MaxLineLength int `yaml:"max_line_length"`
}

// Metadata summarises the rendered narrative.
type Metadata struct {
	TotalSpeakers  int     `json:"totalSpeakers"`
	PatientTurns   int     `json:"patientTurns"`
	ClinicianTurns int     `json:"clinicianTurns"`
	TotalDuration  float64 `json:"totalDuration"`
	WordCount      int     `json:"wordCount"`
}

// Output is the rendered narrative plus its aggregate metadata.
type Output struct {
	Format   Format   `json:"format"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Render produces the narrative for cd. The layout follows the role count:
// two roles get role-prefixed lines, anything else a single block.
func Render(cd *cleanup.Dialog, opts Options) (*Output, error) {
	if cd == nil {
		return nil, fmt.Errorf("narrative: %w", ErrNilDialog)
	}

	format := FormatSingleBlock
	if countRoles(cd) == 2 {
		format = FormatRolePrefixed
	}

	var lines []string
	for _, turn := range cd.Turns {
		text := formatTurnText(turn.Text, opts.MaxLineLength)
		if format == FormatRolePrefixed {
			lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, text))
		} else {
			lines = append(lines, text)
		}
		if turn.EndTime-turn.StartTime >= paragraphBreakSec {
			lines = append(lines, "")
		}
	}

	content := strings.TrimRight(strings.Join(lines, "\n"), "\n")

	return &Output{
		Format:   format,
		Content:  content,
		Metadata: buildMetadata(cd),
	}, nil
}

// Markdown renders cd as a reviewable markdown transcript with a title
// header and per-turn timestamps.
func Markdown(cd *cleanup.Dialog, title string) string {
	var b strings.Builder

	if title == "" {
		title = "Consultation Transcript"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	meta := buildMetadata(cd)
	fmt.Fprintf(&b, "- Speakers: %d\n", meta.TotalSpeakers)
	fmt.Fprintf(&b, "- Duration: %s\n", timestamp(meta.TotalDuration))
	fmt.Fprintf(&b, "- Words: %d\n", meta.WordCount)
	b.WriteString("\n---\n\n")

	for _, turn := range cd.Turns {
		fmt.Fprintf(&b, "[%s-%s] %s: %s\n\n",
			timestamp(turn.StartTime), timestamp(turn.EndTime), turn.Role, turn.Text)
	}
	return b.String()
}

// formatTurnText capitalises the first letter, guarantees terminal
// punctuation, and optionally wraps at maxLen.
func formatTurnText(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	runes := []rune(text)
	runes[0] = unicode.ToUpper(runes[0])
	text = string(runes)

	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		text += "."
	}

	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = wrap(text, maxLen)
	}
	return text
}

// wrap breaks text into lines of at most maxLen characters on word
// boundaries; a single overlong word stays on its own line. Width is counted
// in runes so accented text does not wrap early.
func wrap(text string, maxLen int) string {
	var lines []string
	var line strings.Builder
	width := 0

	for _, word := range strings.Fields(text) {
		wordWidth := utf8.RuneCountInString(word)
		if width > 0 && width+1+wordWidth > maxLen {
			lines = append(lines, line.String())
			line.Reset()
			width = 0
		}
		if width > 0 {
			line.WriteByte(' ')
			width++
		}
		line.WriteString(word)
		width += wordWidth
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

func countRoles(cd *cleanup.Dialog) int {
	seen := make(map[dialog.Role]struct{}, 2)
	for _, turn := range cd.Turns {
		seen[turn.Role] = struct{}{}
	}
	return len(seen)
}

func buildMetadata(cd *cleanup.Dialog) Metadata {
	meta := Metadata{}
	speakers := make(map[string]struct{}, 2)

	for _, turn := range cd.Turns {
		speakers[turn.Speaker] = struct{}{}
		switch turn.Role {
		case dialog.RolePatient:
			meta.PatientTurns++
		case dialog.RoleClinician:
			meta.ClinicianTurns++
		}
		if turn.EndTime > meta.TotalDuration {
			meta.TotalDuration = turn.EndTime
		}
		meta.WordCount += len(strings.Fields(turn.Text))
	}

	meta.TotalSpeakers = len(speakers)
	return meta
}

// timestamp formats seconds as m:ss (or h:mm:ss past the hour).
func timestamp(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
