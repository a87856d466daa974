package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/centomomd/voxnorm/internal/ingest"
	"github.com/centomomd/voxnorm/pkg/dialog"
)

func pronunciation(start, end, content, conf string) dialog.Item {
	return dialog.Item{
		StartTime:    start,
		EndTime:      end,
		Type:         dialog.ItemPronunciation,
		Alternatives: []dialog.Alternative{{Content: content, Confidence: conf}},
	}
}

func punctuation(content string) dialog.Item {
	return dialog.Item{
		Type:         dialog.ItemPunctuation,
		Alternatives: []dialog.Alternative{{Content: content}},
	}
}

// consultation builds a two-speaker engine result where the first speaker's
// turns are close enough to merge.
func consultation() *dialog.EngineResult {
	return &dialog.EngineResult{
		SpeakerLabels: &dialog.SpeakerLabels{Segments: []dialog.Segment{
			{
				StartTime: "0.0", EndTime: "1.5", SpeakerLabel: "spk_0",
				Items: []dialog.SegmentItem{
					{StartTime: "0.0", EndTime: "1.5", SpeakerLabel: "spk_0"},
				},
			},
			{
				StartTime: "2.0", EndTime: "4.0", SpeakerLabel: "spk_0",
				Items: []dialog.SegmentItem{
					{StartTime: "2.0", EndTime: "4.0", SpeakerLabel: "spk_0"},
				},
			},
			{
				StartTime: "5.0", EndTime: "7.0", SpeakerLabel: "spk_1",
				Items: []dialog.SegmentItem{
					{StartTime: "5.0", EndTime: "7.0", SpeakerLabel: "spk_1"},
				},
			},
		}},
		Results: &dialog.Results{Items: []dialog.Item{
			pronunciation("0.0", "1.5", "Bonjour", "0.95"),
			punctuation("."),
			pronunciation("2.0", "4.0", "Docteur", "0.90"),
			punctuation("."),
			pronunciation("5.0", "7.0", "Bonjour", "0.92"),
			punctuation("."),
		}},
	}
}

func TestProcess_FullRun(t *testing.T) {
	t.Parallel()

	p := New()
	art, err := p.Process(context.Background(), consultation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(art.Dialog.Turns) != 2 {
		t.Fatalf("got %d merged turns, want 2", len(art.Dialog.Turns))
	}
	if art.Dialog.Turns[0].Text != "Bonjour. Docteur." {
		t.Errorf("merged turn text = %q", art.Dialog.Turns[0].Text)
	}

	if art.RoleMap["spk_0"] != dialog.RolePatient {
		t.Errorf("spk_0 role = %q, want patient", art.RoleMap["spk_0"])
	}
	if art.RoleMap["spk_1"] != dialog.RoleClinician {
		t.Errorf("spk_1 role = %q, want clinician", art.RoleMap["spk_1"])
	}

	if art.Cleaned == nil || len(art.Cleaned.Turns) != 2 {
		t.Fatalf("cleaned dialog = %+v, want 2 turns", art.Cleaned)
	}
	if art.Narrative == nil || !strings.Contains(art.Narrative.Content, "PATIENT:") {
		t.Errorf("narrative content = %+v, want role-prefixed lines", art.Narrative)
	}

	for _, stage := range []string{StageIngest, StageMerge, StageRoleMap, StageCleanup, StageNarrative} {
		if _, ok := art.Timings[stage]; !ok {
			t.Errorf("missing timing for stage %q", stage)
		}
	}
}

func TestProcess_IngestFailure(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Process(context.Background(), &dialog.EngineResult{})
	if !errors.Is(err, ingest.ErrMissingSpeakerLabels) {
		t.Fatalf("error = %v, want ErrMissingSpeakerLabels", err)
	}
}

func TestProcess_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New()
	_, err := p.Process(ctx, consultation())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
