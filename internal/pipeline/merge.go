package pipeline

import (
	"strings"

	"github.com/centomomd/voxnorm/pkg/dialog"
)

const (
	// mergeGapSec is the largest silence between two turns of the same
	// speaker that still allows merging them into one turn.
	mergeGapSec = 1.0

	// maxMergedDurationSec caps the duration of a merged turn. Once a
	// turn grows past this it stops absorbing followers, so a long
	// monologue still breaks into readable chunks.
	maxMergedDurationSec = 15.0
)

// mergeTurns collapses consecutive turns by the same speaker into single
// turns when the pause between them is at most mergeGapSec and the combined
// duration stays within maxMergedDurationSec. Confidence of a merged turn is
// the token-count-weighted mean of its parts. The input dialog is not
// modified.
func mergeTurns(d *dialog.Dialog) *dialog.Dialog {
	if d == nil || len(d.Turns) == 0 {
		return d
	}

	merged := make([]dialog.Turn, 0, len(d.Turns))
	cur := d.Turns[0]
	curTokens := tokenCount(cur.Text)
	curConf := cur.Confidence * float64(curTokens)

	for _, t := range d.Turns[1:] {
		gap := t.StartTime - cur.EndTime
		sameSpeaker := t.Speaker == cur.Speaker
		within := t.EndTime-cur.StartTime <= maxMergedDurationSec

		if sameSpeaker && gap <= mergeGapSec && within {
			if t.Text != "" {
				if cur.Text == "" {
					cur.Text = t.Text
				} else {
					cur.Text += " " + t.Text
				}
			}
			cur.EndTime = t.EndTime
			n := tokenCount(t.Text)
			curTokens += n
			curConf += t.Confidence * float64(n)
			cur.IsPartial = cur.IsPartial || t.IsPartial
			continue
		}

		merged = append(merged, finishTurn(cur, curTokens, curConf))
		cur = t
		curTokens = tokenCount(t.Text)
		curConf = t.Confidence * float64(curTokens)
	}
	merged = append(merged, finishTurn(cur, curTokens, curConf))

	out := &dialog.Dialog{
		Turns:    merged,
		Metadata: d.Metadata,
	}
	return out
}

func finishTurn(t dialog.Turn, tokens int, weightedConf float64) dialog.Turn {
	if tokens > 0 {
		t.Confidence = weightedConf / float64(tokens)
	}
	return t
}

func tokenCount(s string) int {
	return len(strings.Fields(s))
}
