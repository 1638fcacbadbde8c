package harness

import (
	"fmt"

	"github.com/goliatone/go-formdoc/pkg/parser"
	"github.com/goliatone/go-formdoc/pkg/patch"
	"github.com/goliatone/go-formdoc/pkg/serializer"
)

// ReplayError reports the first point where a transcript diverges from a
// fresh re-run. Turn 0 means the original input already differs.
type ReplayError struct {
	Turn int
	Msg  string
}

func (e *ReplayError) Error() string {
	if e.Turn == 0 {
		return fmt.Sprintf("harness: replay: input: %s", e.Msg)
	}
	return fmt.Sprintf("harness: replay: turn %d: %s", e.Turn, e.Msg)
}

// Replay re-runs a transcript against the original document text and
// verifies that every turn lands identically: same applied count, same
// rejections, same canonical hash after each turn, same final state. Stats
// are volatile and ignored. Generated note ids are pinned from the
// transcript so the bytes come out equal.
func Replay(original []byte, tr *Transcript) error {
	doc, err := parser.Parse(original)
	if err != nil {
		return &ReplayError{Msg: fmt.Sprintf("parse: %v", err)}
	}
	hash, err := serializer.Hash(doc)
	if err != nil {
		return &ReplayError{Msg: fmt.Sprintf("hash: %v", err)}
	}
	if hash != tr.InputHash {
		return &ReplayError{Msg: fmt.Sprintf("input hash is %s, transcript recorded %s", hash, tr.InputHash)}
	}

	for _, turn := range tr.Turns {
		res := patch.Apply(doc, pinNoteIDs(turn))
		if res.Applied != turn.Applied {
			return &ReplayError{Turn: turn.Index,
				Msg: fmt.Sprintf("applied %d patches, transcript recorded %d", res.Applied, turn.Applied)}
		}
		if err := compareRejections(res.Rejections, turn.Rejections); err != nil {
			return &ReplayError{Turn: turn.Index, Msg: err.Error()}
		}
		hash, err := serializer.Hash(doc)
		if err != nil {
			return &ReplayError{Turn: turn.Index, Msg: fmt.Sprintf("hash: %v", err)}
		}
		if hash != turn.Hash {
			return &ReplayError{Turn: turn.Index,
				Msg: fmt.Sprintf("hash is %s, transcript recorded %s", hash, turn.Hash)}
		}
	}

	if tr.FinalHash != "" {
		hash, err := serializer.Hash(doc)
		if err != nil {
			return &ReplayError{Turn: len(tr.Turns), Msg: fmt.Sprintf("final hash: %v", err)}
		}
		if hash != tr.FinalHash {
			return &ReplayError{Turn: len(tr.Turns),
				Msg: fmt.Sprintf("final hash is %s, transcript recorded %s", hash, tr.FinalHash)}
		}
	}
	return nil
}

// pinNoteIDs assigns the transcript's generated note ids to the add_note
// patches that applied, in order, so replay reproduces the same documents.
func pinNoteIDs(turn Turn) []patch.Patch {
	if len(turn.NoteIDs) == 0 {
		return turn.Proposed
	}
	rejected := make(map[int]bool, len(turn.Rejections))
	for _, rej := range turn.Rejections {
		rejected[rej.Index] = true
	}

	patches := make([]patch.Patch, len(turn.Proposed))
	copy(patches, turn.Proposed)
	next := 0
	for i := range patches {
		if patches[i].Op != patch.OpAddNote || rejected[i] || patches[i].Note != "" {
			continue
		}
		if next < len(turn.NoteIDs) {
			patches[i].Note = turn.NoteIDs[next]
			next++
		}
	}
	return patches
}

func compareRejections(got, want []*patch.Rejection) error {
	if len(got) != len(want) {
		return fmt.Errorf("%d rejections, transcript recorded %d", len(got), len(want))
	}
	for i := range got {
		if got[i].Index != want[i].Index || got[i].Reason != want[i].Reason {
			return fmt.Errorf("rejection %d is (%d, %s), transcript recorded (%d, %s)",
				i, got[i].Index, got[i].Reason, want[i].Index, want[i].Reason)
		}
	}
	return nil
}
