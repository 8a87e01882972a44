package runlog

import (
	"github.com/agentsup/agentsup/internal/cliproto"
	"github.com/agentsup/agentsup/internal/itemfold"
)

// ReplayResult is the reconstructed message for a stored run, produced by
// running the identical Item Folder used for live streaming over the
// stored NDJSON lines. It must match the live stream's final state exactly
// (content blocks, tool calls by id/name/input/output, full text).
type ReplayResult struct {
	Text     string
	Blocks   []cliproto.ContentBlock
	ToolCalls []cliproto.ToolCall
}

// Replay reconstructs a run's assistant message from its stored run log.
// Malformed individual lines are skipped (ParseError is never fatal to
// replay), matching the live supervisor's tolerance policy.
func Replay(path string, fallback itemfold.FallbackMode, crashed bool) (ReplayResult, error) {
	lines, err := ReadRunLogLines(path)
	if err != nil {
		return ReplayResult{}, err
	}

	folder := itemfold.New(fallback)
	for _, line := range lines {
		ev, err := cliproto.ParseLine([]byte(line))
		if err != nil {
			continue // ParseError: logged and discarded, not fatal
		}
		if ev.Item == nil {
			continue
		}
		if _, err := folder.Apply(*ev.Item); err != nil {
			continue
		}
	}

	text := folder.Text()
	if crashed && text == "" {
		text = PlaceholderText
	}

	return ReplayResult{
		Text:      text,
		Blocks:    folder.Blocks(),
		ToolCalls: folder.ToolCalls(),
	}, nil
}
