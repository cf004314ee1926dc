package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/acastellana/clawcondos/internal/board"
	apperrors "github.com/acastellana/clawcondos/internal/errors"
)

// AppendNoteParams appends text to a goal's accumulating note blob.
type AppendNoteParams struct {
	SessionKey string
	GoalID     string // optional; allowed to name a sibling goal
	Note       string
}

// AppendNote appends to the goal's notes. Notes are append-only; this is the
// second operation permitted on a sibling goal.
func (e *Engine) AppendNote(p AppendNoteParams) (err error) {
	start := time.Now()
	defer func() { e.observe(opAppendNote, start, err) }()

	note := strings.TrimSpace(p.Note)
	if note == "" {
		return apperrors.NewValidation("note", "is required")
	}

	return e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opAppendNote)
		if err != nil {
			return err
		}
		goal := r.goal

		if goal.Notes == "" {
			goal.Notes = note
		} else {
			goal.Notes += "\n" + note
		}
		goal.UpdatedAtMs = nowMs()
		return nil
	})
}

// FileSpec is one file reference to track.
type FileSpec struct {
	Path   string `json:"path"`
	TaskID string `json:"task_id,omitempty"`
	Source string `json:"source,omitempty"`
}

// TrackFilesParams records files touched while working on a goal.
type TrackFilesParams struct {
	SessionKey string
	GoalID     string
	Files      []FileSpec
}

// TrackFilesResult reports how many references were recorded.
type TrackFilesResult struct {
	Tracked int    `json:"tracked"`
	Summary string `json:"summary"`
}

// TrackFiles records file references on the goal, deduplicated by path with
// the latest submission winning. Blank paths are skipped.
func (e *Engine) TrackFiles(p TrackFilesParams) (res *TrackFilesResult, err error) {
	start := time.Now()
	defer func() { e.observe(opTrackFiles, start, err) }()

	res = &TrackFilesResult{}
	err = e.store.Update(func(b *board.Board) error {
		r, err := resolveGoal(b, p.SessionKey, p.GoalID, opTrackFiles)
		if err != nil {
			return err
		}
		goal := r.goal

		now := nowMs()
		for _, spec := range p.Files {
			path := strings.TrimSpace(spec.Path)
			if path == "" {
				continue
			}
			ref := board.FileRef{
				Path:       path,
				TaskID:     spec.TaskID,
				SessionKey: p.SessionKey,
				AddedAtMs:  now,
				Source:     spec.Source,
			}
			replaced := false
			for i := range goal.Files {
				if goal.Files[i].Path == path {
					goal.Files[i] = ref
					replaced = true
					break
				}
			}
			if !replaced {
				goal.Files = append(goal.Files, ref)
			}
			res.Tracked++
		}
		if res.Tracked > 0 {
			goal.UpdatedAtMs = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	noun := "files"
	if res.Tracked == 1 {
		noun = "file"
	}
	res.Summary = fmt.Sprintf("%d %s tracked", res.Tracked, noun)
	return res, nil
}
