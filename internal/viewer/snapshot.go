package viewer

import "github.com/Lllllllleong/documentpreview/internal/format"

// ActionKind is something the user can always do with a file.
type ActionKind string

const (
	ActionDownload       ActionKind = "download"
	ActionOpenExternally ActionKind = "open-externally"
)

type Action struct {
	Kind  ActionKind `json:"kind"`
	Label string     `json:"label"`
	URL   string     `json:"url"`
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	Phase        Phase
	Variant      format.Variant
	Attempt      Attempt
	Tried        []Renderer
	Failures     []Failure
	Presentation Presentation
	Actions      []Action
}

// Snapshot returns the session's current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		Phase:    s.phase,
		Variant:  s.variant,
		Attempt:  s.current,
		Failures: append([]Failure(nil), s.failures...),
		Actions:  actionsFor(s.target, s.variant, s.phase),
	}
	for _, f := range s.failures {
		if len(snap.Tried) == 0 || snap.Tried[len(snap.Tried)-1] != f.Renderer {
			snap.Tried = append(snap.Tried, f.Renderer)
		}
	}
	if s.phase == PhaseRendered {
		snap.Presentation = s.pres
	}
	return snap
}

// actionsFor always includes a download of the original, so no state leaves the user stuck.
func actionsFor(t Target, v format.Variant, phase Phase) []Action {
	actions := []Action{{Kind: ActionDownload, Label: "Download", URL: t.FileURL}}
	if phase == PhaseUnrenderable && v == format.OfficeDocument {
		actions = append(actions, Action{
			Kind:  ActionOpenExternally,
			Label: "Open in Office Online",
			URL:   "https://view.officeapps.live.com/op/view.aspx?src=" + escape(t.FileURL),
		})
	}
	return actions
}
