package viewer

// Presentation is the display state of a rendered, paginated file.
type Presentation struct {
	Page      int     `json:"page"`
	PageCount int     `json:"pageCount"`
	Zoom      float64 `json:"zoom"`
	Rotation  int     `json:"rotation"`
}

const (
	minZoom  = 0.25
	maxZoom  = 4.0
	zoomStep = 0.25
)

// SetPageCount records the page count reported by the renderer and clamps the current page.
func (s *Session) SetPageCount(n int) error {
	return s.present(func(p *Presentation) {
		p.PageCount = max(n, 0)
		p.Page = clampPage(p.Page, p.PageCount)
	})
}

func (s *Session) NextPage() error {
	return s.present(func(p *Presentation) { p.Page = clampPage(p.Page+1, p.PageCount) })
}

func (s *Session) PrevPage() error {
	return s.present(func(p *Presentation) { p.Page = clampPage(p.Page-1, p.PageCount) })
}

// SetPage moves to page n, clamped to the known page range.
func (s *Session) SetPage(n int) error {
	return s.present(func(p *Presentation) { p.Page = clampPage(n, p.PageCount) })
}

func (s *Session) ZoomIn() error {
	return s.present(func(p *Presentation) { p.Zoom = clampZoom(p.Zoom + zoomStep) })
}

func (s *Session) ZoomOut() error {
	return s.present(func(p *Presentation) { p.Zoom = clampZoom(p.Zoom - zoomStep) })
}

// Rotate turns the page a quarter turn clockwise, or counter-clockwise when clockwise is false.
func (s *Session) Rotate(clockwise bool) error {
	return s.present(func(p *Presentation) {
		delta := 90
		if !clockwise {
			delta = 270
		}
		p.Rotation = (p.Rotation + delta) % 360
	})
}

// present applies fn to the presentation state. It never touches the load state machine.
func (s *Session) present(fn func(*Presentation)) error {
	s.mu.Lock()
	switch {
	case s.phase == PhaseClosed:
		s.mu.Unlock()
		return ErrClosed
	case s.phase != PhaseRendered:
		s.mu.Unlock()
		return ErrNotRendered
	case !s.current.Renderer.Paginated():
		s.mu.Unlock()
		return ErrNoControls
	}
	fn(&s.pres)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

func clampPage(page, count int) int {
	if count > 0 && page > count {
		page = count
	}
	return max(page, 1)
}

func clampZoom(z float64) float64 {
	return min(max(z, minZoom), maxZoom)
}
