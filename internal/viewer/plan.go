package viewer

// PlanStep is one renderer a client should try, in order.
type PlanStep struct {
	Renderer  Renderer `json:"renderer"`
	URL       string   `json:"url"`
	Paginated bool     `json:"paginated"`
}

// Plan is what a client needs to run its own session from the four viewer fields.
type Plan struct {
	Variant       string     `json:"variant"`
	Title         string     `json:"title"`
	ThumbnailURL  string     `json:"thumbnailUrl,omitempty"`
	Steps         []PlanStep `json:"steps"`
	MaxAttempts   int        `json:"maxAttempts"`
	LoadTimeoutMs int64      `json:"loadTimeoutMs"`
	// Fallback is offered once every step has failed, or immediately when Steps is empty.
	Fallback []Action `json:"fallback"`
}

// BuildPlan classifies the target and lays out its escalation chain.
func BuildPlan(t Target, cfg Config) Plan {
	cfg = cfg.withDefaults()
	v := Classify(t)
	plan := Plan{
		Variant:       v.String(),
		Title:         t.Title,
		ThumbnailURL:  t.ThumbnailURL,
		Steps:         []PlanStep{},
		MaxAttempts:   cfg.MaxAttempts,
		LoadTimeoutMs: cfg.LoadTimeout.Milliseconds(),
		Fallback:      actionsFor(t, v, PhaseUnrenderable),
	}
	for _, r := range Chain(v) {
		plan.Steps = append(plan.Steps, PlanStep{Renderer: r, URL: r.URL(t.FileURL), Paginated: r.Paginated()})
	}
	return plan
}
