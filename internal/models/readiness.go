package models

// ReadinessAssessment is the computed cross-reference between a grant and ACT's
// own projects, assets and stories. It is stored inline on the grant record.
type ReadinessAssessment struct {
	ReadinessPct    int              `json:"readiness_pct"`
	AlignedProjects []AlignedProject `json:"aligned_projects"`
	MatchedStories  []MatchedStory   `json:"matched_stories"`
	Assets          AssetPartition   `json:"assets"`
	KnowledgeHits   int              `json:"knowledge_hits"`
	Gaps            []string         `json:"gaps"`
}

type AlignedProject struct {
	ProjectCode string `json:"project_code"`
	Score       int    `json:"score"`
	Reason      string `json:"reason"`
}

type MatchedStory struct {
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Relevance float64 `json:"relevance"`
}

type AssetPartition struct {
	Ready   []string `json:"ready"`
	Missing []string `json:"missing"`
}

// TopAlignment returns the best aligned project, if any.
func (r *ReadinessAssessment) TopAlignment() (AlignedProject, bool) {
	if r == nil || len(r.AlignedProjects) == 0 {
		return AlignedProject{}, false
	}
	return r.AlignedProjects[0], true
}

// ProjectCodes lists the aligned project codes in rank order.
func (r *ReadinessAssessment) ProjectCodes() []string {
	if r == nil {
		return nil
	}
	codes := make([]string, 0, len(r.AlignedProjects))
	for _, p := range r.AlignedProjects {
		codes = append(codes, p.ProjectCode)
	}
	return codes
}
