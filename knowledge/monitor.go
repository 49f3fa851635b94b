package knowledge

import "github.com/poiesic/learnbot/core"

// SearchMonitor provides hooks to observe a similarity search.
type SearchMonitor interface {
	Start(query string, k int)
	AfterSemanticSearch(candidates []*core.SimilarityMatch)
	VerbatimHit(fragment *core.Fragment)
	Finish(results []*core.SimilarityMatch)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                         {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.SimilarityMatch) {}
func (n *noopMonitor) VerbatimHit(_ *core.Fragment)                  {}
func (n *noopMonitor) Finish(_ []*core.SimilarityMatch)              {}
