package search

import "github.com/poiesic/counsel/backend"

// SearchMonitor provides hooks to observe the search process.
// Hooks for the two legs may be called from different goroutines but never
// concurrently with Start or Finish.
type SearchMonitor interface {
	Start(query string)
	AfterKeywordSearch(results []Result)
	AfterSemanticSearch(hits []backend.SemanticHit)
	SemanticSearchFailed(err error)
	HybridHit(result Result)
	Finish(results []Result)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                              {}
func (n *noopMonitor) AfterKeywordSearch(_ []Result)               {}
func (n *noopMonitor) AfterSemanticSearch(_ []backend.SemanticHit) {}
func (n *noopMonitor) SemanticSearchFailed(_ error)                {}
func (n *noopMonitor) HybridHit(_ Result)                          {}
func (n *noopMonitor) Finish(_ []Result)                           {}
