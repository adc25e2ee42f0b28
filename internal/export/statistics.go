package export

import "github.com/ajacobm/symgraph/internal/graph"

// ComputeStatistics aggregates whole-graph indicators. Average
// complexity is taken over callable nodes only, since other kinds
// never carry a complexity score.
func ComputeStatistics(g *graph.SymbolGraph) *graph.GraphStatistics {
	stats := &graph.GraphStatistics{
		TotalNodes: g.NodeCount(),
		TotalEdges: g.EdgeCount(),
	}
	if g.Metadata != nil {
		stats.ProcessedFiles = len(g.Metadata.ProcessedFiles)
	}

	var complexitySum, callables int
	for _, n := range g.Nodes() {
		if n.Kind == graph.KindFunc || n.Kind == graph.KindMethod {
			complexitySum += n.Metrics.Complexity
			callables++
		}
		if n.Metrics.IncomingRefs > stats.MaxIncoming {
			stats.MaxIncoming = n.Metrics.IncomingRefs
		}
		if n.Metrics.OutgoingRefs > stats.MaxOutgoing {
			stats.MaxOutgoing = n.Metrics.OutgoingRefs
		}
	}
	if callables > 0 {
		stats.AvgComplexity = float64(complexitySum) / float64(callables)
	}
	return stats
}
