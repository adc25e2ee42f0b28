// Package export renders finished symbol graphs for consumers: a JSON
// document shape for tool responses and files, and a Cypher bulk
// script for graph databases.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/ajacobm/symgraph/internal/graph"
)

// GraphDocument is the serialized form of one extraction result. Node
// order is canonical (sorted by id) and edge order follows discovery,
// so two exports of the same graph are byte-identical.
type GraphDocument struct {
	Nodes      []*graph.SymbolNode    `json:"nodes"`
	Edges      []*graph.SymbolEdge    `json:"edges"`
	Metadata   *graph.GraphMetadata   `json:"metadata,omitempty"`
	Statistics *graph.GraphStatistics `json:"statistics,omitempty"`
	Warnings   []string               `json:"warnings,omitempty"`

	// Cypher is present only when the caller asked for it.
	Cypher string `json:"cypher,omitempty"`
}

// BuildDocument assembles the export document, computing statistics if
// the graph does not carry them yet.
func BuildDocument(g *graph.SymbolGraph, warnings []string, includeCypher bool) *GraphDocument {
	stats := g.Statistics
	if stats == nil {
		stats = ComputeStatistics(g)
	}
	doc := &GraphDocument{
		Nodes:      g.Nodes(),
		Edges:      g.Edges(),
		Metadata:   g.Metadata,
		Statistics: stats,
		Warnings:   warnings,
	}
	if includeCypher {
		doc.Cypher = Cypher(g)
	}
	return doc
}

// MarshalIndent renders the document as indented JSON.
func (d *GraphDocument) MarshalIndent() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding graph document: %w", err)
	}
	return data, nil
}
