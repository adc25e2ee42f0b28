package extract

import (
	"go/types"

	"github.com/ajacobm/symgraph/internal/graph"
)

// extractImplementations runs once after every document has been
// visited, when the full sets of declared concrete types and declared
// interfaces are known. It emits one implementation edge per
// (type, interface) pair whose method set matches, checking both the
// value and pointer method sets. Empty interfaces are suppressed: an
// edge to the universal interface carries no information.
func (c *buildContext) extractImplementations() {
	for _, iface := range c.ifaces {
		it, ok := iface.Underlying().(*types.Interface)
		if !ok || it.Empty() {
			continue
		}
		ifaceNode := c.g.GetNode(TypeID(iface.Obj()))
		if ifaceNode == nil {
			continue
		}

		for _, t := range c.concrete {
			if !types.Implements(t, it) && !types.Implements(types.NewPointer(t), it) {
				continue
			}
			src := c.g.GetNode(TypeID(t.Obj()))
			c.addEdge(graph.EdgeImplements, src, ifaceNode, nil, nil)
		}
	}
}
