package statetree

import (
	"fmt"

	"github.com/emicklei/dot"
)

// RenderDotGraph renders the current tree shape in Graphviz DOT form, one
// graph node per tree node with "l"/"r" labeled edges. Shadowed duplicates
// show up as extra leaves, which makes this handy for inspecting the upsert
// behavior on small trees.
func RenderDotGraph(t *Tree) string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	graph := dot.NewGraph(dot.Directed)
	if t.root != nil {
		var seq int
		renderNode(graph, t.root, &seq)
	}
	return graph.String()
}

func renderNode(graph *dot.Graph, node *Node, seq *int) dot.Node {
	*seq++
	var label string
	if node.isLeaf() {
		label = fmt.Sprintf("K:0x%X V:0x%X ver:%d", node.key, node.value, node.version)
	} else {
		label = fmt.Sprintf("K:0x%X H:%d S:%d", node.key, node.subtreeHeight, node.size)
	}
	n := graph.Node(fmt.Sprintf("n%d", *seq)).Attr("label", label)
	if node.leftNode != nil {
		left := renderNode(graph, node.leftNode, seq)
		n.Edge(left, "l")
	}
	if node.rightNode != nil {
		right := renderNode(graph, node.rightNode, seq)
		n.Edge(right, "r")
	}
	return n
}
