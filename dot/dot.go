// Package dot renders the memory graph of a state in Graphviz DOT format.
//
// Stack objects are grouped in one cluster per frame, globals in their own
// cluster and heap objects at the top level. Freed and out-of-scope objects
// are drawn as red double octagons. Edges point from the bytes holding an
// address to the object it refers to.
package dot

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/benbjohnson/smg"
)

// Name of the root graph.
const graphName = "smg"

// MaxValues is the number of values listed in an object's label.
var MaxValues = 8

// Graph returns the DOT graph of the state's memory.
func Graph(s *smg.State) (*gographviz.Graph, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(graphName); err != nil {
		return nil, err
	} else if err := g.SetDir(true); err != nil {
		return nil, err
	}

	label := "state"
	if s.ID() != 0 {
		label = fmt.Sprintf("state #%d", s.ID())
	}
	if v := s.Violation(); v != nil {
		label += `\n` + v.String()
	}
	if err := g.AddAttr(graphName, "label", quote(label)); err != nil {
		return nil, err
	}

	// Clusters for globals and each stack frame.
	if err := g.AddSubGraph(graphName, globalsCluster, map[string]string{"label": quote("globals")}); err != nil {
		return nil, err
	}
	for i, f := range s.Frames() {
		attrs := map[string]string{"label": quote(fmt.Sprintf("#%d %s", i, f.Function().Name))}
		if err := g.AddSubGraph(graphName, frameCluster(i), attrs); err != nil {
			return nil, err
		}
	}

	graph := s.Graph()
	for _, obj := range graph.Objects() {
		if err := g.AddNode(parent(s, obj), nodeName(obj), nodeAttrs(graph, obj)); err != nil {
			return nil, err
		}
	}

	for _, obj := range graph.Objects() {
		for _, e := range graph.Edges(obj) {
			for _, target := range graph.Targets(e.Value) {
				attrs := map[string]string{"label": quote(fmt.Sprintf("+%d/%db", e.Offset, e.Size))}
				if err := g.AddEdge(nodeName(obj), nodeName(target), true, attrs); err != nil {
					return nil, err
				}
			}
		}
	}
	return g, nil
}

// Write writes the DOT graph of the state's memory to w.
func Write(w io.Writer, s *smg.State) error {
	g, err := Graph(s)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, g.String())
	return err
}

const globalsCluster = "cluster_globals"

func frameCluster(i int) string {
	return fmt.Sprintf("cluster_frame%d", i)
}

// parent returns the graph containing the node of obj.
func parent(s *smg.State, obj *smg.Object) string {
	switch obj.Kind {
	case smg.ObjectGlobal:
		return globalsCluster
	case smg.ObjectStack:
		if obj.Frame >= 0 && obj.Frame < len(s.Frames()) {
			return frameCluster(obj.Frame)
		}
	}
	return graphName
}

func nodeName(obj *smg.Object) string {
	return fmt.Sprintf("obj%d", obj.ID)
}

func nodeAttrs(graph *smg.Graph, obj *smg.Object) map[string]string {
	lines := []string{obj.Label, fmt.Sprintf("size=%s", obj.Size)}
	edges := graph.Edges(obj)
	for i, e := range edges {
		if i == MaxValues {
			lines = append(lines, fmt.Sprintf("(%d more)", len(edges)-i))
			break
		}
		lines = append(lines, fmt.Sprintf("[%d,%d) = %s", e.Offset, e.End(), e.Value))
	}

	attrs := map[string]string{
		"label": quote(strings.Join(lines, `\n`)),
		"shape": "box",
	}
	if obj.Validity != smg.Valid {
		attrs["shape"] = "doubleoctagon"
		attrs["color"] = "red"
	} else if obj.External {
		attrs["style"] = "dashed"
	}
	return attrs
}

// quote returns s as a DOT string. Escape sequences for line breaks are
// kept as written.
func quote(s string) string {
	return strings.Replace(strconv.Quote(s), `\\n`, `\n`, -1)
}
