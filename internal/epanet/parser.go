// Package epanet parses EPANET .inp network files into an ordered list of
// nodes and directed links, inferring each node's role in the hierarchy.
//
// No third-party library in the teacher's or pack's dependency set covers
// this bespoke, whitespace-delimited line format; this package is
// stdlib-only by necessity (see DESIGN.md).
package epanet

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/aosanya/waterguard/internal/models"
	"github.com/aosanya/waterguard/internal/waterr"
)

// MaxFileSize is the largest .inp file this parser will accept, per spec §4.B.
const MaxFileSize = 50 * 1024 * 1024

// Link is a directed pipe/pump/valve connection between two node ids.
type Link struct {
	ID   string
	From string
	To   string
}

// ParsedNode is one node discovered while scanning the file, before role
// inference runs.
type ParsedNode struct {
	ID           string
	Role         models.NodeType
	Elevation    float64
	Demand       float64
	IsReservoir  bool
	IsJunctionTag bool
	ParentID     string
}

// Result is the ordered output of Parse: nodes (with inferred roles and
// parents) and the directed links that produced them.
type Result struct {
	Nodes []ParsedNode
	Links []Link
}

type section int

const (
	sectionNone section = iota
	sectionJunctions
	sectionTanks
	sectionReservoirs
	sectionPipes
	sectionPumps
	sectionValves
)

func sectionFor(header string) section {
	switch strings.ToUpper(strings.TrimSpace(header)) {
	case "[JUNCTIONS]":
		return sectionJunctions
	case "[TANKS]":
		return sectionTanks
	case "[RESERVOIRS]":
		return sectionReservoirs
	case "[PIPES]":
		return sectionPipes
	case "[PUMPS]":
		return sectionPumps
	case "[VALVES]":
		return sectionValves
	default:
		return sectionNone
	}
}

// Parse reads an EPANET .inp file from r and returns its nodes (role
// inferred, parent assigned) and directed links.
func Parse(r io.Reader) (*Result, error) {
	limited := &io.LimitedReader{R: r, N: MaxFileSize + 1}
	scanner := bufio.NewScanner(limited)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	nodeOrder := make([]string, 0)
	nodes := make(map[string]*ParsedNode)
	links := make([]Link, 0)

	sawJunctions := false
	sawPipes := false
	cur := sectionNone

	ensureNode := func(id string) *ParsedNode {
		if n, ok := nodes[id]; ok {
			return n
		}
		n := &ParsedNode{ID: id}
		nodes[id] = n
		nodeOrder = append(nodeOrder, id)
		return n
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ";") {
			continue
		}
		if strings.HasPrefix(trimmed, "[") {
			cur = sectionFor(trimmed)
			if cur == sectionJunctions {
				sawJunctions = true
			}
			if cur == sectionPipes {
				sawPipes = true
			}
			continue
		}

		// strip inline comments
		if idx := strings.Index(trimmed, ";"); idx >= 0 {
			trimmed = strings.TrimSpace(trimmed[:idx])
			if trimmed == "" {
				continue
			}
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}

		switch cur {
		case sectionJunctions:
			n := ensureNode(fields[0])
			n.IsJunctionTag = true
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					n.Elevation = v
				}
			}
			if len(fields) > 2 {
				if v, err := strconv.ParseFloat(fields[2], 64); err == nil {
					n.Demand = v
				}
			}
		case sectionTanks:
			n := ensureNode(fields[0])
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					n.Elevation = v
				}
			}
		case sectionReservoirs:
			n := ensureNode(fields[0])
			n.IsReservoir = true
			if len(fields) > 1 {
				if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
					n.Elevation = v
				}
			}
		case sectionPipes, sectionPumps, sectionValves:
			if len(fields) < 3 {
				continue
			}
			id, from, to := fields[0], fields[1], fields[2]
			ensureNode(from)
			ensureNode(to)
			links = append(links, Link{ID: id, From: from, To: to})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, waterr.Wrap(waterr.InvalidInput, "failed to scan .inp file", err)
	}
	if limited.N <= 0 {
		return nil, waterr.Newf(waterr.InvalidInput, "file exceeds maximum size of %d bytes", MaxFileSize)
	}
	if !sawJunctions && !sawPipes {
		return nil, waterr.New(waterr.InvalidInput, "neither [JUNCTIONS] nor [PIPES] section present")
	}

	assignRoles(nodeOrder, nodes, links)
	assignParents(nodeOrder, nodes, links)

	result := &Result{Links: links}
	for _, id := range nodeOrder {
		result.Nodes = append(result.Nodes, *nodes[id])
	}
	return result, nil
}

// assignRoles implements the deterministic role-inference rules of spec §4.B.
func assignRoles(order []string, nodes map[string]*ParsedNode, links []Link) {
	incomingCount := make(map[string]int)
	outgoingCount := make(map[string]int)
	for _, l := range links {
		incomingCount[l.To]++
		outgoingCount[l.From]++
	}

	for _, id := range order {
		n := nodes[id]
		switch {
		case incomingCount[id] == 0 || n.IsReservoir:
			n.Role = models.NodeMainline
		case n.Demand > 0:
			n.Role = models.NodeHousehold
		case outgoingCount[id] >= 2 || n.IsJunctionTag:
			n.Role = models.NodeJunction
		default:
			n.Role = models.NodeBranch
		}
	}
}

// assignParents sets each node's parent to the source of its first
// incoming link, breaking ties by lexicographic link id order.
func assignParents(order []string, nodes map[string]*ParsedNode, links []Link) {
	incoming := make(map[string][]Link)
	for _, l := range links {
		incoming[l.To] = append(incoming[l.To], l)
	}
	for _, id := range order {
		ls := incoming[id]
		if len(ls) == 0 {
			continue
		}
		sort.Slice(ls, func(i, j int) bool { return ls[i].ID < ls[j].ID })
		nodes[id].ParentID = ls[0].From
	}
}

// ValidateFile is a convenience check used by import handlers before
// committing to a full parse, surfacing a friendlier message for the
// common "not an .inp file at all" case.
func ValidateFile(name string) error {
	if !strings.HasSuffix(strings.ToLower(name), ".inp") {
		return waterr.Newf(waterr.InvalidInput, "unsupported file extension for %q, expected .inp", name)
	}
	return nil
}
