package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// Gambit element type of a tetrahedron
const gambitTet = 6

// ReadGambitNeutral reads a Gambit neutral file (.neu). Only tetrahedra are
// accepted; the element group of each element becomes its material tag.
func ReadGambitNeutral(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	msh, err := ParseGambitNeutral(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return msh, nil
}

func atoi(fields []string, i int, what string) (int, error) {
	if i >= len(fields) {
		return 0, fmt.Errorf("missing %s", what)
	}
	v, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, fmt.Errorf("bad %s %q: %w", what, fields[i], err)
	}
	return v, nil
}

// ParseGambitNeutral reads a Gambit neutral mesh from r
func ParseGambitNeutral(r io.Reader) (*Mesh, error) {
	msh := NewMesh()
	scanner := bufio.NewScanner(r)

	// Control variables from header
	var numnp, nelem int

	// Read control info section
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.Contains(line, "NUMNP") && strings.Contains(line, "NELEM") {
			// Next line contains the actual values
			if !scanner.Scan() {
				return nil, fmt.Errorf("unexpected EOF after control header")
			}
			values := strings.Fields(scanner.Text())
			var err error
			for i, dst := range []*int{&numnp, &nelem} {
				if *dst, err = atoi(values, i, "control value"); err != nil {
					return nil, err
				}
			}
			break
		}
	}

	// Continue reading sections
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "ENDOFSECTION" {
			continue
		}

		if strings.Contains(line, "NODAL COORDINATES") {
			msh.Vertices = make([]r3.Vec, numnp)
			for i := 0; i < numnp; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected EOF reading nodes")
				}
				fields := strings.Fields(scanner.Text())
				if len(fields) < 4 {
					return nil, fmt.Errorf("node line %q: expected id and 3 coordinates", scanner.Text())
				}
				nodeID, err := atoi(fields, 0, "node id")
				if err != nil {
					return nil, err
				}
				var x [3]float64
				for j := range x {
					if x[j], err = strconv.ParseFloat(fields[1+j], 64); err != nil {
						return nil, fmt.Errorf("node %d: %w", nodeID, err)
					}
				}
				// Gambit uses 1-based node IDs
				idx := nodeID - 1
				if idx < 0 || idx >= numnp {
					return nil, fmt.Errorf("node id %d out of range [1,%d]", nodeID, numnp)
				}
				msh.Vertices[idx] = r3.Vec{X: x[0], Y: x[1], Z: x[2]}
			}

		} else if strings.Contains(line, "ELEMENTS/CELLS") {
			msh.EtoV = make([][4]int, 0, nelem)
			msh.ElementTags = make([]int, 0, nelem)

			for i := 0; i < nelem; i++ {
				if !scanner.Scan() {
					return nil, fmt.Errorf("unexpected EOF reading elements")
				}
				fields := strings.Fields(scanner.Text())
				// Format: NE NTYPE NDP NODE1 NODE2 ...
				elemID, err := atoi(fields, 0, "element id")
				if err != nil {
					return nil, err
				}
				gambitType, err := atoi(fields, 1, "element type")
				if err != nil {
					return nil, err
				}
				if gambitType != gambitTet {
					return nil, fmt.Errorf("element %d: gambit element type %d is not a tetrahedron", elemID, gambitType)
				}
				var nodes [4]int
				for j := range nodes {
					nodeID, err := atoi(fields, 3+j, "element node")
					if err != nil {
						return nil, fmt.Errorf("element %d: %w", elemID, err)
					}
					// Convert from 1-based to 0-based
					nodes[j] = nodeID - 1
				}
				msh.EtoV = append(msh.EtoV, nodes)
				msh.ElementTags = append(msh.ElementTags, 0) // Default tag
			}

		} else if strings.Contains(line, "ELEMENT GROUP") {
			// Format: GROUP: NGP ELEMENTS: NELGP MATERIAL: MTYP NFLAGS: NFLAGS
			if !scanner.Scan() {
				break
			}
			var groupID, numElems, nflags int
			parts := strings.Fields(scanner.Text())
			for i := 0; i < len(parts)-1; i++ {
				switch parts[i] {
				case "GROUP:":
					groupID, _ = strconv.Atoi(parts[i+1])
				case "ELEMENTS:":
					numElems, _ = strconv.Atoi(parts[i+1])
				case "NFLAGS:":
					nflags, _ = strconv.Atoi(parts[i+1])
				}
			}

			// Skip entity name
			scanner.Scan()
			// Skip flags
			if nflags > 0 {
				scanner.Scan()
			}

			// Read element IDs in this group
			elementsRead := 0
			for elementsRead < numElems && scanner.Scan() {
				fields := strings.Fields(scanner.Text())
				if len(fields) == 1 && fields[0] == "ENDOFSECTION" {
					break
				}
				for _, field := range fields {
					elemID, err := strconv.Atoi(field)
					if err != nil || elemID < 1 || elemID > len(msh.EtoV) {
						return nil, fmt.Errorf("group %d: bad element id %q", groupID, field)
					}
					// Elements are 1-indexed in file
					msh.ElementTags[elemID-1] = groupID
					elementsRead++
				}
			}

		} else if strings.Contains(line, "BOUNDARY CONDITIONS") {
			// Only the names are kept, boundary faces are found from the
			// connectivity
			if !scanner.Scan() {
				break
			}
			parts := strings.Fields(scanner.Text())
			if len(parts) >= 3 {
				msh.BoundaryTags[len(msh.BoundaryTags)] = parts[0]
				nentry, _ := strconv.Atoi(parts[2])
				for i := 0; i < nentry && scanner.Scan(); i++ {
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	if len(msh.Vertices) != numnp || len(msh.EtoV) != nelem {
		return nil, fmt.Errorf("read %d nodes and %d elements, header announced %d and %d",
			len(msh.Vertices), len(msh.EtoV), numnp, nelem)
	}

	msh.NumElements = len(msh.EtoV)
	msh.NumVertices = len(msh.Vertices)
	if err := msh.BuildConnectivity(); err != nil {
		return nil, err
	}
	return msh, nil
}

// WriteGambitNeutral writes the mesh as a Gambit neutral file, one element
// group per material tag
func (m *Mesh) WriteGambitNeutral(w io.Writer) error {
	bw := bufio.NewWriter(w)
	groups := make(map[int][]int)
	var order []int
	for k, tag := range m.ElementTags {
		if _, ok := groups[tag]; !ok {
			order = append(order, tag)
		}
		groups[tag] = append(groups[tag], k+1)
	}

	fmt.Fprintf(bw, "        CONTROL INFO 2.0.0\n** GAMBIT NEUTRAL FILE\nparbdy\n")
	fmt.Fprintf(bw, "PROGRAM:                parbdy     VERSION:  1.0\n\n")
	fmt.Fprintf(bw, "     NUMNP     NELEM     NGRPS    NBSETS     NDFCD     NDFVL\n")
	fmt.Fprintf(bw, "%10d%10d%10d%10d%10d%10d\nENDOFSECTION\n", m.NumVertices, m.NumElements, len(order), 0, 3, 3)

	fmt.Fprintf(bw, "   NODAL COORDINATES 2.0.0\n")
	for i, v := range m.Vertices {
		fmt.Fprintf(bw, "%10d%20.11e%20.11e%20.11e\n", i+1, v.X, v.Y, v.Z)
	}
	fmt.Fprintf(bw, "ENDOFSECTION\n   ELEMENTS/CELLS 2.0.0\n")
	for k, v := range m.EtoV {
		fmt.Fprintf(bw, "%8d %2d %2d %8d%8d%8d%8d\n", k+1, gambitTet, 4, v[0]+1, v[1]+1, v[2]+1, v[3]+1)
	}
	fmt.Fprintf(bw, "ENDOFSECTION\n")

	for _, tag := range order {
		fmt.Fprintf(bw, "       ELEMENT GROUP 2.0.0\n")
		fmt.Fprintf(bw, "GROUP: %10d ELEMENTS: %10d MATERIAL: %10d NFLAGS: %10d\n", tag, len(groups[tag]), 2, 1)
		fmt.Fprintf(bw, "%32s\n%8d\n", fmt.Sprintf("material %d", tag), 0)
		for i, k := range groups[tag] {
			fmt.Fprintf(bw, "%8d", k)
			if (i+1)%10 == 0 || i == len(groups[tag])-1 {
				fmt.Fprintf(bw, "\n")
			}
		}
		fmt.Fprintf(bw, "ENDOFSECTION\n")
	}
	return bw.Flush()
}
