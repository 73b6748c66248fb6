package tracker

import (
	"fmt"
	"sort"

	"github.com/swdee/go-maskflow"
)

// Track is a set of spots connected by links, ordered by frame
type Track struct {
	ObjectID int
	Spots    []Spot
}

// Assembler turns a link graph into disjoint tracks
type Assembler struct {
	// Merge unions two tracks when a link joins spots already placed in
	// different tracks.  When unset such links are ignored, which leaves
	// chains discovered from both ends as separate tracks.
	Merge bool
}

// Assemble builds the tracks of spots under graph.  Every spot ends up in
// exactly one track and object ids are dense from 0 in track creation order.
func (a Assembler) Assemble(spots []Spot, graph *LinkGraph) []Track {

	byID := make(map[int]Spot, len(spots))

	for _, s := range spots {
		byID[s.ID] = s
	}

	var (
		buckets [][]int
		// member maps a spot id to its bucket index
		member = make(map[int]int)
		// alive is false for buckets merged into an earlier one
		alive []bool
	)

	newBucket := func(ids ...int) {
		for _, id := range ids {
			member[id] = len(buckets)
		}

		buckets = append(buckets, ids)
		alive = append(alive, true)
	}

	if graph != nil {
		for _, u := range graph.Vertices() {

			if _, ok := byID[u]; !ok {
				continue
			}

			for _, v := range graph.Neighbors(u) {

				if _, ok := byID[v]; !ok {
					continue
				}

				bu, inU := member[u]
				bv, inV := member[v]

				switch {
				case inU && inV:
					if a.Merge && bu != bv {
						a.union(buckets, member, alive, bu, bv)
					}

				case inU:
					member[v] = bu
					buckets[bu] = append(buckets[bu], v)

				case inV:
					member[u] = bv
					buckets[bv] = append(buckets[bv], u)

				default:
					newBucket(u, v)
				}
			}
		}
	}

	singles := make([]Spot, len(spots))
	copy(singles, spots)
	sort.SliceStable(singles, func(i, j int) bool {
		return singles[i].Frame < singles[j].Frame
	})

	for _, s := range singles {
		if _, ok := member[s.ID]; !ok {
			newBucket(s.ID)
		}
	}

	tracks := make([]Track, 0, len(buckets))

	for b, ids := range buckets {

		if !alive[b] {
			continue
		}

		t := Track{
			ObjectID: len(tracks),
			Spots:    make([]Spot, 0, len(ids)),
		}

		for _, id := range ids {
			t.Spots = append(t.Spots, byID[id])
		}

		sort.SliceStable(t.Spots, func(i, j int) bool {
			if t.Spots[i].Frame != t.Spots[j].Frame {
				return t.Spots[i].Frame < t.Spots[j].Frame
			}
			return t.Spots[i].ID < t.Spots[j].ID
		})

		tracks = append(tracks, t)
	}

	return tracks
}

// union moves the members of the later of buckets x and y into the earlier
func (a Assembler) union(buckets [][]int, member map[int]int, alive []bool, x, y int) {

	keep, drop := x, y

	if drop < keep {
		keep, drop = drop, keep
	}

	for _, id := range buckets[drop] {
		member[id] = keep
	}

	buckets[keep] = append(buckets[keep], buckets[drop]...)
	buckets[drop] = nil
	alive[drop] = false
}

// Annotate writes the object id of every tracked spot into table.  Rows
// without a spot keep maskflow.Unassigned.
func Annotate(table *maskflow.DetectionTable, tracks []Track) error {

	table.AddObjectIDColumn()

	for _, t := range tracks {
		for _, s := range t.Spots {
			if err := table.SetObjectID(s.ID, t.ObjectID); err != nil {
				return fmt.Errorf("error annotating track %d: %w", t.ObjectID, err)
			}
		}
	}

	return nil
}
