package reconciler

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yeremiapane/restaurant-floor/models"
)

const (
	UnassignedAreaID   = "unknown"
	UnassignedAreaName = "Unassigned"
)

type TableView struct {
	models.Table
	Display DisplayStatus `json:"display"`
}

type AreaGroup struct {
	AreaID   string      `json:"areaId"`
	AreaName string      `json:"areaName"`
	Tables   []TableView `json:"tables"`
}

var tagNumber = regexp.MustCompile(`\d+`)

// GroupByArea groups tables by area. Known areas come first in name order,
// including areas without tables; tables with no area, or with an area
// missing from a loaded area list, land in the unassigned bucket last.
// A nil areas slice means the area list is not loaded yet.
func GroupByArea(tables []models.Table, areas []models.Area) []AreaGroup {
	groups := make(map[string]*AreaGroup)
	known := make(map[string]bool, len(areas))
	for _, a := range areas {
		known[a.ID] = true
		groups[a.ID] = &AreaGroup{AreaID: a.ID, AreaName: a.Name, Tables: []TableView{}}
	}

	for _, t := range tables {
		id := UnassignedAreaID
		if t.AreaID != nil && *t.AreaID != "" && (areas == nil || known[*t.AreaID]) {
			id = *t.AreaID
		}
		g, ok := groups[id]
		if !ok {
			name := t.AreaName
			if id == UnassignedAreaID {
				name = UnassignedAreaName
			} else if name == "" {
				name = id
			}
			g = &AreaGroup{AreaID: id, AreaName: name, Tables: []TableView{}}
			groups[id] = g
		}
		g.Tables = append(g.Tables, TableView{Table: t, Display: NormalizeStatus(t.Status)})
	}

	out := make([]AreaGroup, 0, len(groups))
	var unassigned *AreaGroup
	for id, g := range groups {
		sortTables(g.Tables)
		if id == UnassignedAreaID {
			unassigned = g
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		ni, nj := strings.ToLower(out[i].AreaName), strings.ToLower(out[j].AreaName)
		if ni == nj {
			return out[i].AreaID < out[j].AreaID
		}
		return ni < nj
	})
	if unassigned != nil {
		out = append(out, *unassigned)
	}
	return out
}

func sortTables(tables []TableView) {
	sort.SliceStable(tables, func(i, j int) bool {
		return tagLess(tables[i].Tag, tables[j].Tag, tables[i].ID, tables[j].ID)
	})
}

// tagLess orders "Table 2" before "Table 10": by the first number in the
// tags when both have one, lexically otherwise.
func tagLess(a, b, idA, idB string) bool {
	na, okA := tagNum(a)
	nb, okB := tagNum(b)
	if okA && okB && na != nb {
		return na < nb
	}
	if a != b {
		return a < b
	}
	return idA < idB
}

func tagNum(tag string) (int, bool) {
	m := tagNumber.FindString(tag)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
