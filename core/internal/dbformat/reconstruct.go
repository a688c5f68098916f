package dbformat

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Row is one stored structure node as returned by the object aggregate
// jsonb_build_array(num, parent_num, entity_attribute, entity_idx, data).
type Row struct {
	Num       int
	ParentNum int
	Attribute string
	// Index is the position within a multi-valued attribute; -1 for single
	// valued attributes.
	Index int
	Data  json.RawMessage
}

// Reconstruct rebuilds the RM object rooted at the row with the lowest num.
// Every other row must descend from it.
func Reconstruct(rows []Row) (map[string]interface{}, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("dbformat: no rows to reconstruct")
	}
	rows = append([]Row(nil), rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Num < rows[j].Num })

	objs := make(map[int]map[string]interface{}, len(rows))
	for i, r := range rows {
		v, err := decode(r.Data)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.Num, err)
		}
		v, err = FromDBValue(v)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.Num, err)
		}
		obj, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("dbformat: row %d: data is not an object", r.Num)
		}
		objs[r.Num] = obj

		if i == 0 {
			continue
		}
		parent, ok := objs[r.ParentNum]
		if !ok {
			return nil, fmt.Errorf("dbformat: row %d: parent %d is not part of the object", r.Num, r.ParentNum)
		}
		if err := attach(parent, r.Attribute, r.Index, obj); err != nil {
			return nil, fmt.Errorf("row %d: %w", r.Num, err)
		}
	}

	root := objs[rows[0].Num]
	compact(root)
	return root, nil
}

// ReconstructJSON decodes the aggregate, rebuilds the object and returns it
// as RM JSON.
func ReconstructJSON(agg []byte) ([]byte, error) {
	var raw [][]json.RawMessage
	if err := json.Unmarshal(agg, &raw); err != nil {
		return nil, fmt.Errorf("dbformat: %w", err)
	}

	rows := make([]Row, 0, len(raw))
	for _, e := range raw {
		if len(e) != 5 {
			return nil, fmt.Errorf("dbformat: aggregate entry has %d elements", len(e))
		}
		var r Row
		var parent *int
		var idx *int
		if err := json.Unmarshal(e[0], &r.Num); err != nil {
			return nil, fmt.Errorf("dbformat: num: %w", err)
		}
		if err := json.Unmarshal(e[1], &parent); err != nil {
			return nil, fmt.Errorf("dbformat: parent_num: %w", err)
		}
		if err := json.Unmarshal(e[2], &r.Attribute); err != nil {
			return nil, fmt.Errorf("dbformat: entity_attribute: %w", err)
		}
		if err := json.Unmarshal(e[3], &idx); err != nil {
			return nil, fmt.Errorf("dbformat: entity_idx: %w", err)
		}
		r.ParentNum, r.Index = -1, -1
		if parent != nil {
			r.ParentNum = *parent
		}
		if idx != nil {
			r.Index = *idx
		}
		r.Data = e[4]
		rows = append(rows, r)
	}

	obj, err := Reconstruct(rows)
	if err != nil {
		return nil, err
	}
	return json.Marshal(obj)
}

// attach stores child under the aliased attribute path of parent. Leading
// segments of a composite path name intermediate objects held in the parent.
func attach(parent map[string]interface{}, aliasPath string, idx int, child map[string]interface{}) error {
	segs := strings.Split(aliasPath, "/")
	names := make([]string, len(segs))
	for i, s := range segs {
		n, err := AttributeFromAlias(s)
		if err != nil {
			return err
		}
		names[i] = n
	}

	target := parent
	for _, n := range names[:len(names)-1] {
		next, ok := target[n].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			target[n] = next
		}
		target = next
	}

	last := names[len(names)-1]
	if idx < 0 {
		target[last] = child
		return nil
	}

	list, _ := target[last].([]interface{})
	for len(list) <= idx {
		list = append(list, nil)
	}
	if list[idx] != nil {
		return fmt.Errorf("dbformat: duplicate %s[%d]", last, idx)
	}
	list[idx] = child
	target[last] = list
	return nil
}

// compact drops the holes left in lists by rows outside the aggregate.
func compact(v interface{}) interface{} {
	switch v := v.(type) {
	case map[string]interface{}:
		for k, e := range v {
			v[k] = compact(e)
		}
		return v
	case []interface{}:
		out := v[:0]
		for _, e := range v {
			if e != nil {
				out = append(out, compact(e))
			}
		}
		return out
	}
	return v
}
