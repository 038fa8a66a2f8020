package registry

import "sort"

// Row is the generalized, kind-agnostic read-only projection of a
// single device-table entry (spec.md §4.2). Fields is a flat
// string-keyed map mixing solver-mirrored and framework-owned values.
// Where a logical column is tracked by both (e.g. an Element's
// "status", which the framework enum and the solver's closed/open bit
// both describe), each row builder below stores only the
// framework-owned value under that key -- per the consistency
// invariant in spec.md §4.2, the framework field is kept in sync with
// the solver-mirrored one by every Device Operation, so "prefer
// framework, else solver" resolves to that single stored value with no
// separate de-duplication pass required.
type Row struct {
	Kind   Kind
	Name   string
	Fields map[string]any
}

// Table is the result of a Query: the matching rows of one kind,
// projected onto the requested keys.
type Table struct {
	Kind Kind
	Keys []string
	Rows []Row
}

// GetByName resolves a single row by (kind, name) (spec.md §4.2).
func (r *Registry) GetByName(kind Kind, name string) (Row, bool) {
	switch kind {
	case KindBus:
		if b, ok := r.busesByName[name]; ok {
			return busRow(b), true
		}
	case KindBranch:
		if e, ok := r.branches[name]; ok {
			return elementRow(KindBranch, e), true
		}
	case KindTransformer:
		if e, ok := r.transformers[name]; ok {
			return elementRow(KindTransformer, e), true
		}
	case KindLoad:
		if l, ok := r.loads[name]; ok {
			return loadRow(l), true
		}
	case KindGenerator:
		if g, ok := r.generators[name]; ok {
			return generatorRow(g), true
		}
	case KindIBR:
		if i, ok := r.ibrs[name]; ok {
			return ibrRow(i), true
		}
	}
	return Row{}, false
}

// GetByBus returns every row of kind located at busNumber: the bus
// itself when kind==KindBus, or every branch/transformer/load/
// generator/ibr whose solver-mirrored location matches it (spec.md
// §4.2).
func (r *Registry) GetByBus(kind Kind, busNumber int) []Row {
	var out []Row
	switch kind {
	case KindBus:
		if b, ok := r.busesByNumber[busNumber]; ok {
			out = append(out, busRow(b))
		}
	case KindBranch:
		for _, e := range r.branches {
			if e.FromBus == busNumber || e.ToBus == busNumber {
				out = append(out, elementRow(KindBranch, e))
			}
		}
	case KindTransformer:
		for _, e := range r.transformers {
			if e.FromBus == busNumber || e.ToBus == busNumber {
				out = append(out, elementRow(KindTransformer, e))
			}
		}
	case KindLoad:
		for _, l := range r.loads {
			if l.Bus == busNumber {
				out = append(out, loadRow(l))
			}
		}
	case KindGenerator:
		for _, g := range r.generators {
			if g.Bus == busNumber {
				out = append(out, generatorRow(g))
			}
		}
	case KindIBR:
		for _, i := range r.ibrs {
			if i.Bus == busNumber {
				out = append(out, ibrRow(i))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Query returns every row of kind for which filter holds (a nil filter
// matches everything), projected onto keys (a nil/empty keys keeps
// every field). This is §4.2's generalized façade: code that needs a
// uniform view across kinds uses it instead of the typed per-kind
// accessors (Bus, Generator, ...), which remain for call sites that
// already know their kind and want its concrete struct.
func (r *Registry) Query(kind Kind, keys []string, filter func(Row) bool) Table {
	var all []Row
	switch kind {
	case KindBus:
		for _, b := range r.busesByNumber {
			all = append(all, busRow(b))
		}
	case KindBranch:
		for _, e := range r.branches {
			all = append(all, elementRow(KindBranch, e))
		}
	case KindTransformer:
		for _, e := range r.transformers {
			all = append(all, elementRow(KindTransformer, e))
		}
	case KindLoad:
		for _, l := range r.loads {
			all = append(all, loadRow(l))
		}
	case KindGenerator:
		for _, g := range r.generators {
			all = append(all, generatorRow(g))
		}
	case KindIBR:
		for _, i := range r.ibrs {
			all = append(all, ibrRow(i))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	out := make([]Row, 0, len(all))
	for _, row := range all {
		if filter != nil && !filter(row) {
			continue
		}
		out = append(out, projectRow(row, keys))
	}
	return Table{Kind: kind, Keys: keys, Rows: out}
}

func projectRow(row Row, keys []string) Row {
	if len(keys) == 0 {
		return row
	}
	fields := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := row.Fields[k]; ok {
			fields[k] = v
		}
	}
	return Row{Kind: row.Kind, Name: row.Name, Fields: fields}
}

func busRow(b *Bus) Row {
	return Row{Kind: KindBus, Name: b.Name, Fields: map[string]any{
		"number":         b.Number,
		"name":           b.Name,
		"type":           b.Type,
		"initialType":    b.InitialType,
		"status":         string(b.Status),
		"lastAction":     b.LastAction,
		"lastActionTime": b.LastActionTime,
	}}
}

func elementRow(kind Kind, e *Element) Row {
	return Row{Kind: kind, Name: e.Name, Fields: map[string]any{
		"name":           e.Name,
		"fromBus":        e.FromBus,
		"toBus":          e.ToBus,
		"id":             e.ID,
		"status":         string(e.Status),
		"genControlled":  e.GenControlled,
		"lastAction":     e.LastAction,
		"lastActionTime": e.LastActionTime,
	}}
}

func loadRow(l *Load) Row {
	return Row{Kind: KindLoad, Name: l.Name, Fields: map[string]any{
		"name":           l.Name,
		"id":             l.ID,
		"bus":            l.Bus,
		"status":         string(l.Status),
		"pl":             l.Power.PL,
		"ql":             l.Power.QL,
		"ip":             l.Power.IP,
		"iq":             l.Power.IQ,
		"yp":             l.Power.YP,
		"yq":             l.Power.YQ,
		"tiedDeviceName": l.TiedDeviceName,
		"tiedDeviceType": l.TiedDeviceType,
		"lastAction":     l.LastAction,
		"lastActionTime": l.LastActionTime,
	}}
}

func generatorRow(g *Generator) Row {
	return Row{Kind: KindGenerator, Name: g.Name, Fields: map[string]any{
		"name":           g.Name,
		"bus":            g.Bus,
		"mvaBase":        g.MVABase,
		"phase":          g.Phase.String(),
		"genType":        string(g.GenType),
		"loadName":       g.LoadName,
		"popfMW":         g.PopfMW,
		"qopfMVAR":       g.QopfMVAR,
		"agcAlpha":       g.AGCAlpha,
		"lastAction":     g.LastAction,
		"lastActionTime": g.LastActionTime,
	}}
}

func ibrRow(i *IBR) Row {
	return Row{Kind: KindIBR, Name: i.Name, Fields: map[string]any{
		"name":           i.Name,
		"bus":            i.Bus,
		"status":         string(i.Status),
		"gridForming":    i.GridForming,
		"activeMW":       i.ActiveMW,
		"reactiveMVAR":   i.ReactiveMVAR,
		"lastAction":     i.LastAction,
		"lastActionTime": i.LastActionTime,
	}}
}
