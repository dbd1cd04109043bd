package database

// TableInfo is one entry of the store's table list.
type TableInfo struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// FieldInfo describes a column as the catalog reports it.
type FieldInfo struct {
	Name  string `json:"name"`
	Type  string `json:"type,omitempty"`
	Label string `json:"label,omitempty"`
}

// IndexInfo describes an index on a table.
type IndexInfo struct {
	Name    string `json:"name"`
	Unique  bool   `json:"unique"`
	Primary bool   `json:"primary"`
}

// TablesFromResult reads a catalog table-list result: name first, then an
// optional "label" column.
func TablesFromResult(res *Result) []TableInfo {
	out := make([]TableInfo, 0, res.Len())
	for _, r := range res.Rows {
		t := TableInfo{Name: AsString(first(r))}
		if v, ok := r.Get("label"); ok {
			t.Label = AsString(v)
		}
		out = append(out, t)
	}
	return out
}

// FieldsFromResult reads a catalog field-list result.
func FieldsFromResult(res *Result) []FieldInfo {
	out := make([]FieldInfo, 0, res.Len())
	for _, r := range res.Rows {
		f := FieldInfo{Name: AsString(first(r))}
		if v, ok := r.Get("type"); ok {
			f.Type = AsString(v)
		}
		if v, ok := r.Get("label"); ok {
			f.Label = AsString(v)
		}
		out = append(out, f)
	}
	return out
}

// IndexesFromResult reads a catalog index-list result.
func IndexesFromResult(res *Result) []IndexInfo {
	out := make([]IndexInfo, 0, res.Len())
	for _, r := range res.Rows {
		ix := IndexInfo{Name: AsString(first(r))}
		if v, ok := r.Get("unique"); ok {
			ix.Unique = truthy(v)
		}
		if v, ok := r.Get("primary"); ok {
			ix.Primary = truthy(v)
		}
		out = append(out, ix)
	}
	return out
}

func first(r Row) any {
	if len(r.values) == 0 {
		return nil
	}
	return r.values[0]
}

// truthy interprets the flag encodings the catalogs use: booleans,
// integers and "1"/"t"/"true"/"yes".
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case int32:
		return t != 0
	case int:
		return t != 0
	case float64:
		return t != 0
	}
	switch AsString(v) {
	case "1", "t", "T", "true", "TRUE", "yes", "YES", "y", "Y":
		return true
	}
	return false
}
