package inference

// WorkedExample is the canonical request served as documentation.
func WorkedExample() Record {
	return Record{
		"tienda_id":  1,
		"empleados":  20,
		"publicidad": 5000,
		"ubicacion":  "urbana",
	}
}

// Example builds a record covering every persisted feature: the default
// class for categorical features and 0 for numeric ones.
func (a *Adapter) Example() Record {
	out := make(Record, len(a.encoders))
	for j, name := range a.bundle.Metadata.FeatureColumns {
		if enc := a.encoders[j]; enc != nil {
			out[name] = enc.DefaultClass()
		} else {
			out[name] = 0.0
		}
	}
	return out
}

// Categories returns the fit-time vocabulary of each categorical feature.
func (a *Adapter) Categories() map[string][]string {
	out := make(map[string][]string)
	for j, name := range a.bundle.Metadata.FeatureColumns {
		if enc := a.encoders[j]; enc != nil {
			out[name] = append([]string(nil), enc.Classes...)
		}
	}
	return out
}
