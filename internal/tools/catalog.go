package tools

// Builtins returns the providers shipped with the engine, minus the disabled
// names. The order is the registration order.
func Builtins(disabled []string) []Provider {
	skip := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		skip[name] = true
	}
	all := []Provider{
		listFiles{},
		readFile{},
		editFile{},
		proposeEdit{},
		setPlan{},
		updateTaskStatus{},
		getCurrentPlan{},
	}
	out := make([]Provider, 0, len(all))
	for _, p := range all {
		if skip[p.Name()] {
			continue
		}
		out = append(out, p)
	}
	return out
}
