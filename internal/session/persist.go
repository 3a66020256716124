package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/erpsim/internal/params"
)

// Export flattens the session into string keys and values. The map holds the
// tab list, every tab's fields, the active set, the global choices, the
// variable definitions and a summary of the active tab's cached result.
// Without tabs there is no active index or active set to write.
func (s *Session) Export() map[string]string {
	out := make(map[string]string)

	tabsList := s.registry.Tabs()
	out["tabs"] = strconv.Itoa(len(tabsList))
	if idx := s.registry.Index(s.registry.ActiveID()); idx >= 0 {
		out["active"] = strconv.Itoa(idx)
	}
	for i, t := range tabsList {
		prefix := "tab." + strconv.Itoa(i) + "."
		out[prefix+"label"] = t.Label
		f := t.Fields.Fields()
		for _, k := range fieldKeys {
			out[prefix+k.name] = k.get(f)
		}
	}

	if _, ok := s.registry.Active(); ok {
		active := s.projector.Snapshot()
		for _, k := range fieldKeys {
			out["active."+k.name] = k.get(active)
		}
	}

	g := s.global.Get()
	for _, k := range globalKeys {
		out["global."+k.name] = k.get(g)
	}

	encodeVariables(out, s.vars.Get())

	if r, ok := s.ActiveResult(); ok {
		out["result.tab"] = strconv.Itoa(r.TabID)
		out["result.fingerprint"] = strconv.FormatUint(r.Fingerprint, 16)
		out["result.samples"] = strconv.Itoa(r.Len())
		if r.Err != "" {
			out["result.err"] = r.Err
		}
		out["result.time"] = joinFloats(r.Time)
		out["result.noisy"] = joinFloats(r.Noisy)
		out["result.clean"] = joinFloats(r.Clean)
	}
	return out
}

// Import restores state written by Export. Tabs are reconciled by position,
// then the global choices, variables, active tab and active fields are
// applied in that order. Unknown keys and result.* keys are ignored. A value
// that does not parse leaves its target unchanged and is reported in the
// returned error after the remaining keys are applied.
func (s *Session) Import(state map[string]string) error {
	var errs []error
	fail := func(key string, err error) {
		errs = append(errs, fmt.Errorf("%s: %w", key, err))
	}

	if raw, ok := state["tabs"]; ok {
		var n int
		if err := atoi(raw, &n); err != nil || n < 0 {
			fail("tabs", fmt.Errorf("invalid tab count %q", raw))
		} else if err := s.resizeTabs(n, state); err != nil {
			fail("tabs", err)
		}
	}
	if err := s.loadTabs(state, fail); err != nil {
		fail("tabs", err)
	}

	g := s.global.Get()
	for _, k := range globalKeys {
		if raw, ok := state["global."+k.name]; ok {
			if err := k.set(&g, raw); err != nil {
				fail("global."+k.name, err)
			}
		}
	}
	s.global.Set(g)

	if vars, ok, verrs := decodeVariables(state); ok {
		errs = append(errs, verrs...)
		s.vars.Set(vars)
	}

	if raw, ok := state["active"]; ok {
		var idx int
		tabsList := s.registry.Tabs()
		if err := atoi(raw, &idx); err != nil || idx < 0 || idx >= len(tabsList) {
			fail("active", fmt.Errorf("invalid tab index %q", raw))
		} else {
			s.registry.SetActive(tabsList[idx].ID)
		}
	}

	active := s.projector.Snapshot()
	touched := false
	for _, k := range fieldKeys {
		if raw, ok := state["active."+k.name]; ok {
			if err := k.set(&active, raw); err != nil {
				fail("active."+k.name, err)
				continue
			}
			touched = true
		}
	}
	if touched {
		s.projector.Active().Load(active)
	}
	return errors.Join(errs...)
}

// Set applies a single exported key.
func (s *Session) Set(key, value string) error {
	return s.Import(map[string]string{key: value})
}

// resizeTabs grows or shrinks the tab sequence to n. New tabs start from the
// preset named by their label when there is one.
func (s *Session) resizeTabs(n int, state map[string]string) error {
	for s.registry.Len() < n {
		i := s.registry.Len()
		label := state["tab."+strconv.Itoa(i)+".label"]
		var base params.Fields
		if s.presets != nil && label != "" {
			if f, err := s.presets.Preset(label); err == nil {
				base = f
			}
		}
		if label == "" {
			label = "Tab " + strconv.Itoa(i+1)
		}
		if _, err := s.registry.CreateTabWith(label, base); err != nil {
			return err
		}
	}
	for s.registry.Len() > n {
		tabsList := s.registry.Tabs()
		if err := s.registry.RemoveTab(tabsList[len(tabsList)-1].ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) loadTabs(state map[string]string, fail func(string, error)) error {
	for i, t := range s.registry.Tabs() {
		prefix := "tab." + strconv.Itoa(i) + "."
		f := t.Fields.Fields()
		for _, k := range fieldKeys {
			raw, ok := state[prefix+k.name]
			if !ok {
				continue
			}
			if err := k.set(&f, raw); err != nil {
				fail(prefix+k.name, err)
			}
		}
		t.Fields.Load(f)
		if label, ok := state[prefix+"label"]; ok && label != "" && label != t.Label {
			if err := s.registry.Rename(t.ID, label); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeVariables rebuilds the variable definitions when any vars.* key is
// present. The import replaces the definitions rather than merging them.
func decodeVariables(state map[string]string) (params.Variables, bool, []error) {
	vars := params.Variables{
		Categorical: map[string][]string{},
		Continuous:  map[string]params.ContinuousRange{},
	}
	var (
		found bool
		errs  []error
	)
	for _, key := range sortedKeys(state) {
		switch {
		case strings.HasPrefix(key, "vars.cat."):
			found = true
			name := strings.TrimPrefix(key, "vars.cat.")
			levels := decodeLevels(state[key])
			if name == "" || len(levels) == 0 {
				errs = append(errs, fmt.Errorf("%s: no levels", key))
				continue
			}
			vars.Categorical[name] = levels
		case strings.HasPrefix(key, "vars.cont."):
			found = true
			name := strings.TrimPrefix(key, "vars.cont.")
			r, err := decodeContinuous(state[key])
			if err != nil || name == "" {
				errs = append(errs, fmt.Errorf("%s: %w", key, errors.Join(err, errIf(name == "", "empty name"))))
				continue
			}
			vars.Continuous[name] = r
		}
	}
	return vars, found, errs
}

func errIf(cond bool, msg string) error {
	if cond {
		return errors.New(msg)
	}
	return nil
}
