// schema.go — session persistence: field schema and contents as YAML.
//
// A session file records every declared field (builtin and user-declared)
// with its type, aliases, default and current value, plus array contents and
// the user's editor preference. Values are stored in display syntax and read
// back through ParseVal, so a save/load round trip reproduces the store
// exactly.
package hpvm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type sessionField struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Aliases []string `yaml:"aliases,omitempty"`
	Default string   `yaml:"default,omitempty"`
	Value   string   `yaml:"value,omitempty"`
}

type sessionArray struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Capacity int      `yaml:"capacity"`
	Aliases  []string `yaml:"aliases,omitempty"`
	Values   []string `yaml:"values,omitempty"`
}

type sessionDoc struct {
	Editor string         `yaml:"editor,omitempty"`
	Fields []sessionField `yaml:"fields,omitempty"`
	Arrays []sessionArray `yaml:"arrays,omitempty"`
}

// SaveSession writes the machine's schema and contents to path.
func SaveSession(path string, m *Machine, editor string) error {
	doc := sessionDoc{Editor: editor}
	for _, fi := range m.Store().Fields() {
		if fi.IsArray {
			arr := sessionArray{
				Name:     fi.Name,
				Type:     fi.Ty.String(),
				Capacity: fi.Cap,
				Aliases:  fi.Aliases,
			}
			for _, v := range fi.Elems {
				arr.Values = append(arr.Values, v.String())
			}
			doc.Arrays = append(doc.Arrays, arr)
			continue
		}
		f := sessionField{
			Name:    fi.Name,
			Type:    fi.Ty.String(),
			Aliases: fi.Aliases,
		}
		if fi.Default != nil {
			f.Default = fi.Default.String()
		}
		if fi.Val != nil {
			f.Value = fi.Val.String()
		}
		doc.Fields = append(doc.Fields, f)
	}
	b, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadSession reads a session file into the machine. Fields the machine
// already declares (the builtins) take values and any extra aliases from the
// file; everything else is declared fresh. Returns the stored editor
// preference.
func LoadSession(path string, m *Machine) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var doc sessionDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return "", fmt.Errorf("session %s: %w", path, err)
	}

	st := m.Store()
	for _, f := range doc.Fields {
		if err := loadSessionField(st, f); err != nil {
			return "", fmt.Errorf("session field %s: %w", f.Name, err)
		}
	}
	for _, a := range doc.Arrays {
		if err := loadSessionArray(st, a); err != nil {
			return "", fmt.Errorf("session array %s: %w", a.Name, err)
		}
	}
	return doc.Editor, nil
}

func loadSessionField(st *Store, f sessionField) error {
	ty, err := ParseValTy(f.Type)
	if err != nil {
		return err
	}

	id, rerr := st.Resolve(f.Name)
	if rerr != nil {
		var def *Val
		if f.Default != "" {
			v, err := ParseVal(f.Default)
			if err != nil {
				return err
			}
			def = &v
		}
		if id, err = st.Declare(f.Name, ty, def, f.Aliases...); err != nil {
			return err
		}
	} else {
		if st.Ty(id) != ty {
			return &TypeMismatchError{Expected: st.Ty(id).String(), Received: f.Type, Expr: f.Name}
		}
		if err := addMissingAliases(st, id, f.Aliases); err != nil {
			return err
		}
	}

	if f.Value != "" {
		v, err := ParseVal(f.Value)
		if err != nil {
			return err
		}
		return st.Set(id, v)
	}
	return nil
}

func loadSessionArray(st *Store, a sessionArray) error {
	ty, err := ParseValTy(a.Type)
	if err != nil {
		return err
	}

	id, rerr := st.Resolve(a.Name)
	if rerr != nil {
		if id, err = st.DeclareArray(a.Name, ty, a.Capacity, a.Aliases...); err != nil {
			return err
		}
	} else {
		if err := addMissingAliases(st, id, a.Aliases); err != nil {
			return err
		}
	}

	for _, s := range a.Values {
		v, err := ParseVal(s)
		if err != nil {
			return err
		}
		if err := st.Push(id, v); err != nil {
			return err
		}
	}
	return nil
}

func addMissingAliases(st *Store, id FieldID, aliases []string) error {
	have := map[string]bool{}
	for _, al := range st.Fields()[id].Aliases {
		have[al] = true
	}
	for _, al := range aliases {
		if have[al] {
			continue
		}
		if err := st.AddAlias(id, al); err != nil {
			return err
		}
	}
	return nil
}
