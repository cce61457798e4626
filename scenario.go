// scenario.go — loadable demonstrations: schema, setup commands, program.
//
// A scenario is a YAML document with a prose description, the fields it
// needs beyond the builtins (typically registers), a list of setup commands
// run once through ExecCommand, and the program in instruction display
// syntax.
package hpvm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one self-contained session setup.
type Scenario struct {
	Description string         `yaml:"description"`
	Fields      []sessionField `yaml:"fields,omitempty"`
	Arrays      []sessionArray `yaml:"arrays,omitempty"`
	Setup       []string       `yaml:"setup,omitempty"`
	Program     []string       `yaml:"program,omitempty"`
}

// LoadScenario reads and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Apply declares the scenario's fields, runs its setup commands, and loads
// its program. The program load rewinds the instruction pointer, so setup
// must not rely on positioning it.
func (sc *Scenario) Apply(m *Machine) error {
	st := m.Store()
	for _, f := range sc.Fields {
		if err := loadSessionField(st, f); err != nil {
			return fmt.Errorf("scenario field %s: %w", f.Name, err)
		}
	}
	for _, a := range sc.Arrays {
		if err := loadSessionArray(st, a); err != nil {
			return fmt.Errorf("scenario array %s: %w", a.Name, err)
		}
	}
	for i, line := range sc.Setup {
		if _, _, err := m.ExecCommand(line); err != nil {
			return fmt.Errorf("scenario setup line %d (`%s`): %w", i+1, line, err)
		}
	}
	prog, err := ParseProgram(sc.Program)
	if err != nil {
		return err
	}
	return m.LoadProgram(prog)
}
