package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/solatis/typekeeper/internal/fieldset"
	"gopkg.in/yaml.v3"
)

// TargetsFile is the YAML document listing targets to open at startup:
//
//	targets:
//	  web:
//	    fields:
//	      host: string
//	      status: int
//	    reserve:
//	      req.path: {type: string, nullable: true}
//	    queries:
//	      - name: errors
//	        group: ops
//	        fields:
//	          status: int
//	          reason: {type: string, optional: true, nullable: true}
type TargetsFile struct {
	Targets map[string]TargetDefinition `yaml:"targets"`
}

// TargetDefinition declares one target.
type TargetDefinition struct {
	Fields  map[string]fieldset.Spec `yaml:"fields"`
	Reserve map[string]fieldset.Spec `yaml:"reserve"`
	Queries []QueryDefinition        `yaml:"queries"`
}

// QueryDefinition declares the fields a query reads. Group is optional;
// an absent group differs from an empty one.
type QueryDefinition struct {
	Name   string                   `yaml:"name"`
	Group  *string                  `yaml:"group"`
	Fields map[string]fieldset.Spec `yaml:"fields"`
}

// LoadTargets reads a targets file. Unknown keys are rejected.
func LoadTargets(path string) (*TargetsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	tf, err := ParseTargets(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tf, nil
}

// ParseTargets decodes and validates a targets document.
func ParseTargets(data []byte) (*TargetsFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var tf TargetsFile
	if err := dec.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid targets file: %w", err)
	}
	if err := tf.validate(); err != nil {
		return nil, err
	}
	return &tf, nil
}

// Names lists target names in ascending order.
func (tf *TargetsFile) Names() []string {
	names := make([]string, 0, len(tf.Targets))
	for name := range tf.Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (tf *TargetsFile) validate() error {
	var errs []error
	for _, name := range tf.Names() {
		def := tf.Targets[name]
		if name == "" {
			errs = append(errs, fmt.Errorf("target name must not be empty"))
		}
		for field, spec := range def.Reserve {
			if spec.Type == "" {
				errs = append(errs, fmt.Errorf("target %s: reserved field %s has no type", name, field))
			}
		}
		for i, q := range def.Queries {
			if q.Name == "" {
				errs = append(errs, fmt.Errorf("target %s: query %d has no name", name, i))
			}
			if len(q.Fields) == 0 {
				errs = append(errs, fmt.Errorf("target %s: query %s has no fields", name, q.Name))
			}
		}
	}
	return errors.Join(errs...)
}
