package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadFile reads, parses and validates a script YAML file from disk.
//
// Example:
//
//	script:
//	  id: quarterly-review
//	  title: "Quarterly Review"
//	parts:
//	  - id: intro
//	    title: "Welcome"
//	    image: slides/01.png
//	    keywords: [revenue, hiring]
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("script: load %q: %w", path, err)
	}
	return s, nil
}

// LoadFromReader parses and validates script YAML from an [io.Reader].
// The reader is consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("script: decode yaml: %w", err)
	}
	if err := Validate(&s); err != nil {
		return nil, fmt.Errorf("script: invalid: %w", err)
	}
	return &s, nil
}

// LoadPath loads the scripts at path. A file yields one script; a
// directory yields every *.yaml and *.yml file directly inside it, sorted
// by file name. All files are loaded and every failure is reported.
func LoadPath(path string) ([]*Script, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("script: stat %q: %w", path, err)
	}
	if !info.IsDir() {
		s, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		return []*Script{s}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("script: read dir %q: %w", path, err)
	}
	var (
		scripts []*Script
		errs    []error
	)
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		s, err := LoadFile(filepath.Join(path, e.Name()))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scripts = append(scripts, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return scripts, nil
}
