package domain

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Component is one kind of state held by an archive.
type Component int

const (
	Databases Component = iota
	Files
	Code
)

// AllComponents lists the components in the order they are dumped and restored.
var AllComponents = []Component{Databases, Files, Code}

// String returns the name of the archive subdirectory holding the component.
func (c Component) String() string {
	switch c {
	case Databases:
		return "databases"
	case Files:
		return "files"
	case Code:
		return "code"
	}
	return fmt.Sprintf("component(%d)", int(c))
}

func (c Component) bit() Selection {
	return Selection(1) << uint(c)
}

// ParseComponent returns the component named name.
func ParseComponent(name string) (Component, error) {
	for _, c := range AllComponents {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, errors.WithType(errors.Errorf("unknown component %q (expected one of %s)", name, AllSelection()), UsageError)
}

// Selection is a set of components.
type Selection uint8

// NewSelection returns a selection holding the given components.
func NewSelection(components ...Component) Selection {
	var s Selection
	for _, c := range components {
		s |= c.bit()
	}
	return s
}

// AllSelection returns the selection of every component.
func AllSelection() Selection {
	return NewSelection(AllComponents...)
}

// ParseSelection reads the value of the --components option: either
// "all" or a comma separated list of component names.
func ParseSelection(value string) (Selection, error) {
	value = strings.TrimSpace(value)
	if value == "all" {
		return AllSelection(), nil
	}

	var s Selection
	for _, name := range strings.Split(value, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		c, err := ParseComponent(name)
		if err != nil {
			return 0, err
		}
		s |= c.bit()
	}
	if s.IsEmpty() {
		return 0, errors.WithType(errors.New("no component selected"), UsageError)
	}
	return s, nil
}

// Has reports whether c is part of the selection.
func (s Selection) Has(c Component) bool {
	return s&c.bit() != 0
}

// IsEmpty reports whether no component is selected.
func (s Selection) IsEmpty() bool {
	return s&AllSelection() == 0
}

// Components returns the selected components in the fixed order.
func (s Selection) Components() []Component {
	var selected []Component
	for _, c := range AllComponents {
		if s.Has(c) {
			selected = append(selected, c)
		}
	}
	return selected
}

func (s Selection) String() string {
	names := []string{}
	for _, c := range s.Components() {
		names = append(names, c.String())
	}
	return strings.Join(names, ",")
}

// SymlinkPolicy tells the files and code components whether the archive
// mirrors their content by copy or by symbolic link.
type SymlinkPolicy bool

const (
	Copy    SymlinkPolicy = false
	Symlink SymlinkPolicy = true
)

func (p SymlinkPolicy) String() string {
	if p == Symlink {
		return "symlink"
	}
	return "copy"
}
