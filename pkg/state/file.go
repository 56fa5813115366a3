package state

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/converge/pkg/types"
)

// State functions understood by Apply
const (
	MailmanListPresent = "mailman.list_present"
	MailmanListAbsent  = "mailman.list_absent"
	LVMPVPresent       = "lvm.pv_present"
	LVMPVAbsent        = "lvm.pv_absent"
	LVMVGPresent       = "lvm.vg_present"
	LVMVGAbsent        = "lvm.vg_absent"
	LVMLVPresent       = "lvm.lv_present"
	LVMLVAbsent        = "lvm.lv_absent"
)

var knownStates = map[string]bool{
	MailmanListPresent: true,
	MailmanListAbsent:  true,
	LVMPVPresent:       true,
	LVMPVAbsent:        true,
	LVMVGPresent:       true,
	LVMVGAbsent:        true,
	LVMLVPresent:       true,
	LVMLVAbsent:        true,
}

// File is a parsed state file
type File struct {
	States []Entry `yaml:"states"`
}

// Entry is one desired-state declaration. Which fields apply depends on
// State; the others are ignored.
type Entry struct {
	ID    string `yaml:"id"`
	State string `yaml:"state"`
	Name  string `yaml:"name"`

	// mailman
	Owner          StringList  `yaml:"owner"`
	Password       *string     `yaml:"password"`
	MembersPresent *StringList `yaml:"members_present"`
	MembersAbsent  StringList  `yaml:"members_absent"`
	Explicit       bool        `yaml:"explicit"`
	Language       string      `yaml:"language"`
	URLHost        string      `yaml:"urlhost"`
	EmailHost      string      `yaml:"emailhost"`
	Archives       *bool       `yaml:"archives"`

	// lvm
	Devices     StringList `yaml:"devices"`
	VGName      string     `yaml:"vgname"`
	Size        string     `yaml:"size"`
	Extents     int        `yaml:"extents"`
	Snapshot    string     `yaml:"snapshot"`
	PV          string     `yaml:"pv"`
	ThinVolume  bool       `yaml:"thinvolume"`
	ThinPool    bool       `yaml:"thinpool"`
	AllowResize bool       `yaml:"allow_resize"`
}

// Module returns the part of State before the dot, e.g. "mailman"
func (e *Entry) Module() string {
	module, _, _ := strings.Cut(e.State, ".")
	return module
}

// StringList accepts a single scalar or a sequence of scalars
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*l = StringList{}
		} else {
			*l = StringList{s}
		}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*l = StringList(items)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// SplitCommas splits every item on commas, dropping empty parts. A device
// list given as "/dev/sdb,/dev/sdc" becomes two devices.
func (l StringList) SplitCommas() []string {
	var out []string
	for _, item := range l {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Load reads and validates a state file
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a state document. Unknown keys are rejected
// so that a misspelled option never silently becomes a no-op.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *File) validate() error {
	seen := make(map[string]bool, len(f.States))
	for i := range f.States {
		e := &f.States[i]
		if !knownStates[e.State] {
			return fmt.Errorf("%w: states[%d]: unknown state %q", types.ErrValidation, i, e.State)
		}
		if e.Name == "" {
			return fmt.Errorf("%w: states[%d]: name is required", types.ErrValidation, i)
		}
		if e.ID == "" {
			e.ID = e.State + ":" + e.Name
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: states[%d]: duplicate id %q", types.ErrValidation, i, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}
