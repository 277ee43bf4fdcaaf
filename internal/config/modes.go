package config

// Mode is a named system-prompt preset.
type Mode struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// ModeTable is the fixed, ordered set of conversation modes. The zero value
// is empty; use Modes for the configured table.
type ModeTable struct {
	modes []Mode
	index map[string]int
}

var builtinModes = []Mode{
	{
		Name:   "assistant",
		Prompt: "You are a helpful AI assistant. Provide clear, accurate, and helpful responses.",
	},
	{
		Name:   "coder",
		Prompt: "You are an expert programmer. Help users write, debug, and explain code. Use code blocks with proper syntax highlighting.",
	},
	{
		Name:   "writer",
		Prompt: "You are a creative writing assistant. Help users with writing tasks including stories, articles, emails, and more.",
	},
	{
		Name:   "translator",
		Prompt: "You are a professional translator. Help users translate text between languages accurately while preserving meaning and tone.",
	},
}

// Modes returns the configured mode table.
func Modes() *ModeTable {
	return NewModeTable(builtinModes)
}

// NewModeTable builds a table from modes, keeping the first entry for a
// duplicated name.
func NewModeTable(modes []Mode) *ModeTable {
	t := &ModeTable{index: make(map[string]int, len(modes))}
	for _, m := range modes {
		if _, dup := t.index[m.Name]; dup || m.Name == "" {
			continue
		}
		t.index[m.Name] = len(t.modes)
		t.modes = append(t.modes, m)
	}
	return t
}

// Prompt returns the system prompt for name.
func (t *ModeTable) Prompt(name string) (string, bool) {
	i, ok := t.index[name]
	if !ok {
		return "", false
	}
	return t.modes[i].Prompt, true
}

// Has reports whether name is a configured mode.
func (t *ModeTable) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Names lists mode names in display order.
func (t *ModeTable) Names() []string {
	names := make([]string, len(t.modes))
	for i, m := range t.modes {
		names[i] = m.Name
	}
	return names
}

// All returns a copy of the table in display order.
func (t *ModeTable) All() []Mode {
	out := make([]Mode, len(t.modes))
	copy(out, t.modes)
	return out
}

// Default is the mode a new session starts in.
func (t *ModeTable) Default() string {
	if len(t.modes) == 0 {
		return ""
	}
	return t.modes[0].Name
}
