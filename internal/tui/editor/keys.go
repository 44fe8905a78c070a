package editor

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines editor keybindings
type KeyMap struct {
	PlayPause    key.Binding
	Mode         key.Binding
	ZoomIn       key.Binding
	ZoomOut      key.Binding
	Left         key.Binding
	Right        key.Binding
	Reset        key.Binding
	ResetAll     key.Binding
	NudgeBack    key.Binding
	NudgeForward key.Binding
	Next         key.Binding
	Prev         key.Binding
	Track        key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the stock bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PlayPause:    key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		Mode:         key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "seek/pan")),
		ZoomIn:       key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:      key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "zoom out")),
		Left:         key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "scroll left")),
		Right:        key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "scroll right")),
		Reset:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset region")),
		ResetAll:     key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset all")),
		NudgeBack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "preview back")),
		NudgeForward: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "preview forward")),
		Next:         key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next region")),
		Prev:         key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous region")),
		Track:        key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "original/processed")),
		Help:         key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Mode, k.ZoomIn, k.ZoomOut, k.Next, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Mode, k.Track},
		{k.ZoomIn, k.ZoomOut, k.Left, k.Right},
		{k.Next, k.Prev, k.Reset, k.ResetAll},
		{k.NudgeBack, k.NudgeForward, k.Help, k.Quit},
	}
}
