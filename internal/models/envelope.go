package models

// Envelope is what an encoder call returns and what the splitter hands back
// to the host. Both sections are optional.
type Envelope struct {
	Result *Output `json:"result,omitempty"`
	UI     *UI     `json:"ui,omitempty"`
}

// Output is the result slot: the save flag and the produced filenames in order
type Output struct {
	SaveOutput bool     `json:"save_output"`
	Filenames  []string `json:"filenames"`
}

// UI holds renderable preview descriptors
type UI struct {
	Previews []Preview `json:"previews"`
}

// Preview describes one encoded artifact for a preview widget
type Preview struct {
	Filename  string  `json:"filename"`
	Subfolder string  `json:"subfolder"`
	Type      string  `json:"type"`
	Format    string  `json:"format"`
	FrameRate float64 `json:"frame_rate"`
	FullPath  string  `json:"fullpath"`
}

// Filenames returns the envelope's filename list, or nil when there is no result
func (e *Envelope) Filenames() []string {
	if e == nil || e.Result == nil {
		return nil
	}
	return e.Result.Filenames
}

// Previews returns the envelope's preview list, or nil when there is no UI section
func (e *Envelope) Previews() []Preview {
	if e == nil || e.UI == nil {
		return nil
	}
	return e.UI.Previews
}
