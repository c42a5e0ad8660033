package node

import (
	"github.com/bdougie/vidsplit/internal/formats"
)

// Input types used in schemas
const (
	TypeImage     = "IMAGE"
	TypeLatent    = "LATENT"
	TypeAudio     = "AUDIO"
	TypeVAE       = "VAE"
	TypeMetaBatch = "VHS_BatchManager"
	TypeFilenames = "VHS_FILENAMES"
	TypePrompt    = "PROMPT"
	TypeExtraInfo = "EXTRA_PNGINFO"
	TypeUniqueID  = "UNIQUE_ID"
)

// Input describes one declared input
type Input struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Default any      `json:"default,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Step    float64  `json:"step,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Schema is the typed input/output declaration presented to the host
type Schema struct {
	ID          string   `json:"id"`
	Category    string   `json:"category"`
	Function    string   `json:"function"`
	Required    []Input  `json:"required"`
	Optional    []Input  `json:"optional"`
	Hidden      []Input  `json:"hidden"`
	ReturnTypes []string `json:"return_types"`
	ReturnNames []string `json:"return_names"`
	OutputNode  bool     `json:"output_node"`

	// FormatWidgets lists the extra inputs each format accepts
	FormatWidgets map[string][]formats.Widget `json:"format_widgets,omitempty"`
}

// Lookup finds a declared input by name across all groups
func (s Schema) Lookup(name string) (Input, bool) {
	for _, group := range [][]Input{s.Required, s.Optional, s.Hidden} {
		for _, in := range group {
			if in.Name == name {
				return in, true
			}
		}
	}
	return Input{}, false
}

func bound(v float64) *float64 { return &v }
