package narrative

import (
	"fmt"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

// ErrUnknownTemplate indicates the requested template name is not in
// the template table.
type ErrUnknownTemplate struct {
	Name model.TemplateName
}

func (e *ErrUnknownTemplate) Error() string {
	return fmt.Sprintf("unknown narrative template: %q", e.Name)
}

// beatOrder is the canonical beat sequence. A template uses the subset
// of these kinds it configures, always in this order.
var beatOrder = []model.BeatKind{
	model.BeatHook,
	model.BeatContext,
	model.BeatDiscovery,
	model.BeatReflection,
	model.BeatConclusion,
}

// ResolveTemplate looks up the template and returns its beat plan in
// canonical order.
func ResolveTemplate(cfg config.NarrativeConfig, name model.TemplateName) (config.TemplateConfig, []model.Beat, error) {
	tmpl, ok := cfg.Templates[name]
	if !ok {
		return config.TemplateConfig{}, nil, &ErrUnknownTemplate{Name: name}
	}

	var beats []model.Beat
	for _, kind := range beatOrder {
		bc, ok := tmpl.Beats[kind]
		if !ok {
			continue
		}
		beats = append(beats, model.Beat{
			Kind:        kind,
			TargetWords: bc.TargetWords,
			Tone:        bc.Tone,
		})
	}
	if len(beats) == 0 {
		return config.TemplateConfig{}, nil, fmt.Errorf("template %q has no beats configured", name)
	}
	return tmpl, beats, nil
}
