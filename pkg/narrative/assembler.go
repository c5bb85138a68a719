package narrative

import (
	"fmt"
	"strings"

	"wanderpod/pkg/model"
)

// connectives bridge consecutive beats so the joined narration flows
// as one piece instead of five disjoint paragraphs. Keyed by the
// adjacent beat-kind pair; pairs not in the table get no bridge.
var connectives = map[[2]model.BeatKind]string{
	{model.BeatHook, model.BeatContext}:          "To understand why, it helps to know a little more.",
	{model.BeatContext, model.BeatDiscovery}:     "And here is where it gets interesting.",
	{model.BeatDiscovery, model.BeatReflection}:  "It makes you think.",
	{model.BeatReflection, model.BeatConclusion}: "Before we go, one last thought.",
	{model.BeatDiscovery, model.BeatConclusion}:  "Hold on to that one, because it is time to wrap up.",
	{model.BeatHook, model.BeatDiscovery}:        "Let me show you what makes this place different.",
	{model.BeatContext, model.BeatReflection}:    "All of that leaves a mark.",
	{model.BeatContext, model.BeatConclusion}:    "And that brings us to the end of this visit.",
	{model.BeatHook, model.BeatConclusion}:       "Short and sweet, that is the whole story.",
	{model.BeatReflection, model.BeatDiscovery}:  "There is one more thing worth knowing.",
}

// Assemble joins generated beats into a final script. Placeholder
// beats are kept in the text so the quality gate can detect them.
func Assemble(location string, name model.TemplateName, beats []model.Beat) *model.Script {
	var parts []string
	for i, b := range beats {
		if i > 0 && !b.IsPlaceholder() {
			if conn, ok := connectives[[2]model.BeatKind{beats[i-1].Kind, b.Kind}]; ok {
				parts = append(parts, conn)
			}
		}
		parts = append(parts, b.Text)
	}

	text := strings.Join(parts, "\n\n")

	return &model.Script{
		Title:       fmt.Sprintf("Discover %s", location),
		Description: fmt.Sprintf("A short audio journey through %s: its history, culture and the stories most visitors never hear.", location),
		Template:    name,
		Beats:       beats,
		Text:        text,
	}
}
