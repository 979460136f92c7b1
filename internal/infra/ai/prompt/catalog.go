// Package prompt holds the fixed instruction templates, one per feature
// kind, and the response shapes declared for the structured kinds.
package prompt

import (
	"fmt"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
)

// Template renders the instruction text of a kind. The argument is the
// optional caller context; kinds without context ignore it.
type Template func(context string) string

// TemplateFor returns the template of kind. An unknown kind is a wiring
// mistake, not a runtime fault.
func TemplateFor(kind analysis.Kind) (Template, error) {
	t, ok := templates[kind]
	if !ok {
		return nil, analysis.Errorf(analysis.ErrConfiguration, "prompt", "no template for feature kind %q", kind)
	}
	return t, nil
}

// MustTemplate is TemplateFor for static wiring.
func MustTemplate(kind analysis.Kind) Template {
	t, err := TemplateFor(kind)
	if err != nil {
		panic(err)
	}
	return t
}

// Render is a shortcut for TemplateFor(kind) applied to context.
func Render(kind analysis.Kind, context string) (string, error) {
	t, err := TemplateFor(kind)
	if err != nil {
		return "", err
	}
	return t(context), nil
}

// Framing is the sentence that precedes the two images of a comparison kind.
func Framing(kind analysis.Kind) string {
	if kind == analysis.KindPlanogramCompliance {
		return planogramFraming
	}
	return ""
}

// SystemInstruction is the persona of the support assistant.
func SystemInstruction() string { return supportInstruction }

// CopyBrief builds the creative_generate context for a brief.
func CopyBrief(product, audience string, withPhoto bool) string {
	if withPhoto {
		return fmt.Sprintf("The product is shown in this image. Product Name: %s. Target Audience: %s.", product, audience)
	}
	return fmt.Sprintf("Product: %s. Target Audience: %s.", product, audience)
}

// ImagePrompt is the instruction for the creative image call.
func ImagePrompt(product, audience string, withPhoto bool) string {
	p := fmt.Sprintf("Professional advertising photography of %s, studio lighting, 4k, appetizing, high quality. Target audience: %s.", product, audience)
	if withPhoto {
		return "Create a professional advertisement image featuring this product. " + p
	}
	return p
}
