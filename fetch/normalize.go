package fetch

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Normalizer converts HTML documents to markdown so that change detection
// always compares text lines, whatever the source serves. The HTML is
// sanitized first; scripts, styles, and event handlers never reach the
// stored snapshot.
type Normalizer struct {
	policy    *bluemonday.Policy
	converter *converter.Converter
}

// NewNormalizer creates a Normalizer with the UGC sanitization policy and
// a commonmark+table converter.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		policy: bluemonday.UGCPolicy(),
		converter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Markdown sanitizes HTML and converts it to markdown text.
func (n *Normalizer) Markdown(html []byte) (string, error) {
	clean := n.policy.SanitizeBytes(html)
	md, err := n.converter.ConvertString(string(clean))
	if err != nil {
		return "", fmt.Errorf("convert: %w", err)
	}
	return strings.TrimSpace(md) + "\n", nil
}
