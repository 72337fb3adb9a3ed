package render

import (
	"image"
	"image/color"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	snippetMargin   = 4
	snippetMaxWidth = 72 // characters per rendered line
)

// RenderTextSnippet rasterises the leading portion of a plain-text payload
// onto a white canvas using the built-in 7x13 monospace face. Never fails:
// an empty payload renders an empty page.
func (e *Engine) RenderTextSnippet(data []byte, maxChars, maxLines int) (image.Image, error) {
	text := string(data)
	if maxChars > 0 && utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
	}

	lines := snippetLines(text, maxLines)

	face := basicfont.Face7x13
	lineHeight := face.Height + 2
	width := snippetMaxWidth*face.Advance + 2*snippetMargin
	height := len(lines)*lineHeight + 2*snippetMargin
	if height < lineHeight+2*snippetMargin {
		height = lineHeight + 2*snippetMargin
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: face,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(snippetMargin, snippetMargin+(i+1)*lineHeight-2)
		drawer.DrawString(line)
	}
	return img, nil
}

func snippetLines(text string, maxLines int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\t", "    ")

	var out []string
	for _, line := range strings.Split(text, "\n") {
		if maxLines > 0 && len(out) >= maxLines {
			break
		}
		if utf8.RuneCountInString(line) > snippetMaxWidth {
			line = string([]rune(line)[:snippetMaxWidth])
		}
		out = append(out, line)
	}
	return out
}
