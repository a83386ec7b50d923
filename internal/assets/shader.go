package assets

import (
	"bufio"
	"io"
	"strings"
)

// ShaderRefs is one shader definition's name and the texture files it
// ultimately paints with. Map surfaces and MD3 models both reference
// assets by shader name rather than texture path directly, so the
// download manifest has to resolve a shader name to the textures its
// body names before it knows what a client actually needs to fetch.
type ShaderRefs struct {
	Name     string
	Textures []string
}

// ScanShaderScript walks a .shader script's text and extracts every
// shader definition's texture dependencies, stripping comments and
// tracking brace depth itself since these files have no single
// authoritative grammar — just a stage-block convention every Q3-derived
// engine's renderer agrees on.
func ScanShaderScript(r io.Reader) ([]ShaderRefs, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var defs []ShaderRefs
	var current *ShaderRefs
	depth := 0
	inBlockComment := false

	for scanner.Scan() {
		line := stripComments(scanner.Text(), &inBlockComment)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for line != "" {
			switch line[0] {
			case '{':
				depth++
				line = strings.TrimSpace(line[1:])
				continue
			case '}':
				depth--
				if depth == 0 && current != nil {
					defs = append(defs, *current)
					current = nil
				}
				line = strings.TrimSpace(line[1:])
				continue
			}

			var content string
			if idx := strings.IndexAny(line, "{}"); idx >= 0 {
				content, line = strings.TrimSpace(line[:idx]), line[idx:]
			} else {
				content, line = line, ""
			}
			if content == "" {
				continue
			}

			if depth == 0 {
				current = &ShaderRefs{Name: content}
				continue
			}
			if current != nil {
				applyShaderDirective(current, content)
			}
		}
	}

	return defs, scanner.Err()
}

// stripComments removes // and /* */ comments from one line, carrying
// block-comment state across calls via inBlockComment.
func stripComments(line string, inBlockComment *bool) string {
	if *inBlockComment {
		if idx := strings.Index(line, "*/"); idx >= 0 {
			line = line[idx+2:]
			*inBlockComment = false
		} else {
			return ""
		}
	}

	for {
		slashSlash := strings.Index(line, "//")
		slashStar := strings.Index(line, "/*")

		switch {
		case slashStar >= 0 && (slashSlash < 0 || slashStar < slashSlash):
			if end := strings.Index(line[slashStar+2:], "*/"); end >= 0 {
				line = line[:slashStar] + line[slashStar+2+end+2:]
				continue
			}
			*inBlockComment = true
			return line[:slashStar]
		case slashSlash >= 0:
			return line[:slashSlash]
		default:
			return line
		}
	}
}

// applyShaderDirective folds one shader-stage directive's texture
// reference(s), if any, into def.Textures.
func applyShaderDirective(def *ShaderRefs, content string) {
	tokens := strings.Fields(content)
	if len(tokens) == 0 {
		return
	}

	switch strings.ToLower(tokens[0]) {
	case "map", "clampmap", "diffusemap", "normalmap", "specularmap":
		if len(tokens) >= 2 && !strings.HasPrefix(tokens[1], "$") {
			def.Textures = append(def.Textures, tokens[1])
		}
	case "animmap":
		if len(tokens) >= 3 {
			for _, path := range tokens[2:] {
				if !strings.HasPrefix(path, "$") {
					def.Textures = append(def.Textures, path)
				}
			}
		}
	case "skyparms":
		if len(tokens) >= 2 && tokens[1] != "-" {
			for _, suffix := range []string{"_rt", "_lf", "_bk", "_ft", "_up", "_dn"} {
				def.Textures = append(def.Textures, tokens[1]+suffix)
			}
		}
	}
}
