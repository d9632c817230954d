package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-frame/engine/light"
	"github.com/Carmen-Shannon/oxy-frame/engine/pipeline"
)

// annotationPrefix marks a pre-processor directive inside a WGSL line comment.
const annotationPrefix = "//@oxy:"

// maxIncludeDepth bounds nested includes so a cycle fails instead of recursing forever.
const maxIncludeDepth = 8

// preProcessor expands //@oxy: directives:
//
//	//@oxy:include <name>       inject a registered GPU struct, or another source by name
//	//@oxy:shadow_maps <group>  declare the shadow map bindings and sample_shadow()
//
// Every name is injected at most once per program.
type preProcessor struct {
	structs    map[string]string
	sources    map[string]string
	maxShadows int
}

func newPreProcessor(sources map[string]string, maxShadows int) *preProcessor {
	return &preProcessor{
		structs: map[string]string{
			"frame":    pipeline.GPUFrameSource,
			"instance": pipeline.GPUInstanceSource,
			"light":    light.GPULightSource,
		},
		sources:    sources,
		maxShadows: maxShadows,
	}
}

// Process expands every directive in source.
//
// Parameters:
//   - name: the program name, used in errors and to reject self-inclusion
//   - source: the raw WGSL
//
// Returns:
//   - string: the expanded WGSL
//   - error: an unknown directive, an unknown include or an include cycle
func (p *preProcessor) Process(name, source string) (string, error) {
	seen := map[string]bool{name: true}
	var sb strings.Builder
	if err := p.expand(&sb, name, source, seen, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (p *preProcessor) expand(sb *strings.Builder, name, source string, seen map[string]bool, depth int) error {
	if depth > maxIncludeDepth {
		return fmt.Errorf("%s: includes nested deeper than %d", name, maxIncludeDepth)
	}
	for i, line := range strings.Split(source, "\n") {
		directive, ok := strings.CutPrefix(strings.TrimSpace(line), annotationPrefix)
		if !ok {
			sb.WriteString(line)
			sb.WriteByte('\n')
			continue
		}
		args := strings.Fields(directive)
		if len(args) != 2 {
			return fmt.Errorf("%s:%d: directive %q takes exactly one argument", name, i+1, directive)
		}
		switch args[0] {
		case "include":
			inc := args[1]
			if seen[inc] {
				continue
			}
			seen[inc] = true
			if s, ok := p.structs[inc]; ok {
				sb.WriteString(s)
				sb.WriteByte('\n')
				continue
			}
			src, ok := p.sources[inc]
			if !ok {
				return fmt.Errorf("%s:%d: unknown include %q", name, i+1, inc)
			}
			if err := p.expand(sb, inc, src, seen, depth+1); err != nil {
				return err
			}
		case "shadow_maps":
			group, err := strconv.Atoi(args[1])
			if err != nil || group < 0 {
				return fmt.Errorf("%s:%d: invalid group %q", name, i+1, args[1])
			}
			p.writeShadowMaps(sb, group)
		default:
			return fmt.Errorf("%s:%d: unknown directive %q", name, i+1, args[0])
		}
	}
	return nil
}

// writeShadowMaps declares one depth texture per shadow slot plus a comparison sampler
// in group, and a sample_shadow(index, coord) helper returning the lit fraction.
func (p *preProcessor) writeShadowMaps(sb *strings.Builder, group int) {
	for i := range p.maxShadows {
		fmt.Fprintf(sb, "@group(%d) @binding(%d) var shadow_map_%d: texture_depth_2d;\n", group, i, i)
	}
	fmt.Fprintf(sb, "@group(%d) @binding(%d) var shadow_sampler: sampler_comparison;\n\n", group, p.maxShadows)
	sb.WriteString("fn sample_shadow(index: u32, coord: vec3<f32>) -> f32 {\n")
	sb.WriteString("    if coord.x < 0.0 || coord.x > 1.0 || coord.y < 0.0 || coord.y > 1.0 {\n        return 1.0;\n    }\n")
	sb.WriteString("    switch index {\n")
	for i := range p.maxShadows {
		fmt.Fprintf(sb, "        case %du: { return textureSampleCompareLevel(shadow_map_%d, shadow_sampler, coord.xy, coord.z - 0.001); }\n", i, i)
	}
	sb.WriteString("        default: { return 1.0; }\n    }\n}\n")
}
