// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package codegen

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/toolserver"
)

// Options configures one generation run.
type Options struct {
	// ManifestPath is the tool manifest to read. An empty path uses the
	// standard manifest resolution order.
	ManifestPath string
	// OutputPath is the Go file to write.
	OutputPath string
	// Package is the package name for the generated file.
	Package string
}

// fileData is the root template context.
type fileData struct {
	Package      string
	ServerName   string
	ManifestPath string
	Tools        []toolData
}

// toolData describes one declared tool for the template.
type toolData struct {
	Name        string
	Description string
	ArgsType    string
	HandlerName string
	Fields      []fieldData
}

// fieldData describes one input schema property.
type fieldData struct {
	GoName   string
	JSONName string
	GoType   string
}

// Generate reads the tool manifest and writes a Go source file containing
// a typed argument struct and a handler stub for every declared tool, plus
// a builder function that registers them all on a [toolserver.ServerBuilder].
//
// Parameters:
//   - opts: Manifest location, output path, and target package name
//
// Returns:
//   - error: Error if the manifest cannot be loaded, a schema cannot be
//     read, or the generated code does not format
func Generate(opts Options) error {
	if opts.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	if opts.Package == "" {
		opts.Package = "main"
	}

	manifest, err := toolserver.LoadManifest(opts.ManifestPath)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	data := fileData{
		Package:      opts.Package,
		ServerName:   manifest.Name,
		ManifestPath: opts.ManifestPath,
		Tools:        make([]toolData, 0, len(manifest.Tools)),
	}
	for _, tool := range manifest.Tools {
		td, err := buildToolData(tool, manifest.BaseDir())
		if err != nil {
			return fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		data.Tools = append(data.Tools, td)
	}

	tmpl, err := template.New("handlers").Parse(handlersTemplate)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	var code bytes.Buffer
	writeHeader(&code, opts.ManifestPath)
	if err := tmpl.Execute(&code, data); err != nil {
		return fmt.Errorf("executing template: %w", err)
	}

	return writeGeneratedFile(opts.OutputPath, code.Bytes())
}

// buildToolData turns one manifest declaration into template data.
func buildToolData(tool toolserver.ManifestTool, baseDir string) (toolData, error) {
	td := toolData{
		Name:        tool.Name,
		Description: tool.Description,
		ArgsType:    exportName(tool.Name) + "Args",
		HandlerName: unexportName(tool.Name) + "Exec",
	}

	schema, err := inputSchema(tool, baseDir)
	if err != nil {
		return td, err
	}

	props, _ := schema["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		td.Fields = append(td.Fields, fieldData{
			GoName:   exportName(name),
			JSONName: name,
			GoType:   goType(prop),
		})
	}
	return td, nil
}

// inputSchema resolves a tool's input schema the way the server does:
// inline document first, then a file relative to the manifest, then the
// permissive default.
func inputSchema(tool toolserver.ManifestTool, baseDir string) (map[string]any, error) {
	if tool.InputSchema != nil {
		return tool.InputSchema, nil
	}
	if tool.InputSchemaPath != "" {
		path := tool.InputSchemaPath
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading input schema: %w", err)
		}
		var schema map[string]any
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("parsing input schema %s: %w", path, err)
		}
		return schema, nil
	}
	return map[string]any{"type": "object"}, nil
}

// goType maps a JSON Schema property to a Go field type. Unknown or
// composite types fall back to json.RawMessage so nothing is lost.
func goType(prop map[string]any) string {
	t, _ := prop["type"].(string)
	switch t {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]any"
	default:
		return "json.RawMessage"
	}
}

// exportName converts a snake_case or kebab-case tool name to CamelCase.
func exportName(name string) string {
	var b strings.Builder
	upper := true
	for _, r := range name {
		if r == '_' || r == '-' || r == '.' {
			upper = true
			continue
		}
		if upper {
			b.WriteString(strings.ToUpper(string(r)))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unexportName converts a tool name to lowerCamelCase.
func unexportName(name string) string {
	exported := exportName(name)
	if exported == "" {
		return exported
	}
	return strings.ToLower(exported[:1]) + exported[1:]
}

func writeHeader(code *bytes.Buffer, manifestPath string) {
	code.WriteString("// Copyright (c) 2026 H0llyW00dzZ All rights reserved.\n")
	code.WriteString("//\n")
	code.WriteString("// By accessing or using this software, you agree to be bound by the terms\n")
	code.WriteString("// of the License Agreement, which you can find at LICENSE files.\n\n")
	if manifestPath == "" {
		manifestPath = "the resolved tool manifest"
	}
	fmt.Fprintf(code, "// Initially generated by tools/codegen from %s.\n", manifestPath)
	code.WriteString("// Fill in the handler bodies; regeneration overwrites this file.\n\n")
}

func writeGeneratedFile(filename string, content []byte) error {
	formatted, err := format.Source(content)
	if err != nil {
		return fmt.Errorf("formatting code: %w", err)
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(formatted); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flushing file: %w", err)
	}

	fmt.Printf("Generated %s successfully\n", filename)
	return nil
}

const handlersTemplate = `package {{.Package}}

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/toolserver"
)
{{range .Tools}}
{{if .Fields}}// {{.ArgsType}} holds the validated arguments for the {{.Name}} tool.
type {{.ArgsType}} struct {
{{- range .Fields}}
	{{.GoName}} {{.GoType}} ` + "`json:\"{{.JSONName}}\"`" + `
{{- end}}
}
{{end}}
// {{.HandlerName}} implements the {{.Name}} tool.
{{- if .Description}}
// {{.Description}}
{{- end}}
func {{.HandlerName}}(ctx context.Context, raw json.RawMessage) (any, error) {
{{- if .Fields}}
	var args {{.ArgsType}}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, err
	}
{{- end}}
	return nil, fmt.Errorf("{{.Name}}: not implemented")
}
{{end}}
// newServerBuilder registers every declared handler for {{.ServerName}}.
func newServerBuilder() *toolserver.ServerBuilder {
	return toolserver.NewServerBuilder().
		WithManifestPath({{printf "%q" .ManifestPath}}){{range .Tools}}.
		WithHandler({{printf "%q" .Name}}, {{.HandlerName}}){{end}}
}
`
