package recipe

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/KH1188/juliusos/internal/ollama"
)

var codeBlockRe = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")

// codeSearchDirs list 操作遍历的目录（相对项目根）
var codeSearchDirs = []string{"cmd", "internal", "apps/desktop/src", "services/api", "services/agents"}

var codeExtensions = []string{".go", ".py", ".tsx", ".ts", ".js", ".json", ".css"}

var skipDirs = map[string]bool{
	"node_modules": true, "venv": true, "__pycache__": true, ".git": true, "dist": true, "build": true,
}

const (
	codeSystemRead = `You are a code analysis assistant. Analyze the provided code files and answer the user's question.
Be concise and technical. Focus on explaining the code structure, logic, and any issues.`
	codeSystemWrite = `You are a code generation assistant. Generate or modify code based on the user's request.
Return ONLY valid code in your response. No explanations unless asked.
If modifying, show the complete modified section.`
	codeSystemDefault = `You are a coding assistant with full access to the codebase.
You can read, analyze, and generate code. Be helpful and technical.`
)

// ExtractCodeBlocks 提取 ``` 包围的代码块，语言缺省为 text，内容去掉首尾空白
func ExtractCodeBlocks(text string) []CodeBlock {
	blocks := []CodeBlock{}
	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		lang := m[1]
		if lang == "" {
			lang = "text"
		}
		blocks = append(blocks, CodeBlock{Language: lang, Code: strings.TrimSpace(m[2])})
	}
	return blocks
}

func (r *Registry) codeAssistant(ctx context.Context, userID int64, p Params) (any, error) {
	message := strings.TrimSpace(p.String("message"))
	operation := p.String("operation")
	if message == "" {
		return CodeReply{Response: "What would you like me to help you with?", Files: map[string]string{}, CodeBlocks: []CodeBlock{}}, nil
	}
	root := r.deps.ProjectRoot

	if operation == "list" {
		structure := directoryStructure(root, message)
		return CodeReply{
			Response:   "Found the following files:\n" + structure,
			Files:      map[string]string{},
			CodeBlocks: []CodeBlock{},
			Operation:  operation,
			Structure:  structure,
		}, nil
	}

	files := p.Strings("files")
	contents := map[string]string{}
	for _, f := range files {
		full, err := resolveInRoot(root, f)
		if err != nil {
			contents[f] = "Error reading file: " + err.Error()
			continue
		}
		info, err := os.Stat(full)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		b, err := os.ReadFile(full)
		if err != nil {
			contents[f] = "Error reading file: " + err.Error()
			continue
		}
		contents[f] = string(b)
	}

	system := codeSystemDefault
	hint := ""
	temp := 0.5
	switch operation {
	case "read":
		system = codeSystemRead
		hint = "Provide analysis and explanation."
	case "write":
		system = codeSystemWrite
		hint = "Generate complete, working code."
		temp = 0.3
	case "modify":
		system = codeSystemWrite
		hint = "Show the modified code sections."
		temp = 0.3
	}

	text, err := r.generate(ctx, "code_assistant", map[string]any{
		"base_dir":       root,
		"files_context":  filesContext(files, contents),
		"message":        message,
		"operation_hint": hint,
	}, ollama.GenerateRequest{System: system, Temperature: ollama.Temp(temp)})
	if err != nil {
		return nil, err
	}

	reply := CodeReply{Response: text, Files: contents, CodeBlocks: []CodeBlock{}, Operation: operation}
	if operation == "write" || operation == "modify" {
		reply.CodeBlocks = ExtractCodeBlocks(text)
		if p.Bool("apply") && len(files) == 1 && len(reply.CodeBlocks) > 0 {
			if err := writeInRoot(root, files[0], reply.CodeBlocks[0].Code); err != nil {
				return nil, fmt.Errorf("apply code block: %w", err)
			}
			reply.Applied = []string{files[0]}
		}
	}
	return reply, nil
}

func filesContext(order []string, contents map[string]string) string {
	if len(contents) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\nCURRENT FILES:\n")
	for _, path := range order {
		c, ok := contents[path]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", path, c)
	}
	return sb.String()
}

// resolveInRoot 相对路径必须留在项目根内
func resolveInRoot(root, rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return "", fmt.Errorf("absolute path not allowed: %s", rel)
	}
	full := filepath.Join(root, rel)
	back, err := filepath.Rel(root, full)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes project root: %s", rel)
	}
	return full, nil
}

func writeInRoot(root, rel, content string) error {
	full, err := resolveInRoot(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content+"\n"), 0o644)
}

// directoryStructure 列出匹配 filter 的源文件，最多 100 行
func directoryStructure(root, filter string) string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	var lines []string
	for _, dir := range codeSearchDirs {
		base := filepath.Join(root, dir)
		if _, err := os.Stat(base); err != nil {
			continue
		}
		lines = append(lines, "\n"+dir+"/")
		_ = filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				if skipDirs[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !hasCodeExt(d.Name()) {
				return nil
			}
			if filter != "" && !strings.Contains(strings.ToLower(d.Name()), filter) {
				return nil
			}
			relDir, _ := filepath.Rel(base, filepath.Dir(path))
			level := 0
			if relDir != "." {
				level = strings.Count(relDir, string(filepath.Separator)) + 1
			}
			relPath, _ := filepath.Rel(root, path)
			lines = append(lines, strings.Repeat("  ", level)+filepath.ToSlash(relPath))
			return nil
		})
	}
	if len(lines) > 100 {
		lines = lines[:100]
	}
	return strings.Join(lines, "\n")
}

func hasCodeExt(name string) bool {
	for _, ext := range codeExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
