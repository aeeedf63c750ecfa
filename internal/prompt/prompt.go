// Package prompt 加载按用途命名的文本模板，并对 {{placeholder}} 做字面替换
package prompt

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed templates/*.txt
var embedded embed.FS

var ErrTemplateNotFound = errors.New("prompt template not found")

// Store 模板来源：优先 dir 目录下的同名文件，其次内置模板
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load 读取 name.txt
func (s *Store) Load(name string) (string, error) {
	file := name + ".txt"
	if s.dir != "" {
		b, err := os.ReadFile(filepath.Join(s.dir, file))
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
	}
	b, err := embedded.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return string(b), nil
}

// Render 加载模板并替换
func (s *Store) Render(name string, values map[string]any) (string, error) {
	tpl, err := s.Load(name)
	if err != nil {
		return "", err
	}
	return Substitute(tpl, values)
}

// Substitute 单遍替换 {{key}}，插入的文本不再参与替换；字符串原样插入，其余值序列化为两空格缩进的 JSON
func Substitute(tpl string, values map[string]any) (string, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		text, err := render(values[k])
		if err != nil {
			return "", fmt.Errorf("placeholder %s: %w", k, err)
		}
		pairs = append(pairs, "{{"+k+"}}", text)
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}

func render(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
