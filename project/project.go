// Package project ties the pieces together: the mixup.yaml config, corpus
// loading, running a project's programs over its corpus, and scaffolding
// new projects.
package project

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"log/slog"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	yaml "gopkg.in/yaml.v2"

	"github.com/mixuplang/mixup/annotator"
	"github.com/mixuplang/mixup/engine"
	"github.com/mixuplang/mixup/labels"
	"github.com/mixuplang/mixup/parser/grammar"
)

//go:embed templates/*
var templates embed.FS

// ConfigFile is the project config filename.
const ConfigFile = "mixup.yaml"

// Config is the project description read from mixup.yaml.
type Config struct {
	Name       string   `yaml:"name"`
	Corpus     string   `yaml:"corpus"`     // text file or directory of text files
	Programs   []string `yaml:"programs"`   // run in order; globs allowed
	Annotators []string `yaml:"annotators"` // search dirs for annotateWith/require
	Output     string   `yaml:"output"`     // snapshot path; empty means stdout listing
}

// LoadConfig reads and validates a project config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("bad config %s: %w", path, err)
	}
	if cfg.Corpus == "" {
		cfg.Corpus = "corpus"
	}
	if len(cfg.Programs) == 0 {
		cfg.Programs = []string{"programs/**/*" + annotator.SourceExt}
	}
	if len(cfg.Annotators) == 0 {
		cfg.Annotators = []string{"programs"}
	}
	return &cfg, nil
}

// FindTextFiles lists the .txt files under root, recursively, sorted.
func FindTextFiles(root string) ([]string, error) {
	files, err := doublestar.FilepathGlob(filepath.Join(root, "**", "*.txt"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ProgramFiles expands the config's program patterns into a flat, ordered
// file list. Literal paths pass through; globs expand sorted.
func (c *Config) ProgramFiles() ([]string, error) {
	var out []string
	for _, p := range c.Programs {
		if !strings.ContainsAny(p, "*?[{") {
			out = append(out, p)
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad program pattern %q: %w", p, err)
		}
		sort.Strings(matches)
		out = append(out, matches...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no program files matched %v", c.Programs)
	}
	return out, nil
}

// LoadCorpus builds a text base from a single text file or a directory of
// .txt files. Document IDs are paths relative to the corpus root.
func LoadCorpus(path string) (*labels.TextBase, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	tb := labels.NewTextBase()
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		tb.AddDocument(filepath.Base(path), string(data))
		return tb, nil
	}
	files, err := FindTextFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .txt files under %s", path)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		id, relErr := filepath.Rel(path, f)
		if relErr != nil {
			id = f
		}
		tb.AddDocument(filepath.ToSlash(id), string(data))
	}
	return tb, nil
}

// Run loads the corpus, runs every program in order and returns the
// labeled store. Each run gets its own id for log correlation.
func Run(cfg *Config, log *slog.Logger) (*labels.Store, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run", uuid.NewString(), "project", cfg.Name)

	tb, err := LoadCorpus(cfg.Corpus)
	if err != nil {
		return nil, fmt.Errorf("loading corpus: %w", err)
	}
	log.Info("corpus loaded", "documents", len(tb.Documents()))

	files, err := cfg.ProgramFiles()
	if err != nil {
		return nil, err
	}

	st := labels.NewStore(tb)
	ev := &engine.Evaluator{
		Log:           log,
		LoadAnnotator: annotator.Loader(cfg.Annotators...),
	}
	for _, f := range files {
		prog, err := grammar.ParseFile(f)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		if err := ev.Run(prog, st); err != nil {
			return nil, fmt.Errorf("running %s: %w", f, err)
		}
		log.Info("program done", "file", f, "statements", len(prog.Statements), "elapsed", time.Since(start))
	}
	return st, nil
}

// Init scaffolds a new project directory with a config, a sample corpus
// and a starter program.
func Init(name string) error {
	if err := os.MkdirAll(name, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	for _, dir := range []string{
		filepath.Join(name, "corpus"),
		filepath.Join(name, "programs"),
		filepath.Join(name, "out"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	templateFiles := map[string]string{
		ConfigFile:               "templates/mixup.yaml",
		"programs/extract.mixup": "templates/extract.mixup",
		"corpus/sample.txt":      "templates/sample.txt",
		"README.md":              "templates/README.md",
		".gitignore":             "templates/gitignore",
	}
	for filePath, templatePath := range templateFiles {
		if err := writeTemplateFile(name, filePath, templatePath, name); err != nil {
			return fmt.Errorf("failed to write %s: %w", filePath, err)
		}
	}
	return nil
}

func writeTemplateFile(projectDir, filePath, templatePath, projectName string) error {
	content, err := templates.ReadFile(templatePath)
	if err != nil {
		return err
	}
	rendered := strings.ReplaceAll(string(content), "{{.ProjectName}}", projectName)
	return os.WriteFile(filepath.Join(projectDir, filePath), []byte(rendered), 0o644)
}
