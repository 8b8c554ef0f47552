// Package generator scaffolds new program and dictionary files inside an
// existing project.
package generator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GenerateProgram writes a starter extraction program for a span type.
func GenerateProgram(name string) error {
	typ := strings.ToLower(name)
	program := fmt.Sprintf(`// Extraction program for %s spans.

provide '%s';

declareSpanType %s;

defSpanType %s = : ... [re('^[A-Z]')] ... ;
`, typ, typ, typ, typ)

	if err := os.MkdirAll("programs", 0o755); err != nil {
		return err
	}
	filename := filepath.Join("programs", typ+".mixup")
	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("%s already exists", filename)
	}
	if err := os.WriteFile(filename, []byte(program), 0o644); err != nil {
		return err
	}
	fmt.Printf("Program %s generated at %s\n", typ, filename)
	return nil
}

// GenerateDictionary writes a word-list file plus a program that labels
// its matches.
func GenerateDictionary(name string, words []string) error {
	dict := strings.ToLower(name)
	if len(words) == 0 {
		words = []string{"example"}
	}

	if err := os.MkdirAll("programs", 0o755); err != nil {
		return err
	}
	wordFile := filepath.Join("programs", dict+".txt")
	if err := os.WriteFile(wordFile, []byte(strings.Join(words, "\n")+"\n"), 0o644); err != nil {
		return err
	}

	program := fmt.Sprintf(`// Dictionary labeling for %s.

defDict %s = "%s";

defSpanType %s = : ... [ai(%s)] ... ;
`, dict, dict, filepath.ToSlash(wordFile), dict, dict)

	filename := filepath.Join("programs", dict+"_dict.mixup")
	if err := os.WriteFile(filename, []byte(program), 0o644); err != nil {
		return err
	}
	fmt.Printf("Dictionary %s generated at %s and %s\n", dict, wordFile, filename)
	return nil
}
