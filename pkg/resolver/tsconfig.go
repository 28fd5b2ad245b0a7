package resolver

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TSConfig is the subset of tsconfig.json the resolver consumes.
type TSConfig struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`

	// Dir is the directory holding the tsconfig; baseUrl resolves
	// against it.
	Dir string `json:"-"`
}

// lineCommentRe strips whole-line // comments, blockCommentRe strips
// /* */ comments, and trailingComma drops commas before a closing
// bracket; tsconfig.json is JSONC in the wild.
var (
	lineCommentRe  = regexp.MustCompile(`(?m)^\s*//.*$`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingComma  = regexp.MustCompile(`,\s*([}\]])`)
)

// loadTSConfig parses the tsconfig at path. Returns nil (no error) when
// the file does not exist; unresolvable imports fall through to other
// strategies.
func loadTSConfig(path string) (*TSConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var config TSConfig
	if err := json.Unmarshal(data, &config); err != nil {
		// Retry as JSONC.
		cleaned := lineCommentRe.ReplaceAll(data, nil)
		cleaned = blockCommentRe.ReplaceAll(cleaned, nil)
		cleaned = trailingComma.ReplaceAll(cleaned, []byte("$1"))
		if err := json.Unmarshal(cleaned, &config); err != nil {
			return nil, err
		}
	}
	config.Dir = filepath.Dir(path)
	return &config, nil
}

// matchPath applies one tsconfig paths pattern ("@app/*") to a module
// specifier, substituting the captured segment into each target
// ("src/app/*"). Returns candidate paths relative to baseUrl.
func matchPath(pattern string, targets []string, specifier string) []string {
	if !strings.Contains(pattern, "*") {
		if pattern != specifier {
			return nil
		}
		return targets
	}

	parts := strings.SplitN(pattern, "*", 2)
	prefix, suffix := parts[0], parts[1]
	if !strings.HasPrefix(specifier, prefix) || !strings.HasSuffix(specifier, suffix) {
		return nil
	}
	captured := specifier[len(prefix) : len(specifier)-len(suffix)]

	candidates := make([]string, 0, len(targets))
	for _, target := range targets {
		candidates = append(candidates, strings.Replace(target, "*", captured, 1))
	}
	return candidates
}
