package whitelist

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"argus/core"

	"go.uber.org/zap"
)

// maxRuleFileSize bounds a single rule file read.
const maxRuleFileSize = 16 * 1024 * 1024

// Loader assembles the persistent whitelist rules from their backing
// stores: a directory of known-good script contents (hashed at load time)
// and line-oriented name,value rule files per tier.
type Loader struct {
	knownGoodDir     string
	hashRulesFile    string
	contentRulesFile string
	regexRulesFile   string
	logger           *zap.SugaredLogger
}

// load reads all sources and returns the rules in source-precedence order:
// known-good directory hashes first, then file rules per tier. A failing
// source degrades to zero rules from that source with a logged diagnostic;
// refusing to operate would be worse than missing a few whitelist hits.
func (l *Loader) load() []core.WhitelistRule {
	var rules []core.WhitelistRule

	if l.knownGoodDir != "" {
		dirRules, err := l.loadKnownGoodDir()
		if err != nil {
			l.logger.Errorw("Failed to load known-good script directory, continuing without it",
				"dir", l.knownGoodDir, "error", err)
		}
		rules = append(rules, dirRules...)
	}

	sources := []struct {
		path string
		kind core.RuleKind
	}{
		{l.hashRulesFile, core.RuleKindHash},
		{l.contentRulesFile, core.RuleKindContent},
		{l.regexRulesFile, core.RuleKindRegex},
	}
	for _, src := range sources {
		if src.path == "" {
			continue
		}
		fileRules, err := l.loadRuleFile(src.path, src.kind)
		if err != nil {
			l.logger.Errorw("Failed to load rule file, continuing without it",
				"file", src.path, "kind", src.kind, "error", err)
			continue
		}
		rules = append(rules, fileRules...)
	}

	return rules
}

// loadKnownGoodDir hashes every regular file under the known-good directory
// into a hash-tier rule named after the file.
func (l *Loader) loadKnownGoodDir() ([]core.WhitelistRule, error) {
	var rules []core.WhitelistRule

	err := filepath.WalkDir(l.knownGoodDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			l.logger.Warnw("Skipping unreadable known-good file", "path", path, "error", readErr)
			return nil
		}
		name, relErr := filepath.Rel(l.knownGoodDir, path)
		if relErr != nil {
			name = d.Name()
		}
		rules = append(rules, core.WhitelistRule{
			Kind:  core.RuleKindHash,
			Name:  name,
			Value: core.HashContent(string(data)),
		})
		return nil
	})
	if err != nil {
		return rules, fmt.Errorf("failed to walk known-good directory: %w", err)
	}
	return rules, nil
}

// loadRuleFile parses a line-oriented rule file. Each line is "name,value";
// blank lines and lines starting with # are ignored, malformed lines are
// skipped with a diagnostic.
func (l *Loader) loadRuleFile(path string, kind core.RuleKind) ([]core.WhitelistRule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxRuleFileSize {
		return nil, fmt.Errorf("rule file too large: %d bytes (max %d)", info.Size(), maxRuleFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rules []core.WhitelistRule
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, value, found := strings.Cut(line, ",")
		if !found || name == "" || value == "" {
			l.logger.Warnw("Skipping malformed rule line", "file", path, "line", lineNo)
			continue
		}
		rules = append(rules, core.WhitelistRule{
			Kind:  kind,
			Name:  strings.TrimSpace(name),
			Value: value,
		})
	}
	if err := scanner.Err(); err != nil {
		return rules, fmt.Errorf("failed to read rule file: %w", err)
	}
	return rules, nil
}
