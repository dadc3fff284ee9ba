// Package diff detects missing, changed, and git-outdated keys between a
// source resource file and its translation.
//
// Missing keys come from comparing flat projections. Changed values are
// only candidates: they become "outdated" when git blame shows the source
// line is newer than the target line. Blame lookups batch per file through
// the gitblame cache; line numbers resolve format-specifically (bracket
// walker for JSON, indentation walker for YAML, substring scan for flat
// formats) and are cached per (file, key) for the process lifetime.
package diff

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/gitblame"
	"github.com/algebras-ai/algebras-cli/resource"
	"github.com/algebras-ai/algebras-cli/scanner"
)

// Options selects which checks run.
type Options struct {
	CheckMTime       bool
	CheckMissing     bool
	CheckGitOutdated bool
}

// Result is the outcome for one (source, target) pair.
type Result struct {
	Pair scanner.Pair
	// TargetMissing means the target file does not exist; MissingKeys
	// then holds every source key.
	TargetMissing bool
	// MtimeOutdated means the target file is older than the source file.
	MtimeOutdated bool
	// MissingKeys are source keys absent from the target.
	MissingKeys []string
	// OutdatedKeys are keys whose source line is newer per git blame.
	OutdatedKeys []string
}

// Clean reports whether nothing needs attention.
func (r *Result) Clean() bool {
	return !r.TargetMissing && !r.MtimeOutdated &&
		len(r.MissingKeys) == 0 && len(r.OutdatedKeys) == 0
}

// Engine runs pair checks. Safe for concurrent use.
type Engine struct {
	reg   *format.Registry
	blame *gitblame.Cache
	root  string

	mu        sync.Mutex
	lineCache map[string]map[string]int // path -> key -> 1-based line
}

// NewEngine builds a diff engine rooted at the project directory.
func NewEngine(root string, reg *format.Registry, blame *gitblame.Cache) *Engine {
	return &Engine{
		reg:       reg,
		blame:     blame,
		root:      root,
		lineCache: make(map[string]map[string]int),
	}
}

// ---------------------------------------------------------------------------
// Pair checking
// ---------------------------------------------------------------------------

// CheckPair diffs one pair. sourceLocale names the source side for
// multi-locale files (CSV columns). A read failure fails this pair only.
func (e *Engine) CheckPair(ctx context.Context, p scanner.Pair, sourceLocale string, opts Options) (*Result, error) {
	res := &Result{Pair: p}
	srcPath := filepath.Join(e.root, p.Source)
	tgtPath := filepath.Join(e.root, p.Target)

	handler, err := e.reg.ForPath(p.Source)
	if err != nil {
		return nil, err
	}
	src, err := e.read(handler, srcPath, sourceLocale, true)
	if err != nil {
		return nil, err
	}
	srcFlat := src.Map.Flatten()

	tgtInfo, statErr := os.Stat(tgtPath)
	if os.IsNotExist(statErr) {
		res.TargetMissing = true
		if opts.CheckMissing {
			res.MissingKeys = srcFlat.Keys()
		}
		return res, nil
	}
	if statErr != nil {
		return nil, statErr
	}

	if opts.CheckMTime {
		if srcInfo, err := os.Stat(srcPath); err == nil && tgtInfo.ModTime().Before(srcInfo.ModTime()) {
			res.MtimeOutdated = true
		}
	}

	tgtHandler, err := e.reg.ForPath(p.Target)
	if err != nil {
		return nil, err
	}
	if tgtHandler.HashedKeys {
		// Keys hash each document's own text, so the source and target
		// sets never intersect. With the target present, freshness rides
		// on the mtime check alone.
		return res, nil
	}
	tgt, err := e.read(tgtHandler, tgtPath, p.Locale, false)
	if err != nil {
		return nil, err
	}
	tgtFlat := tgt.Map.Flatten()

	var candidates []string
	for _, pair := range srcFlat.Pairs() {
		tv, ok := tgtFlat.Get(pair.Key)
		switch {
		case !ok:
			if opts.CheckMissing {
				res.MissingKeys = append(res.MissingKeys, pair.Key)
			}
		case tv != pair.Value:
			candidates = append(candidates, pair.Key)
		}
	}

	if opts.CheckGitOutdated && len(candidates) > 0 && e.blame.InsideWorkTree(ctx, e.root) {
		outdated, err := e.gitOutdated(ctx, srcPath, tgtPath, candidates)
		if err == nil {
			res.OutdatedKeys = outdated
		}
		// A blame failure degrades to "cannot determine", not an error.
	}
	return res, nil
}

func (e *Engine) read(h *format.Handler, path, locale string, asSource bool) (*resource.File, error) {
	if h.ReadLocale != nil {
		return h.ReadLocale(path, locale)
	}
	if asSource {
		return format.ReadSource(h, path)
	}
	return h.Read(path)
}

// CheckPairs runs CheckPair over many pairs with bounded parallelism.
// Results keep the order of pairs; failed pairs are returned as errors
// alongside the successful results.
func (e *Engine) CheckPairs(ctx context.Context, pairs []scanner.Pair, sourceLocale string, opts Options, workers int) ([]*Result, []error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*Result, len(pairs))
	errs := make([]error, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			res, err := e.CheckPair(ctx, p, sourceLocale, opts)
			results[i] = res
			errs[i] = err
			return nil // one bad pair never stops the others
		})
	}
	_ = g.Wait()

	var out []*Result
	var failed []error
	for i := range pairs {
		if errs[i] != nil {
			failed = append(failed, fmt.Errorf("%s: %w", pairs[i].Source, errs[i]))
			continue
		}
		out = append(out, results[i])
	}
	return out, failed
}

// ---------------------------------------------------------------------------
// Git outdated
// ---------------------------------------------------------------------------

// gitOutdated keeps the candidates whose source-side blame time is
// strictly newer than the target-side one. Keys whose line cannot be
// resolved on either side are dropped (cannot determine).
func (e *Engine) gitOutdated(ctx context.Context, srcPath, tgtPath string, candidates []string) ([]string, error) {
	srcLines := make(map[string]int, len(candidates))
	tgtLines := make(map[string]int, len(candidates))
	var srcWanted, tgtWanted []int

	for _, key := range candidates {
		if n, ok := e.keyLine(srcPath, key); ok {
			srcLines[key] = n
			srcWanted = append(srcWanted, n)
		}
		if n, ok := e.keyLine(tgtPath, key); ok {
			tgtLines[key] = n
			tgtWanted = append(tgtWanted, n)
		}
	}

	srcBlame, err := e.blame.Lines(ctx, srcPath, srcWanted)
	if err != nil {
		return nil, err
	}
	tgtBlame, err := e.blame.Lines(ctx, tgtPath, tgtWanted)
	if err != nil {
		return nil, err
	}

	var outdated []string
	for _, key := range candidates {
		sn, okS := srcLines[key]
		tn, okT := tgtLines[key]
		if !okS || !okT {
			continue
		}
		si, okS := srcBlame[sn]
		ti, okT := tgtBlame[tn]
		if !okS || !okT {
			continue
		}
		if si.Time.After(ti.Time) {
			outdated = append(outdated, key)
		}
	}
	return outdated, nil
}

// ---------------------------------------------------------------------------
// Line lookup
// ---------------------------------------------------------------------------

// keyLine resolves the 1-based line of a flat key inside a file, caching
// per (file, key).
func (e *Engine) keyLine(path, key string) (int, bool) {
	e.mu.Lock()
	if byKey, ok := e.lineCache[path]; ok {
		if n, ok := byKey[key]; ok {
			e.mu.Unlock()
			return n, n > 0
		}
	}
	e.mu.Unlock()

	data, err := os.ReadFile(path)
	n := 0
	if err == nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".json":
			n = jsonKeyLine(string(data), key)
		case ".yaml", ".yml":
			n = yamlKeyLine(string(data), key)
		default:
			n = flatKeyLine(string(data), key)
		}
	}

	e.mu.Lock()
	if e.lineCache[path] == nil {
		e.lineCache[path] = make(map[string]int)
	}
	e.lineCache[path][key] = n
	e.mu.Unlock()
	return n, n > 0
}

var jsonKeyRe = regexp.MustCompile(`^\s*"((?:[^"\\]|\\.)*)"\s*:`)

// jsonKeyLine walks the file line by line tracking bracket depth and a
// path stack, matching the dot-path of each leaf key.
func jsonKeyLine(data, target string) int {
	var stack []string
	pending := ""
	for i, line := range strings.Split(data, "\n") {
		key := ""
		rest := line
		if m := jsonKeyRe.FindStringSubmatch(line); m != nil {
			key = m[1]
			rest = line[len(m[0]):]
		}
		if key != "" && !strings.Contains(stripStrings(rest), "{") {
			path := strings.Join(append(pathOf(stack), key), ".")
			if path == target {
				return i + 1
			}
		}
		for _, ch := range stripStrings(line) {
			switch ch {
			case '{':
				stack = append(stack, pending)
				pending = ""
			case '}':
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			}
		}
		if key != "" && strings.Contains(stripStrings(rest), "{") {
			// The pushed frame above consumed "" for this line's brace;
			// rewrite it with the real key.
			if len(stack) > 0 {
				stack[len(stack)-1] = key
			}
		}
	}
	return 0
}

// pathOf drops the root frame from the brace stack.
func pathOf(stack []string) []string {
	var out []string
	for i, s := range stack {
		if i == 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}

// stripStrings blanks out string literals so braces inside values are not
// counted.
func stripStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inString && c == '\\':
			b.WriteByte(' ')
			if i+1 < len(s) {
				b.WriteByte(' ')
				i++
			}
		case c == '"':
			inString = !inString
			b.WriteByte('"')
		case inString:
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

var yamlKeyRe = regexp.MustCompile(`^(\s*)([^\s#][^:]*):(.*)$`)

// yamlKeyLine reconstructs the path stack from indentation.
func yamlKeyLine(data, target string) int {
	type frame struct {
		indent int
		key    string
	}
	var stack []frame
	for i, line := range strings.Split(data, "\n") {
		m := yamlKeyRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		key := strings.TrimSpace(m[2])
		key = strings.Trim(key, `"'`)
		for len(stack) > 0 && stack[len(stack)-1].indent >= indent {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, frame{indent: indent, key: key})

		if strings.TrimSpace(m[3]) != "" {
			parts := make([]string, len(stack))
			for j, f := range stack {
				parts[j] = f.key
			}
			if strings.Join(parts, ".") == target {
				return i + 1
			}
		}
	}
	return 0
}

// flatKeyLine scans for a quoted key or a key= prefix.
func flatKeyLine(data, target string) int {
	quoted := `"` + target + `"`
	for i, line := range strings.Split(data, "\n") {
		if strings.Contains(line, quoted) {
			return i + 1
		}
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, target+"=") || strings.HasPrefix(trimmed, target+" =") {
			return i + 1
		}
	}
	return 0
}
