// Package syncer orchestrates the translate, update, and ci flows.
//
// It walks the scanner's (source, target, locale) pairs, asks the diff
// engine what needs work, hands key sets to the translator driver, and
// picks the writer: in-place when the format supports it, full
// regeneration otherwise. File-scoped failures never abort the run; a
// permanent provider failure does.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/algebras-ai/algebras-cli/config"
	"github.com/algebras-ai/algebras-cli/csvfile"
	"github.com/algebras-ai/algebras-cli/diff"
	"github.com/algebras-ai/algebras-cli/format"
	"github.com/algebras-ai/algebras-cli/gitblame"
	"github.com/algebras-ai/algebras-cli/resource"
	"github.com/algebras-ai/algebras-cli/scanner"
	"github.com/algebras-ai/algebras-cli/translator"
	"github.com/algebras-ai/algebras-cli/xliff"
)

// Logf is a printf-style sink for progress and warning lines.
type Logf func(format string, args ...any)

// Options are the per-run flags.
type Options struct {
	// Locale restricts the run to one target locale. Empty means all.
	Locale string
	// Force re-translates every key even when the target looks current.
	Force bool
	// OnlyMissing restricts translation to keys absent from the target.
	OnlyMissing bool
	// Regenerate forces full-file writes even for in-place formats.
	Regenerate bool
	// DryRun reports pending work without calling the provider or writing.
	DryRun bool
	// UISafe asks the provider for length-bounded translations.
	UISafe bool
}

// Plan is an explicit work plan, keyed by target path. When handed to
// Translate it overrides the per-file freshness heuristics.
type Plan struct {
	// OutdatedFiles lists targets to re-translate in full.
	OutdatedFiles []string
	// MissingKeysFiles maps a target to its keys absent from the file.
	MissingKeysFiles map[string][]string
	// OutdatedKeysFiles maps a target to its stale keys.
	OutdatedKeysFiles map[string][]string
}

func (p *Plan) add(target string, res *diff.Result) {
	if res.TargetMissing {
		p.OutdatedFiles = append(p.OutdatedFiles, target)
		return
	}
	if len(res.MissingKeys) > 0 {
		p.MissingKeysFiles[target] = res.MissingKeys
	}
	if len(res.OutdatedKeys) > 0 {
		p.OutdatedKeysFiles[target] = res.OutdatedKeys
	}
}

// maxReportedFailures caps the failed-key identifiers kept in the summary.
const maxReportedFailures = 10

// Summary is the user-visible outcome of one run.
type Summary struct {
	FilesProcessed int
	FilesSkipped   int
	FilesFailed    int
	KeysTranslated int
	KeysFailed     int
	// FailedKeys holds the first few failed identifiers.
	FailedKeys []string
	// Pending counts keys per locale that a dry run would translate.
	Pending map[string]int
}

func (s *Summary) recordFailures(keys []string) {
	s.KeysFailed += len(keys)
	for _, k := range keys {
		if len(s.FailedKeys) >= maxReportedFailures {
			break
		}
		s.FailedKeys = append(s.FailedKeys, k)
	}
}

// Syncer binds the engine pieces together for one project.
type Syncer struct {
	cfg    *config.Config
	reg    *format.Registry
	scan   *scanner.Scanner
	engine *diff.Engine
	driver *translator.Driver

	infof Logf
	warnf Logf
}

// New builds a syncer. driver may be nil for flows that never translate
// (ci, status, dry runs). Log sinks default to no-ops.
func New(cfg *config.Config, reg *format.Registry, driver *translator.Driver, infof, warnf Logf) *Syncer {
	if infof == nil {
		infof = func(string, ...any) {}
	}
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	return &Syncer{
		cfg:    cfg,
		reg:    reg,
		scan:   scanner.New(cfg, reg),
		engine: diff.NewEngine(cfg.Root, reg, gitblame.NewCache()),
		driver: driver,
		infof:  infof,
		warnf:  warnf,
	}
}

func (s *Syncer) locales(opts Options) ([]string, error) {
	if opts.Locale != "" {
		if !s.cfg.HasLocale(opts.Locale) {
			return nil, fmt.Errorf("locale %q is not declared in languages", opts.Locale)
		}
		return []string{opts.Locale}, nil
	}
	return s.cfg.TargetLocales(), nil
}

func (s *Syncer) batchOptions(opts Options) translator.BatchOptions {
	return translator.BatchOptions{
		UISafe:           opts.UISafe,
		GlossaryID:       s.cfg.API.GlossaryID,
		CustomPrompt:     s.cfg.API.Prompt,
		NormalizeStrings: s.cfg.NormalizeStrings(),
	}
}

// ---------------------------------------------------------------------------
// Translate flow
// ---------------------------------------------------------------------------

// Translate runs the translate flow. A non-nil plan dictates exactly what
// to translate; otherwise per-file freshness heuristics decide.
func (s *Syncer) Translate(ctx context.Context, opts Options, plan *Plan) (*Summary, error) {
	sum := &Summary{Pending: make(map[string]int)}
	locales, err := s.locales(opts)
	if err != nil {
		return sum, err
	}

	for _, locale := range locales {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		pairs, err := s.scan.Pairs(locale)
		if err != nil {
			return sum, err
		}
		for _, p := range pairs {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			keys, skip, err := s.keysFor(ctx, p, opts, plan)
			if err != nil {
				s.warnf("%s: %v", p.Source, err)
				sum.FilesFailed++
				continue
			}
			if skip {
				sum.FilesSkipped++
				continue
			}
			if opts.DryRun {
				n, err := s.pendingCount(p, keys)
				if err != nil {
					s.warnf("%s: %v", p.Source, err)
					sum.FilesFailed++
					continue
				}
				sum.Pending[locale] += n
				continue
			}

			err = s.translatePair(ctx, p, keys, opts, sum)
			var perm *translator.PermanentError
			if errors.As(err, &perm) {
				// Retrying other files with the same credentials is futile.
				return sum, err
			}
			if err != nil {
				s.warnf("%s -> %s: %v", p.Source, p.Target, err)
				sum.FilesFailed++
				continue
			}
			sum.FilesProcessed++
		}
	}
	return sum, ctx.Err()
}

// keysFor decides what a pair needs: a key list, nil for "all keys", or
// skip.
func (s *Syncer) keysFor(ctx context.Context, p scanner.Pair, opts Options, plan *Plan) (keys []string, skip bool, err error) {
	if plan != nil {
		for _, t := range plan.OutdatedFiles {
			if t == p.Target {
				return nil, false, nil
			}
		}
		keys = append(keys, plan.MissingKeysFiles[p.Target]...)
		keys = append(keys, plan.OutdatedKeysFiles[p.Target]...)
		return keys, len(keys) == 0, nil
	}

	tgtStat, statErr := os.Stat(filepath.Join(s.cfg.Root, p.Target))
	if os.IsNotExist(statErr) || opts.Force {
		return nil, false, nil
	}
	if statErr != nil {
		return nil, false, statErr
	}

	if opts.OnlyMissing {
		res, err := s.engine.CheckPair(ctx, p, s.cfg.SourceLanguage, diff.Options{CheckMissing: true})
		if err != nil {
			return nil, false, err
		}
		return res.MissingKeys, len(res.MissingKeys) == 0, nil
	}

	// Default pass: skip targets newer than their source.
	srcStat, err := os.Stat(filepath.Join(s.cfg.Root, p.Source))
	if err != nil {
		return nil, false, err
	}
	if tgtStat.ModTime().After(srcStat.ModTime()) {
		return nil, true, nil
	}
	return nil, false, nil
}

// pendingCount resolves how many keys a dry run would send.
func (s *Syncer) pendingCount(p scanner.Pair, keys []string) (int, error) {
	if keys != nil {
		return len(keys), nil
	}
	src, err := s.readPair(p.Source, s.cfg.SourceLanguage, true)
	if err != nil {
		return 0, err
	}
	return src.Map.Flatten().Len(), nil
}

// translatePair translates one file pair and writes the result. keys nil
// means every source key.
func (s *Syncer) translatePair(ctx context.Context, p scanner.Pair, keys []string, opts Options, sum *Summary) error {
	if s.driver == nil {
		return fmt.Errorf("no translation provider configured")
	}
	src, err := s.readPair(p.Source, s.cfg.SourceLanguage, true)
	if err != nil {
		return err
	}
	if keys == nil {
		keys = src.Map.Flatten().Keys()
	}
	if len(keys) == 0 {
		return nil
	}

	tgtPath := filepath.Join(s.cfg.Root, p.Target)
	var tgt *resource.File
	if _, err := os.Stat(tgtPath); err == nil {
		tgt, err = s.readPair(p.Target, p.Locale, false)
		if err != nil {
			return err
		}
	}

	var tgtMap *resource.Map
	if tgt != nil {
		tgtMap = tgt.Map
	}
	res, driveErr := s.driver.TranslateMissing(ctx, src.Map, tgtMap, keys, p.Locale, s.batchOptions(opts))

	for _, key := range res.Warnings {
		s.warnf("%s: suspicious translation length for %q", p.Target, key)
	}
	sum.KeysTranslated += len(res.Translated)
	sum.recordFailures(res.Failed)

	// Partial results are still worth writing, also on cancellation.
	if len(res.Translated) > 0 {
		if err := s.write(p.Target, p.Locale, src, tgt, res, opts); err != nil {
			return err
		}
	}
	return driveErr
}

// readPair reads one side of a pair through its handler, source-projected
// when asSource is set.
func (s *Syncer) readPair(rel, locale string, asSource bool) (*resource.File, error) {
	h, err := s.reg.ForPath(rel)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(s.cfg.Root, rel)
	if h.ReadLocale != nil {
		return h.ReadLocale(path, locale)
	}
	if asSource {
		return format.ReadSource(h, path)
	}
	return h.Read(path)
}

// write picks the writer per the in-place rules and persists the merged
// map.
func (s *Syncer) write(relTarget, locale string, src, tgt *resource.File, res *translator.Result, opts Options) error {
	h, err := s.reg.ForPath(relTarget)
	if err != nil {
		return err
	}
	path := filepath.Join(s.cfg.Root, relTarget)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	out := &resource.File{Map: res.Map}
	if tgt != nil {
		out.Original = tgt.Original
	} else {
		// A brand-new target borrows the source's parsed structure so
		// structured writers have something to inject into.
		out.Original = src.Original
	}
	// The borrowed structure still carries source-side identity: CSV
	// sheets must write the target column, XLIFF targets need source
	// texts for any unit they will append.
	csvfile.Retarget(out, locale)
	xliff.SeedSources(out, src)

	switch {
	case opts.Regenerate:
		return h.WriteFull(path, out)
	case !h.InPlace:
		s.infof("%s: no in-place writer for %s, regenerating file", relTarget, h.Name)
		return h.WriteFull(path, out)
	case tgt == nil:
		// Nothing to splice into yet.
		return h.WriteFull(path, out)
	default:
		return h.WriteInPlace(path, out, res.Translated)
	}
}

// ---------------------------------------------------------------------------
// Update and CI flows
// ---------------------------------------------------------------------------

// diffAll runs the diff engine over every pair of the selected locales.
func (s *Syncer) diffAll(ctx context.Context, opts Options, checks diff.Options) ([]*diff.Result, []error, error) {
	locales, err := s.locales(opts)
	if err != nil {
		return nil, nil, err
	}
	var results []*diff.Result
	var failures []error
	for _, locale := range locales {
		if ctx.Err() != nil {
			return results, failures, ctx.Err()
		}
		pairs, err := s.scan.Pairs(locale)
		if err != nil {
			return results, failures, err
		}
		res, errs := s.engine.CheckPairs(ctx, pairs, s.cfg.SourceLanguage, checks, s.cfg.MaxParallel)
		results = append(results, res...)
		failures = append(failures, errs...)
	}
	return results, failures, nil
}

// Update diffs every pair with all checks enabled, then translates
// exactly the findings.
func (s *Syncer) Update(ctx context.Context, opts Options) (*Summary, error) {
	results, failures, err := s.diffAll(ctx, opts, diff.Options{
		CheckMTime:       true,
		CheckMissing:     true,
		CheckGitOutdated: true,
	})
	if err != nil {
		return &Summary{}, err
	}
	for _, f := range failures {
		s.warnf("%v", f)
	}

	plan := &Plan{
		MissingKeysFiles:  make(map[string][]string),
		OutdatedKeysFiles: make(map[string][]string),
	}
	for _, res := range results {
		if res.MtimeOutdated && !res.TargetMissing &&
			len(res.MissingKeys) == 0 && len(res.OutdatedKeys) == 0 {
			// Mtime alone does not prove staleness when every value
			// matches; report it and move on.
			s.infof("%s: older than its source, but no key differs; leaving as is", res.Pair.Target)
		}
		plan.add(res.Pair.Target, res)
	}

	sum, err := s.Translate(ctx, opts, plan)
	sum.FilesFailed += len(failures)
	return sum, err
}

// Report is the outcome of a ci run.
type Report struct {
	Results []*diff.Result
	Errors  []error
}

// Clean reports whether nothing is missing or outdated anywhere.
func (r *Report) Clean() bool {
	if len(r.Errors) > 0 {
		return false
	}
	for _, res := range r.Results {
		if !res.Clean() {
			return false
		}
	}
	return true
}

// CI diffs every pair without ever calling the provider.
func (s *Syncer) CI(ctx context.Context, opts Options) (*Report, error) {
	results, failures, err := s.diffAll(ctx, opts, diff.Options{
		CheckMissing:     true,
		CheckGitOutdated: true,
	})
	if err != nil {
		return nil, err
	}
	return &Report{Results: results, Errors: failures}, nil
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// LocaleStats summarizes one locale's coverage.
type LocaleStats struct {
	Locale  string
	Files   int
	Keys    int
	Missing int
}

// Percent is the translated share, 100 for an empty key set.
func (st LocaleStats) Percent() float64 {
	if st.Keys == 0 {
		return 100
	}
	return 100 * float64(st.Keys-st.Missing) / float64(st.Keys)
}

// Stats computes per-locale coverage from missing-key diffs.
func (s *Syncer) Stats(ctx context.Context, opts Options) ([]LocaleStats, error) {
	locales, err := s.locales(opts)
	if err != nil {
		return nil, err
	}
	var out []LocaleStats
	for _, locale := range locales {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		pairs, err := s.scan.Pairs(locale)
		if err != nil {
			return nil, err
		}
		st := LocaleStats{Locale: locale, Files: len(pairs)}
		results, failures := s.engine.CheckPairs(ctx, pairs, s.cfg.SourceLanguage, diff.Options{CheckMissing: true}, s.cfg.MaxParallel)
		for _, f := range failures {
			s.warnf("%v", f)
		}
		for _, res := range results {
			src, err := s.readPair(res.Pair.Source, s.cfg.SourceLanguage, true)
			if err != nil {
				continue
			}
			st.Keys += src.Map.Flatten().Len()
			st.Missing += len(res.MissingKeys)
		}
		out = append(out, st)
	}
	return out, nil
}
