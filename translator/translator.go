// Package translator drives batched, parallel translation through an
// abstract provider.
//
// The Driver resolves keys to source strings, groups them into batches,
// fans the batches out over a bounded worker pool, and merges the results
// into a copy of the target map. Oversized batches split adaptively;
// transient provider failures retry with exponential backoff; permanent
// failures abort the job. The transport behind the provider is not this
// package's concern.
package translator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v4"

	"github.com/algebras-ai/algebras-cli/resource"
)

// ---------------------------------------------------------------------------
// Capability and errors
// ---------------------------------------------------------------------------

// BatchOptions tune one provider call.
type BatchOptions struct {
	// UISafe asks the provider to keep translations no longer than their
	// sources (best effort).
	UISafe bool
	// GlossaryID selects a provider-side glossary.
	GlossaryID string
	// CustomPrompt is forwarded verbatim.
	CustomPrompt string
	// NormalizeStrings asks the provider to strip escape artifacts.
	NormalizeStrings bool
}

// Translator is the external translation capability. Implementations must
// return exactly one translation per input, in input order.
type Translator interface {
	TranslateBatch(ctx context.Context, texts []string, targetLocale string, opts BatchOptions) ([]string, error)
}

// Func adapts a function to the Translator interface.
type Func func(ctx context.Context, texts []string, targetLocale string, opts BatchOptions) ([]string, error)

func (f Func) TranslateBatch(ctx context.Context, texts []string, targetLocale string, opts BatchOptions) ([]string, error) {
	return f(ctx, texts, targetLocale, opts)
}

// PayloadTooLargeError signals that a batch exceeded the provider's
// payload limit. The Driver reacts by splitting the batch.
type PayloadTooLargeError struct {
	Size int // number of strings in the rejected batch
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large (%d strings)", e.Size)
}

// TransientError wraps transport and rate-limit failures worth retrying.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient provider error: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps failures that retrying cannot fix, such as
// authentication or malformed requests.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent provider error: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// ---------------------------------------------------------------------------
// Provider registry
// ---------------------------------------------------------------------------

// Factory builds a Translator from credentials and a model identifier.
type Factory func(apiKey, model string) (Translator, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Factory)
)

// Register makes a provider available to NewProvider under name.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// NewProvider instantiates a registered provider by name.
func NewProvider(name, apiKey, model string) (Translator, error) {
	registryMu.Lock()
	f, ok := registry[name]
	var known []string
	for n := range registry {
		known = append(known, n)
	}
	registryMu.Unlock()

	if !ok {
		sort.Strings(known)
		return nil, fmt.Errorf("unknown provider %q (registered: %v)", name, known)
	}
	return f(apiKey, model)
}

// ---------------------------------------------------------------------------
// Driver
// ---------------------------------------------------------------------------

// maxAttempts bounds the retry loop for transient errors.
const maxAttempts = 3

// Driver batches keys and fans them out to the provider.
type Driver struct {
	provider    Translator
	batchSize   int
	maxParallel int
}

// NewDriver builds a driver. batchSize and maxParallel are clamped to at
// least 1.
func NewDriver(provider Translator, batchSize, maxParallel int) *Driver {
	if batchSize < 1 {
		batchSize = 1
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Driver{provider: provider, batchSize: batchSize, maxParallel: maxParallel}
}

// Result is the outcome of one job.
type Result struct {
	// Map is a copy of the target map with every translated value merged
	// in at its dot-path.
	Map *resource.Map
	// Translated lists the keys that received a new value, in input order.
	Translated []string
	// Failed lists keys that could not be translated: absent from the
	// source, or rejected even as a single-element batch.
	Failed []string
	// Warnings flags suspicious translations (extreme length ratio).
	Warnings []string
}

// TranslateMissing translates keys absent from the target and merges them
// into a copy of target. A nil target starts from an empty map.
func (d *Driver) TranslateMissing(ctx context.Context, source, target *resource.Map, keys []string, locale string, opts BatchOptions) (*Result, error) {
	return d.translate(ctx, source, target, keys, locale, opts)
}

// TranslateOutdated re-translates keys whose target value is stale. Same
// mechanics as TranslateMissing; the split exists for intent at call sites.
func (d *Driver) TranslateOutdated(ctx context.Context, source, target *resource.Map, keys []string, locale string, opts BatchOptions) (*Result, error) {
	return d.translate(ctx, source, target, keys, locale, opts)
}

type batchJob struct {
	index int
	keys  []string
	texts []string
}

type batchOutcome struct {
	translations []string // aligned with keys; empty string at failed indices
	failedIdx    map[int]bool
	err          error
}

func (d *Driver) translate(ctx context.Context, source, target *resource.Map, keys []string, locale string, opts BatchOptions) (*Result, error) {
	res := &Result{}
	if target != nil {
		res.Map = target.Clone()
	} else {
		res.Map = resource.NewMap()
	}

	flat := source.Flatten()
	var resolvedKeys, resolvedTexts []string
	for _, k := range keys {
		v, ok := flat.Get(k)
		if !ok {
			res.Failed = append(res.Failed, k)
			continue
		}
		resolvedKeys = append(resolvedKeys, k)
		resolvedTexts = append(resolvedTexts, v)
	}
	if len(resolvedKeys) == 0 {
		return res, nil
	}

	var jobs []batchJob
	for i := 0; i < len(resolvedKeys); i += d.batchSize {
		end := i + d.batchSize
		if end > len(resolvedKeys) {
			end = len(resolvedKeys)
		}
		jobs = append(jobs, batchJob{
			index: len(jobs),
			keys:  resolvedKeys[i:end],
			texts: resolvedTexts[i:end],
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]batchOutcome, len(jobs))
	sem := make(chan struct{}, d.maxParallel)
	var wg sync.WaitGroup
	for _, job := range jobs {
		if ctx.Err() != nil {
			// Drain: already-running batches finish, new ones do not start.
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(job batchJob) {
			defer wg.Done()
			defer func() { <-sem }()
			translations, failedIdx, err := d.runBatch(ctx, job.texts, locale, opts)
			outcomes[job.index] = batchOutcome{translations: translations, failedIdx: failedIdx, err: err}
			if err != nil {
				cancel()
			}
		}(job)
	}
	wg.Wait()

	var firstErr error
	for _, job := range jobs {
		out := outcomes[job.index]
		if out.err != nil {
			if firstErr == nil {
				firstErr = out.err
			}
			res.Failed = append(res.Failed, job.keys...)
			continue
		}
		if out.translations == nil {
			// Batch never ran (cancelled before dispatch).
			res.Failed = append(res.Failed, job.keys...)
			continue
		}
		for i, key := range job.keys {
			if out.failedIdx[i] {
				res.Failed = append(res.Failed, key)
				continue
			}
			res.Map.SetPath(key, out.translations[i])
			res.Translated = append(res.Translated, key)
			if suspiciousLength(job.texts[i], out.translations[i]) {
				res.Warnings = append(res.Warnings, key)
			}
		}
	}

	if firstErr != nil {
		return res, firstErr
	}
	if err := ctx.Err(); err != nil && len(res.Failed) > 0 {
		return res, err
	}
	return res, nil
}

// runBatch translates one batch, splitting recursively on payload-too-large.
// A single-element batch that still fails is reported through failedIdx
// without an error.
func (d *Driver) runBatch(ctx context.Context, texts []string, locale string, opts BatchOptions) ([]string, map[int]bool, error) {
	out, err := d.callWithRetry(ctx, texts, locale, opts)
	if err == nil {
		if len(out) != len(texts) {
			return nil, nil, &PermanentError{
				Err: fmt.Errorf("provider returned %d translations for %d strings", len(out), len(texts)),
			}
		}
		return out, nil, nil
	}

	var tooLarge *PayloadTooLargeError
	if !errors.As(err, &tooLarge) {
		return nil, nil, err
	}
	if len(texts) == 1 {
		return []string{""}, map[int]bool{0: true}, nil
	}

	mid := len(texts) / 2
	left, leftFailed, err := d.runBatch(ctx, texts[:mid], locale, opts)
	if err != nil {
		return nil, nil, err
	}
	right, rightFailed, err := d.runBatch(ctx, texts[mid:], locale, opts)
	if err != nil {
		return nil, nil, err
	}

	merged := append(left, right...)
	failed := make(map[int]bool, len(leftFailed)+len(rightFailed))
	for i := range leftFailed {
		failed[i] = true
	}
	for i := range rightFailed {
		failed[mid+i] = true
	}
	return merged, failed, nil
}

// callWithRetry retries transient errors with exponential backoff up to
// maxAttempts. All other errors pass through untouched.
func (d *Driver) callWithRetry(ctx context.Context, texts []string, locale string, opts BatchOptions) ([]string, error) {
	var out []string
	op := func() error {
		translated, err := d.provider.TranslateBatch(ctx, texts, locale, opts)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = translated
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxAttempts-1), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return out, nil
}

// suspiciousLength flags translations whose length diverges wildly from
// the source. Informational only.
func suspiciousLength(source, translated string) bool {
	if len(source) < 8 || len(translated) == 0 {
		return false
	}
	return len(translated) > 4*len(source) || len(source) > 4*len(translated)
}
