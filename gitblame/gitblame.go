// Package gitblame resolves per-line last-modification timestamps through
// git blame, with a process-scoped cache.
//
// Lookups are batched: all uncached lines of a file are coalesced into
// consecutive -L ranges and resolved with a single git blame invocation.
// Anything that prevents blaming (no git binary, not a work tree, file not
// tracked) surfaces as ErrUnavailable so callers can degrade to "cannot
// determine" instead of failing the run.
package gitblame

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrUnavailable marks lookups that cannot be answered by git.
var ErrUnavailable = errors.New("git blame unavailable")

// Info is the last modification of one line.
type Info struct {
	Time   time.Time
	Author string
}

// Cache is a process-scoped blame cache. Safe for concurrent use; entries
// are append-only for the lifetime of the process.
type Cache struct {
	mu    sync.Mutex
	lines map[string]map[int]Info // path -> line -> info
	trees map[string]bool         // dir -> inside work tree
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		lines: make(map[string]map[int]Info),
		trees: make(map[string]bool),
	}
}

// InsideWorkTree reports whether dir belongs to a git work tree. The
// answer is cached per directory.
func (c *Cache) InsideWorkTree(ctx context.Context, dir string) bool {
	c.mu.Lock()
	if v, ok := c.trees[dir]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree")
	out, err := cmd.Output()
	inside := err == nil && strings.TrimSpace(string(out)) == "true"

	c.mu.Lock()
	c.trees[dir] = inside
	c.mu.Unlock()
	return inside
}

// Lines returns blame info for the requested line numbers of path. All
// uncached lines resolve with one git blame call. Missing lines in the
// result mean git had no answer for them.
func (c *Cache) Lines(ctx context.Context, path string, wanted []int) (map[int]Info, error) {
	result := make(map[int]Info, len(wanted))

	c.mu.Lock()
	cached := c.lines[path]
	var missing []int
	for _, n := range wanted {
		if info, ok := cached[n]; ok {
			result[n] = info
		} else {
			missing = append(missing, n)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := blame(ctx, path, coalesce(missing))
	if err != nil {
		return result, err
	}

	c.mu.Lock()
	if c.lines[path] == nil {
		c.lines[path] = make(map[int]Info)
	}
	for n, info := range fetched {
		c.lines[path][n] = info
	}
	c.mu.Unlock()

	for _, n := range missing {
		if info, ok := fetched[n]; ok {
			result[n] = info
		}
	}
	return result, nil
}

// lineRange is a closed interval of line numbers.
type lineRange struct{ from, to int }

// coalesce sorts line numbers and merges consecutive runs into ranges.
func coalesce(lines []int) []lineRange {
	sorted := append([]int(nil), lines...)
	sort.Ints(sorted)

	var ranges []lineRange
	for _, n := range sorted {
		if len(ranges) > 0 && n <= ranges[len(ranges)-1].to+1 {
			if n > ranges[len(ranges)-1].to {
				ranges[len(ranges)-1].to = n
			}
			continue
		}
		ranges = append(ranges, lineRange{from: n, to: n})
	}
	return ranges
}

// blame runs one git blame over the given ranges and parses the porcelain
// output into per-line info.
func blame(ctx context.Context, path string, ranges []lineRange) (map[int]Info, error) {
	dir := filepath.Dir(path)
	args := []string{"-C", dir, "blame", "--porcelain"}
	for _, r := range ranges {
		args = append(args, "-L", fmt.Sprintf("%d,%d", r.from, r.to))
	}
	args = append(args, "--", filepath.Base(path))

	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: git blame %s: %v", ErrUnavailable, path, err)
	}
	return parsePorcelain(out)
}

// parsePorcelain extracts (time, author) per final line number. Porcelain
// repeats commit metadata once per commit; later lines reference the same
// sha without it.
func parsePorcelain(out []byte) (map[int]Info, error) {
	result := make(map[int]Info)
	commits := make(map[string]Info)

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	scanner.Buffer(make([]byte, 0, 256*1024), 1024*1024)

	var sha string
	var line int
	for scanner.Scan() {
		text := scanner.Text()
		switch {
		case strings.HasPrefix(text, "\t"):
			// Content line closes the entry.
			if sha != "" {
				result[line] = commits[sha]
			}
		case strings.HasPrefix(text, "author "):
			info := commits[sha]
			info.Author = strings.TrimPrefix(text, "author ")
			commits[sha] = info
		case strings.HasPrefix(text, "author-time "):
			epoch, err := strconv.ParseInt(strings.TrimPrefix(text, "author-time "), 10, 64)
			if err == nil {
				info := commits[sha]
				info.Time = time.Unix(epoch, 0).UTC()
				commits[sha] = info
			}
		default:
			fields := strings.Fields(text)
			if len(fields) >= 3 && len(fields[0]) == 40 {
				if n, err := strconv.Atoi(fields[2]); err == nil {
					sha = fields[0]
					line = n
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: parsing blame output: %v", ErrUnavailable, err)
	}
	return result, nil
}
