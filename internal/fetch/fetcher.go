// Package fetch resolves probe references into local content. Local
// references resolve in place; remote repository references are downloaded
// once per run and cached by the exact reference string, so a run observes
// a consistent snapshot of remote content.
package fetch

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"medic/internal/logging"
)

// codeloadBase is the tarball download endpoint for GitHub repositories.
const codeloadBase = "https://codeload.github.com"

// Error reports a probe reference that could not be located: a missing
// local path, an unreachable remote, or an unknown revision.
type Error struct {
	Ref string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("fetch %s: %v", e.Ref, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Handle is materialized local content for one resolved reference.
type Handle struct {
	Path  string
	IsDir bool
}

// Fetcher resolves references and caches the results for one run.
// Safe for concurrent use: concurrent resolves of the same reference
// converge on a single underlying fetch.
type Fetcher struct {
	client  *http.Client
	baseURL string

	root     string // run-scoped staging directory for remote content
	rootOnce sync.Once
	rootErr  error

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]Handle

	log *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides the tarball endpoint. Used in tests.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) { f.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient overrides the HTTP client used for remote fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New returns a Fetcher with an empty cache.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: codeloadBase,
		cache:   make(map[string]Handle),
		log:     logging.New("fetch"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Close releases all staged remote content. Call it on every exit path.
func (f *Fetcher) Close() error {
	if f.root == "" {
		return nil
	}
	return os.RemoveAll(f.root)
}

// Resolve materializes the reference as local content. The result is cached
// by the exact reference string: a second resolve within the same run
// returns the cached handle without a new fetch.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (Handle, error) {
	f.mu.Lock()
	if h, ok := f.cache[raw]; ok {
		f.mu.Unlock()
		return h, nil
	}
	f.mu.Unlock()

	v, err, _ := f.group.Do(raw, func() (any, error) {
		h, err := f.resolve(ctx, raw)
		if err != nil {
			return Handle{}, err
		}
		f.mu.Lock()
		f.cache[raw] = h
		f.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return Handle{}, err
	}
	return v.(Handle), nil
}

func (f *Fetcher) resolve(ctx context.Context, raw string) (Handle, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return Handle{}, &Error{Ref: raw, Err: err}
	}

	switch ref.Scheme {
	case SchemeFile:
		return f.resolveLocal(ref)
	case SchemeGitHub:
		return f.resolveGitHub(ctx, ref)
	default:
		return Handle{}, &Error{Ref: raw, Err: fmt.Errorf("unsupported scheme %q", ref.Scheme)}
	}
}

func (f *Fetcher) resolveLocal(ref Ref) (Handle, error) {
	abs, err := filepath.Abs(ref.Path)
	if err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	return Handle{Path: abs, IsDir: info.IsDir()}, nil
}

func (f *Fetcher) resolveGitHub(ctx context.Context, ref Ref) (Handle, error) {
	if err := f.ensureRoot(); err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	dest := filepath.Join(f.root, sanitizeKey(ref.Raw))
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}

	url := fmt.Sprintf("%s/%s/%s/tar.gz/%s", f.baseURL, ref.Org, ref.Repo, ref.RefName)
	f.log.Debug("downloading repository tarball", "url", url, "subpath", ref.Path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Handle{}, &Error{Ref: ref.Raw, Err: fmt.Errorf(
			"%s/%s@%s: %s", ref.Org, ref.Repo, ref.RefName, resp.Status)}
	}

	h, err := extractSubPath(resp.Body, ref.Path, dest)
	if err != nil {
		return Handle{}, &Error{Ref: ref.Raw, Err: err}
	}
	return h, nil
}

func (f *Fetcher) ensureRoot() error {
	f.rootOnce.Do(func() {
		f.root, f.rootErr = os.MkdirTemp("", "medic-probes-")
	})
	return f.rootErr
}

// extractSubPath streams a gzipped repository tarball and writes out only
// the entries under subPath, rooted at dest. GitHub tarballs carry a single
// top-level directory which is stripped before matching.
func extractSubPath(r io.Reader, subPath, dest string) (Handle, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return Handle{}, fmt.Errorf("read tarball: %w", err)
	}
	defer gz.Close()

	var (
		tr      = tar.NewReader(gz)
		matched bool
		isDir   bool
		file    string
	)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Handle{}, fmt.Errorf("read tarball: %w", err)
		}

		rel := stripTopDir(hdr.Name)
		if rel == "" {
			continue
		}
		if err := checkEntryName(rel); err != nil {
			return Handle{}, err
		}

		switch {
		case subPath == "":
			// The reference points at the repository root.
			target := filepath.Join(dest, filepath.FromSlash(rel))
			switch hdr.Typeflag {
			case tar.TypeDir:
				if err := os.MkdirAll(target, 0o755); err != nil {
					return Handle{}, err
				}
			case tar.TypeReg:
				if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
					return Handle{}, err
				}
			}
			matched = true
			isDir = true
		case rel == subPath && hdr.Typeflag == tar.TypeReg:
			// The reference points at a single file.
			file = filepath.Join(dest, path.Base(subPath))
			if err := writeFile(file, tr, hdr.FileInfo().Mode()); err != nil {
				return Handle{}, err
			}
			matched = true
		case strings.HasPrefix(rel, subPath+"/"):
			inner := strings.TrimPrefix(rel, subPath+"/")
			target := filepath.Join(dest, filepath.FromSlash(inner))
			switch hdr.Typeflag {
			case tar.TypeDir:
				if err := os.MkdirAll(target, 0o755); err != nil {
					return Handle{}, err
				}
			case tar.TypeReg:
				if err := writeFile(target, tr, hdr.FileInfo().Mode()); err != nil {
					return Handle{}, err
				}
			}
			matched = true
			isDir = true
		}
	}

	if !matched {
		return Handle{}, fmt.Errorf("path %q not found in repository", subPath)
	}
	if isDir {
		return Handle{Path: dest, IsDir: true}, nil
	}
	return Handle{Path: file, IsDir: false}, nil
}

// stripTopDir removes the tarball's top-level "<repo>-<ref>/" prefix.
func stripTopDir(name string) string {
	name = path.Clean(strings.TrimPrefix(name, "./"))
	_, rest, found := strings.Cut(name, "/")
	if !found {
		return ""
	}
	return rest
}

func checkEntryName(rel string) error {
	if path.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, "../") || strings.Contains(rel, "/../") {
		return fmt.Errorf("unsafe path %q in tarball", rel)
	}
	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// sanitizeKey turns a reference string into a directory name.
func sanitizeKey(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
