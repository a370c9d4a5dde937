package fetch

import (
	"fmt"
	"strings"
)

// Scheme names a supported probe reference provider.
type Scheme string

const (
	SchemeFile   Scheme = "file"
	SchemeGitHub Scheme = "github"
)

// Ref is a parsed probe reference. Immutable once parsed.
//
// Supported forms:
//
//	some/local/path
//	file://some/local/path
//	github://<org>/<repo>//<sub-path>[@<ref>]
//
// Remote references use the double-slash notation to separate the repository
// from the sub-directory inside it, with an optional revision pin after "@".
type Ref struct {
	Raw     string
	Scheme  Scheme
	Path    string // local path (file scheme) or sub-path inside the repo
	Org     string
	Repo    string
	RefName string // branch or tag for remote refs, defaults to "main"
}

// ParseRef parses a raw probe reference string.
func ParseRef(raw string) (Ref, error) {
	scheme, rest, found := strings.Cut(raw, "://")
	if !found {
		// Bare strings are local filesystem paths.
		return Ref{Raw: raw, Scheme: SchemeFile, Path: raw}, nil
	}

	switch Scheme(scheme) {
	case SchemeFile:
		if rest == "" {
			return Ref{}, fmt.Errorf("empty path in reference %q", raw)
		}
		return Ref{Raw: raw, Scheme: SchemeFile, Path: rest}, nil
	case SchemeGitHub:
		return parseGitHubRef(raw, rest)
	default:
		return Ref{}, fmt.Errorf("unsupported scheme %q in reference %q", scheme, raw)
	}
}

func parseGitHubRef(raw, rest string) (Ref, error) {
	repoPart, subPath, found := strings.Cut(rest, "//")
	if !found {
		return Ref{}, fmt.Errorf(
			"invalid reference %q: use '//' to separate the repository from its sub-path", raw)
	}

	parts := strings.Split(strings.Trim(repoPart, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Ref{}, fmt.Errorf("invalid reference %q: expected <org>/<repo> before '//'", raw)
	}

	refName := "main"
	if subPath, refPart, pinned := strings.Cut(subPath, "@"); pinned {
		if refPart == "" {
			return Ref{}, fmt.Errorf("invalid reference %q: empty revision after '@'", raw)
		}
		return Ref{
			Raw:     raw,
			Scheme:  SchemeGitHub,
			Org:     parts[0],
			Repo:    parts[1],
			Path:    strings.Trim(subPath, "/"),
			RefName: refPart,
		}, nil
	}

	return Ref{
		Raw:     raw,
		Scheme:  SchemeGitHub,
		Org:     parts[0],
		Repo:    parts[1],
		Path:    strings.Trim(subPath, "/"),
		RefName: refName,
	}, nil
}
