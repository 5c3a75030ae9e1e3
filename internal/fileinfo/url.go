package fileinfo

import (
	"net/url"
	"strings"
)

// ParseURL splits a code-host page URL of the form
// https://host/owner/repo/<page type>/<rest> into its repository parts.
func ParseURL(u *url.URL) (ParsedURL, error) {
	if u == nil || u.Host == "" {
		return ParsedURL{}, newError(KindInvalidURL, "url has no host")
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return ParsedURL{}, newError(KindInvalidURL, "url %s does not name a repository", u.String())
	}

	owner, repo := segments[0], strings.TrimSuffix(segments[1], ".git")
	parsed := ParsedURL{
		PageType:    PageOther,
		RawRepoName: u.Host + "/" + owner + "/" + repo,
	}
	if len(segments) < 3 {
		return parsed, nil
	}

	rest := segments[3:]
	switch PageType(segments[2]) {
	case PageBlob, PageTree:
		parsed.PageType = PageType(segments[2])
		parsed.RevisionAndFilePath = strings.Join(rest, "/")
	case PagePull:
		parsed.PageType = PagePull
		if len(rest) > 0 {
			parsed.PullRequest = rest[0]
		}
	case PageCommit:
		parsed.PageType = PageCommit
		if len(rest) > 0 {
			parsed.CommitID = rest[0]
		}
	case PageCompare:
		parsed.PageType = PageCompare
		parsed.CompareSpec = strings.Join(rest, "/")
	}
	return parsed, nil
}

// ParseRawURL parses a string URL and forwards to ParseURL. Relative
// references are resolved against base when base is non-nil.
func ParseRawURL(raw string, base *url.URL) (ParsedURL, *url.URL, error) {
	u, err := resolveHref(raw, base)
	if err != nil {
		return ParsedURL{}, nil, err
	}
	parsed, err := ParseURL(u)
	return parsed, u, err
}

func resolveHref(raw string, base *url.URL) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, newError(KindInvalidURL, "parse %q: %v", raw, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u, nil
}
