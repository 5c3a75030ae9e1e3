package fileinfo

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	commitHashPattern = regexp.MustCompile(`(?i)/([0-9a-f]{40})$`)
	commitIDPattern   = regexp.MustCompile(`(?i)^[0-9a-f]{40}$`)

	breadcrumbSeparator = regexp.MustCompile(`\s+/\s+|^/\s+|\s+/$`)
)

// Resolver turns a rendered code-host page into FileInfo values. It holds
// no page state; every call reads the Document it is given.
type Resolver struct {
	sel Selectors
}

// NewResolver returns a Resolver using sel, with empty selectors defaulted.
func NewResolver(sel Selectors) *Resolver {
	return &Resolver{sel: sel.WithDefaults()}
}

// Selectors returns the effective selectors.
func (r *Resolver) Selectors() Selectors {
	return r.sel
}

// ResolveFileInfo resolves a blob or tree page.
func (r *Resolver) ResolveFileInfo(doc Document) (FileInfo, error) {
	parsed, err := ParseURL(doc.URL())
	if err != nil {
		return FileInfo{}, err
	}
	if parsed.PageType != PageBlob && parsed.PageType != PageTree {
		return FileInfo{}, newError(KindUnsupportedPage, "current url does not match a blob or tree url: %s", doc.URL())
	}

	filePath, err := r.filePath(doc)
	if err != nil {
		return FileInfo{}, err
	}
	suffix := "/" + filePath
	if !strings.HasSuffix(parsed.RevisionAndFilePath, suffix) {
		return FileInfo{}, newError(KindInconsistentPath,
			"file path %s should be a suffix of %s", suffix, parsed.RevisionAndFilePath)
	}
	revision := strings.TrimSuffix(parsed.RevisionAndFilePath, suffix)
	if revision == "" {
		return FileInfo{}, newError(KindInconsistentPath, "no revision before file path in %s", parsed.RevisionAndFilePath)
	}

	commitID, err := r.commitIDFromPermalink(doc)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		RawRepoName: parsed.RawRepoName,
		FilePath:    filePath,
		CommitID:    commitID,
		Revision:    revision,
	}, nil
}

// ResolveDiffFileInfo resolves the single file diff rendered inside codeView.
func (r *Resolver) ResolveDiffFileInfo(doc Document, codeView Node) (FileInfo, error) {
	parsed, err := ParseURL(doc.URL())
	if err != nil {
		return FileInfo{}, err
	}

	headPath, basePath := r.diffFileNames(doc, codeView)
	if headPath == "" {
		return FileInfo{}, newError(KindMissingPath, "cannot determine file path of diff")
	}

	headCommitID, baseCommitID, ok := r.diffResolvedRevision(doc, codeView)
	if !ok {
		return FileInfo{}, newError(KindMissingRevision, "cannot determine diff revisions for %s", headPath)
	}

	return FileInfo{
		RawRepoName:     parsed.RawRepoName,
		FilePath:        headPath,
		CommitID:        headCommitID,
		Revision:        headCommitID,
		BaseRawRepoName: parsed.RawRepoName,
		BaseFilePath:    basePath,
		BaseCommitID:    baseCommitID,
		BaseRevision:    baseCommitID,
	}, nil
}

// ResolveSnippetFileInfo resolves an embedded snippet pinned to a commit.
// The permalink is the first non-commit anchor in DOM order.
func (r *Resolver) ResolveSnippetFileInfo(doc Document, codeView Node) (FileInfo, error) {
	commitLink, ok := doc.QueryElement(r.sel.SnippetCommitLink, codeView)
	if !ok {
		return FileInfo{}, newError(KindMissingCommitLink, "could not find commit link in snippet code view")
	}
	href, _ := doc.Attribute(commitLink, "href")
	commitURL, err := resolveHref(href, doc.URL())
	if err != nil {
		return FileInfo{}, newError(KindUnparsableCommitID, "could not parse snippet commit link href %q", href)
	}
	m := commitHashPattern.FindStringSubmatch(commitURL.String())
	if len(m) < 2 {
		return FileInfo{}, newError(KindUnparsableCommitID, "could not parse commit id from snippet commit link href: %s", commitURL)
	}
	commitID := m[1]

	var permalink Node
	for _, a := range doc.QueryAll(r.sel.SnippetPermalink, codeView) {
		if a != commitLink {
			permalink = a
			break
		}
	}
	if permalink == nil {
		return FileInfo{}, newError(KindNotABlobPermalink, "snippet code view has no permalink")
	}
	permalinkHref, _ := doc.Attribute(permalink, "href")
	parsed, permalinkURL, err := ParseRawURL(permalinkHref, doc.URL())
	if err != nil {
		return FileInfo{}, newError(KindNotABlobPermalink, "snippet permalink %q: %v", permalinkHref, err)
	}
	if parsed.PageType != PageBlob {
		return FileInfo{}, newError(KindNotABlobPermalink, "snippet url does not match a blob url: %s", permalinkURL)
	}

	prefix := commitID + "/"
	if !strings.HasPrefix(parsed.RevisionAndFilePath, prefix) {
		return FileInfo{}, newError(KindInconsistentSnippetPath,
			"revision and file path %s does not start with commit id %s", parsed.RevisionAndFilePath, commitID)
	}

	return FileInfo{
		RawRepoName: parsed.RawRepoName,
		FilePath:    strings.TrimPrefix(parsed.RevisionAndFilePath, prefix),
		CommitID:    commitID,
		Revision:    commitID,
	}, nil
}

// filePath reads the file-path widget. Breadcrumb spacing around
// separators is collapsed and the leading slash dropped. Spaces inside
// segment names are kept.
func (r *Resolver) filePath(doc Document) (string, error) {
	node, ok := doc.QueryElement(r.sel.FilePath, nil)
	if !ok {
		return "", newError(KindMissingPath, "file path element %q not found", r.sel.FilePath)
	}
	text := breadcrumbSeparator.ReplaceAllString(strings.TrimSpace(doc.Text(node)), "/")
	parts := strings.Split(text, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "", newError(KindMissingPath, "file path element %q is empty", r.sel.FilePath)
	}
	return strings.Join(kept, "/"), nil
}

// commitIDFromPermalink reads /owner/repo/blob/<commit>/... from the permalink.
func (r *Resolver) commitIDFromPermalink(doc Document) (string, error) {
	node, ok := doc.QueryElement(r.sel.Permalink, nil)
	if !ok {
		return "", newError(KindMissingPermalink, "permalink element %q not found", r.sel.Permalink)
	}
	href, _ := doc.Attribute(node, "href")
	parsed, u, err := ParseRawURL(href, doc.URL())
	if err != nil {
		return "", newError(KindMissingPermalink, "permalink %q: %v", href, err)
	}
	if parsed.PageType != PageBlob && parsed.PageType != PageTree {
		return "", newError(KindMissingPermalink, "permalink is not a blob or tree url: %s", u)
	}
	commitID, _, _ := strings.Cut(parsed.RevisionAndFilePath, "/")
	if !commitIDPattern.MatchString(commitID) {
		return "", newError(KindMissingPermalink, "permalink does not pin a commit: %s", u)
	}
	return commitID, nil
}

// diffFileNames prefers the file-info link, which carries "old → new" on
// renames, and falls back to the header's data-path.
func (r *Resolver) diffFileNames(doc Document, codeView Node) (head, base string) {
	if link, ok := doc.QueryElement(r.sel.DiffFileInfoLink, codeView); ok {
		text, _ := doc.Attribute(link, "title")
		if strings.TrimSpace(text) == "" {
			text = doc.Text(link)
		}
		if before, after, found := strings.Cut(text, "→"); found {
			head, base = strings.TrimSpace(after), strings.TrimSpace(before)
		} else {
			head = strings.TrimSpace(text)
		}
	}
	if head == "" {
		if header, ok := doc.QueryElement(r.sel.DiffFileHeader, codeView); ok {
			p, _ := doc.Attribute(header, "data-path")
			head = strings.TrimSpace(p)
		}
	}
	head = strings.TrimPrefix(head, "/")
	base = strings.TrimPrefix(base, "/")
	if base == "" {
		base = head
	}
	return head, base
}

func (r *Resolver) diffResolvedRevision(doc Document, codeView Node) (head, base string, ok bool) {
	baseInput, baseOK := doc.QueryElement(r.sel.DiffBaseOID, codeView)
	headInput, headOK := doc.QueryElement(r.sel.DiffHeadOID, codeView)
	if baseOK && headOK {
		base, _ = doc.Attribute(baseInput, "value")
		head, _ = doc.Attribute(headInput, "value")
		if base = strings.TrimSpace(base); base != "" {
			if head = strings.TrimSpace(head); head != "" {
				return head, base, true
			}
		}
	}

	for _, expander := range doc.QueryAll(r.sel.DiffExpander, codeView) {
		raw, _ := doc.Attribute(expander, "data-url")
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		q := u.Query()
		base, head = strings.TrimSpace(q.Get("base_sha")), strings.TrimSpace(q.Get("head_sha"))
		if base != "" && head != "" {
			return head, base, true
		}
	}
	return "", "", false
}

// CodeViewKind selects which code views CodeViews returns.
type CodeViewKind string

const (
	CodeViewDiff    CodeViewKind = "diff"
	CodeViewSnippet CodeViewKind = "snippet"
)

// CodeViews returns the diff or snippet subtrees of doc in DOM order.
func (r *Resolver) CodeViews(doc Document, kind CodeViewKind) []Node {
	switch kind {
	case CodeViewDiff:
		return doc.QueryAll(r.sel.DiffCodeView, nil)
	case CodeViewSnippet:
		return doc.QueryAll(r.sel.SnippetCodeView, nil)
	}
	return nil
}
