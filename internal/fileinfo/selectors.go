package fileinfo

import "strings"

// Selectors are the CSS selectors used to find metadata in host markup.
// Zero fields fall back to GitHubSelectors via WithDefaults.
type Selectors struct {
	FilePath  string `toml:"file_path" json:"file_path,omitempty"`
	Permalink string `toml:"permalink" json:"permalink,omitempty"`

	DiffCodeView     string `toml:"diff_code_view" json:"diff_code_view,omitempty"`
	DiffFileHeader   string `toml:"diff_file_header" json:"diff_file_header,omitempty"`
	DiffFileInfoLink string `toml:"diff_file_info_link" json:"diff_file_info_link,omitempty"`
	DiffBaseOID      string `toml:"diff_base_oid" json:"diff_base_oid,omitempty"`
	DiffHeadOID      string `toml:"diff_head_oid" json:"diff_head_oid,omitempty"`
	DiffExpander     string `toml:"diff_expander" json:"diff_expander,omitempty"`

	SnippetCodeView   string `toml:"snippet_code_view" json:"snippet_code_view,omitempty"`
	SnippetCommitLink string `toml:"snippet_commit_link" json:"snippet_commit_link,omitempty"`
	SnippetPermalink  string `toml:"snippet_permalink" json:"snippet_permalink,omitempty"`
}

// GitHubSelectors matches github.com markup.
var GitHubSelectors = Selectors{
	FilePath:  "#blob-path",
	Permalink: "a.js-permalink-shortcut",

	DiffCodeView:     "div.file.js-details-container",
	DiffFileHeader:   ".file-header[data-path]",
	DiffFileInfoLink: ".file-info a",
	DiffBaseOID:      `input[name="comparison_start_oid"]`,
	DiffHeadOID:      `input[name="comparison_end_oid"]`,
	DiffExpander:     ".js-expand[data-url], .js-expand-full[data-url]",

	SnippetCodeView:   "div.border.rounded-1:has(.blob-wrapper-embedded)",
	SnippetCommitLink: "a.commit-tease-sha",
	SnippetPermalink:  "a:not(.commit-tease-sha)",
}

// WithDefaults fills empty selectors from GitHubSelectors.
func (s Selectors) WithDefaults() Selectors {
	def := GitHubSelectors
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Selectors{
		FilePath:          pick(s.FilePath, def.FilePath),
		Permalink:         pick(s.Permalink, def.Permalink),
		DiffCodeView:      pick(s.DiffCodeView, def.DiffCodeView),
		DiffFileHeader:    pick(s.DiffFileHeader, def.DiffFileHeader),
		DiffFileInfoLink:  pick(s.DiffFileInfoLink, def.DiffFileInfoLink),
		DiffBaseOID:       pick(s.DiffBaseOID, def.DiffBaseOID),
		DiffHeadOID:       pick(s.DiffHeadOID, def.DiffHeadOID),
		DiffExpander:      pick(s.DiffExpander, def.DiffExpander),
		SnippetCodeView:   pick(s.SnippetCodeView, def.SnippetCodeView),
		SnippetCommitLink: pick(s.SnippetCommitLink, def.SnippetCommitLink),
		SnippetPermalink:  pick(s.SnippetPermalink, def.SnippetPermalink),
	}
}

// Profiles maps a host name (lowercase, no port) to its selectors.
type Profiles map[string]Selectors

// ForHost returns the selectors registered for host, or GitHubSelectors.
func (p Profiles) ForHost(host string) Selectors {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	if sel, ok := p[host]; ok {
		return sel.WithDefaults()
	}
	return GitHubSelectors
}
