package fileinfo

import "net/url"

// Node is an opaque element handle owned by a Document implementation.
type Node any

// Document is the read-only view of a rendered page the resolvers need.
// A nil scope means the whole document.
type Document interface {
	URL() *url.URL
	QueryElement(selector string, scope Node) (Node, bool)
	QueryAll(selector string, scope Node) []Node
	Attribute(node Node, name string) (string, bool)
	Text(node Node) string
}
