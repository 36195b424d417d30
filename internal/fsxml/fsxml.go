// Package fsxml models the XML documents the switch's mod_xml_curl consumes.
// Element and attribute names are part of the wire contract and are
// case-sensitive; do not rename them.
package fsxml

import (
	"encoding/xml"
	"fmt"
)

// Document is the top-level response for every xml_curl query.
type Document struct {
	XMLName  xml.Name  `xml:"document"`
	Type     string    `xml:"type,attr"`
	Sections []Section `xml:"section"`
}

// Section wraps one response section: "dialplan", "directory" or "result".
type Section struct {
	Name    string   `xml:"name,attr"`
	Context *Context `xml:"context,omitempty"`
	Domain  *Domain  `xml:"domain,omitempty"`
	Result  *Result  `xml:"result,omitempty"`
}

// Context is a dialplan context holding one or more extensions.
type Context struct {
	Name       string      `xml:"name,attr"`
	Extensions []Extension `xml:"extension"`
}

// Extension is a named group of conditions evaluated in order.
type Extension struct {
	Name       string      `xml:"name,attr"`
	Conditions []Condition `xml:"condition"`
}

// Condition matches a channel field against a regex and carries the actions
// executed on match. Break controls whether evaluation stops after a match.
type Condition struct {
	Field      string   `xml:"field,attr,omitempty"`
	Expression string   `xml:"expression,attr,omitempty"`
	Break      string   `xml:"break,attr,omitempty"`
	Actions    []Action `xml:"action"`
}

// Action is a single (application, data) instruction.
type Action struct {
	Application string `xml:"application,attr"`
	Data        string `xml:"data,attr,omitempty"`
}

// Domain is the directory response scope.
type Domain struct {
	Name  string `xml:"name,attr"`
	Users []User `xml:"user"`
}

// User is a directory user entry with auth params and channel variables.
type User struct {
	ID        string     `xml:"id,attr"`
	Params    []Param    `xml:"params>param"`
	Variables []Variable `xml:"variables>variable"`
}

// Param is a directory user parameter (password, a1-hash, dial-string).
type Param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Variable is a channel variable set for calls from this user.
type Variable struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Result is the static body of a "result" section, used for configuration
// queries this control plane does not serve.
type Result struct {
	Status string `xml:"status,attr"`
}

// NewDocument returns an empty document with the required type attribute.
func NewDocument() *Document {
	return &Document{Type: "freeswitch/xml"}
}

// NotFound returns the stock "not found" result document.
func NotFound() *Document {
	doc := NewDocument()
	doc.Sections = append(doc.Sections, Section{
		Name:   "result",
		Result: &Result{Status: "not found"},
	})
	return doc
}

// Marshal serializes the document with an XML declaration.
func (d *Document) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// Parse deserializes a document previously produced by Marshal.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling document: %w", err)
	}
	return &doc, nil
}
