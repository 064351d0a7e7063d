// Package multistatus reads and writes WebDAV multistatus bodies as used by
// CalDAV REPORT responses.
package multistatus

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/beevik/etree"
)

// Namespace definitions for CalDAV and WebDAV
const (
	// DAV is the WebDAV namespace
	DAV = "DAV:"
	// CalDAV is the CalDAV namespace
	CalDAV = "urn:ietf:params:xml:ns:caldav"
)

// Property names understood by REPORT responses.
const (
	PropGetETag        = "getetag"
	PropCalendarData   = "calendar-data"
	PropGetContentType = "getcontenttype"
)

var errEmptyDocument = errors.New("empty document")

// Prop is one property value. Namespace is the full namespace URI.
type Prop struct {
	Namespace string
	Name      string
	Value     string
}

// PropStat groups properties sharing one status.
type PropStat struct {
	Props  []Prop
	Status int
}

// Response describes one resource.
type Response struct {
	Href      string
	PropStats []PropStat
}

// Multistatus is a DAV:multistatus body.
type Multistatus struct {
	Responses []Response
}

// StatusLine renders code as an HTTP/1.1 status line.
func StatusLine(code int) string {
	return fmt.Sprintf("HTTP/1.1 %d %s", code, http.StatusText(code))
}

func prefix(namespace string) string {
	switch namespace {
	case CalDAV:
		return "C"
	default:
		return "D"
	}
}

// ToXML converts the multistatus into an XML document.
func (m *Multistatus) ToXML() *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement("D:multistatus")
	root.CreateAttr("xmlns:D", DAV)
	root.CreateAttr("xmlns:C", CalDAV)

	for _, resp := range m.Responses {
		response := root.CreateElement("D:response")
		response.CreateElement("D:href").SetText(resp.Href)

		for _, ps := range resp.PropStats {
			propstat := response.CreateElement("D:propstat")
			prop := propstat.CreateElement("D:prop")
			for _, p := range ps.Props {
				elem := prop.CreateElement(prefix(p.Namespace) + ":" + p.Name)
				if p.Value != "" {
					elem.SetText(p.Value)
				}
			}
			propstat.CreateElement("D:status").SetText(StatusLine(ps.Status))
		}
	}
	return doc
}

// WriteTo writes the indented XML document to w.
func (m *Multistatus) WriteTo(w io.Writer) (int64, error) {
	doc := m.ToXML()
	doc.Indent(2)
	return doc.WriteTo(w)
}

// Parse reads a multistatus body. Namespace prefixes are resolved so Prop
// namespaces carry full URIs.
func Parse(r io.Reader) (*Multistatus, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("multistatus: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errEmptyDocument
	}
	if root.Tag != "multistatus" || root.NamespaceURI() != DAV {
		return nil, fmt.Errorf("multistatus: invalid root tag %q", root.Tag)
	}

	m := &Multistatus{}
	for _, respElem := range root.SelectElements("response") {
		var resp Response
		if href := respElem.SelectElement("href"); href != nil {
			resp.Href = href.Text()
		}
		for _, psElem := range respElem.SelectElements("propstat") {
			var ps PropStat
			if propElem := psElem.SelectElement("prop"); propElem != nil {
				for _, child := range propElem.ChildElements() {
					ps.Props = append(ps.Props, Prop{
						Namespace: child.NamespaceURI(),
						Name:      child.Tag,
						Value:     child.Text(),
					})
				}
			}
			if status := psElem.SelectElement("status"); status != nil {
				ps.Status = parseStatus(status.Text())
			}
			resp.PropStats = append(resp.PropStats, ps)
		}
		m.Responses = append(m.Responses, resp)
	}
	return m, nil
}

func parseStatus(line string) int {
	var proto string
	var code int
	if _, err := fmt.Sscanf(line, "%s %d", &proto, &code); err != nil {
		return 0
	}
	return code
}

// Find returns the first property named name with a 200 status.
func (r Response) Find(name string) (Prop, bool) {
	for _, ps := range r.PropStats {
		if ps.Status != http.StatusOK {
			continue
		}
		for _, p := range ps.Props {
			if p.Name == name {
				return p, true
			}
		}
	}
	return Prop{}, false
}
