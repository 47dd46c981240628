package box

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/handiism/naip-downloader/internal/box/dto"
	"github.com/handiism/naip-downloader/internal/model"
)

// streamDataMarker precedes the JSON literal in Box's inline script.
const streamDataMarker = "Box.postStreamData = "

// ParsePage extracts the folder listing embedded in a Box shared-folder page.
//
// Box server-renders the listing as a JavaScript assignment in the last
// script element of the page:
//
//	<script>Box.postStreamData = {"/app-api/enduserapp/shared-folder": {...}};</script>
//
// ParsePage takes the text after the marker up to the last ";" and decodes
// it. Returns a *model.ParseError if:
//   - The page has no script element
//   - The last script does not contain the assignment
//   - The payload is not valid JSON
//   - The shared-folder key or a required item field is missing
//
// An error from ParsePage means the page format changed. It is never
// turned into an empty listing.
func ParsePage(page []byte) (*model.FolderListing, error) {
	script, err := lastScript(page)
	if err != nil {
		return nil, err
	}

	_, payload, found := strings.Cut(script, streamDataMarker)
	if !found {
		return nil, &model.ParseError{Reason: "no Box.postStreamData assignment in last script"}
	}
	if i := strings.LastIndex(payload, ";"); i >= 0 {
		payload = payload[:i]
	}

	var data dto.JSONStreamData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, &model.ParseError{Reason: "invalid postStreamData JSON", Err: err}
	}

	return data.ToListing()
}

// lastScript returns the text of the last script element in the document.
func lastScript(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", &model.ParseError{Reason: "invalid HTML", Err: err}
	}

	var last *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			last = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if last == nil {
		return "", &model.ParseError{Reason: "no script element"}
	}

	var sb strings.Builder
	for c := last.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String(), nil
}
