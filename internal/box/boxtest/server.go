// Package boxtest provides an in-process fake of the Box shared-folder UI
// for tests.
package boxtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Vanity is the vanity name the fake server answers to.
const Vanity = "naip"

// Entry is one child of a fake folder.
type Entry struct {
	Type       string // "folder", "file" or anything else
	ID         string
	Name       string
	FilesCount int
	Body       []byte // file content
}

// Request records a request received by the server.
type Request struct {
	FolderID string // listing requests
	Page     int
	FileID   string // download requests
}

// Server is a fake Box host. Folders are paginated PageSize entries at a time.
type Server struct {
	*httptest.Server

	// PageSize is the number of entries per listing page. Zero means 100.
	PageSize int

	mu       sync.Mutex
	children map[string][]Entry
	files    map[string][]byte
	failures map[string]int
	requests []Request
}

// NewServer starts a fake Box server. Close it when done.
func NewServer() *Server {
	s := &Server{
		children: make(map[string][]Entry),
		files:    make(map[string][]byte),
		failures: make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v/"+Vanity+"/folder/", s.handleListing)
	mux.HandleFunc("/index.php", s.handleDownload)
	s.Server = httptest.NewServer(mux)
	return s
}

// AddFolder adds a sub-folder to parentID.
func (s *Server) AddFolder(parentID, id, name string, filesCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append(s.children[parentID], Entry{Type: "folder", ID: id, Name: name, FilesCount: filesCount})
}

// AddFile adds a downloadable file to parentID.
func (s *Server) AddFile(parentID, id, name string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append(s.children[parentID], Entry{Type: "file", ID: id, Name: name, Body: body})
	s.files[id] = body
}

// AddEntry adds a raw entry, e.g. a web link, to parentID.
func (s *Server) AddEntry(parentID string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children[parentID] = append(s.children[parentID], e)
}

// FailDownload makes the download of fileID answer with status.
func (s *Server) FailDownload(fileID string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[fileID] = status
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ListingPages returns the pages fetched for folderID, in request order.
func (s *Server) ListingPages(folderID string) []int {
	var pages []int
	for _, r := range s.Requests() {
		if r.FolderID == folderID {
			pages = append(pages, r.Page)
		}
	}
	return pages
}

// Downloads returns the ids of the files downloaded, in request order.
func (s *Server) Downloads() []string {
	var ids []string
	for _, r := range s.Requests() {
		if r.FileID != "" {
			ids = append(ids, r.FileID)
		}
	}
	return ids
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	folderID := strings.TrimPrefix(r.URL.Path, "/v/"+Vanity+"/folder/")
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{FolderID: folderID, Page: page})
	entries, ok := s.children[folderID]
	size := s.PageSize
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if size <= 0 {
		size = 100
	}

	pageCount := (len(entries) + size - 1) / size
	if pageCount == 0 {
		pageCount = 1
	}
	start := min((page-1)*size, len(entries))
	end := min(start+size, len(entries))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(RenderPage(entries[start:end], page, pageCount))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("rm") != "box_download_shared_file" || q.Get("vanity_name") != Vanity {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	fileID := strings.TrimPrefix(q.Get("file_id"), "f_")

	s.mu.Lock()
	s.requests = append(s.requests, Request{FileID: fileID})
	body, ok := s.files[fileID]
	status := s.failures[fileID]
	s.mu.Unlock()

	switch {
	case status != 0:
		w.WriteHeader(status)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}
}

// RenderPage renders a shared-folder page the way Box does: the listing is
// assigned to Box.postStreamData in the last script of the document.
// Numeric ids are rendered as JSON numbers.
func RenderPage(entries []Entry, page, pageCount int) []byte {
	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		item := map[string]any{
			"type": e.Type,
			"id":   renderID(e.ID),
			"name": e.Name,
		}
		if e.Type == "folder" {
			item["filesCount"] = e.FilesCount
		}
		items = append(items, item)
	}

	data := map[string]any{
		"/app-api/enduserapp/shared-folder": map[string]any{
			"items":      items,
			"pageCount":  pageCount,
			"pageNumber": page,
		},
	}
	payload, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}

	return []byte(fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<script src="/static/app.js"></script>
<script>window.Box = window.Box || {};</script>
</head>
<body>
<div id="app"></div>
<script>Box.postStreamData = %s;</script>
</body>
</html>`, payload))
}

func renderID(id string) any {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return json.Number(id)
	}
	return id
}
