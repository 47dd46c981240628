package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/handiism/naip-downloader/internal/model"
)

// SharedFolderKey is the namespaced key under which Box stores the folder
// listing inside postStreamData.
const SharedFolderKey = "/app-api/enduserapp/shared-folder"

// JSONID is a Box identifier. Box sends ids either as JSON numbers or as
// strings depending on the page; both decode to the same decimal string.
type JSONID string

// UnmarshalJSON accepts a JSON string or an integer.
func (id *JSONID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JSONID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("id must be an integer: %s", n)
	}
	*id = JSONID(n.String())
	return nil
}

// JSONItem is one entry of the shared-folder item list.
type JSONItem struct {
	Type             *string `json:"type"`
	ID               *JSONID `json:"id"`
	Name             *string `json:"name"`
	FilesCount       *int    `json:"filesCount"`
	ParentFolderName string  `json:"parentFolderName"`
}

// JSONSharedFolder is the value stored under SharedFolderKey.
type JSONSharedFolder struct {
	Items      *[]JSONItem `json:"items"`
	PageCount  *int        `json:"pageCount"`
	PageNumber *int        `json:"pageNumber"`
}

// JSONStreamData is the decoded Box.postStreamData object. Only the keys
// needed to build a listing are decoded.
type JSONStreamData struct {
	SharedFolder *JSONSharedFolder
	PageCount    *int
}

// UnmarshalJSON picks the namespaced shared-folder key out of the top-level object.
func (sd *JSONStreamData) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw[SharedFolderKey]; ok {
		var folder JSONSharedFolder
		if err := json.Unmarshal(v, &folder); err != nil {
			return fmt.Errorf("%s: %w", SharedFolderKey, err)
		}
		sd.SharedFolder = &folder
	}

	if v, ok := raw["pageCount"]; ok {
		var n int
		if err := json.Unmarshal(v, &n); err == nil {
			sd.PageCount = &n
		}
	}
	return nil
}

// ToListing converts the decoded payload into a model.FolderListing.
//
// Required fields are validated here: a missing shared-folder key, item
// list, or item type/id/name (and filesCount for folders) is a
// *model.ParseError. Items with a type other than "folder" or "file" are
// dropped.
//
// The page count falls back to the top-level pageCount and then to 1.
// PageIndex is left at 0 when Box does not report a page number.
func (sd *JSONStreamData) ToListing() (*model.FolderListing, error) {
	if sd.SharedFolder == nil {
		return nil, &model.ParseError{Reason: fmt.Sprintf("missing key %q", SharedFolderKey)}
	}
	folder := sd.SharedFolder
	if folder.Items == nil {
		return nil, &model.ParseError{Reason: "missing items"}
	}

	listing := &model.FolderListing{
		PageCount: 1,
		Items:     make([]model.Item, 0, len(*folder.Items)),
	}

	switch {
	case folder.PageCount != nil:
		listing.PageCount = *folder.PageCount
	case sd.PageCount != nil:
		listing.PageCount = *sd.PageCount
	}
	if listing.PageCount < 1 {
		listing.PageCount = 1
	}
	if folder.PageNumber != nil {
		listing.PageIndex = *folder.PageNumber
	}

	for i, ji := range *folder.Items {
		item, ok, err := ji.toItem()
		if err != nil {
			return nil, &model.ParseError{Reason: fmt.Sprintf("item %d", i), Err: err}
		}
		if ok {
			listing.Items = append(listing.Items, item)
		}
	}

	return listing, nil
}

// toItem validates the item. ok is false for item types that are neither
// folders nor files.
func (ji *JSONItem) toItem() (item model.Item, ok bool, err error) {
	if ji.Type == nil {
		return item, false, fmt.Errorf("missing type")
	}

	switch *ji.Type {
	case "folder":
		item.Kind = model.ItemFolder
	case "file":
		item.Kind = model.ItemFile
	default:
		return item, false, nil
	}

	if ji.ID == nil || *ji.ID == "" {
		return item, false, fmt.Errorf("%s: missing id", *ji.Type)
	}
	if ji.Name == nil {
		return item, false, fmt.Errorf("%s %s: missing name", *ji.Type, *ji.ID)
	}

	item.ID = string(*ji.ID)
	item.Name = *ji.Name
	item.ParentFolderName = ji.ParentFolderName

	if item.Kind == model.ItemFolder {
		if ji.FilesCount == nil {
			return item, false, fmt.Errorf("folder %s: missing filesCount", item.ID)
		}
		item.FilesCount = *ji.FilesCount
	}

	return item, true, nil
}
