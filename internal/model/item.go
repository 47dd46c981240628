package model

// ItemKind tags an entry of a Box folder listing.
type ItemKind int

const (
	// ItemFolder is a sub-folder entry.
	ItemFolder ItemKind = iota

	// ItemFile is a downloadable file entry.
	ItemFile
)

// String returns the Box "type" value for the kind.
func (k ItemKind) String() string {
	switch k {
	case ItemFolder:
		return "folder"
	case ItemFile:
		return "file"
	default:
		return "unknown"
	}
}

// Item is one entry of a shared-folder listing page.
//
// Item is a tagged variant: Kind decides whether the entry is a folder or a
// file. FilesCount is only meaningful for folders. Use Folder() or File() to
// project the item into its concrete shape.
type Item struct {
	// Kind tells folders and files apart.
	Kind ItemKind

	// ID is the opaque Box identifier used to build listing and download URLs.
	ID string

	// Name is the display name shown in the Box UI.
	Name string

	// ParentFolderName is the display name of the containing folder, if Box sent one.
	ParentFolderName string

	// FilesCount is the number of files Box reports inside a folder.
	FilesCount int
}

// IsFolder reports whether the item is a folder.
func (i Item) IsFolder() bool {
	return i.Kind == ItemFolder
}

// IsFile reports whether the item is a file.
func (i Item) IsFile() bool {
	return i.Kind == ItemFile
}

// Folder projects the item into a Folder. The caller is expected to check
// IsFolder first.
func (i Item) Folder() Folder {
	return Folder{
		ID:               i.ID,
		Name:             i.Name,
		ParentFolderName: i.ParentFolderName,
		FilesCount:       i.FilesCount,
	}
}

// File projects the item into a File. The caller is expected to check
// IsFile first.
func (i Item) File() File {
	return File{
		ID:               i.ID,
		Name:             i.Name,
		ParentFolderName: i.ParentFolderName,
	}
}

// Folder is a Box folder: the root, a year, a state or a composite folder.
type Folder struct {
	ID               string
	Name             string
	ParentFolderName string
	FilesCount       int
}

// File is a Box file. Its size is unknown until it is downloaded.
type File struct {
	ID               string
	Name             string
	ParentFolderName string
}

// FolderListing is one parsed page of a folder's children.
//
// A listing is transient: it is rebuilt from every page fetch and never
// persisted.
type FolderListing struct {
	// PageIndex is the 1-based page number this listing was parsed from.
	PageIndex int

	// PageCount is the total number of pages Box reports for the folder.
	PageCount int

	// Items holds the folder and file entries in page order.
	Items []Item
}

// Folders returns the folder entries of the listing in their original order.
//
// The result is a new slice; Items is left untouched.
func (l *FolderListing) Folders() []Folder {
	folders := make([]Folder, 0, len(l.Items))
	for _, item := range l.Items {
		if item.IsFolder() {
			folders = append(folders, item.Folder())
		}
	}
	return folders
}

// Files returns the file entries of the listing in their original order.
//
// The result is a new slice; Items is left untouched.
func (l *FolderListing) Files() []File {
	files := make([]File, 0, len(l.Items))
	for _, item := range l.Items {
		if item.IsFile() {
			files = append(files, item.File())
		}
	}
	return files
}
