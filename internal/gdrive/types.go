package gdrive

import (
	"strconv"
	"time"
)

// File is one Drive item with its wire fields parsed.
type File struct {
	ID         string
	Name       string
	IsFolder   bool
	ModifiedAt time.Time
	Size       int64
	MD5        string
	Trashed    bool
}

// driveFile mirrors the Drive v3 file resource. Size arrives as a decimal
// string and is absent for folders.
type driveFile struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         string `json:"size"`
	ModifiedTime string `json:"modifiedTime"`
	Md5Checksum  string `json:"md5Checksum"`
	Trashed      bool   `json:"trashed"`
}

type fileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveFile `json:"files"`
}

func (f *driveFile) toFile() *File {
	out := &File{
		ID:       f.ID,
		Name:     f.Name,
		IsFolder: f.MimeType == folderMime,
		MD5:      f.Md5Checksum,
		Trashed:  f.Trashed,
	}
	if f.Size != "" {
		if size, err := strconv.ParseInt(f.Size, 10, 64); err == nil {
			out.Size = size
		}
	}
	if f.ModifiedTime != "" {
		if ts, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
			out.ModifiedAt = ts
		}
	}
	return out
}
