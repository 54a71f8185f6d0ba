package track

import (
	"context"
	"time"
)

// UploadInfo is what the uploader probed once, up front.
type UploadInfo struct {
	FileName string
	// URL is the stable attachment link, empty when the upload has none.
	URL    string
	Length time.Duration
	Source Source
}

// UploadedFile is a user-supplied file whose source is known at construction.
type UploadedFile struct {
	requester
	info UploadInfo
}

func NewUploadedFile(info UploadInfo) *UploadedFile {
	if info.Length < 0 {
		info.Length = 0
	}
	return &UploadedFile{info: info}
}

func (u *UploadedFile) Kind() Kind              { return KindUpload }
func (u *UploadedFile) Title() string           { return u.info.FileName }
func (u *UploadedFile) URL() string             { return u.info.URL }
func (u *UploadedFile) Duration() time.Duration { return u.info.Length }
func (u *UploadedFile) IsLive() bool            { return false }
func (u *UploadedFile) Author() string          { return "Uploaded file" }
func (u *UploadedFile) CoverArtURL() string     { return "" }

// Resolve returns the probed source.
func (u *UploadedFile) Resolve(_ context.Context) (Source, error) {
	if u.info.Source.URL == "" {
		return Source{}, &ResolutionError{Title: u.info.FileName, Message: "upload has no playable source"}
	}
	src := u.info.Source
	if src.Title == "" {
		src.Title = u.info.FileName
	}
	return src, nil
}
