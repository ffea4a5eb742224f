package types

// Media is an uploaded asset recorded in the media registry. Path is the
// storage-relative location; the file itself lives outside the datastore.
type Media struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	MimeType  string `json:"mimetype"`
	Size      int64  `json:"size"`
	Width     *int64 `json:"width,omitempty"`
	Height    *int64 `json:"height,omitempty"`
	Alt       string `json:"alt,omitempty"`
	CreatedAt string `json:"createdAt"`
}
