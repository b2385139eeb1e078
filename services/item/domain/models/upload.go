package models

// UploadRecord describes an image stored for an item. FileName is the
// generated storage name; OriginalName is what the client sent.
type UploadRecord struct {
	FileName     string
	OriginalName string
	ContentType  string
	Size         int64
	PublicPath   string
}

// AttachUpload records the upload on the item. The image field is set to the
// public path only when the caller did not provide one.
func (i Item) AttachUpload(u UploadRecord) {
	i[FieldUpload] = map[string]any{
		"file_name":     u.FileName,
		"original_name": u.OriginalName,
		"content_type":  u.ContentType,
		"size":          u.Size,
	}
	if _, ok := i[FieldImage]; !ok && u.PublicPath != "" {
		i[FieldImage] = u.PublicPath
	}
}

// UploadFileName returns the stored file name recorded on the item, if any.
func (i Item) UploadFileName() string {
	switch up := i[FieldUpload].(type) {
	case map[string]any:
		name, _ := up["file_name"].(string)
		return name
	default:
		return ""
	}
}
