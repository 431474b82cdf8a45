package model

import "strings"

// Format describes an export encoding.
type Format struct {
	Name        string `json:"name"`
	Extension   string `json:"extension"`
	ContentType string `json:"content_type"`
	Lossy       bool   `json:"lossy"`
}

// Formats lists the supported export encodings by name.
var Formats = map[string]Format{
	"jpeg": {Name: "jpeg", Extension: "jpg", ContentType: "image/jpeg", Lossy: true},
	"png":  {Name: "png", Extension: "png", ContentType: "image/png"},
	"gif":  {Name: "gif", Extension: "gif", ContentType: "image/gif"},
	"tiff": {Name: "tiff", Extension: "tif", ContentType: "image/tiff"},
	"bmp":  {Name: "bmp", Extension: "bmp", ContentType: "image/bmp"},
}

// LookupFormat resolves a format name or common alias ("jpg", "tif").
func LookupFormat(name string) (Format, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "jpg":
		name = "jpeg"
	case "tif":
		name = "tiff"
	}

	f, ok := Formats[name]
	return f, ok
}
