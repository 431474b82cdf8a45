package export

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultFilenameTemplate is used when neither the job nor the queue sets one.
const DefaultFilenameTemplate = "{name}-{index}.{format}"

// FilenameFields are the values substituted into a filename template.
type FilenameFields struct {
	Name   string // source name; its extension is dropped
	Time   time.Time
	Format string // file extension
	Width  int
	Height int
	Preset string
	Index  int // 1-based position within the batch
}

// RenderFilename substitutes {name}, {date}, {time}, {format}, {width},
// {height}, {preset} and {index} in tmpl. {index} is zero-padded to three
// digits. Path separators and reserved characters are replaced by "_".
func RenderFilename(tmpl string, f FilenameFields) string {
	if tmpl == "" {
		tmpl = DefaultFilenameTemplate
	}

	name := strings.TrimSuffix(f.Name, filepath.Ext(f.Name))
	if name == "" {
		name = "image"
	}

	r := strings.NewReplacer(
		"{name}", name,
		"{date}", f.Time.Format("2006-01-02"),
		"{time}", f.Time.Format("15-04-05"),
		"{format}", f.Format,
		"{width}", strconv.Itoa(f.Width),
		"{height}", strconv.Itoa(f.Height),
		"{preset}", f.Preset,
		"{index}", fmt.Sprintf("%03d", f.Index),
	)

	return sanitize(r.Replace(tmpl))
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, name)
}
