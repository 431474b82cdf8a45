package export

import (
	"testing"
	"time"
)

func TestRenderFilename(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	tests := []struct {
		name   string
		tmpl   string
		fields FilenameFields
		want   string
	}{
		{
			name:   "index zero padded in a batch of ten",
			tmpl:   "{name}-{date}-{index}.{format}",
			fields: FilenameFields{Name: "portrait.png", Time: at, Format: "jpg", Index: 1},
			want:   "portrait-2024-03-09-001.jpg",
		},
		{
			name:   "every token",
			tmpl:   "{name}_{preset}_{width}x{height}_{date}_{time}_{index}.{format}",
			fields: FilenameFields{Name: "cat", Time: at, Format: "png", Width: 1920, Height: 1080, Preset: "web", Index: 12},
			want:   "cat_web_1920x1080_2024-03-09_14-05-07_012.png",
		},
		{
			name:   "default template",
			fields: FilenameFields{Name: "dog.jpeg", Format: "tif", Index: 3},
			want:   "dog-003.tif",
		},
		{
			name:   "missing name",
			tmpl:   "{name}.{format}",
			fields: FilenameFields{Format: "bmp"},
			want:   "image.bmp",
		},
		{
			name:   "separators are replaced",
			tmpl:   "{name}/{preset}.{format}",
			fields: FilenameFields{Name: "a:b", Preset: "x?y", Format: "gif"},
			want:   "a_b_x_y.gif",
		},
		{
			name:   "unknown tokens are kept",
			tmpl:   "{name}-{camera}",
			fields: FilenameFields{Name: "n"},
			want:   "n-{camera}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderFilename(tt.tmpl, tt.fields); got != tt.want {
				t.Errorf("RenderFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}
