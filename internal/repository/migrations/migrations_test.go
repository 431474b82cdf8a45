package migrations

import (
	"io"
	"strings"
	"testing"
)

func TestSource_EmbedsImagesTable(t *testing.T) {
	src, err := Source()
	if err != nil {
		t.Fatalf("Source() failed: %v", err)
	}
	defer src.Close()

	latest, err := Latest(src)
	if err != nil {
		t.Fatalf("Latest() failed: %v", err)
	}
	if latest != 1 {
		t.Errorf("Latest() = %d, want 1", latest)
	}

	up, _, err := src.ReadUp(1)
	if err != nil {
		t.Fatalf("ReadUp(1) failed: %v", err)
	}
	defer up.Close()

	body, err := io.ReadAll(up)
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	if !strings.Contains(string(body), "CREATE TABLE") || !strings.Contains(string(body), "images") {
		t.Errorf("up migration does not create the images table:\n%s", body)
	}

	down, _, err := src.ReadDown(1)
	if err != nil {
		t.Fatalf("ReadDown(1) failed: %v", err)
	}
	down.Close()
}
