package generation_test

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/nano-editor/internal/generation"
)

var pixel = generation.EncodeDataURL([]byte{0x89, 'P', 'N', 'G'}, "image/png")

func TestDataURL(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantData string
		wantMIME string
		wantErr  bool
	}{
		{name: "png", in: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")), wantData: "abc", wantMIME: "image/png"},
		{name: "unpadded", in: "data:image/jpeg;base64,YWJjZA", wantData: "abcd", wantMIME: "image/jpeg"},
		{name: "no mime", in: "data:;base64,YQ==", wantData: "a", wantMIME: "application/octet-stream"},
		{name: "remote url", in: "https://example.com/a.png", wantErr: true},
		{name: "not base64", in: "data:text/plain,hello", wantErr: true},
		{name: "no comma", in: "data:image/png;base64", wantErr: true},
		{name: "garbage payload", in: "data:image/png;base64,!!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := generation.ParseDataURL(tt.in)
			if tt.wantErr {
				if !errors.Is(err, generation.ErrInvalidDataURL) {
					t.Fatalf("ParseDataURL() error = %v, want ErrInvalidDataURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataURL() error = %v", err)
			}
			if string(data) != tt.wantData || mime != tt.wantMIME {
				t.Errorf("ParseDataURL() = %q, %q, want %q, %q", data, mime, tt.wantData, tt.wantMIME)
			}
		})
	}

	enc := generation.EncodeDataURL([]byte("round"), "image/webp")
	data, mime, err := generation.ParseDataURL(enc)
	if err != nil || string(data) != "round" || mime != "image/webp" {
		t.Errorf("round trip = %q, %q, %v", data, mime, err)
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  generation.Request
		ok   bool
	}{
		{name: "valid", req: generation.Request{Primary: pixel, Prompt: "make it night", AspectRatio: "16:9"}, ok: true},
		{name: "references", req: generation.Request{Primary: pixel, References: []string{pixel}, Prompt: "blend"}, ok: true},
		{name: "empty prompt", req: generation.Request{Primary: pixel, Prompt: "  "}},
		{name: "remote primary", req: generation.Request{Primary: "https://x/y.png", Prompt: "p"}},
		{name: "bad reference", req: generation.Request{Primary: pixel, References: []string{"nope"}, Prompt: "p"}},
		{name: "bad ratio", req: generation.Request{Primary: pixel, Prompt: "p", AspectRatio: "7:3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, generation.ErrInvalidRequest) {
				t.Fatalf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestMock_EchoesPrimary(t *testing.T) {
	out, err := generation.Mock{}.Generate(context.Background(), generation.Request{Primary: pixel, Prompt: "anything"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != pixel {
		t.Errorf("Generate() = %q, want the primary image", out)
	}
}

// flaky fails the first n calls.
type flaky struct {
	n     int32
	calls atomic.Int32
	err   error
}

func (f *flaky) Generate(_ context.Context, req generation.Request) (string, error) {
	c := f.calls.Add(1)
	if c <= f.n {
		if f.err != nil {
			return "", f.err
		}
		return "", fmt.Errorf("upstream 503 on call %d", c)
	}
	return req.Primary, nil
}

var fast = retry.Strategy{Attempts: 3, Delay: time.Millisecond, Backoff: 2}

func TestRetrying(t *testing.T) {
	req := generation.Request{Primary: pixel, Prompt: "p"}

	t.Run("recovers on third attempt", func(t *testing.T) {
		f := &flaky{n: 2}
		out, err := generation.NewRetrying(f, fast).Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("Generate() error = %v", err)
		}
		if out != pixel || f.calls.Load() != 3 {
			t.Errorf("out = %q, calls = %d, want primary after 3 calls", out, f.calls.Load())
		}
	})

	t.Run("gives up after three attempts", func(t *testing.T) {
		f := &flaky{n: 10}
		_, err := generation.NewRetrying(f, fast).Generate(context.Background(), req)
		if err == nil {
			t.Fatal("Generate() error = nil, want failure")
		}
		if f.calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", f.calls.Load())
		}
	})

	t.Run("invalid request is not retried", func(t *testing.T) {
		f := &flaky{n: 10, err: fmt.Errorf("%w: bad", generation.ErrInvalidRequest)}
		_, err := generation.NewRetrying(f, fast).Generate(context.Background(), req)
		if !errors.Is(err, generation.ErrInvalidRequest) {
			t.Fatalf("Generate() error = %v, want ErrInvalidRequest", err)
		}
		if f.calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", f.calls.Load())
		}
	})

	t.Run("cancelled context stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		f := &flaky{}
		_, err := generation.NewRetrying(f, fast).Generate(ctx, req)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Generate() error = %v, want context.Canceled", err)
		}
		if f.calls.Load() != 0 {
			t.Errorf("calls = %d, want 0", f.calls.Load())
		}
	})
}

func TestGemini_Generate(t *testing.T) {
	want := []byte("generated-image")
	var body atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body.Store(string(b))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"here you go"},{"inlineData":{"mimeType":"image/png","data":%q}}]}}]}`,
			base64.StdEncoding.EncodeToString(want))
	}))
	defer srv.Close()

	g, err := generation.NewGemini(context.Background(), generation.GeminiOptions{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}

	out, err := g.Generate(context.Background(), generation.Request{Primary: pixel, Prompt: "add a moon", AspectRatio: "4:3"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if out != generation.EncodeDataURL(want, "image/png") {
		t.Errorf("Generate() = %q", out)
	}

	sent, _ := body.Load().(string)
	if !strings.Contains(sent, "add a moon") || !strings.Contains(sent, "Output aspect ratio: 4:3.") {
		t.Errorf("request body does not carry the prompt: %s", sent)
	}
}

func TestGemini_NoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"I cannot do that"}]}}]}`)
	}))
	defer srv.Close()

	g, err := generation.NewGemini(context.Background(), generation.GeminiOptions{APIKey: "test-key", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewGemini() error = %v", err)
	}

	_, err = g.Generate(context.Background(), generation.Request{Primary: pixel, Prompt: "p"})
	if !errors.Is(err, generation.ErrNoImage) {
		t.Fatalf("Generate() error = %v, want ErrNoImage", err)
	}
}
