package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"
	_ "golang.org/x/image/webp" // registers the webp decoder for image.Decode

	"github.com/aliskhannn/nano-editor/internal/adjust"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/model"
)

// maxSourceBytes caps remote and stored sources.
const maxSourceBytes = 64 << 20

var (
	ErrSourceUnavailable = errors.New("image source unavailable")
	// ErrForbiddenAddress is returned for remote sources that resolve to a
	// loopback, private, link-local or otherwise non-public address.
	ErrForbiddenAddress = errors.New("address is not public")
)

// fileStorage defines the interface for reading stored objects.
type fileStorage interface {
	Load(ctx context.Context, path string) (io.ReadCloser, error)
}

// Processor renders export jobs: it loads the source image, bakes the
// adjustments into its pixels, resizes and encodes the result.
type Processor struct {
	fileStorage fileStorage
	client      *http.Client // trusted hosts
	public      *http.Client // every other host, public addresses only
	trusted     map[string]bool
}

// New creates a new Processor. fs may be nil when sources are never storage paths.
// Remote sources are fetched from public addresses only, unless their host is
// one of trustedHosts (a host, host:port or URL).
func New(fs fileStorage, client *http.Client, trustedHosts ...string) *Processor {
	if client == nil {
		client = http.DefaultClient
	}

	trusted := make(map[string]bool, len(trustedHosts))
	for _, h := range trustedHosts {
		if h = hostname(h); h != "" {
			trusted[h] = true
		}
	}

	return &Processor{
		fileStorage: fs,
		client:      client,
		public:      publicClient(client),
		trusted:     trusted,
	}
}

// Render materializes one export job.
func (p *Processor) Render(ctx context.Context, job model.ExportJob, progress func(int)) (export.Output, error) {
	if progress == nil {
		progress = func(int) {}
	}

	f, ok := model.LookupFormat(job.Config.Format)
	if !ok {
		return export.Output{}, fmt.Errorf("%w: %q", export.ErrUnsupportedFormat, job.Config.Format)
	}
	if cs := strings.ToLower(job.Config.ColorSpace); cs != "" && cs != "srgb" {
		zlog.Logger.Warn().Str("job_id", job.ID.String()).Str("color_space", cs).Msg("only srgb output is supported, ignoring color space")
	}

	// Load the source image.
	data, err := p.Fetch(ctx, job.Source.URL)
	if err != nil {
		return export.Output{}, fmt.Errorf("failed to load source image: %w", err)
	}
	progress(10)

	// Decode into an image object.
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return export.Output{}, fmt.Errorf("failed to decode image: %w", err)
	}
	progress(25)
	if err := ctx.Err(); err != nil {
		return export.Output{}, err
	}

	baked := adjust.Bake(src, job.Adjustments)
	progress(60)
	if err := ctx.Err(); err != nil {
		return export.Output{}, err
	}

	out := Resize(baked, job.Config.Resize)
	progress(80)
	if err := ctx.Err(); err != nil {
		return export.Output{}, err
	}

	buf := new(bytes.Buffer)
	if err := Encode(buf, out, f, job.Config.Quality); err != nil {
		return export.Output{}, fmt.Errorf("failed to encode %s image: %w", f.Name, err)
	}
	progress(95)

	b := out.Bounds()
	return export.Output{
		Data:        buf.Bytes(),
		ContentType: f.ContentType,
		Extension:   f.Extension,
		Width:       b.Dx(),
		Height:      b.Dy(),
	}, nil
}

// Fetch returns the raw bytes behind an image URL: a base64 data URL, an
// http(s) URL, or a path in file storage.
func (p *Processor) Fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case src == "":
		return nil, fmt.Errorf("%w: empty url", ErrSourceUnavailable)

	case generation.IsDataURL(src):
		data, _, err := generation.ParseDataURL(src)
		return data, err

	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}

		client := p.public
		if p.trusted[strings.ToLower(u.Hostname())] {
			client = p.client
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: %s returned %s", ErrSourceUnavailable, u.Redacted(), resp.Status)
		}
		return readAll(resp.Body)

	default:
		if p.fileStorage == nil {
			return nil, fmt.Errorf("%w: no storage for path %q", ErrSourceUnavailable, src)
		}

		rc, err := p.fileStorage.Load(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		defer rc.Close()
		return readAll(rc)
	}
}

// publicClient copies base with a transport that dials public addresses only.
// The check runs on the resolved address, so redirects and DNS names pointing
// inside the network are refused too. Proxies are not used.
func publicClient(base *http.Client) *http.Client {
	tr, ok := base.Transport.(*http.Transport)
	if !ok || tr == nil {
		tr = http.DefaultTransport.(*http.Transport)
	}
	tr = tr.Clone()
	tr.Proxy = nil

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   publicOnly,
	}
	tr.DialContext = dialer.DialContext

	c := *base
	c.Transport = tr
	return &c
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}

	ip, err := netip.ParseAddr(host)
	if err != nil {
		return err
	}
	ip = ip.Unmap()

	if !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return fmt.Errorf("%w: %s", ErrForbiddenAddress, ip)
	}
	return nil
}

// hostname lowercases the host part of a host, host:port or URL.
func hostname(h string) string {
	if strings.Contains(h, "://") {
		u, err := url.Parse(h)
		if err != nil {
			return ""
		}
		return strings.ToLower(u.Hostname())
	}

	if host, _, err := net.SplitHostPort(h); err == nil {
		h = host
	}
	return strings.ToLower(strings.Trim(h, "[]"))
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("%w: source larger than %d bytes", ErrSourceUnavailable, maxSourceBytes)
	}
	return data, nil
}

// Resize applies an export resize mode.
func Resize(img image.Image, r model.Resize) *image.NRGBA {
	b := img.Bounds()

	switch r.Mode {
	case model.ResizeFit:
		if r.Width == 0 || r.Height == 0 {
			// One side given: scale to it, keeping the aspect ratio, never upscale.
			if (r.Width > 0 && r.Width >= b.Dx()) || (r.Height > 0 && r.Height >= b.Dy()) {
				return imaging.Clone(img)
			}
			return imaging.Resize(img, r.Width, r.Height, imaging.Lanczos)
		}
		return imaging.Fit(img, r.Width, r.Height, imaging.Lanczos)

	case model.ResizeFill:
		return imaging.Fill(img, r.Width, r.Height, imaging.Center, imaging.Lanczos)

	case model.ResizeExact:
		return imaging.Resize(img, r.Width, r.Height, imaging.Lanczos)

	case model.ResizePercent:
		w := int(math.Max(1, math.Round(float64(b.Dx())*r.Percent/100)))
		h := int(math.Max(1, math.Round(float64(b.Dy())*r.Percent/100)))
		return imaging.Resize(img, w, h, imaging.Lanczos)

	default:
		return imaging.Clone(img)
	}
}

// Encode writes img in format f. Formats without alpha are flattened onto white.
func Encode(w io.Writer, img *image.NRGBA, f model.Format, quality int) error {
	format, err := imaging.FormatFromExtension(f.Extension)
	if err != nil {
		return fmt.Errorf("%w: %s", export.ErrUnsupportedFormat, f.Name)
	}

	var opts []imaging.EncodeOption
	if format == imaging.JPEG {
		if quality <= 0 {
			quality = export.DefaultQuality
		}
		opts = append(opts, imaging.JPEGQuality(quality))
	}

	if format == imaging.JPEG || format == imaging.BMP {
		bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
		img = imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	}

	return imaging.Encode(w, img, format, opts...)
}
