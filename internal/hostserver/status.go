package hostserver

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/skip2/go-qrcode"
)

type statusData struct {
	Title       string
	Mode        string
	ConnectURL  string
	Connections int
	QRCode      string
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	connectURL, err := s.ConnectURL(r.Host)
	if err != nil {
		s.logger.Error("issue connect url", "err", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	qr, err := qrDataURL(connectURL)
	if err != nil {
		s.logger.Warn("render qr code", "err", err)
	}

	data := statusData{
		Title:       s.opts.Title,
		Mode:        s.opts.Mode,
		ConnectURL:  connectURL,
		Connections: s.Connections(),
		QRCode:      qr,
	}
	templ.Handler(statusPage(data)).ServeHTTP(w, r)
}

func qrDataURL(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("generate QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return "", fmt.Errorf("encode QR PNG: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func statusPage(d statusData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		e := templ.EscapeString[string]
		mode := d.Mode
		if mode == "" {
			mode = "unknown"
		}

		if _, err := fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>%s</title></head>
<body>
<main>
<h1>%s</h1>
<p>Host: <strong>%s</strong></p>
<p>Connected pages: <strong>%d</strong></p>
<p>Connect URL: <code id="connect-url">%s</code></p>
`, e(d.Title), e(d.Title), e(mode), d.Connections, e(d.ConnectURL)); err != nil {
			return err
		}

		if d.QRCode != "" {
			if _, err := fmt.Fprintf(w,
				`<img src="%s" width="256" height="256" alt="Connect QR code" />`+"\n",
				e(d.QRCode)); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, `<p><a href="/metrics">metrics</a></p>
</main>
</body>
</html>
`)
		return err
	})
}
