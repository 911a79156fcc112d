package delivery

import (
	"strings"
	"testing"
	"time"

	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/policy"
)

func testRenderer() *Renderer {
	return NewRenderer(Brand{
		FrontendURL:  "https://kfimusic.com",
		InstagramURL: "https://instagram.com/kfimusic",
		LogoURL:      "https://kfimusic.com/logo.png",
		SupportEmail: "info@kfimusic.com",
	}, policy.Default())
}

func TestRenderer_Render(t *testing.T) {
	out, err := testRenderer().Render(DownloadEmail{
		ProductName: "Lucid",
		Expiry:      24 * time.Hour,
		Files: []models.DeliverableFile{
			{Name: "Lucid.wav", URL: "https://cdn/lucid.wav?token=a"},
			{Name: "Lucid.mp3", URL: "https://cdn/lucid.mp3?token=b"},
			{Name: "stems.zip", URL: "https://cdn/stems.zip?token=c"},
		},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if out.Subject != "Your download: Lucid" {
		t.Fatalf("subject = %q", out.Subject)
	}
	if len(out.Files) != 2 || out.Files[0].Name != "stems.zip" || out.Files[1].Name != "Lucid.wav" {
		t.Fatalf("unexpected files: %+v", out.Files)
	}

	stems := strings.Index(out.Text, "https://cdn/stems.zip?token=c")
	wav := strings.Index(out.Text, "https://cdn/lucid.wav?token=a")
	if stems < 0 || wav < 0 || stems > wav {
		t.Fatalf("text body missing ordered links:\n%s", out.Text)
	}
	if strings.Contains(out.Text, "mp3") || strings.Contains(out.HTML, "mp3") {
		t.Fatalf("preview file leaked into email")
	}
	for _, want := range []string{"Links expire in about 24 hours.", "Download stems.zip", "Download Lucid.wav"} {
		if !strings.Contains(out.Text, want) {
			t.Fatalf("text body missing %q:\n%s", want, out.Text)
		}
	}
	if strings.Contains(out.Text, "<a ") || strings.Contains(out.Text, "<td") {
		t.Fatalf("markup leaked into text body:\n%s", out.Text)
	}

	for _, want := range []string{
		"Download stems.zip",
		"Download Lucid.wav",
		"https://kfimusic.com/store",
		"https://kfimusic.com/logo.png",
		"mailto:info@kfimusic.com",
		"https://instagram.com/kfimusic",
	} {
		if !strings.Contains(out.HTML, want) {
			t.Fatalf("HTML body missing %q", want)
		}
	}
}

func TestRenderer_SingularHour(t *testing.T) {
	out, err := testRenderer().Render(DownloadEmail{ProductName: "Lucid", Expiry: time.Hour})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.Text, "about 1 hour.") {
		t.Fatalf("expected singular hour:\n%s", out.Text)
	}
}

func TestRenderer_SanitizesDisplayName(t *testing.T) {
	r := testRenderer()

	out, err := r.Render(DownloadEmail{ProductName: `<script>alert(1)</script>Night <b>Drive</b>`})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Subject != "Your download: Night Drive" {
		t.Fatalf("subject = %q", out.Subject)
	}
	if strings.Contains(out.HTML, "<script>") || strings.Contains(out.HTML, "<b>Drive") {
		t.Fatalf("markup leaked into HTML body")
	}

	out, err = r.Render(DownloadEmail{ProductName: "   "})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Subject != "Your download: Your Beat" {
		t.Fatalf("subject = %q", out.Subject)
	}
}
