package email

import (
	"strings"
	"testing"
	"time"
)

func TestRenderOTP(t *testing.T) {
	msg, err := RenderOTP("user@example.com", "Ana", "123456", 10*time.Minute)
	if err != nil {
		t.Fatalf("render otp: %v", err)
	}
	if msg.To != "user@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "123456") {
		t.Fatalf("expected code in subject, got %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, "Hi Ana") || !strings.Contains(msg.Text, "expire in 10 minutes") {
		t.Fatalf("unexpected text body: %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, ">123456<") {
		t.Fatalf("expected code in html body")
	}
}

func TestRenderOTP_DefaultName(t *testing.T) {
	msg, err := RenderOTP("user@example.com", "  ", "000111", 10*time.Minute)
	if err != nil {
		t.Fatalf("render otp: %v", err)
	}
	if !strings.HasPrefix(msg.Text, "Hi there,") {
		t.Fatalf("expected fallback greeting, got %q", msg.Text)
	}
}

func TestRenderLoginVerified_EscapesHTML(t *testing.T) {
	when := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	msg, err := RenderLoginVerified("user@example.com", "<b>Eve</b>", LoginMeta{
		IP:        "10.0.0.1",
		UserAgent: "<script>alert(1)</script>",
		When:      when,
	})
	if err != nil {
		t.Fatalf("render login: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") || strings.Contains(msg.HTML, "<b>Eve</b>") {
		t.Fatalf("expected user input to be escaped in html: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "IP: 10.0.0.1") {
		t.Fatalf("expected ip in text body: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, when.Format(time.RFC1123)) {
		t.Fatalf("expected timestamp in text body: %q", msg.Text)
	}
}

func TestRenderLoginVerified_UnknownMeta(t *testing.T) {
	msg, err := RenderLoginVerified("user@example.com", "Ana", LoginMeta{})
	if err != nil {
		t.Fatalf("render login: %v", err)
	}
	if !strings.Contains(msg.Text, "IP: unknown") || !strings.Contains(msg.Text, "Device: unknown") {
		t.Fatalf("expected unknown placeholders: %q", msg.Text)
	}
}

func TestBuildMessage(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		raw, err := buildMessage("no-reply@shop.local", "Shop", Message{
			To:      "user@example.com",
			Subject: "Hello",
			Text:    "body",
		})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		s := string(raw)
		if !strings.Contains(s, "From: Shop <no-reply@shop.local>\r\n") {
			t.Fatalf("unexpected from header: %q", s)
		}
		if !strings.Contains(s, "text/plain") || !strings.HasSuffix(s, "\r\n\r\nbody") {
			t.Fatalf("unexpected plain message: %q", s)
		}
	})

	t.Run("multipart", func(t *testing.T) {
		raw, err := buildMessage("no-reply@shop.local", "", Message{
			To:      "user@example.com",
			Subject: "Hello",
			Text:    "body",
			HTML:    "<p>body</p>",
		})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		s := string(raw)
		if !strings.Contains(s, "From: no-reply@shop.local\r\n") {
			t.Fatalf("unexpected from header: %q", s)
		}
		if !strings.Contains(s, "multipart/alternative") || !strings.Contains(s, "text/html") {
			t.Fatalf("expected multipart message: %q", s)
		}
	})
}
