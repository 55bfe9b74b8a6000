package assistant

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/text" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["text"] != "how often?" || body["room_id"] != "3" {
			t.Errorf("body = %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"reply": "Once a week."})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, Timeouts{})
	got, err := c.SendText(context.Background(), "how often?", "3")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Once a week." {
		t.Errorf("reply = %q, want %q", got, "Once a week.")
	}
}

func TestSendTextOmitsEmptyRoom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if strings.Contains(string(raw), "room_id") {
			t.Errorf("body = %s", raw)
		}
		_, _ = w.Write([]byte(`{"reply":"ok"}`))
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL+"/", Timeouts{}).SendText(context.Background(), "hi", ""); err != nil {
		t.Fatal(err)
	}
}

func TestSendImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/image" {
			t.Errorf("path = %s", r.URL.Path)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "leaf.png" || string(data) != "pixels" {
			t.Errorf("upload = %s %q", hdr.Filename, data)
		}
		_, _ = w.Write([]byte(`{"ok":true,"result":{"label":"rust","confidence":0.91}}`))
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL, Timeouts{}).SendImage(context.Background(), "leaf.png", strings.NewReader("pixels"))
	if err != nil {
		t.Fatal(err)
	}
	if res == nil || res.Label != "rust" || res.Confidence != 0.91 {
		t.Errorf("result = %+v", res)
	}
}

func TestSendImageNullResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":null}`))
	}))
	defer srv.Close()

	res, err := NewHTTPClient(srv.URL, Timeouts{}).SendImage(context.Background(), "a.png", strings.NewReader("x"))
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Errorf("result = %+v, want nil", res)
	}
}

func TestNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL, Timeouts{}).SendText(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewHTTPClient(srv.URL, Timeouts{Read: 50 * time.Millisecond})
	start := time.Now()
	if _, err := c.SendText(context.Background(), "hi", ""); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestOfflineRules(t *testing.T) {
	cases := map[string]string{
		"When should I WATER my fern?": "Watering tip",
		"Is direct sun ok?":            "Light tip",
		"which fertilizer":             "Fertilizer tip",
		"hello":                        "Ask me about plant care",
	}
	for in, prefix := range cases {
		got, err := Offline{}.SendText(context.Background(), in, "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, prefix) {
			t.Errorf("SendText(%q) = %q, want prefix %q", in, got, prefix)
		}
	}
	res, _ := Offline{}.SendImage(context.Background(), "a.png", strings.NewReader("x"))
	if res.Label != HealthyLabel {
		t.Errorf("label = %q", res.Label)
	}
}

func TestCareGuideFind(t *testing.T) {
	g := LoadCareGuide()
	if len(g.Entries()) == 0 {
		t.Fatal("embedded guide is empty")
	}
	d, ok := g.Find("  Powdery_Mildew ")
	if !ok || d.Name != "Powdery mildew" {
		t.Errorf("by label = %+v %v", d, ok)
	}
	if _, ok := g.Find("root rot"); !ok {
		t.Error("lookup by name should match")
	}
	if _, ok := g.Find("unknown_blight"); ok {
		t.Error("unknown label should not match")
	}
}
