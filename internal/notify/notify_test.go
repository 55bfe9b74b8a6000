package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/starford/plantbutler/internal/alarm"
	"github.com/starford/plantbutler/internal/testutil"
)

type memSink struct {
	mu  sync.Mutex
	got []Notification
	err error
}

func (m *memSink) Send(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, n)
	return m.err
}

func TestEnsureChannelIdempotent(t *testing.T) {
	d := NewDispatcher(testutil.Logger())
	first := d.EnsureChannel(Channel{ID: "care", Name: "Care"})
	again := d.EnsureChannel(Channel{ID: "care", Name: "Renamed", Importance: ImportanceHigh})
	if again != first {
		t.Errorf("second registration = %+v, want %+v", again, first)
	}
	if n := len(d.Channels()); n != 1 {
		t.Errorf("channels = %d, want 1", n)
	}
	if first.Importance != ImportanceDefault {
		t.Errorf("importance = %q", first.Importance)
	}
}

func TestDeliverRendersAndFansOut(t *testing.T) {
	failing := &memSink{err: errors.New("down")}
	ok := &memSink{}
	d := NewDispatcher(testutil.Logger(), failing, ok)

	if err := d.Deliver(context.Background(), alarm.Payload{TaskID: "t1", PlantName: "Basil", Description: "Water"}); err != nil {
		t.Fatal(err)
	}
	if err := d.Deliver(context.Background(), alarm.Payload{TaskID: "t2", Description: "  "}); err != nil {
		t.Fatal(err)
	}

	if len(ok.got) != 2 {
		t.Fatalf("delivered = %d, want 2", len(ok.got))
	}
	n := ok.got[0]
	if n.Title != Title || n.Body != "Water" || n.Channel != DefaultChannel.ID || n.ID == "" {
		t.Errorf("notification = %+v", n)
	}
	if ok.got[1].Body != DefaultBody {
		t.Errorf("body = %q, want %q", ok.got[1].Body, DefaultBody)
	}
	if len(d.Channels()) != 1 {
		t.Error("default channel should be registered once")
	}
}

func TestUseChannel(t *testing.T) {
	sink := &memSink{}
	d := NewDispatcher(testutil.Logger(), sink)
	d.UseChannel(Channel{ID: "garden"})

	if err := d.Deliver(context.Background(), alarm.Payload{TaskID: "t1", Description: "Water"}); err != nil {
		t.Fatal(err)
	}
	if sink.got[0].Channel != "garden" {
		t.Errorf("channel = %q, want garden", sink.got[0].Channel)
	}
	chs := d.Channels()
	if len(chs) != 1 || chs[0].Name != DefaultChannel.Name || chs[0].Importance != ImportanceHigh {
		t.Errorf("channels = %+v", chs)
	}
}

func TestRecentRing(t *testing.T) {
	sent := &memSink{}
	d := NewDispatcher(testutil.Logger(), sent)
	for i := 0; i < recentSize+5; i++ {
		_ = d.Deliver(context.Background(), alarm.Payload{TaskID: "t", Description: "Water"})
	}
	all := d.Recent(0)
	if len(all) != recentSize {
		t.Fatalf("recent = %d, want %d", len(all), recentSize)
	}
	if got := d.Recent(2); len(got) != 2 || got[0].ID != all[0].ID {
		t.Errorf("Recent(2) = %+v", got)
	}
	if all[0].ID != sent.got[len(sent.got)-1].ID {
		t.Error("newest should come first")
	}
	if all[recentSize-1].ID != sent.got[5].ID {
		t.Error("oldest kept should be the sixth sent")
	}
}

func TestWebhookSink(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewWebhookSink(srv.URL).Send(context.Background(), Notification{ID: "n1", Title: Title, Body: "Water", Channel: "c"})
	if err != nil {
		t.Fatal(err)
	}
	if body["id"] != "n1" || body["text"] != "Water" || body["channel"] != "c" {
		t.Errorf("body = %v", body)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	if err := NewWebhookSink(bad.URL).Send(context.Background(), Notification{}); err == nil {
		t.Error("expected error for 500")
	}
}

func TestBrokerSink(t *testing.T) {
	var kind string
	s := BrokerSink{Publish: func(k string, _ any) { kind = k }}
	_ = s.Send(context.Background(), Notification{})
	if kind != "alarm.fired" {
		t.Errorf("kind = %q", kind)
	}
}
