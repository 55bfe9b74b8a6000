package prefs

import (
	"sort"
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get("weather.lang"); ok {
		t.Fatal("expected missing key")
	}
	if err := s.Set("weather.lang", "ko"); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Get("weather.lang"); !ok || v != "ko" {
		t.Errorf("Get = %q, %v", v, ok)
	}
	if err := s.Delete("weather.lang"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("weather.lang"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestOnceSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, _ := Open(dir)
	if !s.Once(ExactAlarmPromptShown) {
		t.Fatal("first call should report true")
	}
	if s.Once(ExactAlarmPromptShown) {
		t.Error("second call should report false")
	}
	s2, _ := Open(dir)
	if s2.Once(ExactAlarmPromptShown) {
		t.Error("flag should persist across reopen")
	}
}

func TestKeys(t *testing.T) {
	s, _ := Open(t.TempDir())
	_ = s.Set("a", "1")
	_ = s.Set("group.b", "2")
	keys := s.Keys()
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "group.b" {
		t.Errorf("keys = %v", keys)
	}
}
