package nullsink

import "testing"

func TestSink_Present(t *testing.T) {
	s := New()
	for i := 0; i < 3; i++ {
		if err := s.Present(nil, 640, 360); err != nil {
			t.Fatalf("Present failed: %v", err)
		}
	}
	if s.Presented() != 3 {
		t.Errorf("expected 3 frames, got %d", s.Presented())
	}
	if w, h := s.Size(); w != 640 || h != 360 {
		t.Errorf("expected 640x360, got %dx%d", w, h)
	}
}
