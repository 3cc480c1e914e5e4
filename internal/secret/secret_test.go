package secret

import "testing"

func TestCloseZeroesBuffer(t *testing.T) {
	s := New([]byte{1, 2, 3, 4})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i, b := range s.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
}

func TestDoubleCloseIsNoop(t *testing.T) {
	s := New([]byte{9, 9, 9})
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestNewZeroedLength(t *testing.T) {
	s := NewZeroed(16)
	if s.Len() != 16 {
		t.Fatalf("Len() = %d, want 16", s.Len())
	}
	for _, b := range s.Bytes() {
		if b != 0 {
			t.Fatalf("NewZeroed produced non-zero byte")
		}
	}
}

func TestWipeOrdinarySlice(t *testing.T) {
	b := []byte{1, 2, 3}
	Wipe(b)
	for _, v := range b {
		if v != 0 {
			t.Fatalf("Wipe left non-zero byte")
		}
	}
}
