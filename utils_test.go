package cactusplot

import (
	"math"
	"reflect"
	"testing"
)

func TestFilter(t *testing.T) {
	t.Run("empty slice", func(t *testing.T) {
		var input []DatasetID = nil
		got := Filter(input, func(DatasetID) bool { return true })
		want := []DatasetID{}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("drops one id", func(t *testing.T) {
		input := []DatasetID{1, 2, 3}
		got := Filter(input, func(id DatasetID) bool { return id != 2 })
		want := []DatasetID{1, 3}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("input untouched", func(t *testing.T) {
		input := []int{1, 2, 3}
		Filter(input, func(x int) bool { return x > 10 })
		if !reflect.DeepEqual(input, []int{1, 2, 3}) {
			t.Fatalf("input modified: %v", input)
		}
	})
}

func TestMinMax(t *testing.T) {
	if got := Min(5, 3); got != 3 {
		t.Fatalf("Min(5,3) = %v, want 3", got)
	}
	if got := Max(5, 3); got != 5 {
		t.Fatalf("Max(5,3) = %v, want 5", got)
	}
	if got := Max(-1.5, -2.5); got != -1.5 {
		t.Fatalf("Max(-1.5,-2.5) = %v, want -1.5", got)
	}

	a := math.NaN()
	if got := Min(1.0, a); got != 1.0 {
		t.Fatalf("Min(1.0,NaN) = %v, want 1.0", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, lo, hi, want int
	}{
		{v: 5, lo: 0, hi: 10, want: 5},
		{v: -1, lo: 0, hi: 10, want: 0},
		{v: 11, lo: 0, hi: 10, want: 10},
		{v: 0, lo: 0, hi: 0, want: 0},
	}

	for _, tt := range tests {
		if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestThreadUnsafeRing(t *testing.T) {
	line := func(msg string) StatusLine { return StatusLine{Msg: msg} }

	t.Run("capacity 1 keeps the newest", func(t *testing.T) {
		r := NewRing[StatusLine](1)
		r.Push(line("a"))
		r.Push(line("b"))
		got := r.ReadAllOrdered()
		want := []StatusLine{line("b")}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	})

	t.Run("partial fill", func(t *testing.T) {
		r := NewRing[StatusLine](3)
		r.Push(line("loaded"))
		r.Push(StatusLine{Msg: "Error: bad file", Error: true})
		got := r.ReadAllOrdered()
		want := []StatusLine{line("loaded"), {Msg: "Error: bad file", Error: true}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	})

	t.Run("wraparound", func(t *testing.T) {
		r := NewRing[int](3)
		for i := 1; i <= 7; i++ {
			r.Push(i)
		}
		got := r.ReadAllOrdered()
		want := []int{5, 6, 7}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}

		for i := 8; i <= 10; i++ {
			r.Push(i)
		}
		got = r.ReadAllOrdered()
		want = []int{8, 9, 10}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	})

	t.Run("read on empty returns empty", func(t *testing.T) {
		r := NewRing[StatusLine](3)
		if got := r.ReadAllOrdered(); len(got) != 0 {
			t.Fatalf("expected empty slice, got %v", got)
		}
	})

	t.Run("zero capacity panics", func(t *testing.T) {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic for zero capacity ring")
			}
		}()
		r := NewRing[int](0)
		r.Push(1)
	})
}
