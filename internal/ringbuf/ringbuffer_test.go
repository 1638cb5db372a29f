package ringbuf

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func assertEqual[T any](t *testing.T, have, want T) {
	t.Helper()
	if !cmp.Equal(have, want) {
		t.Fatal(cmp.Diff(have, want))
	}
}

func snap(label string) Snapshot {
	return Snapshot{Bytes: []byte(label)}
}

func labels(r *snapshotRing, k int) []string {
	res := []string{}
	r.walk(func(s Snapshot) bool {
		if k >= 0 && len(res) >= k {
			return false
		}
		res = append(res, string(s.Bytes))
		return true
	})
	return res
}

func TestSnapshotRingAddAndWalk(t *testing.T) {
	t.Parallel()

	r := newSnapshotRing(3)

	assertEqual(t, labels(r, -1), []string{})

	r.add(snap("1"))
	assertEqual(t, labels(r, -1), []string{"1"})
	assertEqual(t, labels(r, 1), []string{"1"})

	r.add(snap("2"))
	assertEqual(t, labels(r, -1), []string{"2", "1"})
	assertEqual(t, labels(r, 1), []string{"2"})

	r.add(snap("3"))
	assertEqual(t, labels(r, -1), []string{"3", "2", "1"})

	r.add(snap("4")) // evicts "1"
	assertEqual(t, labels(r, -1), []string{"4", "3", "2"})

	r.add(snap("5"))
	r.add(snap("6"))
	assertEqual(t, labels(r, -1), []string{"6", "5", "4"})
	assertEqual(t, labels(r, 99), []string{"6", "5", "4"})
}

func TestSnapshotRingZeroCapacityTreatedAsOne(t *testing.T) {
	t.Parallel()

	r := newSnapshotRing(0)
	r.add(snap("1"))
	r.add(snap("2"))
	assertEqual(t, labels(r, -1), []string{"2"})
}

func BenchmarkSnapshotRing(b *testing.B) {
	for _, capacity := range []int{100, 1000, 10000, 100000} {
		b.Run(fmt.Sprintf("%d", capacity), func(b *testing.B) {
			r := newSnapshotRing(capacity)
			for i := 0; i < capacity; i++ {
				r.add(snap("x"))
			}

			walkOnlyFn := func(Snapshot) bool { return true }

			b.ReportAllocs()

			b.Run("add", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					r.add(snap("x"))
				}
			})

			b.Run("walk", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					r.walk(walkOnlyFn)
				}
			})

			b.Run("add+walk", func(b *testing.B) {
				for i := 0; i < b.N; i++ {
					r.add(snap("x"))
					r.walk(walkOnlyFn)
				}
			})
		})
	}
}

func BenchmarkSnapshotRingParallel(b *testing.B) {
	walkFn := func(Snapshot) bool { return true }

	for _, capacity := range []int{100, 1000, 10000} {
		for _, par := range []int{10, 100, 1000} {
			b.Run(fmt.Sprintf("cap=%d/par=%d", capacity, par), func(b *testing.B) {
				r := newSnapshotRing(capacity)
				b.SetParallelism(par)

				b.RunParallel(func(p *testing.PB) {
					for p.Next() {
						r.add(snap("x"))
						r.walk(walkFn)
					}
				})
			})
		}
	}
}
