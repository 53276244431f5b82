package orderbook

import (
	"math/rand/v2"
	"slices"
	"testing"

	"poolbook/domain/ray"
)

func TestRBTreeWalkOrder(t *testing.T) {
	tree := NewRBTree()
	for _, p := range []uint64{200, 100, 150} {
		tree.GetOrCreate(ray.FromUint64(p))
	}

	var asc, desc []ray.Ray
	tree.walkAsc(func(l *PriceLevel) { asc = append(asc, l.Price) })
	tree.walkDesc(func(l *PriceLevel) { desc = append(desc, l.Price) })
	want := []ray.Ray{ray.FromUint64(100), ray.FromUint64(150), ray.FromUint64(200)}
	if !slices.EqualFunc(asc, want, ray.Ray.Equal) {
		t.Errorf("walkAsc = %v", asc)
	}
	slices.Reverse(want)
	if !slices.EqualFunc(desc, want, ray.Ray.Equal) {
		t.Errorf("walkDesc = %v", desc)
	}
}

// --- Edge Cases ---

func TestEmptyTreeWalk(t *testing.T) {
	tree := NewRBTree()
	n := 0
	tree.walkAsc(func(*PriceLevel) { n++ })
	tree.walkDesc(func(*PriceLevel) { n++ })
	if n != 0 || tree.Len() != 0 {
		t.Error("expected no levels in an empty tree")
	}
}

func TestGetOrCreateDuplicateLevel(t *testing.T) {
	tree := NewRBTree()
	pl1 := tree.GetOrCreate(ray.FromUint64(150))
	pl2 := tree.GetOrCreate(ray.FromUint64(150))
	if pl1 != pl2 || tree.Len() != 1 {
		t.Error("GetOrCreate should return the same level for a duplicate price")
	}
}

func TestRBTreeBalancedAndOrdered(t *testing.T) {
	tree := NewRBTree()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 2000; i++ {
		tree.GetOrCreate(ray.FromUint64(rng.Uint64N(5000)))
	}

	if tree.root.color != black {
		t.Fatal("root must be black")
	}
	if _, ok := blackHeight(tree, tree.root); !ok {
		t.Fatal("red-black invariants violated")
	}

	var prev *PriceLevel
	n := 0
	tree.walkAsc(func(l *PriceLevel) {
		if prev != nil && !prev.Price.Less(l.Price) {
			t.Fatalf("walkAsc out of order at %s", l.Price)
		}
		prev = l
		n++
	})
	if n != tree.Len() {
		t.Fatalf("walked %d levels; Len = %d", n, tree.Len())
	}
}

func blackHeight(t *RBTree, n *rbNode) (int, bool) {
	if n == t.nil {
		return 1, true
	}
	if n.color == red && (n.left.color == red || n.right.color == red) {
		return 0, false
	}
	l, okL := blackHeight(t, n.left)
	r, okR := blackHeight(t, n.right)
	if !okL || !okR || l != r {
		return 0, false
	}
	if n.color == black {
		l++
	}
	return l, true
}
