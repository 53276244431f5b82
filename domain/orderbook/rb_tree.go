package orderbook

import "poolbook/domain/ray"

type color bool

const (
	red   color = false
	black color = true
)

type rbNode struct {
	key    ray.Ray
	level  *PriceLevel
	color  color
	left   *rbNode
	right  *rbNode
	parent *rbNode
}

// RBTree indexes price levels by exact Ray price.
type RBTree struct {
	root *rbNode
	nil  *rbNode
	size int
}

func NewRBTree() *RBTree {
	nilNode := &rbNode{color: black}
	return &RBTree{
		root: nilNode,
		nil:  nilNode,
	}
}

// ---- public API ----

func (t *RBTree) GetOrCreate(price ray.Ray) *PriceLevel {
	n := t.find(price)
	if n != t.nil {
		return n.level
	}

	lvl := &PriceLevel{Price: price}
	t.insert(price, lvl)
	return lvl
}

func (t *RBTree) Len() int {
	return t.size
}

// ---- walkers ----

func (t *RBTree) walkAsc(fn func(*PriceLevel)) {
	for n := t.min(t.root); n != t.nil; n = t.next(n) {
		fn(n.level)
	}
}

func (t *RBTree) walkDesc(fn func(*PriceLevel)) {
	for n := t.max(t.root); n != t.nil; n = t.prev(n) {
		fn(n.level)
	}
}

// ---- internal helpers ----

func (t *RBTree) find(price ray.Ray) *rbNode {
	n := t.root
	for n != t.nil {
		switch price.Cmp(n.key) {
		case -1:
			n = n.left
		case 1:
			n = n.right
		default:
			return n
		}
	}
	return t.nil
}

func (t *RBTree) min(n *rbNode) *rbNode {
	for n != t.nil && n.left != t.nil {
		n = n.left
	}
	return n
}

func (t *RBTree) max(n *rbNode) *rbNode {
	for n != t.nil && n.right != t.nil {
		n = n.right
	}
	return n
}

func (t *RBTree) next(n *rbNode) *rbNode {
	if n.right != t.nil {
		return t.min(n.right)
	}
	p := n.parent
	for p != t.nil && n == p.right {
		n = p
		p = p.parent
	}
	return p
}

func (t *RBTree) prev(n *rbNode) *rbNode {
	if n.left != t.nil {
		return t.max(n.left)
	}
	p := n.parent
	for p != t.nil && n == p.left {
		n = p
		p = p.parent
	}
	return p
}

// ---- balancing ----

func (t *RBTree) insert(price ray.Ray, lvl *PriceLevel) {
	z := &rbNode{
		key:    price,
		level:  lvl,
		color:  red,
		left:   t.nil,
		right:  t.nil,
		parent: t.nil,
	}

	y, x := t.nil, t.root
	for x != t.nil {
		y = x
		if price.Less(x.key) {
			x = x.left
		} else {
			x = x.right
		}
	}

	z.parent = y
	switch {
	case y == t.nil:
		t.root = z
	case price.Less(y.key):
		y.left = z
	default:
		y.right = z
	}
	t.size++
	t.insertFixup(z)
}

func (t *RBTree) insertFixup(z *rbNode) {
	for z.parent.color == red {
		gp := z.parent.parent
		if z.parent == gp.left {
			uncle := gp.right
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				gp.color = red
				z = gp
				continue
			}
			if z == z.parent.right {
				z = z.parent
				t.rotateLeft(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateRight(z.parent.parent)
		} else {
			uncle := gp.left
			if uncle.color == red {
				z.parent.color = black
				uncle.color = black
				gp.color = red
				z = gp
				continue
			}
			if z == z.parent.left {
				z = z.parent
				t.rotateRight(z)
			}
			z.parent.color = black
			z.parent.parent.color = red
			t.rotateLeft(z.parent.parent)
		}
	}
	t.root.color = black
}

func (t *RBTree) rotateLeft(x *rbNode) {
	y := x.right
	x.right = y.left
	if y.left != t.nil {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *RBTree) rotateRight(x *rbNode) {
	y := x.left
	x.left = y.right
	if y.right != t.nil {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == t.nil:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}
