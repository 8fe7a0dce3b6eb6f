package accessstructure

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/cofhe/clhsm-go/pkg/clhsm"
)

// Expr represents an access control expression node.
type Expr interface {
	isExpr()
}

// leaf is a leaf node representing a single party.
type leaf struct {
	name string
}

func (leaf) isExpr() {}

// andExpr is an AND gate requiring all children.
type andExpr struct {
	children []Expr
}

func (andExpr) isExpr() {}

// orExpr is an OR gate requiring any child.
type orExpr struct {
	children []Expr
}

func (orExpr) isExpr() {}

// atLeastExpr is a gate requiring k of its children.
type atLeastExpr struct {
	k        int
	children []Expr
}

func (atLeastExpr) isExpr() {}

// Leaf creates a leaf node with the given party name.
func Leaf(name string) Expr {
	return leaf{name: name}
}

// And creates an AND gate requiring all children to satisfy the policy.
func And(children ...Expr) Expr {
	return andExpr{children: children}
}

// Or creates an OR gate requiring any child to satisfy the policy.
func Or(children ...Expr) Expr {
	return orExpr{children: children}
}

// AtLeast creates a gate requiring k of the children to satisfy the policy.
// It compiles to an OR over every k-subset of the children.
func AtLeast(k int, children ...Expr) Expr {
	return atLeastExpr{k: k, children: children}
}

// ISP is an integer span program: the distribution matrix M and the owner
// of each of its rows. A secret s is shared by drawing rho = (s, r_1, ...,
// r_{cols-1}) and handing row i the value M[i] . rho.
type ISP struct {
	M [][]int64
	// Owners[i] is the leaf name holding row i.
	Owners []string
	// Sie lists, for a threshold structure, the rows of every minimal
	// qualified set in lexicographic order of the sets. It is nil for
	// compiled expressions.
	Sie [][]int
}

// Rows returns the number of shares the program hands out.
func (isp *ISP) Rows() int { return len(isp.M) }

// Cols returns the length of rho.
func (isp *ISP) Cols() int {
	if len(isp.M) == 0 {
		return 0
	}
	return len(isp.M[0])
}

// Share returns M . rho, one value per row. rho[0] is the secret.
func (isp *ISP) Share(rho []*big.Int) ([]*big.Int, error) {
	if len(rho) != isp.Cols() {
		return nil, clhsm.Errorf("accessstructure.ISP.Share", clhsm.ErrInvalidArgument,
			"rho has %d entries, want %d", len(rho), isp.Cols())
	}
	out := make([]*big.Int, isp.Rows())
	tmp := new(big.Int)
	for i, row := range isp.M {
		s := new(big.Int)
		for j, m := range row {
			if m != 0 {
				s.Add(s, tmp.Mul(rho[j], big.NewInt(m)))
			}
		}
		out[i] = s
	}
	return out, nil
}

// String renders the matrix one row per line, prefixed by the row owner.
func (isp *ISP) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ISP %dx%d", isp.Rows(), isp.Cols())
	for i, row := range isp.M {
		fmt.Fprintf(&sb, "\n%s: %v", isp.Owners[i], row)
	}
	return sb.String()
}

// Compile builds the integer span program of the expression tree.
func Compile(e Expr) (*ISP, error) {
	if e == nil {
		return nil, clhsm.Errorf("accessstructure.Compile", clhsm.ErrInvalidArgument, "nil expression")
	}
	return build(e)
}

// build recursively constructs the span program of e.
func build(e Expr) (*ISP, error) {
	const op = "accessstructure.Compile"
	switch expr := e.(type) {
	case leaf:
		if expr.name == "" {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "empty leaf name")
		}
		return &ISP{M: [][]int64{{1}}, Owners: []string{expr.name}}, nil

	case andExpr:
		if len(expr.children) == 0 {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "AND gate requires at least one child")
		}
		return fold(expr.children, and)

	case orExpr:
		if len(expr.children) == 0 {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "OR gate requires at least one child")
		}
		return fold(expr.children, or)

	case atLeastExpr:
		if len(expr.children) == 0 {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "threshold gate requires at least one child")
		}
		if expr.k <= 0 {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "threshold k must be positive, got %d", expr.k)
		}
		if expr.k > len(expr.children) {
			return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument,
				"threshold k (%d) cannot exceed number of children (%d)", expr.k, len(expr.children))
		}
		var terms []Expr
		for _, c := range Combinations(len(expr.children), expr.k) {
			sub := make([]Expr, len(c))
			for i, idx := range c {
				sub[i] = expr.children[idx]
			}
			terms = append(terms, And(sub...))
		}
		return build(Or(terms...))

	default:
		return nil, clhsm.Errorf(op, clhsm.ErrInvalidArgument, "unknown expression type %T", e)
	}
}

func fold(children []Expr, combine func(a, b *ISP) *ISP) (*ISP, error) {
	acc, err := build(children[0])
	if err != nil {
		return nil, err
	}
	for _, child := range children[1:] {
		next, err := build(child)
		if err != nil {
			return nil, err
		}
		acc = combine(acc, next)
	}
	return acc, nil
}

// and returns the span program satisfied when both a and b are. The secret
// of a becomes rho_0 + rho_1 and the secret of b becomes rho_1, so a
// qualified set recovers rho_0 by subtracting the two.
func and(a, b *ISP) *ISP {
	da, ea := a.Rows(), a.Cols()
	db, eb := b.Rows(), b.Cols()
	m := zeros(da+db, ea+eb)
	for i, row := range a.M {
		m[i][0] = row[0]
		m[i][1] = row[0]
		for j := 1; j < ea; j++ {
			m[i][j+1] = row[j]
		}
	}
	for i, row := range b.M {
		m[da+i][1] = row[0]
		for j := 1; j < eb; j++ {
			m[da+i][ea+j] = row[j]
		}
	}
	return &ISP{M: m, Owners: concat(a.Owners, b.Owners)}
}

// or returns the span program satisfied when a or b is. Both share the
// secret column and keep their own randomness.
func or(a, b *ISP) *ISP {
	da, ea := a.Rows(), a.Cols()
	db, eb := b.Rows(), b.Cols()
	m := zeros(da+db, ea+eb-1)
	for i, row := range a.M {
		copy(m[i], row)
	}
	for i, row := range b.M {
		m[da+i][0] = row[0]
		for j := 1; j < eb; j++ {
			m[da+i][ea+j-1] = row[j]
		}
	}
	return &ISP{M: m, Owners: concat(a.Owners, b.Owners)}
}

func zeros(rows, cols int) [][]int64 {
	m := make([][]int64, rows)
	for i := range m {
		m[i] = make([]int64, cols)
	}
	return m
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
