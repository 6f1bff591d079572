package toolchain

import "github.com/risor-io/risor/ast"

// Visitor is called for each node during Walk. If Visit returns nil, the
// children of the node are not visited. Otherwise the returned Visitor is
// used for the children.
type Visitor interface {
	Visit(node ast.Node) (w Visitor)
}

// VisitorFunc adapts a function to the Visitor interface. The function
// returns false to skip the children of a node.
type VisitorFunc func(node ast.Node) bool

// Visit calls f.
func (f VisitorFunc) Visit(node ast.Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Walk traverses a Risor syntax tree in depth-first order. It starts by
// calling v.Visit(node); if the returned visitor w is not nil, Walk is
// invoked recursively with w for each of the non-nil children of node.
func Walk(v Visitor, node ast.Node) {
	if node == nil {
		return
	}
	if v = v.Visit(node); v == nil {
		return
	}

	switch n := node.(type) {
	case *ast.Program:
		walkList(v, n.Statements())

	// Statements
	case *ast.Block:
		walkList(v, n.Statements())
	case *ast.Var:
		_, value := n.Value()
		walkExpr(v, value)
	case *ast.MultiVar:
		_, value := n.Value()
		walkExpr(v, value)
	case *ast.Const:
		_, value := n.Value()
		walkExpr(v, value)
	case *ast.Control:
		walkExpr(v, n.Value())
	case *ast.Return:
		walkExpr(v, n.Value())
	case *ast.For:
		Walk(v, n.Init())
		Walk(v, n.Condition())
		Walk(v, n.Post())
		walkBlock(v, n.Consequence())
	case *ast.Assign:
		if n.Index() != nil {
			Walk(v, n.Index())
		}
		walkExpr(v, n.Value())
	case *ast.SetAttr:
		walkExpr(v, n.Object())
		walkExpr(v, n.Value())
	case *ast.Go:
		walkExpr(v, n.Call())
	case *ast.Defer:
		walkExpr(v, n.Call())
	case *ast.Send:
		walkExpr(v, n.Channel())
		walkExpr(v, n.Value())
	case *ast.FromImport:
		for _, im := range n.Imports() {
			Walk(v, im)
		}

	// Expressions
	case *ast.Prefix:
		walkExpr(v, n.Right())
	case *ast.Infix:
		walkExpr(v, n.Left())
		walkExpr(v, n.Right())
	case *ast.If:
		walkExpr(v, n.Condition())
		walkBlock(v, n.Consequence())
		walkBlock(v, n.Alternative())
	case *ast.Ternary:
		walkExpr(v, n.Condition())
		walkExpr(v, n.IfTrue())
		walkExpr(v, n.IfFalse())
	case *ast.Call:
		walkExpr(v, n.Function())
		walkList(v, n.Arguments())
	case *ast.GetAttr:
		walkExpr(v, n.Object())
	case *ast.Pipe:
		for _, expr := range n.Expressions() {
			walkExpr(v, expr)
		}
	case *ast.ObjectCall:
		walkExpr(v, n.Object())
		walkExpr(v, n.Call())
	case *ast.Index:
		walkExpr(v, n.Left())
		walkExpr(v, n.Index())
	case *ast.Slice:
		walkExpr(v, n.Left())
		walkExpr(v, n.FromIndex())
		walkExpr(v, n.ToIndex())
	case *ast.Case:
		for _, expr := range n.Expressions() {
			walkExpr(v, expr)
		}
		walkBlock(v, n.Block())
	case *ast.Switch:
		walkExpr(v, n.Value())
		for _, c := range n.Choices() {
			Walk(v, c)
		}
	case *ast.In:
		walkExpr(v, n.Left())
		walkExpr(v, n.Right())
	case *ast.Range:
		Walk(v, n.Container())
	case *ast.Receive:
		Walk(v, n.Channel())

	// Literals
	case *ast.Func:
		for _, expr := range n.Defaults() {
			walkExpr(v, expr)
		}
		walkBlock(v, n.Body())
	case *ast.String:
		for _, expr := range n.TemplateExpressions() {
			walkExpr(v, expr)
		}
	case *ast.List:
		for _, expr := range n.Items() {
			walkExpr(v, expr)
		}
	case *ast.Map:
		for key, value := range n.Items() {
			walkExpr(v, key)
			walkExpr(v, value)
		}
	case *ast.Set:
		for _, expr := range n.Items() {
			walkExpr(v, expr)
		}
	}
}

func walkList(v Visitor, nodes []ast.Node) {
	for _, node := range nodes {
		Walk(v, node)
	}
}

func walkExpr(v Visitor, expr ast.Expression) {
	if expr != nil {
		Walk(v, expr)
	}
}

func walkBlock(v Visitor, b *ast.Block) {
	if b != nil {
		Walk(v, b)
	}
}

// Inspect walks node and calls fn for every node reached. Returning false
// from fn skips the children of that node.
func Inspect(node ast.Node, fn func(ast.Node) bool) {
	Walk(VisitorFunc(fn), node)
}
