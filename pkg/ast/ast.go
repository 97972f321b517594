package ast

import "sync/atomic"

type NodeType string

const (
	NodeIdentifier             NodeType = "Identifier"
	NodeStringLiteral          NodeType = "StringLiteral"
	NodeIntegerLiteral         NodeType = "IntegerLiteral"
	NodeFloatLiteral           NodeType = "FloatLiteral"
	NodeBooleanLiteral         NodeType = "BooleanLiteral"
	NodeNilLiteral             NodeType = "NilLiteral"
	NodeArrayLiteral           NodeType = "ArrayLiteral"
	NodeUnaryExpression        NodeType = "UnaryExpression"
	NodeBinaryExpression       NodeType = "BinaryExpression"
	NodeAssignmentExpression   NodeType = "AssignmentExpression"
	NodeCallExpression         NodeType = "CallExpression"
	NodeMemberAccessExpression NodeType = "MemberAccessExpression"
	NodeIndexExpression        NodeType = "IndexExpression"
	NodeBlockStatement         NodeType = "BlockStatement"
	NodeIfStatement            NodeType = "IfStatement"
	NodeWhileStatement         NodeType = "WhileStatement"
	NodeReturnStatement        NodeType = "ReturnStatement"
	NodeBreakStatement         NodeType = "BreakStatement"
	NodeContinueStatement      NodeType = "ContinueStatement"
	NodeFunctionDeclaration    NodeType = "FunctionDeclaration"
	NodeClassDeclaration       NodeType = "ClassDeclaration"
	NodeMemberInitializer      NodeType = "MemberInitializer"
	NodeModule                 NodeType = "Module"
)

type Node interface {
	NodeType() NodeType
	isNode()
}

type nodeImpl struct {
	Type NodeType `json:"type"`
}

func newNodeImpl(kind NodeType) nodeImpl {
	return nodeImpl{Type: kind}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (nodeImpl) isNode()              {}

// Marker interfaces.

type Expression interface {
	Node
	expressionNode()
	statementNode()
}

type expressionMarker struct{}

func (expressionMarker) expressionNode() {}

type Statement interface {
	Node
	statementNode()
}

type statementMarker struct{}

func (statementMarker) statementNode() {}

// Identifiers and literals.

type Identifier struct {
	nodeImpl
	expressionMarker
	statementMarker

	Name string `json:"name"`
}

func NewIdentifier(name string) *Identifier {
	return &Identifier{nodeImpl: newNodeImpl(NodeIdentifier), Name: name}
}

type StringLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value string `json:"value"`
}

func NewStringLiteral(value string) *StringLiteral {
	return &StringLiteral{nodeImpl: newNodeImpl(NodeStringLiteral), Value: value}
}

type IntegerLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value int64 `json:"value"`
}

func NewIntegerLiteral(value int64) *IntegerLiteral {
	return &IntegerLiteral{nodeImpl: newNodeImpl(NodeIntegerLiteral), Value: value}
}

type FloatLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value float64 `json:"value"`
}

func NewFloatLiteral(value float64) *FloatLiteral {
	return &FloatLiteral{nodeImpl: newNodeImpl(NodeFloatLiteral), Value: value}
}

type BooleanLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Value bool `json:"value"`
}

func NewBooleanLiteral(value bool) *BooleanLiteral {
	return &BooleanLiteral{nodeImpl: newNodeImpl(NodeBooleanLiteral), Value: value}
}

type NilLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker
}

func NewNilLiteral() *NilLiteral {
	return &NilLiteral{nodeImpl: newNodeImpl(NodeNilLiteral)}
}

type ArrayLiteral struct {
	nodeImpl
	expressionMarker
	statementMarker

	Elements []Expression `json:"elements"`
}

func NewArrayLiteral(elements []Expression) *ArrayLiteral {
	return &ArrayLiteral{nodeImpl: newNodeImpl(NodeArrayLiteral), Elements: elements}
}

// Expressions.

type UnaryOperator string

const (
	UnaryNegate UnaryOperator = "-"
	UnaryNot    UnaryOperator = "!"
)

type UnaryExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator UnaryOperator `json:"operator"`
	Operand  Expression    `json:"operand"`
}

func NewUnaryExpression(operator UnaryOperator, operand Expression) *UnaryExpression {
	return &UnaryExpression{nodeImpl: newNodeImpl(NodeUnaryExpression), Operator: operator, Operand: operand}
}

type BinaryExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Operator string     `json:"operator"`
	Left     Expression `json:"left"`
	Right    Expression `json:"right"`
}

func NewBinaryExpression(operator string, left, right Expression) *BinaryExpression {
	return &BinaryExpression{nodeImpl: newNodeImpl(NodeBinaryExpression), Operator: operator, Left: left, Right: right}
}

type AssignmentExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Target Expression `json:"target"` // Identifier, MemberAccessExpression or IndexExpression
	Value  Expression `json:"value"`
}

func NewAssignmentExpression(target, value Expression) *AssignmentExpression {
	return &AssignmentExpression{nodeImpl: newNodeImpl(NodeAssignmentExpression), Target: target, Value: value}
}

type CallExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Callee    Expression   `json:"callee"`
	Arguments []Expression `json:"arguments"`
}

func NewCallExpression(callee Expression, arguments []Expression) *CallExpression {
	return &CallExpression{nodeImpl: newNodeImpl(NodeCallExpression), Callee: callee, Arguments: arguments}
}

type MemberAccessExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Object Expression  `json:"object"`
	Member *Identifier `json:"member"`
}

func NewMemberAccessExpression(object Expression, member *Identifier) *MemberAccessExpression {
	return &MemberAccessExpression{nodeImpl: newNodeImpl(NodeMemberAccessExpression), Object: object, Member: member}
}

type IndexExpression struct {
	nodeImpl
	expressionMarker
	statementMarker

	Object Expression `json:"object"`
	Index  Expression `json:"index"`
}

func NewIndexExpression(object, index Expression) *IndexExpression {
	return &IndexExpression{nodeImpl: newNodeImpl(NodeIndexExpression), Object: object, Index: index}
}

// Statements.

// BlockStatement is a compound statement. When IsSynchronized is set the
// first child is the lock expression and the remaining children form the
// body. The evaluation-state latches live on the node itself and are shared
// by every execution of it; atomics because a synchronized node may be
// evaluated from several threads at once.
type BlockStatement struct {
	nodeImpl
	expressionMarker
	statementMarker

	Body           []Statement `json:"body"`
	IsSynchronized bool        `json:"isSynchronized,omitempty"`
	IsStatic       bool        `json:"isStatic,omitempty"`

	started       atomic.Bool // latched on the first completed execution
	hasClassDecls atomic.Bool // sticky once any pass finds a class declaration
}

func NewBlockStatement(body []Statement) *BlockStatement {
	return &BlockStatement{nodeImpl: newNodeImpl(NodeBlockStatement), Body: body}
}

func NewSynchronizedBlock(lock Expression, body []Statement) *BlockStatement {
	b := &BlockStatement{nodeImpl: newNodeImpl(NodeBlockStatement), IsSynchronized: true}
	b.Body = append([]Statement{lock}, body...)
	return b
}

// FirstRun reports whether the node has never completed an execution.
func (b *BlockStatement) FirstRun() bool { return !b.started.Load() }

// FinishFirstRun latches the first-run state; it stays latched for the
// node's lifetime.
func (b *BlockStatement) FinishFirstRun() { b.started.Store(true) }

// HasClassDeclarations reports whether any execution ever found a class
// declaration among the children.
func (b *BlockStatement) HasClassDeclarations() bool { return b.hasClassDecls.Load() }

// NoteClassDeclaration records a discovered class declaration. Monotonic:
// never reset.
func (b *BlockStatement) NoteClassDeclaration() { b.hasClassDecls.Store(true) }

type IfStatement struct {
	nodeImpl
	expressionMarker
	statementMarker

	Condition Expression      `json:"condition"`
	Then      *BlockStatement `json:"then"`
	Else      Statement       `json:"else,omitempty"` // *BlockStatement or *IfStatement
}

func NewIfStatement(condition Expression, then *BlockStatement, alt Statement) *IfStatement {
	return &IfStatement{nodeImpl: newNodeImpl(NodeIfStatement), Condition: condition, Then: then, Else: alt}
}

type WhileStatement struct {
	nodeImpl
	statementMarker

	Condition Expression      `json:"condition"`
	Body      *BlockStatement `json:"body"`
}

func NewWhileStatement(condition Expression, body *BlockStatement) *WhileStatement {
	return &WhileStatement{nodeImpl: newNodeImpl(NodeWhileStatement), Condition: condition, Body: body}
}

type ReturnStatement struct {
	nodeImpl
	statementMarker

	Argument Expression `json:"argument,omitempty"`
}

func NewReturnStatement(argument Expression) *ReturnStatement {
	return &ReturnStatement{nodeImpl: newNodeImpl(NodeReturnStatement), Argument: argument}
}

type BreakStatement struct {
	nodeImpl
	statementMarker
}

func NewBreakStatement() *BreakStatement {
	return &BreakStatement{nodeImpl: newNodeImpl(NodeBreakStatement)}
}

type ContinueStatement struct {
	nodeImpl
	statementMarker
}

func NewContinueStatement() *ContinueStatement {
	return &ContinueStatement{nodeImpl: newNodeImpl(NodeContinueStatement)}
}

// Declarations.

type FunctionDeclaration struct {
	nodeImpl
	statementMarker

	ID     *Identifier     `json:"id"`
	Params []*Identifier   `json:"params"`
	Body   *BlockStatement `json:"body"`
}

func NewFunctionDeclaration(id *Identifier, params []*Identifier, body *BlockStatement) *FunctionDeclaration {
	return &FunctionDeclaration{nodeImpl: newNodeImpl(NodeFunctionDeclaration), ID: id, Params: params, Body: body}
}

// ClassDeclaration introduces a named class whose body block runs once in
// the class's own environment. The block evaluator orders these ahead of
// ordinary statements.
type ClassDeclaration struct {
	nodeImpl
	statementMarker

	ID   *Identifier     `json:"id"`
	Body *BlockStatement `json:"body"`
}

func NewClassDeclaration(id *Identifier, body *BlockStatement) *ClassDeclaration {
	return &ClassDeclaration{nodeImpl: newNodeImpl(NodeClassDeclaration), ID: id, Body: body}
}

// MemberInitializer augments an already-declared class. The block evaluator
// defers these until the rest of the enclosing block has run so the class
// has finished initializing first.
type MemberInitializer struct {
	nodeImpl
	statementMarker

	Class *Identifier     `json:"class"`
	Body  *BlockStatement `json:"body"`
}

func NewMemberInitializer(class *Identifier, body *BlockStatement) *MemberInitializer {
	return &MemberInitializer{nodeImpl: newNodeImpl(NodeMemberInitializer), Class: class, Body: body}
}

// Module is a parsed source file.

type Module struct {
	nodeImpl

	Body []Statement `json:"body"`
	Name string      `json:"name,omitempty"`
}

func NewModule(body []Statement, name string) *Module {
	return &Module{nodeImpl: newNodeImpl(NodeModule), Body: body, Name: name}
}
