package ast

// Shorthand constructors used by tests and tooling.

func ID(name string) *Identifier {
	return NewIdentifier(name)
}

func Str(value string) *StringLiteral {
	return NewStringLiteral(value)
}

func Int(value int64) *IntegerLiteral {
	return NewIntegerLiteral(value)
}

func Flt(value float64) *FloatLiteral {
	return NewFloatLiteral(value)
}

func Bool(value bool) *BooleanLiteral {
	return NewBooleanLiteral(value)
}

func Nil() *NilLiteral {
	return NewNilLiteral()
}

func Arr(elements ...Expression) *ArrayLiteral {
	return NewArrayLiteral(elements)
}

func Un(operator UnaryOperator, operand Expression) *UnaryExpression {
	return NewUnaryExpression(operator, operand)
}

func Bin(operator string, left, right Expression) *BinaryExpression {
	return NewBinaryExpression(operator, left, right)
}

func Assign(target, value Expression) *AssignmentExpression {
	return NewAssignmentExpression(target, value)
}

func Call(callee Expression, args ...Expression) *CallExpression {
	return NewCallExpression(callee, args)
}

func Member(object Expression, member string) *MemberAccessExpression {
	return NewMemberAccessExpression(object, ID(member))
}

func Index(object, index Expression) *IndexExpression {
	return NewIndexExpression(object, index)
}

func Block(body ...Statement) *BlockStatement {
	return NewBlockStatement(body)
}

func SyncBlock(lock Expression, body ...Statement) *BlockStatement {
	return NewSynchronizedBlock(lock, body)
}

func If(condition Expression, then *BlockStatement, alt Statement) *IfStatement {
	return NewIfStatement(condition, then, alt)
}

func While(condition Expression, body *BlockStatement) *WhileStatement {
	return NewWhileStatement(condition, body)
}

func Ret(argument Expression) *ReturnStatement {
	return NewReturnStatement(argument)
}

func Brk() *BreakStatement {
	return NewBreakStatement()
}

func Cont() *ContinueStatement {
	return NewContinueStatement()
}

func Fn(name string, params []string, body ...Statement) *FunctionDeclaration {
	ids := make([]*Identifier, len(params))
	for i, p := range params {
		ids[i] = ID(p)
	}
	return NewFunctionDeclaration(ID(name), ids, Block(body...))
}

func Class(name string, body ...Statement) *ClassDeclaration {
	return NewClassDeclaration(ID(name), Block(body...))
}

func Init(class string, body ...Statement) *MemberInitializer {
	return NewMemberInitializer(ID(class), Block(body...))
}

func Mod(body ...Statement) *Module {
	return NewModule(body, "")
}
