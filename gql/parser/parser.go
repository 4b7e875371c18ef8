/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package parser

import (
	"fmt"
	"strconv"

	"github.com/MuYiYong/ChainGraph/graph/data"
)

/*
Error is a parser related error.
*/
type Error struct {
	Message string // Error message
	Token   string // Offending token
	Line    int    // Line of the error
	Pos     int    // Position of the error
}

/*
Error returns a human-readable string representation of this error.
*/
func (pe *Error) Error() string {
	if pe.Token != "" {
		return fmt.Sprintf("Parse error in Line %v, Pos %v (%v): %v",
			pe.Line, pe.Pos, pe.Token, pe.Message)
	}

	return fmt.Sprintf("Parse error in Line %v, Pos %v: %v",
		pe.Line, pe.Pos, pe.Message)
}

/*
parser data structure
*/
type parser struct {
	tokens []LexToken // Lexed tokens
	pos    int        // Current token pointer
}

/*
Parse parses a given input string and returns the statement tree.
*/
func Parse(input string) (Statement, error) {
	tokens := Lex(input)

	if len(tokens) > 0 {
		if last := tokens[len(tokens)-1]; last.ID == TokenError {
			return nil, &Error{Message: last.Val, Line: last.Lline, Pos: last.Lpos}
		}
	}

	p := &parser{tokens: tokens}

	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	// Composite query operators bind left associative

	for {
		switch p.cur().ID {

		case TokenUNION:
			p.next()
			all := p.accept(TokenALL)

			right, err := p.parseStatement()
			if err != nil {
				return nil, err
			}

			stmt = &CompositeStatement{Op: CompositeUnion, All: all,
				Left: stmt, Right: right}

		case TokenEXCEPT, TokenINTERSECT, TokenOTHERWISE:
			opToken := p.next()

			op := CompositeExcept
			if opToken.ID == TokenINTERSECT {
				op = CompositeIntersect
			} else if opToken.ID == TokenOTHERWISE {
				op = CompositeOtherwise
			}

			right, err := p.parseStatement()
			if err != nil {
				return nil, err
			}

			stmt = &CompositeStatement{Op: op, Left: stmt, Right: right}

		default:

			if _, err := p.expect(TokenEOF, "Unexpected input after statement"); err != nil {
				return nil, err
			}

			return stmt, nil
		}
	}
}

// Token handling
// ==============

/*
cur returns the current token.
*/
func (p *parser) cur() LexToken {
	if p.pos >= len(p.tokens) {
		return LexToken{ID: TokenEOF}
	}

	return p.tokens[p.pos]
}

/*
peek returns a token ahead of the current token.
*/
func (p *parser) peek(offset int) LexToken {
	if p.pos+offset >= len(p.tokens) {
		return LexToken{ID: TokenEOF}
	}

	return p.tokens[p.pos+offset]
}

/*
next returns the current token and advances.
*/
func (p *parser) next() LexToken {
	t := p.cur()
	p.pos++

	return t
}

/*
accept advances over the current token if it has a given id.
*/
func (p *parser) accept(id LexTokenID) bool {
	if p.cur().ID == id {
		p.pos++
		return true
	}

	return false
}

/*
expect checks that the current token has a given id and advances.
*/
func (p *parser) expect(id LexTokenID, msg string) (LexToken, error) {
	t := p.cur()

	if t.ID != id {
		return t, p.newError(t, msg)
	}

	p.pos++

	return t, nil
}

/*
newError creates a parser error at a given token.
*/
func (p *parser) newError(t LexToken, msg string) error {
	return &Error{Message: msg, Token: t.String(), Line: t.Lline, Pos: t.Lpos}
}

/*
identLike returns the value of an identifier or keyword token.
*/
func (p *parser) identLike(msg string) (string, error) {
	t := p.cur()

	if t.ID != TokenIdentifier && t.ID <= TOKENodeKEYWORDS {
		return "", p.newError(t, msg)
	}

	p.pos++

	return t.Val, nil
}

// Statement dispatch
// ==================

/*
parseStatement parses a single statement.
*/
func (p *parser) parseStatement() (Statement, error) {
	switch t := p.cur(); t.ID {

	case TokenMATCH:
		return p.parseMatch(false)

	case TokenOPTIONAL:
		if p.peek(1).ID == TokenCALL {
			p.next()
			return p.parseCall(true)
		}

		p.next()

		if _, err := p.expect(TokenMATCH, "Expected MATCH or CALL after OPTIONAL"); err != nil {
			return nil, err
		}

		p.pos--

		return p.parseMatch(true)

	case TokenINSERT:
		return p.parseInsert()

	case TokenDELETE, TokenDETACH, TokenNODETACH:
		return p.parseDelete(nil, nil)

	case TokenSET:
		return p.parseUpdate(nil, nil)

	case TokenLET:
		return p.parseLet()

	case TokenFOR:
		return p.parseFor()

	case TokenFILTER:
		p.next()

		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		return &FilterStatement{Condition: cond}, nil

	case TokenSELECT:
		return p.parseSelect()

	case TokenCALL:
		return p.parseCall(false)

	case TokenUSE:
		return p.parseUse()

	case TokenCREATE:
		return p.parseCreate()

	case TokenDROP:
		return p.parseDrop()

	case TokenSHOW:
		return p.parseShow()

	case TokenDESCRIBE:
		return p.parseDescribe()

	case TokenSESSION:
		return p.parseSession()

	case TokenSTART:
		return p.parseTransactionStart()

	case TokenCOMMIT:
		p.next()
		return &TransactionStatement{Kind: TransCommit}, nil

	case TokenROLLBACK:
		p.next()
		return &TransactionStatement{Kind: TransRollback}, nil

	default:
		return nil, p.newError(t, "Expected a statement")
	}
}

// MATCH and patterns
// ==================

/*
parseMatch parses a MATCH statement including DELETE and SET tails.
*/
func (p *parser) parseMatch(optional bool) (Statement, error) {
	if _, err := p.expect(TokenMATCH, "Expected MATCH"); err != nil {
		return nil, err
	}

	var patterns []*PathPattern

	for {
		pattern, err := p.parsePathPattern()
		if err != nil {
			return nil, err
		}

		patterns = append(patterns, pattern)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	var where Expr
	var err error

	if p.accept(TokenWHERE) {
		if where, err = p.parseExpression(); err != nil {
			return nil, err
		}
	}

	switch p.cur().ID {

	case TokenRETURN:
		p.next()

		proj, err := p.parseProjection()
		if err != nil {
			return nil, err
		}

		return &MatchStatement{Optional: optional, Patterns: patterns,
			Where: where, Projection: proj}, nil

	case TokenDELETE, TokenDETACH, TokenNODETACH:
		return p.parseDelete(patterns, where)

	case TokenSET:
		return p.parseUpdate(patterns, where)
	}

	return nil, p.newError(p.cur(), "Expected RETURN, DELETE or SET after MATCH")
}

/*
parsePathPattern parses a single path pattern with an optional path
search prefix.
*/
func (p *parser) parsePathPattern() (*PathPattern, error) {
	pattern := &PathPattern{}

	search, err := p.parseSearchPrefix()
	if err != nil {
		return nil, err
	}

	pattern.Search = search

	node, err := p.parseNodePattern()
	if err != nil {
		return nil, err
	}

	pattern.Nodes = append(pattern.Nodes, node)

	for {
		switch p.cur().ID {

		case TokenMINUS, TokenLARROW, TokenTILDE, TokenLTILDEARROW:

			edge, err := p.parseEdgePattern()
			if err != nil {
				return nil, err
			}

			node, err := p.parseNodePattern()
			if err != nil {
				return nil, err
			}

			pattern.Edges = append(pattern.Edges, edge)
			pattern.Nodes = append(pattern.Nodes, node)

		default:
			return pattern, nil
		}
	}
}

/*
parseSearchPrefix parses an optional path search prefix.
*/
func (p *parser) parseSearchPrefix() (*PathSearch, error) {
	switch p.cur().ID {

	case TokenALL:

		// ALL only starts a search prefix if a pattern or SHORTEST follows

		if p.peek(1).ID != TokenSHORTEST && p.peek(1).ID != TokenLPAREN &&
			p.peek(1).ID != TokenPATH && p.peek(1).ID != TokenPATHS {
			return nil, nil
		}

		p.next()

		if p.accept(TokenSHORTEST) {
			p.acceptPathKeyword()
			return &PathSearch{Kind: SearchAllShortest}, nil
		}

		p.acceptPathKeyword()

		return &PathSearch{Kind: SearchAll}, nil

	case TokenANY:
		p.next()

		if p.accept(TokenSHORTEST) {
			p.acceptPathKeyword()
			return &PathSearch{Kind: SearchAnyShortest}, nil
		}

		if p.cur().ID == TokenIntValue {
			k, err := p.parseIntToken()
			if err != nil {
				return nil, err
			}

			p.acceptPathKeyword()

			return &PathSearch{Kind: SearchAnyK, K: k}, nil
		}

		p.acceptPathKeyword()

		return &PathSearch{Kind: SearchAny}, nil

	case TokenSHORTEST:
		p.next()

		if p.cur().ID == TokenIntValue {
			k, err := p.parseIntToken()
			if err != nil {
				return nil, err
			}

			if p.accept(TokenGROUPS) {
				p.acceptPathKeyword()
				return &PathSearch{Kind: SearchShortestKGroups, K: k}, nil
			}

			p.acceptPathKeyword()

			return &PathSearch{Kind: SearchShortestK, K: k}, nil
		}

		p.acceptPathKeyword()

		return &PathSearch{Kind: SearchShortest}, nil
	}

	return nil, nil
}

/*
acceptPathKeyword advances over an optional PATH or PATHS keyword.
*/
func (p *parser) acceptPathKeyword() {
	if !p.accept(TokenPATH) {
		p.accept(TokenPATHS)
	}
}

/*
parseIntToken parses an integer token value.
*/
func (p *parser) parseIntToken() (int, error) {
	t, err := p.expect(TokenIntValue, "Expected an integer")
	if err != nil {
		return 0, err
	}

	v, err := strconv.ParseInt(t.Val, 0, 64)
	if err != nil {
		return 0, p.newError(t, "Invalid integer")
	}

	return int(v), nil
}

/*
parseNodePattern parses a node pattern.
*/
func (p *parser) parseNodePattern() (*NodePattern, error) {
	if _, err := p.expect(TokenLPAREN, "Expected a node pattern"); err != nil {
		return nil, err
	}

	node := &NodePattern{}

	if p.cur().ID == TokenIdentifier {
		node.Var = p.next().Val
	}

	if p.accept(TokenCOLON) {
		labels, err := p.parseLabelExpr()
		if err != nil {
			return nil, err
		}

		node.Labels = labels
	}

	if p.cur().ID == TokenLBRACE {
		props, err := p.parseProps()
		if err != nil {
			return nil, err
		}

		node.Props = props
	}

	if _, err := p.expect(TokenRPAREN, "Expected ) at the end of a node pattern"); err != nil {
		return nil, err
	}

	return node, nil
}

/*
parseEdgePattern parses an edge pattern with all seven direction forms
and both quantifier syntaxes.
*/
func (p *parser) parseEdgePattern() (*EdgePattern, error) {
	edge := &EdgePattern{}

	prefix := p.next().ID

	if p.accept(TokenLBRACK) {

		if p.cur().ID == TokenIdentifier {
			edge.Var = p.next().Val
		}

		if p.accept(TokenCOLON) {
			labels, err := p.parseLabelExpr()
			if err != nil {
				return nil, err
			}

			edge.Labels = labels
		}

		// Neo4j style variable length: [*], [*2], [*1..5], [*..5], [*1..]

		if p.accept(TokenTIMES) {
			quant, err := p.parseDotDotQuantifier()
			if err != nil {
				return nil, err
			}

			edge.Quant = quant
		}

		if p.cur().ID == TokenLBRACE {
			props, err := p.parseProps()
			if err != nil {
				return nil, err
			}

			edge.Props = props
		}

		if _, err := p.expect(TokenRBRACK, "Expected ] at the end of an edge pattern"); err != nil {
			return nil, err
		}
	}

	suffixToken := p.cur()
	suffix := suffixToken.ID

	switch suffix {
	case TokenRARROW, TokenRTILDEARROW, TokenTILDE, TokenMINUS:
		p.next()
	default:
		return nil, p.newError(suffixToken, "Expected an edge direction")
	}

	switch {
	case prefix == TokenMINUS && suffix == TokenRARROW:
		edge.Direction = DirOut
	case prefix == TokenLARROW && suffix == TokenMINUS:
		edge.Direction = DirIn
	case prefix == TokenLARROW && suffix == TokenRARROW:
		edge.Direction = DirLeftOrRight
	case prefix == TokenTILDE && suffix == TokenTILDE:
		edge.Direction = DirUndirected
	case prefix == TokenTILDE && suffix == TokenRTILDEARROW:
		edge.Direction = DirUndirectedOrRight
	case prefix == TokenLTILDEARROW && suffix == TokenTILDE:
		edge.Direction = DirLeftOrUndirected
	case prefix == TokenMINUS && suffix == TokenMINUS:
		edge.Direction = DirAny
	default:
		return nil, p.newError(suffixToken, "Invalid edge direction")
	}

	// ISO style quantifier after the direction: ->{1,5} or ->+ or ->*

	if edge.Quant == nil && (suffix == TokenRARROW || suffix == TokenRTILDEARROW) {
		quant, err := p.parseISOQuantifier()
		if err != nil {
			return nil, err
		}

		edge.Quant = quant
	}

	return edge, nil
}

/*
parseDotDotQuantifier parses the Neo4j style quantifier after a *.
*/
func (p *parser) parseDotDotQuantifier() (*Quantifier, error) {
	quant := &Quantifier{Min: 0, Max: -1}

	if p.cur().ID == TokenIntValue {
		min, err := p.parseIntToken()
		if err != nil {
			return nil, err
		}

		quant.Min = min
		quant.Max = min

		if p.accept(TokenDOTDOT) {
			quant.Max = -1

			if p.cur().ID == TokenIntValue {
				max, err := p.parseIntToken()
				if err != nil {
					return nil, err
				}

				quant.Max = max
			}
		}

		return quant, nil
	}

	if p.accept(TokenDOTDOT) {
		max, err := p.parseIntToken()
		if err != nil {
			return nil, err
		}

		quant.Max = max
	}

	return quant, nil
}

/*
parseISOQuantifier parses the ISO style quantifier: {n}, {n,}, {,m},
{n,m}, *, + or ?. Returns nil if no quantifier is present.
*/
func (p *parser) parseISOQuantifier() (*Quantifier, error) {
	switch p.cur().ID {

	case TokenTIMES:
		p.next()
		return &Quantifier{Min: 0, Max: -1}, nil

	case TokenPLUS:
		p.next()
		return &Quantifier{Min: 1, Max: -1}, nil

	case TokenQUESTION:
		p.next()
		return &Quantifier{Min: 0, Max: 1}, nil

	case TokenLBRACE:
		p.next()

		quant := &Quantifier{Min: 0, Max: -1}

		if p.cur().ID == TokenIntValue {
			min, err := p.parseIntToken()
			if err != nil {
				return nil, err
			}

			quant.Min = min
			quant.Max = min

			if p.accept(TokenCOMMA) {
				quant.Max = -1

				if p.cur().ID == TokenIntValue {
					max, err := p.parseIntToken()
					if err != nil {
						return nil, err
					}

					quant.Max = max
				}
			}

		} else if p.accept(TokenCOMMA) {
			max, err := p.parseIntToken()
			if err != nil {
				return nil, err
			}

			quant.Max = max

		} else {
			return nil, p.newError(p.cur(), "Invalid quantifier")
		}

		if _, err := p.expect(TokenRBRACE, "Expected } at the end of a quantifier"); err != nil {
			return nil, err
		}

		return quant, nil
	}

	return nil, nil
}

/*
parseLabelExpr parses a label expression.
*/
func (p *parser) parseLabelExpr() (*LabelExpr, error) {
	left, err := p.parseLabelConjunction()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenPIPE) {
		right, err := p.parseLabelConjunction()
		if err != nil {
			return nil, err
		}

		left = &LabelExpr{Op: LabelOr, Left: left, Right: right}
	}

	return left, nil
}

/*
parseLabelConjunction parses the & level of a label expression.
*/
func (p *parser) parseLabelConjunction() (*LabelExpr, error) {
	left, err := p.parseLabelFactor()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenAMP) {
		right, err := p.parseLabelFactor()
		if err != nil {
			return nil, err
		}

		left = &LabelExpr{Op: LabelAnd, Left: left, Right: right}
	}

	return left, nil
}

/*
parseLabelFactor parses the ! level of a label expression.
*/
func (p *parser) parseLabelFactor() (*LabelExpr, error) {
	if p.accept(TokenBANG) {
		operand, err := p.parseLabelFactor()
		if err != nil {
			return nil, err
		}

		return &LabelExpr{Op: LabelNot, Left: operand}, nil
	}

	if p.accept(TokenMOD) {
		return &LabelExpr{Op: LabelAny}, nil
	}

	if p.accept(TokenLPAREN) {
		inner, err := p.parseLabelExpr()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenRPAREN, "Expected ) in label expression"); err != nil {
			return nil, err
		}

		return inner, nil
	}

	name, err := p.identLike("Expected a label name")
	if err != nil {
		return nil, err
	}

	return &LabelExpr{Op: LabelName, Name: name}, nil
}

/*
parseProps parses a property map.
*/
func (p *parser) parseProps() (map[string]Expr, error) {
	if _, err := p.expect(TokenLBRACE, "Expected a property map"); err != nil {
		return nil, err
	}

	props := make(map[string]Expr)

	for p.cur().ID != TokenRBRACE {

		key, err := p.identLike("Expected a property name")
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenCOLON, "Expected : after property name"); err != nil {
			return nil, err
		}

		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		props[key] = val

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	if _, err := p.expect(TokenRBRACE, "Expected } at the end of a property map"); err != nil {
		return nil, err
	}

	return props, nil
}

// Projections
// ===========

/*
parseProjection parses the projection clause after RETURN or SELECT.
*/
func (p *parser) parseProjection() (*Projection, error) {
	proj, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}

	if err := p.parseProjectionClauses(proj); err != nil {
		return nil, err
	}

	return proj, nil
}

/*
parseProjectionItems parses the projected items.
*/
func (p *parser) parseProjectionItems() (*Projection, error) {
	proj := &Projection{Offset: -1, Limit: -1}

	proj.Distinct = p.accept(TokenDISTINCT)

	for {
		item := &SelectItem{}

		if p.accept(TokenTIMES) {
			item.Star = true
		} else {
			expr, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			item.Expr = expr

			if p.accept(TokenAS) {
				alias, err := p.identLike("Expected an alias name")
				if err != nil {
					return nil, err
				}

				item.Alias = alias
			}
		}

		proj.Items = append(proj.Items, item)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	return proj, nil
}

/*
parseProjectionClauses parses the trailing clauses of a projection.
*/
func (p *parser) parseProjectionClauses(proj *Projection) error {
	for {
		switch p.cur().ID {

		case TokenGROUP:
			p.next()

			if _, err := p.expect(TokenBY, "Expected BY after GROUP"); err != nil {
				return err
			}

			for {
				expr, err := p.parseExpression()
				if err != nil {
					return err
				}

				proj.GroupBy = append(proj.GroupBy, expr)

				if !p.accept(TokenCOMMA) {
					break
				}
			}

		case TokenHAVING:
			p.next()

			having, err := p.parseExpression()
			if err != nil {
				return err
			}

			proj.Having = having

		case TokenORDER:
			p.next()

			if _, err := p.expect(TokenBY, "Expected BY after ORDER"); err != nil {
				return err
			}

			for {
				expr, err := p.parseExpression()
				if err != nil {
					return err
				}

				item := &OrderItem{Expr: expr}

				if p.accept(TokenDESC) {
					item.Desc = true
				} else {
					p.accept(TokenASC)
				}

				proj.OrderBy = append(proj.OrderBy, item)

				if !p.accept(TokenCOMMA) {
					break
				}
			}

		case TokenSKIP, TokenOFFSET:
			p.next()

			offset, err := p.parseIntToken()
			if err != nil {
				return err
			}

			proj.Offset = offset

		case TokenLIMIT:
			p.next()

			limit, err := p.parseIntToken()
			if err != nil {
				return err
			}

			proj.Limit = limit

		default:
			return nil
		}
	}
}

// Write statements
// ================

/*
parseInsert parses an INSERT statement.
*/
func (p *parser) parseInsert() (Statement, error) {
	if _, err := p.expect(TokenINSERT, "Expected INSERT"); err != nil {
		return nil, err
	}

	stmt := &InsertStatement{}
	nodeVars := make(map[string]int)

	registerNode := func(node *NodePattern) int {
		if node.Var != "" {
			if idx, ok := nodeVars[node.Var]; ok {
				return idx
			}

			nodeVars[node.Var] = len(stmt.Nodes)
		}

		stmt.Nodes = append(stmt.Nodes, node)

		return len(stmt.Nodes) - 1
	}

	for {
		first, err := p.parseNodePattern()
		if err != nil {
			return nil, err
		}

		firstIdx := registerNode(first)

		for {
			id := p.cur().ID
			if id != TokenMINUS && id != TokenLARROW && id != TokenTILDE &&
				id != TokenLTILDEARROW {
				break
			}

			edge, err := p.parseEdgePattern()
			if err != nil {
				return nil, err
			}

			second, err := p.parseNodePattern()
			if err != nil {
				return nil, err
			}

			secondIdx := registerNode(second)

			stmt.Edges = append(stmt.Edges, &InsertEdgeItem{
				Source: firstIdx, Target: secondIdx, Edge: edge})

			firstIdx = secondIdx
		}

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	return stmt, nil
}

/*
parseDelete parses a DELETE statement with an optional leading match
part.
*/
func (p *parser) parseDelete(patterns []*PathPattern, where Expr) (Statement, error) {
	detach := p.accept(TokenDETACH)

	if !detach {
		p.accept(TokenNODETACH)
	}

	if _, err := p.expect(TokenDELETE, "Expected DELETE"); err != nil {
		return nil, err
	}

	stmt := &DeleteStatement{Detach: detach, Patterns: patterns, Where: where}

	for {
		target, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		stmt.Targets = append(stmt.Targets, target)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	return stmt, nil
}

/*
parseUpdate parses a SET statement with an optional leading match part.
*/
func (p *parser) parseUpdate(patterns []*PathPattern, where Expr) (Statement, error) {
	if _, err := p.expect(TokenSET, "Expected SET"); err != nil {
		return nil, err
	}

	stmt := &UpdateStatement{Patterns: patterns, Where: where}

	for {
		varName, err := p.identLike("Expected a variable name")
		if err != nil {
			return nil, err
		}

		item := &SetItem{Var: varName}

		if p.accept(TokenDOT) {

			prop, err := p.identLike("Expected a property name")
			if err != nil {
				return nil, err
			}

			if _, err := p.expect(TokenEQ, "Expected = in SET item"); err != nil {
				return nil, err
			}

			value, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			item.Prop = prop
			item.Value = value

		} else if p.accept(TokenPLUS) {

			if _, err := p.expect(TokenEQ, "Expected += in SET item"); err != nil {
				return nil, err
			}

			props, err := p.parseProps()
			if err != nil {
				return nil, err
			}

			item.Props = props

		} else {
			return nil, p.newError(p.cur(), "Invalid SET item")
		}

		stmt.Items = append(stmt.Items, item)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	return stmt, nil
}

// Simple statements
// =================

/*
parseLet parses a LET statement.
*/
func (p *parser) parseLet() (Statement, error) {
	p.next()

	stmt := &LetStatement{}

	for {
		varName, err := p.identLike("Expected a variable name")
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenEQ, "Expected = after LET variable"); err != nil {
			return nil, err
		}

		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		stmt.Bindings = append(stmt.Bindings, &LetBinding{Var: varName, Value: value})

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	return stmt, nil
}

/*
parseFor parses a FOR statement.
*/
func (p *parser) parseFor() (Statement, error) {
	p.next()

	varName, err := p.identLike("Expected a variable name")
	if err != nil {
		return nil, err
	}

	stmt := &ForStatement{Var: varName}

	if p.accept(TokenCOMMA) {
		ordinal, err := p.identLike("Expected an ordinal variable name")
		if err != nil {
			return nil, err
		}

		stmt.OrdinalVar = ordinal
	}

	if _, err := p.expect(TokenIN, "Expected IN in FOR statement"); err != nil {
		return nil, err
	}

	iterable, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	stmt.Iterable = iterable

	return stmt, nil
}

/*
parseSelect parses a standalone SELECT statement.
*/
func (p *parser) parseSelect() (Statement, error) {
	p.next()

	proj, err := p.parseProjectionItems()
	if err != nil {
		return nil, err
	}

	stmt := &SelectStatement{Projection: proj}

	// An optional WHERE clause may follow the items (FROM is accepted
	// and ignored since there is only the current graph)

	if p.accept(TokenFROM) {
		if _, err := p.identLike("Expected a graph name after FROM"); err != nil {
			return nil, err
		}
	}

	if p.accept(TokenWHERE) {
		where, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		stmt.Where = where
	}

	if err := p.parseProjectionClauses(proj); err != nil {
		return nil, err
	}

	return stmt, nil
}

/*
parseCall parses a CALL statement.
*/
func (p *parser) parseCall(optional bool) (Statement, error) {
	if _, err := p.expect(TokenCALL, "Expected CALL"); err != nil {
		return nil, err
	}

	name, err := p.identLike("Expected a procedure name")
	if err != nil {
		return nil, err
	}

	for p.accept(TokenDOT) {
		part, err := p.identLike("Expected a procedure name")
		if err != nil {
			return nil, err
		}

		name = name + "." + part
	}

	stmt := &CallStatement{Optional: optional, Procedure: name}

	if _, err := p.expect(TokenLPAREN, "Expected ( after procedure name"); err != nil {
		return nil, err
	}

	for p.cur().ID != TokenRPAREN {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		stmt.Args = append(stmt.Args, arg)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	if _, err := p.expect(TokenRPAREN, "Expected ) after procedure arguments"); err != nil {
		return nil, err
	}

	if p.accept(TokenYIELD) {
		for {
			col, err := p.identLike("Expected a column name after YIELD")
			if err != nil {
				return nil, err
			}

			stmt.Yield = append(stmt.Yield, col)

			if !p.accept(TokenCOMMA) {
				break
			}
		}
	}

	return stmt, nil
}

/*
parseUse parses a USE statement.
*/
func (p *parser) parseUse() (Statement, error) {
	p.next()

	p.accept(TokenGRAPH)

	name, err := p.identLike("Expected a graph name")
	if err != nil {
		return nil, err
	}

	return &UseGraphStatement{Graph: name}, nil
}

/*
parseCreate parses a CREATE GRAPH statement with an optional inline
schema.
*/
func (p *parser) parseCreate() (Statement, error) {
	p.next()

	if _, err := p.expect(TokenGRAPH, "Expected GRAPH after CREATE"); err != nil {
		return nil, err
	}

	stmt := &CreateGraphStatement{}

	if p.accept(TokenIF) {
		if _, err := p.expect(TokenNOT, "Expected NOT after IF"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenEXISTS, "Expected EXISTS after IF NOT"); err != nil {
			return nil, err
		}

		stmt.IfNotExists = true
	}

	name, err := p.identLike("Expected a graph name")
	if err != nil {
		return nil, err
	}

	stmt.Name = name

	if p.cur().ID == TokenLBRACE {
		if err := p.parseInlineSchema(stmt); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

/*
parseInlineSchema parses the inline schema block of a CREATE GRAPH
statement.
*/
func (p *parser) parseInlineSchema(stmt *CreateGraphStatement) error {
	p.next() // Consume the opening brace

	stmt.HasSchema = true

	for p.cur().ID != TokenRBRACE {

		switch t := p.cur(); t.ID {

		case TokenNODE:
			p.next()

			label, err := p.identLike("Expected a node label")
			if err != nil {
				return err
			}

			props, err := p.parseSchemaProps()
			if err != nil {
				return err
			}

			stmt.Nodes = append(stmt.Nodes, &SchemaNodeDecl{Label: label, Props: props})

		case TokenEDGE:
			p.next()

			label, err := p.identLike("Expected an edge label")
			if err != nil {
				return err
			}

			decl := &SchemaEdgeDecl{Label: label}

			// Endpoint constraint: (Source)-[{props}]->(Target)

			if _, err := p.expect(TokenLPAREN, "Expected ( after edge label"); err != nil {
				return err
			}

			if decl.SourceLabel, err = p.identLike("Expected a source label"); err != nil {
				return err
			}

			if _, err := p.expect(TokenRPAREN, "Expected ) after source label"); err != nil {
				return err
			}

			if _, err := p.expect(TokenMINUS, "Expected - in edge declaration"); err != nil {
				return err
			}

			if _, err := p.expect(TokenLBRACK, "Expected [ in edge declaration"); err != nil {
				return err
			}

			if p.cur().ID == TokenLBRACE {
				if decl.Props, err = p.parseSchemaProps(); err != nil {
					return err
				}
			}

			if _, err := p.expect(TokenRBRACK, "Expected ] in edge declaration"); err != nil {
				return err
			}

			if _, err := p.expect(TokenRARROW, "Expected -> in edge declaration"); err != nil {
				return err
			}

			if _, err := p.expect(TokenLPAREN, "Expected ( after ->"); err != nil {
				return err
			}

			if decl.TargetLabel, err = p.identLike("Expected a target label"); err != nil {
				return err
			}

			if _, err := p.expect(TokenRPAREN, "Expected ) after target label"); err != nil {
				return err
			}

			stmt.Edges = append(stmt.Edges, decl)

		default:
			return p.newError(t, "Expected NODE or EDGE declaration")
		}

		p.accept(TokenCOMMA)
	}

	_, err := p.expect(TokenRBRACE, "Expected } at the end of the schema")

	return err
}

/*
parseSchemaProps parses a property declaration block of an inline
schema.
*/
func (p *parser) parseSchemaProps() ([]*SchemaPropDecl, error) {
	if _, err := p.expect(TokenLBRACE, "Expected a property declaration block"); err != nil {
		return nil, err
	}

	var props []*SchemaPropDecl

	for p.cur().ID != TokenRBRACE {

		name, err := p.identLike("Expected a property name")
		if err != nil {
			return nil, err
		}

		typeName, err := p.identLike("Expected a property type")
		if err != nil {
			return nil, err
		}

		decl := &SchemaPropDecl{Name: name, Type: typeName}

		if p.accept(TokenPRIMARY) {
			if _, err := p.expect(TokenKEY, "Expected KEY after PRIMARY"); err != nil {
				return nil, err
			}

			decl.PrimaryKey = true
		}

		props = append(props, decl)

		if !p.accept(TokenCOMMA) {
			break
		}
	}

	if _, err := p.expect(TokenRBRACE, "Expected } at the end of the properties"); err != nil {
		return nil, err
	}

	return props, nil
}

/*
parseDrop parses a DROP GRAPH statement.
*/
func (p *parser) parseDrop() (Statement, error) {
	p.next()

	if _, err := p.expect(TokenGRAPH, "Expected GRAPH after DROP"); err != nil {
		return nil, err
	}

	stmt := &DropGraphStatement{}

	if p.accept(TokenIF) {
		if _, err := p.expect(TokenEXISTS, "Expected EXISTS after IF"); err != nil {
			return nil, err
		}

		stmt.IfExists = true
	}

	name, err := p.identLike("Expected a graph name")
	if err != nil {
		return nil, err
	}

	stmt.Name = name

	return stmt, nil
}

/*
parseShow parses a SHOW statement.
*/
func (p *parser) parseShow() (Statement, error) {
	p.next()

	switch t := p.next(); t.ID {
	case TokenGRAPHS:
		return &ShowStatement{Target: ShowGraphs}, nil
	case TokenPROCEDURES:
		return &ShowStatement{Target: ShowProcedures}, nil
	case TokenVERTICES:
		return &ShowStatement{Target: ShowVertices}, nil
	case TokenEDGES:
		return &ShowStatement{Target: ShowEdges}, nil
	default:
		return nil, p.newError(t, "Expected GRAPHS, PROCEDURES, VERTICES or EDGES")
	}
}

/*
parseDescribe parses a DESCRIBE GRAPH statement.
*/
func (p *parser) parseDescribe() (Statement, error) {
	p.next()

	p.accept(TokenGRAPH)

	name, err := p.identLike("Expected a graph name")
	if err != nil {
		return nil, err
	}

	return &DescribeStatement{Graph: name}, nil
}

/*
parseSession parses a SESSION statement. PROPERTY GRAPH and GRAPH are
synonyms.
*/
func (p *parser) parseSession() (Statement, error) {
	p.next()

	if p.accept(TokenSET) {

		p.accept(TokenPROPERTY)

		if p.accept(TokenGRAPH) {
			name, err := p.identLike("Expected a graph name")
			if err != nil {
				return nil, err
			}

			return &SessionStatement{Kind: SessionSetGraph, Name: name}, nil
		}

		p.accept(TokenVALUE)

		name, err := p.identLike("Expected a parameter name")
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenEQ, "Expected = after parameter name"); err != nil {
			return nil, err
		}

		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		return &SessionStatement{Kind: SessionSetValue, Name: name, Value: value}, nil
	}

	if p.accept(TokenRESET) {
		stmt := &SessionStatement{Kind: SessionReset}

		if p.accept(TokenALL) {
			return stmt, nil
		}

		if p.cur().ID == TokenIdentifier {
			stmt.Name = p.next().Val
		}

		return stmt, nil
	}

	if p.accept(TokenCLOSE) {
		return &SessionStatement{Kind: SessionClose}, nil
	}

	return nil, p.newError(p.cur(), "Expected SET, RESET or CLOSE after SESSION")
}

/*
parseTransactionStart parses a START TRANSACTION statement.
*/
func (p *parser) parseTransactionStart() (Statement, error) {
	p.next()

	if _, err := p.expect(TokenTRANSACTION, "Expected TRANSACTION after START"); err != nil {
		return nil, err
	}

	stmt := &TransactionStatement{Kind: TransStart}

	if p.accept(TokenREAD) {
		if p.accept(TokenONLY) {
			stmt.ReadOnly = true
		} else if _, err := p.expect(TokenWRITE, "Expected ONLY or WRITE after READ"); err != nil {
			return nil, err
		}
	}

	return stmt, nil
}

// Expressions
// ===========

/*
parseExpression parses an expression.
*/
func (p *parser) parseExpression() (Expr, error) {
	return p.parseOr()
}

/*
parseOr parses the OR level.
*/
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenOR) {
		right, err := p.parseXor()
		if err != nil {
			return nil, err
		}

		left = &Binary{Op: OpOr, Left: left, Right: right}
	}

	return left, nil
}

/*
parseXor parses the XOR level.
*/
func (p *parser) parseXor() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenXOR) {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &Binary{Op: OpXor, Left: left, Right: right}
	}

	return left, nil
}

/*
parseAnd parses the AND level.
*/
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.accept(TokenAND) {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		left = &Binary{Op: OpAnd, Left: left, Right: right}
	}

	return left, nil
}

/*
parseNot parses the NOT level.
*/
func (p *parser) parseNot() (Expr, error) {
	if p.accept(TokenNOT) {
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}

		return &Unary{Op: OpNot, Operand: operand}, nil
	}

	return p.parseComparison()
}

/*
parseComparison parses the comparison level.
*/
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	switch p.cur().ID {

	case TokenEQ, TokenNEQ, TokenLT, TokenLEQ, TokenGT, TokenGEQ:
		opToken := p.next()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		op := map[LexTokenID]int{TokenEQ: OpEQ, TokenNEQ: OpNEQ, TokenLT: OpLT,
			TokenLEQ: OpLEQ, TokenGT: OpGT, TokenGEQ: OpGEQ}[opToken.ID]

		return &Binary{Op: op, Left: left, Right: right}, nil

	case TokenIS:
		p.next()

		not := p.accept(TokenNOT)

		if _, err := p.expect(TokenNULL, "Expected NULL after IS"); err != nil {
			return nil, err
		}

		if not {
			return &Unary{Op: OpIsNotNull, Operand: left}, nil
		}

		return &Unary{Op: OpIsNull, Operand: left}, nil

	case TokenCONTAINS:
		p.next()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &Binary{Op: OpContains, Left: left, Right: right}, nil

	case TokenSTARTS:
		p.next()

		if _, err := p.expect(TokenWITH, "Expected WITH after STARTS"); err != nil {
			return nil, err
		}

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &Binary{Op: OpStartsWith, Left: left, Right: right}, nil

	case TokenENDS:
		p.next()

		if _, err := p.expect(TokenWITH, "Expected WITH after ENDS"); err != nil {
			return nil, err
		}

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &Binary{Op: OpEndsWith, Left: left, Right: right}, nil

	case TokenIN:
		p.next()

		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}

		return &Binary{Op: OpIn, Left: left, Right: right}, nil
	}

	return left, nil
}

/*
parseAdditive parses the + and - level.
*/
func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for {
		var op int

		if p.accept(TokenPLUS) {
			op = OpAdd
		} else if p.accept(TokenMINUS) {
			op = OpSub
		} else {
			return left, nil
		}

		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}

		left = &Binary{Op: op, Left: left, Right: right}
	}
}

/*
parseMultiplicative parses the *, / and % level.
*/
func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		var op int

		if p.accept(TokenTIMES) {
			op = OpMul
		} else if p.accept(TokenDIV) {
			op = OpDiv
		} else if p.accept(TokenMOD) {
			op = OpMod
		} else {
			return left, nil
		}

		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		left = &Binary{Op: op, Left: left, Right: right}
	}
}

/*
parseUnary parses unary minus.
*/
func (p *parser) parseUnary() (Expr, error) {
	if p.accept(TokenMINUS) {
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}

		return &Unary{Op: OpNeg, Operand: operand}, nil
	}

	p.accept(TokenPLUS)

	return p.parsePrimary()
}

/*
parsePrimary parses literals, variables, property accesses, function
calls, list literals and parenthesized expressions.
*/
func (p *parser) parsePrimary() (Expr, error) {
	switch t := p.cur(); t.ID {

	case TokenIntValue:
		p.next()

		v, err := strconv.ParseInt(t.Val, 0, 64)
		if err != nil {
			return nil, p.newError(t, "Invalid integer literal")
		}

		return &Literal{Value: data.IntValue(v)}, nil

	case TokenFloatValue:
		p.next()

		v, err := strconv.ParseFloat(t.Val, 64)
		if err != nil {
			return nil, p.newError(t, "Invalid float literal")
		}

		return &Literal{Value: data.FloatValue(v)}, nil

	case TokenString:
		p.next()
		return &Literal{Value: data.StringValue(t.Val)}, nil

	case TokenTRUE:
		p.next()
		return &Literal{Value: data.BoolValue(true)}, nil

	case TokenFALSE:
		p.next()
		return &Literal{Value: data.BoolValue(false)}, nil

	case TokenNULL:
		p.next()
		return &Literal{Value: data.NullValue()}, nil

	case TokenLBRACK:
		p.next()

		list := &ListExpr{}

		for p.cur().ID != TokenRBRACK {
			item, err := p.parseExpression()
			if err != nil {
				return nil, err
			}

			list.Items = append(list.Items, item)

			if !p.accept(TokenCOMMA) {
				break
			}
		}

		if _, err := p.expect(TokenRBRACK, "Expected ] at the end of a list"); err != nil {
			return nil, err
		}

		return list, nil

	case TokenLPAREN:
		p.next()

		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}

		if _, err := p.expect(TokenRPAREN, "Expected )"); err != nil {
			return nil, err
		}

		return inner, nil

	case TokenIdentifier:
		p.next()

		if p.accept(TokenDOT) {
			prop, err := p.identLike("Expected a property name")
			if err != nil {
				return nil, err
			}

			return &PropertyAccess{Var: t.Val, Prop: prop}, nil
		}

		if p.accept(TokenLPAREN) {
			call := &FuncCall{Name: t.Val}

			if p.accept(TokenTIMES) {
				call.Star = true
			} else {
				for p.cur().ID != TokenRPAREN {
					arg, err := p.parseExpression()
					if err != nil {
						return nil, err
					}

					call.Args = append(call.Args, arg)

					if !p.accept(TokenCOMMA) {
						break
					}
				}
			}

			if _, err := p.expect(TokenRPAREN, "Expected ) after function arguments"); err != nil {
				return nil, err
			}

			return call, nil
		}

		return &Variable{Name: t.Val}, nil
	}

	return nil, p.newError(p.cur(), "Expected an expression")
}
