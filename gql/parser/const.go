/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package parser contains the GQL parser.

Lexer

Lex() is a lexer function to convert a given query into a list of tokens.

Based on a talk by Rob Pike: Lexical Scanning in Go

https://www.youtube.com/watch?v=HxaD_trXwRE

Parser

Parse() is a hand-written recursive descent parser which produces a
typed abstract syntax tree from a given list of lexer tokens. The
parser fails on the first syntax error and reports the line and
position of the offending token. There is no partial parse acceptance.
*/
package parser

/*
LexTokenID represents a unique lexer token ID
*/
type LexTokenID int

/*
Available lexer token types
*/
const (
	TokenError LexTokenID = iota // Lexing error token with a message as val
	TokenEOF                     // End-of-input token

	TokenIdentifier // Identifier (including back-quoted)
	TokenString     // Quoted string literal
	TokenIntValue   // Integer literal
	TokenFloatValue // Float literal

	TOKENodeSYMBOLS // Used to separate symbols from other tokens in this list

	TokenEQ          // =
	TokenNEQ         // <> or !=
	TokenLT          // <
	TokenGT          // >
	TokenLEQ         // <=
	TokenGEQ         // >=
	TokenLPAREN      // (
	TokenRPAREN      // )
	TokenLBRACK      // [
	TokenRBRACK      // ]
	TokenLBRACE      // {
	TokenRBRACE      // }
	TokenCOMMA       // ,
	TokenCOLON       // :
	TokenDOT         // .
	TokenDOTDOT      // ..
	TokenPLUS        // +
	TokenMINUS       // -
	TokenTIMES       // *
	TokenDIV         // /
	TokenMOD         // %
	TokenPIPE        // |
	TokenAMP         // &
	TokenBANG        // !
	TokenQUESTION    // ?
	TokenTILDE       // ~
	TokenRARROW      // ->
	TokenLARROW      // <-
	TokenRTILDEARROW // ~>
	TokenLTILDEARROW // <~

	TOKENodeKEYWORDS // Used to separate keywords from other tokens in this list

	TokenMATCH
	TokenOPTIONAL
	TokenWHERE
	TokenRETURN
	TokenSELECT
	TokenFROM
	TokenINSERT
	TokenDELETE
	TokenDETACH
	TokenNODETACH
	TokenSET
	TokenLET
	TokenFOR
	TokenIN
	TokenFILTER
	TokenCALL
	TokenYIELD
	TokenUSE
	TokenGRAPH
	TokenPROPERTY
	TokenCREATE
	TokenDROP
	TokenSHOW
	TokenDESCRIBE
	TokenSESSION
	TokenVALUE
	TokenRESET
	TokenCLOSE
	TokenSTART
	TokenTRANSACTION
	TokenCOMMIT
	TokenROLLBACK
	TokenREAD
	TokenWRITE
	TokenONLY
	TokenUNION
	TokenALL
	TokenEXCEPT
	TokenINTERSECT
	TokenOTHERWISE
	TokenDISTINCT
	TokenGROUP
	TokenBY
	TokenHAVING
	TokenORDER
	TokenASC
	TokenDESC
	TokenLIMIT
	TokenOFFSET
	TokenSKIP
	TokenAND
	TokenOR
	TokenXOR
	TokenNOT
	TokenTRUE
	TokenFALSE
	TokenNULL
	TokenIS
	TokenCONTAINS
	TokenSTARTS
	TokenENDS
	TokenWITH
	TokenAS
	TokenSHORTEST
	TokenANY
	TokenGROUPS
	TokenPATH
	TokenPATHS
	TokenNODE
	TokenEDGE
	TokenKEY
	TokenPRIMARY
	TokenGRAPHS
	TokenPROCEDURES
	TokenVERTICES
	TokenEDGES
	TokenIF
	TokenEXISTS
)

/*
KeywordMap is a map of keywords - keywords are case insensitive
*/
var KeywordMap = map[string]LexTokenID{
	"match":       TokenMATCH,
	"optional":    TokenOPTIONAL,
	"where":       TokenWHERE,
	"return":      TokenRETURN,
	"select":      TokenSELECT,
	"from":        TokenFROM,
	"insert":      TokenINSERT,
	"delete":      TokenDELETE,
	"detach":      TokenDETACH,
	"nodetach":    TokenNODETACH,
	"set":         TokenSET,
	"let":         TokenLET,
	"for":         TokenFOR,
	"in":          TokenIN,
	"filter":      TokenFILTER,
	"call":        TokenCALL,
	"yield":       TokenYIELD,
	"use":         TokenUSE,
	"graph":       TokenGRAPH,
	"property":    TokenPROPERTY,
	"create":      TokenCREATE,
	"drop":        TokenDROP,
	"show":        TokenSHOW,
	"describe":    TokenDESCRIBE,
	"session":     TokenSESSION,
	"value":       TokenVALUE,
	"reset":       TokenRESET,
	"close":       TokenCLOSE,
	"start":       TokenSTART,
	"transaction": TokenTRANSACTION,
	"commit":      TokenCOMMIT,
	"rollback":    TokenROLLBACK,
	"read":        TokenREAD,
	"write":       TokenWRITE,
	"only":        TokenONLY,
	"union":       TokenUNION,
	"all":         TokenALL,
	"except":      TokenEXCEPT,
	"intersect":   TokenINTERSECT,
	"otherwise":   TokenOTHERWISE,
	"distinct":    TokenDISTINCT,
	"group":       TokenGROUP,
	"by":          TokenBY,
	"having":      TokenHAVING,
	"order":       TokenORDER,
	"asc":         TokenASC,
	"ascending":   TokenASC,
	"desc":        TokenDESC,
	"descending":  TokenDESC,
	"limit":       TokenLIMIT,
	"offset":      TokenOFFSET,
	"skip":        TokenSKIP,
	"and":         TokenAND,
	"or":          TokenOR,
	"xor":         TokenXOR,
	"not":         TokenNOT,
	"true":        TokenTRUE,
	"false":       TokenFALSE,
	"null":        TokenNULL,
	"is":          TokenIS,
	"contains":    TokenCONTAINS,
	"starts":      TokenSTARTS,
	"ends":        TokenENDS,
	"with":        TokenWITH,
	"as":          TokenAS,
	"shortest":    TokenSHORTEST,
	"any":         TokenANY,
	"groups":      TokenGROUPS,
	"path":        TokenPATH,
	"paths":       TokenPATHS,
	"node":        TokenNODE,
	"edge":        TokenEDGE,
	"key":         TokenKEY,
	"primary":     TokenPRIMARY,
	"graphs":      TokenGRAPHS,
	"procedures":  TokenPROCEDURES,
	"vertices":    TokenVERTICES,
	"edges":       TokenEDGES,
	"if":          TokenIF,
	"exists":      TokenEXISTS,
}
