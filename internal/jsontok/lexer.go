// Package jsontok is a flat JSON lexer. It splits a document into a caller
// supplied array of tokens, each a (type, start, end) span with a child
// count and a parent index, and never builds a tree or allocates.
//
// Extraction on top of the token array (HasKey, ValueOf) is a linear scan.
// Callers descend at most one level by re-lexing a sub-object span into a
// second token array.
package jsontok

import "errors"

// Type is the kind of a token
type Type uint8

const (
	Undefined Type = iota
	Object
	Array
	String
	Primitive
)

func (t Type) String() string {
	switch t {
	case Object:
		return "object"
	case Array:
		return "array"
	case String:
		return "string"
	case Primitive:
		return "primitive"
	default:
		return "undefined"
	}
}

// Token is one span of the input. Start and End are byte offsets; for
// strings they exclude the quotes. Size is the number of direct children
// (1 for an object key).
type Token struct {
	Type   Type
	Start  int
	End    int
	Size   int
	Parent int
}

// Lexer errors
var (
	ErrNoMemory = errors.New("jsontok: not enough tokens")
	ErrInvalid  = errors.New("jsontok: invalid character")
	ErrPartial  = errors.New("jsontok: incomplete document")
)

// Parser holds the position state of one Parse call.
type Parser struct {
	pos   int
	next  int
	super int
}

// Parse tokenizes js into tokens and returns the number of tokens used.
func Parse(js []byte, tokens []Token) (int, error) {
	var p Parser
	return p.Parse(js, tokens)
}

// Parse tokenizes js into tokens, reusing the parser.
func (p *Parser) Parse(js []byte, tokens []Token) (int, error) {
	p.pos, p.next, p.super = 0, 0, -1

	for ; p.pos < len(js); p.pos++ {
		c := js[p.pos]
		switch c {
		case '{', '[':
			tok, err := p.alloc(tokens)
			if err != nil {
				return 0, err
			}
			if p.super != -1 {
				parent := &tokens[p.super]
				// an object or array cannot be a key
				if parent.Type == Object {
					return 0, ErrInvalid
				}
				parent.Size++
				tok.Parent = p.super
			}
			tok.Type = Object
			if c == '[' {
				tok.Type = Array
			}
			tok.Start = p.pos
			p.super = p.next - 1

		case '}', ']':
			typ := Object
			if c == ']' {
				typ = Array
			}
			if p.next < 1 {
				return 0, ErrInvalid
			}
			tok := &tokens[p.next-1]
			for {
				if tok.Start != -1 && tok.End == -1 {
					if tok.Type != typ {
						return 0, ErrInvalid
					}
					tok.End = p.pos + 1
					p.super = tok.Parent
					break
				}
				if tok.Parent == -1 {
					if tok.Type != typ || p.super == -1 {
						return 0, ErrInvalid
					}
					break
				}
				tok = &tokens[tok.Parent]
			}

		case '"':
			if err := p.parseString(js, tokens); err != nil {
				return 0, err
			}
			if p.super != -1 {
				tokens[p.super].Size++
			}

		case '\t', '\r', '\n', ' ':

		case ':':
			p.super = p.next - 1

		case ',':
			if p.super != -1 && tokens[p.super].Type != Array && tokens[p.super].Type != Object {
				p.super = tokens[p.super].Parent
			}

		case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9', 't', 'f', 'n':
			if p.super != -1 {
				parent := tokens[p.super]
				if parent.Type == Object || (parent.Type == String && parent.Size != 0) {
					return 0, ErrInvalid
				}
			}
			if err := p.parsePrimitive(js, tokens); err != nil {
				return 0, err
			}
			if p.super != -1 {
				tokens[p.super].Size++
			}

		default:
			return 0, ErrInvalid
		}
	}

	for i := p.next - 1; i >= 0; i-- {
		if tokens[i].Start != -1 && tokens[i].End == -1 {
			return 0, ErrPartial
		}
	}
	return p.next, nil
}

func (p *Parser) alloc(tokens []Token) (*Token, error) {
	if p.next >= len(tokens) {
		return nil, ErrNoMemory
	}
	tok := &tokens[p.next]
	p.next++
	*tok = Token{Start: -1, End: -1, Parent: -1}
	return tok, nil
}

func (p *Parser) parseString(js []byte, tokens []Token) error {
	start := p.pos
	p.pos++

	for ; p.pos < len(js); p.pos++ {
		c := js[p.pos]
		if c == '"' {
			tok, err := p.alloc(tokens)
			if err != nil {
				p.pos = start
				return err
			}
			tok.Type = String
			tok.Start = start + 1
			tok.End = p.pos
			tok.Parent = p.super
			return nil
		}
		if c != '\\' || p.pos+1 >= len(js) {
			continue
		}
		p.pos++
		switch js[p.pos] {
		case '"', '/', '\\', 'b', 'f', 'r', 'n', 't':
		case 'u':
			for i := 0; i < 4; i++ {
				if p.pos+1 >= len(js) || !isHex(js[p.pos+1]) {
					p.pos = start
					return ErrInvalid
				}
				p.pos++
			}
		default:
			p.pos = start
			return ErrInvalid
		}
	}
	p.pos = start
	return ErrPartial
}

func (p *Parser) parsePrimitive(js []byte, tokens []Token) error {
	start := p.pos

	for ; p.pos < len(js); p.pos++ {
		c := js[p.pos]
		switch c {
		case '\t', '\r', '\n', ' ', ',', ']', '}':
			tok, err := p.alloc(tokens)
			if err != nil {
				p.pos = start
				return err
			}
			tok.Type = Primitive
			tok.Start = start
			tok.End = p.pos
			tok.Parent = p.super
			p.pos--
			return nil
		}
		if c < 32 || c >= 127 {
			p.pos = start
			return ErrInvalid
		}
	}
	// a primitive must be followed by a delimiter
	p.pos = start
	return ErrPartial
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
