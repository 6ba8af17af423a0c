package markup

// Block is a node of the document tree. The set of variants is closed.
type Block interface{ block() }

// Inline is a span of text content. The set of variants is closed.
type Inline interface{ inline() }

// Tree is the parsed body of one document.
type Tree struct {
	Blocks []Block
}

// Section groups a heading with every block it owns.
type Section struct {
	Heading  *Heading
	Children []Block
}

type Heading struct {
	Level   int
	Anchor  string
	Content []Inline
}

type Paragraph struct {
	Content []Inline
}

// CodeBlock holds opaque code text and the optional fence language tag.
type CodeBlock struct {
	Language string
	Text     string
}

// Image is both an inline and, when it is the only content of a paragraph, a block.
type Image struct {
	Ref     string
	Alt     string
	Caption string
}

// Link is both an inline and, when it is the only content of a paragraph, a block.
// Target is kept symbolic; resolution happens at render time.
type Link struct {
	Target string
	Title  string
	Label  []Inline
}

type List struct {
	Ordered bool
	Start   int
	Items   [][]Block
}

type Align string

const (
	AlignNone   Align = ""
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

type Table struct {
	Align  []Align
	Header [][]Inline
	Rows   [][][]Inline
}

// CalloutKind tags an admonition.
type CalloutKind string

const (
	CalloutNote      CalloutKind = "note"
	CalloutTip       CalloutKind = "tip"
	CalloutImportant CalloutKind = "important"
	CalloutWarning   CalloutKind = "warning"
	CalloutCaution   CalloutKind = "caution"
)

var calloutKinds = map[string]CalloutKind{
	"note":      CalloutNote,
	"tip":       CalloutTip,
	"important": CalloutImportant,
	"warning":   CalloutWarning,
	"caution":   CalloutCaution,
}

// Callout is an admonition block, from a ::: container or a NOTE: style paragraph.
type Callout struct {
	Kind     CalloutKind
	Title    string
	Children []Block
}

type Quote struct {
	Children []Block
}

type Rule struct{}

// RawHTML is an HTML block copied from the source. Renderers must sanitize it.
type RawHTML struct {
	HTML string
}

type Text struct {
	Value string
}

type Code struct {
	Value string
}

type Emphasis struct {
	Children []Inline
}

type Strong struct {
	Children []Inline
}

type LineBreak struct {
	Hard bool
}

type RawInline struct {
	HTML string
}

func (*Section) block()   {}
func (*Heading) block()   {}
func (*Paragraph) block() {}
func (*CodeBlock) block() {}
func (*Image) block()     {}
func (*Link) block()      {}
func (*List) block()      {}
func (*Table) block()     {}
func (*Callout) block()   {}
func (*Quote) block()     {}
func (*Rule) block()      {}
func (*RawHTML) block()   {}

func (*Text) inline()      {}
func (*Code) inline()      {}
func (*Emphasis) inline()  {}
func (*Strong) inline()    {}
func (*Link) inline()      {}
func (*Image) inline()     {}
func (*LineBreak) inline() {}
func (*RawInline) inline() {}
