package render

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	EdgeTrue   string // branch taken when the condition holds
	EdgeFalse  string // branch taken when it does not
	EdgeDirect string // fallthrough and unconditional jumps
	EdgeCall   string // call-graph edges

	EntryBorder string // entry block accent
	TermFill    string // RETN block fill
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeTrue:   "#0B3D91", // NASA blue
	EdgeFalse:  "#FC3D21", // NASA red
	EdgeDirect: "#424242", // dark gray
	EdgeCall:   "#00695C", // teal

	EntryBorder: "#0B3D91",
	TermFill:    "#ECEFF1", // blue-gray 50
}
