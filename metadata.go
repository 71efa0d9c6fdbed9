package delundef

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/metadata"
)

// attachEntryDebugLoc gives the injected call a source location so it
// does not show up as "no location" to later passes (the inliner in
// particular assumes every instruction of a debug-info-bearing
// function carries one). The injected call has no positional
// counterpart in the source, so the location is derived from the entry
// function's own subprogram descriptor: its opening line. If the entry
// function carries no debug metadata, the call carries none either.
func attachEntryDebugLoc(m *ir.Module, call *ir.InstCall, entry *ir.Func) {
	sub := subprogram(entry)
	if sub == nil {
		return
	}
	// An unregistered node would render its attachment with the zero
	// ID, aliasing whichever definition already owns !0. Registering it
	// with the unassigned ID lets AssignMetadataIDs hand it a fresh one
	// when the module is printed.
	loc := &metadata.DILocation{
		MetadataID: -1,
		Line:       sub.Line,
		Scope:      sub,
	}
	m.MetadataDefs = append(m.MetadataDefs, loc)
	call.Metadata = append(call.Metadata, &metadata.Attachment{
		Name: "dbg",
		Node: loc,
	})
}

func subprogram(f *ir.Func) *metadata.DISubprogram {
	for _, att := range f.Metadata {
		if sub, ok := att.Node.(*metadata.DISubprogram); ok {
			return sub
		}
	}
	return nil
}
