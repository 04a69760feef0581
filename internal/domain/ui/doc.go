// Package ui defines the element tree produced by extension views and
// renders it to HTML.
//
// A view contributed to a slot is a Component. Rendering a Component yields
// a Node: an Element, Text, a Fragment, or a nested component reference
// (Embed) that is expanded recursively.
//
//	tree := ui.El("div", ui.Props{"className": "clock"},
//	    ui.Text("12:00"),
//	)
//	html, err := ui.RenderHTML(ctx, tree)
package ui
