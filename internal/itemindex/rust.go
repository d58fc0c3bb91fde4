package itemindex

import (
	"strings"

	gotreesitter "github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"

	"github.com/git-pkgs/crateview/internal/core"
)

// typeNodeTypes are the tree-sitter node types that can spell the written
// type in an impl header.
var typeNodeTypes = map[string]bool{
	"type_identifier":        true,
	"scoped_type_identifier": true,
	"generic_type":           true,
	"reference_type":         true,
	"tuple_type":             true,
	"array_type":             true,
	"pointer_type":           true,
	"primitive_type":         true,
	"dynamic_type":           true,
}

// nameIdentifierTypes are the node types that carry a declaration's name.
var nameIdentifierTypes = map[string]bool{
	"identifier":      true,
	"type_identifier": true,
}

// extractFile parses one Rust source file and returns the declarations found
// by walking its syntactic tree. Declarations produced by macro expansion are
// invisible to the walk.
func extractFile(path string, source []byte) ([]core.Item, error) {
	bt, err := grammars.ParseFile(path, source)
	if err != nil {
		return nil, err
	}
	defer bt.Release()

	w := &fileWalker{bt: bt, path: path}
	w.walk(bt.RootNode())
	return w.items, nil
}

type fileWalker struct {
	bt    *gotreesitter.BoundTree
	path  string
	items []core.Item
}

// walk visits the direct children of a container node (source file or module
// body). Outer attributes parse as sibling attribute_item nodes, so the
// walker carries them forward onto the next declaration: they extend the
// declaration's span and mark proc-macro attribute functions.
func (w *fileWalker) walk(node *gotreesitter.Node) {
	attrStart := 0
	attrProcMacro := false
	reset := func() {
		attrStart = 0
		attrProcMacro = false
	}

	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		nodeType := w.bt.NodeType(child)
		switch nodeType {
		case "attribute_item":
			if attrStart == 0 {
				attrStart = startLine(child)
			}
			if strings.Contains(w.bt.NodeText(child), "proc_macro_attribute") {
				attrProcMacro = true
			}
			continue
		case "line_comment", "block_comment":
			continue
		}

		start, end := startLine(child), endLine(child)
		if attrStart != 0 && attrStart < start {
			start = attrStart
		}

		switch nodeType {
		case "struct_item":
			w.emit(core.ItemStruct, w.nameOf(child), start, end, "", "")
		case "enum_item":
			w.emit(core.ItemEnum, w.nameOf(child), start, end, "", "")
		case "trait_item":
			w.emit(core.ItemTrait, w.nameOf(child), start, end, "", "")
		case "function_item", "function_signature_item":
			if attrProcMacro {
				w.emit(core.ItemAttributeMacro, w.nameOf(child), start, end, "", "")
			} else {
				w.emit(core.ItemFunction, w.nameOf(child), start, end, "", "")
			}
		case "type_item":
			w.emit(core.ItemTypeAlias, w.nameOf(child), start, end, "", "")
		case "macro_definition":
			w.emit(core.ItemMacro, w.nameOf(child), start, end, "", "")
		case "impl_item":
			w.walkImpl(child, start, end)
		case "mod_item":
			// Inline module: visit its body. Pending attributes belong to the
			// module itself, not its first member.
			for j := 0; j < child.ChildCount(); j++ {
				body := child.Child(j)
				if body != nil && w.bt.NodeType(body) == "declaration_list" {
					w.walk(body)
				}
			}
		}
		reset()
	}
}

// walkImpl emits records for an impl block. A `for` token in the header
// separates the trait from the receiver type; without it the block attaches
// members to a concrete type.
func (w *fileWalker) walkImpl(node *gotreesitter.Node, start, end int) {
	var traitNode, selfNode, body *gotreesitter.Node
	seenFor := false
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch nodeType := w.bt.NodeType(child); {
		case nodeType == "for":
			seenFor = true
		case nodeType == "declaration_list":
			body = child
		case typeNodeTypes[nodeType]:
			if !seenFor && traitNode == nil {
				traitNode = child
			} else if selfNode == nil {
				selfNode = child
			}
		}
	}
	if !seenFor {
		// `impl Type { ... }`: the single header type is the receiver.
		selfNode, traitNode = traitNode, nil
	}
	if selfNode == nil {
		return
	}
	receiver := w.bt.NodeText(selfNode)

	if traitNode != nil {
		traitName := w.bt.NodeText(traitNode)
		w.emit(core.ItemImplTraitForType, traitName, start, end, receiver, traitName)
		return
	}
	if body == nil {
		return
	}
	for i := 0; i < body.ChildCount(); i++ {
		member := body.Child(i)
		if member == nil {
			continue
		}
		switch w.bt.NodeType(member) {
		case "function_item", "function_signature_item", "const_item", "type_item":
			w.emit(core.ItemImplType, w.nameOf(member), startLine(member), endLine(member), receiver, "")
		}
	}
}

func (w *fileWalker) emit(t core.ItemType, name string, start, end int, receiver, trait string) {
	if name == "" {
		return
	}
	w.items = append(w.items, core.Item{
		Name:         name,
		Type:         t,
		File:         w.path,
		LineStart:    start,
		LineEnd:      end,
		ReceiverType: receiver,
		TraitName:    trait,
	})
}

// nameOf finds the declaration's name identifier: first a direct child scan,
// then a depth-first fallback for grammars that nest the identifier.
func (w *fileWalker) nameOf(node *gotreesitter.Node) string {
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && nameIdentifierTypes[w.bt.NodeType(child)] {
			return w.bt.NodeText(child)
		}
	}
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if name := w.nameOf(child); name != "" {
			return name
		}
	}
	return ""
}

func startLine(n *gotreesitter.Node) int { return int(n.StartPoint().Row) + 1 }
func endLine(n *gotreesitter.Node) int   { return int(n.EndPoint().Row) + 1 }
