package catalog

import "github.com/randalmurphal/flowdeck/pkg/flowdeck"

// MenuItem is one row of the add-node menu. Group rows have Children and no Type.
type MenuItem struct {
	Label    string            `json:"label"`
	Type     flowdeck.NodeType `json:"type,omitempty"`
	Disabled bool              `json:"disabled"`
	Children []MenuItem        `json:"children,omitempty"`
}

// Menu returns the add-node menu with nothing disabled.
func Menu() []MenuItem {
	return MenuFor(nil)
}

// MenuFor returns the add-node menu for a flow holding nodes.
// A group row is disabled when every child is.
func MenuFor(nodes []flowdeck.Node) []MenuItem {
	var out []MenuItem
	groups := make(map[string]int)
	for _, e := range entries {
		item := MenuItem{Label: e.Label, Type: e.Type, Disabled: IsTypeDisabled(e.Type, nodes)}
		if e.Group == "" {
			out = append(out, item)
			continue
		}
		i, ok := groups[e.Group]
		if !ok {
			i = len(out)
			groups[e.Group] = i
			out = append(out, MenuItem{Label: e.Group, Disabled: true})
		}
		out[i].Children = append(out[i].Children, item)
		out[i].Disabled = out[i].Disabled && item.Disabled
	}
	return out
}
