/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"fmt"
	"strings"

	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
)

/*
PropDef is the declaration of a single property in an inline schema.
*/
type PropDef struct {
	Name       string // Property name
	Type       string // Declared type name
	PrimaryKey bool   // Flag if this property is the primary key
}

/*
NodeDef is the declaration of a node type in an inline schema.
*/
type NodeDef struct {
	Label string
	Props []PropDef
}

/*
EdgeDef is the declaration of an edge type in an inline schema.
*/
type EdgeDef struct {
	Label       string
	SourceLabel string // Required label of source vertices ("" = any)
	TargetLabel string // Required label of target vertices ("" = any)
	Props       []PropDef
}

/*
Schema is an inline schema which was supplied with CREATE GRAPH.
*/
type Schema struct {
	Nodes []NodeDef
	Edges []EdgeDef
}

/*
NodeDef returns the declaration of a given node label or nil.
*/
func (s *Schema) NodeDef(label string) *NodeDef {
	for i := range s.Nodes {
		if s.Nodes[i].Label == label {
			return &s.Nodes[i]
		}
	}

	return nil
}

/*
EdgeDef returns the declaration of a given edge label or nil.
*/
func (s *Schema) EdgeDef(label string) *EdgeDef {
	for i := range s.Edges {
		if s.Edges[i].Label == label {
			return &s.Edges[i]
		}
	}

	return nil
}

/*
PrimaryKey returns the name of the primary key property of a given node
label. Returns an empty string if the label has no primary key.
*/
func (s *Schema) PrimaryKey(label string) string {
	if nd := s.NodeDef(label); nd != nil {
		for _, p := range nd.Props {
			if p.PrimaryKey {
				return p.Name
			}
		}
	}

	return ""
}

/*
typeNameTags maps declared schema type names to the value tags which
satisfy them
*/
var typeNameTags = map[string][]data.Tag{
	"bool":      {data.TagBool},
	"boolean":   {data.TagBool},
	"int":       {data.TagInt, data.TagUInt},
	"integer":   {data.TagInt, data.TagUInt},
	"uint":      {data.TagUInt, data.TagInt},
	"float":     {data.TagFloat, data.TagInt, data.TagUInt},
	"double":    {data.TagFloat, data.TagInt, data.TagUInt},
	"string":    {data.TagString},
	"address":   {data.TagAddress},
	"txhash":    {data.TagTxHash},
	"amount":    {data.TagAmount, data.TagInt, data.TagUInt},
	"timestamp": {data.TagTimestamp, data.TagInt},
	"bytes":     {data.TagBytes},
	"list":      {data.TagList},
	"map":       {data.TagMap},
}

/*
checkProps checks a given property map against a list of property
declarations. Unknown properties and type mismatches are reported as
constraint violations. Null values are always accepted.
*/
func checkProps(kind string, label string, defs []PropDef,
	props map[string]data.Value) error {

	for name, val := range props {

		var def *PropDef

		for i := range defs {
			if defs[i].Name == name {
				def = &defs[i]
				break
			}
		}

		if def == nil {
			return &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Schema of %v %v does not declare property %v",
					kind, label, name)}
		}

		if val.IsNull() {
			continue
		}

		tags, ok := typeNameTags[strings.ToLower(def.Type)]
		if !ok {
			continue
		}

		var match bool
		for _, t := range tags {
			if val.Tag() == t {
				match = true
				break
			}
		}

		if !match {
			return &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Property %v of %v %v must be of type %v not %v",
					name, kind, label, def.Type, val.Tag().Name())}
		}
	}

	return nil
}
