// Package conversation provides the branch tree of messages exchanged with
// story assistants during chapter composition.
//
// Each compose phase carries its own Tree. A Tree starts with a single root
// branch; forking a branch diverges the dialogue at that point so alternative
// directions can be explored without losing earlier exchanges. Navigation
// tracks where the user currently is inside a tree and which moves are legal.
//
// The compose core stores and clones these values but never interprets them;
// all structural operations live here.
package conversation
